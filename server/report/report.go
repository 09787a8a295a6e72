// Package report projects link records into the admin listing and the CSV
// export. It is purely computational: the store is read once, and all
// filtering and aggregation happens on the snapshot.
package report

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sealdrop/sealdrop/server/linkdb"
)

// Row is one link record with its status derived at projection time.
type Row struct {
	Record linkdb.Record `json:"record"`
	Status linkdb.Status `json:"status"`
}

// Counts is the per-status tally over the full (unfiltered) record set.
type Counts struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Opened       int `json:"opened"`
	Acknowledged int `json:"acknowledged"`
	Expired      int `json:"expired"`
	Revoked      int `json:"revoked"`
}

// Query selects and orders rows for the admin listing.
type Query struct {
	Text   string        // case-insensitive substring over name, email, phone, token, document id and label
	Status linkdb.Status // empty = all statuses
}

// Project derives a status for every record, applies the query, and returns
// rows sorted newest first, plus counts over the unfiltered set.
func Project(records []linkdb.Record, q Query, now time.Time) ([]Row, Counts) {
	counts := Counts{Total: len(records)}
	rows := make([]Row, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	for _, r := range records {
		status := linkdb.DeriveStatus(&r, now)
		switch status {
		case linkdb.StatusActive:
			counts.Active++
		case linkdb.StatusOpened:
			counts.Opened++
		case linkdb.StatusAcknowledged:
			counts.Acknowledged++
		case linkdb.StatusExpired:
			counts.Expired++
		case linkdb.StatusRevoked:
			counts.Revoked++
		}
		if q.Status != "" && status != q.Status {
			continue
		}
		if needle != "" && !matches(&r, needle) {
			continue
		}
		rows = append(rows, Row{Record: r, Status: status})
	}
	sort.Slice(rows, func(i, j int) bool {
		a := rows[i].Record.CreatedAt.Get()
		b := rows[j].Record.CreatedAt.Get()
		if !a.Equal(b) {
			return a.After(b)
		}
		return rows[i].Record.Token < rows[j].Record.Token
	})
	return rows, counts
}

func matches(r *linkdb.Record, needle string) bool {
	for _, field := range []string{r.Name, r.Email, r.Phone, r.Token, r.DocumentID, r.DocumentLabel} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

var csvHeader = []string{
	"name", "email", "phone", "documentLabel", "documentId", "token", "url",
	"status", "createdAt", "expiresAt", "acknowledged", "acknowledgedAt", "revokedAt",
}

// CSV renders rows as a UTF-8 CSV document with a BOM, so spreadsheet
// applications detect the encoding.
func CSV(rows []Row) ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteString("\uFEFF")
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		r := &row.Record
		rec := []string{
			r.Name,
			r.Email,
			r.Phone,
			r.DocumentLabel,
			r.DocumentID,
			r.Token,
			r.URL,
			row.Status.Label(),
			csvTime(r.CreatedAt.Get()),
			csvTime(r.ExpiresAt.Get()),
			strconv.FormatBool(r.Acknowledged),
			csvTime(r.AcknowledgedAt.Get()),
			csvTime(r.RevokedAt.Get()),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
