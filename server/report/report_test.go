package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/stretchr/testify/require"

	"github.com/sealdrop/sealdrop/server/linkdb"
)

func fixture(now time.Time) []linkdb.Record {
	mk := func(token, name, email, phone string, age time.Duration) linkdb.Record {
		created := now.Add(-age)
		return linkdb.Record{
			Token:         token,
			DocumentID:    "doc-1",
			DocumentLabel: "Sample Agreement",
			Name:          name,
			Email:         email,
			Phone:         phone,
			CreatedAt:     dbh.MakeIntTime(created),
			ExpiresAt:     dbh.MakeIntTime(created.Add(72 * time.Hour)),
			URL:           "http://localhost:8080/r/" + token,
		}
	}

	active := mk("tok-active", "Alice", "alice@example.com", "", time.Hour)

	opened := mk("tok-opened", "Bob", "bob@example.com", "", 2*time.Hour)
	linkdb.MarkOpened(&opened, now.Add(-time.Hour))

	acked := mk("tok-acked", "Carol", "", "+1555000222", 3*time.Hour)
	linkdb.MarkOpened(&acked, now.Add(-2*time.Hour))
	linkdb.Acknowledge(&acked, now.Add(-time.Hour))

	expired := mk("tok-expired", "Dave", "dave@example.com", "", 100*time.Hour)

	revoked := mk("tok-revoked", "Erin, \"the auditor\"", "erin@example.com", "", 4*time.Hour)
	linkdb.Revoke(&revoked, now.Add(-time.Hour))

	return []linkdb.Record{active, opened, acked, expired, revoked}
}

func TestProjectCounts(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rows, counts := Project(fixture(now), Query{}, now)

	require.Equal(t, Counts{Total: 5, Active: 1, Opened: 1, Acknowledged: 1, Expired: 1, Revoked: 1}, counts)
	require.Len(t, rows, 5)

	// Newest first
	for i := 1; i < len(rows); i++ {
		require.False(t, rows[i-1].Record.CreatedAt.Get().Before(rows[i].Record.CreatedAt.Get()))
	}
	require.Equal(t, "tok-active", rows[0].Record.Token)
}

func TestProjectTextFilter(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	records := fixture(now)

	// Case-insensitive over every identifying field
	for _, q := range []string{"alice", "ALICE@EXAMPLE", "tok-active"} {
		rows, counts := Project(records, Query{Text: q}, now)
		require.Len(t, rows, 1, "query %q", q)
		require.Equal(t, "tok-active", rows[0].Record.Token)
		// Counts always cover the unfiltered set
		require.Equal(t, 5, counts.Total)
	}

	rows, _ := Project(records, Query{Text: "+1555000222"}, now)
	require.Len(t, rows, 1)
	require.Equal(t, "tok-acked", rows[0].Record.Token)

	// The document label matches every record in this fixture
	rows, _ = Project(records, Query{Text: "sample agreement"}, now)
	require.Len(t, rows, 5)

	rows, _ = Project(records, Query{Text: "no-such-thing"}, now)
	require.Empty(t, rows)
}

func TestProjectStatusFilter(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	records := fixture(now)

	rows, _ := Project(records, Query{Status: linkdb.StatusExpired}, now)
	require.Len(t, rows, 1)
	require.Equal(t, "tok-expired", rows[0].Record.Token)

	// Text and status compose
	rows, _ = Project(records, Query{Text: "example.com", Status: linkdb.StatusRevoked}, now)
	require.Len(t, rows, 1)
	require.Equal(t, "tok-revoked", rows[0].Record.Token)
}

func TestCSV(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rows, _ := Project(fixture(now), Query{}, now)

	raw, err := CSV(rows)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("\uFEFF")))

	// The output must survive a standards-compliant CSV parser, including the
	// name containing a comma and quotes
	rd := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\uFEFF"))))
	parsed, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 6)
	require.Equal(t, csvHeader, parsed[0])

	byToken := map[string][]string{}
	for _, row := range parsed[1:] {
		require.Len(t, row, 13)
		byToken[row[5]] = row
	}
	require.Equal(t, "Erin, \"the auditor\"", byToken["tok-revoked"][0])
	require.Equal(t, "Revoked", byToken["tok-revoked"][7])
	require.Equal(t, "true", byToken["tok-acked"][10])
	require.NotEmpty(t, byToken["tok-acked"][11])
	require.Empty(t, byToken["tok-active"][11])
	require.Empty(t, byToken["tok-active"][12])

	// Timestamps are RFC 3339 UTC
	created, err := time.Parse(time.RFC3339, byToken["tok-active"][8])
	require.NoError(t, err)
	require.Equal(t, now.Add(-time.Hour), created)
}
