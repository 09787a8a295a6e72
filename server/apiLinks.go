package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/sealdrop/sealdrop/server/docs"
	"github.com/sealdrop/sealdrop/server/linkdb"
	"github.com/sealdrop/sealdrop/server/notify"
	"github.com/sealdrop/sealdrop/server/report"
)

const mailTimeout = 10 * time.Second

func (s *Server) httpLinksList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	query := report.Query{Text: www.QueryValue(r, "q")}
	if status, ok := linkdb.ParseStatus(www.QueryValue(r, "status")); ok {
		query.Status = status
	}
	records, err := s.links.ListAll()
	www.Check(err)
	rows, counts := report.Project(derefAll(records), query, time.Now())
	type response struct {
		Links  []report.Row  `json:"links"`
		Counts report.Counts `json:"counts"`
	}
	www.SendJSON(w, response{Links: rows, Counts: counts})
}

func (s *Server) httpLinksExport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	records, err := s.links.ListAll()
	www.Check(err)
	rows, _ := report.Project(derefAll(records), report.Query{}, time.Now())
	csv, err := report.CSV(rows)
	www.Check(err)
	filename := fmt.Sprintf("links-%v.csv", time.Now().Format("20060102-150405"))
	www.SendFileDownload(w, filename, "text/csv; charset=utf-8", csv)
}

// sendResult is the per-recipient outcome of a send-draft request. A failed
// delivery does not undo the created link: the admin can resend later.
type sendResult struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Token     string `json:"token,omitempty"`
	URL       string `json:"url,omitempty"`
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) httpSendDraft(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type recipient struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	type request struct {
		DocumentID   string      `json:"documentId"`
		Recipients   []recipient `json:"recipients"`
		ExpiresHours int         `json:"expiresHours"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 1024*1024)

	doc, err := s.library.Get(req.DocumentID)
	if errors.Is(err, docs.ErrNotFound) {
		www.PanicBadRequestf("Unknown document '%v'", req.DocumentID)
	}
	www.Check(err)

	ttl := s.linkTTL
	if req.ExpiresHours > 0 {
		ttl = time.Duration(req.ExpiresHours) * time.Hour
	}

	// Clean the roster before creating anything. Rows without a name, or
	// without any contact channel (typically half-filled lines pasted from a
	// spreadsheet), are dropped silently. Every record we mint below has a
	// name and at least one of email or phone.
	cleaned := []recipient{}
	for _, rcp := range req.Recipients {
		rcp.Name = strings.TrimSpace(rcp.Name)
		rcp.Email = strings.ToLower(strings.TrimSpace(rcp.Email))
		rcp.Phone = strings.TrimSpace(rcp.Phone)
		if rcp.Name == "" || (rcp.Email == "" && rcp.Phone == "") {
			continue
		}
		cleaned = append(cleaned, rcp)
	}
	if len(cleaned) == 0 {
		www.PanicBadRequestf("No recipients")
	}

	now := time.Now()
	results := make([]sendResult, 0, len(cleaned))
	for _, rcp := range cleaned {
		res := sendResult{Name: rcp.Name, Email: rcp.Email, Phone: rcp.Phone}
		rec := &linkdb.Record{
			Token:         linkdb.NewToken(),
			DocumentID:    doc.DocumentID,
			DocumentLabel: doc.Label(),
			Name:          rcp.Name,
			Email:         rcp.Email,
			Phone:         rcp.Phone,
			CreatedAt:     dbh.MakeIntTime(now),
			ExpiresAt:     dbh.MakeIntTime(now.Add(ttl)),
		}
		rec.URL = s.linkURL(rec.Token)
		if err := s.links.Create(rec); err != nil {
			s.Log.Errorf("Failed to create link for %v: %v", rcp.Name, err)
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Token = rec.Token
		res.URL = rec.URL

		switch {
		case rcp.Email == "":
			// The link exists either way. Phone-only recipients have no
			// delivery channel here (no SMS transport), so the admin copies
			// the URL from the result into whatever channel they use.
			res.Error = "No delivery channel: recipient has no email address"
		case s.notifier == nil:
			res.Error = "Mail delivery is not configured"
		default:
			messageID, err := s.sendLinkMail(rec, false)
			if err != nil {
				s.Log.Warnf("Failed to send link mail to %v: %v", rcp.Email, err)
				res.Error = err.Error()
			} else {
				res.OK = true
				res.MessageID = messageID
			}
		}
		results = append(results, res)
	}
	s.Log.Infof("send-draft: created %v link(s) for document %v", len(results), doc.DocumentID)
	www.SendJSON(w, results)
}

func (s *Server) sendLinkMail(rec *linkdb.Record, resend bool) (string, error) {
	data := notify.TemplateData{
		Name:          rec.Name,
		DocumentLabel: rec.DocumentLabel,
		URL:           rec.URL,
		ExpiresAt:     rec.ExpiresAt.Get(),
		Resend:        resend,
	}
	html, err := notify.RenderHTML(data)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()
	return s.notifier.Send(ctx, notify.Message{
		To:      rec.Email,
		Subject: notify.Subject(resend),
		HTML:    html,
		Text:    notify.RenderText(data),
	})
}

func (s *Server) httpLinkRevoke(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := tokenRequest(w, r)
	rec, err := s.links.Update(req, func(rec *linkdb.Record) error {
		linkdb.Revoke(rec, time.Now())
		return nil
	})
	if errors.Is(err, linkdb.ErrNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	s.Log.Infof("Revoked link %v", req)
	www.SendJSON(w, report.Row{Record: *rec, Status: linkdb.DeriveStatus(rec, time.Now())})
}

func (s *Server) httpLinkResend(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	token := tokenRequest(w, r)
	// Resend is pure re-delivery: it never touches the link's status, and a
	// revoked or expired link can still be resent (the recipient will see the
	// closed state when they open it). Backfill the URL for records minted
	// before it was persisted, so the resent mail always carries a working
	// address.
	rec, err := s.links.Update(token, func(rec *linkdb.Record) error {
		if rec.URL == "" {
			rec.URL = s.linkURL(rec.Token)
		}
		if !rec.HasContact() {
			return linkdb.ErrNoContact
		}
		return nil
	})
	if errors.Is(err, linkdb.ErrNotFound) {
		www.PanicNotFound()
	}
	if errors.Is(err, linkdb.ErrNoContact) {
		www.PanicBadRequestf("Link has no contact channel")
	}
	www.Check(err)

	res := sendResult{Name: rec.Name, Email: rec.Email, Phone: rec.Phone, Token: rec.Token, URL: rec.URL}
	switch {
	case rec.Email == "":
		res.Error = "No delivery channel: recipient has no email address"
	case s.notifier == nil:
		res.Error = "Mail delivery is not configured"
	default:
		messageID, err := s.sendLinkMail(rec, true)
		if err != nil {
			s.Log.Warnf("Failed to resend link mail to %v: %v", rec.Email, err)
			res.Error = err.Error()
		} else {
			res.OK = true
			res.MessageID = messageID
		}
	}
	www.SendJSON(w, res)
}

func (s *Server) httpLinkDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	token := tokenRequest(w, r)
	www.Check(s.links.Delete(token))
	s.Log.Infof("Deleted link %v", token)
	www.SendOK(w)
}

func (s *Server) httpPreviewEmail(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	html, err := notify.RenderHTML(notify.PreviewData(s.config.BaseURL))
	www.Check(err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func tokenRequest(w http.ResponseWriter, r *http.Request) string {
	type request struct {
		Token string `json:"token"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 64*1024)
	if req.Token == "" {
		www.PanicBadRequestf("'token' is required")
	}
	return req.Token
}

func derefAll(records []*linkdb.Record) []linkdb.Record {
	out := make([]linkdb.Record, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	return out
}
