package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/sealdrop/sealdrop/server/docs"
	"github.com/sealdrop/sealdrop/server/linkdb"
)

// linkView is the recipient-facing projection of a link.
type linkView struct {
	Token         string        `json:"token"`
	Name          string        `json:"name"`
	DocumentID    string        `json:"documentId"`
	DocumentLabel string        `json:"documentLabel"`
	URL           string        `json:"url"`
	Status        linkdb.Status `json:"status"`
	ExpiresAt     dbh.IntTime   `json:"expiresAt"`
	Acknowledged  bool          `json:"acknowledged"`
	Contact       string        `json:"contact,omitempty"`
}

func makeLinkView(rec *linkdb.Record, now time.Time) linkView {
	contact := rec.Email
	if contact == "" {
		contact = rec.Phone
	}
	return linkView{
		Token:         rec.Token,
		Name:          rec.Name,
		DocumentID:    rec.DocumentID,
		DocumentLabel: rec.DocumentLabel,
		URL:           rec.URL,
		Status:        linkdb.DeriveStatus(rec, now),
		ExpiresAt:     rec.ExpiresAt,
		Acknowledged:  rec.Acknowledged,
		Contact:       contact,
	}
}

// httpLinkResolve returns the state of a link to the recipient's viewer.
// Pure read: resolving never mutates the record, so a recipient can reload
// the page without burning anything. An unknown token gets the same 404
// regardless of whether it never existed or was deleted.
func (s *Server) httpLinkResolve(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	token := params.ByName("token")
	rec, err := s.links.Get(token)
	if errors.Is(err, linkdb.ErrNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	www.SendJSON(w, makeLinkView(rec, time.Now()))
}

// httpLinkMarkUsed records that the recipient's viewer rendered the document.
// Always replies 200: this is a telemetry write from an untrusted client, and
// failure must not break the viewer.
func (s *Server) httpLinkMarkUsed(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type request struct {
		Token string `json:"token"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 64*1024)
	_, err := s.links.Update(req.Token, func(rec *linkdb.Record) error {
		linkdb.MarkOpened(rec, time.Now())
		return nil
	})
	if err != nil && !errors.Is(err, linkdb.ErrNotFound) {
		s.Log.Warnf("mark-used failed for token %v: %v", req.Token, err)
	}
	www.SendOK(w)
}

// httpLinkAcknowledge records the recipient's explicit read confirmation.
func (s *Server) httpLinkAcknowledge(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type request struct {
		Token        string `json:"token"`
		Acknowledged bool   `json:"acknowledged"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 64*1024)
	if !req.Acknowledged {
		www.PanicBadRequestf("'acknowledged' must be true")
	}
	_, err := s.links.Update(req.Token, func(rec *linkdb.Record) error {
		return linkdb.Acknowledge(rec, time.Now())
	})
	if errors.Is(err, linkdb.ErrNotFound) {
		www.PanicNotFound()
	}
	if errors.Is(err, linkdb.ErrLinkClosed) {
		www.PanicForbiddenf("Link expired or revoked")
	}
	www.Check(err)
	www.SendOK(w)
}

// httpFileStream streams a document binary to the viewer.
func (s *Server) httpFileStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("documentId")
	f, doc, err := s.library.Open(id)
	if errors.Is(err, docs.ErrNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	defer f.Reader.Close()

	w.Header().Set("Content-Type", doc.ContentType())
	w.Header().Set("Content-Disposition", "inline; filename=\""+doc.FileName+"\"")
	// The payload is sensitive. Allow the recipient's own browser to hold it,
	// but no shared cache in between.
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	if _, err := io.Copy(w, f.Reader); err != nil {
		s.Log.Warnf("Error streaming document %v: %v", id, err)
	}
}
