package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Uploads are buffered to disk above this size.
const maxUploadMemory = 16 * 1024 * 1024

func (s *Server) httpDocUpload(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.Check(r.ParseMultipartForm(maxUploadMemory))
	file, header, err := r.FormFile("file")
	if err != nil {
		www.PanicBadRequestf("Missing 'file' form field")
	}
	defer file.Close()
	if header.Filename == "" {
		www.PanicBadRequestf("Uploaded file has no name")
	}
	doc, err := s.library.Upload(file, header.Filename, r.FormValue("title"))
	www.Check(err)
	www.SendJSON(w, doc)
}

func (s *Server) httpDocList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.library.List())
}

// httpDocDelete removes a document, and optionally every link that points at
// it. Without deleteLinks, surviving links keep their records but resolve to
// a missing document.
func (s *Server) httpDocDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type request struct {
		DocumentID  string `json:"documentId"`
		DeleteLinks bool   `json:"deleteLinks"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 64*1024)
	if req.DocumentID == "" {
		www.PanicBadRequestf("'documentId' is required")
	}

	deletedLinks := 0
	if req.DeleteLinks {
		records, err := s.links.ListAll()
		www.Check(err)
		for _, rec := range records {
			if rec.DocumentID == req.DocumentID {
				www.Check(s.links.Delete(rec.Token))
				deletedLinks++
			}
		}
	}
	www.Check(s.library.Delete(req.DocumentID))
	s.Log.Infof("Deleted document %v (%v links removed)", req.DocumentID, deletedLinks)

	type response struct {
		OK           bool `json:"ok"`
		DeletedLinks int  `json:"deletedLinks"`
	}
	www.SendJSON(w, response{OK: true, DeletedLinks: deletedLinks})
}
