package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

//go:embed www
var staticWWW embed.FS

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Brute force protection on the single admin account. Keyed by IP, so a
	// forgetful admin behind NAT can lock out their colleagues for a minute.
	loginLimiter := httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	www.Handle(s.Log, router, "POST", "/api/login", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		loginLimiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.httpLogin(w, r)
		})).ServeHTTP(w, r)
	})

	// Recipient-facing. The access gate in front of the router lets these
	// through without a credential.
	handle("GET", "/api/link/:token", s.httpLinkResolve)
	handle("POST", "/api/ack", s.httpLinkAcknowledge)
	handle("POST", "/api/mark-used", s.httpLinkMarkUsed)
	handle("GET", "/api/files/:documentId", s.httpFileStream)

	// Admin. The access gate rejects these without a valid credential, so the
	// handlers run only for an authenticated admin.
	handle("POST", "/api/logout", s.httpLogout)
	handle("GET", "/api/auth/check", s.httpAuthCheck)
	handle("GET", "/api/links", s.httpLinksList)
	handle("GET", "/api/links/export", s.httpLinksExport)
	handle("POST", "/api/send-draft", s.httpSendDraft)
	handle("POST", "/api/revoke", s.httpLinkRevoke)
	handle("POST", "/api/resend", s.httpLinkResend)
	handle("POST", "/api/delete-link", s.httpLinkDelete)
	handle("POST", "/api/upload", s.httpDocUpload)
	handle("GET", "/api/list-pdfs", s.httpDocList)
	handle("POST", "/api/delete-pdf", s.httpDocDelete)
	handle("GET", "/api/preview-email", s.httpPreviewEmail)

	isImmutable := true
	var fsys fs.FS
	fsysRoot := "www"
	fsys = staticWWW
	if s.HotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			s.Log.Errorf("Failed to resolve static file directory %v: %v. Run 'npm run build' in 'www' to build static files.", relRoot, err)
			return errors.New("Failed to resolve static file directory for hot reload")
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}

	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/"}, s.Log, isImmutable, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v. Run 'npm run build' in 'www' to build static files. If you're using 'npm run dev', then you can ignore this warning.", err)
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}
