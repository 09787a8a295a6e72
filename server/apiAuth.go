package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/sealdrop/sealdrop/server/auth"
)

// setCredentialCookie installs (or clears, with maxAge -1) the admin
// credential cookie. HttpOnly keeps it away from page scripts, SameSite=Lax
// stops it riding along on cross-site POSTs.
func setCredentialCookie(w http.ResponseWriter, credential string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    credential,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) httpLogin(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 64*1024)
	if !s.verifyAdminPassword(req.Username, req.Password) {
		s.Log.Infof("Rejected login for '%v' from %v", req.Username, r.RemoteAddr)
		www.Panic(http.StatusUnauthorized, "Invalid credentials")
	}
	credential := s.codec.Issue(req.Username, auth.DefaultTTL)
	setCredentialCookie(w, credential, int(auth.DefaultTTL.Seconds()))
	s.Log.Infof("Admin '%v' logged in from %v", req.Username, r.RemoteAddr)
	www.SendOK(w)
}

func (s *Server) httpLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	// Credentials are stateless, so logout is purely client side: drop the
	// cookie. The credential itself remains valid until expiry.
	setCredentialCookie(w, "", -1)
	www.SendOK(w)
}

func (s *Server) httpAuthCheck(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	subject, ok := s.gate.Authorize(r)
	if !ok {
		// The gate already rejected unauthorized callers, but the check
		// endpoint re-verifies so it keeps working if it is ever reclassified.
		www.Panic(http.StatusUnauthorized, "Unauthorized")
	}
	type response struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	www.SendJSON(w, response{Authenticated: true, Username: subject})
}
