package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// SessionCookie is the name of the cookie carrying the admin credential.
const SessionCookie = "auth"

// RouteClass is the authorization class of a request path.
type RouteClass int

const (
	// RoutePublic requires no credential: recipient-facing link resolution,
	// acknowledgment, document streaming, login, static assets.
	RoutePublic RouteClass = iota
	// RouteAdminUI requires a valid credential; without one the browser is
	// redirected to the login page with a "next" hint.
	RouteAdminUI
	// RouteProtectedAPI requires a valid credential; without one the caller
	// gets a machine readable 401, never a redirect.
	RouteProtectedAPI
)

var publicPrefixes = []string{
	"/api/link/",
	"/api/ack",
	"/api/mark-used",
	"/api/files/",
	"/api/login",
	"/login",
	"/r/",
	"/thanks",
	"/assets/",
	"/favicon.ico",
}

var protectedAPIPrefixes = []string{
	"/api/send-draft",
	"/api/links",
	"/api/revoke",
	"/api/resend",
	"/api/delete-link",
	"/api/upload",
	"/api/list-pdfs",
	"/api/delete-pdf",
	"/api/logout",
	"/api/auth/",
	"/api/preview-email",
}

// Gate makes the request-time authorization decision for every inbound path.
// Unclassified paths fail closed: an unlisted path under /api is treated as
// protected API, and any other unlisted path (except obvious static assets)
// as admin UI. A forgotten route therefore demands a credential instead of
// leaking through.
type Gate struct {
	codec *Codec
}

func NewGate(codec *Codec) *Gate {
	return &Gate{codec: codec}
}

func (g *Gate) Classify(path string) RouteClass {
	if path == "/" {
		return RoutePublic
	}
	if pathMatchesAny(path, publicPrefixes) {
		return RoutePublic
	}
	if pathMatchesAny(path, protectedAPIPrefixes) {
		return RouteProtectedAPI
	}
	if strings.HasPrefix(path, "/api/") {
		return RouteProtectedAPI
	}
	if isStaticAsset(path) {
		return RoutePublic
	}
	return RouteAdminUI
}

// Authorize extracts and verifies the credential cookie.
// Returns the authenticated subject, or ("", false).
func (g *Gate) Authorize(r *http.Request) (string, bool) {
	cookie, _ := r.Cookie(SessionCookie)
	if cookie == nil {
		return "", false
	}
	return g.codec.Verify(cookie.Value)
}

// Middleware wraps 'next' with the classify/authorize decision.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.Classify(r.URL.Path) {
		case RoutePublic:
			next.ServeHTTP(w, r)
		case RouteAdminUI:
			if _, ok := g.Authorize(r); !ok {
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		case RouteProtectedAPI:
			if _, ok := g.Authorize(r); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		}
	})
}

// An entry ending in "/" is a prefix match. Any other entry matches the path
// exactly, or as a directory, so "/login" covers "/login" and "/login/x" but
// never "/loginAnything".
func pathMatchesAny(path string, entries []string) bool {
	for _, e := range entries {
		if strings.HasSuffix(e, "/") {
			if strings.HasPrefix(path, e) {
				return true
			}
		} else if path == e || strings.HasPrefix(path, e+"/") {
			return true
		}
	}
	return false
}

// A path whose final segment has an extension is served as a static asset
// (js/css/images emitted by the SPA build).
func isStaticAsset(path string) bool {
	last := path[strings.LastIndexByte(path, '/')+1:]
	return strings.ContainsRune(last, '.')
}
