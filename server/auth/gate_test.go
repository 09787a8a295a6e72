package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	gate := NewGate(NewCodec("test-secret"))

	public := []string{
		"/",
		"/login",
		"/login/reset",
		"/r/abc123",
		"/thanks",
		"/api/login",
		"/api/link/abc123",
		"/api/ack",
		"/api/mark-used",
		"/api/files/doc-1",
		"/assets/index-abc.js",
		"/favicon.ico",
		"/logo.svg",
	}
	for _, p := range public {
		require.Equal(t, RoutePublic, gate.Classify(p), "path %v", p)
	}

	protectedAPI := []string{
		"/api/links",
		"/api/links/export",
		"/api/send-draft",
		"/api/revoke",
		"/api/resend",
		"/api/delete-link",
		"/api/upload",
		"/api/list-pdfs",
		"/api/delete-pdf",
		"/api/logout",
		"/api/auth/check",
		"/api/preview-email",
		// Unlisted API paths fail closed
		"/api/some-future-endpoint",
	}
	for _, p := range protectedAPI {
		require.Equal(t, RouteProtectedAPI, gate.Classify(p), "path %v", p)
	}

	adminUI := []string{
		"/admin",
		"/admin/links",
		"/dashboard",
		// Unlisted pages fail closed
		"/some-future-page",
		// A public entry only covers its own subtree, not lookalike siblings
		"/loginAnything",
		"/thanksgiving-report",
	}
	for _, p := range adminUI {
		require.Equal(t, RouteAdminUI, gate.Classify(p), "path %v", p)
	}
}

func TestMiddleware(t *testing.T) {
	codec := NewCodec("test-secret")
	gate := NewGate(codec)
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("inner"))
	}))

	do := func(path, credential string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", path, nil)
		if credential != "" {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: credential})
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	// Public paths pass through untouched
	require.Equal(t, 200, do("/r/abc", "").Code)

	// Admin UI without a credential redirects to login, preserving the target
	w := do("/admin/links", "")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?next=%2Fadmin%2Flinks", w.Header().Get("Location"))

	// Protected API without a credential gets a machine readable 401
	w = do("/api/links", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	// A valid credential opens both
	cred := codec.Issue("admin", time.Hour)
	require.Equal(t, 200, do("/admin/links", cred).Code)
	require.Equal(t, 200, do("/api/links", cred).Code)

	// An expired credential is as good as none
	expired := codec.IssueAt("admin", time.Now().Add(-2*time.Hour), time.Hour)
	require.Equal(t, http.StatusUnauthorized, do("/api/links", expired).Code)
}
