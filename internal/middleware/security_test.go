package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecured(isSecure bool, method, path string) *httptest.ResponseRecorder {
	mw := NewSecurityHeadersMiddleware(isSecure)
	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	rec := serveSecured(false, "GET", "/api/pricing/tiers")

	expected := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
		"Permissions-Policy":     "geolocation=(), microphone=(), camera=()",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{"default-src 'none'", "frame-ancestors 'none'"} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP should contain %q, got %q", directive, csp)
		}
	}
}

func TestSecurityHeadersMiddleware_HSTS(t *testing.T) {
	if got := serveSecured(true, "GET", "/").Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=31536000") {
		t.Errorf("expected HSTS in production, got %q", got)
	}
	if got := serveSecured(false, "GET", "/").Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS in development, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_NoStoreForOrganizationData(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/organizations/abc/subscription/preview", "no-store"},
		{"/api/pricing/tiers", ""},
	}

	for _, tt := range tests {
		if got := serveSecured(false, "GET", tt.path).Header().Get("Cache-Control"); got != tt.want {
			t.Errorf("%s: expected Cache-Control %q, got %q", tt.path, tt.want, got)
		}
	}
}

func TestSecurityHeadersMiddleware_PassesThroughRequests(t *testing.T) {
	rec := serveSecured(false, "POST", "/api/pricing/preview")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("expected body to pass through, got %q", rec.Body.String())
	}
}
