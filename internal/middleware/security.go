package middleware

import (
	"net/http"
	"strings"
)

// baseHeaders go on every response. The API only returns JSON, so the CSP
// forbids every kind of subresource.
var baseHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeadersMiddleware sets hardening headers. HSTS is only sent when
// the service is served over TLS.
type SecurityHeadersMiddleware struct {
	isSecure bool
}

func NewSecurityHeadersMiddleware(isSecure bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{isSecure: isSecure}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range baseHeaders {
			h.Set(kv[0], kv[1])
		}
		if m.isSecure {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		// Organization data must not sit in shared caches.
		if strings.HasPrefix(r.URL.Path, "/api/organizations/") {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}
