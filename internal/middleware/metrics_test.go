package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Metrics Auth Middleware Tests
// =============================================================================

func TestMetricsAuthMiddleware(t *testing.T) {
	type creds struct{ user, pass string }

	tests := []struct {
		name       string
		configured creds
		sent       *creds
		wantStatus int
	}{
		{"valid credentials", creds{"admin", "secret123"}, &creds{"admin", "secret123"}, http.StatusOK},
		{"no credentials", creds{"admin", "secret123"}, nil, http.StatusUnauthorized},
		{"wrong password", creds{"admin", "secret123"}, &creds{"admin", "secret124"}, http.StatusUnauthorized},
		{"wrong user", creds{"admin", "secret123"}, &creds{"root", "secret123"}, http.StatusUnauthorized},
		{"prefix of password", creds{"admin", "secret123"}, &creds{"admin", "secret"}, http.StatusUnauthorized},
		{"password only", creds{"", "secret123"}, &creds{"", "secret123"}, http.StatusOK},
		{"disabled", creds{}, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMetricsAuthMiddleware(tt.configured.user, tt.configured.pass, newTestLogger())
			called := false
			wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, _ = w.Write([]byte("metrics data"))
			}))

			req := httptest.NewRequest("GET", "/metrics", nil)
			if tt.sent != nil {
				req.SetBasicAuth(tt.sent.user, tt.sent.pass)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, rec.Header().Get("WWW-Authenticate"))
				assert.Contains(t, rec.Body.String(), `"unauthorized"`)
			} else {
				assert.Equal(t, "metrics data", rec.Body.String())
			}
		})
	}
}

func TestMetricsAuthMiddleware_Enabled(t *testing.T) {
	assert.False(t, NewMetricsAuthMiddleware("", "", newTestLogger()).Enabled())
	assert.True(t, NewMetricsAuthMiddleware("admin", "", newTestLogger()).Enabled())
}
