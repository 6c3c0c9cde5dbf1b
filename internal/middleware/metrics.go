package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/handler"
)

// MetricsAuthMiddleware guards /metrics with HTTP basic auth. With no
// credentials configured it lets every request through.
type MetricsAuthMiddleware struct {
	user, pass [sha256.Size]byte
	enabled    bool
	logger     *slog.Logger
}

func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		user:    sha256.Sum256([]byte(username)),
		pass:    sha256.Sum256([]byte(password)),
		enabled: username != "" || password != "",
		logger:  logger,
	}
}

func (m *MetricsAuthMiddleware) Enabled() bool { return m.enabled }

func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.enabled && !m.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorized compares digests so neither the length nor the content of the
// configured credentials leaks through timing.
func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userOK := subtle.ConstantTimeCompare(u[:], m.user[:])
	passOK := subtle.ConstantTimeCompare(p[:], m.pass[:])
	return userOK&passOK == 1
}
