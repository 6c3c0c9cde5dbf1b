package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/csrf"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/handler"
)

// CSRFMiddleware guards cookie-authenticated routes. Safe requests are
// issued a token; unsafe requests must echo it in the X-CSRF-Token header.
type CSRFMiddleware struct {
	isSecure bool
	logger   *slog.Logger
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(isSecure bool, logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{
		isSecure: isSecure,
		logger:   logger,
	}
}

// Protect returns middleware enforcing the double-submit check.
func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if csrf.IsSafeMethod(r.Method) {
			if _, err := csrf.EnsureToken(w, r, m.isSecure); err != nil {
				handler.InternalErrorResponse(w, r, m.logger, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf token mismatch",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getClientIP(r),
			)
			handler.ErrorResponse(w, r, m.logger, domain.Forbidden("middleware.csrf", "Missing or invalid CSRF token."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
