// Package middleware contains HTTP middleware for the relay billing API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/auth"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/handler"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/session"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/subscriptionapi"
)

// =============================================================================
// Session Middleware
// =============================================================================

// SessionMiddleware attaches the caller's session cookie to the request
// context. The cookie is never validated here: it is relayed to the record
// store, which authenticates it on every call.
type SessionMiddleware struct {
	cookieName string
	logger     *slog.Logger
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(cookieName string, logger *slog.Logger) *SessionMiddleware {
	if cookieName == "" {
		cookieName = session.CookieName
	}
	return &SessionMiddleware{
		cookieName: cookieName,
		logger:     logger,
	}
}

// WithSession reads the session cookie, if any, into the context.
//
// Flow:
//
//	Request -> WithSession -> Handler
//	           |
//	           +-> Read cookie
//	           +-> Set session in context (if present)
//	           +-> Call next handler (always)
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetSession(r.Context(), subscriptionapi.Session{
			CookieName:  m.cookieName,
			CookieValue: cookie.Value,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests without a session with 401.
//
// IMPORTANT: This middleware must be used AFTER WithSession in the middleware chain.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetSession(r.Context()); !ok {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	requireSession := Stack(sessionMw.WithSession, sessionMw.RequireSession)
//	subscriptionHandler.RegisterRoutes(mux, requireSession)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).WithSession
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).RequireSession
)
