// Package auth provides session context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/subscriptionapi"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the key used to store the caller's session in context.
	sessionContextKey contextKey = "session"
)

// GetSession retrieves the caller's session from the context.
//
// The session is opaque here: it is relayed to the record store, which
// decides whether it is valid. ok is false when no session was attached.
//
// Usage:
//
//	session, ok := auth.GetSession(r.Context())
//	if !ok {
//	    // Handle unauthenticated request
//	}
func GetSession(ctx context.Context) (subscriptionapi.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(subscriptionapi.Session)
	if !ok || session.CookieValue == "" {
		return subscriptionapi.Session{}, false
	}
	return session, true
}

// GetSessionFromRequest retrieves the caller's session from the request context.
func GetSessionFromRequest(r *http.Request) (subscriptionapi.Session, bool) {
	return GetSession(r.Context())
}

// SetSession stores a session in the context.
//
// This is typically called by session middleware after reading the cookie.
func SetSession(ctx context.Context, session subscriptionapi.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
