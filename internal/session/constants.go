// Package session provides shared session constants used by the config,
// middleware and CSRF layers.
package session

const (
	// CookieName is the default name of the cookie the main application sets
	// at sign-in. Its value is relayed to the record store untouched.
	CookieName = "relay_session"

	// CookiePath is the path cookies issued by this service are scoped to.
	CookiePath = "/"
)
