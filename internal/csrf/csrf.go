// Package csrf provides CSRF protection for cookie-authenticated JSON
// endpoints using the double-submit pattern.
//
// The pattern works by:
// 1. Setting a random token in a cookie on safe requests
// 2. Echoing the same token in the X-CSRF-Token response header
// 3. On unsafe requests, requiring the client to send the token back in the
//    X-CSRF-Token request header and comparing it with the cookie
//
// A cross-site page can make the browser send our cookies but cannot read
// them or our response headers, so it cannot supply the matching header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/session"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "relay_csrf"

	// HeaderName carries the token in both directions.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge is the lifetime of the CSRF cookie (12 hours).
	CookieMaxAge = 12 * 60 * 60
)

// =============================================================================
// Token Generation
// =============================================================================

// GenerateToken generates a cryptographically secure random token.
//
// The token is 32 bytes of random data, base64 URL-encoded.
// This produces a 44-character string.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// =============================================================================
// Token Validation
// =============================================================================

// ValidateToken compares the cookie token with the header token in constant
// time. Empty tokens never match.
func ValidateToken(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}

// ValidateRequest reports whether the request's X-CSRF-Token header matches
// its CSRF cookie.
func ValidateRequest(r *http.Request) bool {
	return ValidateToken(GetTokenFromRequest(r), r.Header.Get(HeaderName))
}

// IsSafeMethod reports whether method cannot change state and so needs no
// token.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// =============================================================================
// Cookie Management
// =============================================================================

// SetCookie sets the CSRF token cookie on the response.
//
// The cookie is HttpOnly because clients read the token from the response
// header, not the cookie. SameSite=Strict keeps it off cross-site requests
// entirely in browsers that support it.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetTokenFromRequest retrieves the CSRF token from the request cookie.
// Returns empty string if cookie doesn't exist.
func GetTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// =============================================================================
// Handler Helpers
// =============================================================================

// EnsureToken returns the request's existing token, or issues a new one in
// a cookie. Either way the token is echoed in the X-CSRF-Token header.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	token := GetTokenFromRequest(r)
	if token == "" {
		var err error
		if token, err = GenerateToken(); err != nil {
			return "", err
		}
		SetCookie(w, token, isSecure)
	}

	w.Header().Set(HeaderName, token)
	return token, nil
}
