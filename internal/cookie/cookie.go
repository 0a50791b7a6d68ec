// Package cookie provides helpers for the shopper session cookie.
package cookie

import (
	"net/http"
	"time"
)

// SessionCookieName is the default name of the shopper session cookie.
const SessionCookieName = "bb_session"

// Config holds cookie configuration.
type Config struct {
	// Domain scopes cookies. Empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool
}

// NewConfig creates a new cookie configuration.
//
// Example:
//
//	cfg := cookie.NewConfig("", true)       // production, host-only
//	cfg := cookie.NewConfig("lvh.me", false) // development
func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// SetSession sets an HttpOnly, SameSite=Lax session cookie on path "/".
func (c *Config) SetSession(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSessionWithExpiry sets a session cookie with an explicit expiration time.
func (c *Config) SetSessionWithExpiry(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes a session cookie by setting MaxAge to -1.
// Domain must match the original cookie's domain.
func (c *Config) ClearSession(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
