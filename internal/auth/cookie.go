package auth

import (
	"net/http"
	"time"
)

// CookieConfig describes the session cookie: an opaque, script-inaccessible,
// first-party credential whose max-age equals the token's validity.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// SetSessionCookie writes the session token as an HttpOnly cookie
func (c CookieConfig) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie. Called on every
// logout-family response, valid token or not, to guarantee a clean state.
func (c CookieConfig) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest extracts the session token from the transport cookie.
// Returns the empty string when no cookie is present.
func (c CookieConfig) TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
