package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/quizmaker-app/backend/internal/auth"
)

// RequestGate intercepts page requests before they are served. Protected
// paths require a valid-looking session cookie and redirect to the login
// page otherwise, preserving the requested path; auth-only paths (the login
// and signup forms) redirect authenticated visitors to the landing page.
// Paths outside both sets pass through untouched.
//
// The gate verifies signature and expiry only. A session revoked since
// issuance can slip past it for at most one request; the auth service's
// liveness check closes that window on the data-bearing call.
type RequestGate struct {
	tokenService *auth.TokenService
	cookie       auth.CookieConfig

	protectedPrefixes []string
	authOnlyPaths     []string
	loginPath         string
	landingPath       string
}

// RequestGateConfig configures the gate's path sets
type RequestGateConfig struct {
	ProtectedPrefixes []string
	AuthOnlyPaths     []string
	LoginPath         string
	LandingPath       string
}

// NewRequestGate creates a RequestGate instance
func NewRequestGate(tokenService *auth.TokenService, cookie auth.CookieConfig, cfg RequestGateConfig) *RequestGate {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/dashboard"
	}
	return &RequestGate{
		tokenService:      tokenService,
		cookie:            cookie,
		protectedPrefixes: cfg.ProtectedPrefixes,
		authOnlyPaths:     cfg.AuthOnlyPaths,
		loginPath:         cfg.LoginPath,
		landingPath:       cfg.LandingPath,
	}
}

// Handler returns the gate as chi-compatible middleware
func (g *RequestGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case g.isProtected(path):
			if !g.hasValidToken(r) {
				g.redirectToLogin(w, r)
				return
			}
		case g.isAuthOnly(path):
			if g.hasValidToken(r) {
				http.Redirect(w, r, g.landingPath, http.StatusSeeOther)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (g *RequestGate) isProtected(path string) bool {
	for _, prefix := range g.protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (g *RequestGate) isAuthOnly(path string) bool {
	for _, p := range g.authOnlyPaths {
		if path == p {
			return true
		}
	}
	return false
}

// hasValidToken performs the cheap signature/expiry check without touching
// the datastore
func (g *RequestGate) hasValidToken(r *http.Request) bool {
	token := g.cookie.TokenFromRequest(r)
	if token == "" {
		return false
	}
	_, err := g.tokenService.ValidateSessionToken(token)
	return err == nil
}

// redirectToLogin sends the visitor to the login page, carrying the
// originally requested path so it can be resumed after authentication
func (g *RequestGate) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := g.loginPath + "?return_to=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}
