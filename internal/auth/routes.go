package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers all authentication routes with the Chi router.
// Public routes: /signup, /login, /logout (logout is public on purpose: it
// must succeed for stale or malformed tokens too).
// Protected routes: /logout-all, /me, /sessions.
func RegisterRoutes(r chi.Router, handler *AuthHandler, authMiddleware Middleware) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", handler.Signup)
		r.Post("/login", handler.Login)
		r.Post("/logout", handler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout-all", handler.LogoutAll)
			r.Get("/me", handler.Me)
			r.Get("/sessions", handler.ListSessions)
			r.Delete("/sessions", handler.RevokeSession)
		})
	})
}
