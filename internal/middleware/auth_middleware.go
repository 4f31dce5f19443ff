package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/quizmaker-app/backend/internal/auth"
	appctx "github.com/quizmaker-app/backend/internal/context"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMiddleware guards protected API routes. It performs the cheap check
// only (token signature and expiry, no datastore hit); session liveness is
// enforced again by the auth service on the data-bearing call.
type AuthMiddleware struct {
	tokenService *auth.TokenService
	cookie       auth.CookieConfig
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(tokenService *auth.TokenService, cookie auth.CookieConfig) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		cookie:       cookie,
	}
}

// Authenticate validates the session cookie and injects the caller's
// identity into the request context. Missing, malformed and expired tokens
// all produce the same response.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.cookie.TokenFromRequest(r)
		if token == "" {
			m.writeError(w, http.StatusUnauthorized, auth.CodeUnauthenticated, "Authentication required")
			return
		}

		claims, err := m.tokenService.ValidateSessionToken(token)
		if err != nil {
			m.writeError(w, http.StatusUnauthorized, auth.CodeUnauthenticated, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), appctx.UserIDKey, claims.UserID())
		ctx = context.WithValue(ctx, appctx.EmailKey, claims.Email)
		ctx = context.WithValue(ctx, appctx.SessionIDKey, claims.SessionID())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeError writes a JSON error response
func (m *AuthMiddleware) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}
