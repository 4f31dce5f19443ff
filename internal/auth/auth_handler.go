package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quizmaker-app/backend/internal/metrics"
)

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	authService *AuthService
	cookie      CookieConfig
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService *AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		validate:    validator.New(),
	}
}

// Signup handles account creation
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return
	}

	if details := h.requiredFieldErrors(req); details != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return
	}

	result, validationErrors, err := h.authService.Signup(r.Context(), req, getClientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			metrics.AuthAttemptsTotal.WithLabelValues("signup", "conflict").Inc()
			h.writeError(w, http.StatusConflict, CodeEmailExists, "An account with this email already exists", nil)
			return
		}
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		return
	}

	if len(validationErrors) > 0 {
		details := make(map[string][]string)
		for _, ve := range validationErrors {
			details[ve.Field] = append(details[ve.Field], ve.Message)
		}
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "invalid").Inc()
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()
	h.cookie.SetSessionCookie(w, result.Token)
	h.writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"user": result.User,
	})
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return
	}

	if details := h.requiredFieldErrors(req); details != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return
	}

	result, err := h.authService.Login(r.Context(), req, getClientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Deliberately identical for unknown email and wrong password
			metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
			h.writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password", nil)
			return
		}
		if errors.Is(err, ErrAccountInactive) {
			metrics.AuthAttemptsTotal.WithLabelValues("login", "inactive").Inc()
			h.writeError(w, http.StatusForbidden, CodeAccountInactive, "This account has been deactivated", nil)
			return
		}
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	h.cookie.SetSessionCookie(w, result.Token)
	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user": result.User,
	})
}

// Logout revokes the current session. Always succeeds and always clears the
// cookie, even when no valid token was presented.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.TokenFromRequest(r)

	_ = h.authService.Logout(r.Context(), token)
	metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()

	h.cookie.ClearSessionCookie(w)
	h.writeSuccess(w, http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

// LogoutAll revokes every session for the calling user
// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.TokenFromRequest(r)

	if _, err := h.authService.LogoutAll(r.Context(), token); err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			h.writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		return
	}

	metrics.SessionsRevokedTotal.WithLabelValues("logout_all").Inc()
	h.cookie.ClearSessionCookie(w)
	h.writeSuccess(w, http.StatusOK, map[string]string{
		"message": "Logged out of all sessions",
	})
}

// Me returns the current user
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.TokenFromRequest(r)

	user, err := h.authService.WhoAmI(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			h.writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
		case errors.Is(err, ErrAccountInactive):
			h.writeError(w, http.StatusForbidden, CodeAccountInactive, "This account has been deactivated", nil)
		case errors.Is(err, ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, CodeNotFound, "User not found", nil)
		default:
			h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		}
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// ListSessions returns the caller's live sessions
// GET /api/v1/auth/sessions
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.TokenFromRequest(r)

	sessions, err := h.authService.ListSessions(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			h.writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// RevokeSession revokes one of the caller's sessions by id
// DELETE /api/v1/auth/sessions
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	var req RevokeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return
	}

	if req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "session_id is required", nil)
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "session_id is not a valid id", nil)
		return
	}

	token := h.cookie.TokenFromRequest(r)

	if err := h.authService.RevokeOneSession(r.Context(), token, req.SessionID); err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			h.writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
		case errors.Is(err, ErrSessionNotFound):
			h.writeError(w, http.StatusNotFound, CodeNotFound, "Session not found", nil)
		default:
			h.writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
		}
		return
	}

	metrics.SessionsRevokedTotal.WithLabelValues("revoke").Inc()
	h.writeSuccess(w, http.StatusOK, map[string]string{
		"message": "Session revoked",
	})
}

// requiredFieldErrors runs struct-tag validation and maps failures to
// field-level details, or returns nil when the request is well formed.
func (h *AuthHandler) requiredFieldErrors(req interface{}) map[string][]string {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string][]string)
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			field := strings.ToLower(fe.Field())
			if fe.Field() == "FullName" {
				field = "full_name"
			}
			details[field] = append(details[field], field+" is required")
		}
	}
	if len(details) == 0 {
		details["request"] = []string{"invalid request"}
	}
	return details
}

// writeSuccess writes a successful JSON response
func (h *AuthHandler) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// writeError writes an error JSON response
func (h *AuthHandler) writeError(w http.ResponseWriter, statusCode int, code, message string, details map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
