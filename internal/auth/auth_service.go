package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quizmaker-app/backend/internal/repository"
	"github.com/quizmaker-app/backend/internal/sanitizer"
)

// Auth service errors
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserNotFound       = errors.New("user not found")
)

// Error codes for API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
)

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RevokeSessionRequest represents the revoke-session request payload
type RevokeSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// AuthResult represents a successful signup or login: the user plus the
// signed session token handed to the transport layer.
type AuthResult struct {
	User  UserResponse
	Token string
}

// UserResponse represents the user data in responses
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// SessionResponse represents one device session in responses
type SessionResponse struct {
	ID           string    `json:"id"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Current      bool      `json:"current"`
}

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuthService composes the credential hasher, token codec and session store
// into the signup/login/logout/session-management operations.
type AuthService struct {
	userRepo          repository.UserRepository
	sessionRepo       repository.SessionRepository
	tokenService      *TokenService
	passwordValidator *PasswordValidator
	textSanitizer     *sanitizer.TextSanitizer
	logger            *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenService *TokenService,
	passwordValidator *PasswordValidator,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:          userRepo,
		sessionRepo:       sessionRepo,
		tokenService:      tokenService,
		passwordValidator: passwordValidator,
		textSanitizer:     sanitizer.NewTextSanitizer(),
		logger:            logger,
	}
}

// Signup creates a new user account, opens its first session and issues a
// session token.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest, ipAddress, userAgent string) (*AuthResult, []ValidationError, error) {
	var validationErrors []ValidationError

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if !isValidEmail(email) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "email",
			Message: "Invalid email format",
		})
	}

	fullName := s.textSanitizer.Clean(req.FullName)
	if fullName == "" {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "full_name",
			Message: "Full name is required",
		})
	}

	passwordErrors := s.passwordValidator.ValidatePassword(req.Password)
	for _, err := range passwordErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field,
			Message: err.Message,
		})
	}

	if len(validationErrors) > 0 {
		return nil, validationErrors, nil
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrEmailExists
	}

	passwordHash, err := s.passwordValidator.HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &repository.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			return nil, nil, ErrEmailExists
		}
		return nil, nil, err
	}

	token, err := s.openSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	return &AuthResult{
		User:  toUserResponse(user),
		Token: token,
	}, nil, nil
}

// Login authenticates a user. Unknown email and wrong password produce the
// same ErrInvalidCredentials so callers cannot probe for registered
// addresses. Every successful login mints a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if err := s.passwordValidator.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	// Refresh user to get the updated last_login_at
	user, err = s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.openSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:  toUserResponse(user),
		Token: token,
	}, nil
}

// Logout revokes the session referenced by the token. It is best-effort and
// idempotent: a malformed, expired or absent token still reports success so
// the client always ends up logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokenService.ValidateSessionToken(token)
	if err != nil {
		return nil
	}

	sessionID, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil
	}

	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		s.logger.Warn("failed to revoke session on logout", "session_id", sessionID, "error", err)
	}
	return nil
}

// LogoutAll revokes every session for the token's user, the calling session
// included. The caller is expected to clear its cookie immediately after.
func (s *AuthService) LogoutAll(ctx context.Context, token string) (string, error) {
	claims, err := s.tokenService.ValidateSessionToken(token)
	if err != nil {
		return "", ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return "", ErrUnauthenticated
	}

	if err := s.sessionRepo.RevokeAllForUser(ctx, userID); err != nil {
		return "", err
	}

	return userID.String(), nil
}

// WhoAmI returns the token's user, requiring both a valid token and a live
// session. The user row is re-fetched fresh so deactivation since issuance
// is observed.
func (s *AuthService) WhoAmI(ctx context.Context, token string) (*UserResponse, error) {
	claims, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// ListSessions returns the caller's live sessions, most recently active
// first.
func (s *AuthService) ListSessions(ctx context.Context, token string) ([]SessionResponse, error) {
	claims, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrUnauthenticated
	}

	sessions, err := s.sessionRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, SessionResponse{
			ID:           session.ID.String(),
			IPAddress:    session.IPAddress,
			UserAgent:    session.UserAgent,
			CreatedAt:    session.CreatedAt,
			LastActiveAt: session.LastActiveAt,
			ExpiresAt:    session.ExpiresAt,
			Current:      session.ID.String() == claims.SessionID(),
		})
	}

	return responses, nil
}

// RevokeOneSession revokes a single session after verifying it belongs to
// the caller. Another user's session id, guessed or leaked, yields
// ErrSessionNotFound and is left untouched.
func (s *AuthService) RevokeOneSession(ctx context.Context, token, sessionID string) error {
	claims, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	targetID, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	target, err := s.sessionRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if target.UserID.String() != claims.UserID() {
		return ErrSessionNotFound
	}

	return s.sessionRepo.Revoke(ctx, targetID)
}

// authenticate verifies the token signature and the liveness of the session
// it references. The liveness check also touches the session's
// last_active_at.
func (s *AuthService) authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokenService.ValidateSessionToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	sessionID, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil, ErrUnauthenticated
	}

	live, err := s.sessionRepo.TouchAndValidate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// openSession creates a session row and issues the token that references it.
// The session id is the bearer value; the stored hash covers a one-shot
// nonce kept as an audit artifact.
func (s *AuthService) openSession(ctx context.Context, user *repository.User, ipAddress, userAgent string) (string, error) {
	session := &repository.Session{
		UserID:    user.ID,
		TokenHash: HashSessionNonce(uuid.NewString()),
		ExpiresAt: time.Now().UTC().Add(s.tokenService.GetSessionTTL()),
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", err
	}

	return s.tokenService.IssueSessionToken(session.ID.String(), user.ID.String(), user.Email)
}

// toUserResponse maps a user row to its response shape
func toUserResponse(user *repository.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLoginAt,
	}
}

// isValidEmail checks if the email format is valid
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}
