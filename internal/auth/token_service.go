package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the session token claims. The session ID travels in the
// registered ID (jti) claim and the user ID in the subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the user ID from the Subject claim
func (c *Claims) UserID() string {
	return c.Subject
}

// SessionID returns the session ID from the ID claim
func (c *Claims) SessionID() string {
	return c.ID
}

// TokenService signs and verifies session tokens with a single process-wide
// secret. It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	signingSecret string
	sessionTTL    time.Duration
	issuer        string
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	SigningSecret string
	SessionTTL    time.Duration
	Issuer        string
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	return &TokenService{
		signingSecret: cfg.SigningSecret,
		sessionTTL:    cfg.SessionTTL,
		issuer:        cfg.Issuer,
	}
}

// IssueSessionToken generates a signed token embedding the session ID, user
// ID and email, expiring after the configured session TTL.
func (s *TokenService) IssueSessionToken(sessionID, userID, email string) (string, error) {
	now := time.Now()

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.signingSecret))
}

// ValidateSessionToken checks signature integrity and expiry and returns the
// claims. Malformed, tampered and expired tokens all fail; callers collapse
// every failure into the same unauthenticated outcome.
func (s *TokenService) ValidateSessionToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.signingSecret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token missing identity claims")
	}

	return claims, nil
}

// HashSessionNonce creates a SHA-256 hash of the session-creation nonce for
// storage. The raw nonce is never persisted.
func HashSessionNonce(nonce string) string {
	hash := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(hash[:])
}

// GetSessionTTL returns the session lifetime
func (s *TokenService) GetSessionTTL() time.Duration {
	return s.sessionTTL
}
