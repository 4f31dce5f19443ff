package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"pgregory.net/rapid"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenServiceConfig{
		SigningSecret: "test-signing-secret-key-32-chars",
		SessionTTL:    7 * 24 * time.Hour,
		Issuer:        "test-issuer",
	})
}

// For any session ID, user ID and email, issuing then validating a token
// returns the same identity claims.
func TestSessionTokenRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sessionID := rapid.StringMatching(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`).Draw(t, "sessionID")
		userID := rapid.StringMatching(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`).Draw(t, "userID")
		email := rapid.StringMatching(`[a-z]{5,10}@[a-z]{5,10}\.[a-z]{2,3}`).Draw(t, "email")

		svc := newTestTokenService()

		token, err := svc.IssueSessionToken(sessionID, userID, email)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		parts := strings.Split(token, ".")
		if len(parts) != 3 {
			t.Fatalf("token should have 3 parts, got %d", len(parts))
		}

		claims, err := svc.ValidateSessionToken(token)
		if err != nil {
			t.Fatalf("failed to validate token: %v", err)
		}

		if claims.SessionID() != sessionID {
			t.Errorf("session ID mismatch: expected %s, got %s", sessionID, claims.SessionID())
		}
		if claims.UserID() != userID {
			t.Errorf("user ID mismatch: expected %s, got %s", userID, claims.UserID())
		}
		if claims.Email != email {
			t.Errorf("email mismatch: expected %s, got %s", email, claims.Email)
		}
	})
}

func TestSessionTokenExpiry(t *testing.T) {
	svc := newTestTokenService()
	beforeIssue := time.Now()

	token, err := svc.IssueSessionToken("session-1", "user-1", "test@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	afterIssue := time.Now()

	claims, err := svc.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	// Expiry should be TTL from issuance with 1 second tolerance
	expiry := claims.ExpiresAt.Time
	if expiry.Before(beforeIssue.Add(svc.GetSessionTTL()).Add(-1*time.Second)) ||
		expiry.After(afterIssue.Add(svc.GetSessionTTL()).Add(1*time.Second)) {
		t.Errorf("token expiry incorrect: got %v", expiry)
	}

	if claims.IssuedAt == nil {
		t.Error("token missing iat claim")
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("expected issuer test-issuer, got %s", claims.Issuer)
	}
}

func TestValidateSessionToken_ExpiredRejected(t *testing.T) {
	svc := NewTokenService(TokenServiceConfig{
		SigningSecret: "test-signing-secret-key-32-chars",
		SessionTTL:    -1 * time.Minute,
		Issuer:        "test-issuer",
	})

	token, err := svc.IssueSessionToken("session-1", "user-1", "test@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := svc.ValidateSessionToken(token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestValidateSessionToken_TamperedRejected(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueSessionToken("session-1", "user-1", "test@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	// Flip a character in the payload segment
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := svc.ValidateSessionToken(tampered); err == nil {
		t.Error("tampered token should be rejected")
	}
}

func TestValidateSessionToken_WrongSecretRejected(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService(TokenServiceConfig{
		SigningSecret: "a-completely-different-secret-key",
		SessionTTL:    7 * 24 * time.Hour,
		Issuer:        "test-issuer",
	})

	token, err := other.IssueSessionToken("session-1", "user-1", "test@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := svc.ValidateSessionToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func TestValidateSessionToken_MalformedRejected(t *testing.T) {
	svc := newTestTokenService()

	for _, token := range []string{"", "not-a-token", "a.b.c", "invalid.jwt.token"} {
		if _, err := svc.ValidateSessionToken(token); err == nil {
			t.Errorf("malformed token %q should be rejected", token)
		}
	}
}

func TestValidateSessionToken_MissingIdentityClaimsRejected(t *testing.T) {
	secret := "test-signing-secret-key-32-chars"
	svc := NewTokenService(TokenServiceConfig{
		SigningSecret: secret,
		SessionTTL:    7 * 24 * time.Hour,
		Issuer:        "test-issuer",
	})

	// Sign a structurally valid token that lacks jti and sub
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateSessionToken(token); err == nil {
		t.Error("token without identity claims should be rejected")
	}
}

func TestSessionTokenSignedWithHS256(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueSessionToken("session-1", "user-1", "test@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, &Claims{})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	if parsed.Method.Alg() != "HS256" {
		t.Errorf("expected HS256 signing method, got %s", parsed.Method.Alg())
	}
}

func TestHashSessionNonce(t *testing.T) {
	hash1 := HashSessionNonce("nonce-value")
	hash2 := HashSessionNonce("nonce-value")
	hash3 := HashSessionNonce("other-value")

	if hash1 != hash2 {
		t.Error("hashing the same nonce should be deterministic")
	}
	if hash1 == hash3 {
		t.Error("different nonces should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(hash1))
	}
	if hash1 == "nonce-value" || strings.Contains(hash1, "nonce") {
		t.Error("hash must not contain the raw nonce")
	}
}
