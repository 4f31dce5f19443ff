package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestUser(t *testing.T, repo *MemoryUserRepository, email string) *User {
	t.Helper()
	user := &User{
		Email:        email,
		PasswordHash: "$2a$12$fakehashfakehashfakehash",
		FullName:     "Test User",
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func newTestSession(t *testing.T, repo *MemorySessionRepository, userID uuid.UUID, expiresAt time.Time) *Session {
	t.Helper()
	session := &Session{
		UserID:    userID,
		TokenHash: "hash-" + uuid.NewString(),
		ExpiresAt: expiresAt,
	}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func TestMemoryUserRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user := newTestUser(t, repo, "Test@Example.com")

	if user.ID == uuid.Nil {
		t.Error("create should assign an ID")
	}
	if user.Email != "test@example.com" {
		t.Errorf("email should be stored lowercased, got %s", user.Email)
	}
	if !user.IsActive {
		t.Error("new users should be active")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("create should stamp timestamps")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Email != user.Email {
		t.Errorf("GetByID email mismatch: got %s", byID.Email)
	}

	byEmail, err := repo.GetByEmail(ctx, "TEST@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Error("GetByEmail should be case-insensitive")
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryUserRepository_EmailUniqueness(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	newTestUser(t, repo, "test@example.com")

	dup := &User{Email: "TEST@example.com", PasswordHash: "x"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}

	exists, err := repo.EmailExists(ctx, "Test@Example.COM")
	if err != nil {
		t.Fatalf("EmailExists failed: %v", err)
	}
	if !exists {
		t.Error("EmailExists should match case-insensitively")
	}

	exists, _ = repo.EmailExists(ctx, "other@example.com")
	if exists {
		t.Error("EmailExists should be false for unregistered address")
	}
}

func TestMemoryUserRepository_UpdateLastLogin(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user := newTestUser(t, repo, "test@example.com")
	if user.LastLoginAt != nil {
		t.Fatal("last_login_at should start unset")
	}

	if err := repo.UpdateLastLogin(ctx, user.ID); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	updated, _ := repo.GetByID(ctx, user.ID)
	if updated.LastLoginAt == nil {
		t.Error("last_login_at should be set after UpdateLastLogin")
	}

	if err := repo.UpdateLastLogin(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSessionLiveness(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		session Session
		live    bool
	}{
		{"active and unexpired", Session{IsActive: true, ExpiresAt: now.Add(time.Hour)}, true},
		{"active but expired", Session{IsActive: true, ExpiresAt: now.Add(-time.Hour)}, false},
		{"revoked but unexpired", Session{IsActive: false, ExpiresAt: now.Add(time.Hour)}, false},
		{"revoked and expired", Session{IsActive: false, ExpiresAt: now.Add(-time.Hour)}, false},
		{"expiring exactly now", Session{IsActive: true, ExpiresAt: now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Live(now); got != tt.live {
				t.Errorf("Live() = %v, want %v", got, tt.live)
			}
		})
	}
}

func TestMemorySessionRepository_TouchAndValidate(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	user := newTestUser(t, userRepo, "test@example.com")
	session := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))

	before := session.LastActiveAt
	time.Sleep(2 * time.Millisecond)

	live, err := sessionRepo.TouchAndValidate(ctx, session.ID)
	if err != nil {
		t.Fatalf("TouchAndValidate failed: %v", err)
	}
	if !live {
		t.Error("live session should validate")
	}

	touched, _ := sessionRepo.GetByID(ctx, session.ID)
	if !touched.LastActiveAt.After(before) {
		t.Error("validation should advance last_active_at")
	}

	// Unknown session is simply not live
	live, err = sessionRepo.TouchAndValidate(ctx, uuid.New())
	if err != nil {
		t.Fatalf("TouchAndValidate failed: %v", err)
	}
	if live {
		t.Error("unknown session should not validate")
	}
}

// Expiry is observed lazily: the first touch after the deadline flips the
// session inactive as a side effect of reporting it dead.
func TestMemorySessionRepository_LazyExpiry(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	user := newTestUser(t, userRepo, "test@example.com")
	session := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(-time.Minute))

	stored, _ := sessionRepo.GetByID(ctx, session.ID)
	if !stored.IsActive {
		t.Fatal("session should start active even when already expired")
	}

	live, err := sessionRepo.TouchAndValidate(ctx, session.ID)
	if err != nil {
		t.Fatalf("TouchAndValidate failed: %v", err)
	}
	if live {
		t.Error("expired session should not validate")
	}

	stored, _ = sessionRepo.GetByID(ctx, session.ID)
	if stored.IsActive {
		t.Error("expired session should be flipped inactive on first touch")
	}
	if !stored.LastActiveAt.Equal(session.LastActiveAt) {
		t.Error("failed validation must not advance last_active_at")
	}
}

func TestMemorySessionRepository_RevokeIdempotent(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	user := newTestUser(t, userRepo, "test@example.com")
	session := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))

	if err := sessionRepo.Revoke(ctx, session.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	stored, _ := sessionRepo.GetByID(ctx, session.ID)
	if stored.IsActive {
		t.Error("revoked session should be inactive")
	}

	// Repeating and unknown IDs are both no-ops
	if err := sessionRepo.Revoke(ctx, session.ID); err != nil {
		t.Errorf("second revoke should succeed, got %v", err)
	}
	if err := sessionRepo.Revoke(ctx, uuid.New()); err != nil {
		t.Errorf("revoking unknown session should succeed, got %v", err)
	}
}

func TestMemorySessionRepository_RevokeAllForUser(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	alice := newTestUser(t, userRepo, "alice@example.com")
	bob := newTestUser(t, userRepo, "bob@example.com")

	a1 := newTestSession(t, sessionRepo, alice.ID, time.Now().UTC().Add(time.Hour))
	a2 := newTestSession(t, sessionRepo, alice.ID, time.Now().UTC().Add(time.Hour))
	b1 := newTestSession(t, sessionRepo, bob.ID, time.Now().UTC().Add(time.Hour))

	if err := sessionRepo.RevokeAllForUser(ctx, alice.ID); err != nil {
		t.Fatalf("RevokeAllForUser failed: %v", err)
	}

	for _, id := range []uuid.UUID{a1.ID, a2.ID} {
		stored, _ := sessionRepo.GetByID(ctx, id)
		if stored.IsActive {
			t.Errorf("session %s should be revoked", id)
		}
	}
	stored, _ := sessionRepo.GetByID(ctx, b1.ID)
	if !stored.IsActive {
		t.Error("other users' sessions must be untouched")
	}
}

func TestMemorySessionRepository_ListActive(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	user := newTestUser(t, userRepo, "test@example.com")

	old := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))
	time.Sleep(2 * time.Millisecond)
	recent := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))
	revoked := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))
	expired := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(-time.Hour))

	if err := sessionRepo.Revoke(ctx, revoked.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	sessions, err := sessionRepo.ListActive(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 live sessions, got %d", len(sessions))
	}
	if sessions[0].ID != recent.ID || sessions[1].ID != old.ID {
		t.Error("sessions should be ordered most recently active first")
	}
	for _, s := range sessions {
		if s.ID == revoked.ID || s.ID == expired.ID {
			t.Errorf("dead session %s should not be listed", s.ID)
		}
	}
}

func TestMemorySessionRepository_DeactivateExpired(t *testing.T) {
	userRepo := NewMemoryUserRepository()
	sessionRepo := NewMemorySessionRepository()
	ctx := context.Background()

	user := newTestUser(t, userRepo, "test@example.com")

	live := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(time.Hour))
	expired1 := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(-time.Hour))
	expired2 := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(-time.Minute))
	revoked := newTestSession(t, sessionRepo, user.ID, time.Now().UTC().Add(-time.Hour))
	if err := sessionRepo.Revoke(ctx, revoked.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	count, err := sessionRepo.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("DeactivateExpired failed: %v", err)
	}
	// The already-revoked one does not count
	if count != 2 {
		t.Errorf("expected 2 deactivated sessions, got %d", count)
	}

	for _, id := range []uuid.UUID{expired1.ID, expired2.ID} {
		stored, _ := sessionRepo.GetByID(ctx, id)
		if stored.IsActive {
			t.Errorf("expired session %s should be inactive", id)
		}
	}
	stored, _ := sessionRepo.GetByID(ctx, live.ID)
	if !stored.IsActive {
		t.Error("unexpired session must stay active")
	}

	// A second sweep finds nothing
	count, err = sessionRepo.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("DeactivateExpired failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 on repeated sweep, got %d", count)
	}
}
