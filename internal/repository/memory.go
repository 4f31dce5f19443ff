package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory store drivers, selected by STORE_DRIVER=memory for local runs and
// tests. A single mutex per store gives each operation the same
// statement-level atomicity the SQL drivers get from the database.

// MemoryUserRepository is an in-memory UserRepository
type MemoryUserRepository struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

// NewMemoryUserRepository creates an empty in-memory user store
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

var _ UserRepository = (*MemoryUserRepository)(nil)

// Create inserts a new user
func (m *MemoryUserRepository) Create(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := m.byEmail[email]; exists {
		return ErrEmailAlreadyExists
	}

	now := time.Now().UTC()
	user.ID = uuid.New()
	user.Email = email
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	m.users[user.ID] = &stored
	m.byEmail[email] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (m *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetByEmail retrieves a user by email (case-insensitive)
func (m *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *m.users[id]
	return &copied, nil
}

// EmailExists checks for a registered email (case-insensitive)
func (m *MemoryUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.byEmail[strings.ToLower(email)]
	return ok, nil
}

// UpdateLastLogin stamps last_login_at for the user
func (m *MemoryUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// SetActive toggles the account flag. Used by tests and admin tooling; the
// SQL driver's equivalent is a plain UPDATE.
func (m *MemoryUserRepository) SetActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[id]; ok {
		user.IsActive = active
	}
}

// MemorySessionRepository is an in-memory SessionRepository
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewMemorySessionRepository creates an empty in-memory session store
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[uuid.UUID]*Session),
	}
}

var _ SessionRepository = (*MemorySessionRepository)(nil)

// Create inserts a new session
func (m *MemorySessionRepository) Create(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	session.ID = uuid.New()
	session.CreatedAt = now
	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = now
	}
	session.IsActive = true

	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

// GetByID retrieves a session by ID
func (m *MemorySessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// TouchAndValidate mirrors the SQL driver's lazy-expiry contract
func (m *MemorySessionRepository) TouchAndValidate(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok || !session.IsActive {
		return false, nil
	}

	now := time.Now().UTC()
	if !now.Before(session.ExpiresAt) {
		session.IsActive = false
		return false, nil
	}

	session.LastActiveAt = now
	return true, nil
}

// Revoke idempotently deactivates a session
func (m *MemorySessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		session.IsActive = false
	}
	return nil
}

// RevokeAllForUser deactivates every session owned by userID
func (m *MemorySessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

// ListActive returns live sessions, most recently active first
func (m *MemorySessionRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var sessions []*Session
	for _, session := range m.sessions {
		if session.UserID == userID && session.Live(now) {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})

	return sessions, nil
}

// DeactivateExpired flips expired active sessions and reports the count
func (m *MemorySessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var count int64
	for _, session := range m.sessions {
		if session.IsActive && !now.Before(session.ExpiresAt) {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}
