package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session repository errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository defines the interface for session data access.
// Every operation is a single atomic statement against the store; no
// application-level locking is required on top.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// TouchAndValidate reports whether the session is live. It is a
	// side-effecting read: a live session gets its last_active_at bumped, and
	// a session found past its expiry is flipped inactive before false is
	// returned.
	TouchAndValidate(ctx context.Context, id uuid.UUID) (bool, error)
	// Revoke idempotently deactivates a session. Absent or already inactive
	// sessions are not an error.
	Revoke(ctx context.Context, id uuid.UUID) error
	// RevokeAllForUser idempotently deactivates every session owned by the
	// user, the caller's current session included.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	// ListActive returns live sessions ordered most-recently-active first,
	// without touching last_active_at.
	ListActive(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	// DeactivateExpired bulk-flips every expired-but-still-active session and
	// returns the number of rows affected.
	DeactivateExpired(ctx context.Context) (int64, error)
}

// sessionRepository implements SessionRepository using PostgreSQL
type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

// Create inserts a new session into the database
func (r *sessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, ip_address, user_agent, expires_at, last_active_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id, created_at
	`

	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		session.UserID,
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
		session.LastActiveAt,
	).Scan(&session.ID, &session.CreatedAt)

	if err != nil {
		return err
	}

	session.IsActive = true
	return nil
}

// GetByID retrieves a session by its ID
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, user_id, token_hash, ip_address, user_agent, created_at, expires_at, last_active_at, is_active
		FROM sessions
		WHERE id = $1
	`

	session := &Session{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActiveAt,
		&session.IsActive,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

// TouchAndValidate checks liveness and bumps last_active_at in one statement.
// Expired rows are lazily flipped inactive by a second single-statement write.
func (r *sessionRepository) TouchAndValidate(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()

	touch := `
		UPDATE sessions
		SET last_active_at = $1
		WHERE id = $2 AND is_active = true AND expires_at > $1
	`

	result, err := r.pool.Exec(ctx, touch, now, id)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Lazy expiry: deactivate the row if it exists but has run out.
	expire := `
		UPDATE sessions
		SET is_active = false
		WHERE id = $1 AND is_active = true AND expires_at <= $2
	`

	if _, err := r.pool.Exec(ctx, expire, id, now); err != nil {
		return false, err
	}

	return false, nil
}

// Revoke sets is_active to false for the session
func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET is_active = false WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// RevokeAllForUser sets is_active to false for every session owned by userID
func (r *sessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE sessions SET is_active = false WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// ListActive returns live sessions for the user, most recently active first
func (r *sessionRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	query := `
		SELECT id, user_id, token_hash, ip_address, user_agent, created_at, expires_at, last_active_at, is_active
		FROM sessions
		WHERE user_id = $1 AND is_active = true AND expires_at > $2
		ORDER BY last_active_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.TokenHash,
			&session.IPAddress,
			&session.UserAgent,
			&session.CreatedAt,
			&session.ExpiresAt,
			&session.LastActiveAt,
			&session.IsActive,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// DeactivateExpired flips every expired active session in one statement
func (r *sessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `UPDATE sessions SET is_active = false WHERE is_active = true AND expires_at <= $1`

	result, err := r.pool.Exec(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
