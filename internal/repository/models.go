package repository

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account in the database
type User struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FullName     string     `db:"full_name"`
	IsActive     bool       `db:"is_active"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

// Session represents one authenticated device/browser instance.
// A session is live iff IsActive is true and the current time is before
// ExpiresAt. Once flipped inactive a session id is never reactivated.
type Session struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	TokenHash    string    `db:"token_hash"`
	IPAddress    *string   `db:"ip_address"`
	UserAgent    *string   `db:"user_agent"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
	LastActiveAt time.Time `db:"last_active_at"`
	IsActive     bool      `db:"is_active"`
}

// Live reports whether the session is active and unexpired at the given time
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
