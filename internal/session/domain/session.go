package domain

import "time"

// Session is one persisted refresh session. Rows are historical: revocation and
// rotation flip RevokedAt, they never delete.
type Session struct {
	ID               string
	UserID           string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	Device           string
	IP               string
	LastUsedAt       *time.Time
	RefreshTokenHash string
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool { return s.RevokedAt != nil }

// Expired reports whether the session's lifetime has passed at now.
func (s *Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool { return !s.Revoked() && !s.Expired(now) }
