package repository

import (
	"context"
	"time"

	"auth-control-plane/internal/session/domain"
)

// Analytics aggregates session counts, read-only.
type Analytics struct {
	ActiveSessions  int
	RevokedSessions int
	DistinctDevices int
	DistinctIPs     int
}

// Repository persists refresh sessions.
type Repository interface {
	// Create persists the session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Revoke marks the session revoked at the given time, but only when it
	// belongs to userID and is not already revoked. Returns whether a row changed.
	Revoke(ctx context.Context, userID, id string, at time.Time) (bool, error)
	// RevokeAllByUser revokes every non-revoked session of userID.
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
	// ListActiveByUser returns the user's non-revoked, non-expired sessions,
	// newest first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// UpdateLastUsed sets the session's last-used timestamp.
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	// Aggregate returns session analytics for one user, or for all users when
	// userID is empty.
	Aggregate(ctx context.Context, userID string, now time.Time) (*Analytics, error)
}
