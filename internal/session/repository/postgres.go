package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auth-control-plane/internal/session/domain"
)

const sessionColumns = `id, user_id, issued_at, expires_at, revoked_at, device, ip, last_used_at, refresh_token_hash`

// PostgresRepository is the database-backed session store.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, issued_at, expires_at, revoked_at, device, ip, last_used_at, refresh_token_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.UserID, s.IssuedAt, s.ExpiresAt, timeToNullTime(s.RevokedAt), s.Device, s.IP, timeToNullTime(s.LastUsedAt), s.RefreshTokenHash)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// Revoke marks the session revoked, guarded by ownership so one user can never
// revoke another's session. Returns whether a row changed.
func (r *PostgresRepository) Revoke(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllByUser revokes all non-revoked sessions for the given user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, at)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// ListActiveByUser returns the user's non-revoked, non-expired sessions, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY issued_at DESC
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateLastUsed sets the session's last-used timestamp for the given id.
func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last used: %w", err)
	}
	return nil
}

// Aggregate returns session analytics for one user, or globally when userID is empty.
func (r *PostgresRepository) Aggregate(ctx context.Context, userID string, now time.Time) (*Analytics, error) {
	var a Analytics
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE revoked_at IS NULL AND expires_at > $2),
			COUNT(*) FILTER (WHERE revoked_at IS NOT NULL),
			COUNT(DISTINCT device) FILTER (WHERE device <> ''),
			COUNT(DISTINCT ip) FILTER (WHERE ip <> '')
		FROM sessions
		WHERE $1 = '' OR user_id = $1
	`, userID, now).Scan(&a.ActiveSessions, &a.RevokedSessions, &a.DistinctDevices, &a.DistinctIPs)
	if err != nil {
		return nil, fmt.Errorf("aggregate sessions: %w", err)
	}
	return &a, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func scanSession(scan func(dest ...any) error) (*domain.Session, error) {
	var s domain.Session
	var revokedAt, lastUsedAt sql.NullTime
	if err := scan(&s.ID, &s.UserID, &s.IssuedAt, &s.ExpiresAt, &revokedAt, &s.Device, &s.IP, &lastUsedAt, &s.RefreshTokenHash); err != nil {
		return nil, err
	}
	s.RevokedAt = nullTimeToPtr(revokedAt)
	s.LastUsedAt = nullTimeToPtr(lastUsedAt)
	return &s, nil
}
