// Package service manages the lifecycle of refresh sessions: creation, raw
// validation, ownership-checked revocation, rotation, and read-only analytics.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session/domain"
	"auth-control-plane/internal/session/repository"
)

// ErrSessionNotFound is returned when a revocation targets no owned, unrevoked session.
var ErrSessionNotFound = errors.New("session not found")

const (
	// suspicionWindow bounds the "recent" heuristics in DetectSuspiciousActivity.
	suspicionWindow = 15 * time.Minute
	// maxConcurrentSessions is the active-session count considered excessive.
	maxConcurrentSessions = 10
)

// Finding is one deterministic suspicious-activity observation.
type Finding struct {
	Code   string
	Detail string
}

// Manager composes the session repository and token issuer into the session
// store operations the auth orchestrator consumes.
type Manager struct {
	repo   repository.Repository
	tokens *security.TokenProvider
	log    zerolog.Logger
	nowF   func() time.Time
}

// NewManager returns a Manager over repo, signing refresh tokens with tokens.
func NewManager(repo repository.Repository, tokens *security.TokenProvider, log zerolog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		tokens: tokens,
		log:    log,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new session for userID and returns it with its signed
// refresh token. The token's jti is the session id; only its SHA-256 hash is stored.
func (m *Manager) Create(ctx context.Context, userID, ip, device string) (*domain.Session, string, error) {
	id := uuid.New().String()
	token, expiresAt, err := m.tokens.IssueRefresh(id, userID)
	if err != nil {
		return nil, "", fmt.Errorf("issue refresh token: %w", err)
	}
	s := &domain.Session{
		ID:               id,
		UserID:           userID,
		IssuedAt:         m.nowF(),
		ExpiresAt:        expiresAt,
		Device:           device,
		IP:               ip,
		RefreshTokenHash: security.HashRefreshToken(token),
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, "", err
	}
	return s, token, nil
}

// Validate returns the raw session for id, or nil if unknown. It deliberately
// does not judge revoked or expired state; callers decide, so telemetry can
// distinguish the cases.
func (m *Manager) Validate(ctx context.Context, id string) (*domain.Session, error) {
	return m.repo.GetByID(ctx, id)
}

// Rotate redeems the presented session: it revokes it and creates a replacement
// carrying the same user, device, and IP, returning the new session and its
// refresh token. Revoke runs first so a crash mid-rotation leaves the presented
// token unusable (forcing re-login) instead of replayable. A rotation whose
// revoke matches no row lost a race with another redemption and fails.
func (m *Manager) Rotate(ctx context.Context, s *domain.Session) (*domain.Session, string, error) {
	now := m.nowF()
	if err := m.repo.UpdateLastUsed(ctx, s.ID, now); err != nil {
		m.log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to touch session last-used")
	}
	ok, err := m.repo.Revoke(ctx, s.UserID, s.ID, now)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	return m.Create(ctx, s.UserID, s.IP, s.Device)
}

// Revoke revokes the one session matching id for userID, or every session of
// userID when id is empty. Revoking a session that is not the user's own, or
// is already revoked, returns ErrSessionNotFound.
func (m *Manager) Revoke(ctx context.Context, userID, id string) error {
	now := m.nowF()
	if id == "" {
		return m.repo.RevokeAllByUser(ctx, userID, now)
	}
	ok, err := m.repo.Revoke(ctx, userID, id, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// ListActive returns the user's non-revoked, non-expired sessions.
func (m *Manager) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return m.repo.ListActiveByUser(ctx, userID, m.nowF())
}

// Analytics returns aggregate session counts for one user, or globally when
// userID is empty.
func (m *Manager) Analytics(ctx context.Context, userID string) (*repository.Analytics, error) {
	return m.repo.Aggregate(ctx, userID, m.nowF())
}

// DetectSuspiciousActivity applies fixed heuristics over the user's active
// sessions. Findings are deterministic for a given session set and ordered by
// code: distinct IPs seen recently, a burst of new sessions, and an excessive
// active-session count.
func (m *Manager) DetectSuspiciousActivity(ctx context.Context, userID string) ([]Finding, error) {
	active, err := m.repo.ListActiveByUser(ctx, userID, m.nowF())
	if err != nil {
		return nil, err
	}

	now := m.nowF()
	threshold := now.Add(-suspicionWindow)
	recentIPs := make(map[string]struct{})
	recentCreated := 0
	for _, s := range active {
		recent := s.IssuedAt.After(threshold) || (s.LastUsedAt != nil && s.LastUsedAt.After(threshold))
		if recent && s.IP != "" {
			recentIPs[s.IP] = struct{}{}
		}
		if s.IssuedAt.After(threshold) {
			recentCreated++
		}
	}

	var findings []Finding
	if len(recentIPs) >= 2 {
		findings = append(findings, Finding{
			Code:   "concurrent_distinct_ips",
			Detail: fmt.Sprintf("%d distinct IPs active within %s", len(recentIPs), suspicionWindow),
		})
	}
	if recentCreated >= 3 {
		findings = append(findings, Finding{
			Code:   "rapid_session_creation",
			Detail: fmt.Sprintf("%d sessions created within %s", recentCreated, suspicionWindow),
		})
	}
	if len(active) >= maxConcurrentSessions {
		findings = append(findings, Finding{
			Code:   "excessive_active_sessions",
			Detail: fmt.Sprintf("%d concurrent active sessions", len(active)),
		})
	}
	return findings, nil
}
