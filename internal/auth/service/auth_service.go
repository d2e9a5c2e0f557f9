// Package service composes the credential validator, lockout guard, token
// issuer, and session manager into login, refresh, logout, and
// session-management operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"auth-control-plane/internal/audit"
	"auth-control-plane/internal/lockout"
	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	sessionrepo "auth-control-plane/internal/session/repository"
	sessionservice "auth-control-plane/internal/session/service"
	"auth-control-plane/internal/telemetry"
	userdomain "auth-control-plane/internal/user/domain"
)

// TokenPair is the outcome of a successful login or refresh.
type TokenPair struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string
}

// CredentialValidator checks identifier+secret and returns the sanitized user.
type CredentialValidator interface {
	Validate(ctx context.Context, identifier, secret string) (*userdomain.User, error)
}

// LockoutGuard is the brute-force defense consumed by login.
type LockoutGuard interface {
	IsLocked(ctx context.Context, identifier string) (bool, *time.Time)
	RecordFailedAttempt(ctx context.Context, identifier string) lockout.Attempt
	ClearLockout(ctx context.Context, identifier string) error
}

// SessionManager is the session store surface consumed by the orchestrator.
type SessionManager interface {
	Create(ctx context.Context, userID, ip, device string) (*sessiondomain.Session, string, error)
	Validate(ctx context.Context, id string) (*sessiondomain.Session, error)
	Rotate(ctx context.Context, s *sessiondomain.Session) (*sessiondomain.Session, string, error)
	Revoke(ctx context.Context, userID, id string) error
	ListActive(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Analytics(ctx context.Context, userID string) (*sessionrepo.Analytics, error)
	DetectSuspiciousActivity(ctx context.Context, userID string) ([]sessionservice.Finding, error)
}

// AuthService implements login, refresh, logout, and session management.
type AuthService struct {
	users     UserDirectory
	validator CredentialValidator
	guard     LockoutGuard
	sessions  SessionManager
	tokens    *security.TokenProvider
	audit     audit.Recorder
	metrics   *telemetry.AuthMetrics
	log       zerolog.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
// audit may be nil (no trail); metrics may be nil (no counters).
func NewAuthService(
	users UserDirectory,
	validator CredentialValidator,
	guard LockoutGuard,
	sessions SessionManager,
	tokens *security.TokenProvider,
	auditLog audit.Recorder,
	metrics *telemetry.AuthMetrics,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		validator: validator,
		guard:     guard,
		sessions:  sessions,
		tokens:    tokens,
		audit:     auditLog,
		metrics:   metrics,
		log:       log,
	}
}

func (s *AuthService) auditEvent(ctx context.Context, userID, action, resource, ip, metadata string) {
	if s.audit != nil {
		s.audit.Record(ctx, userID, action, resource, ip, metadata)
	}
}

// Login authenticates identifier+secret and returns a fresh token pair bound
// to a new session. The lockout gate runs before the credential check, so a
// locked identifier costs no hashing work and leaks no timing signal.
func (s *AuthService) Login(ctx context.Context, identifier, secret, ip, device string) (*TokenPair, error) {
	if locked, endsAt := s.guard.IsLocked(ctx, identifier); locked {
		s.metrics.RecordLogin(ctx, "locked")
		s.auditEvent(ctx, "", "login_rejected", "lockout", ip, identifier)
		e := &AccountLockedError{}
		if endsAt != nil {
			e.EndsAt = *endsAt
		}
		return nil, e
	}

	user, err := s.validator.Validate(ctx, identifier, secret)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			attempt := s.guard.RecordFailedAttempt(ctx, identifier)
			s.metrics.RecordLogin(ctx, "invalid_credentials")
			s.auditEvent(ctx, "", "login_failure", "credentials", ip,
				fmt.Sprintf("attempts=%d", attempt.FailedAttempts))
			if attempt.Locked {
				s.metrics.RecordLockout(ctx)
				s.auditEvent(ctx, "", "account_locked", "lockout", ip, identifier)
			}
			return nil, ErrInvalidCredentials
		case errors.Is(err, ErrAccountNotVerified):
			s.metrics.RecordLogin(ctx, "not_verified")
			return nil, ErrAccountNotVerified
		default:
			s.metrics.RecordLogin(ctx, "error")
			s.log.Error().Err(err).Msg("login: user lookup failed")
			return nil, err
		}
	}

	if err := s.guard.ClearLockout(ctx, identifier); err != nil {
		// Best-effort: a stale counter must not fail a valid login.
		s.log.Warn().Err(err).Msg("login: failed to clear lockout state")
	}

	kind := userdomain.ClassifyIdentifier(identifier)
	var (
		accessToken  string
		accessExpiry time.Time
		refreshToken string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accessToken, accessExpiry, err = s.tokens.IssueAccess(user.ID, string(user.Role), string(kind), identifier)
		return err
	})
	g.Go(func() error {
		var err error
		_, refreshToken, err = s.sessions.Create(gctx, user.ID, ip, device)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.RecordLogin(ctx, "error")
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("login: failed to issue tokens")
		return nil, err
	}

	s.metrics.RecordLogin(ctx, "success")
	s.auditEvent(ctx, user.ID, "login_success", "session", ip, device)
	return &TokenPair{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExpiry,
		RefreshToken:         refreshToken,
	}, nil
}

// Refresh redeems a refresh token: the presented session is revoked, a
// replacement created, and a new token pair issued. Every failure mode
// (bad signature, unknown jti, revoked, expired, store trouble) collapses to
// ErrInvalidRefreshToken — refresh fails closed, forcing re-login, because
// wrongly trusting an unconfirmed session is the more dangerous failure.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.RecordRefreshRejection(ctx)
		return nil, ErrInvalidRefreshToken
	}

	sess, err := s.sessions.Validate(ctx, claims.ID)
	if err != nil {
		s.metrics.RecordRefreshRejection(ctx)
		s.log.Error().Err(err).Str("session_id", claims.ID).Msg("refresh: session lookup failed, failing closed")
		return nil, ErrInvalidRefreshToken
	}
	now := time.Now().UTC()
	if sess == nil || !sess.Active(now) {
		s.metrics.RecordRefreshRejection(ctx)
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		s.metrics.RecordRefreshRejection(ctx)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil || user == nil {
		s.metrics.RecordRefreshRejection(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("refresh: user lookup failed, failing closed")
		}
		return nil, ErrInvalidRefreshToken
	}

	newSess, newRefresh, err := s.sessions.Rotate(ctx, sess)
	if err != nil {
		s.metrics.RecordRefreshRejection(ctx)
		if !errors.Is(err, sessionservice.ErrSessionNotFound) {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("refresh: rotation failed")
		}
		return nil, ErrInvalidRefreshToken
	}

	identifier, kind := user.PrimaryIdentifier()
	accessToken, accessExpiry, err := s.tokens.IssueAccess(user.ID, string(user.Role), string(kind), identifier)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRotation(ctx)
	s.auditEvent(ctx, user.ID, "refresh_rotated", "session", sess.IP,
		fmt.Sprintf("old=%s new=%s", sess.ID, newSess.ID))
	return &TokenPair{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExpiry,
		RefreshToken:         newRefresh,
	}, nil
}

// Logout revokes the one named session, or all of the user's sessions when
// sessionID is empty. The session store enforces ownership.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.sessions.Revoke(ctx, userID, sessionID); err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	s.metrics.RecordRevocation(ctx, 1)
	s.auditEvent(ctx, userID, "logout", "session", "", sessionID)
	return nil
}

// RevokeSession revokes one session on behalf of an operator; it is Logout
// with a mandatory session id.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}
	return s.Logout(ctx, userID, sessionID)
}

// ListSessions returns the user's active sessions.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// SessionAnalytics returns aggregate session counts for one user, or globally
// when userID is empty.
func (s *AuthService) SessionAnalytics(ctx context.Context, userID string) (*sessionrepo.Analytics, error) {
	return s.sessions.Analytics(ctx, userID)
}

// SuspiciousActivity returns deterministic findings over the user's sessions.
func (s *AuthService) SuspiciousActivity(ctx context.Context, userID string) ([]sessionservice.Finding, error) {
	return s.sessions.DetectSuspiciousActivity(ctx, userID)
}
