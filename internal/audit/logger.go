// Package audit writes a best-effort audit trail of authentication events.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"auth-control-plane/internal/audit/domain"
	auditrepo "auth-control-plane/internal/audit/repository"
)

// Recorder writes a single audit event with explicit action/resource. Used by
// login, refresh, and session code paths. Record is best-effort: failures are
// logged and do not affect the caller.
type Recorder interface {
	Record(ctx context.Context, userID, action, resource, ip, metadata string)
}

// Logger implements Recorder using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  zerolog.Logger
}

// NewLogger returns a Recorder that persists to repo.
func NewLogger(repo auditrepo.Repository, log zerolog.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Record writes one audit entry. Best-effort: errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, userID, action, resource, ip, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn().Err(err).Str("action", action).Str("resource", resource).Msg("failed to write audit event")
	}
}
