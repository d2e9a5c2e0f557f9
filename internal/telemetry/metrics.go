// Package telemetry defines the authentication meters exported over OTLP.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts authentication outcomes. A nil *AuthMetrics is valid and
// records nothing, so callers never need nil checks.
type AuthMetrics struct {
	loginAttempts     metric.Int64Counter
	lockouts          metric.Int64Counter
	rotations         metric.Int64Counter
	refreshRejections metric.Int64Counter
	revocations       metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on the given meter provider.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter("auth-control-plane")

	loginAttempts, err := meter.Int64Counter("auth.login.attempts",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	lockouts, err := meter.Int64Counter("auth.lockouts",
		metric.WithDescription("Account lockouts triggered"))
	if err != nil {
		return nil, err
	}
	rotations, err := meter.Int64Counter("auth.refresh.rotations",
		metric.WithDescription("Refresh tokens successfully rotated"))
	if err != nil {
		return nil, err
	}
	refreshRejections, err := meter.Int64Counter("auth.refresh.rejections",
		metric.WithDescription("Refresh tokens rejected"))
	if err != nil {
		return nil, err
	}
	revocations, err := meter.Int64Counter("auth.sessions.revocations",
		metric.WithDescription("Sessions revoked by logout or admin action"))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		loginAttempts:     loginAttempts,
		lockouts:          lockouts,
		rotations:         rotations,
		refreshRejections: refreshRejections,
		revocations:       revocations,
	}, nil
}

// RecordLogin counts one login attempt with the given outcome
// (success, invalid_credentials, not_verified, locked, error).
func (m *AuthMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordLockout counts one lockout being triggered.
func (m *AuthMetrics) RecordLockout(ctx context.Context) {
	if m == nil {
		return
	}
	m.lockouts.Add(ctx, 1)
}

// RecordRotation counts one successful refresh rotation.
func (m *AuthMetrics) RecordRotation(ctx context.Context) {
	if m == nil {
		return
	}
	m.rotations.Add(ctx, 1)
}

// RecordRefreshRejection counts one rejected refresh token.
func (m *AuthMetrics) RecordRefreshRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.refreshRejections.Add(ctx, 1)
}

// RecordRevocation counts n sessions revoked.
func (m *AuthMetrics) RecordRevocation(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.revocations.Add(ctx, n)
}
