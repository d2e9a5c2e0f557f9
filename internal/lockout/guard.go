package lockout

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	attemptKeyPrefix = "auth:failed:"
	lockKeyPrefix    = "auth:lockout:"
)

// Config holds the guard's thresholds and windows.
type Config struct {
	// MaxAttempts is the failure count at which the identifier locks.
	MaxAttempts int
	// AttemptWindow is the TTL of the failed-attempt counter.
	AttemptWindow time.Duration
	// LockoutDuration is the TTL of the lockout marker.
	LockoutDuration time.Duration
}

// Attempt reports the outcome of recording one failed login attempt.
type Attempt struct {
	Locked            bool
	FailedAttempts    int
	RemainingAttempts int
	LockoutEndsAt     *time.Time
}

// Guard is the per-identifier lockout state machine: open (no keys), warning
// (counter below threshold), locked (marker present), back to open on TTL
// expiry or explicit clear. The marker's presence, not its value, decides locked.
type Guard struct {
	store CounterStore
	cfg   Config
	log   zerolog.Logger
	nowF  func() time.Time
}

// NewGuard returns a Guard over store. Zero config fields get the defaults
// (3 attempts, 30m window, 15m lockout).
func NewGuard(store CounterStore, cfg Config, log zerolog.Logger) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 30 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	return &Guard{
		store: store,
		cfg:   cfg,
		log:   log,
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func attemptKey(identifier string) string { return attemptKeyPrefix + identifier }
func lockKey(identifier string) string    { return lockKeyPrefix + identifier }

// IsLocked reports whether the identifier is currently locked out and, when
// known, when the lockout ends. Store errors fail open: an unreachable counter
// store degrades brute-force protection but never blocks login.
func (g *Guard) IsLocked(ctx context.Context, identifier string) (bool, *time.Time) {
	val, ok, err := g.store.Get(ctx, lockKey(identifier))
	if err != nil {
		g.log.Warn().Err(err).Str("identifier", identifier).Msg("lockout check failed, failing open")
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if unix, err := strconv.ParseInt(val, 10, 64); err == nil {
		endsAt := time.Unix(unix, 0).UTC()
		return true, &endsAt
	}
	return true, nil
}

// RecordFailedAttempt atomically increments the identifier's failure counter
// and, at the threshold, arms the lockout marker. The first writer's deadline
// wins, so concurrent threshold crossings report one lockout timestamp. The
// write is best-effort: store failures are logged and an open result returned,
// because recording a failure must never fail the surrounding login.
func (g *Guard) RecordFailedAttempt(ctx context.Context, identifier string) Attempt {
	count, err := g.store.AtomicIncrementWithTTL(ctx, attemptKey(identifier), g.cfg.AttemptWindow)
	if err != nil {
		g.log.Error().Err(err).Str("identifier", identifier).Msg("failed to record login attempt")
		return Attempt{RemainingAttempts: g.cfg.MaxAttempts}
	}

	if count < int64(g.cfg.MaxAttempts) {
		return Attempt{
			FailedAttempts:    int(count),
			RemainingAttempts: g.cfg.MaxAttempts - int(count),
		}
	}

	endsAt := g.nowF().Add(g.cfg.LockoutDuration).Truncate(time.Second)
	if _, err := g.store.SetIfAbsentWithTTL(ctx, lockKey(identifier), strconv.FormatInt(endsAt.Unix(), 10), g.cfg.LockoutDuration); err != nil {
		g.log.Error().Err(err).Str("identifier", identifier).Msg("failed to set lockout marker")
	}
	// Report the marker's deadline, not ours, so racing callers agree.
	if val, ok, err := g.store.Get(ctx, lockKey(identifier)); err == nil && ok {
		if unix, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			endsAt = time.Unix(unix, 0).UTC()
		}
	}
	// The counter has served its purpose once the lockout decision is made.
	if err := g.store.Delete(ctx, attemptKey(identifier)); err != nil {
		g.log.Warn().Err(err).Str("identifier", identifier).Msg("failed to delete attempt counter")
	}

	return Attempt{
		Locked:         true,
		FailedAttempts: int(count),
		LockoutEndsAt:  &endsAt,
	}
}

// ClearLockout removes the failure counter and lockout marker in one store
// call. Called on successful login and manual unlock.
func (g *Guard) ClearLockout(ctx context.Context, identifier string) error {
	return g.store.Delete(ctx, attemptKey(identifier), lockKey(identifier))
}

// FailureCount returns the identifier's current failure count; missing counters
// return zero.
func (g *Guard) FailureCount(ctx context.Context, identifier string) (int, error) {
	val, ok, err := g.store.Get(ctx, attemptKey(identifier))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// LockedIdentifiers lists identifiers with an active lockout marker.
// Diagnostics only; never call on the login path.
func (g *Guard) LockedIdentifiers(ctx context.Context) ([]string, error) {
	keys, err := g.store.Keys(ctx, lockKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(lockKeyPrefix):])
	}
	return out, nil
}
