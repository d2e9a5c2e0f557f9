// Package lockout defends login against brute-force guessing with a
// per-identifier failed-attempt counter and a time-windowed lockout marker,
// both held in a durable counter store with per-key TTLs.
package lockout

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the counter store backend is unreachable.
// It is internal bookkeeping state; callers must not surface it verbatim.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// CounterStore is the durable key-value store the guard runs on. Implementations
// must make AtomicIncrementWithTTL a single indivisible operation: increment
// plus TTL-set-on-create, so a burst of failures extends at most the original
// window, never a rolling one.
type CounterStore interface {
	// AtomicIncrementWithTTL increments key by one and, only when the increment
	// creates the key, attaches ttl. Returns the post-increment value.
	AtomicIncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetWithTTL stores value under key with the given ttl, replacing any prior value.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsentWithTTL stores value under key with ttl only if key does not
	// exist. Returns true if the value was written.
	SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes the given keys in one round trip. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Keys returns keys matching the glob pattern. Diagnostics only; never on the login path.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
