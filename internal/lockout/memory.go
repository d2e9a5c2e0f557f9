package lockout

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process CounterStore for single-instance
// development and tests. It must not back a multi-instance deployment: the
// counters it holds are invisible to other processes.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]memEntry
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]memEntry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// expired reports whether e is past its TTL. Zero expiresAt means no TTL.
func (s *MemoryStore) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(s.nowF())
}

// AtomicIncrementWithTTL increments key under the store lock, attaching ttl only on creation.
func (s *MemoryStore) AtomicIncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if ok && s.expired(e) {
		ok = false
	}
	if !ok {
		s.m[key] = memEntry{value: "1", expiresAt: s.nowF().Add(ttl)}
		return 1, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		n = 0
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.m[key] = e
	return n, nil
}

// Get returns the value stored at key, with ok false for missing or expired keys.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return "", false, nil
	}
	if s.expired(e) {
		delete(s.m, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// SetWithTTL stores value under key with ttl, replacing any prior value.
func (s *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memEntry{value: value, expiresAt: s.nowF().Add(ttl)}
	return nil
}

// SetIfAbsentWithTTL stores value under key with ttl only if key is absent or expired.
func (s *MemoryStore) SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.m[key]; ok && !s.expired(e) {
		return false, nil
	}
	s.m[key] = memEntry{value: value, expiresAt: s.nowF().Add(ttl)}
	return true, nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

// Keys returns non-expired keys matching the glob pattern.
func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for k, e := range s.m {
		if s.expired(e) {
			continue
		}
		if ok, err := path.Match(pattern, k); err == nil && ok {
			out = append(out, k)
		}
	}
	return out, nil
}
