package data

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheRepo is an in-process core.CacheRepository used when no Redis is configured.
// Expired entries are dropped lazily on read.
type MemoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	time    TimeProvider
}

// NewMemoryCacheRepo creates an empty cache. A nil TimeProvider uses the system clock.
func NewMemoryCacheRepo(tp TimeProvider) *MemoryCacheRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &MemoryCacheRepo{entries: make(map[string]cacheEntry), time: tp}
}

// Set stores a copy of value.
func (m *MemoryCacheRepo) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrKeyRequired
	}
	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// Get returns nil, nil for a missing or expired key.
func (m *MemoryCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !m.time.Now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

// Delete removes a key.
func (m *MemoryCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

// Health always succeeds.
func (m *MemoryCacheRepo) Health(context.Context) error { return nil }
