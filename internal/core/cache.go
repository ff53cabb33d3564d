// Package core defines the ports shared by the analysis services and their adapters.
package core

import (
	"context"
	"time"
)

// CacheRepository is a byte-oriented key/value cache with per-key TTL.
type CacheRepository interface {
	// Set stores a value. A zero TTL means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns nil without error when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	Health(ctx context.Context) error
}
