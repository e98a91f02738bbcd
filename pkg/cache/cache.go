// Package cache defines the response cache contract. Backends live under
// caches/; the client treats any failure as a miss and never lets the
// cache break a request.
package cache

import (
	"context"
	"time"
)

// Cache stores serialized responses by key.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl. A non-positive ttl falls back
	// to the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
