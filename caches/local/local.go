// Package local provides an in-process response cache.
package local

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache wraps go-cache with the cache.Cache contract.
type Cache struct {
	inner *gocache.Cache
}

// New creates a cache with the given default TTL. Expired entries are
// swept at twice the TTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &Cache{inner: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.inner.Set(key, value, ttl)
	return nil
}

func (c *Cache) Close() error {
	c.inner.Flush()
	return nil
}
