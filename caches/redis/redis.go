// Package redis provides a Redis-backed response cache for deployments
// that share one cache across processes.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a go-redis client with the cache.Cache contract.
type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
}

// Option configures the cache.
type Option func(*Cache)

// WithKeyPrefix namespaces all keys, for shared Redis instances.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.keyPrefix = prefix }
}

// WithDefaultTTL sets the TTL used when Set gets a non-positive one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// New connects to addr.
func New(addr string, opts ...Option) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client; the caller keeps ownership of
// its lifecycle only if it also skips Close.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, defaultTTL: time.Minute}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string { return c.keyPrefix + k }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
