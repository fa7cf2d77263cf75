// Package cache adapts a key/value + hash store to the narrow operation
// set the rest of the service needs: Set, SetWithTtl, Get, Exists, Del,
// Expire, Ttl, Incr, the H* hash family, and Ping.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/relay-id/authsvc/internal/apperr"
)

// ErrNotFound is returned by Get/HGet when the key or field is absent.
var ErrNotFound = errors.New("cache: key not found")

// Cache is the narrow contract every caller in this codebase depends on,
// kept as an interface so the SMS controller and login limiter can be
// tested against a fake.
type Cache interface {
	Set(ctx context.Context, key, value string) error
	SetWithTtl(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ttl(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key, field string) error
	Ping(ctx context.Context) error
}

// RedisCache implements Cache over a *redis.Client.
type RedisCache struct {
	client *redis.Client
}

// New wraps an existing *redis.Client. Connection pooling is delegated to
// go-redis's own client-internal pool.
func New(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func wrap(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return apperr.Newf(apperr.ServiceUnavailable, "cache transport error: %v", err)
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return wrap(c.client.Set(ctx, key, value, 0).Err())
}

// SetWithTtl rejects a non-positive TTL with InvalidArgument instead of
// silently dropping the key (a 0 TTL to go-redis's SET means "no expiry",
// which would be a silent correctness bug for the SMS/cooldown callers).
func (c *RedisCache) SetWithTtl(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.New(apperr.InvalidArgument, "ttl must be positive")
	}
	return wrap(c.client.Set(ctx, key, value, ttl).Err())
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", wrap(err)
	}
	return v, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return wrap(c.client.Del(ctx, key).Err())
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrap(c.client.Expire(ctx, key, ttl).Err())
}

func (c *RedisCache) Ttl(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return d, nil
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func (c *RedisCache) HSet(ctx context.Context, key, field, value string) error {
	return wrap(c.client.HSet(ctx, key, field, value).Err())
}

func (c *RedisCache) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := c.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", wrap(err)
	}
	return v, nil
}

func (c *RedisCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return m, nil
}

func (c *RedisCache) HDel(ctx context.Context, key, field string) error {
	return wrap(c.client.HDel(ctx, key, field).Err())
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return wrap(c.client.Ping(ctx).Err())
}
