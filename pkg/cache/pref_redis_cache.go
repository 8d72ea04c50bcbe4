// Package cache provides the Redis-backed key/value cache.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
)

// RedisCache implements out.PreferenceCache on Redis.
// A missing key is reported as an empty value with a nil error. Redis
// failures come back as CACHE_ERROR app errors.
type RedisCache struct {
	client redis.Cmdable
}

var _ out.PreferenceCache = (*RedisCache)(nil)

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperr.CacheError("get", err).WithDetail("key", key)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperr.CacheError("set", err).WithDetail("key", key)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return apperr.CacheError("delete", err)
	}
	return nil
}
