package secretcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp"

// RedisCache keeps codes in redis so several service instances share one
// challenge state, TTL eviction is delegated to redis itself
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	return redisKeyPrefix + ":" + key
}

func (c *RedisCache) Put(ctx context.Context, key string, code string) error {
	// SET replaces the previous value and restarts the TTL in one command
	if err := c.client.Set(ctx, c.key(key), code, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	code, err := c.client.Get(ctx, c.key(key)).Result()

	switch {
	case err == nil:
		return code, true, nil
	case errors.Is(err, redis.Nil):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("redis error: %w", err)
	}
}

func (c *RedisCache) Evict(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
