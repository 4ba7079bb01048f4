package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the CacheBackend backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisCacheConfig configures RedisCache.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // defaults to "event:"
}

// NewRedisCache builds a RedisCache. It does not dial eagerly; Ping verifies
// connectivity.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "event:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(hash string) string {
	return c.prefix + hash
}

func (c *RedisCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("eventstore: cache get %s: %w", hash, err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, hash string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(hash), data, ttl).Err(); err != nil {
		return fmt.Errorf("eventstore: cache set %s: %w", hash, err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("eventstore: cache ping: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
