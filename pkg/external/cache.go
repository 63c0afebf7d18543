package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mito-cohort-pipeline/internal/domain"
)

const nameKeyPrefix = "hpo:name:"

// RedisNameCache shares resolved HPO names between runs and processes
type RedisNameCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// cachedName represents a cached HPO name with metadata
type cachedName struct {
	Name     string    `json:"name"`
	CachedAt time.Time `json:"cached_at"`
}

// NewRedisNameCache connects to Redis and verifies the connection
func NewRedisNameCache(config domain.CacheConfig) (*RedisNameCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNameCache{
		redis:      client,
		defaultTTL: config.TTL,
	}, nil
}

// Get returns a cached name. The boolean is false on a cache miss.
func (c *RedisNameCache) Get(ctx context.Context, hpoID string) (string, bool, error) {
	val, err := c.redis.Get(ctx, nameKeyPrefix+hpoID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get HPO name cache: %w", err)
	}

	var entry cachedName
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return "", false, fmt.Errorf("failed to decode cached HPO name: %w", err)
	}
	return entry.Name, true, nil
}

// Set stores a name. A zero ttl uses the configured default.
func (c *RedisNameCache) Set(ctx context.Context, hpoID, name string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(cachedName{Name: name, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to encode HPO name: %w", err)
	}

	if err := c.redis.Set(ctx, nameKeyPrefix+hpoID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set HPO name cache: %w", err)
	}
	return nil
}

// Invalidate removes a cached name
func (c *RedisNameCache) Invalidate(ctx context.Context, hpoID string) error {
	return c.redis.Del(ctx, nameKeyPrefix+hpoID).Err()
}

// Ping checks if Redis connection is alive
func (c *RedisNameCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisNameCache) Close() error {
	return c.redis.Close()
}
