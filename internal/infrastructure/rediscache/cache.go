// Package rediscache implements the catalog lookup cache on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
	}
}

// Cache stores lookup answers as JSON values with a TTL. Values are scoped to
// one logical database so Flush invalidates exactly the catalog answers.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// GetBool reads a cached boolean answer. A missing key is not an error.
func (c *Cache) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, false, fmt.Errorf("decode cached value for %q: %w", key, err)
	}
	return value, true, nil
}

// SetBool caches a boolean answer with the given TTL.
func (c *Cache) SetBool(ctx context.Context, key string, value bool, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// GetNames reads a cached name list.
func (c *Cache) GetNames(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, fmt.Errorf("decode cached names for %q: %w", key, err)
	}
	return names, true, nil
}

// SetNames caches a name list with the given TTL.
func (c *Cache) SetNames(ctx context.Context, key string, names []string, ttl time.Duration) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode names for %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Flush drops every cached answer in the configured database.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("redis flushdb: %w", err)
	}
	c.logger.Debug("cache flushed")
	return nil
}

// HealthCheck verifies Redis connectivity.
func (c *Cache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
