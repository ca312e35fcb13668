// Package cache holds the Redis-backed webhook event ledger.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nflow-health/nflow/internal/config"
)

const eventKeyPrefix = "webhook"

// Cache wraps a Redis client
type Cache struct {
	db *redis.Client
}

// InitServer dials Redis and verifies the connection
func InitServer(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{db: db}, nil
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.Ping(ctx).Err()
}

// Close closes the client
func (c *Cache) Close() error {
	return c.db.Close()
}

func eventKey(provider, eventID string) string {
	return eventKeyPrefix + ":" + provider + ":" + eventID
}

// Seen reports whether a provider event was remembered and has not expired
func (c *Cache) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	const op = "cache.Seen"
	n, err := c.db.Exists(ctx, eventKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// Remember marks a provider event as processed for ttl
func (c *Cache) Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error {
	const op = "cache.Remember"
	if err := c.db.SetNX(ctx, eventKey(provider, eventID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
