package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "fitcoach:context:"

// Ensure ContextCache implements db.ContextCacheStore interface
var _ db.ContextCacheStore = (*ContextCache)(nil)

// ContextCache keeps user context snapshots in Redis. Keys expire at the
// snapshot's staleness horizon.
type ContextCache struct {
	rdb *goredis.Client
	now func() time.Time
}

// NewContextCache connects to Redis and verifies the connection
func NewContextCache(ctx context.Context, cfg config.RedisConfig) (*ContextCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Log.WithField("addr", cfg.Addr).Info("Connected to Redis context cache")
	return &ContextCache{rdb: rdb, now: time.Now}, nil
}

// Close closes the Redis client
func (c *ContextCache) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *ContextCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetContextCache returns the cached snapshot, or nil when the key is absent
func (c *ContextCache) GetContextCache(ctx context.Context, userID string) (*db.ContextCache, error) {
	data, err := c.rdb.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cache db.ContextCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("error decoding context cache: %w", err)
	}
	return &cache, nil
}

// UpsertContextCache replaces the snapshot of a user. Snapshots already
// stale are not written.
func (c *ContextCache) UpsertContextCache(ctx context.Context, cache *db.ContextCache) error {
	ttl := TTL(cache, c.now())
	if ttl <= 0 {
		logger.Log.WithField("user_id", cache.UserID).Debug("Skipping stale context snapshot")
		return nil
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("error encoding context cache: %w", err)
	}

	if err := c.rdb.Set(ctx, Key(cache.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": cache.UserID,
		"ttl":     ttl.String(),
	}).Debug("Stored context snapshot")
	return nil
}

// Key is the Redis key of a user's snapshot
func Key(userID string) string {
	return keyPrefix + userID
}

// TTL is the time left until the snapshot goes stale
func TTL(cache *db.ContextCache, now time.Time) time.Duration {
	return cache.StaleAfter.Sub(now)
}
