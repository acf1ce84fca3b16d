/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for dashboard rollups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/crewdesk/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultStatsTTL = 60 * time.Second
	DefaultDailyTTL = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	keyRoot     = "crewdesk:cache:"
	KeyStats    = keyRoot + "stats:" // + tenant_id + ":" + period + ":" + range start
	KeyDaily    = keyRoot + "daily:" // + tenant_id + ":" + start + ":" + end
	cacheStats  = "stats"
	cacheDaily  = "daily"
	scanBatchSz = 100
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StatsTTL time.Duration
	DailyTTL time.Duration

	// DisableOnError trips the breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		StatsTTL:       DefaultStatsTTL,
		DailyTTL:       DefaultDailyTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache is a
// valid, permanently disabled cache.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // circuit breaker
}

// New creates a new cache instance. An unreachable Redis yields a disabled cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = DefaultStatsTTL
	}
	if cfg.DailyTTL <= 0 {
		cfg.DailyTTL = DefaultDailyTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{
			logger:   logger,
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger,
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern, using SCAN rather than KEYS.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, scanBatchSz).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// StatsKey builds the key for one tenant's rollup of one resolved period.
func StatsKey(tenantID, period string, rangeStart time.Time) string {
	start := "all"
	if !rangeStart.IsZero() {
		start = rangeStart.Format(time.RFC3339)
	}
	return KeyStats + tenantID + ":" + period + ":" + start
}

// DailyKey builds the key for one tenant's daily buckets over [start, end).
func DailyKey(tenantID string, start, end time.Time) string {
	return KeyDaily + tenantID + ":" + start.Format(time.DateOnly) + ":" + end.Format(time.DateOnly)
}

// GetStats loads a cached rollup into dest.
func (c *Cache) GetStats(ctx context.Context, key string, dest any) bool {
	return c.lookup(ctx, cacheStats, key, dest)
}

// SetStats stores a rollup under key.
func (c *Cache) SetStats(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, key, value, c.config.StatsTTL)
}

// GetDaily loads cached daily buckets into dest.
func (c *Cache) GetDaily(ctx context.Context, key string, dest any) bool {
	return c.lookup(ctx, cacheDaily, key, dest)
}

// SetDaily stores daily buckets under key.
func (c *Cache) SetDaily(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, key, value, c.config.DailyTTL)
}

func (c *Cache) lookup(ctx context.Context, name, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}
	found, err := c.get(ctx, key, dest)
	if err != nil || !found {
		telemetry.CacheMissesTotal.WithLabelValues(name).Inc()
		return false
	}
	telemetry.CacheHitsTotal.WithLabelValues(name).Inc()
	c.logger.Debug().Str("key", key).Msg("cache hit")
	return true
}

// InvalidateTenant drops every cached rollup for tenantID.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.deletePattern(ctx, KeyStats+tenantID+":*"); err != nil {
		return err
	}
	return c.deletePattern(ctx, KeyDaily+tenantID+":*")
}

// FlushAll removes all cached data.
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, keyRoot+"*")
}
