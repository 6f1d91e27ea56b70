/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently read
// scheduling data. Every method degrades to a miss when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultBookableSlotsTTL = 2 * time.Minute
	DefaultDirectoryTTL     = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyBookableSlots = "talentgrid:cache:bookable_slots:" // + provider_id
	KeyDirectory     = "talentgrid:cache:directory:"      // + designation (lowercased)
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BookableSlotsTTL time.Duration
	DirectoryTTL     time.Duration

	// If true, disable caching after a Redis error instead of retrying
	// on every request.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:        "localhost:6379",
		BookableSlotsTTL: DefaultBookableSlotsTTL,
		DirectoryTTL:     DefaultDirectoryTTL,
		DisableOnError:   true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. A failed ping leaves the cache
// disabled rather than failing startup.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
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
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Disabled returns a cache that never hits. Useful when caching is
// switched off by configuration.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	telemetry.CacheRequestsTotal.WithLabelValues("error").Inc()

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}

	telemetry.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return true
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

func (c *Cache) delete(ctx context.Context, keys ...string) {
	if !c.IsAvailable() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
	}
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) {
	if !c.IsAvailable() {
		return
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return
			}
		}
		cursor = nextCursor
		if cursor == 0 {
			return
		}
	}
}

// GetBookableSlots retrieves a provider's cached bookable slot list.
func (c *Cache) GetBookableSlots(ctx context.Context, providerID string) ([]models.Slot, bool) {
	var slots []models.Slot
	if !c.get(ctx, KeyBookableSlots+providerID, &slots) {
		return nil, false
	}
	return slots, true
}

// SetBookableSlots caches a provider's bookable slot list.
func (c *Cache) SetBookableSlots(ctx context.Context, providerID string, slots []models.Slot) {
	if err := c.set(ctx, KeyBookableSlots+providerID, slots, c.config.BookableSlotsTTL); err != nil {
		c.logger.Debug().Err(err).Str("provider_id", providerID).Msg("cache bookable slots")
	}
}

// InvalidateBookableSlots drops a provider's cached slot list.
func (c *Cache) InvalidateBookableSlots(ctx context.Context, providerID string) {
	c.delete(ctx, KeyBookableSlots+providerID)
}

// GetDirectory retrieves a cached provider directory page for a designation.
func (c *Cache) GetDirectory(ctx context.Context, designation string, dest any) bool {
	return c.get(ctx, KeyDirectory+designation, dest)
}

// SetDirectory caches a provider directory page.
func (c *Cache) SetDirectory(ctx context.Context, designation string, value any) {
	if err := c.set(ctx, KeyDirectory+designation, value, c.config.DirectoryTTL); err != nil {
		c.logger.Debug().Err(err).Str("designation", designation).Msg("cache directory")
	}
}

// InvalidateDirectory drops every cached directory page.
func (c *Cache) InvalidateDirectory(ctx context.Context) {
	c.deletePattern(ctx, KeyDirectory+"*")
}

// RunInvalidator consumes bus events that change slot availability and
// drops the affected cache entries. Blocks until ctx is done.
func (c *Cache) RunInvalidator(ctx context.Context, bus *events.Bus) {
	types := []events.EventType{
		events.EventSlotsGenerated,
		events.EventSlotDeleted,
		events.EventBookingCreated,
		events.EventProviderUpdated,
	}

	subs := make(map[events.EventType]events.Subscriber, len(types))
	merged := make(chan events.Payload, 32)
	for _, eventType := range types {
		sub := bus.Subscribe(eventType)
		subs[eventType] = sub
		go func(et events.EventType, ch events.Subscriber) {
			for payload := range ch {
				select {
				case merged <- payload:
				default:
				}
			}
		}(eventType, sub)
	}

	defer func() {
		for eventType, sub := range subs {
			bus.Unsubscribe(eventType, sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-merged:
			if providerID, ok := payload["provider_id"].(string); ok && providerID != "" {
				c.InvalidateBookableSlots(ctx, providerID)
			}
			c.InvalidateDirectory(ctx)
		}
	}
}
