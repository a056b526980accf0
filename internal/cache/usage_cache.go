// Package cache holds the rate-limit usage cache. Entries expire after a
// TTL and Flush drops every entry at once.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = 60 * time.Second

type UsageCache interface {
	Get(ctx context.Context, key string) (models.WindowUsage, bool)
	Set(ctx context.Context, key string, usage models.WindowUsage)
	Flush(ctx context.Context)
}

// Key builds the cache key of a usage lookup.
func Key(scope, scopeID, limitType string) string {
	return scope + "-" + scopeID + "-" + limitType
}

type memoryUsageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	usage   models.WindowUsage
	expires time.Time
}

func NewMemoryUsageCache(ttl time.Duration) UsageCache {
	return newMemoryUsageCache(ttl, time.Now)
}

func newMemoryUsageCache(ttl time.Duration, now func() time.Time) *memoryUsageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryUsageCache{ttl: ttl, entries: make(map[string]memoryEntry), now: now}
}

func (c *memoryUsageCache) Get(_ context.Context, key string) (models.WindowUsage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return models.WindowUsage{}, false
	}
	return e.usage, true
}

func (c *memoryUsageCache) Set(_ context.Context, key string, usage models.WindowUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{usage: usage, expires: c.now().Add(c.ttl)}
}

func (c *memoryUsageCache) Flush(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// redisUsageCache namespaces keys by a generation counter. Flush bumps the
// generation, which orphans every key of the previous one until its TTL.
type redisUsageCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func (c *redisUsageCache) generation(ctx context.Context) string {
	gen, err := c.client.Get(ctx, c.prefix+":gen").Result()
	if err == redis.Nil {
		return "0"
	}
	if err != nil {
		c.logger.Warn("usage cache generation lookup failed", zap.Error(err))
		return "0"
	}
	return gen
}

func (c *redisUsageCache) Get(ctx context.Context, key string) (models.WindowUsage, bool) {
	raw, err := c.client.Get(ctx, c.prefix+":"+c.generation(ctx)+":"+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("usage cache read failed", zap.String("key", key), zap.Error(err))
		}
		return models.WindowUsage{}, false
	}
	var usage models.WindowUsage
	if err := json.Unmarshal(raw, &usage); err != nil {
		return models.WindowUsage{}, false
	}
	return usage, true
}

func (c *redisUsageCache) Set(ctx context.Context, key string, usage models.WindowUsage) {
	raw, err := json.Marshal(usage)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+":"+c.generation(ctx)+":"+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("usage cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisUsageCache) Flush(ctx context.Context) {
	if err := c.client.Incr(ctx, c.prefix+":gen").Err(); err != nil {
		c.logger.Warn("usage cache flush failed", zap.Error(err))
	}
}

// NewUsageCache builds a Redis-backed cache and falls back to in-memory when
// no client is given or Redis does not answer.
func NewUsageCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) UsageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if client == nil {
		return NewMemoryUsageCache(ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory usage cache", zap.Error(err))
		return NewMemoryUsageCache(ttl)
	}

	return &redisUsageCache{
		client: client,
		prefix: "postdispatch:usage:" + strconv.Itoa(client.Options().DB),
		ttl:    ttl,
		logger: logger,
	}
}
