package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaylam/govsignals/internal/model"
	"github.com/kaylam/govsignals/internal/repository"
)

const viewCachePrefix = "govsignals:view:"

// ViewCache caches public view listings for a short TTL. A cache miss or
// a Redis failure falls through to the database; the cache never makes a
// request fail.
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewViewCache builds a ViewCache.
func NewViewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ViewCache {
	return &ViewCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached listing for the filter, or nil on a miss.
func (c *ViewCache) Get(ctx context.Context, filter repository.PublicFilter) []model.PublicSignal {
	data, err := c.client.Get(ctx, cacheKey(filter)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("view cache read failed", "error", err)
		return nil
	}

	var signals []model.PublicSignal
	if err := json.Unmarshal(data, &signals); err != nil {
		c.logger.Warn("view cache entry corrupt", "error", err)
		return nil
	}
	return signals
}

// Set stores a listing under the filter's key.
func (c *ViewCache) Set(ctx context.Context, filter repository.PublicFilter, signals []model.PublicSignal) {
	data, err := json.Marshal(signals)
	if err != nil {
		c.logger.Warn("view cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(filter), data, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache write failed", "error", err)
	}
}

// Invalidate drops every cached listing. Called after the materialized
// view is refreshed.
func (c *ViewCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, viewCachePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("view cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("view cache invalidation failed", "error", err)
	}
}

func cacheKey(filter repository.PublicFilter) string {
	return fmt.Sprintf("%s%s:%d:%d", viewCachePrefix, filter.Category, filter.MinSeverity, filter.Limit)
}
