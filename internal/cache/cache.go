// Package cache implements the Resolver's cache layer: a Redis-backed
// link cache keyed by short code (and optionally template slug), plus a
// Bloom-filter negative cache for short codes that were never issued.
//
// Cache failures are warnings, never fatal: callers of LinkCache always
// have a store fallback path, so this package never returns an error
// from Get/Set, only a hit/miss bool, logging failures internally.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TTL is the cache lifetime for a link entry: a cached link lives no
// longer than 300s without re-validation against the store.
const TTL = 300 * time.Second

// LinkKey builds the cache key for a link lookup:
// link:{code} or link:{slug}:{code}.
func LinkKey(slug, code string) string {
	if slug == "" {
		return fmt.Sprintf("link:%s", code)
	}
	return fmt.Sprintf("link:%s:%s", slug, code)
}

// LinkCache is the Resolver's cache-layer contract.
type LinkCache interface {
	Get(ctx context.Context, key string) (*domain.Link, bool)
	Set(ctx context.Context, key string, link *domain.Link)
	// Invalidate removes both the code-only and slug-qualified keys for a
	// link.
	Invalidate(ctx context.Context, code, slug string)
}

type redisLinkCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisLinkCache returns a LinkCache backed by a redis.Client. A nil
// client is accepted and turns every operation into a no-op miss, so the
// Resolver still works (at full store latency) when Redis is absent.
func NewRedisLinkCache(client *redis.Client, log *zap.Logger) LinkCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisLinkCache{client: client, log: log}
}

func (c *redisLinkCache) Get(ctx context.Context, key string) (*domain.Link, bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var link domain.Link
	if err := json.Unmarshal(raw, &link); err != nil {
		c.log.Warn("cache entry unmarshal failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &link, true
}

func (c *redisLinkCache) Set(ctx context.Context, key string, link *domain.Link) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(link)
	if err != nil {
		c.log.Warn("cache entry marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, raw, TTL).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisLinkCache) Invalidate(ctx context.Context, code, slug string) {
	if c.client == nil {
		return
	}

	keys := []string{LinkKey("", code)}
	if slug != "" {
		keys = append(keys, LinkKey(slug, code))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
