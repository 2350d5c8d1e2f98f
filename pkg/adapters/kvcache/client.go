// Package kvcache is the C1 typed client wrapping Redis for the retrieval
// and reasoning caches: kv_get/kv_set/kv_del plus pattern invalidation on
// reindex (spec §4.1, §4.4, §4.5).
package kvcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feustey/mcp/internal/breaker"
	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/adapters"
)

const target = "kvcache"

// Client is the KV cache adapter.
type Client struct {
	base adapters.Client
	rdb  *redis.Client
}

// New builds a Client from an already-parsed redis.Client.
func New(rdb *redis.Client, timeout time.Duration, breakers *breaker.Registry) *Client {
	return &Client{
		base: adapters.NewClient(target, timeout, breakers),
		rdb:  rdb,
	}
}

// NewRedisClient connects to redisURL, verifying reachability with a Ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, mcperr.New(mcperr.Invalid, target, "parse redis url", err)
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, mcperr.New(mcperr.Transient, target, "ping redis", err)
	}
	return rdb, nil
}

// Get fetches a cached value, reporting cacheName in hit/miss metrics
// (spec §9 "cache is labelled by the component that owns it").
func (c *Client) Get(ctx context.Context, cacheName, key string) (string, bool, error) {
	val, err := adapters.Call(ctx, c.base, "kv_get", func(ctx context.Context) (string, error) {
		v, err := c.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", mcperr.New(mcperr.NotFound, target, "key not found", nil)
		}
		if err != nil {
			return "", mcperr.New(mcperr.Transient, target, "get key", err)
		}
		return v, nil
	})
	if mcperr.Of(err) == mcperr.NotFound {
		telemetry.CacheMissesTotal.WithLabelValues(cacheName).Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	telemetry.CacheHitsTotal.WithLabelValues(cacheName).Inc()
	return val, true, nil
}

// Set stores value under key with a TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := adapters.Call(ctx, c.base, "kv_set", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
			return out, mcperr.New(mcperr.Transient, target, "set key", err)
		}
		return out, nil
	})
	return err
}

// Del removes a key.
func (c *Client) Del(ctx context.Context, key string) error {
	_, err := adapters.Call(ctx, c.base, "kv_del", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return out, mcperr.New(mcperr.Transient, target, "delete key", err)
		}
		return out, nil
	})
	return err
}

// InvalidatePattern deletes every key matching pattern, used when an alias
// swap (spec §4.3 finalize) retires the cached retrieval result sets keyed
// by embed_version. Reasoning cache keys do not contain embed_version and
// are not matched by that pattern.
func (c *Client) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	return adapters.Call(ctx, c.base, "kv_invalidate_pattern", func(ctx context.Context) (int, error) {
		var cursor uint64
		deleted := 0
		for {
			keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 256).Result()
			if err != nil {
				return deleted, mcperr.New(mcperr.Transient, target, "scan keys", err)
			}
			if len(keys) > 0 {
				if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
					return deleted, mcperr.New(mcperr.Transient, target, "delete matched keys", err)
				}
				deleted += len(keys)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return deleted, nil
	})
}
