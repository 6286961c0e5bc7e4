// Package cache provides the TTL cache injected into the server and worker.
// Values are opaque bytes; GetOrLoad adds JSON encoding and hit/miss
// metrics on top.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/pkg/logger"
)

// Cache is a key/value store with per entry expiry.
type Cache interface {
	// Get reports false when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetOrLoad returns the cached value of key or calls load and caches its
// result for ttl. name labels the hit and miss metrics. Cache failures are
// logged and fall through to load.
func GetOrLoad[T any](
	ctx context.Context,
	c Cache,
	name string,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return load(ctx)
	}

	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("[Cache] Read failed, loading value", "cache", name, "key", key, "err", err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			metrics.CacheHits.WithLabelValues(name).Inc()
			return v, nil
		}
		logger.Warn("[Cache] Dropping undecodable entry", "cache", name, "key", key)
	}
	metrics.CacheMisses.WithLabelValues(name).Inc()

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	raw, err = json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("[Cache] Write failed", "cache", name, "key", key, "err", err)
	}
	return v, nil
}

// Invalidate removes key and logs failures. Stale entries expire on their
// own, so a failed delete is never fatal.
func Invalidate(ctx context.Context, c Cache, key string) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("[Cache] Delete failed", "key", key, "err", err)
	}
}

// GraphStatsKey is the cache key of a user's graph statistics. Writers to
// the graph invalidate it.
func GraphStatsKey(userID string) string {
	return "graph-stats:" + userID
}
