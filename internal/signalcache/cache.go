// Package signalcache provides the cache-aside store for derived signals.
// Every analyzer reads expensive signals (no-show rates, demand, competitor
// prices, activity logs) through this layer so they are computed once per TTL
// window instead of on every request.
package signalcache

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/metrics"
)

// Factory computes a signal value on cache miss. It is the only suspension
// point of a cache read and runs under a bounded context.
type Factory func(ctx context.Context) ([]byte, error)

// Cache is a Redis-backed cache-aside store with per-key single-flight
// coalescing: N concurrent misses on the same key run the factory exactly
// once and share its result.
type Cache struct {
	client         *redis.Client
	logger         *zap.Logger
	group          singleflight.Group
	factoryTimeout time.Duration
}

// New creates a signal Cache. factoryTimeout bounds each miss computation;
// zero disables the bound.
func New(client *redis.Client, factoryTimeout time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		client:         client,
		logger:         logger.With(zap.String("component", "signal_cache")),
		factoryTimeout: factoryTimeout,
	}
}

// Get returns the cached value for key, or (nil, false) on miss. Redis
// failures are logged and reported as misses: the cache is an optimization,
// never a hard dependency on the read path.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		metrics.RecordCacheOperation("get", "hit")
		return val, true
	}
	if !stderrors.Is(err, redis.Nil) {
		metrics.RecordCacheOperation("get", "error")
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.RecordCacheOperation("get", "miss")
	return nil, false
}

// Set stores a value with the given TTL. Write failures are logged, not
// returned: a lost cache entry only costs a recomputation.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", "error")
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	metrics.RecordCacheOperation("set", "ok")
}

// Delete removes a key. Used by tests and by manual cache invalidation.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.CacheError("delete "+key, err)
	}
	return nil
}

// GetOrCompute returns the cached value for key, or invokes factory, stores
// the result with the TTL, and returns it. Concurrent misses for the same key
// are coalesced so the factory runs once; waiters share its result. The
// in-flight computation is detached from the cancellation of the caller that
// started it, bounded only by the factory timeout.
//
// A factory timeout is classified as transient so callers can fall back to a
// conservative default instead of failing the request.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, factory Factory) ([]byte, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}

	val, err, shared := c.group.Do(key, func() (interface{}, error) {
		// The flight is shared by every coalesced caller, so it must not
		// die with the caller that happened to start it. Detach from the
		// winner's cancellation and rely on the factory timeout as the
		// only bound.
		flightCtx := context.WithoutCancel(ctx)

		// Another goroutine may have populated the key while we waited for
		// the flight slot.
		if val, ok := c.Get(flightCtx, key); ok {
			return val, nil
		}

		computeCtx := flightCtx
		if c.factoryTimeout > 0 {
			var cancel context.CancelFunc
			computeCtx, cancel = context.WithTimeout(flightCtx, c.factoryTimeout)
			defer cancel()
		}

		start := time.Now()
		computed, err := factory(computeCtx)
		metrics.RecordCacheCompute(keyPrefix(key), time.Since(start))
		if err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Timeout("signal factory for " + key)
			}
			return nil, err
		}

		c.Set(flightCtx, key, computed, ttl)
		return computed, nil
	})

	if shared {
		metrics.RecordCacheOperation("compute", "coalesced")
	}
	if err != nil {
		metrics.RecordCacheOperation("compute", "error")
		return nil, err
	}

	return val.([]byte), nil
}

// keyPrefix reduces a cache key to its first segment for metric labels,
// keeping label cardinality bounded.
func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
