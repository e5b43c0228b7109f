package signalcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/attendly/attendly/internal/common/errors"
)

// GetOrComputeJSON is the typed convenience wrapper around
// Cache.GetOrCompute. The factory returns a value that is JSON-encoded into
// the cache; hits are decoded back into T.
func GetOrComputeJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Internal("failed to encode cached signal "+key, err)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		// A corrupt entry is unrecoverable through the cache; drop it so the
		// next read recomputes.
		_ = c.Delete(ctx, key)
		return zero, errors.Internal("failed to decode cached signal "+key, err)
	}
	return out, nil
}
