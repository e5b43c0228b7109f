package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for the rate limiter
type RateLimitConfig struct {
	// Requests per window for IP-based limiting
	IPRequestsPerMin int
	// Requests per window for tenant-based limiting (when the gateway has
	// set tenant_id)
	TenantRequestsPerMin int
	// Sliding window duration
	Window time.Duration
	// Whether to track per-tenant limits
	PerTenant bool
	// Paths to skip from rate limiting
	SkipPaths []string
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		IPRequestsPerMin:     100,
		TenantRequestsPerMin: 300,
		Window:               time.Minute,
		PerTenant:            true,
		SkipPaths:            []string{"/health", "/health/ready", "/health/live", "/metrics"},
	}
}

// SlidingWindowRateLimit returns a Redis-backed sliding window rate limiter.
// Limits apply per IP, or per tenant once the gateway has identified one.
// Fails open when Redis is unavailable: analysis availability beats strict
// limiting. Returns 429 with a Retry-After header when the limit is hit.
func SlidingWindowRateLimit(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, skipPath := range cfg.SkipPaths {
			if c.Request.URL.Path == skipPath {
				c.Next()
				return
			}
		}

		identifier := c.ClientIP()
		limit := cfg.IPRequestsPerMin
		keyType := "ip"

		if cfg.PerTenant {
			if tenantID, exists := c.Get("tenant_id"); exists {
				if tid, ok := tenantID.(string); ok && tid != "" {
					identifier = tid
					limit = cfg.TenantRequestsPerMin
					keyType = "tenant"
				}
			}
		}

		if redisClient == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		now := time.Now().Unix()
		windowStart := now - int64(cfg.Window.Seconds())
		redisKey := fmt.Sprintf("ratelimit:%s:%s", keyType, identifier)

		var timestamps []int64
		if val, err := redisClient.Get(ctx, redisKey).Result(); err == nil && val != "" {
			_ = json.Unmarshal([]byte(val), &timestamps)
		}

		valid := make([]int64, 0, len(timestamps))
		for _, ts := range timestamps {
			if ts > windowStart {
				valid = append(valid, ts)
			}
		}

		currentCount := len(valid)
		remaining := limit - currentCount - 1

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		c.Header("X-RateLimit-Window", strconv.Itoa(int(cfg.Window.Seconds())))

		if currentCount >= limit {
			retryAfter := valid[0] - now + int64(cfg.Window.Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(int(retryAfter)))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"window":      cfg.Window.String(),
				"retry_after": retryAfter,
			})
			return
		}

		valid = append(valid, now)
		data, _ := json.Marshal(valid)
		pipe := redisClient.Pipeline()
		pipe.Set(ctx, redisKey, data, cfg.Window+time.Second)
		_, _ = pipe.Exec(ctx)

		c.Next()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
