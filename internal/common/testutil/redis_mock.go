// Package testutil provides testing utilities for Attendly services
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MockRedis manages a miniredis instance for testing
type MockRedis struct {
	mini    *miniredis.Miniredis
	client  *redis.Client
	logger  *zap.Logger
	mu      sync.RWMutex
	running bool
}

// NewMockRedis creates a new mock Redis instance
func NewMockRedis(logger *zap.Logger) *MockRedis {
	return &MockRedis{
		logger: logger.With(zap.String("component", "mock_redis")),
	}
}

// Setup initializes the miniredis instance and creates a client
func (m *MockRedis) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	mini, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("failed to start miniredis: %w", err)
	}

	m.mini = mini
	m.client = redis.NewClient(&redis.Options{
		Addr: mini.Addr(),
	})

	m.running = true
	m.logger.Debug("Mock Redis started", zap.String("addr", mini.Addr()))
	return nil
}

// Shutdown closes the miniredis instance
func (m *MockRedis) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	if m.client != nil {
		_ = m.client.Close()
	}
	if m.mini != nil {
		m.mini.Close()
	}

	m.running = false
	m.logger.Debug("Mock Redis stopped")
	return nil
}

// Client returns the Redis client
func (m *MockRedis) Client() *redis.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Mini returns the underlying miniredis instance for direct manipulation
func (m *MockRedis) Mini() *miniredis.Miniredis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mini
}

// ClearAll removes all keys from the mock Redis
func (m *MockRedis) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mini == nil {
		return fmt.Errorf("mock redis not running")
	}
	m.mini.FlushAll()
	return nil
}

// FastForward advances the mock Redis time by the given duration.
// This is useful for testing TTL expiration.
func (m *MockRedis) FastForward(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mini == nil {
		return fmt.Errorf("mock redis not running")
	}
	m.mini.FastForward(d)
	return nil
}
