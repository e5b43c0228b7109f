package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errProvider = errors.New("provider down")

func newTestBreaker(threshold int, reset time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "test",
		Threshold:    threshold,
		ResetTimeout: reset,
		Logger:       zap.NewNop(),
	})
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Execute(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errProvider }), errProvider)
	}
	assert.Equal(t, StateOpen, cb.State())

	// open breaker rejects without invoking fn
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	require.Error(t, cb.Execute(func() error { return errProvider }))
	require.Error(t, cb.Execute(func() error { return errProvider }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errProvider }))
	require.Error(t, cb.Execute(func() error { return errProvider }))

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errProvider }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// first call after the reset timeout probes the provider
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errProvider }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errProvider }))
	assert.Equal(t, StateOpen, cb.State())
}
