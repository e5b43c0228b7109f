package capacity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingWeather struct {
	calls int
}

func (f *failingWeather) Forecast(_ context.Context, _ string, _ time.Time) (WeatherForecast, error) {
	f.calls++
	return WeatherForecast{}, errors.New("upstream timeout")
}

func TestGuardedWeatherProvider_PassesThrough(t *testing.T) {
	guarded := NewGuardedWeatherProvider(StubWeatherProvider{}, zap.NewNop())

	at := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	forecast, err := guarded.Forecast(context.Background(), "istanbul", at)
	require.NoError(t, err)

	direct, _ := StubWeatherProvider{}.Forecast(context.Background(), "istanbul", at)
	assert.Equal(t, direct, forecast)
}

func TestGuardedWeatherProvider_NeutralFallbackOnFailure(t *testing.T) {
	guarded := NewGuardedWeatherProvider(&failingWeather{}, zap.NewNop())

	forecast, err := guarded.Forecast(context.Background(), "istanbul", time.Now())
	require.NoError(t, err)
	assert.Equal(t, neutralForecast, forecast)
}

func TestGuardedWeatherProvider_BreakerStopsHammering(t *testing.T) {
	inner := &failingWeather{}
	guarded := NewGuardedWeatherProvider(inner, zap.NewNop())

	// breaker threshold is 5; further calls must not reach the provider
	for i := 0; i < 10; i++ {
		forecast, err := guarded.Forecast(context.Background(), "istanbul", time.Now())
		require.NoError(t, err)
		assert.Equal(t, neutralForecast, forecast)
	}
	assert.Equal(t, 5, inner.calls)
}

func TestStubProviders_Deterministic(t *testing.T) {
	at := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)

	a, err := StubWeatherProvider{}.Forecast(context.Background(), "istanbul", at)
	require.NoError(t, err)
	b, _ := StubWeatherProvider{}.Forecast(context.Background(), "istanbul", at)
	assert.Equal(t, a, b)
	assert.Contains(t, stubConditions, a.Condition)

	d1, err := StubDemandProvider{}.DemandMultiplier(context.Background(), "evt-1")
	require.NoError(t, err)
	d2, _ := StubDemandProvider{}.DemandMultiplier(context.Background(), "evt-1")
	assert.Equal(t, d1, d2)
	assert.GreaterOrEqual(t, d1, 0.8)
	assert.LessOrEqual(t, d1, 1.2)

	prices, err := StubCompetitorPriceProvider{}.Prices(context.Background(), "conference", "istanbul")
	require.NoError(t, err)
	assert.Len(t, prices, 3)
}

func TestStubHolidayProvider_FixedDates(t *testing.T) {
	p := StubHolidayProvider{}

	assert.True(t, p.IsHoliday(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.True(t, p.IsHoliday(time.Date(2026, 12, 25, 12, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsHoliday(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)))
}
