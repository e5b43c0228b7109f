package capacity

import (
	"context"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/common/resilience"
)

// WeatherForecast is the provider's answer for an event's start window.
// Condition values must match the keys of the weather multiplier table.
type WeatherForecast struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
}

// WeatherProvider forecasts conditions for a city at a point in time
type WeatherProvider interface {
	Forecast(ctx context.Context, city string, at time.Time) (WeatherForecast, error)
}

// DemandProvider estimates a demand multiplier for an event, 1.0 meaning
// baseline demand.
type DemandProvider interface {
	DemandMultiplier(ctx context.Context, eventID string) (float64, error)
}

// AccuracyProvider reports how well past forecasts for an event type held
// up, as a multiplier around 1.0.
type AccuracyProvider interface {
	AccuracyMultiplier(ctx context.Context, eventType string) (float64, error)
}

// HolidayProvider answers whether a date is a public holiday
type HolidayProvider interface {
	IsHoliday(at time.Time) bool
}

// CompetitorPriceProvider lists competitor ticket prices for comparable
// events in the same market.
type CompetitorPriceProvider interface {
	Prices(ctx context.Context, eventType, city string) ([]float64, error)
}

// GuardedWeatherProvider wraps a WeatherProvider with a circuit breaker.
// When the breaker is open or the provider fails, it answers a neutral
// forecast so capacity adjustment degrades to the 1.0 multiplier instead of
// failing the optimization.
type GuardedWeatherProvider struct {
	inner   WeatherProvider
	breaker *resilience.CircuitBreaker
	logger  *zap.Logger
}

func NewGuardedWeatherProvider(inner WeatherProvider, logger *zap.Logger) *GuardedWeatherProvider {
	return &GuardedWeatherProvider{
		inner: inner,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "weather_provider",
			Threshold:    5,
			ResetTimeout: 30 * time.Second,
			Logger:       logger,
		}),
		logger: logger.With(zap.String("component", "weather_provider")),
	}
}

var neutralForecast = WeatherForecast{Condition: "cloudy", Temperature: 15}

func (g *GuardedWeatherProvider) Forecast(ctx context.Context, city string, at time.Time) (WeatherForecast, error) {
	var forecast WeatherForecast
	err := g.breaker.Execute(func() error {
		var ferr error
		forecast, ferr = g.inner.Forecast(ctx, city, at)
		return ferr
	})
	if err != nil {
		g.logger.Warn("Weather forecast unavailable, using neutral conditions",
			zap.String("city", city), zap.Error(err))
		return neutralForecast, nil
	}
	return forecast, nil
}

// seededFraction hashes s into [0,1). Stub providers derive their answers
// from it so the engine stays deterministic for a given input.
func seededFraction(s string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32()%1000) / 1000
}

// StubWeatherProvider cycles through a fixed condition set keyed by city
// and date. Real deployments plug a forecast API behind WeatherProvider.
type StubWeatherProvider struct{}

var stubConditions = []string{"clear", "cloudy", "rain", "heavy_rain", "snow"}

func (StubWeatherProvider) Forecast(_ context.Context, city string, at time.Time) (WeatherForecast, error) {
	f := seededFraction(city + at.Format("2006-01-02"))
	return WeatherForecast{
		Condition:   stubConditions[int(f*float64(len(stubConditions)))%len(stubConditions)],
		Temperature: 5 + f*25,
	}, nil
}

// StubDemandProvider answers a multiplier in [0.8, 1.2]
type StubDemandProvider struct{}

func (StubDemandProvider) DemandMultiplier(_ context.Context, eventID string) (float64, error) {
	return 0.8 + seededFraction("demand:"+eventID)*0.4, nil
}

// StubAccuracyProvider answers a multiplier in [0.9, 1.1]
type StubAccuracyProvider struct{}

func (StubAccuracyProvider) AccuracyMultiplier(_ context.Context, eventType string) (float64, error) {
	return 0.9 + seededFraction("accuracy:"+eventType)*0.2, nil
}

// StubHolidayProvider knows fixed-date holidays only
type StubHolidayProvider struct{}

func (StubHolidayProvider) IsHoliday(at time.Time) bool {
	switch {
	case at.Month() == time.January && at.Day() == 1:
		return true
	case at.Month() == time.May && at.Day() == 1:
		return true
	case at.Month() == time.December && at.Day() == 25:
		return true
	}
	return false
}

// StubCompetitorPriceProvider answers three prices spread around a seeded
// anchor.
type StubCompetitorPriceProvider struct{}

func (StubCompetitorPriceProvider) Prices(_ context.Context, eventType, city string) ([]float64, error) {
	anchor := 100000 * (0.9 + seededFraction("competitor:"+eventType+":"+city)*0.3)
	return []float64{anchor * 0.95, anchor, anchor * 1.05}, nil
}
