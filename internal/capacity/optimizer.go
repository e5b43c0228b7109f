package capacity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/metrics"
	"github.com/attendly/attendly/internal/scoring"
	"github.com/attendly/attendly/internal/signalcache"
)

// Rate multipliers per strategy family
const (
	conservativeFactor = 0.7
	moderateFactor     = 0.9
	aggressiveFactor   = 1.2

	// used when an event type has no attendance history at all
	defaultNoShowRate = 0.10

	historyWindow = 20
)

// Adjustment factor weights for the confidence estimate
var adjustmentWeights = map[string]float64{
	"weather":    0.25,
	"weekday":    0.20,
	"event_type": 0.20,
	"season":     0.20,
	"accuracy":   0.15,
}

// Optimizer computes capacity plans. Stateless; expensive signals go
// through the cache.
type Optimizer struct {
	events   EventStore
	cache    *signalcache.Cache
	weather  WeatherProvider
	accuracy AccuracyProvider
	cfg      config.CapacityConfig
	ttls     config.CacheConfig
	logger   *zap.Logger
	now      func() time.Time
}

// OptimizerParams bundles the optimizer's dependencies
type OptimizerParams struct {
	Events   EventStore
	Cache    *signalcache.Cache
	Weather  WeatherProvider
	Accuracy AccuracyProvider
	Config   config.CapacityConfig
	TTLs     config.CacheConfig
	Logger   *zap.Logger
}

func NewOptimizer(p OptimizerParams) *Optimizer {
	return &Optimizer{
		events:   p.Events,
		cache:    p.Cache,
		weather:  p.Weather,
		accuracy: p.Accuracy,
		cfg:      p.Config,
		ttls:     p.TTLs,
		logger:   p.Logger.With(zap.String("component", "capacity_optimizer")),
		now:      time.Now,
	}
}

// HistoricalNoShowRate estimates the no-show rate for an event from the
// attendance outcomes of similar past events, seasonally adjusted and
// capped. The result is cached per event.
func (o *Optimizer) HistoricalNoShowRate(ctx context.Context, eventID string) (float64, error) {
	key := "capacity:noshow:" + eventID
	return signalcache.GetOrComputeJSON(ctx, o.cache, key, o.ttls.NoShowTTL,
		func(ctx context.Context) (float64, error) {
			return o.computeNoShowRate(ctx, eventID)
		})
}

func (o *Optimizer) computeNoShowRate(ctx context.Context, eventID string) (float64, error) {
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	history, err := o.events.AttendanceHistory(ctx, event.EventType, event.StartTime, historyWindow)
	if err != nil {
		return 0, err
	}

	invited, attended := 0, 0
	for _, r := range history {
		invited += r.Invited
		attended += r.Attended
	}

	rate := defaultNoShowRate
	if invited > 0 {
		rate = 1 - float64(attended)/float64(invited)
	} else {
		o.logger.Info("no attendance history, using default no-show rate",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType))
	}

	// The cap binds the final rate: no seasonal multiplier can push the
	// forecast past the configured maximum.
	rate *= o.tableMultiplier(o.cfg.MonthMultipliers, strings.ToLower(event.StartTime.Month().String()))

	if rate > o.cfg.MaxNoShowRate {
		rate = o.cfg.MaxNoShowRate
	}
	if rate < 0 {
		rate = 0
	}
	return rate, nil
}

// OverbookingStrategy derives conservative/moderate/aggressive rates from
// the no-show forecast and adjusts the moderate rate by the contextual
// multipliers. The recommended rate never exceeds the configured maximum.
func (o *Optimizer) OverbookingStrategy(ctx context.Context, eventID string) (*Strategy, error) {
	key := "capacity:strategy:" + eventID
	strategy, err := signalcache.GetOrComputeJSON(ctx, o.cache, key, o.ttls.StrategyTTL,
		func(ctx context.Context) (Strategy, error) {
			return o.computeStrategy(ctx, eventID)
		})
	if err != nil {
		return nil, err
	}
	return &strategy, nil
}

func (o *Optimizer) computeStrategy(ctx context.Context, eventID string) (Strategy, error) {
	noShow, err := o.HistoricalNoShowRate(ctx, eventID)
	if err != nil {
		return Strategy{}, err
	}
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return Strategy{}, err
	}

	factors, forecast, err := o.adjustmentFactors(ctx, event)
	if err != nil {
		return Strategy{}, err
	}
	adjustment := meanMultiplier(factors)

	s := Strategy{
		NoShowRate:       noShow,
		ConservativeRate: noShow * conservativeFactor,
		ModerateRate:     noShow * moderateFactor,
		AggressiveRate:   noShow * aggressiveFactor,
		Adjustment:       adjustment,
		Factors:          factors,
		Forecast:         forecast,
	}
	s.RecommendedRate = math.Min(s.ModerateRate*adjustment, o.cfg.MaxOverbookingRate)
	if s.RecommendedRate < 0 {
		s.RecommendedRate = 0
	}

	switch {
	case s.RecommendedRate > 0.25:
		s.Type = StrategyAggressive
	case s.RecommendedRate > 0.15:
		s.Type = StrategyModerate
	default:
		s.Type = StrategyConservative
	}
	return s, nil
}

// EstimateRevenueImpact is the linear what-if for an overbooking rate.
// Additional guests are the floor of capacity times rate; the baseline is
// a full house at nominal capacity.
func EstimateRevenueImpact(rate float64, baseCapacity int, ticketPrice, costPerGuest float64) RevenueImpact {
	guests := int(math.Floor(float64(baseCapacity) * rate))
	revenue := float64(guests) * ticketPrice
	cost := float64(guests) * costPerGuest
	current := float64(baseCapacity) * ticketPrice

	impact := RevenueImpact{
		CurrentRevenue:    current,
		OptimizedRevenue:  current + revenue,
		CostPerGuest:      costPerGuest,
		AdditionalGuests:  guests,
		AdditionalRevenue: revenue,
		AdditionalCost:    cost,
		NetImpact:         revenue - cost,
	}
	if current > 0 {
		impact.PercentageIncrease = revenue / current
	}
	return impact
}

// OptimizeEventCapacity composes the no-show forecast, the strategy, and
// the revenue what-if into one plan.
func (o *Optimizer) OptimizeEventCapacity(ctx context.Context, eventID string) (*Plan, error) {
	start := o.now()
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		metrics.RecordAnalyzerInvocation("capacity", "error", o.now().Sub(start))
		return nil, err
	}

	strategy, err := o.OverbookingStrategy(ctx, eventID)
	if err != nil {
		metrics.RecordAnalyzerInvocation("capacity", "error", o.now().Sub(start))
		return nil, err
	}

	price := event.TicketPrice
	if price <= 0 {
		price = o.cfg.TicketPrice
	}

	plan := &Plan{
		EventID:             eventID,
		BaseCapacity:        event.MaxGuests,
		RecommendedCapacity: int(math.Floor(float64(event.MaxGuests) * (1 + strategy.RecommendedRate))),
		ExpectedAttendance:  int(math.Floor(float64(event.MaxGuests) * (1 - strategy.NoShowRate))),
		NoShowRate:          strategy.NoShowRate,
		Strategy:            *strategy,
		Revenue:             EstimateRevenueImpact(strategy.RecommendedRate, event.MaxGuests, price, o.cfg.CostPerGuest),
		Weather:             strategy.Forecast,
		Summary: fmt.Sprintf("%s overbooking at %.1f%% over nominal capacity, %.0f%% of capacity factors favorable",
			strategy.Type, strategy.RecommendedRate*100, scoring.PositiveFraction(strategy.Factors)*100),
	}

	metrics.RecordAnalyzerInvocation("capacity", string(strategy.Type), o.now().Sub(start))
	o.logger.Info("capacity optimized",
		zap.String("event_id", eventID),
		zap.Float64("no_show_rate", strategy.NoShowRate),
		zap.Float64("recommended_rate", strategy.RecommendedRate),
		zap.String("strategy", string(strategy.Type)))
	return plan, nil
}

// Recommend wraps the plan with a confidence estimate and operational
// warnings. Both read the factor snapshot the plan's strategy was built
// from, never live providers, so they describe the same state of the world
// as the plan itself.
func (o *Optimizer) Recommend(ctx context.Context, eventID string) (*Recommendation, error) {
	plan, err := o.OptimizeEventCapacity(ctx, eventID)
	if err != nil {
		return nil, err
	}

	factors := plan.Strategy.Factors
	forecast := plan.Strategy.Forecast

	rec := &Recommendation{
		Plan:       *plan,
		Confidence: scoring.PositiveFraction(factors),
		Factors:    factors,
	}

	if plan.Strategy.RecommendedRate > 0.25 {
		rec.Warnings = append(rec.Warnings, "recommended overbooking rate exceeds 25% of nominal capacity")
	}
	if plan.NoShowRate < 0.05 {
		rec.Warnings = append(rec.Warnings, "historical no-show rate below 5%, overbooking yields little headroom")
	}
	if o.tableMultiplier(o.cfg.WeatherMultipliers, forecast.Condition) < 0.9 {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("adverse weather forecast: %s", forecast.Condition))
	}
	strongNegatives := 0
	for _, f := range factors {
		if !f.Positive && f.Weight >= 0.2 {
			strongNegatives++
		}
	}
	if strongNegatives >= 2 {
		rec.Warnings = append(rec.Warnings, "multiple strongly negative adjustment factors")
	}
	return rec, nil
}

// Occupancy returns registrations over nominal capacity, floored at zero.
// Values above 1.0 are possible once overbooking opens.
func (o *Optimizer) Occupancy(ctx context.Context, eventID string) (float64, error) {
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if event.MaxGuests <= 0 {
		return 0, nil
	}
	occ := float64(event.Registrations) / float64(event.MaxGuests)
	if occ < 0 {
		occ = 0
	}
	return occ, nil
}

// adjustmentFactors evaluates the five contextual multipliers as continuous
// factors. The impact maps the multiplier into [0,1] around 0.5; Positive
// marks multipliers at or above baseline.
func (o *Optimizer) adjustmentFactors(ctx context.Context, event *Event) ([]scoring.ContinuousFactor, WeatherForecast, error) {
	forecast, err := o.weather.Forecast(ctx, event.City, event.StartTime)
	if err != nil {
		return nil, WeatherForecast{}, err
	}
	accuracy, err := o.accuracy.AccuracyMultiplier(ctx, event.EventType)
	if err != nil {
		return nil, WeatherForecast{}, err
	}

	multipliers := map[string]float64{
		"weather":    o.tableMultiplier(o.cfg.WeatherMultipliers, forecast.Condition),
		"weekday":    o.tableMultiplier(o.cfg.WeekdayMultipliers, strings.ToLower(event.StartTime.Weekday().String())),
		"event_type": o.tableMultiplier(o.cfg.EventTypeMultipliers, strings.ToLower(event.EventType)),
		"season":     o.tableMultiplier(o.cfg.MonthMultipliers, strings.ToLower(event.StartTime.Month().String())),
		"accuracy":   accuracy,
	}

	factors := make([]scoring.ContinuousFactor, 0, len(multipliers))
	for _, name := range []string{"weather", "weekday", "event_type", "season", "accuracy"} {
		m := multipliers[name]
		factors = append(factors, scoring.ContinuousFactor{
			Name:        name,
			Weight:      adjustmentWeights[name],
			Description: fmt.Sprintf("%s multiplier %.2f", name, m),
			Impact:      impactOf(m),
			Positive:    m >= 1.0,
		})
	}
	return factors, forecast, nil
}

func (o *Optimizer) tableMultiplier(table map[string]float64, key string) float64 {
	if m, ok := table[key]; ok {
		return m
	}
	return 1.0
}

// meanMultiplier recovers the arithmetic mean of the multipliers the
// factors were built from.
func meanMultiplier(factors []scoring.ContinuousFactor) float64 {
	if len(factors) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, f := range factors {
		sum += multiplierOf(f.Impact)
	}
	return sum / float64(len(factors))
}

// impactOf maps a multiplier around 1.0 into [0,1] around 0.5. Multipliers
// outside [0.5, 1.5] saturate.
func impactOf(m float64) float64 {
	v := m - 0.5
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func multiplierOf(impact float64) float64 {
	return impact + 0.5
}
