// Package pricing computes dynamic ticket prices from urgency, occupancy,
// calendar, demand, and competitor signals. Pure read-side: a price quote
// never mutates anything.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/capacity"
	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/metrics"
	"github.com/attendly/attendly/internal/signalcache"
)

// OccupancyProvider is the slice of the capacity optimizer pricing needs
type OccupancyProvider interface {
	Occupancy(ctx context.Context, eventID string) (float64, error)
}

// Factors is the full signal set behind one quote
type Factors struct {
	EventID          string    `json:"event_id"`
	BasePrice        float64   `json:"base_price"`
	DaysUntilEvent   int       `json:"days_until_event"`
	Occupancy        float64   `json:"occupancy"`
	Weekday          string    `json:"weekday"`
	IsWeekend        bool      `json:"is_weekend"`
	IsHoliday        bool      `json:"is_holiday"`
	DemandMultiplier float64   `json:"demand_multiplier"`
	CompetitorRatio  float64   `json:"competitor_ratio"`
	Registrations    int       `json:"registrations"`
	MaxGuests        int       `json:"max_guests"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// Quote is one computed price with its multiplier breakdown
type Quote struct {
	EventID     string             `json:"event_id"`
	BasePrice   float64            `json:"base_price"`
	FinalPrice  float64            `json:"final_price"`
	Multipliers map[string]float64 `json:"multipliers"`
	Factors     Factors            `json:"factors"`
}

// Optimizer computes quotes. Demand and competitor signals go through the
// cache; everything else is evaluated per request.
type Optimizer struct {
	events      capacity.EventStore
	occupancy   OccupancyProvider
	demand      capacity.DemandProvider
	competitors capacity.CompetitorPriceProvider
	holidays    capacity.HolidayProvider
	cache       *signalcache.Cache
	cfg         config.PricingConfig
	ttls        config.CacheConfig
	logger      *zap.Logger
	now         func() time.Time
}

// OptimizerParams bundles the optimizer's dependencies
type OptimizerParams struct {
	Events      capacity.EventStore
	Occupancy   OccupancyProvider
	Demand      capacity.DemandProvider
	Competitors capacity.CompetitorPriceProvider
	Holidays    capacity.HolidayProvider
	Cache       *signalcache.Cache
	Config      config.PricingConfig
	TTLs        config.CacheConfig
	Logger      *zap.Logger
}

func NewOptimizer(p OptimizerParams) *Optimizer {
	return &Optimizer{
		events:      p.Events,
		occupancy:   p.Occupancy,
		demand:      p.Demand,
		competitors: p.Competitors,
		holidays:    p.Holidays,
		cache:       p.Cache,
		cfg:         p.Config,
		ttls:        p.TTLs,
		logger:      p.Logger.With(zap.String("component", "pricing_optimizer")),
		now:         time.Now,
	}
}

// PricingFactors gathers every signal a quote depends on
func (o *Optimizer) PricingFactors(ctx context.Context, eventID string) (*Factors, error) {
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	occ, err := o.occupancy.Occupancy(ctx, eventID)
	if err != nil {
		return nil, err
	}

	demand, err := signalcache.GetOrComputeJSON(ctx, o.cache, "pricing:demand:"+eventID, o.ttls.DemandTTL,
		func(ctx context.Context) (float64, error) {
			return o.demand.DemandMultiplier(ctx, eventID)
		})
	if err != nil {
		return nil, err
	}

	competitorKey := fmt.Sprintf("pricing:competitors:%s:%s", event.EventType, event.City)
	prices, err := signalcache.GetOrComputeJSON(ctx, o.cache, competitorKey, o.ttls.CompetitorTTL,
		func(ctx context.Context) ([]float64, error) {
			return o.competitors.Prices(ctx, event.EventType, event.City)
		})
	if err != nil {
		return nil, err
	}

	now := o.now()
	weekday := event.StartTime.Weekday()

	return &Factors{
		EventID:          eventID,
		BasePrice:        event.TicketPrice,
		DaysUntilEvent:   daysUntil(now, event.StartTime),
		Occupancy:        occ,
		Weekday:          weekday.String(),
		IsWeekend:        weekday == time.Saturday || weekday == time.Sunday,
		IsHoliday:        o.holidays.IsHoliday(event.StartTime),
		DemandMultiplier: demand,
		CompetitorRatio:  o.competitorRatio(prices, event.TicketPrice),
		Registrations:    event.Registrations,
		MaxGuests:        event.MaxGuests,
		EvaluatedAt:      now.UTC(),
	}, nil
}

// DynamicPrice computes the quote: the base price times every applicable
// multiplier, rounded to the configured unit.
func (o *Optimizer) DynamicPrice(ctx context.Context, eventID string) (*Quote, error) {
	start := o.now()
	factors, err := o.PricingFactors(ctx, eventID)
	if err != nil {
		metrics.RecordAnalyzerInvocation("pricing", "error", o.now().Sub(start))
		return nil, err
	}

	multipliers := map[string]float64{
		"urgency":    o.urgencyMultiplier(factors.DaysUntilEvent),
		"occupancy":  o.occupancyMultiplier(factors.Occupancy),
		"weekend":    1.0,
		"holiday":    1.0,
		"demand":     factors.DemandMultiplier,
		"competitor": factors.CompetitorRatio,
	}
	if factors.IsWeekend {
		multipliers["weekend"] = o.cfg.WeekendMultiplier
	}
	if factors.IsHoliday {
		multipliers["holiday"] = o.cfg.HolidayMultiplier
	}

	price := factors.BasePrice
	for _, m := range multipliers {
		price *= m
	}
	price = roundToUnit(price, o.cfg.RoundingUnit)

	metrics.RecordAnalyzerInvocation("pricing", "quote", o.now().Sub(start))
	o.logger.Info("price quoted",
		zap.String("event_id", eventID),
		zap.Float64("base_price", factors.BasePrice),
		zap.Float64("final_price", price),
		zap.Int("days_until_event", factors.DaysUntilEvent))

	return &Quote{
		EventID:     eventID,
		BasePrice:   factors.BasePrice,
		FinalPrice:  price,
		Multipliers: multipliers,
		Factors:     *factors,
	}, nil
}

func (o *Optimizer) urgencyMultiplier(days int) float64 {
	switch {
	case days <= o.cfg.UrgentDays:
		return o.cfg.UrgentMultiplier
	case days <= o.cfg.SoonDays:
		return o.cfg.SoonMultiplier
	default:
		return 1.0
	}
}

func (o *Optimizer) occupancyMultiplier(occ float64) float64 {
	switch {
	case occ > o.cfg.HighOccupancy:
		return o.cfg.HighOccMultiplier
	case occ < o.cfg.LowOccupancy:
		return o.cfg.LowOccMultiplier
	default:
		return 1.0
	}
}

// competitorRatio is the market average over our base price, capped so one
// outlier market cannot blow the quote up. Missing data means parity.
func (o *Optimizer) competitorRatio(prices []float64, basePrice float64) float64 {
	if len(prices) == 0 || basePrice <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	ratio := sum / float64(len(prices)) / basePrice
	if ratio > o.cfg.MaxCompetitorRatio {
		ratio = o.cfg.MaxCompetitorRatio
	}
	return ratio
}

func daysUntil(now, start time.Time) int {
	d := int(math.Ceil(start.Sub(now).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

func roundToUnit(price, unit float64) float64 {
	if unit <= 0 {
		return math.Round(price)
	}
	return math.Round(price/unit) * unit
}
