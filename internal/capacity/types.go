// Package capacity computes no-show forecasts, overbooking strategies, and
// capacity recommendations for upcoming events. All outputs are derived
// values; the optimizer never mutates event state.
package capacity

import (
	"time"

	"github.com/attendly/attendly/internal/scoring"
)

// Event is the optimizer's view of an event
type Event struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	EventType     string    `json:"event_type"`
	City          string    `json:"city"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	MaxGuests     int       `json:"max_guests"`
	Registrations int       `json:"registrations"`
	TicketPrice   float64   `json:"ticket_price"`
}

// AttendanceRecord is one past event's invited/attended outcome
type AttendanceRecord struct {
	EventID   string    `json:"event_id"`
	Invited   int       `json:"invited"`
	Attended  int       `json:"attended"`
	StartTime time.Time `json:"start_time"`
}

// StrategyType classifies how far past nominal capacity a strategy goes
type StrategyType string

const (
	StrategyConservative StrategyType = "conservative"
	StrategyModerate     StrategyType = "moderate"
	StrategyAggressive   StrategyType = "aggressive"
)

// Strategy is one overbooking strategy computed from the no-show rate.
// Recommended is always within [0, max overbooking rate]. Factors and
// Forecast are the contextual snapshot the adjustment was derived from;
// everything downstream of the strategy reads them instead of re-querying
// the providers, so a plan and its confidence never disagree.
type Strategy struct {
	NoShowRate       float64                    `json:"no_show_rate"`
	ConservativeRate float64                    `json:"conservative_rate"`
	ModerateRate     float64                    `json:"moderate_rate"`
	AggressiveRate   float64                    `json:"aggressive_rate"`
	Adjustment       float64                    `json:"adjustment"`
	RecommendedRate  float64                    `json:"recommended_rate"`
	Type             StrategyType               `json:"type"`
	Factors          []scoring.ContinuousFactor `json:"factors"`
	Forecast         WeatherForecast            `json:"forecast"`
}

// RevenueImpact quantifies what an overbooking rate is worth against the
// nominal-capacity baseline
type RevenueImpact struct {
	CurrentRevenue     float64 `json:"current_revenue"`
	OptimizedRevenue   float64 `json:"optimized_revenue"`
	PercentageIncrease float64 `json:"percentage_increase"`
	CostPerGuest       float64 `json:"cost_per_guest"`
	AdditionalGuests   int     `json:"additional_guests"`
	AdditionalRevenue  float64 `json:"additional_revenue"`
	AdditionalCost     float64 `json:"additional_cost"`
	NetImpact          float64 `json:"net_impact"`
}

// Plan is the composed capacity recommendation for one event
type Plan struct {
	EventID             string          `json:"event_id"`
	BaseCapacity        int             `json:"base_capacity"`
	RecommendedCapacity int             `json:"recommended_capacity"`
	ExpectedAttendance  int             `json:"expected_attendance"`
	NoShowRate          float64         `json:"no_show_rate"`
	Strategy            Strategy        `json:"strategy"`
	Revenue             RevenueImpact   `json:"revenue"`
	Weather             WeatherForecast `json:"weather_forecast"`
	Summary             string          `json:"summary"`
}

// Recommendation wraps a plan with a confidence estimate and operational
// warnings for the organizer dashboard.
type Recommendation struct {
	Plan       Plan                       `json:"plan"`
	Confidence float64                    `json:"confidence"` // [0,1]
	Warnings   []string                   `json:"warnings,omitempty"`
	Factors    []scoring.ContinuousFactor `json:"factors"`
}
