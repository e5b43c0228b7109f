// Package fraud provides risk scoring for check-in and payment attempts.
// Each analysis is a single-shot, request-scoped computation: signals are
// pulled from repositories through the signal cache, combined by the shared
// scoring primitive, and returned as an immutable decision object.
package fraud

import (
	"time"

	"github.com/attendly/attendly/internal/scoring"
)

// CheckInAttempt is the input value object for check-in analysis. Supplied
// by the check-in workflow and never mutated by the engine.
type CheckInAttempt struct {
	GuestID   string    `json:"guest_id"`
	EventID   string    `json:"event_id"`
	DeviceID  string    `json:"device_id"`
	IPAddress string    `json:"ip_address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	QRPayload string    `json:"qr_payload"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentAttempt is the input value object for payment analysis
type PaymentAttempt struct {
	GuestID     string    `json:"guest_id"`
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id"`
	IPAddress   string    `json:"ip_address"`
	IPCountry   string    `json:"ip_country"`
	CardSuffix  string    `json:"card_suffix"`
	CardCountry string    `json:"card_country"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// RiskScore is the immutable result of one analysis.
// ShouldBlock always implies RequiresManualReview.
type RiskScore struct {
	Score                float64          `json:"score"` // 0-100
	Level                scoring.Level    `json:"level"`
	Factors              []scoring.Factor `json:"factors"`
	Recommendation       string           `json:"recommendation"`
	RequiresManualReview bool             `json:"requires_manual_review"`
	ShouldBlock          bool             `json:"should_block"`
	Degraded             bool             `json:"degraded"` // true when a signal source failed and the decision fell back to review
}

// Decision returns the categorical outcome for metrics and callers
func (r *RiskScore) Decision() string {
	switch {
	case r.ShouldBlock:
		return "block"
	case r.RequiresManualReview:
		return "review"
	default:
		return "allow"
	}
}

// GuestRiskProfile is the cached per-guest risk summary, updated on every
// flagged activity with merge semantics: the maximum score wins and flag
// counts accumulate.
type GuestRiskProfile struct {
	GuestID          string    `json:"guest_id"`
	MaxRiskScore     float64   `json:"max_risk_score"`
	FlagCount        int       `json:"flag_count"`
	LastActivityType string    `json:"last_activity_type"`
	LastFlaggedAt    time.Time `json:"last_flagged_at"`
}

// Rule is one declarative fraud rule from the catalogue. Active rules whose
// Type matches a built-in factor name override that factor's default weight;
// the rest are surfaced for audit display only.
type Rule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Condition   string  `json:"condition"`
	RiskWeight  float64 `json:"risk_weight"`
	IsActive    bool    `json:"is_active"`
	Type        string  `json:"type"`
}

// Report aggregates fraud activity over a time window. Purely derived; no
// mutation.
type Report struct {
	From                 time.Time      `json:"from"`
	To                   time.Time      `json:"to"`
	TotalTransactions    int            `json:"total_transactions"`
	SuspiciousActivities int            `json:"suspicious_activities"`
	BlockedTransactions  int            `json:"blocked_transactions"`
	RiskLevelHistogram   map[string]int `json:"risk_level_histogram"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// EventInfo is the narrow event view the scorer needs: where and when the
// event happens and what a ticket should cost.
type EventInfo struct {
	ID          string    `json:"id"`
	VenueLat    float64   `json:"venue_lat"`
	VenueLng    float64   `json:"venue_lng"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TicketPrice float64   `json:"ticket_price"`
}
