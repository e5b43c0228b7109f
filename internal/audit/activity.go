// Package audit provides the append-only suspicious-activity log for the
// decision engine. Records are created when a risk decision crosses the
// blocking threshold and are never updated or deleted.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/attendly/attendly/internal/scoring"
)

// ActivityType classifies a suspicious activity record
type ActivityType string

const (
	ActivityCheckInFraud ActivityType = "checkin_fraud"
	ActivityPaymentFraud ActivityType = "payment_fraud"
)

// SuspiciousActivity is one append-only audit record. Metadata carries the
// triggered factor names and any analyzer-specific context.
type SuspiciousActivity struct {
	ID           string            `json:"id"`
	GuestID      string            `json:"guest_id"`
	ActivityType ActivityType      `json:"activity_type"`
	Description  string            `json:"description"`
	RiskScore    float64           `json:"risk_score"`
	Level        scoring.Level     `json:"level"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewSuspiciousActivity builds a record with a fresh id and timestamp
func NewSuspiciousActivity(guestID string, activityType ActivityType, description string, score float64, level scoring.Level) *SuspiciousActivity {
	return &SuspiciousActivity{
		ID:           uuid.NewString(),
		GuestID:      guestID,
		ActivityType: activityType,
		Description:  description,
		RiskScore:    score,
		Level:        level,
		Timestamp:    time.Now().UTC(),
		Metadata:     make(map[string]string),
	}
}
