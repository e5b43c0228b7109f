package fraud

import (
	"context"
	"time"

	"github.com/attendly/attendly/internal/audit"
)

// CheckInStore exposes the check-in history reads the scorer needs. Counts
// are cheap aggregate queries; implementations must never return negative
// values.
type CheckInStore interface {
	// CountByGuestSince counts check-in attempts by a guest after since.
	CountByGuestSince(ctx context.Context, guestID string, since time.Time) (int, error)
	// CountDistinctGuestsByDeviceSince counts how many distinct guests a
	// device has checked in after since.
	CountDistinctGuestsByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error)
	// CheckInHours returns the hours of day (0-23, event-local) of the
	// guest's successful check-ins after since.
	CheckInHours(ctx context.Context, guestID string, since time.Time) ([]int, error)
	// CountInWindow counts all check-in attempts in [from, to).
	CountInWindow(ctx context.Context, from, to time.Time) (int, error)
}

// PaymentStore exposes the payment history reads the scorer needs.
type PaymentStore interface {
	CountByGuestSince(ctx context.Context, guestID string, since time.Time) (int, error)
	// CountDistinctGuestsByCardSince counts distinct guests that paid with
	// the same card suffix after since.
	CountDistinctGuestsByCardSince(ctx context.Context, cardSuffix string, since time.Time) (int, error)
	// CountFailedByDeviceSince counts failed payments from a device after since.
	CountFailedByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error)
	// FailureStats returns (failed, total) payment attempts by a guest after since.
	FailureStats(ctx context.Context, guestID string, since time.Time) (failed int, total int, err error)
	CountInWindow(ctx context.Context, from, to time.Time) (int, error)
}

// EventStore resolves the event view for an attempt
type EventStore interface {
	GetEventInfo(ctx context.Context, eventID string) (*EventInfo, error)
}

// RuleStore lists the fraud rule catalogue
type RuleStore interface {
	ListActive(ctx context.Context) ([]Rule, error)
}

// ActivitySink is the audit trail surface the scorer writes flagged
// activities to and reads recent history from. *audit.Store satisfies it.
type ActivitySink interface {
	Append(ctx context.Context, activity *audit.SuspiciousActivity) error
	ListByGuest(ctx context.Context, guestID string, since time.Time) ([]audit.SuspiciousActivity, error)
	CountByLevel(ctx context.Context, from, to time.Time) (map[string]int, error)
}
