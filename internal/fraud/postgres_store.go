package fraud

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/attendly/attendly/internal/common/database"
	"github.com/attendly/attendly/internal/common/errors"
)

// PostgresStore implements the scorer's read interfaces over the check-in
// SaaS transactional schema. All queries are aggregate reads; the scorer
// never writes through this store.
type PostgresStore struct {
	db *database.PostgresDB
}

func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

var (
	_ CheckInStore = (*PostgresStore)(nil)
	_ PaymentStore = paymentCounter{}
	_ EventStore   = (*PostgresStore)(nil)
	_ RuleStore    = (*PostgresStore)(nil)
)

func (s *PostgresStore) CountByGuestSince(ctx context.Context, guestID string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM checkin_attempts WHERE guest_id = $1 AND attempted_at >= $2`,
		guestID, since)
}

func (s *PostgresStore) CountDistinctGuestsByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(DISTINCT guest_id) FROM checkin_attempts WHERE device_id = $1 AND attempted_at >= $2`,
		deviceID, since)
}

func (s *PostgresStore) CheckInHours(ctx context.Context, guestID string, since time.Time) ([]int, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT DISTINCT EXTRACT(HOUR FROM attempted_at)::int
		 FROM checkin_attempts
		 WHERE guest_id = $1 AND attempted_at >= $2 AND succeeded`,
		guestID, since)
	if err != nil {
		return nil, errors.RepositoryError("fraud.checkin_hours", err)
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, errors.RepositoryError("fraud.checkin_hours", err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (s *PostgresStore) CountInWindow(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM checkin_attempts WHERE attempted_at >= $1 AND attempted_at < $2`,
		from, to)
}

// paymentCounter narrows PostgresStore to the payment tables so one struct
// can satisfy both CheckInStore and PaymentStore without method clashes on
// the shared names.
type paymentCounter struct{ s *PostgresStore }

// Payments returns the PaymentStore view of the same pool
func (s *PostgresStore) Payments() PaymentStore { return paymentCounter{s} }

func (p paymentCounter) CountByGuestSince(ctx context.Context, guestID string, since time.Time) (int, error) {
	return p.s.count(ctx,
		`SELECT COUNT(*) FROM payment_attempts WHERE guest_id = $1 AND attempted_at >= $2`,
		guestID, since)
}

func (p paymentCounter) CountDistinctGuestsByCardSince(ctx context.Context, cardSuffix string, since time.Time) (int, error) {
	return p.s.count(ctx,
		`SELECT COUNT(DISTINCT guest_id) FROM payment_attempts WHERE card_suffix = $1 AND attempted_at >= $2`,
		cardSuffix, since)
}

func (p paymentCounter) CountFailedByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	return p.s.count(ctx,
		`SELECT COUNT(*) FROM payment_attempts WHERE device_id = $1 AND attempted_at >= $2 AND status = 'failed'`,
		deviceID, since)
}

func (p paymentCounter) FailureStats(ctx context.Context, guestID string, since time.Time) (int, int, error) {
	var failed, total int
	err := p.s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'failed'), COUNT(*)
		 FROM payment_attempts WHERE guest_id = $1 AND attempted_at >= $2`,
		guestID, since).Scan(&failed, &total)
	if err != nil {
		return 0, 0, errors.RepositoryError("fraud.failure_stats", err)
	}
	return failed, total, nil
}

func (p paymentCounter) CountInWindow(ctx context.Context, from, to time.Time) (int, error) {
	return p.s.count(ctx,
		`SELECT COUNT(*) FROM payment_attempts WHERE attempted_at >= $1 AND attempted_at < $2`,
		from, to)
}

func (s *PostgresStore) GetEventInfo(ctx context.Context, eventID string) (*EventInfo, error) {
	var info EventInfo
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, venue_lat, venue_lng, start_time, end_time, ticket_price
		 FROM events WHERE id = $1`,
		eventID).Scan(&info.ID, &info.VenueLat, &info.VenueLng, &info.StartTime, &info.EndTime, &info.TicketPrice)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.EventNotFound(eventID)
		}
		return nil, errors.RepositoryError("fraud.get_event", err)
	}
	return &info, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, name, description, condition, risk_weight, is_active, rule_type
		 FROM fraud_rules WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, errors.RepositoryError("fraud.list_rules", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Condition, &r.RiskWeight, &r.IsActive, &r.Type); err != nil {
			return nil, errors.RepositoryError("fraud.list_rules", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.RepositoryError("fraud.count", err)
	}
	return n, nil
}
