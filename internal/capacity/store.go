package capacity

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/attendly/attendly/internal/common/database"
	"github.com/attendly/attendly/internal/common/errors"
)

// EventStore exposes the event and attendance reads the optimizer needs
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	// AttendanceHistory returns completed events of the same type that
	// started before the cutoff, most recent first.
	AttendanceHistory(ctx context.Context, eventType string, before time.Time, limit int) ([]AttendanceRecord, error)
}

// PostgresEventStore reads events and attendance outcomes from the
// transactional schema.
type PostgresEventStore struct {
	db *database.PostgresDB
}

func NewPostgresEventStore(db *database.PostgresDB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

var _ EventStore = (*PostgresEventStore)(nil)

func (s *PostgresEventStore) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var e Event
	err := s.db.Pool.QueryRow(ctx,
		`SELECT e.id, e.name, e.event_type, e.city, e.start_time, e.end_time,
		        e.max_guests, e.ticket_price,
		        (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id)
		 FROM events e WHERE e.id = $1`,
		eventID).Scan(&e.ID, &e.Name, &e.EventType, &e.City, &e.StartTime, &e.EndTime,
		&e.MaxGuests, &e.TicketPrice, &e.Registrations)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.EventNotFound(eventID)
		}
		return nil, errors.RepositoryError("capacity.get_event", err)
	}
	return &e, nil
}

func (s *PostgresEventStore) AttendanceHistory(ctx context.Context, eventType string, before time.Time, limit int) ([]AttendanceRecord, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT event_id, invited, attended, start_time
		 FROM event_attendance
		 WHERE event_type = $1 AND start_time < $2
		 ORDER BY start_time DESC LIMIT $3`,
		eventType, before, limit)
	if err != nil {
		return nil, errors.RepositoryError("capacity.attendance_history", err)
	}
	defer rows.Close()

	var records []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.EventID, &r.Invited, &r.Attended, &r.StartTime); err != nil {
			return nil, errors.RepositoryError("capacity.attendance_history", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MemoryEventStore is the in-memory EventStore for tests
type MemoryEventStore struct {
	mu      sync.RWMutex
	events  map[string]Event
	history []AttendanceRecord
	types   []string // event type per history record
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string]Event)}
}

var _ EventStore = (*MemoryEventStore)(nil)

func (m *MemoryEventStore) PutEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

func (m *MemoryEventStore) AddHistory(eventType string, records ...AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.history = append(m.history, r)
		m.types = append(m.types, eventType)
	}
}

func (m *MemoryEventStore) GetEvent(_ context.Context, eventID string) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, errors.EventNotFound(eventID)
	}
	return &e, nil
}

func (m *MemoryEventStore) AttendanceHistory(_ context.Context, eventType string, before time.Time, limit int) ([]AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AttendanceRecord
	for i, r := range m.history {
		if m.types[i] == eventType && r.StartTime.Before(before) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
