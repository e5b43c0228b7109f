package fraud

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/attendly/attendly/internal/common/errors"
)

// memCheckIn is one recorded check-in attempt for the in-memory store
type memCheckIn struct {
	GuestID   string
	DeviceID  string
	At        time.Time
	Succeeded bool
}

// memPayment is one recorded payment attempt
type memPayment struct {
	GuestID    string
	DeviceID   string
	CardSuffix string
	At         time.Time
	Failed     bool
}

// MemoryStore is an in-memory implementation of every scorer read interface.
// Used in tests and local development; safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	checkins []memCheckIn
	payments []memPayment
	events   map[string]EventInfo
	rules    []Rule
	failOps  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]EventInfo)}
}

var errUnavailable = stderrors.New("store unavailable")

var (
	_ CheckInStore = (*MemoryStore)(nil)
	_ PaymentStore = memoryPayments{}
	_ EventStore   = (*MemoryStore)(nil)
	_ RuleStore    = (*MemoryStore)(nil)
)

// FailDependencies makes every read return a dependency error, simulating a
// database outage.
func (m *MemoryStore) FailDependencies(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOps = fail
}

func (m *MemoryStore) AddCheckIn(guestID, deviceID string, at time.Time, succeeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins = append(m.checkins, memCheckIn{GuestID: guestID, DeviceID: deviceID, At: at, Succeeded: succeeded})
}

func (m *MemoryStore) AddPayment(guestID, deviceID, cardSuffix string, at time.Time, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, memPayment{GuestID: guestID, DeviceID: deviceID, CardSuffix: cardSuffix, At: at, Failed: failed})
}

func (m *MemoryStore) PutEvent(info EventInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[info.ID] = info
}

func (m *MemoryStore) PutRules(rules ...Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rules...)
}

func (m *MemoryStore) CountByGuestSince(_ context.Context, guestID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	n := 0
	for _, c := range m.checkins {
		if c.GuestID == guestID && !c.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountDistinctGuestsByDeviceSince(_ context.Context, deviceID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	guests := make(map[string]struct{})
	for _, c := range m.checkins {
		if c.DeviceID == deviceID && !c.At.Before(since) {
			guests[c.GuestID] = struct{}{}
		}
	}
	return len(guests), nil
}

func (m *MemoryStore) CheckInHours(_ context.Context, guestID string, since time.Time) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return nil, errors.RepositoryError("memory.hours", errUnavailable)
	}
	seen := make(map[int]struct{})
	var hours []int
	for _, c := range m.checkins {
		if c.GuestID == guestID && c.Succeeded && !c.At.Before(since) {
			h := c.At.UTC().Hour()
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				hours = append(hours, h)
			}
		}
	}
	return hours, nil
}

func (m *MemoryStore) CountInWindow(_ context.Context, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	n := 0
	for _, c := range m.checkins {
		if !c.At.Before(from) && c.At.Before(to) {
			n++
		}
	}
	return n, nil
}

// Payments returns the payment view of the store
func (m *MemoryStore) Payments() PaymentStore { return memoryPayments{m} }

// memoryPayments disambiguates the CountByGuestSince / CountInWindow names
// shared with CheckInStore.
type memoryPayments struct{ m *MemoryStore }

func (p memoryPayments) CountByGuestSince(_ context.Context, guestID string, since time.Time) (int, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	if p.m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	n := 0
	for _, pay := range p.m.payments {
		if pay.GuestID == guestID && !pay.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (p memoryPayments) CountDistinctGuestsByCardSince(_ context.Context, cardSuffix string, since time.Time) (int, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	if p.m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	guests := make(map[string]struct{})
	for _, pay := range p.m.payments {
		if pay.CardSuffix == cardSuffix && !pay.At.Before(since) {
			guests[pay.GuestID] = struct{}{}
		}
	}
	return len(guests), nil
}

func (p memoryPayments) CountFailedByDeviceSince(_ context.Context, deviceID string, since time.Time) (int, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	if p.m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	n := 0
	for _, pay := range p.m.payments {
		if pay.DeviceID == deviceID && pay.Failed && !pay.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (p memoryPayments) FailureStats(_ context.Context, guestID string, since time.Time) (int, int, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	if p.m.failOps {
		return 0, 0, errors.RepositoryError("memory.stats", errUnavailable)
	}
	failed, total := 0, 0
	for _, pay := range p.m.payments {
		if pay.GuestID == guestID && !pay.At.Before(since) {
			total++
			if pay.Failed {
				failed++
			}
		}
	}
	return failed, total, nil
}

func (p memoryPayments) CountInWindow(_ context.Context, from, to time.Time) (int, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	if p.m.failOps {
		return 0, errors.RepositoryError("memory.count", errUnavailable)
	}
	n := 0
	for _, pay := range p.m.payments {
		if !pay.At.Before(from) && pay.At.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetEventInfo(_ context.Context, eventID string) (*EventInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return nil, errors.RepositoryError("memory.get_event", errUnavailable)
	}
	info, ok := m.events[eventID]
	if !ok {
		return nil, errors.EventNotFound(eventID)
	}
	return &info, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failOps {
		return nil, errors.RepositoryError("memory.list_rules", errUnavailable)
	}
	var active []Rule
	for _, r := range m.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}
