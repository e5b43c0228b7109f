package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory activity trail for tests and local
// development. Append-only, safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	activities []SuspiciousActivity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, activity *SuspiciousActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, *activity)
	return nil
}

func (m *MemoryStore) ListByGuest(_ context.Context, guestID string, since time.Time) ([]SuspiciousActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SuspiciousActivity
	for _, a := range m.activities {
		if a.GuestID == guestID && !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountByLevel(_ context.Context, from, to time.Time) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, a := range m.activities {
		if !a.Timestamp.Before(from) && a.Timestamp.Before(to) {
			counts[a.Level.String()]++
		}
	}
	return counts, nil
}

// All returns a copy of every recorded activity
func (m *MemoryStore) All() []SuspiciousActivity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SuspiciousActivity, len(m.activities))
	copy(out, m.activities)
	return out
}
