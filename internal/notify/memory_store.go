package notify

import (
	"context"
	"sync"

	"github.com/stampcard/loyalty/internal/antifraud"
)

// MemoryStore is an in-memory staff event store for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]antifraud.StaffEvent // merchantID -> events, oldest first
}

// NewMemoryStore creates an empty in-memory staff event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]antifraud.StaffEvent)}
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, merchantID string, e antifraud.StaffEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[merchantID] = append(s.events[merchantID], e)
	return nil
}

// ListByMerchant returns the most recent events for a merchant, newest
// first.
func (s *MemoryStore) ListByMerchant(_ context.Context, merchantID string, limit int) ([]antifraud.StaffEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[merchantID]
	var events []antifraud.StaffEvent
	for i := len(stored) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, stored[i])
	}
	return events, nil
}

var _ Store = (*MemoryStore)(nil)
