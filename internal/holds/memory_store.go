package holds

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu    sync.RWMutex
	holds map[string]*Hold
}

// NewMemoryStore creates an in-memory hold store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holds: make(map[string]*Hold)}
}

func (s *MemoryStore) Create(ctx context.Context, h *Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.holds[h.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *MemoryStore) MarkCommitted(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	if !ok {
		return ErrHoldNotFound
	}
	if h.Status != StatusPending {
		return ErrHoldCommitted
	}
	h.Status = StatusCommitted
	h.UpdatedAt = at
	return nil
}
