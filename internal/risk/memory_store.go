package risk

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // merchantID/customerID → assessments
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assessments: make(map[string][]*Assessment)}
}

func key(merchantID, customerID string) string {
	return merchantID + "/" + customerID
}

func (s *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Factors = append([]string(nil), a.Factors...)
	k := key(a.MerchantID, a.CustomerID)
	s.assessments[k] = append(s.assessments[k], &cp)
	return nil
}

func (s *MemoryStore) ListByCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[key(merchantID, customerID)]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		cp.Factors = append([]string(nil), all[i].Factors...)
		result = append(result, &cp)
	}
	return result, nil
}
