package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu  sync.RWMutex
	txs []*Transaction
}

// NewMemoryStore creates an in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs = append(s.txs, &cp)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, merchantID string, f CountFilter, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, tx := range s.txs {
		if tx.MerchantID != merchantID || tx.CreatedAt.Before(since) {
			continue
		}
		if f.CustomerID != "" && tx.CustomerID != f.CustomerID {
			continue
		}
		if f.OutletID != "" && tx.OutletID != f.OutletID {
			continue
		}
		if f.StaffID != "" && tx.StaffID != f.StaffID {
			continue
		}
		if f.DeviceID != "" && tx.DeviceID != f.DeviceID {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) ListByCustomer(ctx context.Context, merchantID, customerID string, since time.Time, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Transaction
	for i := len(s.txs) - 1; i >= 0 && len(result) < limit; i-- {
		tx := s.txs[i]
		if tx.MerchantID != merchantID || tx.CustomerID != customerID || tx.CreatedAt.Before(since) {
			continue
		}
		cp := *tx
		result = append(result, &cp)
	}
	return result, nil
}
