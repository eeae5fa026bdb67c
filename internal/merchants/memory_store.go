package merchants

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]*Settings
}

// NewMemoryStore creates an in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]*Settings)}
}

func (s *MemoryStore) GetSettings(ctx context.Context, merchantID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[merchantID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return cloneSettings(st), nil
}

func (s *MemoryStore) UpsertSettings(ctx context.Context, st *Settings) error {
	if err := ValidateRules(&st.Rules); err != nil {
		return err
	}
	st.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.MerchantID] = cloneSettings(st)
	return nil
}

// cloneSettings deep-copies via JSON; rules carry nested pointers and maps.
func cloneSettings(st *Settings) *Settings {
	raw, _ := json.Marshal(st)
	var cp Settings
	_ = json.Unmarshal(raw, &cp)
	return &cp
}
