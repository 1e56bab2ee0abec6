package memory

import (
	"context"
	"strings"
	"sync"

	"wallet-tax-engine/internal/storage"
)

// PreferredPriceStore is an in-memory implementation of storage.PreferredPriceStore.
type PreferredPriceStore struct {
	mu   sync.RWMutex
	data map[string]float64
}

// NewPreferredPriceStore creates a new in-memory preferred price table.
func NewPreferredPriceStore() *PreferredPriceStore {
	return &PreferredPriceStore{data: make(map[string]float64)}
}

// Load returns a copy of the table.
func (s *PreferredPriceStore) Load(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

// Save merges prices into the table. Symbols are upper-cased.
func (s *PreferredPriceStore) Save(_ context.Context, prices map[string]float64) error {
	for sym, p := range prices {
		if strings.TrimSpace(sym) == "" || p <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sym, p := range prices {
		s.data[strings.ToUpper(strings.TrimSpace(sym))] = p
	}
	return nil
}

var _ storage.PreferredPriceStore = (*PreferredPriceStore)(nil)
