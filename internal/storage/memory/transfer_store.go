package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transfer // keyed by composite key
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.Transfer),
	}
}

// transferKey generates a unique key for a wallet transfer.
func transferKey(t *domain.Transfer) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s",
		strings.ToLower(t.WalletAddress), t.ChainID, strings.ToLower(t.TxHash), t.LogIndex, strings.ToLower(t.TokenAddress))
}

// InsertBulk adds transfers atomically. Already stored transfers are left untouched.
func (s *TransferStore) InsertBulk(_ context.Context, transfers []*domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	// First pass: validate the whole batch
	for _, t := range transfers {
		if t == nil || t.TxHash == "" || t.WalletAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Second pass: insert missing
	for _, t := range transfers {
		key := transferKey(t)
		if _, exists := s.data[key]; exists {
			continue
		}
		copy := t.Normalized()
		s.data[key] = &copy
	}

	return nil
}

// GetByWallet retrieves transfers for a wallet within r, ordered by (timestamp, tx hash, log index).
func (s *TransferStore) GetByWallet(_ context.Context, wallet, chainID string, r domain.DateRange) ([]*domain.Transfer, error) {
	wallet = strings.ToLower(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transfer
	for _, t := range s.data {
		if t.WalletAddress == wallet && t.ChainID == chainID && r.Contains(t.BlockTimestamp) {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.BlockTimestamp.Equal(b.BlockTimestamp) {
			return a.BlockTimestamp.Before(b.BlockTimestamp)
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.LogIndex < b.LogIndex
	})

	return result, nil
}

var _ storage.TransferStore = (*TransferStore)(nil)
