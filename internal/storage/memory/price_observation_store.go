package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
)

// PriceObservationStore is an in-memory implementation of storage.PriceObservationStore.
type PriceObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceObservation // keyed by report_id|token_key
}

// NewPriceObservationStore creates a new in-memory observation store.
func NewPriceObservationStore() *PriceObservationStore {
	return &PriceObservationStore{
		data: make(map[string]*domain.PriceObservation),
	}
}

func observationKey(o *domain.PriceObservation) string {
	return o.ReportID + "|" + o.TokenKey
}

// InsertBulk adds observations atomically. Fails entire batch on any duplicate.
func (s *PriceObservationStore) InsertBulk(_ context.Context, obs []*domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.ReportID == "" || o.TokenKey == "" {
			return storage.ErrInvalidInput
		}
		key := observationKey(o)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range obs {
		copy := *o
		s.data[observationKey(o)] = &copy
	}

	return nil
}

// GetByReport retrieves all observations of one report run, ordered by token key.
func (s *PriceObservationStore) GetByReport(_ context.Context, reportID string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.ReportID == reportID {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenKey < result[j].TokenKey
	})

	return result, nil
}

// GetByToken retrieves observations of a token within [start, end] (inclusive).
func (s *PriceObservationStore) GetByToken(_ context.Context, tokenKey string, start, end time.Time) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.TokenKey == tokenKey && !o.ObservedAt.Before(start) && !o.ObservedAt.After(end) {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].ReportID < result[j].ReportID
	})

	return result, nil
}

var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)
