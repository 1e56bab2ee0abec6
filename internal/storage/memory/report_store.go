package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StoredReport // keyed by report_id
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		data: make(map[string]*domain.StoredReport),
	}
}

// Save stores a report with its rows, replacing any report with the same ID.
func (s *ReportStore) Save(_ context.Context, r *domain.StoredReport) error {
	if r == nil || r.Report.ReportID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Report.ReportID] = cloneReport(r)
	return nil
}

// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(_ context.Context, reportID string) (*domain.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[reportID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneReport(r), nil
}

// ListByWallet retrieves report headers for a wallet, newest first.
func (s *ReportStore) ListByWallet(_ context.Context, wallet string) ([]*domain.TaxReport, error) {
	wallet = strings.ToLower(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TaxReport
	for _, r := range s.data {
		if r.Report.Wallet == wallet {
			header := cloneReport(r).Report
			result = append(result, &header)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].GeneratedAt.Equal(result[j].GeneratedAt) {
			return result[i].GeneratedAt.After(result[j].GeneratedAt)
		}
		return result[i].ReportID < result[j].ReportID
	})

	return result, nil
}

func cloneReport(r *domain.StoredReport) *domain.StoredReport {
	out := &domain.StoredReport{
		Report: r.Report,
		Rows:   append([]domain.DetailRow(nil), r.Rows...),
	}
	if r.Report.Categories != nil {
		out.Report.Categories = make(map[domain.Category]domain.CategoryTotal, len(r.Report.Categories))
		for k, v := range r.Report.Categories {
			out.Report.Categories[k] = v
		}
	}
	return out
}

var _ storage.ReportStore = (*ReportStore)(nil)
