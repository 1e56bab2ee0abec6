package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/domain"
)

// Fetcher returns wallet transfers from an upstream API.
type Fetcher interface {
	FetchTransfers(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error)
}

// CachedSource fetches from Upstream and records every fetched transfer in Store.
// When Upstream is nil or fails, the stored history is served instead.
type CachedSource struct {
	Store    TransferStore
	Upstream Fetcher
	Logger   *zap.Logger
}

// FetchTransfers implements engine.TransferSource.
func (s *CachedSource) FetchTransfers(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if s.Upstream == nil {
		return s.stored(ctx, wallet, chainID, r)
	}

	fetched, err := s.Upstream.FetchTransfers(ctx, wallet, chainID, r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		stored, storeErr := s.stored(ctx, wallet, chainID, r)
		if storeErr != nil || len(stored) == 0 {
			return nil, err
		}
		logger.Warn("upstream fetch failed, serving stored history",
			zap.String("wallet", wallet),
			zap.Int("transfers", len(stored)),
			zap.Error(err),
		)
		return stored, nil
	}

	// Malformed transfers are returned for the engine to count but never stored.
	ptrs := make([]*domain.Transfer, 0, len(fetched))
	for i := range fetched {
		t := fetched[i].Normalized()
		if t.Validate() != nil {
			continue
		}
		ptrs = append(ptrs, &t)
	}
	if err := s.Store.InsertBulk(ctx, ptrs); err != nil {
		return nil, fmt.Errorf("store fetched transfers: %w", err)
	}
	return fetched, nil
}

func (s *CachedSource) stored(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error) {
	rows, err := s.Store.GetByWallet(ctx, wallet, chainID, r)
	if err != nil {
		return nil, fmt.Errorf("load stored transfers: %w", err)
	}
	out := make([]domain.Transfer, len(rows))
	for i, t := range rows {
		out[i] = *t
	}
	return out, nil
}
