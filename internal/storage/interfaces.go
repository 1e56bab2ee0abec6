package storage

import (
	"context"
	"time"

	"wallet-tax-engine/internal/domain"
)

// TransferStore caches fetched wallet history in wallet_transfers storage.
type TransferStore interface {
	// InsertBulk adds transfers atomically. Transfers already stored under the same
	// (wallet, chain_id, tx_hash, log_index, token_address) are left untouched.
	InsertBulk(ctx context.Context, transfers []*domain.Transfer) error

	// GetByWallet retrieves transfers for a wallet within r (zero bounds are open),
	// ordered by (block_timestamp, tx_hash, log_index) ASC.
	GetByWallet(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]*domain.Transfer, error)
}

// ReportStore provides access to tax_reports storage.
type ReportStore interface {
	// Save stores a report with its rows. A report with the same report_id is replaced.
	Save(ctx context.Context, r *domain.StoredReport) error

	// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, reportID string) (*domain.StoredReport, error)

	// ListByWallet retrieves report headers for a wallet, newest first.
	ListByWallet(ctx context.Context, wallet string) ([]*domain.TaxReport, error)
}

// PriceObservationStore provides access to price_observations storage.
type PriceObservationStore interface {
	// InsertBulk adds observations. Fails entire batch on duplicate (report_id, token_key).
	InsertBulk(ctx context.Context, obs []*domain.PriceObservation) error

	// GetByReport retrieves all observations of one report run, ordered by token_key.
	GetByReport(ctx context.Context, reportID string) ([]*domain.PriceObservation, error)

	// GetByToken retrieves observations of a token within [start, end] (inclusive), ordered by observed_at ASC.
	GetByToken(ctx context.Context, tokenKey string, start, end time.Time) ([]*domain.PriceObservation, error)
}

// PreferredPriceStore holds the maintained USD override table keyed by upper-case symbol.
type PreferredPriceStore interface {
	// Load returns the whole table. An empty table is not an error.
	Load(ctx context.Context) (map[string]float64, error)

	// Save merges prices into the table.
	Save(ctx context.Context, prices map[string]float64) error
}
