package clickhouse

import (
	"context"
	"fmt"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/storage"
)

// PriceObservationStore implements storage.PriceObservationStore using ClickHouse.
type PriceObservationStore struct {
	conn *Conn
}

// NewPriceObservationStore creates a new PriceObservationStore.
func NewPriceObservationStore(conn *Conn) *PriceObservationStore {
	return &PriceObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk adds observations. Fails entire batch on duplicate (report_id, token_key).
func (s *PriceObservationStore) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (err error) {
	if len(obs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_observations", time.Since(start).Seconds(), err) }()

	// Check for intra-batch duplicates
	type key struct {
		reportID string
		tokenKey string
	}
	seen := make(map[key]struct{}, len(obs))
	reports := make(map[string]struct{})
	for _, o := range obs {
		if o == nil || o.ReportID == "" || o.TokenKey == "" {
			return storage.ErrInvalidInput
		}
		k := key{o.ReportID, o.TokenKey}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		reports[o.ReportID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for reportID := range reports {
		existing, err := s.tokenKeys(ctx, reportID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for tokenKey := range existing {
			if _, dup := seen[key{reportID, tokenKey}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			report_id, token_key, symbol, chain_id, currency, unit_price, source, tier, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		err = batch.Append(
			o.ReportID, o.TokenKey, o.Symbol, o.ChainID, o.Currency,
			o.UnitPrice, string(o.Source), o.Tier, o.ObservedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByReport retrieves all observations of one report run, ordered by token_key.
func (s *PriceObservationStore) GetByReport(ctx context.Context, reportID string) ([]*domain.PriceObservation, error) {
	query := `
		SELECT report_id, token_key, symbol, chain_id, currency, unit_price, source, tier, observed_at
		FROM price_observations
		WHERE report_id = ?
		ORDER BY token_key ASC
	`

	rows, err := s.conn.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("query by report: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByToken retrieves observations of a token within [start, end] (inclusive), ordered by observed_at ASC.
func (s *PriceObservationStore) GetByToken(ctx context.Context, tokenKey string, start, end time.Time) ([]*domain.PriceObservation, error) {
	query := `
		SELECT report_id, token_key, symbol, chain_id, currency, unit_price, source, tier, observed_at
		FROM price_observations
		WHERE token_key = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC, report_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenKey, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// tokenKeys returns the token keys already recorded for a report.
func (s *PriceObservationStore) tokenKeys(ctx context.Context, reportID string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `SELECT token_key FROM price_observations WHERE report_id = ?`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]*domain.PriceObservation, error) {
	var out []*domain.PriceObservation

	for rows.Next() {
		var o domain.PriceObservation
		var source string

		err := rows.Scan(
			&o.ReportID, &o.TokenKey, &o.Symbol, &o.ChainID, &o.Currency,
			&o.UnitPrice, &source, &o.Tier, &o.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}

		o.Source = domain.PriceSource(source)
		o.ObservedAt = o.ObservedAt.UTC()
		out = append(out, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price observation rows: %w", err)
	}

	return out, nil
}
