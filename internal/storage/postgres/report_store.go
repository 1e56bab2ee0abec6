package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
// The report header and detail rows are stored as JSONB documents.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// Save stores a report with its rows, replacing any report with the same ID.
func (s *ReportStore) Save(ctx context.Context, r *domain.StoredReport) (err error) {
	if r == nil || r.Report.ReportID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "save_report", time.Since(start).Seconds(), err) }()

	header, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	rows := r.Rows
	if rows == nil {
		rows = []domain.DetailRow{}
	}
	detail, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal detail rows: %w", err)
	}

	query := `
		INSERT INTO tax_reports (
			report_id, wallet_address, chain_id, quote_currency, period_start, period_end,
			estimated_tax, report, detail_rows, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (report_id) DO UPDATE SET
			estimated_tax = EXCLUDED.estimated_tax,
			report        = EXCLUDED.report,
			detail_rows   = EXCLUDED.detail_rows,
			generated_at  = EXCLUDED.generated_at,
			updated_at    = now()
	`

	rep := &r.Report
	_, err = s.pool.Exec(ctx, query,
		rep.ReportID,
		strings.ToLower(rep.Wallet),
		rep.ChainID,
		rep.QuoteCurrency,
		nullableTime(rep.PeriodStart),
		nullableTime(rep.PeriodEnd),
		rep.EstimatedTax,
		header,
		detail,
		rep.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(ctx context.Context, reportID string) (_ *domain.StoredReport, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "get_report", time.Since(start).Seconds(), err) }()

	query := `SELECT report, detail_rows FROM tax_reports WHERE report_id = $1`

	var header, detail []byte
	if err := s.pool.QueryRow(ctx, query, reportID).Scan(&header, &detail); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get report by id: %w", err)
	}

	var out domain.StoredReport
	if err := json.Unmarshal(header, &out.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	if err := json.Unmarshal(detail, &out.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal detail rows: %w", err)
	}
	return &out, nil
}

// ListByWallet retrieves report headers for a wallet, newest first.
func (s *ReportStore) ListByWallet(ctx context.Context, wallet string) (_ []*domain.TaxReport, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "list_reports", time.Since(start).Seconds(), err) }()

	query := `
		SELECT report FROM tax_reports
		WHERE wallet_address = $1
		ORDER BY generated_at DESC, report_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(wallet))
	if err != nil {
		return nil, fmt.Errorf("list reports by wallet: %w", err)
	}
	defer rows.Close()

	var reports []*domain.TaxReport
	for rows.Next() {
		var header []byte
		if err := rows.Scan(&header); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		var r domain.TaxReport
		if err := json.Unmarshal(header, &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}

	return reports, nil
}
