package reporting

import (
	"context"
	"fmt"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
)

// Generator produces export documents from stored reports.
type Generator struct {
	reportStore      storage.ReportStore
	observationStore storage.PriceObservationStore // optional
	now              func() time.Time              // Injectable clock for deterministic output
}

// NewGenerator creates a new document generator. observations may be nil.
func NewGenerator(reports storage.ReportStore, observations storage.PriceObservationStore) *Generator {
	return &Generator{
		reportStore:      reports,
		observationStore: observations,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a stored report with its price observations and builds the document.
func (g *Generator) Generate(ctx context.Context, reportID string) (*Document, error) {
	stored, err := g.reportStore.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}

	var obs []*domain.PriceObservation
	if g.observationStore != nil {
		obs, err = g.observationStore.GetByReport(ctx, reportID)
		if err != nil {
			return nil, fmt.Errorf("load price observations %s: %w", reportID, err)
		}
	}

	return g.Build(&stored.Report, stored.Rows, obs), nil
}

// Build assembles a document from an in-memory report.
func (g *Generator) Build(r *domain.TaxReport, rows []domain.DetailRow, obs []*domain.PriceObservation) *Document {
	return &Document{
		ExportedAt:    g.now(),
		ReportID:      r.ReportID,
		Wallet:        r.Wallet,
		ChainID:       r.ChainID,
		QuoteCurrency: r.QuoteCurrency,
		PeriodStart:   r.PeriodStart,
		PeriodEnd:     r.PeriodEnd,
		GeneratedAt:   r.GeneratedAt,
		Summary:       SummaryOf(r),
		Coverage: Coverage{
			TransferCount:              r.TransferCount,
			SkippedCount:               r.SkippedCount,
			SpamCount:                  r.SpamCount,
			CostBasisUnknownCount:      r.CostBasisUnknownCount,
			TokensWithoutReliablePrice: r.TokensWithoutReliablePrice,
		},
		Categories: CategoryRows(r),
		Prices:     PriceRows(obs),
		Rows:       ExportRows(rows),
	}
}
