// Package engine builds a tax report for one wallet.
// It coordinates: validation → classification → price resolution → lot tracking → summary
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/idhash"
	"wallet-tax-engine/internal/lots"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/taxsummary"
)

// TransferSource returns complete, deduplicated transfers for a wallet and period.
type TransferSource interface {
	FetchTransfers(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error)
}

// Classifier assigns a category to a transfer.
type Classifier interface {
	Classify(t *domain.Transfer, wallet string) domain.Classification
}

// PriceResolver prices distinct tokens in the quote currency.
type PriceResolver interface {
	ResolveAll(ctx context.Context, tokens []domain.TokenRef, quote string) (map[string]pricing.Price, error)
}

// Engine builds reports. It holds no per-wallet state and may serve concurrent requests.
type Engine struct {
	classifier Classifier
	resolver   PriceResolver
	summary    taxsummary.Config
	quote      string
	clock      func() time.Time
	logger     *zap.Logger
}

// Options for creating Engine.
type Options struct {
	Classifier    Classifier
	Resolver      PriceResolver
	Summary       taxsummary.Config
	QuoteCurrency string // default quote currency, e.g. "EUR"
	Clock         func() time.Time
	Logger        *zap.Logger
}

// New creates a new Engine.
func New(opts Options) *Engine {
	if opts.Summary == (taxsummary.Config{}) {
		opts.Summary = taxsummary.DefaultConfig()
	}
	if opts.QuoteCurrency == "" {
		opts.QuoteCurrency = "EUR"
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		summary:    opts.Summary,
		quote:      strings.ToUpper(opts.QuoteCurrency),
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

// Request identifies one report.
type Request struct {
	Wallet        string
	ChainID       string
	Range         domain.DateRange // events outside the range only seed lots
	QuoteCurrency string           // overrides the engine default
}

// Result contains the report and its audit trail.
type Result struct {
	Report       domain.TaxReport
	Rows         []domain.DetailRow
	Observations []domain.PriceObservation
}

// Run fetches the wallet history up to the end of the period and builds the report.
// Transfers before the period start are fetched so their purchases establish cost basis.
func (e *Engine) Run(ctx context.Context, src TransferSource, req Request) (*Result, error) {
	history := domain.DateRange{End: req.Range.End}
	transfers, err := src.FetchTransfers(ctx, req.Wallet, req.ChainID, history)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}
	return e.Build(ctx, req, transfers)
}

// entry is one valid transfer moving through the pipeline.
type entry struct {
	transfer       domain.Transfer
	classification domain.Classification
	price          pricing.Price
	priced         domain.PricedTransfer
	events         []domain.TaxableEvent
	inRange        bool
}

// Build produces a report for transfers. Malformed transfers are counted and
// skipped. The only errors are cancellation and lot ordering failures.
func (e *Engine) Build(ctx context.Context, req Request, transfers []domain.Transfer) (result *Result, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.RecordReportBuild(status, time.Since(start).Seconds())
	}()

	quote := e.quote
	if req.QuoteCurrency != "" {
		quote = strings.ToUpper(req.QuoteCurrency)
	}
	wallet := strings.ToLower(req.Wallet)

	// Phase 1: validate and order
	entries, skipped := e.validate(transfers, wallet, req.Range)
	observability.RecordSkippedTransfers(skipped)
	if skipped > 0 {
		e.logger.Warn("skipped malformed transfers",
			zap.String("wallet", wallet),
			zap.Int("skipped", skipped),
		)
	}

	// Phase 2: classify
	for i := range entries {
		en := &entries[i]
		en.classification = e.classifier.Classify(&en.transfer, wallet)
		observability.RecordClassification(string(en.classification.Category), en.classification.MatchedRule)
	}

	// Phase 3: resolve prices once per distinct non-spam token
	prices, err := e.resolvePrices(ctx, entries, quote)
	if err != nil {
		return nil, err
	}

	// Phase 4: lot tracking in timestamp order
	tracker := lots.NewTracker().WithLongTermDays(e.summaryLongTermDays())
	for i := range entries {
		en := &entries[i]
		if err := e.applyLots(tracker, en, prices); err != nil {
			return nil, err
		}
	}

	// Phase 5: summary over in-range entries
	generatedAt := e.clock()
	report, rows := e.summarize(entries, wallet, req, quote, generatedAt)
	report.SkippedCount = skipped

	e.logger.Info("report built",
		zap.String("report_id", report.ReportID),
		zap.String("wallet", wallet),
		zap.Int("transfers", report.TransferCount),
		zap.Int("events", report.EventCount),
		zap.Int("unreliable_prices", report.TokensWithoutReliablePrice),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Report:       report,
		Rows:         rows,
		Observations: observations(report.ReportID, quote, entries, generatedAt),
	}, nil
}

func (e *Engine) summaryLongTermDays() int {
	if e.summary.LongTermDays > 0 {
		return e.summary.LongTermDays
	}
	return lots.DefaultLongTermDays
}

// validate normalizes transfers, drops malformed ones and sorts the rest by
// (block timestamp, tx hash, log index).
func (e *Engine) validate(transfers []domain.Transfer, wallet string, r domain.DateRange) ([]entry, int) {
	entries := make([]entry, 0, len(transfers))
	skipped := 0

	for _, raw := range transfers {
		t := raw.Normalized()
		if t.WalletAddress == "" {
			t.WalletAddress = wallet
		}
		if err := t.Validate(); err != nil {
			skipped++
			e.logger.Debug("malformed transfer", zap.Error(err))
			continue
		}
		entries = append(entries, entry{
			transfer: t,
			inRange:  r.Contains(t.BlockTimestamp),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i].transfer, &entries[j].transfer
		if !a.BlockTimestamp.Equal(b.BlockTimestamp) {
			return a.BlockTimestamp.Before(b.BlockTimestamp)
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.LogIndex < b.LogIndex
	})

	return entries, skipped
}

func (e *Engine) resolvePrices(ctx context.Context, entries []entry, quote string) (map[string]pricing.Price, error) {
	var tokens []domain.TokenRef
	for i := range entries {
		if entries[i].classification.Category == domain.CategorySpam {
			continue
		}
		tokens = append(tokens, entries[i].transfer.Token())
	}
	if len(tokens) == 0 {
		return map[string]pricing.Price{}, nil
	}

	prices, err := e.resolver.ResolveAll(ctx, tokens, quote)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("report build abandoned: %w", err)
		}
		return nil, fmt.Errorf("resolve prices: %w", err)
	}
	return prices, nil
}

func (e *Engine) applyLots(tracker *lots.Tracker, en *entry, prices map[string]pricing.Price) error {
	t := &en.transfer

	if en.classification.Category == domain.CategorySpam {
		en.price = pricing.Unavailable()
		en.priced = domain.NewPricedTransfer(*t, 0, domain.PriceSourceUnavailable)
		return nil
	}

	p, ok := prices[t.Token().Key()]
	if !ok {
		p = pricing.Unavailable()
	}
	en.price = p
	en.priced = domain.NewPricedTransfer(*t, p.UnitPrice, p.Source)
	value := en.priced.ValueInQuoteCurrency

	switch en.classification.Category {
	case domain.CategoryROIIncome:
		en.events = []domain.TaxableEvent{domain.NewROIEvent(t, value)}
	case domain.CategoryPurchase:
		if err := tracker.OnPurchase(t, value); err != nil {
			return fmt.Errorf("track purchase %s: %w", t.TxHash, err)
		}
	case domain.CategoryDisposal:
		events, err := tracker.OnDisposal(t, value)
		if err != nil {
			return fmt.Errorf("track disposal %s: %w", t.TxHash, err)
		}
		en.events = events
	}
	return nil
}

func (e *Engine) summarize(entries []entry, wallet string, req Request, quote string, generatedAt time.Time) (domain.TaxReport, []domain.DetailRow) {
	var (
		events     []domain.TaxableEvent
		rows       []domain.DetailRow
		categories = make(map[domain.Category]domain.CategoryTotal)
		unreliable = make(map[string]struct{})
		spam       int
		unknown    int
	)

	for i := range entries {
		en := &entries[i]
		if !en.inRange {
			continue
		}
		t := &en.transfer
		cat := en.classification.Category

		ct := categories[cat]
		ct.Count++
		ct.Value += en.priced.ValueInQuoteCurrency
		categories[cat] = ct

		if cat == domain.CategorySpam {
			spam++
		} else if !en.price.Reliable() {
			unreliable[t.Token().Key()] = struct{}{}
		}

		for _, ev := range en.events {
			if ev.CostBasisUnknown {
				unknown++
			}
			observability.RecordTaxableEvent(string(ev.Kind))
		}
		events = append(events, en.events...)

		rows = append(rows, domain.DetailRow{
			RowID:          idhash.ComputeRowID(wallet, t.ChainID, t.TxHash, t.LogIndex, t.TokenAddress),
			Transfer:       *t,
			Classification: en.classification,
			Amount:         en.priced.Amount,
			UnitPrice:      en.priced.UnitPrice,
			PriceSource:    en.priced.PriceSource,
			PriceTier:      string(en.price.Tier),
			PricedValue:    en.priced.ValueInQuoteCurrency,
			Events:         en.events,
			Spam:           cat == domain.CategorySpam,
		})
	}

	report := taxsummary.NewBuilder(e.summary).
		WithClock(func() time.Time { return generatedAt }).
		Build(events)

	report.ReportID = idhash.ComputeReportID(wallet, req.ChainID, req.Range.Start, req.Range.End, quote)
	report.Wallet = wallet
	report.ChainID = req.ChainID
	report.QuoteCurrency = quote
	report.PeriodStart = req.Range.Start
	report.PeriodEnd = req.Range.End
	report.TransferCount = len(rows)
	report.SpamCount = spam
	report.CostBasisUnknownCount = unknown
	report.TokensWithoutReliablePrice = len(unreliable)
	report.Categories = categories

	return report, rows
}

// observations lists each distinct priced token once.
func observations(reportID, quote string, entries []entry, at time.Time) []domain.PriceObservation {
	seen := make(map[string]struct{})
	var out []domain.PriceObservation
	for i := range entries {
		en := &entries[i]
		if en.classification.Category == domain.CategorySpam {
			continue
		}
		key := en.transfer.Token().Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.PriceObservation{
			ReportID:   reportID,
			TokenKey:   key,
			Symbol:     en.transfer.TokenSymbol,
			ChainID:    en.transfer.ChainID,
			Currency:   quote,
			UnitPrice:  en.price.UnitPrice,
			Source:     en.price.Source,
			Tier:       string(en.price.Tier),
			ObservedAt: at,
		})
	}
	return out
}
