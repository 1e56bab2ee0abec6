package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
	"wallet-tax-engine/internal/storage/memory"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testOther  = "0x2222222222222222222222222222222222222222"
	testToken  = "0x3333333333333333333333333333333333333333"
)

var (
	periodStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	generated   = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int { return &v }

func testStoredReport() *domain.StoredReport {
	acquired := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sold := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	report := domain.TaxReport{
		ReportID:                   "r1",
		Wallet:                     testWallet,
		ChainID:                    "0x1",
		QuoteCurrency:              "EUR",
		PeriodStart:                periodStart,
		PeriodEnd:                  periodEnd,
		TotalROIIncome:             50,
		TotalCapitalGains:          80.004,
		ShortTermCapitalGains:      80.004,
		ExemptCapitalGains:         80.004,
		TaxableAmount:              50,
		ROITax:                     12.5,
		EstimatedTax:               12.5,
		EventCount:                 2,
		TransferCount:              3,
		SkippedCount:               1,
		SpamCount:                  1,
		TokensWithoutReliablePrice: 1,
		Categories: map[domain.Category]domain.CategoryTotal{
			domain.CategoryROIIncome: {Count: 1, Value: 50},
			domain.CategoryDisposal:  {Count: 1, Value: 180.004},
			domain.CategorySpam:      {Count: 1},
		},
		GeneratedAt: generated,
	}

	rows := []domain.DetailRow{
		{
			RowID: "row-roi",
			Transfer: domain.Transfer{
				TxHash: "0xaaaa000000000000000000000000000000000000000000000000000000000001", BlockTimestamp: acquired,
				TokenSymbol: "TOKEN", TokenAddress: testToken, Decimals: 18,
				FromAddress: domain.NullAddress, ToAddress: testWallet, WalletAddress: testWallet,
			},
			Classification: domain.Classification{Category: domain.CategoryROIIncome, Confidence: 95, Reason: "minted from null address", MatchedRule: "null_mint"},
			Amount:         1000,
			UnitPrice:      0.05,
			PriceSource:    domain.PriceSourcePrimary,
			PriceTier:      "primary",
			PricedValue:    50,
			Events:         []domain.TaxableEvent{{Kind: domain.EventKindROI, GrossValue: 50, Taxable: true}},
		},
		{
			RowID: "row-sell",
			Transfer: domain.Transfer{
				TxHash: "0xbbbb", LogIndex: 2, BlockTimestamp: sold,
				TokenSymbol: "TOKEN", TokenAddress: testToken, Decimals: 18,
				FromAddress: testWallet, ToAddress: testOther, WalletAddress: testWallet,
			},
			Classification: domain.Classification{Category: domain.CategoryDisposal, MatchedRule: "exchange_out"},
			Amount:         100,
			UnitPrice:      1.80004,
			PriceSource:    domain.PriceSourcePrimary,
			PriceTier:      "primary",
			PricedValue:    180.004,
			Events: []domain.TaxableEvent{{
				Kind: domain.EventKindCapitalGain, GrossValue: 180.004, CostBasis: 100,
				HoldingPeriodDays: intPtr(30), Taxable: true,
			}},
		},
		{
			RowID: "row-spam",
			Transfer: domain.Transfer{
				TxHash: "0xcccc", BlockTimestamp: sold,
				TokenSymbol: "FREE,CLAIM", TokenAddress: "0x4444444444444444444444444444444444444444",
				FromAddress: testOther, ToAddress: testWallet, WalletAddress: testWallet,
			},
			Classification: domain.Classification{Category: domain.CategorySpam, Confidence: 100, Reason: "huge amount, unpriced, from contract", MatchedRule: "spam_amount"},
			PriceSource:    domain.PriceSourceUnavailable,
			PriceTier:      "none",
			Spam:           true,
		},
	}

	return &domain.StoredReport{Report: report, Rows: rows}
}

func setupGenerator(t *testing.T) *Generator {
	t.Helper()
	ctx := context.Background()

	reports := memory.NewReportStore()
	if err := reports.Save(ctx, testStoredReport()); err != nil {
		t.Fatalf("Save report failed: %v", err)
	}

	obs := memory.NewPriceObservationStore()
	err := obs.InsertBulk(ctx, []*domain.PriceObservation{
		{ReportID: "r1", TokenKey: "0x1|" + testToken, Symbol: "TOKEN", Currency: "EUR", UnitPrice: 0.050000004, Source: domain.PriceSourcePrimary, Tier: "primary", ObservedAt: generated},
		{ReportID: "r1", TokenKey: "0x1|native:ETH", Symbol: "ETH", Currency: "EUR", UnitPrice: 3000, Source: domain.PriceSourceCache, Tier: "cache", ObservedAt: generated},
	})
	if err != nil {
		t.Fatalf("Insert observations failed: %v", err)
	}

	fixed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return NewGenerator(reports, obs).WithClock(func() time.Time { return fixed })
}

func TestGenerate_Document(t *testing.T) {
	doc, err := setupGenerator(t).Generate(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if doc.ReportID != "r1" || doc.Wallet != testWallet || doc.QuoteCurrency != "EUR" {
		t.Errorf("metadata = %q %q %q", doc.ReportID, doc.Wallet, doc.QuoteCurrency)
	}
	if !doc.ExportedAt.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ExportedAt = %v", doc.ExportedAt)
	}
	if got := doc.Summary.TotalCapitalGains.StringFixed(MoneyPlaces); got != "80.00" {
		t.Errorf("TotalCapitalGains = %s, want 80.00", got)
	}
	if got := doc.Summary.EstimatedTax.StringFixed(MoneyPlaces); got != "12.50" {
		t.Errorf("EstimatedTax = %s, want 12.50", got)
	}
	if doc.Coverage.SkippedCount != 1 || doc.Coverage.TokensWithoutReliablePrice != 1 {
		t.Errorf("Coverage = %+v", doc.Coverage)
	}

	if len(doc.Categories) != len(domain.AllCategories) {
		t.Fatalf("Categories length = %d, want %d", len(doc.Categories), len(domain.AllCategories))
	}
	for i, c := range domain.AllCategories {
		if doc.Categories[i].Category != c {
			t.Errorf("Categories[%d] = %s, want %s", i, doc.Categories[i].Category, c)
		}
	}
	if doc.Categories[3].Count != 0 {
		t.Errorf("TRANSFER count = %d, want 0", doc.Categories[3].Count)
	}

	if len(doc.Prices) != 2 {
		t.Fatalf("Prices length = %d, want 2", len(doc.Prices))
	}
	if doc.Prices[0].TokenKey != "0x1|"+testToken {
		t.Errorf("Prices not sorted by token key: %s first", doc.Prices[0].TokenKey)
	}
	if got := doc.Prices[0].UnitPrice.String(); got != "0.05" {
		t.Errorf("rounded price = %s, want 0.05", got)
	}
}

func TestGenerate_NotFound(t *testing.T) {
	_, err := setupGenerator(t).Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Generate error = %v, want ErrNotFound", err)
	}
}

func TestExportRows(t *testing.T) {
	rows := ExportRows(testStoredReport().Rows)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	roi, sell, spam := rows[0], rows[1], rows[2]

	if roi.Direction != "in" || roi.Counterparty != domain.NullAddress {
		t.Errorf("roi direction/counterparty = %s/%s", roi.Direction, roi.Counterparty)
	}
	if roi.Confidence != 95 || roi.Reason != "minted from null address" {
		t.Errorf("roi confidence/reason = %d/%q", roi.Confidence, roi.Reason)
	}
	if roi.Gain.StringFixed(2) != "50.00" || roi.HoldingDays != "" {
		t.Errorf("roi gain/days = %s/%q", roi.Gain, roi.HoldingDays)
	}

	if sell.Direction != "out" || sell.Counterparty != testOther {
		t.Errorf("sell direction/counterparty = %s/%s", sell.Direction, sell.Counterparty)
	}
	if sell.Value.StringFixed(2) != "180.00" {
		t.Errorf("sell value = %s, want 180.00", sell.Value)
	}
	if sell.TaxableGain.StringFixed(2) != "80.00" || sell.HoldingDays != "30" {
		t.Errorf("sell taxable/days = %s/%q", sell.TaxableGain, sell.HoldingDays)
	}
	if sell.UnitPrice.String() != "1.80004" {
		t.Errorf("sell unit price = %s", sell.UnitPrice)
	}

	if !spam.Spam || !spam.Value.IsZero() {
		t.Errorf("spam row = %+v", spam)
	}
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV(ExportRows(testStoredReport().Rows))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("CSV lines = %d, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "row_id,timestamp,tx_hash") || !strings.Contains(lines[0], ",rule,confidence,reason,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], ",null_mint,95,minted from null address,") {
		t.Errorf("roi line missing confidence or reason: %s", lines[1])
	}
	if !strings.Contains(lines[3], `,100,"huge amount, unpriced, from contract",`) {
		t.Errorf("reason with comma not quoted: %s", lines[3])
	}
	if !strings.Contains(lines[2], ",180.00,") || !strings.Contains(lines[2], "2024-03-31T00:00:00Z") {
		t.Errorf("sell line missing value or timestamp: %s", lines[2])
	}
	if !strings.Contains(lines[3], `"FREE,CLAIM"`) {
		t.Errorf("symbol with comma not quoted: %s", lines[3])
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	doc, err := setupGenerator(t).Generate(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(doc)

	for _, want := range []string{
		"# Tax Report",
		"## Summary",
		"| Estimated Tax | 12.50 |",
		"## Data Quality",
		"| Tokens Without Reliable Price | 1 |",
		"## Categories",
		"| TRANSFER | 0 | 0.00 |",
		"| Confidence |",
		"## Prices",
		"## Transfers",
		"2024-01-01 to 2024-12-31",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	g := NewGenerator(memory.NewReportStore(), nil)
	md := RenderMarkdown(g.Build(&domain.TaxReport{QuoteCurrency: "EUR"}, nil, nil))

	if !strings.Contains(md, "No transfers in period.") {
		t.Error("expected empty transfers note")
	}
	if !strings.Contains(md, "No price observations recorded.") {
		t.Error("expected empty prices note")
	}
	if !strings.Contains(md, "beginning to now") {
		t.Error("expected open period")
	}
}

func TestSummaryLines(t *testing.T) {
	doc, err := setupGenerator(t).Generate(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	text := strings.Join(SummaryLines(doc), "\n")

	for _, want := range []string{"Report r1", "12.50 EUR", "skipped 1, spam 1", "WARNING: 1 token(s)"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "unknown cost basis") {
		t.Error("unexpected cost basis warning")
	}
}

func TestWriteJSON(t *testing.T) {
	doc, err := setupGenerator(t).Generate(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded struct {
		ReportID string `json:"reportId"`
		Summary  struct {
			EstimatedTax string `json:"estimatedTax"`
		} `json:"summary"`
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ReportID != "r1" || decoded.Summary.EstimatedTax != "12.5" || len(decoded.Rows) != 3 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Rows[0]["confidence"] != float64(95) || decoded.Rows[0]["reason"] != "minted from null address" {
		t.Errorf("row 0 confidence/reason = %v/%v", decoded.Rows[0]["confidence"], decoded.Rows[0]["reason"])
	}
}
