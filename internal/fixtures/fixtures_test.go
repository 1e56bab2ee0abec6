package fixtures_test

import (
	"context"
	"math"
	"testing"
	"time"

	"wallet-tax-engine/internal/classify"
	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/engine"
	"wallet-tax-engine/internal/fixtures"
	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/ratelimit"
)

const tolerance = 1e-6

var year2024 = domain.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestSource_Filters(t *testing.T) {
	src := fixtures.NewSource()
	ctx := context.Background()

	all, err := src.FetchTransfers(ctx, fixtures.Wallet, fixtures.ChainID, domain.DateRange{})
	if err != nil {
		t.Fatalf("FetchTransfers failed: %v", err)
	}
	if len(all) != len(fixtures.Transfers()) {
		t.Errorf("open range returned %d transfers, want %d", len(all), len(fixtures.Transfers()))
	}

	in2024, err := src.FetchTransfers(ctx, fixtures.Wallet, fixtures.ChainID, year2024)
	if err != nil {
		t.Fatalf("FetchTransfers failed: %v", err)
	}
	if len(in2024) != len(all)-1 {
		t.Errorf("2024 returned %d transfers, want %d", len(in2024), len(all)-1)
	}

	other, _ := src.FetchTransfers(ctx, fixtures.Wallet, "0x171", domain.DateRange{})
	if len(other) != 0 {
		t.Errorf("other chain returned %d transfers, want 0", len(other))
	}
}

func TestProvider_Quotes(t *testing.T) {
	p := fixtures.NewProvider()
	ctx := context.Background()

	got, err := p.BatchPrice(ctx, []string{fixtures.DemoToken, fixtures.MystToken}, fixtures.ChainID)
	if err != nil {
		t.Fatalf("BatchPrice failed: %v", err)
	}
	if len(got) != 1 || got[fixtures.DemoToken].USDPrice != 2.0 {
		t.Errorf("BatchPrice = %+v", got)
	}

	q, err := p.SinglePrice(ctx, fixtures.MystToken, fixtures.ChainID)
	if err != nil || q != nil {
		t.Errorf("SinglePrice(MYST) = %v, %v; want nil, nil", q, err)
	}

	native, _ := p.NativePrice(ctx, fixtures.ChainID)
	if native != 3000 {
		t.Errorf("NativePrice = %v, want 3000", native)
	}
}

func TestFixtureReport(t *testing.T) {
	provider := fixtures.NewProvider()
	resolver := pricing.NewResolver(pricing.Options{
		Limiter:   ratelimit.NewLimiter(time.Millisecond, nil),
		Primary:   provider,
		Secondary: provider,
		Native:    provider,
		FX:        pricing.FXRates{"EUR": 0.92},
	})
	eng := engine.New(engine.Options{
		Classifier: classify.New(classify.DefaultRuleSet()),
		Resolver:   resolver,
	})

	res, err := eng.Run(context.Background(), fixtures.NewSource(), engine.Request{
		Wallet:  fixtures.Wallet,
		ChainID: fixtures.ChainID,
		Range:   year2024,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	r := res.Report

	// RWD: 1000 * 0.05 USD * 0.92
	approx(t, "TotalROIIncome", r.TotalROIIncome, 46)
	// DEMO is priced once, so its disposal nets zero; 0.1 ETH has no lot.
	approx(t, "TotalCapitalGains", r.TotalCapitalGains, 276)
	approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, 276)
	approx(t, "TaxableAmount", r.TaxableAmount, 46)
	approx(t, "EstimatedTax", r.EstimatedTax, 11.5)

	checks := []struct {
		name      string
		got, want int
	}{
		{"EventCount", r.EventCount, 4},
		{"TransferCount", r.TransferCount, 7},
		{"SkippedCount", r.SkippedCount, 1},
		{"SpamCount", r.SpamCount, 1},
		{"CostBasisUnknownCount", r.CostBasisUnknownCount, 1},
		{"TokensWithoutReliablePrice", r.TokensWithoutReliablePrice, 1},
		{"PURCHASE", r.Categories[domain.CategoryPurchase].Count, 3},
		{"DISPOSAL", r.Categories[domain.CategoryDisposal].Count, 2},
		{"ROI_INCOME", r.Categories[domain.CategoryROIIncome].Count, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	for _, row := range res.Rows {
		if row.Transfer.TokenSymbol == "USDC" && row.PriceTier != string(pricing.TierStablecoin) {
			t.Errorf("USDC tier = %s, want stablecoin", row.PriceTier)
		}
		if row.Transfer.TokenSymbol == "ETH" && row.PriceTier != string(pricing.TierNative) {
			t.Errorf("ETH tier = %s, want native", row.PriceTier)
		}
	}
}
