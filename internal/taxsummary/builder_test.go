package taxsummary

import (
	"math"
	"testing"
	"time"

	"wallet-tax-engine/internal/domain"
)

const tolerance = 1e-9

var fixedNow = time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

func newTestBuilder(cfg Config) *Builder {
	return NewBuilder(cfg).WithClock(func() time.Time { return fixedNow })
}

func gainEvent(gross, cost float64, days int) domain.TaxableEvent {
	return domain.TaxableEvent{
		Kind:              domain.EventKindCapitalGain,
		GrossValue:        gross,
		CostBasis:         cost,
		HoldingPeriodDays: &days,
		Taxable:           days < 365,
	}
}

func roiEvent(gross float64) domain.TaxableEvent {
	return domain.TaxableEvent{Kind: domain.EventKindROI, GrossValue: gross, Taxable: true}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestBuild_Empty(t *testing.T) {
	r := newTestBuilder(DefaultConfig()).Build(nil)

	for name, v := range map[string]float64{
		"TotalROIIncome":        r.TotalROIIncome,
		"TotalCapitalGains":     r.TotalCapitalGains,
		"ShortTermCapitalGains": r.ShortTermCapitalGains,
		"ExemptCapitalGains":    r.ExemptCapitalGains,
		"TaxableCapitalGains":   r.TaxableCapitalGains,
		"TaxableAmount":         r.TaxableAmount,
		"EstimatedTax":          r.EstimatedTax,
	} {
		if v != 0 {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
	if r.EventCount != 0 {
		t.Errorf("EventCount = %d, want 0", r.EventCount)
	}
	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixedNow)
	}
}

func TestBuild_ROIOnly(t *testing.T) {
	r := newTestBuilder(DefaultConfig()).Build([]domain.TaxableEvent{roiEvent(50)})

	approx(t, "TotalROIIncome", r.TotalROIIncome, 50)
	approx(t, "EstimatedTax", r.EstimatedTax, 12.5)
	approx(t, "TotalCapitalGains", r.TotalCapitalGains, 0)
	approx(t, "TaxableAmount", r.TaxableAmount, 50)
	if r.EventCount != 1 {
		t.Errorf("EventCount = %d, want 1", r.EventCount)
	}
}

func TestBuild_ExemptionBoundary(t *testing.T) {
	tests := []struct {
		name        string
		gain        float64
		wantTaxable float64
	}{
		{"exactly 600 fully exempt", 600, 0},
		{"600.01 taxes one cent", 600.01, 0.01},
		{"below threshold", 599.99, 0},
		{"well above", 1000, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []domain.TaxableEvent{roiEvent(100), gainEvent(tt.gain, 0, 30)}
			r := newTestBuilder(DefaultConfig()).Build(events)

			approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, tt.wantTaxable)
			approx(t, "TaxableAmount", r.TaxableAmount, r.TotalROIIncome+tt.wantTaxable)
			approx(t, "CapitalGainsTax", r.CapitalGainsTax, tt.wantTaxable*0.25)
			approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, tt.gain-tt.wantTaxable)
		})
	}
}

func TestBuild_LongTermAlwaysExempt(t *testing.T) {
	events := []domain.TaxableEvent{
		gainEvent(5000, 1000, 365), // 4000 long-term
		gainEvent(900, 100, 364),   // 800 short-term
	}
	r := newTestBuilder(DefaultConfig()).Build(events)

	approx(t, "TotalCapitalGains", r.TotalCapitalGains, 4800)
	approx(t, "ShortTermCapitalGains", r.ShortTermCapitalGains, 800)
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 200)
	approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, 4600)
	approx(t, "EstimatedTax", r.EstimatedTax, 50)
}

func TestBuild_ThresholdAppliedOnce(t *testing.T) {
	// Three gains of 300 each: per-event exemption would tax nothing.
	events := []domain.TaxableEvent{
		gainEvent(300, 0, 10),
		gainEvent(300, 0, 20),
		gainEvent(300, 0, 30),
	}
	r := newTestBuilder(DefaultConfig()).Build(events)

	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 300)
}

func TestBuild_ShortTermLossesNet(t *testing.T) {
	events := []domain.TaxableEvent{
		gainEvent(1500, 500, 10), // +1000
		gainEvent(200, 700, 20),  // -500
	}
	r := newTestBuilder(DefaultConfig()).Build(events)

	approx(t, "ShortTermCapitalGains", r.ShortTermCapitalGains, 500)
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 0)
}

func TestBuild_NetLossIsNotTaxed(t *testing.T) {
	r := newTestBuilder(DefaultConfig()).Build([]domain.TaxableEvent{gainEvent(100, 900, 5)})

	approx(t, "TotalCapitalGains", r.TotalCapitalGains, -800)
	approx(t, "TaxableAmount", r.TaxableAmount, 0)
	approx(t, "EstimatedTax", r.EstimatedTax, 0)
	approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, 0)
}

func TestBuild_LongTermLossNotExempt(t *testing.T) {
	r := newTestBuilder(DefaultConfig()).Build([]domain.TaxableEvent{gainEvent(100, 500, 400)})

	approx(t, "TotalCapitalGains", r.TotalCapitalGains, -400)
	approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, 0)
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 0)

	// Long-term results net to 400; the 200 short-term gain stays under the threshold.
	r = newTestBuilder(DefaultConfig()).Build([]domain.TaxableEvent{
		gainEvent(100, 500, 400),  // -400 long-term
		gainEvent(1000, 200, 500), // +800 long-term
		gainEvent(300, 100, 30),   // +200 short-term
	})
	approx(t, "ExemptCapitalGains", r.ExemptCapitalGains, 600)
}

func TestBuild_ThresholdMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExemptionMode = ExemptionThreshold

	r := newTestBuilder(cfg).Build([]domain.TaxableEvent{gainEvent(600.01, 0, 30)})
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 600.01)

	r = newTestBuilder(cfg).Build([]domain.TaxableEvent{gainEvent(600, 0, 30)})
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 0)
}

func TestBuild_SeparateRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ROIRate = 0.42
	cfg.CapitalGainsRate = 0.2

	r := newTestBuilder(cfg).Build([]domain.TaxableEvent{roiEvent(1000), gainEvent(1600, 0, 1)})

	approx(t, "ROITax", r.ROITax, 420)
	approx(t, "CapitalGainsTax", r.CapitalGainsTax, 200)
	approx(t, "EstimatedTax", r.EstimatedTax, 620)
}

func TestBuild_PurchaseScenario(t *testing.T) {
	// Buy 100 at 1.00, sell at 1.80 after 30 days.
	r := newTestBuilder(DefaultConfig()).Build([]domain.TaxableEvent{gainEvent(180, 100, 30)})

	approx(t, "TotalCapitalGains", r.TotalCapitalGains, 80)
	approx(t, "ShortTermCapitalGains", r.ShortTermCapitalGains, 80)
	approx(t, "TaxableCapitalGains", r.TaxableCapitalGains, 0)

	cfg := DefaultConfig()
	cfg.ExemptionThreshold = 0
	r = newTestBuilder(cfg).Build([]domain.TaxableEvent{gainEvent(180, 100, 30)})
	approx(t, "TaxableCapitalGains without threshold", r.TaxableCapitalGains, 80)
	approx(t, "EstimatedTax without threshold", r.EstimatedTax, 20)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative rate", func(c *Config) { c.ROIRate = -0.1 }, true},
		{"rate above one", func(c *Config) { c.CapitalGainsRate = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.ExemptionThreshold = -1 }, true},
		{"bad mode", func(c *Config) { c.ExemptionMode = "per_event" }, true},
		{"zero days", func(c *Config) { c.LongTermDays = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
