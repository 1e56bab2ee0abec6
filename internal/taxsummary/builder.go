// Package taxsummary folds taxable events into a German tax report.
package taxsummary

import (
	"fmt"
	"time"

	"wallet-tax-engine/internal/domain"
)

// ExemptionMode selects how the short-term gain threshold is applied.
type ExemptionMode string

const (
	// ExemptionAllowance subtracts the threshold once from the short-term gain total.
	ExemptionAllowance ExemptionMode = "allowance"
	// ExemptionThreshold taxes the whole short-term total once it exceeds the threshold.
	ExemptionThreshold ExemptionMode = "threshold"
)

// IsValid checks if the mode is a valid value.
func (m ExemptionMode) IsValid() bool {
	return m == ExemptionAllowance || m == ExemptionThreshold
}

// Config holds tax rates and the exemption policy.
type Config struct {
	ROIRate            float64       // applied to total ROI income
	CapitalGainsRate   float64       // applied to taxable capital gains
	ExemptionThreshold float64       // aggregate short-term gain threshold
	ExemptionMode      ExemptionMode // how the threshold applies
	LongTermDays       int           // holding period from which gains are exempt
}

// DefaultConfig returns the German defaults: 25% rates, 600 threshold, 365 days.
func DefaultConfig() Config {
	return Config{
		ROIRate:            0.25,
		CapitalGainsRate:   0.25,
		ExemptionThreshold: 600,
		ExemptionMode:      ExemptionAllowance,
		LongTermDays:       365,
	}
}

// Validate checks rates and threshold.
func (c Config) Validate() error {
	if c.ROIRate < 0 || c.ROIRate > 1 {
		return fmt.Errorf("roi rate %v out of [0,1]", c.ROIRate)
	}
	if c.CapitalGainsRate < 0 || c.CapitalGainsRate > 1 {
		return fmt.Errorf("capital gains rate %v out of [0,1]", c.CapitalGainsRate)
	}
	if c.ExemptionThreshold < 0 {
		return fmt.Errorf("exemption threshold %v is negative", c.ExemptionThreshold)
	}
	if !c.ExemptionMode.IsValid() {
		return fmt.Errorf("unknown exemption mode %q", c.ExemptionMode)
	}
	if c.LongTermDays <= 0 {
		return fmt.Errorf("long term days %d must be positive", c.LongTermDays)
	}
	return nil
}

// Builder computes report totals from taxable events.
type Builder struct {
	cfg   Config
	clock func() time.Time
}

// NewBuilder creates a builder. Invalid fields fall back to DefaultConfig values.
func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if !cfg.ExemptionMode.IsValid() {
		cfg.ExemptionMode = def.ExemptionMode
	}
	if cfg.LongTermDays <= 0 {
		cfg.LongTermDays = def.LongTermDays
	}
	return &Builder{
		cfg:   cfg,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the clock used for GeneratedAt.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Config returns the builder configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build aggregates events. Empty input yields an all-zero report.
//
// Gains from fragments held at least LongTermDays are always exempt. Short-term
// gains (net of short-term losses) are summed and the threshold applied once.
// Tax is ROI*ROIRate + taxableGains*CapitalGainsRate.
func (b *Builder) Build(events []domain.TaxableEvent) domain.TaxReport {
	var (
		roi, total, shortTerm, longTerm float64
	)

	for i := range events {
		e := &events[i]
		switch e.Kind {
		case domain.EventKindROI:
			roi += e.GrossValue
		case domain.EventKindCapitalGain:
			gain := e.Gain()
			total += gain
			if b.isLongTerm(e) {
				longTerm += gain
			} else {
				shortTerm += gain
			}
		}
	}

	taxableGains := b.taxableGains(shortTerm)
	// A net loss in either bucket contributes nothing to exempt gains.
	exempt := max(longTerm, 0) + max(shortTerm, 0) - taxableGains
	roiTax := roi * b.cfg.ROIRate
	cgTax := taxableGains * b.cfg.CapitalGainsRate

	return domain.TaxReport{
		TotalROIIncome:        roi,
		TotalCapitalGains:     total,
		ShortTermCapitalGains: shortTerm,
		ExemptCapitalGains:    exempt,
		TaxableCapitalGains:   taxableGains,
		TaxableAmount:         roi + taxableGains,
		ROITax:                roiTax,
		CapitalGainsTax:       cgTax,
		EstimatedTax:          roiTax + cgTax,
		EventCount:            len(events),
		Categories:            make(map[domain.Category]domain.CategoryTotal),
		GeneratedAt:           b.clock(),
	}
}

func (b *Builder) isLongTerm(e *domain.TaxableEvent) bool {
	if e.HoldingPeriodDays == nil {
		return false
	}
	return *e.HoldingPeriodDays >= b.cfg.LongTermDays
}

func (b *Builder) taxableGains(shortTerm float64) float64 {
	if shortTerm <= b.cfg.ExemptionThreshold {
		return 0
	}
	if b.cfg.ExemptionMode == ExemptionThreshold {
		return shortTerm
	}
	return shortTerm - b.cfg.ExemptionThreshold
}
