package domain

import "time"

// PurchaseLot is a FIFO-tracked quantity of a token acquired at a known cost.
type PurchaseLot struct {
	TxHash     string    // acquiring transfer
	Amount     float64   // remaining amount
	UnitCost   float64   // cost per unit in the quote currency
	AcquiredAt time.Time // block time of the purchase
}

// Consume reduces the lot by amount and returns the amount actually taken.
func (l *PurchaseLot) Consume(amount float64) float64 {
	if amount >= l.Amount {
		taken := l.Amount
		l.Amount = 0
		return taken
	}
	l.Amount -= amount
	return amount
}

// EventKind is the type of a taxable event.
type EventKind string

const (
	EventKindROI         EventKind = "ROI"
	EventKindCapitalGain EventKind = "CAPITAL_GAIN"
)

// TaxableEvent is derived from a DISPOSAL or ROI_INCOME transfer.
// A disposal straddling several lots yields one event per consumed fragment.
type TaxableEvent struct {
	Kind              EventKind  `json:"kind"`
	TxHash            string     `json:"txHash"`
	TokenKey          string     `json:"tokenKey"`
	Amount            float64    `json:"amount"`
	GrossValue        float64    `json:"grossValue"`
	CostBasis         float64    `json:"costBasis"`                   // CAPITAL_GAIN only
	HoldingPeriodDays *int       `json:"holdingPeriodDays,omitempty"` // nil for ROI
	AcquiredAt        *time.Time `json:"acquiredAt,omitempty"`        // CAPITAL_GAIN only
	DisposedAt        time.Time  `json:"disposedAt"`
	Taxable           bool       `json:"taxable"`
	CostBasisUnknown  bool       `json:"costBasisUnknown"`
}

// Gain returns the realized gain (negative for a loss). ROI events return GrossValue.
func (e *TaxableEvent) Gain() float64 {
	return e.GrossValue - e.CostBasis
}

// NewROIEvent builds an always-taxable income event.
func NewROIEvent(t *Transfer, grossValue float64) TaxableEvent {
	return TaxableEvent{
		Kind:       EventKindROI,
		TxHash:     t.TxHash,
		TokenKey:   t.Token().Key(),
		Amount:     t.Amount(),
		GrossValue: grossValue,
		DisposedAt: t.BlockTimestamp,
		Taxable:    true,
	}
}
