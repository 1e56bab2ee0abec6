package domain

import "time"

// CategoryTotal is the per-category breakdown of a report.
type CategoryTotal struct {
	Count int     `json:"count"`
	Value float64 `json:"value"` // sum of priced values in the quote currency
}

// TaxReport aggregates taxable events for one (wallet, date range) request.
// Immutable after construction.
type TaxReport struct {
	ReportID      string    `json:"reportId,omitempty"`
	Wallet        string    `json:"wallet,omitempty"`
	ChainID       string    `json:"chainId,omitempty"`
	QuoteCurrency string    `json:"quoteCurrency,omitempty"`
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`

	// Totals
	TotalROIIncome        float64 `json:"totalROIIncome"`
	TotalCapitalGains     float64 `json:"totalCapitalGains"`
	ShortTermCapitalGains float64 `json:"shortTermCapitalGains"` // holding period below the long-term cutoff
	ExemptCapitalGains    float64 `json:"exemptCapitalGains"`    // never negative
	TaxableCapitalGains   float64 `json:"taxableCapitalGains"`
	TaxableAmount         float64 `json:"taxableAmount"`
	ROITax                float64 `json:"roiTax"`
	CapitalGainsTax       float64 `json:"capitalGainsTax"`
	EstimatedTax          float64 `json:"estimatedTax"`
	EventCount            int     `json:"eventCount"`

	// Coverage
	TransferCount              int `json:"transferCount"`
	SkippedCount               int `json:"skippedCount"`
	SpamCount                  int `json:"spamCount"`
	CostBasisUnknownCount      int `json:"costBasisUnknownCount"`
	TokensWithoutReliablePrice int `json:"tokensWithoutReliablePrice"`

	Categories  map[Category]CategoryTotal `json:"categories"`
	GeneratedAt time.Time                  `json:"generatedAt"`
}

// DetailRow is the audit record for one input transfer.
// SPAM rows are kept and flagged.
type DetailRow struct {
	RowID          string         `json:"rowId"`
	Transfer       Transfer       `json:"transfer"`
	Classification Classification `json:"classification"`
	Amount         float64        `json:"amount"`
	UnitPrice      float64        `json:"unitPrice"`
	PriceSource    PriceSource    `json:"priceSource"`
	PriceTier      string         `json:"priceTier"`
	PricedValue    float64        `json:"pricedValue"`
	Events         []TaxableEvent `json:"events,omitempty"`
	Spam           bool           `json:"spam"`
}

// StoredReport is a report persisted together with its detail rows.
type StoredReport struct {
	Report TaxReport   `json:"report"`
	Rows   []DetailRow `json:"rows"`
}
