package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-tax-engine/internal/domain"
)

// Rounding applied to exported figures.
const (
	MoneyPlaces  int32 = 2 // values, gains and tax in the quote currency
	PricePlaces  int32 = 8 // unit prices
	AmountPlaces int32 = 8 // token amounts
)

// Document is the exported form of one stored report.
type Document struct {
	// Metadata
	ExportedAt    time.Time `json:"exportedAt"`
	ReportID      string    `json:"reportId"`
	Wallet        string    `json:"wallet"`
	ChainID       string    `json:"chainId"`
	QuoteCurrency string    `json:"quoteCurrency"`
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`
	GeneratedAt   time.Time `json:"generatedAt"`

	Summary    Summary       `json:"summary"`
	Coverage   Coverage      `json:"coverage"`
	Categories []CategoryRow `json:"categories"` // in domain.AllCategories order
	Prices     []PriceRow    `json:"prices"`     // sorted by token key
	Rows       []ExportRow   `json:"rows"`       // in transfer order
}

// Summary holds the rounded report totals.
type Summary struct {
	TotalROIIncome        decimal.Decimal `json:"totalROIIncome"`
	TotalCapitalGains     decimal.Decimal `json:"totalCapitalGains"`
	ShortTermCapitalGains decimal.Decimal `json:"shortTermCapitalGains"`
	ExemptCapitalGains    decimal.Decimal `json:"exemptCapitalGains"`
	TaxableCapitalGains   decimal.Decimal `json:"taxableCapitalGains"`
	TaxableAmount         decimal.Decimal `json:"taxableAmount"`
	ROITax                decimal.Decimal `json:"roiTax"`
	CapitalGainsTax       decimal.Decimal `json:"capitalGainsTax"`
	EstimatedTax          decimal.Decimal `json:"estimatedTax"`
	EventCount            int             `json:"eventCount"`
}

// Coverage describes how complete the report input was.
type Coverage struct {
	TransferCount              int `json:"transferCount"`
	SkippedCount               int `json:"skippedCount"`
	SpamCount                  int `json:"spamCount"`
	CostBasisUnknownCount      int `json:"costBasisUnknownCount"`
	TokensWithoutReliablePrice int `json:"tokensWithoutReliablePrice"`
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
	Value    decimal.Decimal `json:"value"`
}

// PriceRow is one token price used by the report.
type PriceRow struct {
	TokenKey  string             `json:"tokenKey"`
	Symbol    string             `json:"symbol"`
	UnitPrice decimal.Decimal    `json:"unitPrice"`
	Source    domain.PriceSource `json:"source"`
	Tier      string             `json:"tier"`
}

// ExportRow is a flat record for one detail row.
type ExportRow struct {
	RowID        string          `json:"rowId"`
	Timestamp    time.Time       `json:"timestamp"`
	TxHash       string          `json:"txHash"`
	LogIndex     int             `json:"logIndex"`
	Direction    string          `json:"direction"` // "in" or "out" relative to the wallet
	Symbol       string          `json:"symbol"`
	TokenAddress string          `json:"tokenAddress"`
	Counterparty string          `json:"counterparty"`
	Category     domain.Category `json:"category"`
	Rule         string          `json:"rule"`
	Confidence   int             `json:"confidence"`
	Reason       string          `json:"reason"`
	Amount       decimal.Decimal `json:"amount"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Value        decimal.Decimal `json:"value"`
	PriceSource  string          `json:"priceSource"`
	PriceTier    string          `json:"priceTier"`
	Gain         decimal.Decimal `json:"gain"`         // realized gain or ROI income of the row
	TaxableGain  decimal.Decimal `json:"taxableGain"`  // part of Gain from taxable events
	HoldingDays  string          `json:"holdingDays"`  // comma-separated per fragment, empty when none
	CostUnknown  bool            `json:"costUnknown"`
	Spam         bool            `json:"spam"`
}
