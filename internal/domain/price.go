package domain

import (
	"strings"
	"time"
)

// PriceSource is the provenance tag of a resolved unit price.
type PriceSource string

const (
	PriceSourceCache       PriceSource = "cache"
	PriceSourcePrimary     PriceSource = "primary"
	PriceSourceSecondary   PriceSource = "secondary"
	PriceSourceFallback    PriceSource = "fallback"
	PriceSourceUnavailable PriceSource = "unavailable"
)

// String returns the string representation of PriceSource.
func (s PriceSource) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s PriceSource) IsValid() bool {
	switch s {
	case PriceSourceCache, PriceSourcePrimary, PriceSourceSecondary, PriceSourceFallback, PriceSourceUnavailable:
		return true
	}
	return false
}

// TokenRef identifies a token for price resolution.
type TokenRef struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address,omitempty"` // empty = native asset
	ChainID string `json:"chainId"`
}

// IsNative reports whether the token is the chain's native asset.
func (r TokenRef) IsNative() bool {
	return r.Address == ""
}

// Key returns the wallet-independent token key: chain|address, or chain|native:SYMBOL.
func (r TokenRef) Key() string {
	if r.IsNative() {
		return r.ChainID + "|native:" + strings.ToUpper(r.Symbol)
	}
	return r.ChainID + "|" + strings.ToLower(r.Address)
}

// PricedTransfer is a transfer with its resolved unit price.
// ValueInQuoteCurrency == Amount * UnitPrice; UnitPrice is 0 when PriceSource is unavailable.
type PricedTransfer struct {
	Transfer
	Amount               float64     `json:"amount"`
	UnitPrice            float64     `json:"unitPrice"`
	PriceSource          PriceSource `json:"priceSource"`
	ValueInQuoteCurrency float64     `json:"valueInQuoteCurrency"`
}

// NewPricedTransfer prices t at unitPrice.
func NewPricedTransfer(t Transfer, unitPrice float64, source PriceSource) PricedTransfer {
	if source == PriceSourceUnavailable {
		unitPrice = 0
	}
	amount := t.Amount()
	return PricedTransfer{
		Transfer:             t,
		Amount:               amount,
		UnitPrice:            unitPrice,
		PriceSource:          source,
		ValueInQuoteCurrency: amount * unitPrice,
	}
}

// PriceObservation is one resolved price recorded during a report run.
// Corresponds to price_observations table in ClickHouse.
type PriceObservation struct {
	ReportID   string      // report that resolved the price
	TokenKey   string      // TokenRef.Key()
	Symbol     string      // token symbol
	ChainID    string      // hex chain id
	Currency   string      // quote currency
	UnitPrice  float64     // price in Currency
	Source     PriceSource // provenance
	Tier       string      // resolver tier that produced the price
	ObservedAt time.Time   // resolution time
}
