package pricing

import (
	"math"
	"strings"
)

// DefaultStablecoins resolve to 1 USD without consulting any provider.
var DefaultStablecoins = []string{"USDT", "USDC", "DAI", "BUSD", "TUSD", "USDP", "FDUSD"}

// DefaultEmergencyPrices are last-resort USD prices for well-known symbols.
// They are rough constants and never cached.
var DefaultEmergencyPrices = SymbolTable{
	"ETH":   2000,
	"WETH":  2000,
	"WBTC":  40000,
	"BNB":   300,
	"WBNB":  300,
	"MATIC": 0.5,
	"POL":   0.5,
	"PLS":   0.00005,
	"WPLS":  0.00005,
	"HEX":   0.005,
	"PLSX":  0.00002,
	"INC":   1.0,
}

// SymbolTable maps upper-case token symbols to USD prices.
type SymbolTable map[string]float64

// Lookup returns the USD price for symbol. Implausible entries are ignored.
func (t SymbolTable) Lookup(symbol string) (float64, bool) {
	p, ok := t[strings.ToUpper(symbol)]
	if !ok || !Plausible(p) {
		return 0, false
	}
	return p, true
}

// NewStablecoinTable pegs every symbol to 1 USD.
func NewStablecoinTable(symbols []string) SymbolTable {
	t := make(SymbolTable, len(symbols))
	for _, s := range symbols {
		t[strings.ToUpper(s)] = 1
	}
	return t
}

// Plausible rejects zero, negative, NaN and infinite prices.
func Plausible(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// FXRates converts USD prices into a quote currency. Values are units of currency per USD.
type FXRates map[string]float64

// DefaultUSDToEUR is used when no rate is configured.
const DefaultUSDToEUR = 0.92

// Convert converts a USD amount into quote. USD is always the identity.
func (fx FXRates) Convert(usd float64, quote string) (float64, bool) {
	quote = strings.ToUpper(quote)
	if quote == "USD" {
		return usd, true
	}
	rate, ok := fx[quote]
	if !ok || !Plausible(rate) {
		return 0, false
	}
	return usd * rate, true
}

// Supports reports whether quote can be converted to.
func (fx FXRates) Supports(quote string) bool {
	_, ok := fx.Convert(1, quote)
	return ok
}
