// Package fixtures provides a deterministic wallet history and static prices
// for offline report runs.
package fixtures

import (
	"context"
	"strings"
	"time"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/pricing"
)

// Fixture identities.
const (
	Wallet  = "0x1234567890abcdef1234567890abcdef12345678"
	ChainID = "0x1"

	Router  = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d" // Uniswap V2 router
	Friend  = "0x9876543210fedcba9876543210fedcba98765432"
	Spammer = "0x5555555555555555555555555555555555555555"

	DemoToken   = "0xd000000000000000000000000000000000000001"
	RewardToken = "0xd000000000000000000000000000000000000002"
	USDCToken   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	SpamToken   = "0xd000000000000000000000000000000000000003"
	MystToken   = "0xd000000000000000000000000000000000000004"
)

// USDPrices are the static quotes served by Provider, keyed by token address.
// MystToken is deliberately absent.
var USDPrices = map[string]float64{
	DemoToken:   2.0,
	RewardToken: 0.05,
}

// NativeUSDPrices are the static native asset quotes, keyed by chain.
var NativeUSDPrices = map[string]float64{
	ChainID: 3000,
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func hash(n byte) string {
	return "0x" + strings.Repeat("0", 62) + string("0123456789abcdef"[n>>4]) + string("0123456789abcdef"[n&0xf])
}

// Transfers returns the fixture history for Wallet on ChainID:
//
//	2023-11-15  buy 100 DEMO from the router (seeds a lot before 2024)
//	2024-02-01  buy 50 DEMO from the router
//	2024-03-01  1000 RWD minted from the null address
//	2024-04-15  sell 120 DEMO to the router (two lot fragments)
//	2024-05-01  5e9 FREE airdrop (spam)
//	2024-06-01  send 0.1 ETH to a friend (no lot, unknown cost basis)
//	2024-07-01  buy 500 USDC from the router
//	2024-08-01  malformed record without a tx hash
//	2024-09-01  buy 2000 MYST from the router (no price anywhere)
func Transfers() []domain.Transfer {
	erc20 := func(n byte, ts time.Time, symbol, token string, decimals int32, raw, from, to string) domain.Transfer {
		return domain.Transfer{
			TxHash:         hash(n),
			LogIndex:       int(n),
			ChainID:        ChainID,
			BlockTimestamp: ts,
			TokenSymbol:    symbol,
			TokenAddress:   token,
			Decimals:       decimals,
			RawAmount:      raw,
			FromAddress:    from,
			ToAddress:      to,
			WalletAddress:  Wallet,
		}
	}

	malformed := erc20(8, at(2024, time.August, 1), "DEMO", DemoToken, 18, "1000000000000000000", Router, Wallet)
	malformed.TxHash = ""

	return []domain.Transfer{
		erc20(1, at(2023, time.November, 15), "DEMO", DemoToken, 18, "100000000000000000000", Router, Wallet),
		erc20(2, at(2024, time.February, 1), "DEMO", DemoToken, 18, "50000000000000000000", Router, Wallet),
		erc20(3, at(2024, time.March, 1), "RWD", RewardToken, 18, "1000000000000000000000", domain.NullAddress, Wallet),
		erc20(4, at(2024, time.April, 15), "DEMO", DemoToken, 18, "120000000000000000000", Wallet, Router),
		erc20(5, at(2024, time.May, 1), "FREE", SpamToken, 0, "5000000000", Spammer, Wallet),
		erc20(6, at(2024, time.June, 1), "ETH", "", 18, "100000000000000000", Wallet, Friend),
		erc20(7, at(2024, time.July, 1), "USDC", USDCToken, 6, "500000000", Router, Wallet),
		malformed,
		erc20(9, at(2024, time.September, 1), "MYST", MystToken, 18, "2000000000000000000000", Router, Wallet),
	}
}

// Source serves Transfers as a transfer source.
type Source struct {
	transfers []domain.Transfer
}

// NewSource creates a source over the fixture history.
func NewSource() *Source {
	return &Source{transfers: Transfers()}
}

// FetchTransfers returns the fixture transfers of wallet on chainID within r.
func (s *Source) FetchTransfers(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Transfer
	for _, t := range s.transfers {
		if !strings.EqualFold(t.WalletAddress, wallet) || t.ChainID != chainID {
			continue
		}
		if !r.Contains(t.BlockTimestamp) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Provider is a static price provider over USDPrices and NativeUSDPrices.
type Provider struct {
	prices map[string]float64
	native map[string]float64
}

// NewProvider creates a provider with the fixture prices.
func NewProvider() *Provider {
	return &Provider{prices: USDPrices, native: NativeUSDPrices}
}

// Name identifies the provider.
func (p *Provider) Name() string { return "fixtures" }

// BatchPrice returns the known quotes among addresses.
func (p *Provider) BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]pricing.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]pricing.Quote, len(addresses))
	if chainID != ChainID {
		return out, nil
	}
	for _, a := range addresses {
		a = strings.ToLower(a)
		if usd, ok := p.prices[a]; ok {
			out[a] = pricing.Quote{USDPrice: usd}
		}
	}
	return out, nil
}

// SinglePrice returns nil for unknown tokens.
func (p *Provider) SinglePrice(ctx context.Context, address, chainID string) (*pricing.Quote, error) {
	got, err := p.BatchPrice(ctx, []string{address}, chainID)
	if err != nil {
		return nil, err
	}
	q, ok := got[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// NativePrice returns the static native asset price of chainID.
func (p *Provider) NativePrice(ctx context.Context, chainID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.native[chainID], nil
}

var (
	_ pricing.PriceProvider            = (*Provider)(nil)
	_ pricing.NativeAssetPriceProvider = (*Provider)(nil)
)
