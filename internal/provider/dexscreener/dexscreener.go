// Package dexscreener prices tokens from the most liquid DexScreener pair.
package dexscreener

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/upstream"
)

// DefaultBaseURL is the public DexScreener API.
const DefaultBaseURL = "https://api.dexscreener.com"

// Name identifies the provider for rate limiting and metrics.
const Name = "dexscreener"

// maxAddresses is the most tokens one request may name.
const maxAddresses = 30

// ChainSlugs maps hex chain ids to DexScreener chain identifiers.
var ChainSlugs = map[string]string{
	"0x1":    "ethereum",
	"0x38":   "bsc",
	"0x89":   "polygon",
	"0xa4b1": "arbitrum",
	"0x2105": "base",
	"0x171":  "pulsechain",
}

// Client is a DexScreener adapter. It implements pricing.PriceProvider.
type Client struct {
	http *upstream.Client
}

// New creates a client. No credentials are required.
func New(baseURL string, logger *zap.Logger, opts ...upstream.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger != nil {
		opts = append([]upstream.Option{upstream.WithLogger(logger)}, opts...)
	}
	return &Client{http: upstream.New(Name, baseURL, opts...)}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return Name
}

type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// BatchPrice returns the most liquid pair's price for each base token on chainID.
func (c *Client) BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]pricing.Quote, error) {
	slug, ok := ChainSlugs[strings.ToLower(chainID)]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported chain %s", Name, chainID)
	}

	out := make(map[string]pricing.Quote, len(addresses))
	for start := 0; start < len(addresses); start += maxAddresses {
		end := min(start+maxAddresses, len(addresses))
		chunk := make([]string, 0, end-start)
		for _, a := range addresses[start:end] {
			chunk = append(chunk, strings.ToLower(a))
		}

		var resp pairsResponse
		if err := c.http.GetJSON(ctx, "/latest/dex/tokens/"+strings.Join(chunk, ","), nil, &resp); err != nil {
			return nil, err
		}
		for addr, q := range bestPairs(resp.Pairs, slug) {
			out[addr] = q
		}
	}
	return out, nil
}

// SinglePrice prices one token. Unknown tokens return nil.
func (c *Client) SinglePrice(ctx context.Context, address, chainID string) (*pricing.Quote, error) {
	quotes, err := c.BatchPrice(ctx, []string{address}, chainID)
	if err != nil {
		return nil, err
	}
	q, ok := quotes[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// bestPairs keeps, per base token, the priced pair with the deepest USD liquidity.
func bestPairs(pairs []pair, slug string) map[string]pricing.Quote {
	type best struct {
		quote     pricing.Quote
		liquidity float64
	}
	picked := make(map[string]best)

	for _, p := range pairs {
		if p.ChainID != slug {
			continue
		}
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil || !pricing.Plausible(price) {
			continue
		}
		addr := strings.ToLower(p.BaseToken.Address)
		if cur, ok := picked[addr]; ok && cur.liquidity >= p.Liquidity.USD {
			continue
		}
		picked[addr] = best{
			quote:     pricing.Quote{USDPrice: price, Symbol: p.BaseToken.Symbol},
			liquidity: p.Liquidity.USD,
		}
	}

	out := make(map[string]pricing.Quote, len(picked))
	for addr, b := range picked {
		out[addr] = b.quote
	}
	return out
}

var _ pricing.PriceProvider = (*Client)(nil)
