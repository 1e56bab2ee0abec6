// Package pulsescan reads PulseChain prices from the PulseScan (Blockscout) explorer API.
package pulsescan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/upstream"
)

// DefaultBaseURL is the public PulseScan API.
const DefaultBaseURL = "https://api.scan.pulsechain.com"

// Name identifies the provider for rate limiting and metrics.
const Name = "pulsescan"

// ChainID is the only chain the explorer serves.
const ChainID = "0x171"

// ErrUnsupportedChain is returned for any chain other than PulseChain.
var ErrUnsupportedChain = errors.New("pulsescan: unsupported chain")

// Client implements pricing.NativeAssetPriceProvider and pricing.PriceProvider.
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

type coinPriceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		CoinUSD string `json:"coin_usd"`
	} `json:"result"`
}

// NativePrice returns the USD price of PLS.
func (c *Client) NativePrice(ctx context.Context, chainID string) (float64, error) {
	if !strings.EqualFold(chainID, ChainID) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedChain, chainID)
	}

	q := url.Values{}
	q.Set("module", "stats")
	q.Set("action", "coinprice")

	var resp coinPriceResponse
	if err := c.http.GetJSON(ctx, "/api", q, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("coinprice: %s", resp.Message)
	}
	price, err := strconv.ParseFloat(resp.Result.CoinUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("parse coin_usd %q: %w", resp.Result.CoinUSD, err)
	}
	return price, nil
}

type tokenResponse struct {
	Symbol       string  `json:"symbol"`
	ExchangeRate *string `json:"exchange_rate"`
}

// SinglePrice returns the explorer's exchange rate for a token. Unknown or unrated tokens return nil.
func (c *Client) SinglePrice(ctx context.Context, address, chainID string) (*pricing.Quote, error) {
	if !strings.EqualFold(chainID, ChainID) {
		return nil, nil
	}

	var resp tokenResponse
	if err := c.http.GetJSON(ctx, "/api/v2/tokens/"+strings.ToLower(address), nil, &resp); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if resp.ExchangeRate == nil {
		return nil, nil
	}
	price, err := strconv.ParseFloat(*resp.ExchangeRate, 64)
	if err != nil {
		return nil, fmt.Errorf("parse exchange_rate %q: %w", *resp.ExchangeRate, err)
	}
	return &pricing.Quote{USDPrice: price, Symbol: resp.Symbol}, nil
}

// BatchPrice has no batched endpoint; it looks tokens up one at a time.
func (c *Client) BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]pricing.Quote, error) {
	out := make(map[string]pricing.Quote, len(addresses))
	for _, a := range addresses {
		q, err := c.SinglePrice(ctx, a, chainID)
		if err != nil {
			return nil, err
		}
		if q != nil {
			out[strings.ToLower(a)] = *q
		}
	}
	return out, nil
}

var (
	_ pricing.NativeAssetPriceProvider = (*Client)(nil)
	_ pricing.PriceProvider            = (*Client)(nil)
)
