// Package moralis adapts the Moralis EVM API: wallet transfer history and token prices.
package moralis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/upstream"
)

// DefaultBaseURL is the public Moralis EVM API.
const DefaultBaseURL = "https://deep-index.moralis.io/api/v2.2"

// Name identifies the provider for rate limiting and metrics.
const Name = "moralis"

// pageSize is the maximum page size the transfer endpoints accept.
const pageSize = 100

// NativeSymbols maps chain ids to the native asset symbol.
var NativeSymbols = map[string]string{
	"0x1":    "ETH",
	"0x38":   "BNB",
	"0x89":   "POL",
	"0xa4b1": "ETH",
	"0x2105": "ETH",
	"0x171":  "PLS",
}

// Client is a Moralis adapter. It implements pricing.PriceProvider and engine.TransferSource.
type Client struct {
	http   *upstream.Client
	logger *zap.Logger
}

// New creates a client. apiKey is required.
func New(baseURL, apiKey string, logger *zap.Logger, opts ...upstream.Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", Name, upstream.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]upstream.Option{
		upstream.WithHeader("X-API-Key", apiKey),
		upstream.WithLogger(logger),
	}, opts...)
	return &Client{
		http:   upstream.New(Name, baseURL, opts...),
		logger: logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return Name
}

type erc20Transfer struct {
	TransactionHash string `json:"transaction_hash"`
	LogIndex        int    `json:"log_index"`
	BlockTimestamp  string `json:"block_timestamp"`
	Address         string `json:"address"`
	TokenSymbol     string `json:"token_symbol"`
	TokenDecimals   string `json:"token_decimals"`
	Value           string `json:"value"`
	FromAddress     string `json:"from_address"`
	ToAddress       string `json:"to_address"`
}

type nativeTransaction struct {
	Hash           string `json:"hash"`
	BlockTimestamp string `json:"block_timestamp"`
	Value          string `json:"value"`
	FromAddress    string `json:"from_address"`
	ToAddress      string `json:"to_address"`
}

type page[T any] struct {
	Cursor string `json:"cursor"`
	Result []T    `json:"result"`
}

// FetchTransfers returns the wallet's ERC-20 and native transfers in r.
// Pagination is followed until the cursor is exhausted.
func (c *Client) FetchTransfers(ctx context.Context, wallet, chainID string, r domain.DateRange) ([]domain.Transfer, error) {
	wallet = strings.ToLower(wallet)

	tokenRows, err := fetchAll[erc20Transfer](ctx, c, "/"+wallet+"/erc20/transfers", chainID, r)
	if err != nil {
		return nil, fmt.Errorf("fetch erc20 transfers: %w", err)
	}
	nativeRows, err := fetchAll[nativeTransaction](ctx, c, "/"+wallet, chainID, r)
	if err != nil {
		return nil, fmt.Errorf("fetch native transfers: %w", err)
	}

	out := make([]domain.Transfer, 0, len(tokenRows)+len(nativeRows))
	for _, row := range tokenRows {
		out = append(out, row.toDomain(wallet, chainID))
	}
	symbol := NativeSymbols[strings.ToLower(chainID)]
	for _, row := range nativeRows {
		if row.Value == "" || row.Value == "0" {
			continue
		}
		out = append(out, row.toDomain(wallet, chainID, symbol))
	}

	c.logger.Debug("fetched transfers",
		zap.String("wallet", wallet),
		zap.String("chain", chainID),
		zap.Int("erc20", len(tokenRows)),
		zap.Int("native", len(nativeRows)),
	)
	return out, nil
}

func fetchAll[T any](ctx context.Context, c *Client, path, chainID string, r domain.DateRange) ([]T, error) {
	var all []T
	cursor := ""
	for {
		q := url.Values{}
		q.Set("chain", chainID)
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("order", "ASC")
		if !r.Start.IsZero() {
			q.Set("from_date", r.Start.UTC().Format(time.RFC3339))
		}
		if !r.End.IsZero() {
			q.Set("to_date", r.End.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var p page[T]
		if err := c.http.GetJSON(ctx, path, q, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Result...)
		if p.Cursor == "" || len(p.Result) == 0 {
			return all, nil
		}
		cursor = p.Cursor
	}
}

// parseTimestamp returns the zero time for unparseable input; Validate rejects it later.
func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func (t erc20Transfer) toDomain(wallet, chainID string) domain.Transfer {
	decimals, err := strconv.ParseInt(t.TokenDecimals, 10, 32)
	if err != nil {
		decimals = -1
	}
	return domain.Transfer{
		TxHash:         t.TransactionHash,
		LogIndex:       t.LogIndex,
		ChainID:        chainID,
		BlockTimestamp: parseTimestamp(t.BlockTimestamp),
		TokenSymbol:    t.TokenSymbol,
		TokenAddress:   t.Address,
		Decimals:       int32(decimals),
		RawAmount:      t.Value,
		FromAddress:    t.FromAddress,
		ToAddress:      t.ToAddress,
		WalletAddress:  wallet,
	}
}

func (t nativeTransaction) toDomain(wallet, chainID, symbol string) domain.Transfer {
	return domain.Transfer{
		TxHash:         t.Hash,
		ChainID:        chainID,
		BlockTimestamp: parseTimestamp(t.BlockTimestamp),
		TokenSymbol:    symbol,
		Decimals:       18,
		RawAmount:      t.Value,
		FromAddress:    t.FromAddress,
		ToAddress:      t.ToAddress,
		WalletAddress:  wallet,
	}
}

type tokenPrice struct {
	TokenAddress string  `json:"tokenAddress"`
	TokenSymbol  string  `json:"tokenSymbol"`
	USDPrice     float64 `json:"usdPrice"`
}

type batchRequest struct {
	Tokens []batchToken `json:"tokens"`
}

type batchToken struct {
	TokenAddress string `json:"token_address"`
}

// BatchPrice prices up to one batch of contracts in a single call.
func (c *Client) BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]pricing.Quote, error) {
	if len(addresses) == 0 {
		return map[string]pricing.Quote{}, nil
	}
	req := batchRequest{Tokens: make([]batchToken, len(addresses))}
	for i, a := range addresses {
		req.Tokens[i] = batchToken{TokenAddress: strings.ToLower(a)}
	}

	var resp []tokenPrice
	if err := c.http.PostJSON(ctx, "/erc20/prices", url.Values{"chain": {chainID}}, req, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]pricing.Quote, len(resp))
	for _, p := range resp {
		if p.TokenAddress == "" {
			continue
		}
		out[strings.ToLower(p.TokenAddress)] = pricing.Quote{USDPrice: p.USDPrice, Symbol: p.TokenSymbol}
	}
	return out, nil
}

// SinglePrice prices one contract. Unknown tokens return nil.
func (c *Client) SinglePrice(ctx context.Context, address, chainID string) (*pricing.Quote, error) {
	var p tokenPrice
	err := c.http.GetJSON(ctx, "/erc20/"+strings.ToLower(address)+"/price", url.Values{"chain": {chainID}}, &p)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pricing.Quote{USDPrice: p.USDPrice, Symbol: p.TokenSymbol}, nil
}

var _ pricing.PriceProvider = (*Client)(nil)
