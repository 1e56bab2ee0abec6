package pricing

import (
	"context"
	"strings"
)

// Quote is a provider's USD price for one token.
type Quote struct {
	USDPrice float64
	Symbol   string
}

// PriceProvider is an upstream token price source.
// Primary and secondary providers share this shape.
type PriceProvider interface {
	// Name identifies the provider for rate limiting and metrics.
	Name() string

	// BatchPrice returns quotes keyed by lower-cased token address.
	// Tokens the provider does not know are absent from the map.
	BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]Quote, error)

	// SinglePrice returns nil when the provider has no price for the token.
	SinglePrice(ctx context.Context, address, chainID string) (*Quote, error)
}

// NativeAssetPriceProvider prices a chain's native asset.
type NativeAssetPriceProvider interface {
	Name() string
	NativePrice(ctx context.Context, chainID string) (float64, error)
}

// fallbackProvider asks each provider in turn and keeps the first price found.
type fallbackProvider struct {
	name      string
	providers []PriceProvider
}

// Fallback combines providers into one. A provider error is returned only when
// no later provider supplied the price.
func Fallback(name string, providers ...PriceProvider) PriceProvider {
	return &fallbackProvider{name: name, providers: providers}
}

func (f *fallbackProvider) Name() string { return f.name }

func (f *fallbackProvider) BatchPrice(ctx context.Context, addresses []string, chainID string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(addresses))
	var lastErr error
	missing := addresses
	for _, p := range f.providers {
		if len(missing) == 0 {
			break
		}
		got, err := p.BatchPrice(ctx, missing, chainID)
		if err != nil {
			lastErr = err
			continue
		}
		var rest []string
		for _, a := range missing {
			if q, ok := got[strings.ToLower(a)]; ok {
				out[strings.ToLower(a)] = q
			} else {
				rest = append(rest, a)
			}
		}
		missing = rest
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (f *fallbackProvider) SinglePrice(ctx context.Context, address, chainID string) (*Quote, error) {
	var lastErr error
	for _, p := range f.providers {
		q, err := p.SinglePrice(ctx, address, chainID)
		if err != nil {
			lastErr = err
			continue
		}
		if q != nil {
			return q, nil
		}
	}
	return nil, lastErr
}
