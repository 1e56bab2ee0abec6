package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/ratelimit"
)

// Tier names the resolver step that produced a price.
type Tier string

const (
	TierStablecoin Tier = "stablecoin"
	TierCache      Tier = "cache"
	TierPrimary    Tier = "primary"
	TierSecondary  Tier = "secondary"
	TierNative     Tier = "native"
	TierPreferred  Tier = "preferred"
	TierEmergency  Tier = "emergency"
	TierNone       Tier = "none"
)

// Source maps a tier to its provenance tag.
func (t Tier) Source() domain.PriceSource {
	switch t {
	case TierCache:
		return domain.PriceSourceCache
	case TierPrimary:
		return domain.PriceSourcePrimary
	case TierSecondary, TierNative:
		return domain.PriceSourceSecondary
	case TierStablecoin, TierPreferred, TierEmergency:
		return domain.PriceSourceFallback
	default:
		return domain.PriceSourceUnavailable
	}
}

// cacheable reports whether prices from this tier are written back to the cache.
func (t Tier) cacheable() bool {
	switch t {
	case TierPrimary, TierSecondary, TierNative, TierPreferred:
		return true
	}
	return false
}

// Price is a resolved unit price in the quote currency.
type Price struct {
	UnitPrice float64
	Source    domain.PriceSource
	Tier      Tier
}

// Unavailable is the result of a total resolution failure.
func Unavailable() Price {
	return Price{UnitPrice: 0, Source: domain.PriceSourceUnavailable, Tier: TierNone}
}

// Reliable reports whether the price came from a live source or a maintained table.
func (p Price) Reliable() bool {
	return p.Tier != TierEmergency && p.Tier != TierNone
}

func newPrice(tier Tier, unitPrice float64) Price {
	return Price{UnitPrice: unitPrice, Source: tier.Source(), Tier: tier}
}

// Strategy is one step of the resolution chain.
type Strategy interface {
	Tier() Tier
	// TryResolve returns false when this step has no plausible price.
	TryResolve(ctx context.Context, token domain.TokenRef, quote string) (Price, bool)
}

// BatchStrategy resolves many tokens of one chain in as few calls as possible.
type BatchStrategy interface {
	Strategy
	// TryResolveBatch returns prices keyed by TokenRef.Key(); unresolved tokens are absent.
	TryResolveBatch(ctx context.Context, chainID string, tokens []domain.TokenRef, quote string) map[string]Price
}

// tableStrategy resolves from a static symbol table.
type tableStrategy struct {
	tier  Tier
	table SymbolTable
	fx    FXRates
}

// NewTableStrategy resolves symbols from a static USD table.
func NewTableStrategy(tier Tier, table SymbolTable, fx FXRates) Strategy {
	return &tableStrategy{tier: tier, table: table, fx: fx}
}

func (s *tableStrategy) Tier() Tier { return s.tier }

func (s *tableStrategy) TryResolve(_ context.Context, token domain.TokenRef, quote string) (Price, bool) {
	usd, ok := s.table.Lookup(token.Symbol)
	if !ok {
		return Price{}, false
	}
	p, ok := s.fx.Convert(usd, quote)
	if !ok {
		return Price{}, false
	}
	return newPrice(s.tier, p), true
}

// cacheStrategy serves fresh entries from the shared cache.
type cacheStrategy struct {
	cache *Cache
}

// NewCacheStrategy resolves from cache.
func NewCacheStrategy(cache *Cache) Strategy {
	return &cacheStrategy{cache: cache}
}

func (s *cacheStrategy) Tier() Tier { return TierCache }

func (s *cacheStrategy) TryResolve(_ context.Context, token domain.TokenRef, quote string) (Price, bool) {
	p, ok := s.cache.Get(token, quote)
	if !ok {
		return Price{}, false
	}
	return newPrice(TierCache, p), true
}

// providerCall bounds one upstream call by the limiter and a definite timeout.
type providerCall struct {
	limiter *ratelimit.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

func (c providerCall) do(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, provider); err != nil {
			return err
		}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx)
	observability.RecordProviderCall(provider, time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Warn("price provider call failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
	}
	return err
}

// primaryStrategy batches contract tokens per chain through the primary provider.
type primaryStrategy struct {
	provider        PriceProvider
	fx              FXRates
	call            providerCall
	clock           ratelimit.Clock
	batchChains     map[string]struct{}
	batchSize       int
	interBatchDelay time.Duration
}

func (s *primaryStrategy) Tier() Tier { return TierPrimary }

func (s *primaryStrategy) batchCapable(chainID string) bool {
	_, ok := s.batchChains[strings.ToLower(chainID)]
	return ok
}

func (s *primaryStrategy) TryResolve(ctx context.Context, token domain.TokenRef, quote string) (Price, bool) {
	got := s.TryResolveBatch(ctx, token.ChainID, []domain.TokenRef{token}, quote)
	p, ok := got[token.Key()]
	return p, ok
}

func (s *primaryStrategy) TryResolveBatch(ctx context.Context, chainID string, tokens []domain.TokenRef, quote string) map[string]Price {
	out := make(map[string]Price)
	if !s.batchCapable(chainID) {
		return out
	}

	var contracts []domain.TokenRef
	for _, tok := range tokens {
		if !tok.IsNative() {
			contracts = append(contracts, tok)
		}
	}

	for start := 0; start < len(contracts); start += s.batchSize {
		if start > 0 && s.interBatchDelay > 0 {
			if err := s.clock.Sleep(ctx, s.interBatchDelay); err != nil {
				return out
			}
		}
		end := start + s.batchSize
		if end > len(contracts) {
			end = len(contracts)
		}
		chunk := contracts[start:end]

		addrs := make([]string, len(chunk))
		for i, tok := range chunk {
			addrs[i] = strings.ToLower(tok.Address)
		}

		var quotes map[string]Quote
		err := s.call.do(ctx, s.provider.Name(), func(ctx context.Context) error {
			var err error
			quotes, err = s.provider.BatchPrice(ctx, addrs, chainID)
			return err
		})
		if err != nil {
			continue
		}

		for _, tok := range chunk {
			q, ok := quotes[strings.ToLower(tok.Address)]
			if !ok || !Plausible(q.USDPrice) {
				continue
			}
			if p, ok := s.fx.Convert(q.USDPrice, quote); ok {
				out[tok.Key()] = newPrice(TierPrimary, p)
			}
		}
	}
	return out
}

// secondaryStrategy prices contracts one at a time and native assets via the native provider.
type secondaryStrategy struct {
	provider PriceProvider
	native   NativeAssetPriceProvider
	fx       FXRates
	call     providerCall
}

func (s *secondaryStrategy) Tier() Tier { return TierSecondary }

func (s *secondaryStrategy) TryResolve(ctx context.Context, token domain.TokenRef, quote string) (Price, bool) {
	var (
		usd  float64
		tier Tier
		err  error
	)

	switch {
	case token.IsNative() && s.native != nil:
		tier = TierNative
		err = s.call.do(ctx, s.native.Name(), func(ctx context.Context) error {
			var err error
			usd, err = s.native.NativePrice(ctx, token.ChainID)
			return err
		})
	case !token.IsNative() && s.provider != nil:
		tier = TierSecondary
		err = s.call.do(ctx, s.provider.Name(), func(ctx context.Context) error {
			q, err := s.provider.SinglePrice(ctx, strings.ToLower(token.Address), token.ChainID)
			if err != nil {
				return err
			}
			if q == nil {
				return nil
			}
			usd = q.USDPrice
			return nil
		})
	default:
		return Price{}, false
	}

	if err != nil || !Plausible(usd) {
		return Price{}, false
	}
	p, ok := s.fx.Convert(usd, quote)
	if !ok {
		return Price{}, false
	}
	return newPrice(tier, p), true
}

var (
	_ Strategy      = (*tableStrategy)(nil)
	_ Strategy      = (*cacheStrategy)(nil)
	_ BatchStrategy = (*primaryStrategy)(nil)
	_ Strategy      = (*secondaryStrategy)(nil)
)

func (t Tier) String() string {
	return string(t)
}

func (p Price) String() string {
	return fmt.Sprintf("%g (%s/%s)", p.UnitPrice, p.Source, p.Tier)
}
