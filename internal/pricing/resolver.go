package pricing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/ratelimit"
)

// Default resolver settings.
const (
	DefaultBatchSize       = 25
	DefaultInterBatchDelay = 250 * time.Millisecond
	DefaultProviderTimeout = 10 * time.Second
)

// DefaultBatchChains are chains the primary provider can price in one batched call.
var DefaultBatchChains = []string{"0x1", "0x38", "0x89", "0xa4b1", "0x2105"}

// Options configures a Resolver built with the default strategy order.
type Options struct {
	Cache   *Cache
	Limiter *ratelimit.Limiter

	Primary   PriceProvider            // batched, batch-capable chains only
	Secondary PriceProvider            // single contract lookups
	Native    NativeAssetPriceProvider // native asset lookups

	Stablecoins []string
	Preferred   SymbolTable // maintained overrides, USD
	Emergency   SymbolTable // last resort, USD, never cached
	FX          FXRates

	BatchChains     []string
	BatchSize       int
	InterBatchDelay time.Duration
	ProviderTimeout time.Duration

	Logger *zap.Logger
}

// Resolver walks an ordered list of strategies; the first plausible price wins.
type Resolver struct {
	strategies []Strategy
	cache      *Cache
	logger     *zap.Logger
}

// NewResolver builds the standard chain:
// stablecoin, cache, primary, secondary, preferred table, emergency table.
func NewResolver(opts Options) *Resolver {
	if opts.Cache == nil {
		opts.Cache = NewCache(DefaultCacheTTL)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLimiter(ratelimit.DefaultSpacing, nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stablecoins == nil {
		opts.Stablecoins = DefaultStablecoins
	}
	if opts.Emergency == nil {
		opts.Emergency = DefaultEmergencyPrices
	}
	if opts.FX == nil {
		opts.FX = FXRates{"EUR": DefaultUSDToEUR}
	}
	if opts.BatchChains == nil {
		opts.BatchChains = DefaultBatchChains
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}

	call := providerCall{
		limiter: opts.Limiter,
		timeout: opts.ProviderTimeout,
		logger:  opts.Logger,
	}

	strategies := []Strategy{
		NewTableStrategy(TierStablecoin, NewStablecoinTable(opts.Stablecoins), opts.FX),
		NewCacheStrategy(opts.Cache),
	}
	if opts.Primary != nil {
		chains := make(map[string]struct{}, len(opts.BatchChains))
		for _, c := range opts.BatchChains {
			chains[strings.ToLower(c)] = struct{}{}
		}
		strategies = append(strategies, &primaryStrategy{
			provider:        opts.Primary,
			fx:              opts.FX,
			call:            call,
			clock:           opts.Limiter.Clock(),
			batchChains:     chains,
			batchSize:       opts.BatchSize,
			interBatchDelay: opts.InterBatchDelay,
		})
	}
	if opts.Secondary != nil || opts.Native != nil {
		strategies = append(strategies, &secondaryStrategy{
			provider: opts.Secondary,
			native:   opts.Native,
			fx:       opts.FX,
			call:     call,
		})
	}
	if len(opts.Preferred) > 0 {
		strategies = append(strategies, NewTableStrategy(TierPreferred, opts.Preferred, opts.FX))
	}
	strategies = append(strategies, NewTableStrategy(TierEmergency, opts.Emergency, opts.FX))

	return NewResolverWithStrategies(opts.Cache, opts.Logger, strategies...)
}

// NewResolverWithStrategies builds a resolver with an explicit precedence order.
func NewResolverWithStrategies(cache *Cache, logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		strategies: strategies,
		cache:      cache,
		logger:     logger,
	}
}

// Tiers returns the precedence order.
func (r *Resolver) Tiers() []Tier {
	tiers := make([]Tier, len(r.strategies))
	for i, s := range r.strategies {
		tiers[i] = s.Tier()
	}
	return tiers
}

// ResolvePrice resolves a single token. It never fails; total failure yields Unavailable.
func (r *Resolver) ResolvePrice(ctx context.Context, token domain.TokenRef, quote string) Price {
	got, _ := r.resolveChain(ctx, token.ChainID, []domain.TokenRef{token}, quote)
	if p, ok := got[token.Key()]; ok {
		return p
	}
	return Unavailable()
}

// ResolveAll resolves distinct tokens, batching per chain and running chains concurrently.
// The result is keyed by TokenRef.Key(). The only error is ctx's; prices resolved
// before cancellation are returned and stay cached.
func (r *Resolver) ResolveAll(ctx context.Context, tokens []domain.TokenRef, quote string) (map[string]Price, error) {
	byChain := make(map[string][]domain.TokenRef)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		key := tok.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		byChain[tok.ChainID] = append(byChain[tok.ChainID], tok)
	}

	chains := make([]string, 0, len(byChain))
	for c := range byChain {
		chains = append(chains, c)
	}
	sort.Strings(chains)

	var mu sync.Mutex
	results := make(map[string]Price, len(seen))

	g, gctx := errgroup.WithContext(ctx)
	for _, chainID := range chains {
		chainTokens := byChain[chainID]
		g.Go(func() error {
			got, err := r.resolveChain(gctx, chainID, chainTokens, quote)
			mu.Lock()
			for k, p := range got {
				results[k] = p
			}
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	return results, err
}

// resolveChain applies each strategy in order to the still-unresolved tokens of one chain.
func (r *Resolver) resolveChain(ctx context.Context, chainID string, tokens []domain.TokenRef, quote string) (map[string]Price, error) {
	out := make(map[string]Price, len(tokens))
	remaining := tokens

	for _, s := range r.strategies {
		if len(remaining) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var got map[string]Price
		if bs, ok := s.(BatchStrategy); ok {
			got = bs.TryResolveBatch(ctx, chainID, remaining, quote)
		} else {
			got = make(map[string]Price)
			for _, tok := range remaining {
				if err := ctx.Err(); err != nil {
					r.accept(tokens, got, quote, out)
					return out, err
				}
				if p, ok := s.TryResolve(ctx, tok, quote); ok {
					got[tok.Key()] = p
				}
			}
		}

		remaining = r.accept(remaining, got, quote, out)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	for _, tok := range remaining {
		out[tok.Key()] = Unavailable()
		observability.RecordPriceResolution(string(domain.PriceSourceUnavailable), string(TierNone))
		r.logger.Debug("no price found",
			zap.String("symbol", tok.Symbol),
			zap.String("token", tok.Key()),
		)
	}
	return out, nil
}

// accept moves resolved tokens into out, writes cacheable prices back and returns the rest.
func (r *Resolver) accept(tokens []domain.TokenRef, got map[string]Price, quote string, out map[string]Price) []domain.TokenRef {
	var rest []domain.TokenRef
	for _, tok := range tokens {
		key := tok.Key()
		if _, done := out[key]; done {
			continue
		}
		p, ok := got[key]
		if !ok {
			rest = append(rest, tok)
			continue
		}
		out[key] = p
		if r.cache != nil && p.Tier.cacheable() {
			r.cache.Set(tok, quote, p.UnitPrice)
		}
		observability.RecordPriceResolution(string(p.Source), string(p.Tier))
	}
	return rest
}
