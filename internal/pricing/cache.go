package pricing

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
)

// DefaultCacheTTL keeps resolved prices fresh for one report run.
const DefaultCacheTTL = time.Hour

// Cache stores resolved unit prices keyed by symbol|address|chainId|currency.
// Entries are wallet-independent, so one Cache may be shared across reports.
// Safe for concurrent use.
type Cache struct {
	store *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	unitPrice float64
	storedAt  time.Time
}

// NewCache creates a cache. A ttl of 0 makes every lookup miss while Set still populates it.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		// Freshness is checked against the injected clock, so go-cache never expires entries itself.
		store: gocache.New(gocache.NoExpiration, 0),
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock sets the clock used for freshness checks.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// CacheKey returns the cache key for token priced in quote.
func CacheKey(token domain.TokenRef, quote string) string {
	return strings.Join([]string{
		strings.ToUpper(token.Symbol),
		strings.ToLower(token.Address),
		token.ChainID,
		strings.ToUpper(quote),
	}, "|")
}

// Get returns a fresh cached price.
func (c *Cache) Get(token domain.TokenRef, quote string) (float64, bool) {
	if c.ttl <= 0 {
		observability.RecordCacheLookup(false)
		return 0, false
	}

	v, ok := c.store.Get(CacheKey(token, quote))
	if !ok {
		observability.RecordCacheLookup(false)
		return 0, false
	}
	entry := v.(cacheEntry)
	if c.now().Sub(entry.storedAt) >= c.ttl {
		observability.RecordCacheLookup(false)
		return 0, false
	}
	observability.RecordCacheLookup(true)
	return entry.unitPrice, true
}

// Set stores a price. Re-setting a key replaces the whole entry.
func (c *Cache) Set(token domain.TokenRef, quote string, unitPrice float64) {
	c.store.Set(CacheKey(token, quote), cacheEntry{
		unitPrice: unitPrice,
		storedAt:  c.now(),
	}, gocache.NoExpiration)
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Flush removes all entries.
func (c *Cache) Flush() {
	c.store.Flush()
}
