// Package redis keeps the maintained preferred-price table in a Redis hash.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/storage"
)

// DefaultKey is the hash holding symbol -> USD price.
const DefaultKey = "wallet-tax-engine:preferred-prices"

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// PreferredPriceStore implements storage.PreferredPriceStore on one Redis hash.
type PreferredPriceStore struct {
	client goredis.UniversalClient
	key    string
}

// NewPreferredPriceStore creates a store on key; an empty key uses DefaultKey.
func NewPreferredPriceStore(client goredis.UniversalClient, key string) *PreferredPriceStore {
	if key == "" {
		key = DefaultKey
	}
	return &PreferredPriceStore{client: client, key: key}
}

// Compile-time interface check.
var _ storage.PreferredPriceStore = (*PreferredPriceStore)(nil)

// Load returns the whole table. Unparseable or non-positive entries are skipped.
func (s *PreferredPriceStore) Load(ctx context.Context) (_ map[string]float64, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("redis", "load_preferred", time.Since(start).Seconds(), err) }()

	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}

	out := make(map[string]float64, len(raw))
	for sym, v := range raw {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p <= 0 {
			continue
		}
		out[strings.ToUpper(sym)] = p
	}
	return out, nil
}

// Save merges prices into the hash. Symbols are upper-cased.
func (s *PreferredPriceStore) Save(ctx context.Context, prices map[string]float64) (err error) {
	if len(prices) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("redis", "save_preferred", time.Since(start).Seconds(), err) }()

	fields := make(map[string]interface{}, len(prices))
	for sym, p := range prices {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || p <= 0 {
			return storage.ErrInvalidInput
		}
		fields[sym] = strconv.FormatFloat(p, 'g', -1, 64)
	}

	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}
