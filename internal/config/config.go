// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wallet-tax-engine/internal/classify"
	"wallet-tax-engine/internal/pricing"
	"wallet-tax-engine/internal/ratelimit"
	"wallet-tax-engine/internal/taxsummary"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting the CLI and the engine read.
type Config struct {
	LogLevel  string
	LogFormat string

	QuoteCurrency string
	USDToEUR      float64

	PriceCacheTTL        time.Duration
	ProviderMinSpacing   time.Duration
	ProviderTimeout      time.Duration
	PriceBatchSize       int
	PriceInterBatchDelay time.Duration
	BatchCapableChains   []string

	MoralisAPIKey      string
	MoralisBaseURL     string
	PulseScanBaseURL   string
	DexScreenerBaseURL string

	PostgresDSN             string
	ClickHouseDSN           string
	RedisAddr               string
	RedisPassword           string
	RedisPreferredPricesKey string

	Tax taxsummary.Config

	SpamThreshold      float64
	HeuristicMaxAmount float64
	// KnownMinters enables the direct-minter rule for these reward or staking
	// contracts. No minters ship by default, so without KNOWN_MINTERS those
	// payouts fall through to the null-mint, reward-token or heuristic rules.
	KnownMinters       []string
}

// Load reads .env (if present) and then the process environment.
// Unparseable values are reported as errors rather than silently defaulted.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	p := &parser{}
	def := taxsummary.DefaultConfig()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		QuoteCurrency: strings.ToUpper(getEnv("QUOTE_CURRENCY", "EUR")),
		USDToEUR:      p.float("USD_EUR_RATE", pricing.DefaultUSDToEUR),

		PriceCacheTTL:        p.duration("PRICE_CACHE_TTL", pricing.DefaultCacheTTL),
		ProviderMinSpacing:   p.duration("PROVIDER_MIN_SPACING", ratelimit.DefaultSpacing),
		ProviderTimeout:      p.duration("PROVIDER_TIMEOUT", pricing.DefaultProviderTimeout),
		PriceBatchSize:       p.int("PRICE_BATCH_SIZE", pricing.DefaultBatchSize),
		PriceInterBatchDelay: p.duration("PRICE_INTER_BATCH_DELAY", pricing.DefaultInterBatchDelay),
		BatchCapableChains:   getEnvAsList("BATCH_CAPABLE_CHAINS", pricing.DefaultBatchChains),

		MoralisAPIKey:      getEnv("MORALIS_API_KEY", ""),
		MoralisBaseURL:     getEnv("MORALIS_BASE_URL", ""),
		PulseScanBaseURL:   getEnv("PULSESCAN_BASE_URL", ""),
		DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", ""),

		PostgresDSN:             getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN:           getEnv("CLICKHOUSE_DSN", ""),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisPreferredPricesKey: getEnv("REDIS_PREFERRED_PRICES_KEY", ""),

		Tax: taxsummary.Config{
			ROIRate:            p.float("ROI_TAX_RATE", def.ROIRate),
			CapitalGainsRate:   p.float("CAPITAL_GAINS_TAX_RATE", def.CapitalGainsRate),
			ExemptionThreshold: p.float("EXEMPTION_THRESHOLD", def.ExemptionThreshold),
			ExemptionMode:      taxsummary.ExemptionMode(getEnv("EXEMPTION_MODE", string(def.ExemptionMode))),
			LongTermDays:       p.int("LONG_TERM_DAYS", def.LongTermDays),
		},

		SpamThreshold:      p.float("SPAM_THRESHOLD", classify.DefaultSpamThreshold),
		HeuristicMaxAmount: p.float("HEURISTIC_MAX_AMOUNT", classify.DefaultHeuristicMaxAmount),
		KnownMinters:       getEnvAsList("KNOWN_MINTERS", nil),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks rates, currency and provider settings.
func (c *Config) Validate() error {
	if err := c.Tax.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fx := c.FXRates()
	if !fx.Supports(c.QuoteCurrency) {
		return fmt.Errorf("%w: unsupported quote currency %q", ErrInvalidConfig, c.QuoteCurrency)
	}
	if c.USDToEUR <= 0 {
		return fmt.Errorf("%w: USD_EUR_RATE must be positive", ErrInvalidConfig)
	}
	if c.PriceBatchSize <= 0 {
		return fmt.Errorf("%w: PRICE_BATCH_SIZE must be positive", ErrInvalidConfig)
	}
	if c.PriceCacheTTL < 0 || c.ProviderMinSpacing < 0 || c.PriceInterBatchDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.SpamThreshold <= 0 || c.HeuristicMaxAmount <= 0 {
		return fmt.Errorf("%w: classification thresholds must be positive", ErrInvalidConfig)
	}
	return nil
}

// FXRates returns the USD conversion table for the configured rates.
func (c *Config) FXRates() pricing.FXRates {
	return pricing.FXRates{"USD": 1, "EUR": c.USDToEUR}
}

// RuleSet returns the default classification tables with configured overrides.
func (c *Config) RuleSet() classify.RuleSet {
	rs := classify.DefaultRuleSet()
	rs.SpamThreshold = c.SpamThreshold
	rs.HeuristicMaxAmount = c.HeuristicMaxAmount
	for _, m := range c.KnownMinters {
		rs.KnownMinters[strings.ToLower(m)] = "configured"
	}
	return rs
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first conversion error so Load reports one clear failure.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}
