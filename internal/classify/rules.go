// Package classify assigns a tax category to each transfer using an ordered rule table.
package classify

import (
	"strings"

	"wallet-tax-engine/internal/domain"
)

// RuleKind tags a rule variant in the table.
type RuleKind int

const (
	RuleSpam RuleKind = iota
	RuleDirectMinter
	RuleNullAddressMint
	RuleRewardSymbol
	RuleSmallAmountFromContract
	RuleDirectionFallback
)

// Rule is one entry of the ordered rule table.
type Rule struct {
	Kind       RuleKind
	Name       string
	Confidence int
}

// DefaultRules is the evaluation order; the first matching rule wins.
var DefaultRules = []Rule{
	{Kind: RuleSpam, Name: "spam_filter", Confidence: 100},
	{Kind: RuleDirectMinter, Name: "direct_minter", Confidence: 95},
	{Kind: RuleNullAddressMint, Name: "null_address_mint", Confidence: 90},
	{Kind: RuleRewardSymbol, Name: "reward_symbol", Confidence: 85},
	{Kind: RuleSmallAmountFromContract, Name: "small_amount_from_contract", Confidence: 60},
	{Kind: RuleDirectionFallback, Name: "direction_fallback"},
}

// Direction fallback confidences.
const (
	ConfidenceDisposal = 70
	ConfidencePurchase = 50
	ConfidenceTransfer = 40
)

// Default rule thresholds.
const (
	DefaultSpamThreshold      = 1e9
	DefaultHeuristicMaxAmount = 10000
)

// BurnAddresses are never treated as reward contracts.
var BurnAddresses = []string{
	domain.NullAddress,
	"0x000000000000000000000000000000000000dead",
	"0xdead000000000000000042069420694206942069",
}

// RuleSet is the data the rule table is evaluated against.
type RuleSet struct {
	// SpamThreshold is the normalized amount at or above which a transfer is spam.
	SpamThreshold float64

	// KnownMinters maps reward/staking contract addresses to a label.
	KnownMinters map[string]string

	// RewardTokens maps reward token symbols to their underlying source token.
	RewardTokens map[string]string

	// HeuristicMaxAmount is the largest amount the small-amount heuristic accepts.
	HeuristicMaxAmount float64

	// ExchangeAddresses are routers and pools whose incoming transfers are purchases, not rewards.
	ExchangeAddresses map[string]string
}

// DefaultRuleSet returns the maintained reward token and exchange tables.
// KnownMinters starts empty, so the direct-minter rule is opt-in.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		SpamThreshold: DefaultSpamThreshold,
		KnownMinters:  map[string]string{},
		RewardTokens: map[string]string{
			"INC":   "PLSX",
			"HDRN":  "HEX",
			"ICSA":  "HDRN",
			"MAXI":  "HEX",
			"BASE":  "HEX",
			"TRIO":  "HEX",
			"LUCKY": "HEX",
			"DECI":  "HEX",
		},
		HeuristicMaxAmount: DefaultHeuristicMaxAmount,
		ExchangeAddresses: map[string]string{
			"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 router",
			"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 router",
			"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad": "Uniswap universal router",
			"0x165c3410fc91ef562c50559f7d2289febed552d9": "PulseX router",
			"0x98bf93ebf5c380c0e6ae8e192a7e2ae08edacc02": "PulseX router v1",
			"0x10ed43c718714eb63d5aa57b78b54704e256024e": "PancakeSwap router",
		},
	}
}

// normalize lower-cases address keys and upper-cases symbol keys.
func (rs RuleSet) normalize() RuleSet {
	out := rs
	out.KnownMinters = lowerKeys(rs.KnownMinters)
	out.ExchangeAddresses = lowerKeys(rs.ExchangeAddresses)
	out.RewardTokens = make(map[string]string, len(rs.RewardTokens))
	for k, v := range rs.RewardTokens {
		out.RewardTokens[strings.ToUpper(k)] = v
	}
	if out.SpamThreshold <= 0 {
		out.SpamThreshold = DefaultSpamThreshold
	}
	if out.HeuristicMaxAmount <= 0 {
		out.HeuristicMaxAmount = DefaultHeuristicMaxAmount
	}
	return out
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
