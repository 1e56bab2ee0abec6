package classify

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"wallet-tax-engine/internal/domain"
)

// Classifier evaluates the rule table against a transfer. Pure and safe for concurrent use.
type Classifier struct {
	rules   []Rule
	ruleSet RuleSet
	burn    map[string]struct{}
}

// New creates a classifier with DefaultRules.
func New(rs RuleSet) *Classifier {
	return NewWithRules(rs, DefaultRules)
}

// NewWithRules creates a classifier with an explicit rule order.
// A direction fallback is appended if missing so classification stays total.
func NewWithRules(rs RuleSet, rules []Rule) *Classifier {
	ordered := append([]Rule(nil), rules...)
	if len(ordered) == 0 || ordered[len(ordered)-1].Kind != RuleDirectionFallback {
		ordered = append(ordered, Rule{Kind: RuleDirectionFallback, Name: "direction_fallback"})
	}

	burn := make(map[string]struct{}, len(BurnAddresses))
	for _, a := range BurnAddresses {
		burn[strings.ToLower(a)] = struct{}{}
	}

	return &Classifier{
		rules:   ordered,
		ruleSet: rs.normalize(),
		burn:    burn,
	}
}

// transferFacts are the derived values every rule reads.
type transferFacts struct {
	from     string
	to       string
	wallet   string
	symbol   string
	amount   float64
	incoming bool
	outgoing bool
}

func facts(t *domain.Transfer, wallet string) transferFacts {
	f := transferFacts{
		from:   strings.ToLower(t.FromAddress),
		to:     strings.ToLower(t.ToAddress),
		wallet: strings.ToLower(wallet),
		symbol: strings.ToUpper(t.TokenSymbol),
		amount: t.Amount(),
	}
	f.incoming = f.to == f.wallet && f.from != f.wallet
	f.outgoing = f.from == f.wallet && f.to != f.wallet
	return f
}

// Classify returns exactly one classification for t as seen from wallet.
func (c *Classifier) Classify(t *domain.Transfer, wallet string) domain.Classification {
	f := facts(t, wallet)
	for _, r := range c.rules {
		if cl, ok := c.apply(r, f); ok {
			return cl
		}
	}
	// Unreachable: the last rule is always the direction fallback.
	return domain.Classification{
		Category:    domain.CategoryTransfer,
		Confidence:  ConfidenceTransfer,
		Reason:      "no rule matched",
		MatchedRule: "direction_fallback",
	}
}

func (c *Classifier) apply(r Rule, f transferFacts) (domain.Classification, bool) {
	rs := c.ruleSet

	switch r.Kind {
	case RuleSpam:
		if f.amount >= rs.SpamThreshold {
			return verdict(r, domain.CategorySpam,
				fmt.Sprintf("amount %.4g is at or above spam threshold %.4g", f.amount, rs.SpamThreshold)), true
		}

	case RuleDirectMinter:
		if label, ok := rs.KnownMinters[f.from]; ok && f.incoming {
			return verdict(r, domain.CategoryROIIncome,
				fmt.Sprintf("sent by known reward contract %s (%s)", f.from, label)), true
		}

	case RuleNullAddressMint:
		if f.incoming && f.from == domain.NullAddress {
			return verdict(r, domain.CategoryROIIncome, "minted from the null address"), true
		}

	case RuleRewardSymbol:
		if source, ok := rs.RewardTokens[f.symbol]; ok && f.incoming {
			return verdict(r, domain.CategoryROIIncome,
				fmt.Sprintf("%s is a reward token of %s", f.symbol, source)), true
		}

	case RuleSmallAmountFromContract:
		if f.incoming && f.amount > 0 && f.amount <= rs.HeuristicMaxAmount && c.looksLikeContract(f.from) {
			return verdict(r, domain.CategoryROIIncome,
				fmt.Sprintf("small incoming amount %.4g from contract-like sender %s", f.amount, f.from)), true
		}

	case RuleDirectionFallback:
		switch {
		case f.outgoing:
			return domain.Classification{
				Category:    domain.CategoryDisposal,
				Confidence:  ConfidenceDisposal,
				Reason:      "outgoing from wallet",
				MatchedRule: r.Name,
			}, true
		case f.incoming:
			return domain.Classification{
				Category:    domain.CategoryPurchase,
				Confidence:  ConfidencePurchase,
				Reason:      "incoming to wallet",
				MatchedRule: r.Name,
			}, true
		default:
			return domain.Classification{
				Category:    domain.CategoryTransfer,
				Confidence:  ConfidenceTransfer,
				Reason:      "neither incoming nor outgoing",
				MatchedRule: r.Name,
			}, true
		}
	}
	return domain.Classification{}, false
}

// looksLikeContract accepts well-formed addresses that are not burn sinks or known exchanges.
func (c *Classifier) looksLikeContract(addr string) bool {
	if !common.IsHexAddress(addr) {
		return false
	}
	addr = strings.ToLower(common.HexToAddress(addr).Hex())
	if _, burn := c.burn[addr]; burn {
		return false
	}
	if _, exchange := c.ruleSet.ExchangeAddresses[addr]; exchange {
		return false
	}
	return true
}

func verdict(r Rule, category domain.Category, reason string) domain.Classification {
	return domain.Classification{
		Category:    category,
		Confidence:  r.Confidence,
		Reason:      reason,
		MatchedRule: r.Name,
	}
}
