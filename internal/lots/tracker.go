// Package lots tracks purchase lots per wallet and token and consumes them FIFO.
package lots

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"wallet-tax-engine/internal/domain"
)

// ErrOutOfOrder is returned when transfers for one wallet+token arrive with a
// decreasing block timestamp. FIFO consumption requires ascending order.
var ErrOutOfOrder = errors.New("transfers are not in ascending timestamp order")

// DefaultLongTermDays is the holding period after which a disposal gain is exempt.
const DefaultLongTermDays = 365

// dustRatio is the relative amount below which a lot or remainder counts as fully consumed.
const dustRatio = 1e-12

const day = 24 * time.Hour

type ledger struct {
	queue     []*domain.PurchaseLot
	purchased float64
	consumed  float64
	lastSeen  time.Time
}

// Tracker holds one FIFO queue per (wallet, token). Not safe for concurrent use;
// a report feeds it sequentially in timestamp order.
type Tracker struct {
	longTermDays int
	ledgers      map[string]*ledger
}

// NewTracker creates a tracker with the default long-term cutoff.
func NewTracker() *Tracker {
	return &Tracker{
		longTermDays: DefaultLongTermDays,
		ledgers:      make(map[string]*ledger),
	}
}

// WithLongTermDays sets the holding period from which gains are exempt.
func (t *Tracker) WithLongTermDays(days int) *Tracker {
	if days > 0 {
		t.longTermDays = days
	}
	return t
}

// Key returns the ledger key for a wallet and token key.
func Key(wallet, tokenKey string) string {
	return strings.ToLower(wallet) + "|" + tokenKey
}

func (t *Tracker) ledgerFor(tr *domain.Transfer) (*ledger, error) {
	key := Key(tr.WalletAddress, tr.Token().Key())
	l, ok := t.ledgers[key]
	if !ok {
		l = &ledger{}
		t.ledgers[key] = l
	}
	if tr.BlockTimestamp.Before(l.lastSeen) {
		return nil, fmt.Errorf("%w: %s at %s after %s", ErrOutOfOrder,
			tr.TxHash, tr.BlockTimestamp.Format(time.RFC3339), l.lastSeen.Format(time.RFC3339))
	}
	l.lastSeen = tr.BlockTimestamp
	return l, nil
}

// OnPurchase pushes a lot with unit cost pricedValue/amount. Zero amounts are ignored.
func (t *Tracker) OnPurchase(tr *domain.Transfer, pricedValue float64) error {
	l, err := t.ledgerFor(tr)
	if err != nil {
		return err
	}

	amount := tr.Amount()
	if amount <= 0 {
		return nil
	}

	l.queue = append(l.queue, &domain.PurchaseLot{
		TxHash:     tr.TxHash,
		Amount:     amount,
		UnitCost:   pricedValue / amount,
		AcquiredAt: tr.BlockTimestamp,
	})
	l.purchased += amount
	return nil
}

// OnDisposal consumes lots oldest-first and returns one CAPITAL_GAIN event per
// consumed fragment. Any amount not covered by known lots becomes a single
// zero-cost-basis fragment flagged CostBasisUnknown.
func (t *Tracker) OnDisposal(tr *domain.Transfer, pricedValue float64) ([]domain.TaxableEvent, error) {
	l, err := t.ledgerFor(tr)
	if err != nil {
		return nil, err
	}

	amount := tr.Amount()
	if amount <= 0 {
		return nil, nil
	}
	unitValue := pricedValue / amount
	dust := amount * dustRatio
	tokenKey := tr.Token().Key()

	var events []domain.TaxableEvent
	remaining := amount

	for remaining > dust && len(l.queue) > 0 {
		lot := l.queue[0]
		taken := lot.Consume(remaining)
		remaining -= taken
		l.consumed += taken

		if lot.Amount <= dust {
			l.consumed += lot.Amount
			lot.Amount = 0
			l.queue = l.queue[1:]
		}

		days := int(tr.BlockTimestamp.Sub(lot.AcquiredAt) / day)
		acquired := lot.AcquiredAt
		events = append(events, domain.TaxableEvent{
			Kind:              domain.EventKindCapitalGain,
			TxHash:            tr.TxHash,
			TokenKey:          tokenKey,
			Amount:            taken,
			GrossValue:        unitValue * taken,
			CostBasis:         lot.UnitCost * taken,
			HoldingPeriodDays: &days,
			AcquiredAt:        &acquired,
			DisposedAt:        tr.BlockTimestamp,
			Taxable:           days < t.longTermDays,
		})
	}

	if remaining > dust {
		days := 0
		acquired := tr.BlockTimestamp
		events = append(events, domain.TaxableEvent{
			Kind:              domain.EventKindCapitalGain,
			TxHash:            tr.TxHash,
			TokenKey:          tokenKey,
			Amount:            remaining,
			GrossValue:        unitValue * remaining,
			CostBasis:         0,
			HoldingPeriodDays: &days,
			AcquiredAt:        &acquired,
			DisposedAt:        tr.BlockTimestamp,
			Taxable:           true,
			CostBasisUnknown:  true,
		})
	}

	return events, nil
}

// Lots returns a copy of the open lots for wallet and token key, oldest first.
func (t *Tracker) Lots(wallet, tokenKey string) []domain.PurchaseLot {
	l, ok := t.ledgers[Key(wallet, tokenKey)]
	if !ok {
		return nil
	}
	out := make([]domain.PurchaseLot, len(l.queue))
	for i, lot := range l.queue {
		out[i] = *lot
	}
	return out
}

// Remaining returns the total open lot amount.
func (t *Tracker) Remaining(wallet, tokenKey string) float64 {
	var sum float64
	for _, lot := range t.Lots(wallet, tokenKey) {
		sum += lot.Amount
	}
	return sum
}

// Purchased returns the total amount ever pushed as lots.
func (t *Tracker) Purchased(wallet, tokenKey string) float64 {
	if l, ok := t.ledgers[Key(wallet, tokenKey)]; ok {
		return l.purchased
	}
	return 0
}

// Consumed returns the total amount taken from lots by disposals.
func (t *Tracker) Consumed(wallet, tokenKey string) float64 {
	if l, ok := t.ledgers[Key(wallet, tokenKey)]; ok {
		return l.consumed
	}
	return 0
}

// Keys returns all ledger keys in sorted order.
func (t *Tracker) Keys() []string {
	keys := make([]string, 0, len(t.ledgers))
	for k := range t.ledgers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OpenLotCount returns the number of lots still queued across all ledgers.
func (t *Tracker) OpenLotCount() int {
	var n int
	for _, l := range t.ledgers {
		n += len(l.queue)
	}
	return n
}
