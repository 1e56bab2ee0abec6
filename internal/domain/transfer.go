package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrMalformedTransfer is returned by Transfer.Validate when a required field is missing
// or unparseable. Malformed transfers are skipped, never fatal to a report.
var ErrMalformedTransfer = errors.New("malformed transfer")

// NullAddress is the all-zero address used as the sender of mints.
const NullAddress = "0x0000000000000000000000000000000000000000"

// Transfer is a single on-chain token movement touching the owning wallet.
// Immutable once fetched.
type Transfer struct {
	TxHash         string    `json:"txHash"`
	LogIndex       int       `json:"logIndex"`       // position within the transaction; 0 for native transfers
	ChainID        string    `json:"chainId"`        // hex chain id, e.g. "0x1"
	BlockTimestamp time.Time `json:"blockTimestamp"` // block time (UTC)
	TokenSymbol    string    `json:"tokenSymbol"`
	TokenAddress   string    `json:"tokenAddress,omitempty"` // empty = native asset
	Decimals       int32     `json:"decimals"`
	RawAmount      string    `json:"rawAmount"` // integer amount in the token's smallest unit
	FromAddress    string    `json:"fromAddress"`
	ToAddress      string    `json:"toAddress"`
	WalletAddress  string    `json:"walletAddress"`
}

// IsNative reports whether the transfer moves the chain's native asset.
func (t *Transfer) IsNative() bool {
	return t.TokenAddress == ""
}

// Token returns the price-resolution reference for the transferred token.
func (t *Transfer) Token() TokenRef {
	return TokenRef{
		Symbol:  t.TokenSymbol,
		Address: t.TokenAddress,
		ChainID: t.ChainID,
	}
}

// DecimalAmount returns RawAmount normalized by Decimals.
func (t *Transfer) DecimalAmount() (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(strings.TrimSpace(t.RawAmount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse raw amount %q: %w", t.RawAmount, err)
	}
	if raw.IsNegative() || !raw.Equal(raw.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("raw amount %q: not a non-negative integer", t.RawAmount)
	}
	return raw.Shift(-t.Decimals), nil
}

// Amount returns the normalized amount as float64, or 0 when RawAmount is unparseable.
func (t *Transfer) Amount() float64 {
	d, err := t.DecimalAmount()
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Normalized returns a copy with lower-cased addresses.
func (t Transfer) Normalized() Transfer {
	t.FromAddress = strings.ToLower(strings.TrimSpace(t.FromAddress))
	t.ToAddress = strings.ToLower(strings.TrimSpace(t.ToAddress))
	t.WalletAddress = strings.ToLower(strings.TrimSpace(t.WalletAddress))
	t.TokenAddress = strings.ToLower(strings.TrimSpace(t.TokenAddress))
	return t
}

// Validate checks the fields every downstream stage relies on.
func (t *Transfer) Validate() error {
	switch {
	case t.TxHash == "":
		return fmt.Errorf("%w: missing tx hash", ErrMalformedTransfer)
	case t.BlockTimestamp.IsZero():
		return fmt.Errorf("%w: %s: missing block timestamp", ErrMalformedTransfer, t.TxHash)
	case !common.IsHexAddress(t.FromAddress):
		return fmt.Errorf("%w: %s: bad from address %q", ErrMalformedTransfer, t.TxHash, t.FromAddress)
	case !common.IsHexAddress(t.ToAddress):
		return fmt.Errorf("%w: %s: bad to address %q", ErrMalformedTransfer, t.TxHash, t.ToAddress)
	case t.TokenAddress != "" && !common.IsHexAddress(t.TokenAddress):
		return fmt.Errorf("%w: %s: bad token address %q", ErrMalformedTransfer, t.TxHash, t.TokenAddress)
	case t.Decimals < 0:
		return fmt.Errorf("%w: %s: negative decimals", ErrMalformedTransfer, t.TxHash)
	}
	if _, err := t.DecimalAmount(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedTransfer, t.TxHash, err)
	}
	return nil
}

// DateRange is an inclusive [Start, End] interval. Zero bounds are open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether ts falls within the range.
func (r DateRange) Contains(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}
