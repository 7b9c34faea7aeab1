package pnl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/pnl/date"
)

// Transaction is an immutable execution fact: a signed quantity of an
// instrument traded at a price. A positive quantity increases a long or
// reduces a short, a negative one does the opposite.
type Transaction struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"assetClass"`
	Quantity   Quantity   `json:"quantity"`
	Price      Money      `json:"price"`
	Multiplier Quantity   `json:"multiplier"`
	// Timestamp is the epoch time of the execution in milliseconds. Its
	// trading day is taken in the exchange location.
	Timestamp int64 `json:"timestampMillis"`

	notional Money // traded amount before split normalization, zero when unset
}

// Key returns the position key of the transaction.
func (t Transaction) Key() PositionKey { return KeyOf(t) }

// Day returns the trading day of the transaction in the exchange location.
func (t Transaction) Day(loc *time.Location) date.Date { return date.FromMillis(t.Timestamp, loc) }

// Notional returns the signed traded amount, quantity times price, before
// the multiplier. Split normalization keeps it exact even when the adjusted
// price is not.
func (t Transaction) Notional() Money {
	if t.notional.IsZero() {
		return t.Price.Mul(t.Quantity)
	}
	return t.notional
}

// Validate checks the transaction can enter a ledger.
func (t Transaction) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformed)
	case t.Symbol == "":
		return fmt.Errorf("%w: missing symbol", ErrMalformed)
	case t.AssetClass != Stock && t.AssetClass != Option:
		return fmt.Errorf("%w: %d", ErrUnknownAssetClass, int(t.AssetClass))
	case t.AssetClass == Option && t.Key().Contract() == "":
		return fmt.Errorf("%w: option %s has no contract series", ErrMalformed, t.Symbol)
	case t.Quantity.IsZero():
		return ErrZeroQuantity
	case t.Price.IsNegative():
		return fmt.Errorf("%w: negative price %v", ErrMalformed, t.Price)
	case !t.Multiplier.IsPositive():
		return fmt.Errorf("%w: multiplier %v", ErrMalformed, t.Multiplier)
	}
	return nil
}

// compareTransactions orders by timestamp, ties broken by id so that the
// ledger is deterministic.
func compareTransactions(a, b Transaction) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortTransactions sorts txs chronologically, in place.
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, compareTransactions)
}

// TransactionSource is the append-only transaction store of the accounts.
type TransactionSource interface {
	// Transactions returns the transactions of account executed strictly
	// after 'after' and at or before 'through', ordered by time. A zero
	// 'after' means since the first transaction.
	Transactions(ctx context.Context, account string, after, through time.Time) ([]Transaction, error)
	// Revision returns the highest revision of any write (insert, update or
	// delete) that touched a transaction executed at or before 'through'.
	// Revisions increase monotonically per account.
	Revision(ctx context.Context, account string, through time.Time) (int64, error)
}
