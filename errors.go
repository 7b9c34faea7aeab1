package pnl

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant reports a broken ledger invariant. It is a programming
	// error, never a data error, and aborts the computation.
	ErrInvariant = errors.New("ledger invariant violated")

	ErrZeroQuantity       = errors.New("zero quantity")
	ErrUnknownAssetClass  = errors.New("unknown asset class")
	ErrMultiplierMismatch = errors.New("multiplier mismatch")
	ErrInvalidSplit       = errors.New("invalid split ratio")
	ErrMalformed          = errors.New("malformed transaction")
	ErrCurrencyMismatch   = errors.New("currency mismatch")

	// ErrNotFound is returned by stores updating a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores appending a transaction whose id is taken.
	ErrDuplicate = errors.New("duplicate transaction id")
)

// Warning records a transaction, or a raw record, that was kept out of the
// ledger or adjusted, with the reason why.
type Warning struct {
	TxID   string
	Line   int // input line for raw records, 0 otherwise
	Reason error
}

func (w Warning) Error() string {
	switch {
	case w.TxID != "" && w.Line > 0:
		return fmt.Sprintf("line %d (transaction %s): %v", w.Line, w.TxID, w.Reason)
	case w.TxID != "":
		return fmt.Sprintf("transaction %s: %v", w.TxID, w.Reason)
	case w.Line > 0:
		return fmt.Sprintf("line %d: %v", w.Line, w.Reason)
	default:
		return w.Reason.Error()
	}
}

func (w Warning) Unwrap() error { return w.Reason }

// reason returns a short label of err for metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrZeroQuantity):
		return "zero_quantity"
	case errors.Is(err, ErrUnknownAssetClass):
		return "unknown_asset_class"
	case errors.Is(err, ErrMultiplierMismatch):
		return "multiplier_mismatch"
	case errors.Is(err, ErrInvalidSplit):
		return "invalid_split"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	default:
		return "other"
	}
}
