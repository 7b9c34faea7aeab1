package pnl

import (
	"fmt"
	"strings"
)

// AssetClass tells stocks from options. It is part of every PositionKey.
type AssetClass int

const (
	// Stock is a share of a company or fund, multiplier 1.
	Stock AssetClass = iota + 1
	// Option is a listed option contract, usually multiplier 100.
	Option
)

func (c AssetClass) String() string {
	switch c {
	case Stock:
		return "stock"
	case Option:
		return "option"
	default:
		return "unknown"
	}
}

// DefaultMultiplier returns the contract multiplier used when a record does
// not state one.
func (c AssetClass) DefaultMultiplier() Quantity {
	if c == Option {
		return Q(100)
	}
	return Q(1)
}

// ParseAssetClass parses a string into an AssetClass. It accepts the common
// broker spellings.
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stk", "equity", "etf", "share", "shares", "cs":
		return Stock, nil
	case "option", "opt", "options", "equity_option", "call", "put":
		return Option, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAssetClass, s)
	}
}

func (c AssetClass) MarshalText() ([]byte, error) {
	if c != Stock && c != Option {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAssetClass, int(c))
	}
	return []byte(c.String()), nil
}

func (c *AssetClass) UnmarshalText(text []byte) error {
	v, err := ParseAssetClass(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
