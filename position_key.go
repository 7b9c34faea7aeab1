package pnl

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
)

// PositionKey identifies one FIFO lot queue. Positions are never keyed by a
// display symbol: a stock and an option on the same root are two keys.
//
// The fields are private so that a key can only come from KeyOf, from
// NewPositionKey or from its own text encoding.
type PositionKey struct {
	root     string
	class    AssetClass
	contract string // option series (expiry, right, strike), empty for stocks
}

// occSymbolRE matches OCC option symbols: root, YYMMDD, C|P, strike*1000 on 8 digits.
// The root may be padded with spaces to 6 characters.
var occSymbolRE = regexp.MustCompile(`^([A-Z0-9.]{1,6})\s*(\d{6}[CP]\d{8})$`)

// NewPositionKey returns the key of root/class/contract after canonical
// formatting. Stocks never carry a contract.
func NewPositionKey(root string, class AssetClass, contract string) PositionKey {
	k := PositionKey{
		root:     strings.ToUpper(strings.TrimSpace(root)),
		class:    class,
		contract: strings.ToUpper(strings.Join(strings.Fields(contract), "")),
	}
	if class != Option {
		k.contract = ""
	}
	return k
}

// KeyOf returns the position key of a transaction. Option symbols in OCC
// format are split into root and series, other option symbols use their
// first word as root and the rest as series.
func KeyOf(tx Transaction) PositionKey {
	sym := strings.ToUpper(strings.TrimSpace(tx.Symbol))
	if tx.AssetClass != Option {
		return NewPositionKey(sym, tx.AssetClass, "")
	}
	if m := occSymbolRE.FindStringSubmatch(sym); m != nil {
		return NewPositionKey(m[1], Option, m[2])
	}
	root, series, _ := strings.Cut(sym, " ")
	return NewPositionKey(root, Option, series)
}

func (k PositionKey) Root() string           { return k.root }
func (k PositionKey) AssetClass() AssetClass { return k.class }
func (k PositionKey) Contract() string       { return k.contract }
func (k PositionKey) IsZero() bool           { return k == PositionKey{} }

// Symbol returns the instrument symbol used to look up official closes:
// the root for stocks, the root followed by the series for options.
func (k PositionKey) Symbol() string { return k.root + k.contract }

func (k PositionKey) String() string {
	if k.class == Option {
		return fmt.Sprintf("%s %s (option)", k.root, k.contract)
	}
	return fmt.Sprintf("%s (%s)", k.root, k.class)
}

// Compare orders keys by root, then asset class, then series.
func (k PositionKey) Compare(o PositionKey) int {
	if c := cmp.Compare(k.root, o.root); c != 0 {
		return c
	}
	if c := cmp.Compare(k.class, o.class); c != 0 {
		return c
	}
	return cmp.Compare(k.contract, o.contract)
}

// MarshalText encodes the key as "class:root[:series]" so that it can key
// JSON objects in persisted snapshots.
func (k PositionKey) MarshalText() ([]byte, error) {
	class, err := k.class.MarshalText()
	if err != nil {
		return nil, err
	}
	s := string(class) + ":" + k.root
	if k.contract != "" {
		s += ":" + k.contract
	}
	return []byte(s), nil
}

func (k *PositionKey) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return fmt.Errorf("invalid position key %q", text)
	}
	var class AssetClass
	if err := class.UnmarshalText([]byte(parts[0])); err != nil {
		return err
	}
	var contract string
	if len(parts) == 3 {
		contract = parts[2]
	}
	*k = NewPositionKey(parts[1], class, contract)
	return nil
}
