package pnl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Canonical fields of a raw transaction record.
const (
	FieldID         = "id"
	FieldSymbol     = "symbol"
	FieldAssetClass = "assetClass"
	FieldQuantity   = "quantity"
	FieldSide       = "side"
	FieldPrice      = "price"
	FieldMultiplier = "multiplier"
	FieldTimestamp  = "timestamp"
)

// Aliases lists, for each canonical field, the jsonpath expressions where
// brokers put it. The first expression that yields a value wins.
type Aliases map[string][]string

// DefaultAliases covers the spellings seen in common broker exports.
func DefaultAliases() Aliases {
	return Aliases{
		FieldID:         {"$.id", "$.tradeId", "$.trade_id", "$.execId", "$.exec_id"},
		FieldSymbol:     {"$.symbol", "$.ticker", "$.instrument.symbol"},
		FieldAssetClass: {"$.assetClass", "$.asset_class", "$.secType", "$.instrument.type"},
		FieldQuantity:   {"$.quantity", "$.qty", "$.shares", "$.contracts"},
		FieldSide:       {"$.side", "$.action"},
		FieldPrice:      {"$.price", "$.px", "$.fill_price", "$.fillPrice"},
		FieldMultiplier: {"$.multiplier", "$.contractMultiplier", "$.instrument.multiplier"},
		FieldTimestamp:  {"$.timestampMillis", "$.timestamp", "$.time", "$.executedAt"},
	}
}

// idNamespace scopes the identifiers derived from raw records.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/etnz/pnl/transactions"))

// Normalizer turns raw broker records into Transactions. It is the only
// place where spellings, signs and defaults are interpreted.
type Normalizer struct {
	aliases  Aliases
	currency string
}

// NewNormalizer returns a normalizer using the default aliases, overridden
// field by field by aliases. Prices are expressed in currency.
func NewNormalizer(currency string, aliases Aliases) *Normalizer {
	a := DefaultAliases()
	maps.Copy(a, aliases)
	return &Normalizer{aliases: a, currency: currency}
}

// NormalizeJSON parses one JSON object and normalizes it. A record without
// id gets a deterministic one derived from its content. On error, the
// returned transaction holds what could be read, its id at least.
func (n *Normalizer) NormalizeJSON(data []byte) (Transaction, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	tx, err := n.Normalize(raw)
	if err != nil {
		return tx, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewSHA1(idNamespace, bytes.TrimSpace(data)).String()
	}
	return tx, nil
}

// Normalize builds a transaction from a decoded record. The id is left
// empty when the record has none.
func (n *Normalizer) Normalize(raw map[string]any) (Transaction, error) {
	var tx Transaction
	if v, ok := n.lookup(raw, FieldID); ok {
		tx.ID = strings.TrimSpace(fmt.Sprint(v))
	}

	v, ok := n.lookup(raw, FieldSymbol)
	if !ok {
		return tx, fmt.Errorf("%w: no symbol", ErrMalformed)
	}
	tx.Symbol = strings.ToUpper(strings.TrimSpace(fmt.Sprint(v)))

	if v, ok := n.lookup(raw, FieldAssetClass); ok {
		class, err := ParseAssetClass(fmt.Sprint(v))
		if err != nil {
			return tx, err
		}
		tx.AssetClass = class
	} else if occSymbolRE.MatchString(tx.Symbol) {
		tx.AssetClass = Option
	} else {
		tx.AssetClass = Stock
	}

	v, ok = n.lookup(raw, FieldQuantity)
	if !ok {
		return tx, fmt.Errorf("%w: no quantity", ErrMalformed)
	}
	qty, err := toDecimal(v)
	if err != nil {
		return tx, fmt.Errorf("%w: quantity: %v", ErrMalformed, err)
	}
	if v, ok := n.lookup(raw, FieldSide); ok {
		sign, err := parseSide(fmt.Sprint(v))
		if err != nil {
			return tx, err
		}
		qty = qty.Abs().Mul(decimal.NewFromInt(int64(sign)))
	}
	tx.Quantity = Q(qty)

	v, ok = n.lookup(raw, FieldPrice)
	if !ok {
		return tx, fmt.Errorf("%w: no price", ErrMalformed)
	}
	price, err := toDecimal(v)
	if err != nil {
		return tx, fmt.Errorf("%w: price: %v", ErrMalformed, err)
	}
	tx.Price = M(price, n.currency)

	tx.Multiplier = tx.AssetClass.DefaultMultiplier()
	if v, ok := n.lookup(raw, FieldMultiplier); ok {
		m, err := toDecimal(v)
		if err != nil {
			return tx, fmt.Errorf("%w: multiplier: %v", ErrMalformed, err)
		}
		tx.Multiplier = Q(m)
	}

	v, ok = n.lookup(raw, FieldTimestamp)
	if !ok {
		return tx, fmt.Errorf("%w: no timestamp", ErrMalformed)
	}
	if tx.Timestamp, err = toMillis(v); err != nil {
		return tx, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}

	if tx.Quantity.IsZero() {
		return tx, ErrZeroQuantity
	}
	return tx, nil
}

// lookup returns the first value found by the aliases of field.
func (n *Normalizer) lookup(raw map[string]any, field string) (any, bool) {
	for _, path := range n.aliases[field] {
		v, err := jsonpath.Get(path, raw)
		if err != nil {
			continue
		}
		// jsonpath returns a list for wildcard expressions, keep the first
		if list, ok := v.([]any); ok {
			if len(list) == 0 {
				continue
			}
			v = list[0]
		}
		if v == nil || v == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// parseSide returns +1 for sides that buy and -1 for sides that sell.
func parseSide(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "bot", "bto", "btc", "buy_to_open", "buy_to_close", "cover", "long":
		return 1, nil
	case "sell", "s", "sld", "stc", "sto", "sell_to_open", "sell_to_close", "short", "sell_short", "ss":
		return -1, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrMalformed, s)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(x), ",", ""))
	default:
		return decimal.Decimal{}, fmt.Errorf("not a number: %v", v)
	}
}

// toMillis reads epoch milliseconds, or an RFC 3339 time.
func toMillis(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Int64()
	case float64:
		return int64(x), nil
	case string:
		if ms, err := strconv.ParseInt(x, 10, 64); err == nil {
			return ms, nil
		}
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("not a time: %v", v)
	}
}

// DecodeTransactions reads raw JSON lines from r. Records that cannot be
// normalized are returned as warnings with their line number; blank lines
// are skipped. The error is reserved to failures reading r.
func DecodeTransactions(r io.Reader, n *Normalizer) ([]Transaction, []Warning, error) {
	var (
		txs      []Transaction
		warnings []Warning
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		tx, err := n.NormalizeJSON(data)
		if err != nil {
			warnings = append(warnings, Warning{TxID: tx.ID, Line: line, Reason: err})
			continue
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading transactions: %w", err)
	}
	return txs, warnings, nil
}
