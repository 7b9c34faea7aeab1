package pnl

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/etnz/pnl/date"
	"github.com/shopspring/decimal"
)

// Split is a corporate action that changes the number of shares: each share
// held at the end of the day before Date becomes Numerator/Denominator
// shares. A reverse split has Numerator < Denominator.
type Split struct {
	Symbol      string    `json:"symbol"`
	Date        date.Date `json:"date"`
	Numerator   int64     `json:"numerator"`
	Denominator int64     `json:"denominator"`
}

// Splits is the table of known splits, by symbol. It expresses historical
// stock transactions in current share count.
type Splits struct {
	loc      *time.Location
	bySymbol map[string][]Split
}

// NewSplits returns a table of splits whose trading days are read in loc.
func NewSplits(loc *time.Location, splits ...Split) *Splits {
	s := &Splits{loc: loc, bySymbol: make(map[string][]Split)}
	for _, sp := range splits {
		s.Add(sp)
	}
	return s
}

// Add registers a split.
func (s *Splits) Add(sp Split) {
	sym := strings.ToUpper(strings.TrimSpace(sp.Symbol))
	s.bySymbol[sym] = append(s.bySymbol[sym], sp)
}

// ratio returns the product of the ratios of every split of symbol
// effective strictly after day, as an exact rational.
func (s *Splits) ratio(symbol string, day date.Date) (*big.Rat, error) {
	r := big.NewRat(1, 1)
	if s == nil {
		return r, nil
	}
	for _, sp := range s.bySymbol[strings.ToUpper(symbol)] {
		if !sp.Date.After(day) {
			continue
		}
		if sp.Numerator <= 0 || sp.Denominator <= 0 {
			return big.NewRat(1, 1), fmt.Errorf("%w: %s %d/%d on %s", ErrInvalidSplit, sp.Symbol, sp.Numerator, sp.Denominator, sp.Date)
		}
		r.Mul(r, big.NewRat(sp.Numerator, sp.Denominator))
	}
	if r.Sign() <= 0 {
		return big.NewRat(1, 1), fmt.Errorf("%w: %s cumulative factor %s", ErrInvalidSplit, symbol, r.RatString())
	}
	return r, nil
}

// Factor returns the cumulative multiplier to apply to a quantity of symbol
// traded at timestamp (epoch milliseconds) to express it in current shares.
// Unknown symbols have a factor of 1. An invalid ratio yields 1 and an error
// describing it.
func (s *Splits) Factor(symbol string, timestamp int64) (Quantity, error) {
	r, err := s.ratio(symbol, date.FromMillis(timestamp, s.location()))
	return Q(ratDecimal(r.Num())).Div(Q(ratDecimal(r.Denom()))), err
}

// Normalize returns tx expressed in current share count: quantity times the
// factor, price divided by it. The notional is carried along unchanged so
// that lots opened by tx keep an exact cost when the price does not divide.
// Options pass through, a split adjusts their multiplier instead.
// When the split table is invalid for the symbol, tx is returned unchanged
// along with the error.
func (s *Splits) Normalize(tx Transaction) (Transaction, error) {
	if tx.AssetClass != Stock {
		return tx, nil
	}
	r, err := s.ratio(tx.Key().Root(), tx.Day(s.location()))
	if err != nil {
		return tx, err
	}
	if r.Cmp(big.NewRat(1, 1)) == 0 {
		return tx, nil
	}
	num, den := Q(ratDecimal(r.Num())), Q(ratDecimal(r.Denom()))
	tx.notional = tx.Notional()
	tx.Quantity = tx.Quantity.Mul(num).Div(den)
	tx.Price = tx.Price.Mul(den).Div(num)
	return tx, nil
}

func (s *Splits) location() *time.Location {
	if s == nil || s.loc == nil {
		return time.UTC
	}
	return s.loc
}

func ratDecimal(i *big.Int) decimal.Decimal { return decimal.NewFromBigInt(i, 0) }
