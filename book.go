package pnl

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Metrics are the cumulative figures of a book since the first transaction
// of the account.
type Metrics struct {
	RealizedLifetime Money `json:"realizedPnlLifetime"`
	WinCount         int   `json:"winCount"`
	LossCount        int   `json:"lossCount"`
}

func (m *Metrics) record(r Realized) {
	m.RealizedLifetime = m.RealizedLifetime.Add(r.PnL)
	switch {
	case r.PnL.IsPositive():
		m.WinCount++
	case r.PnL.IsNegative():
		m.LossCount++
	}
}

// Book is the lot ledger of an account: one FIFO Position per PositionKey.
//
// A Book belongs to a single computation, it is not safe for concurrent use.
// Hand-offs between computations go through Clone or Snapshot.
type Book struct {
	loc       *time.Location
	positions map[PositionKey]*Position
	trail     []Realized // realized records since the book was created
	metrics   Metrics
	currency  string // of the first priced transaction, empty until then
}

// NewBook returns an empty book. Trading days are read in loc.
func NewBook(loc *time.Location) *Book {
	if loc == nil {
		loc = time.UTC
	}
	return &Book{loc: loc, positions: make(map[PositionKey]*Position)}
}

// Location returns the exchange location of the book.
func (b *Book) Location() *time.Location { return b.loc }

// Apply adds one normalized transaction to its position and returns the
// realized records it produced. An error leaves the book unchanged.
func (b *Book) Apply(tx Transaction) ([]Realized, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if c := tx.Price.Currency(); c != "" && b.currency != "" && c != b.currency {
		return nil, fmt.Errorf("%w: priced in %s, the book is in %s", ErrCurrencyMismatch, c, b.currency)
	}
	key := tx.Key()
	p, ok := b.positions[key]
	if !ok {
		p = newPosition(key)
	}
	events, err := p.apply(tx, b.loc)
	if err != nil {
		return nil, err
	}
	b.positions[key] = p
	if b.currency == "" {
		b.currency = tx.Price.Currency()
	}
	for _, e := range events {
		b.metrics.record(e)
	}
	b.trail = append(b.trail, events...)
	return events, nil
}

// Replay applies txs in chronological order. Transactions that cannot enter
// the ledger are skipped and reported as warnings.
func (b *Book) Replay(txs []Transaction) []Warning {
	sorted := slices.Clone(txs)
	SortTransactions(sorted)
	var warnings []Warning
	for _, tx := range sorted {
		if _, err := b.Apply(tx); err != nil {
			warnings = append(warnings, Warning{TxID: tx.ID, Reason: err})
		}
	}
	return warnings
}

// Quantity returns the net open quantity of key.
func (b *Book) Quantity(key PositionKey) Quantity {
	if p, ok := b.positions[key]; ok {
		return p.Quantity()
	}
	return Quantity{}
}

// Lots returns a copy of the open lots of key, oldest first.
func (b *Book) Lots(key PositionKey) []Lot {
	if p, ok := b.positions[key]; ok {
		return p.Lots()
	}
	return nil
}

// Keys returns every key the book has seen, sorted.
func (b *Book) Keys() []PositionKey {
	return slices.SortedFunc(maps.Keys(b.positions), PositionKey.Compare)
}

// Open returns the keys with a nonzero position, sorted.
func (b *Book) Open() []PositionKey {
	var open []PositionKey
	for _, k := range b.Keys() {
		if !b.Quantity(k).IsZero() {
			open = append(open, k)
		}
	}
	return open
}

// Trail returns the realized records produced since the book was created.
func (b *Book) Trail() []Realized { return slices.Clone(b.trail) }

// Metrics returns the cumulative metrics of the book.
func (b *Book) Metrics() Metrics { return b.metrics }

// Unrealized marks the open lots of key at price.
func (b *Book) Unrealized(key PositionKey, price Money) Money {
	var total Money
	for _, lot := range b.Lots(key) {
		total = total.Add(price.Mul(lot.Quantity).Sub(lot.cost()).Mul(lot.Multiplier))
	}
	return total
}

// Check verifies, for every position, that the lots sum to the net of all
// the quantities applied to it. A failure is a defect of the engine.
func (b *Book) Check() error {
	for _, k := range b.Keys() {
		if err := b.positions[k].check(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the book, sharing no lot queue with b.
func (b *Book) Clone() *Book {
	c := &Book{
		loc:       b.loc,
		positions: make(map[PositionKey]*Position, len(b.positions)),
		trail:     slices.Clone(b.trail),
		metrics:   b.metrics,
		currency:  b.currency,
	}
	for k, p := range b.positions {
		c.positions[k] = p.clone()
	}
	return c
}

// Inventory returns a deep copy of the open lot queues.
func (b *Book) Inventory() map[PositionKey][]Lot {
	inv := make(map[PositionKey][]Lot)
	for _, k := range b.Open() {
		inv[k] = b.Lots(k)
	}
	return inv
}

// restoreBook builds a book from a persisted inventory. The trail starts
// empty: the records behind the metrics are not part of a snapshot.
func restoreBook(loc *time.Location, inventory map[PositionKey][]Lot, m Metrics) *Book {
	b := NewBook(loc)
	b.metrics = m
	for k, ls := range inventory {
		p := newPosition(k)
		p.lots = lots(ls).clone()
		p.net = p.lots.sum()
		b.positions[k] = p
	}
	return b
}
