package pnl

import (
	"fmt"
	"time"

	"github.com/etnz/pnl/date"
)

// Lot is the surviving slice of one opening transaction.
type Lot struct {
	Quantity   Quantity `json:"quantity"` // signed, same side as the position
	CostPrice  Money    `json:"costPrice"`
	Multiplier Quantity `json:"multiplier"`
	Opened     int64    `json:"openTimestamp"` // epoch milliseconds
	// Cost is the signed notional paid for Quantity, before the multiplier.
	// When zero, it is CostPrice times Quantity.
	Cost Money `json:"cost,omitzero"`
}

// cost returns the signed notional of the lot.
func (l Lot) cost() Money {
	if l.Cost.IsZero() {
		return l.CostPrice.Mul(l.Quantity)
	}
	return l.Cost
}

// take closes matched units of the lot, matched being on the opposite side,
// and returns the cost they carried. The last units take whatever cost is
// left, so a lot releases exactly its notional over its life.
func (l *Lot) take(matched Quantity) Money {
	c := l.cost()
	rest := l.Quantity.Add(matched)
	if rest.IsZero() {
		l.Quantity, l.Cost = rest, Money{}
		return c
	}
	part := share(c, l.Quantity, matched.Neg())
	l.Quantity, l.Cost = rest, c.Sub(part)
	return part
}

// share returns the part of amount, the notional of qty, that belongs to
// part units on the same side.
func share(amount Money, qty, part Quantity) Money {
	if part.Equal(qty) {
		return amount
	}
	return amount.Mul(part).Div(qty)
}

// realize is the PnL of closing units that cost cost with an offsetting
// trade of notional proceeds.
func realize(proceeds, cost Money, multiplier Quantity) Money {
	return proceeds.Add(cost).Neg().Mul(multiplier)
}

// Realized is the audit record of a closing transaction consuming (part of) a lot.
type Realized struct {
	Key        PositionKey `json:"key"`
	TxID       string      `json:"txId"`
	OpenDate   date.Date   `json:"openDate"`
	OpenPrice  Money       `json:"openPrice"`
	CloseDate  date.Date   `json:"closeDate"`
	ClosePrice Money       `json:"closePrice"`
	Quantity   Quantity    `json:"quantity"` // magnitude closed
	PnL        Money       `json:"pnl"`
}

// lots is a FIFO queue of lots all on the same side, oldest first.
type lots []Lot

// clone returns a deep copy, lots are values.
func (l lots) clone() lots {
	if len(l) == 0 {
		return nil
	}
	return append(lots(nil), l...)
}

// sum returns the net quantity of the queue.
func (l lots) sum() Quantity {
	var q Quantity
	for _, lot := range l {
		q = q.Add(lot.Quantity)
	}
	return q
}

// Position is the FIFO lot queue of a single PositionKey.
type Position struct {
	key  PositionKey
	lots lots
	net  Quantity // net of all signed quantities ever applied
}

func newPosition(key PositionKey) *Position { return &Position{key: key} }

// Key returns the key of the position.
func (p *Position) Key() PositionKey { return p.key }

// Quantity returns the net open quantity.
func (p *Position) Quantity() Quantity { return p.lots.sum() }

// Lots returns a copy of the open lots, oldest first.
func (p *Position) Lots() []Lot { return p.lots.clone() }

// apply matches tx against the queue and returns the realized records.
//
// Same side (or empty queue): the transaction opens a new lot.
// Opposite side: lots are consumed from the front; a remainder that outlasts
// the queue flips the position and becomes a lot on the other side.
func (p *Position) apply(tx Transaction, loc *time.Location) ([]Realized, error) {
	if len(p.lots) > 0 && !p.lots[0].Multiplier.Equal(tx.Multiplier) {
		return nil, fmt.Errorf("%w: %s trades with %v, open lots use %v", ErrMultiplierMismatch, p.key, tx.Multiplier, p.lots[0].Multiplier)
	}

	var events []Realized
	remaining, notional := tx.Quantity, tx.Notional()
	for !remaining.IsZero() && len(p.lots) > 0 && !p.lots[0].Quantity.SameSide(remaining) {
		front := &p.lots[0]
		matched := minAbs(remaining, front.Quantity).withSign(remaining)
		proceeds := share(notional, remaining, matched)
		multiplier := front.Multiplier
		events = append(events, Realized{
			Key:        p.key,
			TxID:       tx.ID,
			OpenDate:   date.FromMillis(front.Opened, loc),
			OpenPrice:  front.CostPrice,
			CloseDate:  tx.Day(loc),
			ClosePrice: tx.Price,
			Quantity:   matched.Abs(),
			PnL:        realize(proceeds, front.take(matched), multiplier),
		})
		remaining, notional = remaining.Sub(matched), notional.Sub(proceeds)
		if front.Quantity.IsZero() {
			p.lots = p.lots[1:]
		}
	}
	if !remaining.IsZero() {
		p.lots = append(p.lots, Lot{
			Quantity:   remaining,
			CostPrice:  tx.Price,
			Multiplier: tx.Multiplier,
			Opened:     tx.Timestamp,
			Cost:       notional,
		})
	}
	p.net = p.net.Add(tx.Quantity)
	return events, nil
}

// check verifies lot conservation and the single-side queue.
func (p *Position) check() error {
	for i, lot := range p.lots {
		if lot.Quantity.IsZero() {
			return fmt.Errorf("%w: %s lot %d is empty", ErrInvariant, p.key, i)
		}
		if i > 0 && !lot.Quantity.SameSide(p.lots[0].Quantity) {
			return fmt.Errorf("%w: %s holds lots on both sides", ErrInvariant, p.key)
		}
	}
	if sum := p.lots.sum(); !sum.Equal(p.net) {
		return fmt.Errorf("%w: %s lots sum to %v, net quantity is %v", ErrInvariant, p.key, sum, p.net)
	}
	return nil
}

func (p *Position) clone() *Position {
	c := *p
	c.lots = p.lots.clone()
	return &c
}
