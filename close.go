package pnl

import (
	"context"
	"fmt"

	"github.com/etnz/pnl/date"
)

// CloseStatus is the state of an official close record.
type CloseStatus string

const (
	CloseOK      CloseStatus = "ok"
	CloseError   CloseStatus = "error"   // the provider failed, a backfill may fix it
	CloseMissing CloseStatus = "missing" // no record yet
)

// Close is the official end-of-day close of a symbol. Revision increases
// every time the record is rewritten.
type Close struct {
	Status   CloseStatus `json:"status"`
	Price    Money       `json:"close"`
	Revision int64       `json:"revision"`
}

// CloseRepository looks up official closes. A repository without a record
// for (day, symbol) returns a Close with status CloseMissing and no error;
// errors are reserved to failures of the repository itself.
type CloseRepository interface {
	Close(ctx context.Context, day date.Date, symbol string) (Close, error)
}

type closeKey struct {
	day    date.Date
	symbol string
}

// Closes is the read-only set of official closes a computation works with.
// It is filled before the computation starts and never changes during it.
type Closes struct {
	records map[closeKey]Close
}

// NewCloses returns an empty set.
func NewCloses() *Closes { return &Closes{records: make(map[closeKey]Close)} }

// Set records the close of symbol on day. It is meant for the loading phase.
func (c *Closes) Set(day date.Date, symbol string, cl Close) {
	c.records[closeKey{day, symbol}] = cl
}

// Get returns the record of symbol on day, with status CloseMissing when
// there is none.
func (c *Closes) Get(day date.Date, symbol string) Close {
	if c == nil {
		return Close{Status: CloseMissing}
	}
	if cl, ok := c.records[closeKey{day, symbol}]; ok {
		return cl
	}
	return Close{Status: CloseMissing}
}

// Price returns the close of symbol on day when its status is ok.
func (c *Closes) Price(day date.Date, symbol string) (Money, bool) {
	cl := c.Get(day, symbol)
	if cl.Status != CloseOK {
		return Money{}, false
	}
	return cl.Price, true
}

// Len returns the number of records.
func (c *Closes) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

func (cl Close) String() string {
	if cl.Status == CloseOK {
		return fmt.Sprintf("%v (rev %d)", cl.Price, cl.Revision)
	}
	return fmt.Sprintf("%s (rev %d)", cl.Status, cl.Revision)
}
