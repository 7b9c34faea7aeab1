package pnl

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/etnz/pnl/date"
	"github.com/etnz/pnl/metrics"
)

// Status tells whether a day's figures could be computed.
type Status string

const (
	StatusOK               Status = "ok"
	StatusMissingData      Status = "missing_data"       // an end-of-day close is missing
	StatusMissingPrevClose Status = "missing_prev_close" // only previous closes are missing
)

// DayPnL are the figures of a complete trading day.
type DayPnL struct {
	Legacy              Money `json:"legacyPnl"`
	New                 Money `json:"newPnl"`
	Carry               Money `json:"carryPnl"`
	Realized            Money `json:"realizedPnl"`
	Unrealized          Money `json:"unrealizedPnl"`
	TotalRealizedToDate Money `json:"totalRealizedToDate"`
}

// DailyResult is one entry of the PnL calendar. PnL is nil unless Status is
// StatusOK: an incomplete day carries no figure at all.
type DailyResult struct {
	Date           date.Date `json:"date"`
	Status         Status    `json:"status"`
	MissingSymbols []string  `json:"missingSymbols,omitempty"`
	PnL            *DayPnL   `json:"pnl,omitempty"`
}

// MarshalJSON writes the fields in a fixed order.
func (r DailyResult) MarshalJSON() ([]byte, error) {
	var o orderedObject
	o.Field("date", r.Date).Field("status", r.Status).FieldIf("missingSymbols", r.MissingSymbols)
	if r.PnL != nil {
		o.Inline(r.PnL)
	}
	return o.MarshalJSON()
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (r *DailyResult) UnmarshalJSON(data []byte) error {
	var flat struct {
		Date           date.Date `json:"date"`
		Status         Status    `json:"status"`
		MissingSymbols []string  `json:"missingSymbols"`
		DayPnL
	}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*r = DailyResult{Date: flat.Date, Status: flat.Status, MissingSymbols: flat.MissingSymbols}
	if flat.Status == StatusOK {
		pnl := flat.DayPnL
		r.PnL = &pnl
	}
	return nil
}

// Aggregator walks a book through trading days and produces one
// DailyResult per day.
type Aggregator struct {
	Sessions date.Calendar
	Logger   *Logger
}

// Run advances book through days, ascending, using closes as the only source
// of prices.
//
// txs are the normalized transactions not yet in the book, in any order.
// Transactions dated before a day's previous session are applied without
// being attributed to any requested day. Transactions dated after the last
// day are ignored.
//
// onDayEnd, when not nil, is called after each day with the result and the
// book as of the end of that day. The book must not be retained.
//
// The ledger advances every day whatever the status. Transactions that
// cannot enter the ledger are returned as warnings; a broken ledger
// invariant aborts the run with ErrInvariant.
func (a *Aggregator) Run(book *Book, txs []Transaction, closes *Closes, days []date.Date, onDayEnd func(DailyResult, *Book)) ([]DailyResult, []Warning, error) {
	log := a.Logger.orSilent()
	loc := book.Location()

	days = slices.Clone(days)
	slices.SortFunc(days, date.Date.Compare)
	days = slices.Compact(days)

	pending := slices.Clone(txs)
	SortTransactions(pending)

	var (
		results  []DailyResult
		warnings []Warning
	)
	apply := func(tx Transaction) ([]Realized, bool) {
		events, err := book.Apply(tx)
		if err != nil {
			warnings = append(warnings, Warning{TxID: tx.ID, Reason: err})
			metrics.ExcludedTransactions.WithLabelValues(reason(err)).Inc()
			log.Warn().Str("tx", tx.ID).Str("symbol", tx.Symbol).Err(err).Msg("transaction excluded")
			return nil, false
		}
		metrics.ReplayedTransactions.Inc()
		return events, true
	}

	for _, day := range days {
		prev := a.Sessions.Previous(day)

		// history up to the previous session is not part of the day
		for len(pending) > 0 && !pending[0].Day(loc).After(prev) {
			apply(pending[0])
			pending = pending[1:]
		}

		start := make(map[PositionKey][]Lot)
		for _, k := range book.Open() {
			start[k] = book.Lots(k)
		}

		traded := make(map[PositionKey][]Transaction)
		var realized Money
		for len(pending) > 0 && !pending[0].Day(loc).After(day) {
			tx := pending[0]
			pending = pending[1:]
			events, ok := apply(tx)
			if !ok {
				continue
			}
			for _, e := range events {
				realized = realized.Add(e.PnL)
			}
			traded[tx.Key()] = append(traded[tx.Key()], tx)
		}

		result := a.evaluate(book, closes, day, prev, start, traded, realized)
		metrics.Days.WithLabelValues(string(result.Status)).Inc()
		if result.Status != StatusOK {
			log.Debug().Stringer("day", result.Date).Str("status", string(result.Status)).Strs("missing", result.MissingSymbols).Msg("day incomplete")
		}

		if err := book.Check(); err != nil {
			log.Error().Stringer("day", day).Err(err).Msg("ledger invariant violated")
			return nil, warnings, fmt.Errorf("after %s: %w", day, err)
		}
		results = append(results, result)
		if onDayEnd != nil {
			onDayEnd(result, book)
		}
	}
	return results, warnings, nil
}

// evaluate computes the result of day once the book holds the end of day.
func (a *Aggregator) evaluate(book *Book, closes *Closes, day, prev date.Date, start map[PositionKey][]Lot, traded map[PositionKey][]Transaction, realized Money) DailyResult {
	end := book.Open()

	missingEnd := make(map[string]struct{})
	for _, k := range end {
		if _, ok := closes.Price(day, k.Symbol()); !ok {
			missingEnd[k.Symbol()] = struct{}{}
		}
	}
	missingPrev := make(map[string]struct{})
	for k := range start {
		if _, ok := closes.Price(prev, k.Symbol()); !ok {
			missingPrev[k.Symbol()] = struct{}{}
		}
	}

	result := DailyResult{Date: day, Status: StatusOK}
	switch {
	case len(missingEnd) > 0:
		result.Status = StatusMissingData
		maps.Copy(missingEnd, missingPrev)
		result.MissingSymbols = slices.Sorted(maps.Keys(missingEnd))
		return result
	case len(missingPrev) > 0:
		result.Status = StatusMissingPrevClose
		result.MissingSymbols = slices.Sorted(maps.Keys(missingPrev))
		return result
	}

	pnl := &DayPnL{Realized: realized, TotalRealizedToDate: book.Metrics().RealizedLifetime}
	keys := slices.Collect(maps.Keys(start))
	for k := range traded {
		if _, ok := start[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, PositionKey.Compare)
	for _, k := range keys {
		prevClose, ok := closes.Price(prev, k.Symbol())
		attr := Attribute(k, start[k], traded[k], prevClose, ok)
		pnl.Legacy = pnl.Legacy.Add(attr.Legacy)
		pnl.New = pnl.New.Add(attr.New)
		pnl.Carry = pnl.Carry.Add(attr.Carry)
	}
	for _, k := range end {
		price, _ := closes.Price(day, k.Symbol())
		pnl.Unrealized = pnl.Unrealized.Add(book.Unrealized(k, price))
	}
	result.PnL = pnl
	return result
}
