package pnl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/pnl/date"
	"github.com/etnz/pnl/metrics"
	"golang.org/x/sync/errgroup"
)

// Engine answers ledger and PnL calendar queries for accounts. It is safe for
// concurrent use; every query works on its own book.
type Engine struct {
	txs         TransactionSource
	closes      CloseRepository
	checkpoints *Checkpoints
	splits      *Splits
	sessions    date.Calendar
	loc         *time.Location
	lag         int
	concurrency int
	logger      *Logger
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSplits sets the split table used to normalize stock transactions.
func WithSplits(s *Splits) Option { return func(e *Engine) { e.splits = s } }

// WithSessions sets the exchange trading calendar.
func WithSessions(c date.Calendar) Option { return func(e *Engine) { e.sessions = c } }

// WithLocation sets the exchange time zone in which trading days are read.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

// WithSnapshotLag sets how many trading days in the past a day must be
// before its state is persisted.
func WithSnapshotLag(n int) Option { return func(e *Engine) { e.lag = n } }

// WithFetchConcurrency bounds the number of concurrent close lookups.
func WithFetchConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

func WithLogger(l *Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// DefaultSnapshotLag is the number of trading days after which a day is
// considered settled enough to be persisted.
const DefaultSnapshotLag = 5

// NewEngine returns an engine reading transactions from txs and closes from
// closes. snaps may be nil, every query then replays from the first
// transaction.
func NewEngine(txs TransactionSource, closes CloseRepository, snaps SnapshotStore, opts ...Option) *Engine {
	e := &Engine{
		txs:         txs,
		closes:      closes,
		loc:         time.UTC,
		lag:         DefaultSnapshotLag,
		concurrency: 8,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.orSilent()
	if e.splits == nil {
		e.splits = NewSplits(e.loc)
	}
	e.checkpoints = &Checkpoints{
		Store:        snaps,
		Transactions: txs,
		Closes:       closes,
		Location:     e.loc,
		Logger:       e.logger,
	}
	return e
}

// Report is the PnL calendar of an account over a range of days.
type Report struct {
	Account  string        `json:"account"`
	Range    date.Range    `json:"-"`
	Days     []DailyResult `json:"days"`
	Warnings []Warning     `json:"-"`
}

// Calendar computes one DailyResult per trading day of r.
//
// The computation resumes from the newest valid snapshot before the range,
// replays the transactions since then and evaluates each day against the
// official closes. A day old enough and complete is persisted as a new
// snapshot.
func (e *Engine) Calendar(ctx context.Context, account string, r date.Range) (*Report, error) {
	started := time.Now()
	defer func() { metrics.ComputeDuration.Observe(time.Since(started).Seconds()) }()

	report := &Report{Account: account, Range: r}
	days := e.sessions.TradingDays(r)
	if len(days) == 0 {
		return report, nil
	}
	first, last := days[0], days[len(days)-1]

	loadedRevision, err := e.txs.Revision(ctx, account, last.End(e.loc))
	if err != nil {
		return nil, fmt.Errorf("reading transaction revision of %s: %w", account, err)
	}
	book, resumed, err := e.checkpoints.Resume(ctx, account, first)
	if err != nil {
		return nil, err
	}
	txs, warnings, err := e.load(ctx, account, resumed, last)
	if err != nil {
		return nil, err
	}
	report.Warnings = warnings

	dates := append([]date.Date{e.sessions.Previous(first)}, days...)
	closes, err := e.fetchCloses(ctx, symbolsOf(book, txs), dates)
	if err != nil {
		return nil, err
	}

	cutoff := e.sessions.Shift(date.Of(e.now().In(e.loc)), -e.lag)
	var (
		commitDay  date.Date
		commitBook *Book
	)
	agg := Aggregator{Sessions: e.sessions, Logger: e.logger}
	results, excluded, err := agg.Run(book, txs, closes, days, func(res DailyResult, b *Book) {
		if res.Status == StatusOK && !res.Date.After(cutoff) {
			commitDay, commitBook = res.Date, b.Clone()
		}
	})
	report.Warnings = append(report.Warnings, excluded...)
	if err != nil {
		return nil, err
	}
	report.Days = results

	if commitBook != nil {
		if err := e.checkpoints.Commit(ctx, account, commitDay, commitBook, loadedRevision, closes); err != nil {
			e.logger.Warn().Str("account", account).Stringer("day", commitDay).Err(err).Msg("snapshot not written")
		}
	}
	e.logger.Info().Str("account", account).Stringer("range", r).Int("days", len(results)).Int("warnings", len(report.Warnings)).Msg("calendar computed")
	return report, nil
}

// Holding is the open position of one key at the end of a day.
type Holding struct {
	Key        PositionKey `json:"key"`
	Quantity   Quantity    `json:"quantity"`
	Lots       []Lot       `json:"lots"`
	Close      Close       `json:"close"`
	Unrealized Money       `json:"unrealizedPnl"` // zero unless Close is ok
}

// Holdings is the inventory of an account at the end of a day.
type Holdings struct {
	Account   string    `json:"account"`
	Date      date.Date `json:"date"`
	Positions []Holding `json:"positions"`
	Warnings  []Warning `json:"-"`
}

// Holdings returns the open lots of account at the end of day, marked at the
// official close of that day when available.
func (e *Engine) Holdings(ctx context.Context, account string, day date.Date) (*Holdings, error) {
	book, resumed, err := e.checkpoints.Resume(ctx, account, day.Add(1))
	if err != nil {
		return nil, err
	}
	txs, warnings, err := e.load(ctx, account, resumed, day)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, e.replay(book, txs)...)
	if err := book.Check(); err != nil {
		e.logger.Error().Str("account", account).Err(err).Msg("ledger invariant violated")
		return nil, err
	}

	open := book.Open()
	syms := make([]string, 0, len(open))
	for _, k := range open {
		syms = append(syms, k.Symbol())
	}
	closes, err := e.fetchCloses(ctx, syms, []date.Date{day})
	if err != nil {
		return nil, err
	}

	h := &Holdings{Account: account, Date: day, Warnings: warnings}
	for _, k := range open {
		cl := closes.Get(day, k.Symbol())
		pos := Holding{Key: k, Quantity: book.Quantity(k), Lots: book.Lots(k), Close: cl}
		if cl.Status == CloseOK {
			pos.Unrealized = book.Unrealized(k, cl.Price)
		}
		h.Positions = append(h.Positions, pos)
	}
	return h, nil
}

// RealizedTrail returns the realized records of account whose closing
// transaction falls within r, in chronological order.
func (e *Engine) RealizedTrail(ctx context.Context, account string, r date.Range) ([]Realized, []Warning, error) {
	book, resumed, err := e.checkpoints.Resume(ctx, account, r.From)
	if err != nil {
		return nil, nil, err
	}
	txs, warnings, err := e.load(ctx, account, resumed, r.To)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, e.replay(book, txs)...)
	if err := book.Check(); err != nil {
		e.logger.Error().Str("account", account).Err(err).Msg("ledger invariant violated")
		return nil, warnings, err
	}
	var trail []Realized
	for _, rec := range book.Trail() {
		if r.Contains(rec.CloseDate) {
			trail = append(trail, rec)
		}
	}
	return trail, warnings, nil
}

// load reads the transactions of account after the end of 'after' (from the
// start when zero) through the end of 'through', and normalizes them.
func (e *Engine) load(ctx context.Context, account string, after, through date.Date) ([]Transaction, []Warning, error) {
	var from time.Time
	if !after.IsZero() {
		from = after.End(e.loc)
	}
	raw, err := e.txs.Transactions(ctx, account, from, through.End(e.loc))
	if err != nil {
		return nil, nil, fmt.Errorf("reading transactions of %s: %w", account, err)
	}
	txs := make([]Transaction, 0, len(raw))
	var warnings []Warning
	for _, tx := range raw {
		n, err := e.splits.Normalize(tx)
		if err != nil {
			// the transaction is kept at a factor of 1
			warnings = append(warnings, Warning{TxID: tx.ID, Reason: err})
			e.logger.Warn().Str("tx", tx.ID).Str("symbol", tx.Symbol).Err(err).Msg("split table ignored")
		}
		txs = append(txs, n)
	}
	return txs, warnings, nil
}

// replay applies txs to book and logs the excluded ones.
func (e *Engine) replay(book *Book, txs []Transaction) []Warning {
	warnings := book.Replay(txs)
	metrics.ReplayedTransactions.Add(float64(len(txs) - len(warnings)))
	for _, w := range warnings {
		metrics.ExcludedTransactions.WithLabelValues(reason(w.Reason)).Inc()
		e.logger.Warn().Str("tx", w.TxID).Err(w.Reason).Msg("transaction excluded")
	}
	return warnings
}

// fetchCloses loads the closes of symbols on every date, one batch per
// date, with bounded concurrency. Every lookup completes before it returns.
func (e *Engine) fetchCloses(ctx context.Context, symbols []string, dates []date.Date) (*Closes, error) {
	closes := NewCloses()
	if len(symbols) == 0 {
		return closes, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.concurrency, 1))
	for _, day := range dates {
		g.Go(func() error {
			batch := make(map[string]Close, len(symbols))
			for _, sym := range symbols {
				cl, err := e.closes.Close(gctx, day, sym)
				if err != nil {
					return fmt.Errorf("reading close of %s on %s: %w", sym, day, err)
				}
				batch[sym] = cl
			}
			mu.Lock()
			defer mu.Unlock()
			for sym, cl := range batch {
				closes.Set(day, sym, cl)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return closes, nil
}

// symbolsOf returns the close symbols a computation may need: those of the
// open positions of book and of every key traded in txs.
func symbolsOf(book *Book, txs []Transaction) []string {
	set := make(map[string]struct{})
	for _, k := range book.Open() {
		set[k.Symbol()] = struct{}{}
	}
	for _, tx := range txs {
		set[tx.Key().Symbol()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// RequiredCloses lists, for every trading day of r and the session before
// it, the closes a calendar computation of account may read, with a nil
// price for those the repository has no ok record of.
func (e *Engine) RequiredCloses(ctx context.Context, account string, r date.Range) ([]DailyCloses, error) {
	days := e.sessions.TradingDays(r)
	if len(days) == 0 {
		return nil, nil
	}
	first, last := days[0], days[len(days)-1]
	book, resumed, err := e.checkpoints.Resume(ctx, account, first)
	if err != nil {
		return nil, err
	}
	txs, _, err := e.load(ctx, account, resumed, last)
	if err != nil {
		return nil, err
	}
	symbols := symbolsOf(book, txs)
	dates := append([]date.Date{e.sessions.Previous(first)}, days...)
	closes, err := e.fetchCloses(ctx, symbols, dates)
	if err != nil {
		return nil, err
	}
	out := make([]DailyCloses, 0, len(dates))
	for _, day := range dates {
		dc := DailyCloses{Date: day, Prices: make(map[string]*Money, len(symbols))}
		for _, sym := range symbols {
			if p, ok := closes.Price(day, sym); ok {
				dc.Prices[sym] = &p
			} else {
				dc.Prices[sym] = nil
			}
		}
		out = append(out, dc)
	}
	return out, nil
}
