package pnl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/etnz/pnl/date"
	"github.com/etnz/pnl/metrics"
)

// Snapshot is the persisted end-of-day state of an account's book.
//
// A snapshot is never patched: when its fingerprint no longer matches the
// inputs it was computed from, it is ignored and eventually replaced.
type Snapshot struct {
	Date        date.Date             `json:"date"`
	Inventory   map[PositionKey][]Lot `json:"inventory"`
	Metrics     Metrics               `json:"metrics"`
	Fingerprint string                `json:"fingerprint"`
}

// NewSnapshot captures the state of book at the end of day. The inventory is
// a deep copy.
func NewSnapshot(day date.Date, book *Book, fingerprint string) *Snapshot {
	return &Snapshot{
		Date:        day,
		Inventory:   book.Inventory(),
		Metrics:     book.Metrics(),
		Fingerprint: fingerprint,
	}
}

// Book returns a new book holding the snapshot's state. The book shares no
// lot queue with the snapshot.
func (s *Snapshot) Book(loc *time.Location) *Book {
	return restoreBook(loc, s.Inventory, s.Metrics)
}

// Symbols returns the close symbols of the inventory, sorted.
func (s *Snapshot) Symbols() []string {
	return inventorySymbols(s.Inventory)
}

func inventorySymbols(inv map[PositionKey][]Lot) []string {
	set := make(map[string]struct{}, len(inv))
	for k := range inv {
		set[k.Symbol()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Fingerprint hashes the revisions of every input a snapshot depends on: the
// account's transaction revision through the snapshot day, and the close
// revision of each inventory symbol on that day.
func Fingerprint(txRevision int64, closeRevisions map[string]int64) string {
	h := xxhash.New()
	h.WriteString("tx:")
	h.WriteString(strconv.FormatInt(txRevision, 10))
	h.WriteString("\n")
	for _, sym := range slices.Sorted(maps.Keys(closeRevisions)) {
		h.WriteString(sym)
		h.WriteString(":")
		h.WriteString(strconv.FormatInt(closeRevisions[sym], 10))
		h.WriteString("\n")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// SnapshotStore persists snapshots by (account, date).
type SnapshotStore interface {
	// Get returns the snapshot of account on day, or nil when there is none.
	Get(ctx context.Context, account string, day date.Date) (*Snapshot, error)
	// Put stores s, replacing any snapshot of the same account and date.
	Put(ctx context.Context, account string, s *Snapshot) error
	// Dates lists the dates holding a snapshot for account, in any order.
	Dates(ctx context.Context, account string) ([]date.Date, error)
}

// Checkpoints resumes computations from the newest valid snapshot and
// writes new ones after successful runs.
type Checkpoints struct {
	Store        SnapshotStore
	Transactions TransactionSource
	Closes       CloseRepository
	Location     *time.Location
	Logger       *Logger
}

// Resume returns a book holding the end-of-day state of the newest valid
// snapshot strictly before 'before', and that snapshot's date. When no
// snapshot is usable it returns an empty book and a zero date.
func (c *Checkpoints) Resume(ctx context.Context, account string, before date.Date) (*Book, date.Date, error) {
	log := c.Logger.orSilent()
	if c.Store == nil {
		metrics.SnapshotResumes.WithLabelValues("miss").Inc()
		return NewBook(c.Location), date.Date{}, nil
	}
	dates, err := c.Store.Dates(ctx, account)
	if err != nil {
		return nil, date.Date{}, fmt.Errorf("listing snapshots of %s: %w", account, err)
	}
	dates = slices.DeleteFunc(dates, func(d date.Date) bool { return !d.Before(before) })
	slices.SortFunc(dates, func(a, b date.Date) int { return b.Compare(a) })

	for _, day := range dates {
		snap, err := c.Store.Get(ctx, account, day)
		if err != nil {
			return nil, date.Date{}, fmt.Errorf("reading snapshot %s of %s: %w", day, account, err)
		}
		if snap == nil {
			continue
		}
		current, err := c.fingerprint(ctx, account, day, snap.Symbols())
		if err != nil {
			return nil, date.Date{}, err
		}
		if current != snap.Fingerprint {
			metrics.StaleSnapshots.Inc()
			log.Debug().Str("account", account).Stringer("day", day).Str("stored", snap.Fingerprint).Str("current", current).Msg("stale snapshot skipped")
			continue
		}
		metrics.SnapshotResumes.WithLabelValues("hit").Inc()
		log.Debug().Str("account", account).Stringer("day", day).Msg("resuming from snapshot")
		return snap.Book(c.Location), day, nil
	}
	metrics.SnapshotResumes.WithLabelValues("miss").Inc()
	return NewBook(c.Location), date.Date{}, nil
}

// fingerprint reads the current revisions of the inputs of a snapshot of
// account on day holding symbols.
func (c *Checkpoints) fingerprint(ctx context.Context, account string, day date.Date, symbols []string) (string, error) {
	rev, err := c.Transactions.Revision(ctx, account, day.End(c.location()))
	if err != nil {
		return "", fmt.Errorf("reading transaction revision of %s: %w", account, err)
	}
	revs := make(map[string]int64, len(symbols))
	for _, sym := range symbols {
		cl, err := c.Closes.Close(ctx, day, sym)
		if err != nil {
			return "", fmt.Errorf("reading close of %s on %s: %w", sym, day, err)
		}
		revs[sym] = cl.Revision
	}
	return Fingerprint(rev, revs), nil
}

// Commit persists the end-of-day state of book on day.
//
// loadedRevision is the account's transaction revision read before the
// transactions were loaded, and closes the records the computation used.
// When a transaction dated on or before day was written since, the book may
// not match the stored transactions and nothing is written.
func (c *Checkpoints) Commit(ctx context.Context, account string, day date.Date, book *Book, loadedRevision int64, closes *Closes) error {
	if c.Store == nil {
		return nil
	}
	log := c.Logger.orSilent()
	rev, err := c.Transactions.Revision(ctx, account, day.End(c.location()))
	if err != nil {
		return fmt.Errorf("reading transaction revision of %s: %w", account, err)
	}
	if rev > loadedRevision {
		log.Debug().Str("account", account).Stringer("day", day).Int64("loaded", loadedRevision).Int64("current", rev).Msg("transactions changed during computation, snapshot not written")
		return nil
	}
	inv := book.Inventory()
	revs := make(map[string]int64, len(inv))
	for _, sym := range inventorySymbols(inv) {
		revs[sym] = closes.Get(day, sym).Revision
	}
	snap := &Snapshot{Date: day, Inventory: inv, Metrics: book.Metrics(), Fingerprint: Fingerprint(rev, revs)}
	if err := c.Store.Put(ctx, account, snap); err != nil {
		return fmt.Errorf("writing snapshot %s of %s: %w", day, account, err)
	}
	metrics.SnapshotWrites.Inc()
	log.Debug().Str("account", account).Stringer("day", day).Str("fingerprint", snap.Fingerprint).Msg("snapshot written")
	return nil
}

func (c *Checkpoints) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
