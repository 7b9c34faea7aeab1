package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// write is one entry of an account's write log: the revision it got and the
// execution time of the transaction it touched.
type write struct {
	revision  int64
	timestamp int64
}

type closeKey struct {
	day    date.Date
	symbol string
}

// Memory keeps everything in memory. It serves tests and the command line
// when no database is configured. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	revision  int64
	txs       map[string]map[string]pnl.Transaction
	writes    map[string][]write
	closes    map[closeKey]pnl.Close
	snapshots map[string]map[date.Date][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		txs:       make(map[string]map[string]pnl.Transaction),
		writes:    make(map[string][]write),
		closes:    make(map[closeKey]pnl.Close),
		snapshots: make(map[string]map[date.Date][]byte),
	}
}

// record logs a write touching a transaction executed at ts. Callers hold mu.
func (m *Memory) record(account string, ts ...int64) {
	m.revision++
	for _, t := range ts {
		m.writes[account] = append(m.writes[account], write{revision: m.revision, timestamp: t})
	}
}

// Append adds new transactions to account. Ids must not be taken.
func (m *Memory) Append(_ context.Context, account string, txs ...pnl.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.txs[account]
	if !ok {
		book = make(map[string]pnl.Transaction)
		m.txs[account] = book
	}
	for _, tx := range txs {
		if _, ok := book[tx.ID]; ok {
			return fmt.Errorf("%w: %s", pnl.ErrDuplicate, tx.ID)
		}
	}
	for _, tx := range txs {
		book[tx.ID] = tx
		m.record(account, tx.Timestamp)
	}
	return nil
}

// Update replaces the transaction of the same id. The write touches both
// the old and the new execution time.
func (m *Memory) Update(_ context.Context, account string, tx pnl.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.txs[account][tx.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, pnl.ErrNotFound)
	}
	m.txs[account][tx.ID] = tx
	m.record(account, old.Timestamp, tx.Timestamp)
	return nil
}

// Delete removes a transaction.
func (m *Memory) Delete(_ context.Context, account, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.txs[account][id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, pnl.ErrNotFound)
	}
	delete(m.txs[account], id)
	m.record(account, old.Timestamp)
	return nil
}

func (m *Memory) Transactions(_ context.Context, account string, after, through time.Time) ([]pnl.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txs []pnl.Transaction
	for _, tx := range m.txs[account] {
		if !after.IsZero() && tx.Timestamp <= after.UnixMilli() {
			continue
		}
		if tx.Timestamp > through.UnixMilli() {
			continue
		}
		txs = append(txs, tx)
	}
	pnl.SortTransactions(txs)
	return txs, nil
}

func (m *Memory) Revision(_ context.Context, account string, through time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rev int64
	for _, w := range m.writes[account] {
		if w.timestamp <= through.UnixMilli() {
			rev = max(rev, w.revision)
		}
	}
	return rev, nil
}

// SetClose records the close of symbol on day. Writing the same close again
// keeps its revision.
func (m *Memory) SetClose(_ context.Context, day date.Date, symbol string, price *pnl.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := closeKey{day, symbol}
	prev, exists := m.closes[k]
	cl := pnl.Close{Status: closeStatus(price), Revision: prev.Revision + 1}
	if price != nil {
		cl.Price = *price
	}
	if exists && prev.Status == cl.Status && prev.Price.Equal(cl.Price) {
		return nil
	}
	m.closes[k] = cl
	return nil
}

func (m *Memory) Close(_ context.Context, day date.Date, symbol string) (pnl.Close, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cl, ok := m.closes[closeKey{day, symbol}]; ok {
		return cl, nil
	}
	return pnl.Close{Status: pnl.CloseMissing}, nil
}

// Get returns a copy of the snapshot of account on day.
func (m *Memory) Get(_ context.Context, account string, day date.Date) (*pnl.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.snapshots[account][day]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeSnapshot(data)
}

func (m *Memory) Put(_ context.Context, account string, s *pnl.Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[account] == nil {
		m.snapshots[account] = make(map[date.Date][]byte)
	}
	m.snapshots[account][s.Date] = data
	return nil
}

func (m *Memory) Dates(_ context.Context, account string) ([]date.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(m.snapshots[account]), date.Date.Compare), nil
}

var (
	_ pnl.TransactionSource = (*Memory)(nil)
	_ pnl.CloseRepository   = (*Memory)(nil)
	_ pnl.SnapshotStore     = (*Memory)(nil)
	_ TransactionWriter     = (*Memory)(nil)
	_ CloseWriter           = (*Memory)(nil)
)
