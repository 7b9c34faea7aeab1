// Package store implements the transaction, close and snapshot repositories
// of the PnL engine: in memory, PostgreSQL, SQLite and a Redis cache for
// snapshots.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// TransactionWriter appends transactions to an account. Every write gets a
// new revision.
type TransactionWriter interface {
	Append(ctx context.Context, account string, txs ...pnl.Transaction) error
}

// CloseWriter records official closes. A nil price records a failed close.
// A write that changes the record bumps its revision.
type CloseWriter interface {
	SetClose(ctx context.Context, day date.Date, symbol string, price *pnl.Money) error
}

// ImportCloses writes every close of days to w and returns the number of
// records written.
func ImportCloses(ctx context.Context, w CloseWriter, days []pnl.DailyCloses) (int, error) {
	n := 0
	for _, dc := range days {
		for sym, price := range dc.Prices {
			if err := w.SetClose(ctx, dc.Date, sym, price); err != nil {
				return n, fmt.Errorf("writing close of %s on %s: %w", sym, dc.Date, err)
			}
			n++
		}
	}
	return n, nil
}

// closeStatus returns the status a written close gets.
func closeStatus(price *pnl.Money) pnl.CloseStatus {
	if price == nil {
		return pnl.CloseError
	}
	return pnl.CloseOK
}

func encodeSnapshot(s *pnl.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot %s: %w", s.Date, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*pnl.Snapshot, error) {
	var s pnl.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
