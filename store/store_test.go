package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// transactionStore is what Memory and Postgres have in common.
type transactionStore interface {
	pnl.TransactionSource
	TransactionWriter
	Update(ctx context.Context, account string, tx pnl.Transaction) error
	Delete(ctx context.Context, account, id string) error
}

type closeStore interface {
	pnl.CloseRepository
	CloseWriter
}

func at(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 15, 0, 0, 0, time.UTC).UnixMilli()
}

func endOf(y int, m time.Month, d int) time.Time { return date.New(y, m, d).End(time.UTC) }

func trade(id string, qty, price float64, ts int64) pnl.Transaction {
	return pnl.Transaction{ID: id, Symbol: "AAPL", AssetClass: pnl.Stock, Quantity: pnl.Q(qty), Price: pnl.P(price), Multiplier: pnl.Q(1), Timestamp: ts}
}

func testTransactions(t *testing.T, s transactionStore, account string) {
	ctx := context.Background()

	rev, err := s.Revision(ctx, account, endOf(2024, 12, 31))
	require.NoError(t, err)
	assert.Zero(t, rev)

	require.NoError(t, s.Append(ctx, account,
		trade("t2", -5, 12, at(2024, 1, 3)),
		trade("t1", 10, 10, at(2024, 1, 2)),
		trade("t3", 5, 11, at(2024, 1, 10)),
	))
	assert.ErrorIs(t, s.Append(ctx, account, trade("t1", 1, 1, at(2024, 1, 2))), pnl.ErrDuplicate)

	txs, err := s.Transactions(ctx, account, time.Time{}, endOf(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
	assert.Equal(t, pnl.Stock, txs[1].AssetClass)
	assert.True(t, txs[1].Quantity.Equal(pnl.Q(-5)))
	assert.True(t, txs[1].Price.Equal(pnl.P(12)))

	txs, err = s.Transactions(ctx, account, endOf(2024, 1, 2), endOf(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t2", txs[0].ID)

	early, err := s.Revision(ctx, account, endOf(2024, 1, 3))
	require.NoError(t, err)
	late, err := s.Revision(ctx, account, endOf(2024, 1, 31))
	require.NoError(t, err)
	assert.Positive(t, early)
	assert.Greater(t, late, early)

	// moving t3 into the early window bumps both revisions
	require.NoError(t, s.Update(ctx, account, trade("t3", 5, 11, at(2024, 1, 3))))
	early2, err := s.Revision(ctx, account, endOf(2024, 1, 3))
	require.NoError(t, err)
	assert.Greater(t, early2, late)

	require.NoError(t, s.Delete(ctx, account, "t3"))
	early3, err := s.Revision(ctx, account, endOf(2024, 1, 3))
	require.NoError(t, err)
	assert.Greater(t, early3, early2)

	assert.ErrorIs(t, s.Delete(ctx, account, "t3"), pnl.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, account, trade("nope", 1, 1, at(2024, 1, 3))), pnl.ErrNotFound)

	// other accounts are untouched
	other, err := s.Revision(ctx, account+"-other", endOf(2024, 12, 31))
	require.NoError(t, err)
	assert.Zero(t, other)
}

func testCloses(t *testing.T, s closeStore) {
	ctx := context.Background()
	day := date.New(2024, 1, 2)

	cl, err := s.Close(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, pnl.CloseMissing, cl.Status)

	price := pnl.P(190.12)
	require.NoError(t, s.SetClose(ctx, day, "AAPL", &price))
	cl, err = s.Close(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, pnl.CloseOK, cl.Status)
	assert.True(t, cl.Price.Equal(price))
	first := cl.Revision

	// same value: same revision
	require.NoError(t, s.SetClose(ctx, day, "AAPL", &price))
	cl, err = s.Close(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, first, cl.Revision)

	require.NoError(t, s.SetClose(ctx, day, "AAPL", nil))
	cl, err = s.Close(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, pnl.CloseError, cl.Status)
	assert.Greater(t, cl.Revision, first)

	n, err := ImportCloses(ctx, s, []pnl.DailyCloses{{Date: day, Prices: map[string]*pnl.Money{"AAPL": &price, "MSFT": nil}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	cl, err = s.Close(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, pnl.CloseOK, cl.Status)
}

func testSnapshots(t *testing.T, s pnl.SnapshotStore, account string) {
	ctx := context.Background()

	snap, err := s.Get(ctx, account, date.New(2024, 1, 31))
	require.NoError(t, err)
	assert.Nil(t, snap)

	book := pnl.NewBook(nil)
	book.Replay([]pnl.Transaction{
		trade("t1", 10, 10, at(2024, 1, 2)),
		trade("t2", -4, 12, at(2024, 1, 3)),
	})
	for _, d := range []date.Date{date.New(2024, 1, 31), date.New(2024, 1, 5)} {
		require.NoError(t, s.Put(ctx, account, pnl.NewSnapshot(d, book, "fp-"+d.String())))
	}
	// rewriting a day replaces it
	require.NoError(t, s.Put(ctx, account, pnl.NewSnapshot(date.New(2024, 1, 5), book, "fp-new")))

	dates, err := s.Dates(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, []date.Date{date.New(2024, 1, 5), date.New(2024, 1, 31)}, dates)

	snap, err = s.Get(ctx, account, date.New(2024, 1, 5))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "fp-new", snap.Fingerprint)
	assert.Equal(t, []string{"AAPL"}, snap.Symbols())

	restored := snap.Book(time.UTC)
	require.NoError(t, restored.Check())
	key := pnl.NewPositionKey("AAPL", pnl.Stock, "")
	assert.True(t, restored.Quantity(key).Equal(pnl.Q(6)))
	assert.True(t, restored.Metrics().RealizedLifetime.Equal(pnl.P(8)))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	t.Run("transactions", func(t *testing.T) { testTransactions(t, m, "acc") })
	t.Run("closes", func(t *testing.T) { testCloses(t, m) })
	t.Run("snapshots", func(t *testing.T) { testSnapshots(t, m, "acc") })
}

func TestMemory_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	book := pnl.NewBook(nil)
	book.Replay([]pnl.Transaction{trade("t1", 10, 10, at(2024, 1, 2))})
	snap := pnl.NewSnapshot(date.New(2024, 1, 2), book, "fp")
	require.NoError(t, m.Put(ctx, "acc", snap))

	got, err := m.Get(ctx, "acc", snap.Date)
	require.NoError(t, err)
	got.Fingerprint = "changed"

	again, err := m.Get(ctx, "acc", snap.Date)
	require.NoError(t, err)
	assert.Equal(t, "fp", again.Fingerprint)
}
