package pnl

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aaplCall = "AAPL  240119C00010000"

func TestBook_FIFO(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(stock("t1", "AAPL", 10, 100, ms(2024, 1, 2, 15)))
	require.NoError(t, err)
	_, err = b.Apply(stock("t2", "AAPL", 10, 110, ms(2024, 1, 3, 15)))
	require.NoError(t, err)

	events, err := b.Apply(stock("t3", "AAPL", -15, 120, ms(2024, 1, 4, 15)))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, on(2024, 1, 2), events[0].OpenDate)
	assertQuantity(t, "10", events[0].Quantity)
	assertMoney(t, "200", events[0].PnL)
	assert.Equal(t, on(2024, 1, 3), events[1].OpenDate)
	assertQuantity(t, "5", events[1].Quantity)
	assertMoney(t, "50", events[1].PnL)
	assert.Equal(t, on(2024, 1, 4), events[1].CloseDate)
	assert.Equal(t, "t3", events[1].TxID)

	key := NewPositionKey("AAPL", Stock, "")
	lots := b.Lots(key)
	require.Len(t, lots, 1)
	assertQuantity(t, "5", lots[0].Quantity)
	assertMoney(t, "110", lots[0].CostPrice)
	assertMoney(t, "250", b.Metrics().RealizedLifetime)
	assert.Equal(t, 2, b.Metrics().WinCount)
	assert.NoError(t, b.Check())
}

func TestBook_Flip(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(stock("t1", "MSFT", 10, 100, ms(2024, 1, 2, 15)))
	require.NoError(t, err)

	events, err := b.Apply(stock("t2", "MSFT", -15, 90, ms(2024, 1, 3, 15)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assertMoney(t, "-100", events[0].PnL)

	key := NewPositionKey("MSFT", Stock, "")
	lots := b.Lots(key)
	require.Len(t, lots, 1)
	assertQuantity(t, "-5", lots[0].Quantity)
	assertMoney(t, "90", lots[0].CostPrice)
	assert.Equal(t, 1, b.Metrics().LossCount)

	// covering the short at a lower price is a gain
	events, err = b.Apply(stock("t3", "MSFT", 5, 80, ms(2024, 1, 4, 15)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assertMoney(t, "50", events[0].PnL)
	assert.Empty(t, b.Open())
	assert.NoError(t, b.Check())
}

func TestBook_StockAndOptionAreIsolated(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(stock("s1", "AAPL", 100, 10, ms(2024, 1, 2, 15)))
	require.NoError(t, err)
	_, err = b.Apply(option("o1", aaplCall, 1, 2, ms(2024, 1, 2, 16)))
	require.NoError(t, err)

	events, err := b.Apply(stock("s2", "AAPL", -100, 12, ms(2024, 1, 3, 15)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assertMoney(t, "200", events[0].PnL)

	stockKey := NewPositionKey("AAPL", Stock, "")
	optionKey := KeyOf(option("", aaplCall, 1, 0, 0))
	assert.True(t, b.Quantity(stockKey).IsZero())
	assertQuantity(t, "1", b.Quantity(optionKey))
	assert.Equal(t, []PositionKey{optionKey}, b.Open())
	assert.Equal(t, "AAPL240119C00010000", optionKey.Symbol())
}

func TestBook_MultiplierMismatch(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(option("o1", aaplCall, 2, 2, ms(2024, 1, 2, 15)))
	require.NoError(t, err)

	bad := option("o2", aaplCall, -1, 3, ms(2024, 1, 3, 15))
	bad.Multiplier = Q(10)
	events, err := b.Apply(bad)
	assert.ErrorIs(t, err, ErrMultiplierMismatch)
	assert.Empty(t, events)

	key := KeyOf(bad)
	assertQuantity(t, "2", b.Quantity(key))
	assert.Empty(t, b.Trail())
	assert.NoError(t, b.Check())
}

func TestBook_RejectsInvalidTransactions(t *testing.T) {
	b := NewBook(nil)
	zero := stock("z", "AAPL", 0, 10, ms(2024, 1, 2, 15))
	_, err := b.Apply(zero)
	assert.ErrorIs(t, err, ErrZeroQuantity)

	unknown := stock("u", "AAPL", 1, 10, ms(2024, 1, 2, 15))
	unknown.AssetClass = 0
	_, err = b.Apply(unknown)
	assert.ErrorIs(t, err, ErrUnknownAssetClass)

	noID := stock("", "AAPL", 1, 10, ms(2024, 1, 2, 15))
	_, err = b.Apply(noID)
	assert.ErrorIs(t, err, ErrMalformed)

	// an option needs its series, the root alone names the stock
	bareRoot := option("o", "AAPL", 1, 2, ms(2024, 1, 2, 15))
	_, err = b.Apply(bareRoot)
	assert.ErrorIs(t, err, ErrMalformed)

	assert.Empty(t, b.Keys())
}

func TestBook_Replay(t *testing.T) {
	b := NewBook(nil)
	warnings := b.Replay([]Transaction{
		stock("t2", "AAPL", -5, 12, ms(2024, 1, 3, 15)),
		stock("t0", "AAPL", 0, 11, ms(2024, 1, 2, 16)),
		stock("t1", "AAPL", 10, 10, ms(2024, 1, 2, 15)),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, "t0", warnings[0].TxID)
	assert.ErrorIs(t, warnings[0], ErrZeroQuantity)

	assertQuantity(t, "5", b.Quantity(NewPositionKey("AAPL", Stock, "")))
	assertMoney(t, "10", b.Metrics().RealizedLifetime)
}

func TestBook_Conservation(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	symbols := []string{"AAPL", "MSFT", aaplCall}
	b := NewBook(nil)
	net := map[PositionKey]Quantity{}

	for i := range 2000 {
		sym := symbols[r.IntN(len(symbols))]
		qty := float64(r.IntN(41) - 20)
		if qty == 0 {
			qty = 1
		}
		price := float64(50 + r.IntN(100))
		id, ts := fmt.Sprintf("tx-%d", i), ms(2024, 1, 2, 0)+int64(i)
		tx := stock(id, sym, qty, price, ts)
		if sym == aaplCall {
			tx = option(id, sym, qty, price/10, ts)
		}
		_, err := b.Apply(tx)
		require.NoError(t, err)
		net[tx.Key()] = net[tx.Key()].Add(tx.Quantity)

		require.NoError(t, b.Check())
	}

	for k, q := range net {
		assert.True(t, q.Equal(b.Quantity(k)), "%s: net %s, book %s", k, q, b.Quantity(k))
		for _, lot := range b.Lots(k) {
			assert.True(t, lot.Quantity.SameSide(q), "%s holds a lot against its side", k)
		}
	}

	var total Money
	for _, e := range b.Trail() {
		total = total.Add(e.PnL)
	}
	assert.True(t, total.Equal(b.Metrics().RealizedLifetime))
}

func TestBook_Clone(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(stock("t1", "AAPL", 10, 100, ms(2024, 1, 2, 15)))
	require.NoError(t, err)

	c := b.Clone()
	_, err = c.Apply(stock("t2", "AAPL", -4, 110, ms(2024, 1, 3, 15)))
	require.NoError(t, err)

	key := NewPositionKey("AAPL", Stock, "")
	assertQuantity(t, "10", b.Quantity(key))
	assertQuantity(t, "6", c.Quantity(key))
	assert.Empty(t, b.Trail())
	assert.True(t, b.Metrics().RealizedLifetime.IsZero())
}

func TestBook_Unrealized(t *testing.T) {
	b := NewBook(nil)
	b.Replay([]Transaction{
		stock("t1", "AAPL", 10, 100, ms(2024, 1, 2, 15)),
		stock("t2", "AAPL", 10, 110, ms(2024, 1, 3, 15)),
		option("o1", aaplCall, -2, 3, ms(2024, 1, 3, 16)),
	})
	assertMoney(t, "100", b.Unrealized(NewPositionKey("AAPL", Stock, ""), USD(110)))
	// short 2 contracts sold at 3, marked at 1.5
	assertMoney(t, "300", b.Unrealized(KeyOf(option("", aaplCall, 1, 0, 0)), USD(1.5)))
}

func TestBook_RestoreFromInventory(t *testing.T) {
	b := NewBook(nil)
	b.Replay([]Transaction{
		stock("t1", "AAPL", 10, 100, ms(2024, 1, 2, 15)),
		stock("t2", "AAPL", -4, 110, ms(2024, 1, 3, 15)),
	})
	r := restoreBook(nil, b.Inventory(), b.Metrics())
	require.NoError(t, r.Check())

	key := NewPositionKey("AAPL", Stock, "")
	assertQuantity(t, "6", r.Quantity(key))
	assert.True(t, b.Metrics().RealizedLifetime.Equal(r.Metrics().RealizedLifetime))
	assert.Empty(t, r.Trail())
}

func TestBook_CurrencyMismatch(t *testing.T) {
	b := NewBook(nil)
	_, err := b.Apply(stock("t1", "AAPL", 10, 100, ms(2024, 1, 2, 15)))
	require.NoError(t, err)

	eur := stock("t2", "SAP", 5, 180, ms(2024, 1, 2, 16))
	eur.Price = M(180, "EUR")
	_, err = b.Apply(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Equal(t, []PositionKey{NewPositionKey("AAPL", Stock, "")}, b.Keys())

	// amounts with no currency go along with any
	plain := stock("t3", "AAPL", -10, 105, ms(2024, 1, 3, 15))
	plain.Price = P(105)
	events, err := b.Apply(plain)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assertMoney(t, "50", events[0].PnL)
}

// A 3:1 split leaves a cost price that does not divide, the round trip
// still realizes the traded amounts exactly.
func TestBook_SplitCostStaysExact(t *testing.T) {
	s := NewSplits(nil, Split{Symbol: "ABC", Date: on(2024, 3, 1), Numerator: 3, Denominator: 1})
	buy, err := s.Normalize(stock("t1", "ABC", 100, 10, ms(2024, 2, 1, 15)))
	require.NoError(t, err)
	assertQuantity(t, "300", buy.Quantity)
	assertMoney(t, "1000", buy.Notional())

	b := NewBook(nil)
	_, err = b.Apply(buy)
	require.NoError(t, err)
	key := NewPositionKey("ABC", Stock, "")
	assertMoney(t, "200", b.Unrealized(key, USD(4)))

	var total Money
	for i, qty := range []float64{-100, -150, -50} {
		events, err := b.Apply(stock(fmt.Sprintf("s%d", i), "ABC", qty, 4, ms(2024, 3, 4+i, 15)))
		require.NoError(t, err)
		for _, e := range events {
			total = total.Add(e.PnL)
		}
	}
	assertMoney(t, "200", total)
	assert.Empty(t, b.Open())
	assertMoney(t, "200", b.Metrics().RealizedLifetime)
}
