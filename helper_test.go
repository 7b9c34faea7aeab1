package pnl

import (
	"testing"
	"time"

	"github.com/etnz/pnl/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// ms returns the epoch milliseconds of y-m-d at hour:00 UTC.
func ms(y int, m time.Month, d, hour int) int64 {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC).UnixMilli()
}

// on is a shorter date.New.
func on(y int, m time.Month, d int) date.Date { return date.New(y, m, d) }

// stock returns a stock transaction.
func stock(id, symbol string, qty, price float64, ts int64) Transaction {
	return Transaction{ID: id, Symbol: symbol, AssetClass: Stock, Quantity: Q(qty), Price: USD(price), Multiplier: Q(1), Timestamp: ts}
}

// option returns an option transaction with a multiplier of 100.
func option(id, symbol string, qty, price float64, ts int64) Transaction {
	return Transaction{ID: id, Symbol: symbol, AssetClass: Option, Quantity: Q(qty), Price: USD(price), Multiplier: Q(100), Timestamp: ts}
}

// assertMoney compares amounts by value, whatever their exponent.
func assertMoney(t *testing.T, want string, got Money) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal()), "want %s, got %s", want, got.Decimal())
}

// assertQuantity compares quantities by value.
func assertQuantity(t *testing.T, want string, got Quantity) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal()), "want %s, got %s", want, got.Decimal())
}
