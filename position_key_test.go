package pnl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOf(t *testing.T) {
	tests := []struct {
		tx     Transaction
		root   string
		series string
		symbol string
	}{
		{stock("", "aapl ", 1, 1, 0), "AAPL", "", "AAPL"},
		{option("", "AAPL  240119C00190000", 1, 1, 0), "AAPL", "240119C00190000", "AAPL240119C00190000"},
		{option("", "AAPL240119C00190000", 1, 1, 0), "AAPL", "240119C00190000", "AAPL240119C00190000"},
		{option("", "BRK.B 240119P00400000", 1, 1, 0), "BRK.B", "240119P00400000", "BRK.B240119P00400000"},
		{option("", "ESZ4 C 5000", 1, 1, 0), "ESZ4", "C5000", "ESZ4C5000"},
	}
	for _, tt := range tests {
		t.Run(tt.tx.Symbol, func(t *testing.T) {
			k := KeyOf(tt.tx)
			assert.Equal(t, tt.root, k.Root())
			assert.Equal(t, tt.series, k.Contract())
			assert.Equal(t, tt.symbol, k.Symbol())
			assert.Equal(t, tt.tx.AssetClass, k.AssetClass())
		})
	}

	assert.NotEqual(t, KeyOf(stock("", "AAPL", 1, 1, 0)), KeyOf(option("", "AAPL  240119C00190000", 1, 1, 0)))
	assert.True(t, PositionKey{}.IsZero())
	assert.Empty(t, NewPositionKey("AAPL", Stock, "240119C00190000").Contract())
}

func TestPositionKey_Compare(t *testing.T) {
	a := NewPositionKey("AAPL", Stock, "")
	b := NewPositionKey("AAPL", Option, "240119C00190000")
	c := NewPositionKey("MSFT", Stock, "")
	assert.Negative(t, a.Compare(b))
	assert.Negative(t, b.Compare(c))
	assert.Zero(t, a.Compare(NewPositionKey("aapl", Stock, "")))
}

func TestPositionKey_JSONMapKey(t *testing.T) {
	in := map[PositionKey]int{
		NewPositionKey("AAPL", Stock, ""):                 1,
		NewPositionKey("AAPL", Option, "240119C00190000"): 2,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stock:AAPL":1,"option:AAPL:240119C00190000":2}`, string(data))

	var out map[PositionKey]int
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var k PositionKey
	assert.Error(t, k.UnmarshalText([]byte("stock")))
	assert.Error(t, k.UnmarshalText([]byte("bond:X")))
}
