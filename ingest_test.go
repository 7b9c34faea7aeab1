package pnl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSON(t *testing.T) {
	n := NewNormalizer("USD", nil)

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, tx Transaction)
	}{
		{
			name:  "canonical",
			input: `{"id":"t1","symbol":"aapl","assetClass":"stock","quantity":-10,"price":"190.50","timestampMillis":1704205800000}`,
			check: func(t *testing.T, tx Transaction) {
				assert.Equal(t, "t1", tx.ID)
				assert.Equal(t, "AAPL", tx.Symbol)
				assert.Equal(t, Stock, tx.AssetClass)
				assertQuantity(t, "-10", tx.Quantity)
				assertMoney(t, "190.5", tx.Price)
				assertQuantity(t, "1", tx.Multiplier)
				assert.Equal(t, int64(1704205800000), tx.Timestamp)
			},
		},
		{
			name:  "side decides the sign",
			input: `{"tradeId":"t2","ticker":"MSFT","qty":"-5","side":"BUY","px":300,"time":"2024-01-03T15:30:00Z"}`,
			check: func(t *testing.T, tx Transaction) {
				assert.Equal(t, "t2", tx.ID)
				assertQuantity(t, "5", tx.Quantity)
				assert.Equal(t, ms(2024, 1, 3, 15)+30*60*1000, tx.Timestamp)
			},
		},
		{
			name:  "occ option",
			input: `{"exec_id":"t3","symbol":"AAPL  240119C00190000","contracts":2,"action":"STO","fill_price":"3.10","executedAt":"1704205900000"}`,
			check: func(t *testing.T, tx Transaction) {
				assert.Equal(t, Option, tx.AssetClass)
				assertQuantity(t, "-2", tx.Quantity)
				assertQuantity(t, "100", tx.Multiplier)
				assert.Equal(t, "AAPL240119C00190000", tx.Key().Symbol())
			},
		},
		{
			name:  "nested fields and explicit multiplier",
			input: `{"id":7,"instrument":{"symbol":"SPY 240621P00500000","type":"OPT","multiplier":10},"quantity":1,"price":"1,234.5","timestamp":1704205900000}`,
			check: func(t *testing.T, tx Transaction) {
				assert.Equal(t, "7", tx.ID)
				assert.Equal(t, Option, tx.AssetClass)
				assertQuantity(t, "10", tx.Multiplier)
				assertMoney(t, "1234.5", tx.Price)
				assert.Equal(t, NewPositionKey("SPY", Option, "240621P00500000"), tx.Key())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := n.NormalizeJSON([]byte(tt.input))
			require.NoError(t, err)
			require.NoError(t, tx.Validate())
			tt.check(t, tx)
		})
	}
}

func TestNormalizeJSON_DerivedID(t *testing.T) {
	n := NewNormalizer("USD", nil)
	line := `{"symbol":"AAPL","quantity":1,"price":1,"timestamp":1704205900000}`
	a, err := n.NormalizeJSON([]byte(line))
	require.NoError(t, err)
	b, err := n.NormalizeJSON([]byte("  " + line + "\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID)

	c, err := n.NormalizeJSON([]byte(`{"symbol":"AAPL","quantity":2,"price":1,"timestamp":1704205900000}`))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestNormalizeJSON_Errors(t *testing.T) {
	n := NewNormalizer("USD", nil)
	tests := map[string]struct {
		input string
		err   error
	}{
		"not json":      {`{"symbol":`, ErrMalformed},
		"no symbol":     {`{"quantity":1,"price":1,"timestamp":1}`, ErrMalformed},
		"no quantity":   {`{"symbol":"A","price":1,"timestamp":1}`, ErrMalformed},
		"no price":      {`{"symbol":"A","quantity":1,"timestamp":1}`, ErrMalformed},
		"no timestamp":  {`{"symbol":"A","quantity":1,"price":1}`, ErrMalformed},
		"bad side":      {`{"symbol":"A","quantity":1,"side":"hold","price":1,"timestamp":1}`, ErrMalformed},
		"bad class":     {`{"symbol":"A","assetClass":"bond","quantity":1,"price":1,"timestamp":1}`, ErrUnknownAssetClass},
		"zero quantity": {`{"symbol":"A","quantity":0,"price":1,"timestamp":1}`, ErrZeroQuantity},
		"bad time":      {`{"symbol":"A","quantity":1,"price":1,"timestamp":"yesterday"}`, ErrMalformed},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := n.NormalizeJSON([]byte(tt.input))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNormalizer_CustomAliases(t *testing.T) {
	n := NewNormalizer("EUR", Aliases{FieldSymbol: {"$.contract.localSymbol"}})
	tx, err := n.NormalizeJSON([]byte(`{"id":"x","contract":{"localSymbol":"SAP"},"symbol":"IGNORED","quantity":1,"price":2,"timestamp":1}`))
	require.NoError(t, err)
	assert.Equal(t, "SAP", tx.Symbol)
	assert.Equal(t, "EUR", tx.Price.Currency())

	// other fields keep their default aliases
	assertQuantity(t, "1", tx.Quantity)
}

func TestDecodeTransactions(t *testing.T) {
	input := `{"id":"t1","symbol":"AAPL","quantity":1,"price":1,"timestamp":1}

{"id":"t2","symbol":"AAPL","quantity":0,"price":1,"timestamp":2}
{"id":"t3","symbol":"AAPL","quantity":1,"price":1,"timestamp":3}
garbage
`
	txs, warnings, err := DecodeTransactions(strings.NewReader(input), NewNormalizer("USD", nil))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t3", txs[1].ID)

	require.Len(t, warnings, 2)
	assert.Equal(t, 3, warnings[0].Line)
	assert.Equal(t, "t2", warnings[0].TxID)
	assert.ErrorIs(t, warnings[0], ErrZeroQuantity)
	assert.Equal(t, "line 3 (transaction t2): zero quantity", warnings[0].Error())
	assert.Equal(t, 5, warnings[1].Line)
	assert.ErrorIs(t, warnings[1], ErrMalformed)
}
