package renderer

import (
	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// Realized is the printable realized PnL audit trail of a range.
type Realized struct {
	Account  string
	Range    string
	Records  []RealizedRecord
	Total    string
	Wins     int
	Losses   int
	Warnings []string
}

type RealizedRecord struct {
	Symbol     string
	TxID       string
	Opened     string
	OpenPrice  string
	Closed     string
	ClosePrice string
	Quantity   string
	PnL        string
}

// NewRealized builds the printable trail of records.
func NewRealized(account string, r date.Range, records []pnl.Realized, ws []pnl.Warning, currency string) *Realized {
	out := &Realized{Account: account, Range: r.String(), Warnings: warnings(ws)}
	var total pnl.Money
	for _, rec := range records {
		out.Records = append(out.Records, RealizedRecord{
			Symbol:     rec.Key.Symbol(),
			TxID:       rec.TxID,
			Opened:     rec.OpenDate.String(),
			OpenPrice:  rec.OpenPrice.In(currency).String(),
			Closed:     rec.CloseDate.String(),
			ClosePrice: rec.ClosePrice.In(currency).String(),
			Quantity:   rec.Quantity.String(),
			PnL:        rec.PnL.In(currency).SignedString(),
		})
		total = total.Add(rec.PnL)
		switch {
		case rec.PnL.IsPositive():
			out.Wins++
		case rec.PnL.IsNegative():
			out.Losses++
		}
	}
	out.Total = total.In(currency).SignedString()
	return out
}
