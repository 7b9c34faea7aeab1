package renderer

import (
	"time"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// Holdings is the printable form of an account's open positions.
type Holdings struct {
	Account    string
	Date       string
	Positions  []HoldingPosition
	Unrealized string // over the positions with a close
	Unpriced   int    // positions without an ok close
	Warnings   []string
}

// HoldingPosition is one open key.
type HoldingPosition struct {
	Symbol     string
	Class      string
	Contract   string
	Quantity   string
	Close      string // price, or the close status when not ok
	Unrealized string
	Lots       []HoldingLot
}

type HoldingLot struct {
	Opened     string
	Quantity   string
	CostPrice  string
	Multiplier string
}

// NewHoldings builds the printable holdings of h. Lot opening days are read
// in loc.
func NewHoldings(h *pnl.Holdings, currency string, loc *time.Location) *Holdings {
	out := &Holdings{Account: h.Account, Date: h.Date.String(), Warnings: warnings(h.Warnings)}
	var total pnl.Money
	for _, p := range h.Positions {
		pos := HoldingPosition{
			Symbol:   p.Key.Root(),
			Class:    p.Key.AssetClass().String(),
			Contract: p.Key.Contract(),
			Quantity: p.Quantity.String(),
		}
		if p.Close.Status == pnl.CloseOK {
			pos.Close = p.Close.Price.In(currency).String()
			pos.Unrealized = p.Unrealized.In(currency).SignedString()
			total = total.Add(p.Unrealized)
		} else {
			pos.Close = string(p.Close.Status)
			out.Unpriced++
		}
		for _, lot := range p.Lots {
			pos.Lots = append(pos.Lots, HoldingLot{
				Opened:     date.FromMillis(lot.Opened, loc).String(),
				Quantity:   lot.Quantity.String(),
				CostPrice:  lot.CostPrice.In(currency).String(),
				Multiplier: lot.Multiplier.String(),
			})
		}
		out.Positions = append(out.Positions, pos)
	}
	out.Unrealized = total.In(currency).SignedString()
	return out
}
