package renderer

import (
	"strings"

	"github.com/etnz/pnl"
)

// Calendar is the printable form of a PnL calendar.
type Calendar struct {
	Account  string
	Range    string
	Days     []CalendarDay
	Missing  []CalendarDay // days without figures
	Total    CalendarTotal
	Warnings []string
}

// CalendarDay is one row of the calendar. Figures are empty when the day
// is not complete.
type CalendarDay struct {
	Date                string
	Status              string
	Missing             string // comma separated symbols
	Legacy              string
	New                 string
	Carry               string
	Realized            string
	Unrealized          string
	TotalRealizedToDate string
}

// CalendarTotal sums the figures of the complete days.
type CalendarTotal struct {
	Complete int
	Legacy   string
	New      string
	Carry    string
	Realized string
}

// NewCalendar builds the printable calendar of report with amounts in
// currency.
func NewCalendar(report *pnl.Report, currency string) *Calendar {
	c := &Calendar{Account: report.Account, Range: report.Range.String(), Warnings: warnings(report.Warnings)}
	var legacy, newPnl, carry, realized pnl.Money
	for _, r := range report.Days {
		day := CalendarDay{
			Date:    r.Date.String(),
			Status:  string(r.Status),
			Missing: strings.Join(r.MissingSymbols, ", "),
		}
		if r.PnL == nil {
			c.Days = append(c.Days, day)
			c.Missing = append(c.Missing, day)
			continue
		}
		day.Legacy = r.PnL.Legacy.In(currency).SignedString()
		day.New = r.PnL.New.In(currency).SignedString()
		day.Carry = r.PnL.Carry.In(currency).SignedString()
		day.Realized = r.PnL.Realized.In(currency).SignedString()
		day.Unrealized = r.PnL.Unrealized.In(currency).SignedString()
		day.TotalRealizedToDate = r.PnL.TotalRealizedToDate.In(currency).String()
		c.Days = append(c.Days, day)

		c.Total.Complete++
		legacy = legacy.Add(r.PnL.Legacy)
		newPnl = newPnl.Add(r.PnL.New)
		carry = carry.Add(r.PnL.Carry)
		realized = realized.Add(r.PnL.Realized)
	}
	c.Total.Legacy = legacy.In(currency).SignedString()
	c.Total.New = newPnl.In(currency).SignedString()
	c.Total.Carry = carry.In(currency).SignedString()
	c.Total.Realized = realized.In(currency).SignedString()
	return c
}

func warnings(ws []pnl.Warning) []string {
	var out []string
	for _, w := range ws {
		out = append(out, w.Error())
	}
	return out
}
