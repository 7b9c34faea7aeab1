package date

import (
	"time"
)

// Calendar knows which days are exchange sessions: weekdays that are not
// listed as holidays. The zero value treats every weekday as a session.
type Calendar struct {
	holidays map[Date]struct{}
}

// NewCalendar returns a Calendar closed on weekends and on the given holidays.
func NewCalendar(holidays ...Date) Calendar {
	c := Calendar{holidays: make(map[Date]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[h] = struct{}{}
	}
	return c
}

// IsTradingDay reports whether the exchange is open on d.
func (c Calendar) IsTradingDay(d Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.holidays[d]
	return !closed
}

// Previous returns the last trading day strictly before d.
func (c Calendar) Previous(d Date) Date {
	p := d.Add(-1)
	for !c.IsTradingDay(p) {
		p = p.Add(-1)
	}
	return p
}

// Next returns the first trading day strictly after d.
func (c Calendar) Next(d Date) Date {
	n := d.Add(1)
	for !c.IsTradingDay(n) {
		n = n.Add(1)
	}
	return n
}

// Shift moves d by n trading days, backward when n is negative. Shift(d, 0)
// returns d itself even when d is not a trading day.
func (c Calendar) Shift(d Date, n int) Date {
	for ; n < 0; n++ {
		d = c.Previous(d)
	}
	for ; n > 0; n-- {
		d = c.Next(d)
	}
	return d
}

// TradingDays returns the sessions of r in ascending order.
func (c Calendar) TradingDays(r Range) []Date {
	var days []Date
	for d := range r.Days() {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
