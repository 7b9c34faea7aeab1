package date

import (
	"slices"
	"testing"
	"time"
)

func TestCalendar(t *testing.T) {
	// 2024-07-04 is a Thursday holiday.
	cal := NewCalendar(New(2024, time.July, 4))

	testCases := []struct {
		name string
		got  Date
		want Date
	}{
		{"Previous skips the holiday", cal.Previous(New(2024, time.July, 5)), New(2024, time.July, 3)},
		{"Previous skips the weekend", cal.Previous(New(2024, time.July, 8)), New(2024, time.July, 5)},
		{"Next skips the weekend", cal.Next(New(2024, time.July, 5)), New(2024, time.July, 8)},
		{"Shift backward", cal.Shift(New(2024, time.July, 8), -2), New(2024, time.July, 3)},
		{"Shift zero", cal.Shift(New(2024, time.July, 6), 0), New(2024, time.July, 6)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestCalendar_TradingDays(t *testing.T) {
	cal := NewCalendar(New(2024, time.July, 4))
	got := cal.TradingDays(Range{From: New(2024, time.July, 3), To: New(2024, time.July, 9)})
	want := []Date{New(2024, time.July, 3), New(2024, time.July, 5), New(2024, time.July, 8), New(2024, time.July, 9)}
	if !slices.Equal(got, want) {
		t.Errorf("TradingDays() = %v, want %v", got, want)
	}

	var zero Calendar
	if !zero.IsTradingDay(New(2024, time.July, 4)) {
		t.Error("zero Calendar should open every weekday")
	}
	if got := zero.TradingDays(Range{From: New(2024, time.July, 9), To: New(2024, time.July, 3)}); len(got) != 0 {
		t.Errorf("TradingDays(empty range) = %v, want none", got)
	}
}
