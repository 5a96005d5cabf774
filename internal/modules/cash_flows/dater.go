package cash_flows

import (
	"math"
	"time"
)

// Payment frequencies, in years, that have calendar-aligned payment dates.
const (
	FreqDaily     = 1.0 / 365
	FreqMonthly   = 1.0 / 12
	FreqQuarterly = 1.0 / 4
	FreqAnnual    = 1.0
)

const daysPerYear = 365.0

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// yearsBetween returns the whole calendar days from a to b, in 365-day years.
func yearsBetween(a, b time.Time) float64 {
	days := math.Round(startOfDay(b).Sub(startOfDay(a)).Hours() / 24)
	return days / daysPerYear
}

// timeToNextYear is the time from now to the next January 1st.
func timeToNextYear(now time.Time) float64 {
	next := time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return yearsBetween(now, next)
}

// timeToNextQuarter is the time from now to the start of the next calendar quarter.
func timeToNextQuarter(now time.Time) float64 {
	quarterStart := (int(now.Month())-1)/3*3 + 1
	next := time.Date(now.Year(), time.Month(quarterStart+3), 1, 0, 0, 0, 0, time.UTC)
	return yearsBetween(now, next)
}

// timeToNextMonth is the time from now to the first day of the next month.
func timeToNextMonth(now time.Time) float64 {
	next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return yearsBetween(now, next)
}

// timeToNextPeriod is the time from now to the first date latest + k*period (k >= 0)
// that falls after now. A latest date still ahead of now is itself the next payment.
func timeToNextPeriod(latest, now time.Time, period float64) float64 {
	elapsed := yearsBetween(latest, now)
	if elapsed < 0 {
		return -elapsed
	}
	k := math.Floor(elapsed/period) + 1
	return k*period - elapsed
}
