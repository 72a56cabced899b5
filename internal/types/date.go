package types

import (
	"fmt"
	"time"
)

// DaysIn returns the number of days in month m of year y
func DaysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// AddClampedDate adds years and months to t, clamping the day to the last
// valid day of the resulting month, then adds days. Jan 31 + 1 month is
// Feb 28 (or 29), never Mar 3.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// Adding 2 months to November lands on January next year
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	if lastDay := DaysIn(newY, newM, t.Location()); d > lastDay {
		d = lastDay
	}

	out := time.Date(newY, newM, d, h, min, sec, t.Nanosecond(), t.Location())
	if days != 0 {
		out = out.AddDate(0, 0, days)
	}
	return out
}

// ClampedDay returns day in year y month m at the given clock time, clamped to
// the month's last day
func ClampedDay(y int, m time.Month, day, hour int, loc *time.Location) time.Time {
	if lastDay := DaysIn(y, m, loc); day > lastDay {
		day = lastDay
	}
	return time.Date(y, m, day, hour, 0, 0, 0, loc)
}

// AddBillingPeriods moves start forward by n whole periods. Every step is
// computed from start itself, so a start on the 31st yields the 31st again in
// long months instead of drifting to the 28th after February.
func AddBillingPeriods(start time.Time, period BillingPeriod, n int) (time.Time, error) {
	if n < 0 {
		return start, fmt.Errorf("period count must not be negative, got %d", n)
	}

	switch period {
	case BillingPeriodWeekly:
		return start.AddDate(0, 0, 7*n), nil
	case BillingPeriodMonthly, BillingPeriodQuarterly, BillingPeriodYearly:
		return AddClampedDate(start, 0, period.Months()*n, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// LoadLocation resolves an IANA zone name, treating empty as UTC
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
