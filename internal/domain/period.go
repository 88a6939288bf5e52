package domain

import (
	"fmt"
	"time"
)

// Period is the lookback window for a usage query. The same Duration value
// drives both the store's time-range predicate and the requests-per-second
// divisor so the two can never diverge.
type Period struct {
	Name       string
	Duration   time.Duration
	WindowSpan time.Duration
}

var (
	// PeriodHour covers the last hour in 5-minute timeline windows.
	PeriodHour = Period{Name: "hour", Duration: time.Hour, WindowSpan: 5 * time.Minute}
	// PeriodDay covers the last 24 hours in 1-hour timeline windows.
	PeriodDay = Period{Name: "day", Duration: 24 * time.Hour, WindowSpan: time.Hour}
)

// ParsePeriod resolves a caller-supplied period name. An empty value
// defaults to hour; anything else unknown is a validation error.
func ParsePeriod(raw string) (Period, error) {
	switch raw {
	case "", PeriodHour.Name:
		return PeriodHour, nil
	case PeriodDay.Name:
		return PeriodDay, nil
	default:
		return Period{}, fmt.Errorf("invalid period %q: must be one of hour, day", raw)
	}
}

// Since returns the inclusive lower bound of the period relative to now.
func (p Period) Since(now time.Time) time.Time {
	return now.Add(-p.Duration)
}

// Seconds returns the period length as the divisor for request rates.
func (p Period) Seconds() float64 {
	return p.Duration.Seconds()
}
