package models

import (
	"fmt"
	"time"
)

// DateLayout is the layout of every date key in HistoricalData
const DateLayout = "2006-01-02"

// ParseDate parses an ISO date key
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// HoldingDays returns the number of calendar days between two ISO dates.
// Unparseable input yields 0.
func HoldingDays(entry, exit string) int {
	from, err := ParseDate(entry)
	if err != nil {
		return 0
	}
	to, err := ParseDate(exit)
	if err != nil {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
