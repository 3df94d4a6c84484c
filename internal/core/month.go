package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies a calendar month as "yyyy-MM". It is the cache key,
// the stats document ID and the invalidation unit.
type MonthKey string

// MonthKeyOf returns the key for the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// ParseMonthKey validates a "yyyy-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("parse month key %q: %w", s, err)
	}
	return MonthKeyOf(t), nil
}

func (k MonthKey) String() string { return string(k) }

func (k MonthKey) time() (time.Time, bool) {
	t, err := time.Parse("2006-01", string(k))
	return t, err == nil
}

// Bounds returns the inclusive range covered by the month, from 00:00:00 on
// the first day to 23:59:59 on the last.
func (k MonthKey) Bounds() (start, end time.Time, ok bool) {
	t, ok := k.time()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end, true
}

// Prev returns the key of the preceding calendar month.
func (k MonthKey) Prev() MonthKey {
	t, ok := k.time()
	if !ok {
		return ""
	}
	return MonthKeyOf(t.AddDate(0, -1, 0))
}

// DaysIn returns the number of days in the month, 0 for a malformed key.
func (k MonthKey) DaysIn() int {
	t, ok := k.time()
	if !ok {
		return 0
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// Label returns the upper-cased month name, e.g. "FEBRUARY".
func (k MonthKey) Label() string {
	t, ok := k.time()
	if !ok {
		return ""
	}
	return strings.ToUpper(t.Month().String())
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
