package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	// Granularity selects the bucket size used by Aggregate.
	Granularity string

	// ComparisonMode selects the period compared against its predecessor.
	ComparisonMode string

	// DateRange is inclusive on both ends.
	DateRange struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
)

const (
	Month Granularity = "month"
	Year  Granularity = "year"

	ModeMonth ComparisonMode = "month"
	ModeYear  ComparisonMode = "year"
)

// ParseGranularity accepts "month" or "year" (case insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Month, Year:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

// ParseComparisonMode accepts "month" or "year" (case insensitive).
func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch m := ComparisonMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMonth, ModeYear:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Contains reports whether start <= t <= end.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// MonthKey returns the canonical YYYY-MM key of t's calendar date.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// YearKey returns the canonical YYYY key of t's calendar date.
func YearKey(t time.Time) string {
	return fmt.Sprintf("%04d", t.Year())
}

// PeriodKey returns the bucket key of t for the given granularity.
func PeriodKey(t time.Time, g Granularity) (string, error) {
	switch g {
	case Month:
		return MonthKey(t), nil
	case Year:
		return YearKey(t), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
}

// ParseMonthKey returns the first instant of the month named by key in loc.
func ParseMonthKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	year, month, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok || len(year) != 4 || len(month) != 2 || !allDigits(year) || !allDigits(month) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	if m < 1 || m > 12 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, loc), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NextMonthKey returns the key of the month following key.
func NextMonthKey(key string) (string, error) {
	t, err := ParseMonthKey(key, time.UTC)
	if err != nil {
		return "", err
	}
	return MonthKey(t.AddDate(0, 1, 0)), nil
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthRange returns the inclusive range covering t's calendar month.
func MonthRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// YearRange returns the inclusive range covering t's calendar year.
func YearRange(t time.Time) DateRange {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}

// PeriodRanges returns the period containing t and the one right before it.
func PeriodRanges(mode ComparisonMode, t time.Time) (current, previous DateRange, err error) {
	switch mode {
	case ModeMonth:
		current = MonthRange(t)
		return current, MonthRange(current.Start.AddDate(0, -1, 0)), nil
	case ModeYear:
		current = YearRange(t)
		return current, YearRange(current.Start.AddDate(-1, 0, 0)), nil
	default:
		return DateRange{}, DateRange{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}
