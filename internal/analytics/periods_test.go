package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRangeIsInclusive(t *testing.T) {
	r := MonthRange(date(2024, 2, 15))
	assert.True(t, r.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodRanges(t *testing.T) {
	cur, prev, err := PeriodRanges(ModeMonth, date(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, "2024-01", MonthKey(cur.Start))
	assert.Equal(t, "2023-12", MonthKey(prev.Start))
	assert.Equal(t, "2023-12", MonthKey(prev.End))

	cur, prev, err = PeriodRanges(ModeYear, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024", YearKey(cur.Start))
	assert.Equal(t, "2023", YearKey(prev.End))

	_, _, err = PeriodRanges(ComparisonMode("week"), date(2024, 6, 1))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseMonthKey(t *testing.T) {
	got, err := ParseMonthKey("2024-07", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "2024", "2024-7", "2024-00", "2024-13", "abcd-01", "+202-01", "-202-01", "2024-+1", " 2024-1"} {
		_, err := ParseMonthKey(bad, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidMonthKey, bad)
	}

	next, err := NextMonthKey("2024-12")
	require.NoError(t, err)
	assert.Equal(t, "2025-01", next)
}

func TestParseGranularityAndMode(t *testing.T) {
	g, err := ParseGranularity("year")
	require.NoError(t, err)
	assert.Equal(t, Year, g)
	_, err = ParseGranularity("day")
	assert.ErrorIs(t, err, ErrInvalidGranularity)

	m, err := ParseComparisonMode("month")
	require.NoError(t, err)
	assert.Equal(t, ModeMonth, m)
	_, err = ParseComparisonMode("")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))
}
