package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Filter narrows the transactions an aggregation looks at. The zero value
// matches everything.
type Filter struct {
	Range    *DateRange
	Year     int // calendar year; 0 means any
	Category string
	Type     core.TxType
}

// Match reports whether t passes every set criterion.
func (f Filter) Match(t core.Transaction) bool {
	if f.Range != nil && !f.Range.Contains(t.Date) {
		return false
	}
	if f.Year != 0 && t.Date.Year() != f.Year {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// Aggregate buckets the matching transactions by month or year. Periods
// without transactions are absent from the result. The output does not depend
// on the order of txs.
func Aggregate(txs []core.Transaction, g Granularity, f Filter) (map[string]core.Bucket, error) {
	if g != Month && g != Year {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
	out := make(map[string]core.Bucket)
	for _, t := range txs {
		if !f.Match(t) {
			continue
		}
		key, _ := PeriodKey(t.Date, g)
		b := out[key]
		b.PeriodKey = key
		b.Add(t)
		out[key] = b
	}
	return out, nil
}

// Summarize folds every matching transaction into one bucket.
func Summarize(txs []core.Transaction, f Filter) core.Bucket {
	var b core.Bucket
	for _, t := range txs {
		if f.Match(t) {
			b.Add(t)
		}
	}
	return b
}

// MonthlySeries returns the twelve months of year, zero-filled where no
// transaction matched. Index 0 is January.
func MonthlySeries(txs []core.Transaction, year int, f Filter) [12]core.Bucket {
	var series [12]core.Bucket
	for i := range series {
		series[i].PeriodKey = fmt.Sprintf("%04d-%02d", year, i+1)
	}
	for _, t := range txs {
		if t.Date.Year() != year || !f.Match(t) {
			continue
		}
		series[int(t.Date.Month())-1].Add(t)
	}
	return series
}

// CategoryTotals sums the matching transactions of one type per category.
func CategoryTotals(txs []core.Transaction, typ core.TxType, f Filter) map[string]decimal.Decimal {
	f.Type = typ
	out := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if !f.Match(t) {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount)
	}
	return out
}

// SortedCategoryAmounts orders category totals by amount descending, then name.
func SortedCategoryAmounts(totals map[string]decimal.Decimal) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amt := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SortedKeys returns the period keys of buckets in ascending order.
func SortedKeys(buckets map[string]core.Bucket) []string {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Years returns the distinct calendar years present in txs, ascending.
func Years(txs []core.Transaction) []int {
	seen := make(map[int]struct{})
	for _, t := range txs {
		seen[t.Date.Year()] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// yearBucket aggregates a single calendar year. It returns nil when the year
// has no transactions.
func yearBucket(txs []core.Transaction, year int) *core.Bucket {
	b := core.Bucket{PeriodKey: fmt.Sprintf("%04d", year)}
	for _, t := range txs {
		if t.Date.Year() == year {
			b.Add(t)
		}
	}
	if b.IsEmpty() {
		return nil
	}
	return &b
}
