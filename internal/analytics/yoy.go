package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type (
	// Change is the difference between a current and a baseline value. Both
	// fields are nil when there is no baseline; Percent is also nil when the
	// baseline value is exactly zero.
	Change struct {
		Delta   *decimal.Decimal `json:"delta"`
		Percent *float64         `json:"percent"`
	}

	YoYResult struct {
		Current  core.Bucket  `json:"current"`
		Baseline *core.Bucket `json:"baseline"`
		Income   Change       `json:"income"`
		Expenses Change       `json:"expenses"`
		Savings  Change       `json:"savings"`
	}

	// Contribution is one category's share of the change between two periods.
	Contribution struct {
		Category string          `json:"category"`
		Current  decimal.Decimal `json:"current"`
		Baseline decimal.Decimal `json:"baseline"`
		Delta    decimal.Decimal `json:"delta"`
	}

	// YearComparison compares a year with the closest earlier year that has data.
	YearComparison struct {
		Year int `json:"year"`
		YoYResult
	}

	// PeriodComparison is the result of comparing two arbitrary ranges.
	PeriodComparison struct {
		CurrentRange  DateRange      `json:"current_range"`
		BaselineRange DateRange      `json:"baseline_range"`
		Result        YoYResult      `json:"result"`
		Contributions []Contribution `json:"contributions"`
	}
)

// Compare computes the deltas of current against baseline. A nil baseline
// leaves every delta and percentage nil so callers can tell "no baseline"
// apart from "no change".
func Compare(current core.Bucket, baseline *core.Bucket) YoYResult {
	res := YoYResult{Current: current}
	if baseline == nil {
		return res
	}
	base := *baseline
	res.Baseline = &base
	res.Income = change(current.Income, base.Income)
	res.Expenses = change(current.Expenses, base.Expenses)
	res.Savings = change(current.Savings(), base.Savings())
	return res
}

func change(current, baseline decimal.Decimal) Change {
	delta := current.Sub(baseline)
	return Change{Delta: &delta, Percent: PercentChange(current, baseline)}
}

// PercentChange returns (current - baseline) / |baseline| * 100, or nil when
// baseline is zero.
func PercentChange(current, baseline decimal.Decimal) *float64 {
	if baseline.IsZero() {
		return nil
	}
	pct := current.Sub(baseline).Mul(decimal.NewFromInt(100)).Div(baseline.Abs()).InexactFloat64()
	return &pct
}

// Contributions lists, for every category present in either period, how much
// it moved. Unchanged categories are left out. The largest absolute movement
// comes first; ties are broken by category name.
func Contributions(current, baseline map[string]decimal.Decimal) []Contribution {
	cats := make(map[string]struct{}, len(current)+len(baseline))
	for c := range current {
		cats[c] = struct{}{}
	}
	for c := range baseline {
		cats[c] = struct{}{}
	}

	out := make([]Contribution, 0, len(cats))
	for c := range cats {
		cur, base := current[c], baseline[c]
		delta := cur.Sub(base)
		if delta.IsZero() {
			continue
		}
		out = append(out, Contribution{Category: c, Current: cur, Baseline: base, Delta: delta})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Delta.Abs().Cmp(out[j].Delta.Abs()); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CompareYears compares year against baselineYear and breaks the expense
// change down by category. The baseline is nil when baselineYear has no data.
func CompareYears(txs []core.Transaction, year, baselineYear int) (YoYResult, []Contribution) {
	current := yearBucket(txs, year)
	if current == nil {
		empty := core.Bucket{PeriodKey: fmt.Sprintf("%04d", year)}
		current = &empty
	}
	baseline := yearBucket(txs, baselineYear)

	res := Compare(*current, baseline)
	if baseline == nil {
		return res, nil
	}
	cur := CategoryTotals(txs, core.Expense, Filter{Year: year})
	base := CategoryTotals(txs, core.Expense, Filter{Year: baselineYear})
	return res, Contributions(cur, base)
}

// YearlyComparisons returns one row per year present in txs, each compared with
// the previous year that has data. The first row has no baseline.
func YearlyComparisons(txs []core.Transaction) []YearComparison {
	years := Years(txs)
	out := make([]YearComparison, 0, len(years))
	var prev *core.Bucket
	for _, y := range years {
		cur := yearBucket(txs, y)
		out = append(out, YearComparison{Year: y, YoYResult: Compare(*cur, prev)})
		prev = cur
	}
	return out
}

// ComparePeriods compares two ranges, as the month and year comparison modes do.
func ComparePeriods(txs []core.Transaction, current, baseline DateRange) PeriodComparison {
	cur := Summarize(txs, Filter{Range: &current})
	cur.PeriodKey = periodLabel(current)
	base := Summarize(txs, Filter{Range: &baseline})
	base.PeriodKey = periodLabel(baseline)

	var basePtr *core.Bucket
	if !base.IsEmpty() {
		basePtr = &base
	}
	pc := PeriodComparison{
		CurrentRange:  current,
		BaselineRange: baseline,
		Result:        Compare(cur, basePtr),
	}
	if basePtr != nil {
		pc.Contributions = Contributions(
			CategoryTotals(txs, core.Expense, Filter{Range: &current}),
			CategoryTotals(txs, core.Expense, Filter{Range: &baseline}),
		)
	}
	return pc
}

func periodLabel(r DateRange) string {
	if sameRange(MonthRange(r.Start), r) {
		return MonthKey(r.Start)
	}
	if sameRange(YearRange(r.Start), r) {
		return YearKey(r.Start)
	}
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

func sameRange(a, b DateRange) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}
