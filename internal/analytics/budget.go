package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// BudgetState classifies spend against a limit.
type BudgetState string

const (
	BudgetUnder BudgetState = "under"
	BudgetMet   BudgetState = "met"
	BudgetOver  BudgetState = "over"
)

// BudgetStatus is the state of one budgeted category within a month.
type BudgetStatus struct {
	Category    string          `json:"category"`
	Limit       decimal.Decimal `json:"limit"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      BudgetState     `json:"status"`
	UsedPercent float64         `json:"used_percent"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	Projected   decimal.Decimal `json:"projected"`
}

// TrackBudget compares each budgeted category with its spend. Categories with
// spend but no limit, and limits that are not positive, are left out. When no day has elapsed yet both the daily
// rate and the projection are zero.
func TrackBudget(limits, spend map[string]decimal.Decimal, daysElapsed, totalDays int) ([]BudgetStatus, error) {
	if daysElapsed < 0 || totalDays <= 0 || daysElapsed > totalDays {
		return nil, fmt.Errorf("%w: elapsed %d of %d", ErrInvalidDays, daysElapsed, totalDays)
	}

	out := make([]BudgetStatus, 0, len(limits))
	for cat, limit := range limits {
		// Entries without a positive limit are invalid budgets.
		if !limit.IsPositive() {
			continue
		}
		spent := spend[cat]
		remaining := limit.Sub(spent)

		st := BudgetStatus{
			Category:  cat,
			Limit:     limit,
			Spent:     spent,
			Remaining: remaining,
			Status:    BudgetUnder,
			DailyRate: decimal.Zero,
			Projected: decimal.Zero,
		}
		switch remaining.Sign() {
		case 0:
			st.Status = BudgetMet
		case -1:
			st.Status = BudgetOver
		}
		st.UsedPercent = spent.Div(limit).Mul(decimal.NewFromInt(100)).InexactFloat64()
		if daysElapsed > 0 {
			elapsed := decimal.NewFromInt(int64(daysElapsed))
			st.DailyRate = spent.Div(elapsed)
			st.Projected = spent.Mul(decimal.NewFromInt(int64(totalDays))).Div(elapsed)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// IsPeriodInPast reports whether the month has fully ended at now. Locking
// past months for editing is left to the caller.
func IsPeriodInPast(monthKey string, now time.Time) (bool, error) {
	start, err := ParseMonthKey(monthKey, now.Location())
	if err != nil {
		return false, err
	}
	return !now.Before(start.AddDate(0, 1, 0)), nil
}

// DaysElapsed returns how many days of the month have passed at now, counting
// today, and the length of the month. Past months are fully elapsed and
// future months have zero elapsed days.
func DaysElapsed(monthKey string, now time.Time) (elapsed, total int, err error) {
	start, err := ParseMonthKey(monthKey, now.Location())
	if err != nil {
		return 0, 0, err
	}
	total = DaysInMonth(start.Year(), start.Month())
	switch {
	case now.Before(start):
		return 0, total, nil
	case !now.Before(start.AddDate(0, 1, 0)):
		return total, total, nil
	default:
		return now.Day(), total, nil
	}
}

// TrackMonth runs TrackBudget for one month using the expense totals of that
// month and the elapsed days at now.
func TrackMonth(txs []core.Transaction, budgets core.Budgets, monthKey string, now time.Time) ([]BudgetStatus, error) {
	start, err := ParseMonthKey(monthKey, now.Location())
	if err != nil {
		return nil, err
	}
	elapsed, total, err := DaysElapsed(monthKey, now)
	if err != nil {
		return nil, err
	}
	r := MonthRange(start)
	spend := CategoryTotals(txs, core.Expense, Filter{Range: &r})
	return TrackBudget(budgets.Month(monthKey), spend, elapsed, total)
}
