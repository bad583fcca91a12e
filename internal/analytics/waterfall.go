package analytics

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// WaterfallKind tells how an entry moves the running total.
type WaterfallKind string

const (
	KindIncome  WaterfallKind = "income"
	KindExpense WaterfallKind = "expense"
	KindSavings WaterfallKind = "savings"
)

const (
	IncomeLabel  = "Income"
	SavingsLabel = "Net Savings"
)

// WaterfallEntry is one bar of an income to savings decomposition. Expense
// amounts are positive and lower the running total.
type WaterfallEntry struct {
	Label        string          `json:"label"`
	Kind         WaterfallKind   `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	RunningTotal decimal.Decimal `json:"running_total"`
}

// WaterfallStep is one month of a yearly savings waterfall.
type WaterfallStep struct {
	PeriodKey  string          `json:"period_key"`
	Income     decimal.Decimal `json:"income"`
	Expenses   decimal.Decimal `json:"expenses"`
	Savings    decimal.Decimal `json:"savings"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Waterfall decomposes the matching transactions into total income, each
// expense category (largest first) and the resulting net savings.
func Waterfall(txs []core.Transaction, f Filter) []WaterfallEntry {
	f.Type = ""
	sum := Summarize(txs, f)
	cats := SortedCategoryAmounts(CategoryTotals(txs, core.Expense, f))

	out := make([]WaterfallEntry, 0, len(cats)+2)
	running := sum.Income
	out = append(out, WaterfallEntry{
		Label:        IncomeLabel,
		Kind:         KindIncome,
		Amount:       sum.Income,
		RunningTotal: running,
	})
	for _, c := range cats {
		running = running.Sub(c.Amount)
		out = append(out, WaterfallEntry{
			Label:        c.Name,
			Kind:         KindExpense,
			Amount:       c.Amount,
			RunningTotal: running,
		})
	}
	out = append(out, WaterfallEntry{
		Label:        SavingsLabel,
		Kind:         KindSavings,
		Amount:       sum.Savings(),
		RunningTotal: running,
	})
	return out
}

// MonthlyWaterfall returns the twelve months of year with their savings and
// the savings accumulated since January.
func MonthlyWaterfall(txs []core.Transaction, year int) []WaterfallStep {
	series := MonthlySeries(txs, year, Filter{})
	out := make([]WaterfallStep, len(series))
	cumulative := decimal.Zero
	for i, b := range series {
		s := b.Savings()
		cumulative = cumulative.Add(s)
		out[i] = WaterfallStep{
			PeriodKey:  b.PeriodKey,
			Income:     b.Income,
			Expenses:   b.Expenses,
			Savings:    s,
			Cumulative: cumulative,
		}
	}
	return out
}
