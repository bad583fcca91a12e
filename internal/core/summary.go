package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Bucket is the aggregate of all transactions falling in one period.
type Bucket struct {
	PeriodKey string
	Income    decimal.Decimal
	Expenses  decimal.Decimal
	Count     int
}

// Savings is derived from the two running sums, never accumulated on its own.
func (b Bucket) Savings() decimal.Decimal {
	return b.Income.Sub(b.Expenses)
}

// IsEmpty reports whether no transaction contributed to the bucket.
func (b Bucket) IsEmpty() bool {
	return b.Count == 0
}

// Add folds a transaction into the bucket.
func (b *Bucket) Add(t Transaction) {
	if t.Type == Income {
		b.Income = b.Income.Add(t.Amount)
	} else {
		b.Expenses = b.Expenses.Add(t.Amount)
	}
	b.Count++
}

// MarshalJSON includes the derived savings so consumers never recompute it.
func (b Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PeriodKey string          `json:"period_key"`
		Income    decimal.Decimal `json:"income"`
		Expenses  decimal.Decimal `json:"expenses"`
		Savings   decimal.Decimal `json:"savings"`
		Count     int             `json:"count"`
	}{b.PeriodKey, b.Income, b.Expenses, b.Savings(), b.Count})
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}
