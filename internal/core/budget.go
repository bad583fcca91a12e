package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Budgets maps a month key (YYYY-MM) to the spending limit of each category.
type Budgets map[string]map[string]decimal.Decimal

// Month returns the limits of a month. A month without entries yields an
// empty, non-nil map.
func (b Budgets) Month(monthKey string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b[monthKey]))
	for cat, limit := range b[monthKey] {
		out[cat] = limit
	}
	return out
}

// Set stores a limit, creating the month when needed.
func (b Budgets) Set(monthKey, category string, limit decimal.Decimal) {
	cats, ok := b[monthKey]
	if !ok {
		cats = make(map[string]decimal.Decimal)
		b[monthKey] = cats
	}
	cats[category] = limit
}

// Delete removes a single limit. The month itself is kept even when empty.
func (b Budgets) Delete(monthKey, category string) {
	if cats, ok := b[monthKey]; ok {
		delete(cats, category)
	}
}

// Months returns the month keys in ascending order.
func (b Budgets) Months() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sanitize returns a copy without blank categories or non-positive limits.
func (b Budgets) Sanitize() Budgets {
	out := make(Budgets, len(b))
	for month, cats := range b {
		month = strings.TrimSpace(month)
		if month == "" {
			continue
		}
		clean := make(map[string]decimal.Decimal, len(cats))
		for cat, limit := range cats {
			cat = strings.TrimSpace(cat)
			if cat == "" || !limit.IsPositive() {
				continue
			}
			clean[cat] = limit
		}
		out[month] = clean
	}
	return out
}

// Clone returns a deep copy.
func (b Budgets) Clone() Budgets {
	out := make(Budgets, len(b))
	for month := range b {
		out[month] = b.Month(month)
	}
	return out
}
