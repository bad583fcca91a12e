package google

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
)

func TestParseTransactions(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Amount", "Category", "Type", "ID", "Note", "Ignored"},
		{"2024-01-05", 12.5, "Food", "expense", "t1", "lunch", "x"},
		{"2024-01-06", "1.234,50", "", "income", "t2"},
		{"", "", ""},
		{"2024-01-07", "3,75", "Fun", "expense", float64(42)},
	}

	recs := parseTransactions(values)
	if len(recs) != 3 {
		t.Fatalf("parseTransactions() returned %d records, want 3", len(recs))
	}
	if recs[0]["description"] != "lunch" {
		t.Errorf("Note column should map to description, got %v", recs[0])
	}
	if _, ok := recs[0]["Ignored"]; ok {
		t.Error("unknown columns must be dropped")
	}

	txs, dropped := analytics.Normalizer{Location: time.UTC}.Normalize(recs)
	if dropped != 0 || len(txs) != 3 {
		t.Fatalf("Normalize() = %d txs, %d dropped", len(txs), dropped)
	}
	want := []string{"12.5", "1234.5", "3.75"}
	for i, w := range want {
		if !txs[i].Amount.Equal(decimal.RequireFromString(w)) {
			t.Errorf("tx %d amount = %s, want %s", i, txs[i].Amount, w)
		}
	}
	if txs[1].Category != "Other" {
		t.Errorf("blank category = %q, want Other", txs[1].Category)
	}
	if txs[2].ID != "42" {
		t.Errorf("numeric id = %q, want 42", txs[2].ID)
	}
}

func TestParseBudgets(t *testing.T) {
	values := [][]interface{}{
		{"Month", "Category", "Limit"},
		{"2024-01", "Food", 300},
		{"2024-01", "Rent", "700,50"},
		{"2024-01", "Fun", 0},
		{"", "Food", 10},
	}
	b := parseBudgets(values)
	jan := b.Month("2024-01")
	if len(jan) != 2 {
		t.Fatalf("budget categories = %d, want 2: %v", len(jan), jan)
	}
	if !jan["Rent"].Equal(decimal.RequireFromString("700.50")) {
		t.Errorf("Rent = %s", jan["Rent"])
	}

	if got := parseBudgets([][]interface{}{{"A", "B"}, {"x", "y"}}); len(got) != 0 {
		t.Errorf("unexpected header should yield no budgets, got %v", got)
	}
}
