package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:       "1",
		Date:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:     Expense,
		Category: "Food",
		Amount:   decimal.NewFromInt(10),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{ID: "", Date: good.Date, Type: Expense, Category: "c", Amount: decimal.NewFromInt(1)},
		{ID: "1", Type: Expense, Category: "c", Amount: decimal.NewFromInt(1)}, // zero date
		{ID: "1", Date: good.Date, Type: "refund", Category: "c", Amount: decimal.NewFromInt(1)},
		{ID: "1", Date: good.Date, Type: Income, Category: " ", Amount: decimal.NewFromInt(1)},
		{ID: "1", Date: good.Date, Type: Income, Category: "c", Amount: decimal.NewFromInt(-1)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseTxType(t *testing.T) {
	if tt, err := ParseTxType(" Income "); err != nil || tt != Income {
		t.Fatalf("expected income, got %q (err=%v)", tt, err)
	}
	if _, err := ParseTxType("transfer"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestBucketSavingsIsDerived(t *testing.T) {
	var b Bucket
	b.Add(Transaction{Type: Income, Amount: decimal.RequireFromString("0.1")})
	b.Add(Transaction{Type: Income, Amount: decimal.RequireFromString("0.2")})
	b.Add(Transaction{Type: Expense, Amount: decimal.RequireFromString("0.3")})
	if !b.Savings().IsZero() {
		t.Fatalf("expected exact zero savings, got %s", b.Savings())
	}
	if b.Count != 3 {
		t.Fatalf("expected count 3, got %d", b.Count)
	}
}

func TestBudgetsSanitize(t *testing.T) {
	b := Budgets{
		"2026-03": {"Food": decimal.NewFromInt(500), "Fun": decimal.Zero, " ": decimal.NewFromInt(1)},
		"2026-04": {"Rent": decimal.NewFromInt(-5)},
	}
	clean := b.Sanitize()
	if len(clean["2026-03"]) != 1 {
		t.Fatalf("expected one valid limit in March, got %v", clean["2026-03"])
	}
	apr, ok := clean["2026-04"]
	if !ok || len(apr) != 0 {
		t.Fatalf("expected empty but present April, got %v (present=%v)", apr, ok)
	}
	if len(b["2026-03"]) != 3 {
		t.Fatalf("sanitize must not mutate the receiver")
	}
}

func TestBudgetsMonthReturnsEmptyMap(t *testing.T) {
	var b Budgets
	m := b.Month("2030-01")
	if m == nil || len(m) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", m)
	}
}
