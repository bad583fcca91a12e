package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/sources"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(id, date, typ, category string, amount float64) sources.Record {
	return sources.Record{ID: id, Data: core.RawTransaction{
		"id": id, "date": date, "type": typ, "category": category, "amount": amount,
	}}
}

func TestSQLiteRepository_MigratesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	if got := repo.SchemaVersion(); got != 2 {
		t.Errorf("SchemaVersion() = %d, want 2", got)
	}
	repo.Close()

	// Reopening an up-to-date database is a no-op migration.
	version, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("RunMigrations() on migrated db error = %v", err)
	}
	if version != 2 {
		t.Errorf("RunMigrations() version = %d, want 2", version)
	}
}

func TestSQLiteRepository_ImportAndSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if rev, err := repo.Revision(ctx); err != nil || rev != 0 {
		t.Fatalf("initial Revision() = %d, %v", rev, err)
	}

	budgets := core.Budgets{}
	budgets.Set("2024-01", "Food", decimal.RequireFromString("250.75"))
	rev, err := repo.Import(ctx, []sources.Record{
		record("b", "2024-01-02", "expense", "Food", 19.99),
		record("a", "2024-01-01", "income", "Salary", 1500),
	}, budgets, sources.ImportReplace)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rev != 1 {
		t.Errorf("Import() revision = %d, want 1", rev)
	}

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Revision != 1 || len(snap.Records) != 2 {
		t.Fatalf("Snapshot() = revision %d, %d records", snap.Revision, len(snap.Records))
	}
	if snap.Records[0]["id"] != "b" {
		t.Errorf("records should keep insertion order, first = %v", snap.Records[0]["id"])
	}
	if !snap.Budgets.Month("2024-01")["Food"].Equal(decimal.RequireFromString("250.75")) {
		t.Errorf("budget = %v", snap.Budgets)
	}

	txs, dropped := analytics.Normalizer{Location: time.UTC}.Normalize(snap.Records)
	if dropped != 0 || len(txs) != 2 {
		t.Fatalf("Normalize() = %d, dropped %d", len(txs), dropped)
	}
	if !txs[0].Amount.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("amount round trip = %s, want 19.99", txs[0].Amount)
	}
}

func TestSQLiteRepository_MergeUpserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	repo.Import(ctx, []sources.Record{record("a", "2024-01-01", "expense", "Food", 1)}, nil, sources.ImportMerge)
	repo.Import(ctx, []sources.Record{
		record("a", "2024-01-01", "expense", "Food", 5),
		record("c", "2024-01-03", "expense", "Fun", 2),
	}, nil, sources.ImportMerge)

	snap, _ := repo.Snapshot(ctx)
	if len(snap.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(snap.Records))
	}
	if snap.Records[0]["id"] != "a" || fmt.Sprint(snap.Records[0]["amount"]) != "5" {
		t.Errorf("upsert should replace a in place: %v", snap.Records[0])
	}
	if snap.Revision != 2 {
		t.Errorf("revision = %d, want 2", snap.Revision)
	}
}

func TestSQLiteRepository_DeleteAndBudgets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.Import(ctx, []sources.Record{record("a", "2024-01-01", "expense", "Food", 1)}, nil, sources.ImportMerge)

	if _, err := repo.DeleteTransaction(ctx, "missing"); !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("DeleteTransaction(missing) error = %v, want ErrNotFound", err)
	}
	if rev, _ := repo.Revision(ctx); rev != 1 {
		t.Errorf("failed write must not bump revision, got %d", rev)
	}
	if _, err := repo.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.SetBudget(ctx, "2024-02", "Rent", decimal.NewFromInt(700)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SetBudget(ctx, "2024-02", "Rent", decimal.NewFromInt(750)); err != nil {
		t.Fatal(err)
	}
	snap, _ := repo.Snapshot(ctx)
	if !snap.Budgets.Month("2024-02")["Rent"].Equal(decimal.NewFromInt(750)) {
		t.Errorf("SetBudget should overwrite, got %v", snap.Budgets)
	}
	if len(snap.Records) != 0 {
		t.Errorf("records after delete = %d", len(snap.Records))
	}

	if _, err := repo.DeleteBudget(ctx, "2024-02", "Rent"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.DeleteBudget(ctx, "2024-02", "Rent"); !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("DeleteBudget twice error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Alerts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	err := repo.ReplaceAlerts(ctx, 2024, []sources.Alert{
		{Year: 2024, Month: "2024-03", Category: "Food", Value: 400, Mean: 200, StdDev: 141.42, ZScore: 1.41, Revision: 3, DetectedAt: now},
		{Year: 2024, Month: "2024-02", Category: "Fun", Value: 900, Mean: 100, StdDev: 200, ZScore: 4, Revision: 3, DetectedAt: now},
	})
	if err != nil {
		t.Fatalf("ReplaceAlerts() error = %v", err)
	}
	got, err := repo.ListAlerts(ctx, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Category != "Fun" {
		t.Fatalf("ListAlerts() = %+v", got)
	}
	if !got[0].DetectedAt.Equal(now) {
		t.Errorf("DetectedAt = %v, want %v", got[0].DetectedAt, now)
	}

	if err := repo.ReplaceAlerts(ctx, 2024, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.ListAlerts(ctx, 2024); len(got) != 0 {
		t.Errorf("alerts after replace with nil = %d", len(got))
	}
}
