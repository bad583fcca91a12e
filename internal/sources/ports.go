// Package sources defines where transaction records and budgets come from.
// Stores hand out raw records; turning them into transactions is the
// normalizer's job, so every backend is read through the same choke point.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	// ErrReadOnly is returned by stores that cannot be written to.
	ErrReadOnly = errors.New("data source is read-only")
	// ErrNotFound is returned when a record or budget does not exist.
	ErrNotFound = errors.New("not found")
)

type (
	// Record is a raw transaction keyed by its normalized id.
	Record struct {
		ID   string
		Data core.RawTransaction
	}

	// Snapshot is a consistent view of a dataset. Every view computed in one
	// request must come from the same snapshot.
	Snapshot struct {
		Records  []core.RawTransaction
		Budgets  core.Budgets
		Revision int64
	}

	// ImportMode selects how imported data combines with what is stored.
	ImportMode string

	// Alert is a stored anomaly flag for one category and month.
	Alert struct {
		Year       int       `json:"year"`
		Month      string    `json:"month"`
		Category   string    `json:"category"`
		Value      float64   `json:"value"`
		Mean       float64   `json:"mean"`
		StdDev     float64   `json:"std_dev"`
		ZScore     float64   `json:"z_score"`
		Revision   int64     `json:"revision"`
		DetectedAt time.Time `json:"detected_at"`
	}
)

const (
	// ImportReplace drops every stored record and budget first.
	ImportReplace ImportMode = "replace"
	// ImportMerge upserts records by id and budget limits by month and category.
	ImportMerge ImportMode = "merge"
)

// Ports for outbound adapters.
type (
	TransactionReader interface {
		Snapshot(ctx context.Context) (Snapshot, error)
	}

	// TransactionWriter mutates stored records. Every successful write bumps
	// the dataset revision and returns the new value.
	TransactionWriter interface {
		Import(ctx context.Context, records []Record, budgets core.Budgets, mode ImportMode) (revision int64, err error)
		DeleteTransaction(ctx context.Context, id string) (revision int64, err error)
	}

	BudgetStore interface {
		SetBudget(ctx context.Context, monthKey, category string, limit decimal.Decimal) (revision int64, err error)
		DeleteBudget(ctx context.Context, monthKey, category string) (revision int64, err error)
	}

	Revisioner interface {
		Revision(ctx context.Context) (int64, error)
	}

	// AlertStore keeps the anomaly alerts computed in the background.
	AlertStore interface {
		ReplaceAlerts(ctx context.Context, year int, alerts []Alert) error
		ListAlerts(ctx context.Context, year int) ([]Alert, error)
	}

	// Store is a full read-write backend.
	Store interface {
		TransactionReader
		TransactionWriter
		BudgetStore
		Revisioner
	}
)

// ParseImportMode accepts "replace" or "merge"; empty means merge.
func ParseImportMode(s string) (ImportMode, bool) {
	switch ImportMode(s) {
	case "", ImportMerge:
		return ImportMerge, true
	case ImportReplace:
		return ImportReplace, true
	default:
		return "", false
	}
}
