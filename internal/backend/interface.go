package backend

import (
	"context"
	"time"

	"fintrack/internal/services"
	"fintrack/internal/sources"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Type BackendType
	// Store serves reads and writes. Read-only sources answer writes with
	// sources.ErrReadOnly.
	Store sources.Store
	// Alerts is nil when the backend keeps no anomaly alerts.
	Alerts sources.AlertStore
	// Publisher is nil when no change feed is configured. The memory backend
	// feeds its in-process anomaly worker.
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Location drives the calendar used when seeding from a backup
	Location *time.Location

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleTransactionsSheet  string
	GoogleBudgetsSheet       string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Memory backend specific. The in-process anomaly worker normalizes with
	// Location and StrictDates.
	SeedFile          string
	StrictDates       bool
	AnomalyZThreshold float64
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
