package backend

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/log"
	gsheet "fintrack/internal/sources/google"
	"fintrack/internal/sources/memory"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{
		Type:    SQLiteBackend,
		Store:   repo,
		Alerts:  repo,
		Cleanup: repo.Close,
	}

	// The change feed is optional; the API keeps working without it.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed",
				log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			result.Cleanup = func() error {
				clientErr := client.Close()
				if err := repo.Close(); err != nil {
					return err
				}
				return clientErr
			}
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion(),
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:     config.GoogleSpreadsheetID,
		TransactionsSheet: config.GoogleTransactionsSheet,
		BudgetsSheet:      config.GoogleBudgetsSheet,
		CredentialsJSON:   config.GoogleServiceAccountJSON,
		CredentialsFile:   config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend (read-only)",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"transactions_sheet", config.GoogleTransactionsSheet)

	return &BackendResult{
		Type:  SheetsBackend,
		Store: cli,
	}, nil
}

// createMemoryBackend keeps the dataset in this process, where no separate
// worker can read it. The anomaly worker therefore runs in-process and serves
// as the change feed.
func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	normalizer := analytics.Normalizer{Location: config.Location, StrictDates: config.StrictDates}

	store := memory.New()
	if config.SeedFile != "" {
		seeded, dropped, err := memory.NewFromBackup(config.SeedFile, normalizer)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
		store = seeded
		f.logger.Info("Initialized memory backend",
			"seed_file", config.SeedFile,
			log.FieldDroppedRecords, dropped)
	} else {
		f.logger.Info("Initialized empty memory backend")
	}

	anomalies := worker.NewAnomalyWorker(store, store, normalizer, config.AnomalyZThreshold, f.logger)
	if err := anomalies.StartupCheck(ctx); err != nil {
		return nil, fmt.Errorf("compute initial anomaly alerts: %w", err)
	}

	return &BackendResult{
		Type:      MemoryBackend,
		Store:     store,
		Alerts:    store,
		Publisher: anomalies,
	}, nil
}
