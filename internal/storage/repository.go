package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/sources"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores raw transaction records, budgets, the dataset
// revision and anomaly alerts.
type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

var (
	_ sources.Store      = (*SQLiteRepository)(nil)
	_ sources.AlertStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the API and the worker goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the database was brought to on open.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Snapshot implements sources.TransactionReader. Records, budgets and revision
// are read in one transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (sources.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := sources.Snapshot{Budgets: core.Budgets{}}
	if err := tx.QueryRowContext(ctx, `SELECT value FROM dataset_meta WHERE key = 'revision'`).Scan(&snap.Revision); err != nil {
		return sources.Snapshot{}, fmt.Errorf("read revision: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT record FROM transactions ORDER BY seq`)
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("list transactions: %w", err)
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return sources.Snapshot{}, fmt.Errorf("scan transaction: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			// Stored records are untrusted input; a broken one is handed to the
			// normalizer as nil and counted as dropped there.
			rec = nil
		}
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Close(); err != nil {
		return sources.Snapshot{}, err
	}
	if err := rows.Err(); err != nil {
		return sources.Snapshot{}, fmt.Errorf("iterate transactions: %w", err)
	}

	brows, err := tx.QueryContext(ctx, `SELECT month, category, limit_amount FROM budgets`)
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("list budgets: %w", err)
	}
	defer brows.Close()
	for brows.Next() {
		var month, category, limit string
		if err := brows.Scan(&month, &category, &limit); err != nil {
			return sources.Snapshot{}, fmt.Errorf("scan budget: %w", err)
		}
		d, err := decimal.NewFromString(limit)
		if err != nil || !d.IsPositive() {
			continue
		}
		snap.Budgets.Set(month, category, d)
	}
	if err := brows.Err(); err != nil {
		return sources.Snapshot{}, fmt.Errorf("iterate budgets: %w", err)
	}
	return snap, nil
}

// Revision implements sources.Revisioner
func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, `SELECT value FROM dataset_meta WHERE key = 'revision'`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

// Import implements sources.TransactionWriter
func (r *SQLiteRepository) Import(ctx context.Context, records []sources.Record, budgets core.Budgets, mode sources.ImportMode) (int64, error) {
	return r.write(ctx, func(tx *sql.Tx) error {
		if mode == sources.ImportReplace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
				return fmt.Errorf("clear transactions: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM budgets`); err != nil {
				return fmt.Errorf("clear budgets: %w", err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (id, record) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET record = excluded.record,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, rec := range records {
			raw, err := json.Marshal(rec.Data)
			if err != nil {
				return fmt.Errorf("encode record %s: %w", rec.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, string(raw)); err != nil {
				return fmt.Errorf("insert record %s: %w", rec.ID, err)
			}
		}

		for month, cats := range budgets {
			for category, limit := range cats {
				if err := upsertBudget(ctx, tx, month, category, limit); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteTransaction implements sources.TransactionWriter
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	return r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %q: %w", id, sources.ErrNotFound)
		}
		return nil
	})
}

// SetBudget implements sources.BudgetStore
func (r *SQLiteRepository) SetBudget(ctx context.Context, monthKey, category string, limit decimal.Decimal) (int64, error) {
	return r.write(ctx, func(tx *sql.Tx) error {
		return upsertBudget(ctx, tx, monthKey, category, limit)
	})
}

// DeleteBudget implements sources.BudgetStore
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, monthKey, category string) (int64, error) {
	return r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE month = ? AND category = ?`, monthKey, category)
		if err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("budget %s/%s: %w", monthKey, category, sources.ErrNotFound)
		}
		return nil
	})
}

// ReplaceAlerts implements sources.AlertStore
func (r *SQLiteRepository) ReplaceAlerts(ctx context.Context, year int, alerts []sources.Alert) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM anomaly_alerts WHERE year = ?`, year); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}
	for _, a := range alerts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anomaly_alerts (year, month, category, value, mean, std_dev, z_score, revision, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			year, a.Month, a.Category, a.Value, a.Mean, a.StdDev, a.ZScore, a.Revision,
			a.DetectedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert alert %s/%s: %w", a.Month, a.Category, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alerts: %w", err)
	}
	return nil
}

// ListAlerts implements sources.AlertStore
func (r *SQLiteRepository) ListAlerts(ctx context.Context, year int) ([]sources.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT year, month, category, value, mean, std_dev, z_score, revision, detected_at
		FROM anomaly_alerts WHERE year = ?
		ORDER BY z_score DESC, category, month`, year)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []sources.Alert
	for rows.Next() {
		var a sources.Alert
		var detected string
		if err := rows.Scan(&a.Year, &a.Month, &a.Category, &a.Value, &a.Mean, &a.StdDev, &a.ZScore, &a.Revision, &detected); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.DetectedAt, _ = time.Parse(time.RFC3339Nano, detected)
		out = append(out, a)
	}
	return out, rows.Err()
}

// write runs fn in a transaction and bumps the revision on success.
func (r *SQLiteRepository) write(ctx context.Context, fn func(tx *sql.Tx) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE dataset_meta SET value = value + 1 WHERE key = 'revision'`); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM dataset_meta WHERE key = 'revision'`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

func upsertBudget(ctx context.Context, tx *sql.Tx, month, category string, limit decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (month, category, limit_amount) VALUES (?, ?, ?)
		ON CONFLICT(month, category) DO UPDATE SET limit_amount = excluded.limit_amount`,
		month, category, limit.String())
	if err != nil {
		return fmt.Errorf("upsert budget %s/%s: %w", month, category, err)
	}
	return nil
}

func decodeRecord(raw string) (core.RawTransaction, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var rec core.RawTransaction
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
