package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/worker"
)

const seed = `{"schemaVersion":2,"data":{"transactions":[
  {"id":"1","date":"2024-01-05","type":"expense","category":"Food","amount":12},
  {"date":"2024-01-06","amount":3}
],"budgets":{"2024-01":{"Food":100}}}}`

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("empty", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		if res.Store == nil || res.Alerts == nil {
			t.Fatal("memory backend should provide a store and an alert store")
		}
		if _, ok := res.Publisher.(*worker.AnomalyWorker); !ok {
			t.Errorf("memory backend publisher = %T, want the in-process anomaly worker", res.Publisher)
		}
		if err := res.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("seeded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
			t.Fatal(err)
		}
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: path, Location: time.UTC})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		snap, err := res.Store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if len(snap.Records) != 1 {
			t.Errorf("records = %d, want 1", len(snap.Records))
		}
		if _, ok := snap.Budgets["2024-01"]["Food"]; !ok {
			t.Error("seeded budget is missing")
		}
	})

	t.Run("missing seed file", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: filepath.Join(t.TempDir(), "nope.json")})
		if err == nil {
			t.Error("CreateBackend() should fail for a missing seed file")
		}
	})
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "fintrack.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if res.Alerts == nil {
		t.Error("sqlite backend should store alerts")
	}
	if res.Publisher != nil {
		t.Error("publisher should be nil without an AMQP URL")
	}
	rev, err := res.Store.Revision(ctx)
	if err != nil || rev != 0 {
		t.Errorf("Revision() = %d, %v; want 0", rev, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown type", Config{Type: "postgres"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "database path"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleTransactionsSheet: "T", GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleTransactionsSheet: "T"}, "GoogleServiceAccount"},
		{"memory", Config{Type: MemoryBackend}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}

	app := &config.Config{
		DataBackend:             "sheets",
		Timezone:                "UTC",
		GoogleSpreadsheetID:     "sheet-id",
		GoogleTransactionsSheet: "Transactions",
		GoogleBudgetsSheet:      "Budgets",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "sheet-id" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}

	app.DataBackend = "csv"
	if _, err := FromAppConfig(app); err == nil || !strings.Contains(err.Error(), "sqlite, sheets, memory") {
		t.Errorf("FromAppConfig() error = %v, want it to list the valid backends", err)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 3 || got[0] != "sqlite" || got[1] != "sheets" || got[2] != "memory" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}
