package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/backup"
	"fintrack/internal/core"
	"fintrack/internal/sources"
)

// Store keeps records, budgets and alerts in process memory. Records keep
// their insertion order so snapshots are stable.
type Store struct {
	mu       sync.Mutex
	order    []string
	records  map[string]core.RawTransaction
	budgets  core.Budgets
	alerts   map[int][]sources.Alert
	revision int64
}

var (
	_ sources.Store      = (*Store)(nil)
	_ sources.AlertStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		records: make(map[string]core.RawTransaction),
		budgets: core.Budgets{},
		alerts:  make(map[int][]sources.Alert),
	}
}

// NewFromBackup seeds a store from a backup file. It returns the number of
// records the backup contained but could not be used.
func NewFromBackup(path string, n analytics.Normalizer) (*Store, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	res, err := backup.Parse(f, n)
	if err != nil {
		return nil, 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	s := New()
	recs := make([]sources.Record, len(res.Records))
	for i, raw := range res.Records {
		recs[i] = sources.Record{ID: res.Transactions[i].ID, Data: raw}
	}
	if _, err := s.Import(context.Background(), recs, res.Data.Budgets, sources.ImportReplace); err != nil {
		return nil, 0, err
	}
	return s, res.Dropped, nil
}

// Snapshot implements sources.TransactionReader
func (s *Store) Snapshot(_ context.Context) (sources.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]core.RawTransaction, 0, len(s.order))
	for _, id := range s.order {
		recs = append(recs, s.records[id])
	}
	return sources.Snapshot{Records: recs, Budgets: s.budgets.Clone(), Revision: s.revision}, nil
}

// Revision implements sources.Revisioner
func (s *Store) Revision(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision, nil
}

// Import implements sources.TransactionWriter
func (s *Store) Import(_ context.Context, records []sources.Record, budgets core.Budgets, mode sources.ImportMode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == sources.ImportReplace {
		s.order = nil
		s.records = make(map[string]core.RawTransaction, len(records))
		s.budgets = core.Budgets{}
	}
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r.Data
	}
	for month, cats := range budgets {
		if _, ok := s.budgets[month]; !ok {
			s.budgets[month] = make(map[string]decimal.Decimal)
		}
		for cat, limit := range cats {
			s.budgets.Set(month, cat, limit)
		}
	}
	s.revision++
	return s.revision, nil
}

// DeleteTransaction implements sources.TransactionWriter
func (s *Store) DeleteTransaction(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return 0, fmt.Errorf("transaction %q: %w", id, sources.ErrNotFound)
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.revision++
	return s.revision, nil
}

// SetBudget implements sources.BudgetStore
func (s *Store) SetBudget(_ context.Context, monthKey, category string, limit decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets.Set(monthKey, category, limit)
	s.revision++
	return s.revision, nil
}

// DeleteBudget implements sources.BudgetStore
func (s *Store) DeleteBudget(_ context.Context, monthKey, category string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[monthKey][category]; !ok {
		return 0, fmt.Errorf("budget %s/%s: %w", monthKey, category, sources.ErrNotFound)
	}
	s.budgets.Delete(monthKey, category)
	s.revision++
	return s.revision, nil
}

// ReplaceAlerts implements sources.AlertStore
func (s *Store) ReplaceAlerts(_ context.Context, year int, alerts []sources.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[year] = append([]sources.Alert(nil), alerts...)
	return nil
}

// ListAlerts implements sources.AlertStore
func (s *Store) ListAlerts(_ context.Context, year int) ([]sources.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]sources.Alert(nil), s.alerts[year]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	return out, nil
}
