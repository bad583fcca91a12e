package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/backup"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sources"
)

var (
	ErrEmptyCategory = errors.New("category is required")
	ErrInvalidLimit  = errors.New("budget limit must be a positive amount")
	ErrEmptyID       = errors.New("transaction id is required")
	ErrEmptyBackup   = errors.New("backup contains no usable data")
)

// Publisher announces dataset changes to other processes.
type Publisher interface {
	PublishDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error
}

// ImportResult describes what an import stored.
type ImportResult struct {
	Revision int64              `json:"revision"`
	Mode     sources.ImportMode `json:"mode"`
	Imported int                `json:"imported"`
	Dropped  int                `json:"dropped"`
	Warnings []string           `json:"warnings"`
	Summary  backup.Summary     `json:"summary"`
}

// LedgerService orchestrates writes across the store and the change feed.
// The store is the source of truth; a failed publish is logged, never returned.
type LedgerService struct {
	store      sources.Store
	publisher  Publisher
	normalizer analytics.Normalizer
	logger     *log.Logger
	now        func() time.Time
}

// NewLedgerService creates a ledger over store. publisher and logger may be nil.
func NewLedgerService(store sources.Store, publisher Publisher, normalizer analytics.Normalizer, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:      store,
		publisher:  publisher,
		normalizer: normalizer,
		logger:     logger.WithComponent(log.ComponentLedger),
		now:        time.Now,
	}
}

// Import parses a backup document and stores its records and budgets.
func (s *LedgerService) Import(ctx context.Context, r io.Reader, mode sources.ImportMode) (ImportResult, error) {
	res, err := backup.Parse(r, s.normalizer)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse backup: %w", err)
	}
	if mode == sources.ImportMerge && len(res.Records) == 0 && len(res.Data.Budgets) == 0 {
		return ImportResult{}, ErrEmptyBackup
	}

	records := make([]sources.Record, len(res.Records))
	for i, raw := range res.Records {
		records[i] = sources.Record{ID: res.Transactions[i].ID, Data: raw}
	}

	rev, err := s.store.Import(ctx, records, res.Data.Budgets, mode)
	if err != nil {
		return ImportResult{}, fmt.Errorf("store import: %w", err)
	}

	structured := log.NewStructuredLogger(s.logger)
	structured.LogImport(ctx, rev, len(records), res.Dropped)

	// A replace can remove data from any year.
	var years []int
	if mode == sources.ImportMerge {
		years = analytics.Years(res.Transactions)
	}
	s.publish(ctx, amqp.NewDatasetChangedMessage(rev, amqp.ReasonImport, years))

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ImportResult{
		Revision: rev,
		Mode:     mode,
		Imported: len(records),
		Dropped:  res.Dropped,
		Warnings: warnings,
		Summary:  res.Summary,
	}, nil
}

// AddTransactions validates entry and stores the records it expands into,
// merging them with the stored dataset. Every record passes through the
// normalizer first, so it reads back exactly as stored.
func (s *LedgerService) AddTransactions(ctx context.Context, entry TransactionEntry) (AddResult, error) {
	loc := s.normalizer.Location
	if loc == nil {
		loc = time.Local
	}
	raws, groupID, err := entry.expand(loc, s.now().In(loc))
	if err != nil {
		return AddResult{}, err
	}

	records := make([]sources.Record, 0, len(raws))
	txs := make([]core.Transaction, 0, len(raws))
	res := AddResult{IDs: make([]string, 0, len(raws)), GroupID: groupID}
	for _, raw := range raws {
		t, ok := s.normalizer.NormalizeOne(raw)
		if !ok {
			return AddResult{}, invalidEntry("record dated %v cannot be stored", raw["date"])
		}
		if err := t.Validate(); err != nil {
			return AddResult{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		if !t.Amount.IsPositive() {
			return AddResult{}, invalidEntry("amount %s is out of range", raw["amount"])
		}
		records = append(records, sources.Record{ID: t.ID, Data: raw})
		txs = append(txs, t)
		res.IDs = append(res.IDs, t.ID)
		res.Total = res.Total.Add(t.Amount)
		res.Net = res.Net.Add(t.Signed())
	}

	rev, err := s.store.Import(ctx, records, nil, sources.ImportMerge)
	if err != nil {
		return AddResult{}, fmt.Errorf("store transactions: %w", err)
	}
	res.Revision = rev

	s.logger.WithRevision(rev).InfoContext(ctx, "Transactions added",
		log.FieldOperation, log.OpCreate,
		log.FieldTransactions, len(records),
		"group_id", groupID)
	s.publish(ctx, amqp.NewDatasetChangedMessage(rev, amqp.ReasonAddTransactions, analytics.Years(txs)))
	return res, nil
}

// SetBudget sets the limit of category in monthKey.
func (s *LedgerService) SetBudget(ctx context.Context, monthKey, category string, limit decimal.Decimal) (int64, error) {
	start, err := analytics.ParseMonthKey(monthKey, time.UTC)
	if err != nil {
		return 0, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, ErrEmptyCategory
	}
	if !limit.IsPositive() {
		return 0, ErrInvalidLimit
	}

	rev, err := s.store.SetBudget(ctx, monthKey, category, limit)
	if err != nil {
		return 0, fmt.Errorf("set budget: %w", err)
	}
	s.logger.WithRevision(rev).InfoContext(ctx, "Budget set",
		log.FieldOperation, log.OpUpdate,
		log.FieldMonth, monthKey,
		log.FieldCategory, category)
	s.publish(ctx, amqp.NewDatasetChangedMessage(rev, amqp.ReasonBudgetSet, []int{start.Year()}))
	return rev, nil
}

// DeleteBudget removes the limit of category in monthKey.
func (s *LedgerService) DeleteBudget(ctx context.Context, monthKey, category string) (int64, error) {
	start, err := analytics.ParseMonthKey(monthKey, time.UTC)
	if err != nil {
		return 0, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, ErrEmptyCategory
	}

	rev, err := s.store.DeleteBudget(ctx, monthKey, category)
	if err != nil {
		return 0, fmt.Errorf("delete budget: %w", err)
	}
	s.logger.WithRevision(rev).InfoContext(ctx, "Budget deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldMonth, monthKey,
		log.FieldCategory, category)
	s.publish(ctx, amqp.NewDatasetChangedMessage(rev, amqp.ReasonBudgetDelete, []int{start.Year()}))
	return rev, nil
}

// DeleteTransaction removes the record with the given id.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, ErrEmptyID
	}
	years := s.yearsOf(ctx, id)

	rev, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.logger.WithRevision(rev).InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		"id", id)
	s.publish(ctx, amqp.NewDatasetChangedMessage(rev, amqp.ReasonDeleteTransaction, years))
	return rev, nil
}

// yearsOf finds the year of the transaction about to be deleted. A nil result
// tells consumers to recompute every year.
func (s *LedgerService) yearsOf(ctx context.Context, id string) []int {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil
	}
	txs, _ := s.normalizer.Normalize(snap.Records)
	for _, t := range txs {
		if t.ID == id {
			return []int{t.Date.Year()}
		}
	}
	return nil
}

// Export builds a backup document from the stored data.
func (s *LedgerService) Export(ctx context.Context, currency string) (backup.Document, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return backup.Document{}, fmt.Errorf("load snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Exporting backup",
		log.FieldOperation, log.OpRead,
		log.FieldRevision, snap.Revision,
		log.FieldTransactions, len(snap.Records))
	return backup.Build(snap.Records, snap.Budgets, currency, s.now()), nil
}

// Change feed states reported by ChangeFeedStatus.
const (
	FeedDisabled = "disabled"
	FeedOK       = "ok"
	FeedDegraded = "degraded"
)

// ChangeFeedStatus reports whether change events can currently be delivered.
// Publishers that cannot tell are assumed healthy.
func (s *LedgerService) ChangeFeedStatus() string {
	if s.publisher == nil {
		return FeedDisabled
	}
	if h, ok := s.publisher.(interface{ Healthy() bool }); ok && !h.Healthy() {
		return FeedDegraded
	}
	return FeedOK
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.DatasetChangedMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping change event",
			log.FieldRevision, msg.Revision)
		return
	}
	if err := s.publisher.PublishDatasetChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dataset change",
			log.FieldOperation, log.OpPublish,
			log.FieldRevision, msg.Revision,
			log.FieldMessageID, msg.ID,
			log.FieldError, err)
	}
}

// Close closes the publisher and the store when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
