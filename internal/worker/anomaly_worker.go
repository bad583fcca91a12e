package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/log"
	"fintrack/internal/sources"
)

// maxConcurrentYears bounds how many years are recomputed at once.
const maxConcurrentYears = 4

// AnomalyWorker keeps the stored anomaly alerts in step with the dataset.
// Change messages trigger a recompute of the years they name; a periodic
// reconcile catches up when messages were lost.
type AnomalyWorker struct {
	reader     sources.TransactionReader
	alerts     sources.AlertStore
	normalizer analytics.Normalizer
	zThreshold float64
	logger     *log.Logger
	now        func() time.Time

	mu            sync.Mutex
	lastRevision  int64
	computedYears map[int]struct{}
}

func NewAnomalyWorker(reader sources.TransactionReader, alerts sources.AlertStore, normalizer analytics.Normalizer, zThreshold float64, logger *log.Logger) *AnomalyWorker {
	if zThreshold <= 0 {
		zThreshold = analytics.DefaultZThreshold
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AnomalyWorker{
		reader:        reader,
		alerts:        alerts,
		normalizer:    normalizer,
		zThreshold:    zThreshold,
		logger:        logger.WithComponent(log.ComponentWorker),
		now:           time.Now,
		lastRevision:  -1,
		computedYears: make(map[int]struct{}),
	}
}

// HandleDatasetChanged processes a single change message from AMQP.
func (w *AnomalyWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing dataset changed message",
		log.FieldMessageID, msg.ID,
		log.FieldRevision, msg.Revision,
		"reason", msg.Reason,
		"years", msg.Years)

	if msg.Revision <= w.LastRevision() {
		w.logger.DebugContext(ctx, "Skipping message for an already processed revision",
			log.FieldMessageID, msg.ID,
			log.FieldRevision, msg.Revision)
		return nil
	}
	_, err := w.Recompute(ctx, msg.Years)
	return err
}

// PublishDatasetChanged handles msg synchronously. It lets a process whose
// dataset no other process can read act as its own change feed.
func (w *AnomalyWorker) PublishDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	return w.HandleDatasetChanged(ctx, msg)
}

// StartupCheck recomputes every year, covering messages missed while the
// worker was down.
func (w *AnomalyWorker) StartupCheck(ctx context.Context) error {
	n, err := w.Recompute(ctx, nil)
	if err != nil {
		return fmt.Errorf("startup recompute: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup anomaly check completed", "years", n)
	return nil
}

// Reconcile recomputes everything when the stored revision moved past the
// last one processed. It is a backup for lost messages.
func (w *AnomalyWorker) Reconcile(ctx context.Context) error {
	rv, ok := w.reader.(sources.Revisioner)
	if !ok {
		_, err := w.Recompute(ctx, nil)
		return err
	}
	rev, err := rv.Revision(ctx)
	if err != nil {
		return fmt.Errorf("read revision: %w", err)
	}
	if rev <= w.LastRevision() {
		return nil
	}
	w.logger.InfoContext(ctx, "Dataset moved on without a message, recomputing",
		log.FieldRevision, rev)
	_, err = w.Recompute(ctx, nil)
	return err
}

// Recompute stores fresh alerts for years, or for every known year when years
// is empty. It returns the number of years written.
func (w *AnomalyWorker) Recompute(ctx context.Context, years []int) (int, error) {
	snap, err := w.reader.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	txs, dropped := w.normalizer.Normalize(snap.Records)

	targets := years
	if len(targets) == 0 {
		targets = w.allYears(analytics.Years(txs))
	}

	detectedAt := w.now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentYears)
	for _, year := range targets {
		g.Go(func() error {
			flags, err := analytics.DetectAnomalies(txs, year, w.zThreshold)
			if err != nil {
				return fmt.Errorf("detect anomalies for %d: %w", year, err)
			}
			alerts := make([]sources.Alert, len(flags))
			for i, f := range flags {
				alerts[i] = sources.Alert{
					Year:       year,
					Month:      f.MonthKey(year),
					Category:   f.Category,
					Value:      f.Value,
					Mean:       f.Mean,
					StdDev:     f.StdDev,
					ZScore:     f.ZScore,
					Revision:   snap.Revision,
					DetectedAt: detectedAt,
				}
			}
			if err := w.alerts.ReplaceAlerts(gctx, year, alerts); err != nil {
				return fmt.Errorf("store alerts for %d: %w", year, err)
			}
			w.logger.DebugContext(gctx, "Stored anomaly alerts",
				log.FieldOperation, log.OpDetect,
				log.FieldYear, year,
				log.FieldAnomalies, len(alerts))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	// Only a full pass proves every year is current at this revision.
	if len(years) == 0 && snap.Revision > w.lastRevision {
		w.lastRevision = snap.Revision
	}
	for _, y := range targets {
		w.computedYears[y] = struct{}{}
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Anomaly alerts recomputed",
		append(log.NewFields().
			WithOperation(log.OpDetect).
			WithDataset(snap.Revision, len(txs), dropped).
			ToSlice(), "years", targets)...)
	return len(targets), nil
}

// allYears adds the years computed earlier to the years in the data, so a
// year whose transactions all disappeared gets its alerts cleared.
func (w *AnomalyWorker) allYears(dataYears []int) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := make(map[int]struct{}, len(dataYears)+len(w.computedYears))
	for _, y := range dataYears {
		set[y] = struct{}{}
	}
	for y := range w.computedYears {
		set[y] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for y := range set {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// LastRevision returns the revision of the last full recompute, or -1.
func (w *AnomalyWorker) LastRevision() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRevision
}
