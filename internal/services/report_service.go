package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sources"
)

// ErrAlertsUnavailable is returned when the backend keeps no anomaly alerts.
var ErrAlertsUnavailable = errors.New("anomaly alerts are not stored by this backend")

// Dataset is one normalized snapshot. Every view of a request is computed from
// the same Dataset.
type Dataset struct {
	Revision     int64
	Records      []core.RawTransaction
	Transactions []core.Transaction
	Budgets      core.Budgets
	Dropped      int
}

// ReportConfig tunes a ReportService. Zero values fall back to defaults.
type ReportConfig struct {
	Location   *time.Location
	Horizon    int
	ZThreshold float64
	CacheSize  int
	CacheTTL   time.Duration
	Now        func() time.Time
	Logger     *log.Logger
}

// ReportService serves computed views over whatever backend it reads from.
// Results are cached per dataset revision; a new revision purges the cache.
type ReportService struct {
	reader     sources.TransactionReader
	alerts     sources.AlertStore
	normalizer analytics.Normalizer
	cache      *cache.LRUCache[any]
	horizon    int
	zThreshold float64
	now        func() time.Time
	logger     *log.Logger

	mu           sync.Mutex
	lastRevision int64
}

func NewReportService(reader sources.TransactionReader, cfg ReportConfig) *ReportService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = analytics.DefaultHorizon
	}
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = analytics.DefaultZThreshold
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	loc := cfg.Location
	nowFn := cfg.Now
	s := &ReportService{
		reader: reader,
		normalizer: analytics.Normalizer{
			Location: loc,
			Now:      func() time.Time { return nowFn().In(loc) },
		},
		cache:        cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL),
		horizon:      cfg.Horizon,
		zThreshold:   cfg.ZThreshold,
		now:          func() time.Time { return nowFn().In(loc) },
		logger:       cfg.Logger.WithComponent(log.ComponentReport),
		lastRevision: -1,
	}
	if as, ok := reader.(sources.AlertStore); ok {
		s.alerts = as
	}
	return s
}

// Cache exposes the result cache so it can be registered for cleanup.
func (s *ReportService) Cache() *cache.LRUCache[any] {
	return s.cache
}

// Normalizer returns the normalizer the service reads data through.
func (s *ReportService) Normalizer() analytics.Normalizer {
	return s.normalizer
}

// Dataset loads the current snapshot, normalized once per revision.
func (s *ReportService) Dataset(ctx context.Context) (*Dataset, error) {
	if rev, ok := s.knownRevision(ctx); ok {
		if v, ok := s.cache.Get(datasetKey(rev)); ok {
			return v.(*Dataset), nil
		}
	}

	snap, err := s.reader.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.observeRevision(snap.Revision)

	txs, dropped := s.normalizer.Normalize(snap.Records)
	ds := &Dataset{
		Revision:     snap.Revision,
		Records:      snap.Records,
		Transactions: txs,
		Budgets:      snap.Budgets,
		Dropped:      dropped,
	}
	if ds.Budgets == nil {
		ds.Budgets = core.Budgets{}
	}
	s.cache.Set(datasetKey(snap.Revision), ds)

	fields := log.NewFields().
		WithOperation(log.OpNormalize).
		WithDataset(ds.Revision, len(txs), dropped)
	if dropped > 0 {
		s.logger.WarnContext(ctx, "Dropped unusable transaction records", fields.ToSlice()...)
	} else {
		s.logger.DebugContext(ctx, "Loaded dataset", fields.ToSlice()...)
	}
	return ds, nil
}

// knownRevision asks the reader for its revision. Readers that cannot tell
// reuse the last loaded dataset until it expires from the cache.
func (s *ReportService) knownRevision(ctx context.Context) (int64, bool) {
	if rv, ok := s.reader.(sources.Revisioner); ok {
		rev, err := rv.Revision(ctx)
		if err != nil {
			return 0, false
		}
		s.observeRevision(rev)
		return rev, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRevision, s.lastRevision >= 0
}

// observeRevision purges cached views when the dataset moved on.
func (s *ReportService) observeRevision(rev int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev == s.lastRevision {
		return
	}
	if s.lastRevision >= 0 {
		purged := s.cache.Purge()
		s.logger.Debug("Dataset revision changed, purged report cache",
			log.FieldRevision, rev, "purged", purged)
	}
	s.lastRevision = rev
}

func datasetKey(rev int64) string {
	return fmt.Sprintf("%d|dataset", rev)
}

// cached computes a view once per dataset revision and parameter set.
func cached[T any](s *ReportService, ds *Dataset, key string, compute func() (T, error)) (T, error) {
	full := fmt.Sprintf("%d|%s", ds.Revision, key)
	if v, ok := s.cache.Get(full); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	s.cache.Set(full, v)
	return v, nil
}

func filterKey(f analytics.Filter) string {
	rng := "-"
	if f.Range != nil {
		rng = fmt.Sprintf("%d..%d", f.Range.Start.UnixNano(), f.Range.End.UnixNano())
	}
	return fmt.Sprintf("%s|%d|%q|%s", rng, f.Year, f.Category, f.Type)
}

// Summary totals the filtered transactions with per-category breakdowns.
func (s *ReportService) Summary(ctx context.Context, f analytics.Filter) (SummaryView, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return SummaryView{}, err
	}
	return cached(s, ds, "summary|"+filterKey(f), func() (SummaryView, error) {
		return summaryView(ds, f), nil
	})
}

func summaryView(ds *Dataset, f analytics.Filter) SummaryView {
	incomeFilter, expenseFilter := f, f
	incomeFilter.Type, expenseFilter.Type = "", ""
	return SummaryView{
		Revision: ds.Revision,
		Totals:   analytics.Summarize(ds.Transactions, f),
		ExpensesByCategory: analytics.SortedCategoryAmounts(
			analytics.CategoryTotals(ds.Transactions, core.Expense, expenseFilter)),
		IncomeByCategory: analytics.SortedCategoryAmounts(
			analytics.CategoryTotals(ds.Transactions, core.Income, incomeFilter)),
	}
}

// Aggregates buckets the filtered transactions by month or year, oldest first.
func (s *ReportService) Aggregates(ctx context.Context, g analytics.Granularity, f analytics.Filter) (AggregatesView, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return AggregatesView{}, err
	}
	key := fmt.Sprintf("aggregates|%s|%s", g, filterKey(f))
	return cached(s, ds, key, func() (AggregatesView, error) {
		buckets, err := analytics.Aggregate(ds.Transactions, g, f)
		if err != nil {
			return AggregatesView{}, err
		}
		view := AggregatesView{
			Revision:    ds.Revision,
			Granularity: g,
			Buckets:     make([]core.Bucket, 0, len(buckets)),
		}
		for _, k := range analytics.SortedKeys(buckets) {
			view.Buckets = append(view.Buckets, buckets[k])
		}
		s.logger.DebugContext(ctx, "Aggregated transactions",
			log.FieldOperation, log.OpAggregate,
			log.FieldGranularity, string(g),
			"buckets", len(view.Buckets))
		return view, nil
	})
}

// YoY compares year with baseline. Zero values pick the current year and the
// year before it.
func (s *ReportService) YoY(ctx context.Context, year, baseline int) (YoYView, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return YoYView{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	if baseline == 0 {
		baseline = year - 1
	}
	key := fmt.Sprintf("yoy|%d|%d", year, baseline)
	return cached(s, ds, key, func() (YoYView, error) {
		return yoyView(ds, year, baseline), nil
	})
}

func yoyView(ds *Dataset, year, baseline int) YoYView {
	res, contrib := analytics.CompareYears(ds.Transactions, year, baseline)
	if contrib == nil {
		contrib = []analytics.Contribution{}
	}
	return YoYView{
		Revision:      ds.Revision,
		Year:          year,
		BaselineYear:  baseline,
		Result:        res,
		Contributions: contrib,
	}
}

// Years compares every year that has data with the closest earlier one.
func (s *ReportService) Years(ctx context.Context) ([]analytics.YearComparison, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return cached(s, ds, "years", func() ([]analytics.YearComparison, error) {
		out := analytics.YearlyComparisons(ds.Transactions)
		if out == nil {
			out = []analytics.YearComparison{}
		}
		return out, nil
	})
}

// Compare compares the month or year containing at with the period before it.
func (s *ReportService) Compare(ctx context.Context, mode analytics.ComparisonMode, at time.Time) (analytics.PeriodComparison, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return analytics.PeriodComparison{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	cur, prev, err := analytics.PeriodRanges(mode, at)
	if err != nil {
		return analytics.PeriodComparison{}, err
	}
	key := fmt.Sprintf("compare|%s|%d", mode, cur.Start.UnixNano())
	return cached(s, ds, key, func() (analytics.PeriodComparison, error) {
		pc := analytics.ComparePeriods(ds.Transactions, cur, prev)
		if pc.Contributions == nil {
			pc.Contributions = []analytics.Contribution{}
		}
		return pc, nil
	})
}

// Forecast projects monthly savings horizon months ahead. Zero means the
// configured default.
func (s *ReportService) Forecast(ctx context.Context, horizon int) (analytics.SavingsForecast, error) {
	if horizon == 0 {
		horizon = s.horizon
	}
	if horizon < 0 {
		return analytics.SavingsForecast{}, analytics.ErrInvalidHorizon
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return analytics.SavingsForecast{}, err
	}
	now := s.now()
	key := fmt.Sprintf("forecast|%d|%s", horizon, analytics.MonthKey(now))
	return cached(s, ds, key, func() (analytics.SavingsForecast, error) {
		fc, err := analytics.ForecastSavings(ds.Transactions, horizon, now)
		if err != nil {
			return fc, err
		}
		s.logger.DebugContext(ctx, "Computed savings forecast",
			log.FieldOperation, log.OpForecast,
			log.FieldHorizon, horizon,
			"history", len(fc.Historical))
		return fc, nil
	})
}

// Anomalies flags unusual monthly spend per category in year. Zero values
// pick the current year and the configured threshold.
func (s *ReportService) Anomalies(ctx context.Context, year int, z float64) (AnomaliesView, error) {
	if year == 0 {
		year = s.now().Year()
	}
	if z == 0 {
		z = s.zThreshold
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return AnomaliesView{}, err
	}
	key := fmt.Sprintf("anomalies|%d|%g", year, z)
	return cached(s, ds, key, func() (AnomaliesView, error) {
		return anomaliesView(ds, year, z)
	})
}

func anomaliesView(ds *Dataset, year int, z float64) (AnomaliesView, error) {
	flags, err := analytics.DetectAnomalies(ds.Transactions, year, z)
	if err != nil {
		return AnomaliesView{}, err
	}
	view := AnomaliesView{
		Revision:   ds.Revision,
		Year:       year,
		ZThreshold: z,
		Anomalies:  make([]AnomalyView, len(flags)),
	}
	for i, f := range flags {
		view.Anomalies[i] = AnomalyView{AnomalyFlag: f, MonthKey: f.MonthKey(year)}
	}
	return view, nil
}

// Budgets tracks spend against the limits of monthKey. Empty means the
// current month.
func (s *ReportService) Budgets(ctx context.Context, monthKey string) (BudgetView, error) {
	now := s.now()
	if monthKey == "" {
		monthKey = analytics.MonthKey(now)
	}
	if _, err := analytics.ParseMonthKey(monthKey, now.Location()); err != nil {
		return BudgetView{}, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return BudgetView{}, err
	}
	// Tracking depends on the day, so the key carries it.
	key := fmt.Sprintf("budgets|%s|%s", monthKey, now.Format("2006-01-02"))
	return cached(s, ds, key, func() (BudgetView, error) {
		return budgetView(ds, monthKey, now)
	})
}

func budgetView(ds *Dataset, monthKey string, now time.Time) (BudgetView, error) {
	statuses, err := analytics.TrackMonth(ds.Transactions, ds.Budgets, monthKey, now)
	if err != nil {
		return BudgetView{}, err
	}
	past, err := analytics.IsPeriodInPast(monthKey, now)
	if err != nil {
		return BudgetView{}, err
	}
	if statuses == nil {
		statuses = []analytics.BudgetStatus{}
	}
	return BudgetView{
		Revision: ds.Revision,
		Month:    monthKey,
		InPast:   past,
		Statuses: statuses,
		Months:   ds.Budgets.Months(),
	}, nil
}

// Waterfall returns the cumulative monthly savings of year.
func (s *ReportService) Waterfall(ctx context.Context, year int) ([]analytics.WaterfallStep, error) {
	if year == 0 {
		year = s.now().Year()
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return cached(s, ds, fmt.Sprintf("waterfall|%d", year), func() ([]analytics.WaterfallStep, error) {
		return analytics.MonthlyWaterfall(ds.Transactions, year), nil
	})
}

// CategoryWaterfall decomposes income into expense categories and savings.
func (s *ReportService) CategoryWaterfall(ctx context.Context, f analytics.Filter) ([]analytics.WaterfallEntry, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return cached(s, ds, "waterfall-categories|"+filterKey(f), func() ([]analytics.WaterfallEntry, error) {
		return analytics.Waterfall(ds.Transactions, f), nil
	})
}

// Alerts lists the anomaly alerts the worker stored for year.
func (s *ReportService) Alerts(ctx context.Context, year int) ([]sources.Alert, error) {
	if s.alerts == nil {
		return nil, ErrAlertsUnavailable
	}
	if year == 0 {
		year = s.now().Year()
	}
	alerts, err := s.alerts.ListAlerts(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []sources.Alert{}
	}
	return alerts, nil
}

// Dashboard computes the views of one year concurrently from a single
// snapshot. month selects the budget month; empty means the current month.
func (s *ReportService) Dashboard(ctx context.Context, year int, monthKey string) (DashboardView, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if monthKey == "" {
		monthKey = analytics.MonthKey(now)
	}
	if _, err := analytics.ParseMonthKey(monthKey, now.Location()); err != nil {
		return DashboardView{}, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return DashboardView{}, err
	}

	key := fmt.Sprintf("dashboard|%d|%s|%s", year, monthKey, now.Format("2006-01-02"))
	return cached(s, ds, key, func() (DashboardView, error) {
		view := DashboardView{
			Revision:     ds.Revision,
			Year:         year,
			Month:        monthKey,
			Transactions: len(ds.Transactions),
			Dropped:      ds.Dropped,
		}
		yearFilter := analytics.Filter{Year: year}

		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			view.Summary = summaryView(ds, yearFilter)
			return nil
		})
		g.Go(func() error {
			view.Monthly = analytics.MonthlySeries(ds.Transactions, year, analytics.Filter{})
			return nil
		})
		g.Go(func() error {
			view.YoY = yoyView(ds, year, year-1)
			return nil
		})
		g.Go(func() error {
			fc, err := analytics.ForecastSavings(ds.Transactions, s.horizon, now)
			if err != nil {
				return fmt.Errorf("forecast: %w", err)
			}
			view.Forecast = fc
			return nil
		})
		g.Go(func() error {
			av, err := anomaliesView(ds, year, s.zThreshold)
			if err != nil {
				return fmt.Errorf("anomalies: %w", err)
			}
			view.Anomalies = av.Anomalies
			return nil
		})
		g.Go(func() error {
			bv, err := budgetView(ds, monthKey, now)
			if err != nil {
				return fmt.Errorf("budgets: %w", err)
			}
			view.Budgets = bv
			return nil
		})
		g.Go(func() error {
			view.Waterfall = analytics.MonthlyWaterfall(ds.Transactions, year)
			return nil
		})
		if err := g.Wait(); err != nil {
			return DashboardView{}, err
		}
		return view, nil
	})
}
