package services

import (
	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// Views returned by ReportService. They are cached and shared between
// requests, so callers must not modify them.
type (
	SummaryView struct {
		Revision           int64                 `json:"revision"`
		Totals             core.Bucket           `json:"totals"`
		ExpensesByCategory []core.CategoryAmount `json:"expenses_by_category"`
		IncomeByCategory   []core.CategoryAmount `json:"income_by_category"`
	}

	AggregatesView struct {
		Revision    int64                 `json:"revision"`
		Granularity analytics.Granularity `json:"granularity"`
		Buckets     []core.Bucket         `json:"buckets"`
	}

	YoYView struct {
		Revision      int64                    `json:"revision"`
		Year          int                      `json:"year"`
		BaselineYear  int                      `json:"baseline_year"`
		Result        analytics.YoYResult      `json:"result"`
		Contributions []analytics.Contribution `json:"contributions"`
	}

	AnomalyView struct {
		analytics.AnomalyFlag
		MonthKey string `json:"month_key"`
	}

	AnomaliesView struct {
		Revision   int64         `json:"revision"`
		Year       int           `json:"year"`
		ZThreshold float64       `json:"z_threshold"`
		Anomalies  []AnomalyView `json:"anomalies"`
	}

	BudgetView struct {
		Revision int64                    `json:"revision"`
		Month    string                   `json:"month"`
		InPast   bool                     `json:"in_past"`
		Statuses []analytics.BudgetStatus `json:"statuses"`
		// Months lists every month that has limits, oldest first.
		Months []string `json:"months"`
	}

	DashboardView struct {
		Revision     int64                     `json:"revision"`
		Year         int                       `json:"year"`
		Month        string                    `json:"month"`
		Transactions int                       `json:"transactions"`
		Dropped      int                       `json:"dropped_records"`
		Summary      SummaryView               `json:"summary"`
		Monthly      [12]core.Bucket           `json:"monthly"`
		YoY          YoYView                   `json:"yoy"`
		Forecast     analytics.SavingsForecast `json:"forecast"`
		Anomalies    []AnomalyView             `json:"anomalies"`
		Budgets      BudgetView                `json:"budgets"`
		Waterfall    []analytics.WaterfallStep `json:"waterfall"`
	}
)
