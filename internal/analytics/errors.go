// Package analytics turns a list of transactions into computed views:
// period aggregates, year-over-year deltas, a savings forecast, per-category
// anomaly flags, waterfall decompositions and budget tracking.
//
// Every function is a pure computation over its arguments. Nothing here does
// I/O, caches results or keeps state between calls, so all entry points are
// safe to call concurrently as long as the caller hands the same snapshot to
// related calls.
package analytics

import "errors"

// Parameter misuse. Bad data never produces these; bad arguments do.
var (
	ErrInvalidHorizon     = errors.New("forecast horizon must not be negative")
	ErrInvalidThreshold   = errors.New("z-score threshold must be greater than zero")
	ErrInvalidDays        = errors.New("invalid day counts: need 0 <= elapsed <= total and total > 0")
	ErrInvalidMonthKey    = errors.New("invalid month key: want YYYY-MM")
	ErrInvalidGranularity = errors.New("invalid granularity: want month or year")
	ErrInvalidMode        = errors.New("invalid comparison mode: want month or year")
)
