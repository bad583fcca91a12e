package analytics

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

type (
	// Band is the interval drawn around a forecast point.
	Band struct {
		Upper float64 `json:"upper"`
		Lower float64 `json:"lower"`
	}

	// ForecastResult holds the fitted line and its projection.
	//
	// The band is point ± the population standard deviation of the input
	// series. It has the same width at every horizon and ignores residual
	// variance, so it is a spread indicator and not a prediction interval.
	ForecastResult struct {
		Slope     float64   `json:"slope"`
		Intercept float64   `json:"intercept"`
		StdDev    float64   `json:"std_dev"`
		Points    []float64 `json:"points"`
		Band      []Band    `json:"band"`
	}

	SeriesPoint struct {
		PeriodKey string  `json:"period_key"`
		Value     float64 `json:"value"`
	}

	ForecastPoint struct {
		PeriodKey string  `json:"period_key"`
		Value     float64 `json:"value"`
		Upper     float64 `json:"upper"`
		Lower     float64 `json:"lower"`
	}

	// SavingsForecast pairs the monthly savings history with its projection,
	// leaving it to the renderer to merge them into whatever shape a chart needs.
	SavingsForecast struct {
		Historical []SeriesPoint   `json:"historical"`
		Forecast   []ForecastPoint `json:"forecast"`
		Slope      float64         `json:"slope"`
		Intercept  float64         `json:"intercept"`
		StdDev     float64         `json:"std_dev"`
	}
)

// DefaultHorizon is the number of periods projected when the caller has no
// preference.
const DefaultHorizon = 3

// Forecast fits a line through series (x = 0..N-1) and projects horizon
// further periods: point i is slope*(N+i) + intercept.
func Forecast(series []float64, horizon int) (ForecastResult, error) {
	if horizon < 0 {
		return ForecastResult{}, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}
	slope, intercept := LinearRegression(series)
	sigma := PopulationStdDev(series)

	res := ForecastResult{
		Slope:     slope,
		Intercept: intercept,
		StdDev:    sigma,
		Points:    make([]float64, horizon),
		Band:      make([]Band, horizon),
	}
	n := len(series)
	for i := 0; i < horizon; i++ {
		p := slope*float64(n+i) + intercept
		res.Points[i] = p
		res.Band[i] = Band{Upper: p + sigma, Lower: p - sigma}
	}
	return res, nil
}

// ForecastSavings projects monthly net savings. The history runs from the first
// to the last month with transactions, gaps filled with zero savings. With no
// history the projection is anchored at the month of now.
func ForecastSavings(txs []core.Transaction, horizon int, now time.Time) (SavingsForecast, error) {
	buckets, err := Aggregate(txs, Month, Filter{})
	if err != nil {
		return SavingsForecast{}, err
	}
	keys := denseMonthKeys(SortedKeys(buckets))

	history := make([]SeriesPoint, len(keys))
	series := make([]float64, len(keys))
	for i, k := range keys {
		v := buckets[k].Savings().InexactFloat64()
		history[i] = SeriesPoint{PeriodKey: k, Value: v}
		series[i] = v
	}

	fc, err := Forecast(series, horizon)
	if err != nil {
		return SavingsForecast{}, err
	}

	next := MonthKey(now)
	if len(keys) > 0 {
		next, _ = NextMonthKey(keys[len(keys)-1])
	}
	out := SavingsForecast{
		Historical: history,
		Forecast:   make([]ForecastPoint, horizon),
		Slope:      fc.Slope,
		Intercept:  fc.Intercept,
		StdDev:     fc.StdDev,
	}
	for i := range fc.Points {
		out.Forecast[i] = ForecastPoint{
			PeriodKey: next,
			Value:     fc.Points[i],
			Upper:     fc.Band[i].Upper,
			Lower:     fc.Band[i].Lower,
		}
		next, _ = NextMonthKey(next)
	}
	return out, nil
}

// denseMonthKeys expands sorted month keys to every month between the first
// and the last one.
func denseMonthKeys(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	last := sorted[len(sorted)-1]
	out := []string{sorted[0]}
	for k := sorted[0]; k != last; {
		next, err := NextMonthKey(k)
		if err != nil {
			return sorted
		}
		out = append(out, next)
		k = next
	}
	return out
}
