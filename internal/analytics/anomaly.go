package analytics

import (
	"fmt"
	"math"
	"sort"

	"fintrack/internal/core"
)

// MinAnomalyObservations is the number of non-zero months a category needs
// before its spread is considered meaningful.
const MinAnomalyObservations = 3

// DefaultZThreshold is the z-score at which a month is flagged.
const DefaultZThreshold = 2.0

// AnomalyFlag marks a month whose spend in a category is unusually high.
// Month is zero based (0 = January).
type AnomalyFlag struct {
	Category string  `json:"category"`
	Month    int     `json:"month"`
	Value    float64 `json:"value"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	ZScore   float64 `json:"z_score"`
}

// MonthKey returns the YYYY-MM key of the flagged month in year.
func (a AnomalyFlag) MonthKey(year int) string {
	return fmt.Sprintf("%04d-%02d", year, a.Month+1)
}

// DetectAnomalies flags months of year whose expense total in a category has a
// z-score of at least zThreshold. Mean and deviation only consider non-zero
// months, and zero months are never flagged.
func DetectAnomalies(txs []core.Transaction, year int, zThreshold float64) ([]AnomalyFlag, error) {
	if math.IsNaN(zThreshold) || zThreshold <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, zThreshold)
	}

	series := make(map[string]*[12]float64)
	monthly := make(map[string]*[12]core.Bucket)
	for _, t := range txs {
		if t.Type != core.Expense || t.Date.Year() != year {
			continue
		}
		b, ok := monthly[t.Category]
		if !ok {
			b = &[12]core.Bucket{}
			monthly[t.Category] = b
		}
		b[t.Date.Month()-1].Add(t)
	}
	for cat, b := range monthly {
		s := &[12]float64{}
		for i := range b {
			s[i] = b[i].Expenses.InexactFloat64()
		}
		series[cat] = s
	}

	var flags []AnomalyFlag
	for cat, s := range series {
		nonZero := make([]float64, 0, 12)
		for _, v := range s {
			if v != 0 {
				nonZero = append(nonZero, v)
			}
		}
		if len(nonZero) < MinAnomalyObservations {
			continue
		}
		mean := Mean(nonZero)
		sigma := PopulationStdDev(nonZero)
		if sigma <= 0 {
			continue
		}
		for month, v := range s {
			if v == 0 || v <= mean {
				continue
			}
			z := (v - mean) / sigma
			if z >= zThreshold {
				flags = append(flags, AnomalyFlag{
					Category: cat,
					Month:    month,
					Value:    v,
					Mean:     mean,
					StdDev:   sigma,
					ZScore:   z,
				})
			}
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].ZScore != flags[j].ZScore {
			return flags[i].ZScore > flags[j].ZScore
		}
		if flags[i].Category != flags[j].Category {
			return flags[i].Category < flags[j].Category
		}
		return flags[i].Month < flags[j].Month
	})
	return flags, nil
}
