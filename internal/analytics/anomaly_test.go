package analytics

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func foodSpike() []core.Transaction {
	return []core.Transaction{
		tx("1", "2024-01-10", core.Expense, "Food", "100"),
		tx("2", "2024-02-10", core.Expense, "Food", "100"),
		tx("3", "2024-03-10", core.Expense, "Food", "400"),
	}
}

func TestDetectAnomaliesThresholdBoundary(t *testing.T) {
	flags, err := DetectAnomalies(foodSpike(), 2024, 1.5)
	require.NoError(t, err)
	assert.Empty(t, flags, "z of sqrt(2) stays below 1.5")

	flags, err = DetectAnomalies(foodSpike(), 2024, 1.0)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	f := flags[0]
	assert.Equal(t, "Food", f.Category)
	assert.Equal(t, 2, f.Month)
	assert.Equal(t, "2024-03", f.MonthKey(2024))
	assert.InDelta(t, 200.0, f.Mean, 1e-9)
	assert.InDelta(t, 141.421356, f.StdDev, 1e-6)
	assert.InDelta(t, math.Sqrt2, f.ZScore, 1e-9)
}

func TestDetectAnomaliesNeedsThreeNonZeroMonths(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "2024-01-10", core.Expense, "Travel", "10"),
		tx("2", "2024-07-10", core.Expense, "Travel", "10000"),
	}
	flags, err := DetectAnomalies(txs, 2024, 0.1)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDetectAnomaliesSkipsFlatSpend(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "2024-01-10", core.Expense, "Rent", "700"),
		tx("2", "2024-02-10", core.Expense, "Rent", "700"),
		tx("3", "2024-03-10", core.Expense, "Rent", "700"),
	}
	flags, err := DetectAnomalies(txs, 2024, 0.1)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDetectAnomaliesIgnoresIncomeAndOtherYears(t *testing.T) {
	txs := append(foodSpike(),
		tx("4", "2024-04-10", core.Income, "Food", "100000"),
		tx("5", "2023-04-10", core.Expense, "Food", "100000"),
	)
	flags, err := DetectAnomalies(txs, 2024, 1.0)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, 2, flags[0].Month)
}

func TestDetectAnomaliesNeverFlagsAtOrBelowMean(t *testing.T) {
	var txs []core.Transaction
	amounts := []string{"50", "60", "55", "300", "40", "45", "500", "52", "58", "61", "49", "900"}
	for i, a := range amounts {
		txs = append(txs, tx(fmt.Sprint(i), fmt.Sprintf("2024-%02d-15", i+1), core.Expense, "Shopping", a))
	}
	flags, err := DetectAnomalies(txs, 2024, 0.01)
	require.NoError(t, err)
	require.NotEmpty(t, flags)
	for i, f := range flags {
		assert.Greater(t, f.Value, f.Mean)
		if i > 0 {
			assert.GreaterOrEqual(t, flags[i-1].ZScore, f.ZScore)
		}
	}
}

func TestDetectAnomaliesRejectsBadThreshold(t *testing.T) {
	for _, z := range []float64{0, -1, math.NaN()} {
		_, err := DetectAnomalies(foodSpike(), 2024, z)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}
