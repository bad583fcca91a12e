package backup

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

var normalizer = analytics.Normalizer{Location: time.UTC}

func TestParseVersionTwo(t *testing.T) {
	doc := `{
		"schemaVersion": 2,
		"exportedAt": "2024-05-01T10:00:00.000Z",
		"data": {
			"transactions": [
				{"id": 1714550400000, "date": "2024-05-01", "type": "income", "category": "Salary", "amount": 2500.10},
				{"id": "b", "date": "2024-05-02", "type": "expense", "category": "Food", "amount": "12.5"},
				{"date": "2024-05-03", "amount": 5},
				"garbage",
				{"id": "b", "date": "2024-05-04", "amount": 9}
			],
			"budgets": {
				"2024-05": {"Food": 300, "Fun": 0, "Rent": "-1", "Travel": "abc"},
				"2024-06": {},
				"broken": 12
			},
			"currency": "EUR",
			"presets": [{"name": "food"}],
			"theme": "dark"
		}
	}`

	res, err := Parse(strings.NewReader(doc), normalizer)
	require.NoError(t, err)

	assert.Equal(t, 2, res.SchemaVersion)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", res.ExportedAt)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "1714550400000", res.Transactions[0].ID)
	assert.True(t, res.Transactions[0].Amount.Equal(decimal.RequireFromString("2500.10")))
	assert.Equal(t, 3, res.Dropped)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "3 invalid")
	require.Len(t, res.Records, 2)
	assert.Equal(t, "b", res.Records[1]["id"])

	assert.Equal(t, "EUR", res.Data.Currency)
	require.NotNil(t, res.Data.Theme)
	assert.Equal(t, "dark", *res.Data.Theme)
	assert.Nil(t, res.Data.LastTxType)

	may := res.Data.Budgets.Month("2024-05")
	require.Len(t, may, 1)
	assert.True(t, may["Food"].Equal(decimal.NewFromInt(300)))
	_, kept := res.Data.Budgets["2024-06"]
	assert.True(t, kept, "empty months survive")
	_, kept = res.Data.Budgets["broken"]
	assert.False(t, kept)

	assert.Equal(t, Summary{TransactionCount: 2, BudgetMonths: 2, PresetCount: 1}, res.Summary)
}

func TestParseLegacyLayout(t *testing.T) {
	doc := `{"transactions": [{"id": "x", "date": "2023-01-01", "amount": 1}], "budgets": {"2023-01": {"Food": 10}}}`
	res, err := Parse(strings.NewReader(doc), normalizer)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SchemaVersion)
	assert.Equal(t, defaultCurrency, res.Data.Currency)
	assert.Len(t, res.Transactions, 1)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.Summary.BudgetMonths)
}

func TestParseWrongShapesFallBack(t *testing.T) {
	doc := `{"schemaVersion": 1, "data": {"transactions": {"id": "x"}, "budgets": [], "currency": 5}}`
	res, err := Parse(strings.NewReader(doc), normalizer)
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	assert.Empty(t, res.Data.Budgets)
	assert.Equal(t, defaultCurrency, res.Data.Currency)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("{not json"), normalizer)
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Parse(strings.NewReader(`[1, 2, 3]`), normalizer)
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestBuildRoundTrip(t *testing.T) {
	budgets := core.Budgets{}
	budgets.Set("2024-02", "Food", decimal.RequireFromString("250.50"))
	records := []core.RawTransaction{
		{"id": "a", "date": "2024-02-03", "type": "expense", "category": "Food", "amount": 20.25},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Build(records, budgets, "", time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC))))

	res, err := Parse(&buf, normalizer)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, res.SchemaVersion)
	assert.Equal(t, "USD", res.Data.Currency)
	require.Len(t, res.Transactions, 1)
	assert.True(t, res.Transactions[0].Amount.Equal(decimal.RequireFromString("20.25")))
	assert.True(t, res.Data.Budgets.Month("2024-02")["Food"].Equal(decimal.RequireFromString("250.50")))
}

func TestSanitizeBudgets(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{
		"2024-01": {" Food ": 120, "": 5, "Fun": -1, "Rent": "abc"},
		"  ": {"Food": 1},
		"2024-02": "broken"
	}`), &decoded))

	got := SanitizeBudgets(decoded)

	assert.Equal(t, []string{"2024-01"}, got.Months())
	jan := got.Month("2024-01")
	require.Len(t, jan, 1)
	assert.True(t, jan["Food"].Equal(decimal.NewFromInt(120)))
}
