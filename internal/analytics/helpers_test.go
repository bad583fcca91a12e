package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fintrack/internal/core"
)

func tx(id, date string, typ core.TxType, category, amount string) core.Transaction {
	d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:       id,
		Date:     d,
		Type:     typ,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, got.Equal(dec(want)), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
