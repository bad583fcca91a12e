package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"

	// DefaultCategory is used when a record carries no usable category.
	DefaultCategory = "Other"
)

type (
	TxType string

	// RawTransaction is a loosely typed record as decoded from storage or an
	// imported file. Only the analytics Normalizer turns it into a Transaction.
	RawTransaction map[string]any

	Transaction struct {
		ID          string
		Date        time.Time
		Type        TxType
		Category    string
		Amount      decimal.Decimal // always a non-negative magnitude
		Description string
	}
)

var (
	ErrEmptyID        = errors.New("empty transaction id")
	ErrZeroDate       = errors.New("date cannot be zero")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrEmptyCategory  = errors.New("empty category")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// IsValid reports whether t is one of the known transaction types.
func (t TxType) IsValid() bool {
	return t == Income || t == Expense
}

// ParseTxType parses "income" or "expense", ignoring case and surrounding space.
func ParseTxType(s string) (TxType, error) {
	switch TxType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
