package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var ErrInvalidEntry = errors.New("invalid transaction entry")

// AmountText is an amount as typed by a user. It decodes from a JSON string
// or number and is parsed with core.ParseAmount.
type AmountText string

func (a *AmountText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AmountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	*a = AmountText(n.String())
	return nil
}

type (
	// TransactionEntry is one submission of the entry form. It expands into
	// one record per occurrence, or one per split line and occurrence.
	TransactionEntry struct {
		// Date is a calendar date (YYYY-MM-DD). Empty means today.
		Date        string      `json:"date"`
		Type        string      `json:"type"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
		Amount      AmountText  `json:"amount"`
		Notes       string      `json:"notes,omitempty"`
		Splits      []SplitLine `json:"splits,omitempty"`
		Recurring   *Recurrence `json:"recurring,omitempty"`
	}

	// SplitLine assigns part of an entry's amount to a category.
	SplitLine struct {
		Category string     `json:"category"`
		Amount   AmountText `json:"amount"`
	}

	Recurrence struct {
		Frequency Frequency `json:"frequency"`
		Count     int       `json:"count"`
	}

	// AddResult describes the records an entry created.
	AddResult struct {
		Revision int64    `json:"revision"`
		IDs      []string `json:"ids"`
		GroupID  string   `json:"group_id,omitempty"`
		// Total is the sum of the created amounts; Net applies their signs.
		Total decimal.Decimal `json:"total"`
		Net   decimal.Decimal `json:"net"`
	}
)

func invalidEntry(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, fmt.Sprintf(format, args...))
}

type splitAmount struct {
	category string
	amount   decimal.Decimal
}

// expand validates e and builds its raw records. Dates are noon in loc, which
// keeps them on the chosen calendar day under any offset change.
func (e TransactionEntry) expand(loc *time.Location, today time.Time) ([]core.RawTransaction, string, error) {
	description := strings.TrimSpace(e.Description)
	if description == "" {
		return nil, "", invalidEntry("description is required")
	}

	txType := core.Expense
	if strings.TrimSpace(e.Type) != "" {
		t, err := core.ParseTxType(e.Type)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		txType = t
	}

	amount, err := core.ParseAmount(string(e.Amount))
	if err != nil {
		return nil, "", fmt.Errorf("%w: amount %q: %w", ErrInvalidEntry, e.Amount, err)
	}

	start := time.Date(today.Year(), today.Month(), today.Day(), 12, 0, 0, 0, loc)
	if d := strings.TrimSpace(e.Date); d != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, d, loc)
		if err != nil {
			return nil, "", invalidEntry("date %q is not a YYYY-MM-DD date", d)
		}
		start = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, loc)
	}

	lines, err := e.splitLines(amount)
	if err != nil {
		return nil, "", err
	}

	dates := []time.Time{start}
	if e.Recurring != nil {
		dates, err = Occurrences(start, e.Recurring.Frequency, e.Recurring.Count)
		if err != nil {
			return nil, "", err
		}
	}
	if n := len(dates) * len(lines); n > MaxGenerated {
		return nil, "", invalidEntry("%d transactions would be created, the limit is %d", n, MaxGenerated)
	}

	var groupID string
	if len(e.Splits) > 0 {
		groupID = uuid.NewString()
	}
	notes := strings.TrimSpace(e.Notes)

	out := make([]core.RawTransaction, 0, len(dates)*len(lines))
	for _, date := range dates {
		for _, line := range lines {
			rec := core.RawTransaction{
				"id":          uuid.NewString(),
				"date":        date.Format(time.RFC3339),
				"type":        string(txType),
				"category":    line.category,
				"description": description,
				"amount":      json.Number(line.amount.StringFixed(2)),
			}
			if groupID != "" {
				rec["description"] = fmt.Sprintf("%s (%s)", description, line.category)
				rec["groupId"] = groupID
			}
			if notes != "" {
				rec["notes"] = notes
			}
			out = append(out, rec)
		}
	}
	return out, groupID, nil
}

// splitLines returns the category and amount of each record per occurrence.
// Split lines must number at least two and add up to amount to the cent.
func (e TransactionEntry) splitLines(amount decimal.Decimal) ([]splitAmount, error) {
	if len(e.Splits) == 0 {
		category := strings.TrimSpace(e.Category)
		if category == "" {
			return nil, invalidEntry("category is required")
		}
		return []splitAmount{{category: category, amount: amount}}, nil
	}

	if len(e.Splits) < 2 {
		return nil, invalidEntry("a split needs at least two lines")
	}
	lines := make([]splitAmount, len(e.Splits))
	var sum int64
	for i, s := range e.Splits {
		category := strings.TrimSpace(s.Category)
		if category == "" {
			return nil, invalidEntry("split line %d has no category", i+1)
		}
		a, err := core.ParseAmount(string(s.Amount))
		if err != nil {
			return nil, fmt.Errorf("%w: split line %d amount %q: %w", ErrInvalidEntry, i+1, s.Amount, err)
		}
		lines[i] = splitAmount{category: category, amount: a}
		sum += core.Cents(a)
	}
	if sum != core.Cents(amount) {
		return nil, invalidEntry("split lines add up to %s, not %s",
			decimal.New(sum, -2).StringFixed(2), amount.StringFixed(2))
	}
	return lines, nil
}
