package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Date layouts accepted for string dates, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts untrusted records into transactions. The zero value
// normalizes into time.Local and falls back to time.Now for unparseable dates.
type Normalizer struct {
	// Location is the zone whose calendar dates drive bucketing.
	Location *time.Location
	// Now supplies the fallback date for records with an unusable date.
	Now func() time.Time
	// StrictDates drops records whose date cannot be parsed instead of
	// stamping them with Now.
	StrictDates bool
}

// Normalize runs the zero Normalizer over raw.
func Normalize(raw []core.RawTransaction) ([]core.Transaction, int) {
	return Normalizer{}.Normalize(raw)
}

// Normalize returns the representable transactions of raw, in input order, and
// the number of records it had to drop. A record is dropped when it has no id,
// repeats an id already seen, or (with StrictDates) has no parseable date.
func (n Normalizer) Normalize(raw []core.RawTransaction) ([]core.Transaction, int) {
	out := make([]core.Transaction, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, r := range raw {
		t, ok := n.NormalizeOne(r)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			dropped++
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, dropped
}

// NormalizeOne converts a single record. The boolean is false when the record
// cannot be represented.
func (n Normalizer) NormalizeOne(r core.RawTransaction) (core.Transaction, bool) {
	if r == nil {
		return core.Transaction{}, false
	}
	id, ok := rawID(r["id"])
	if !ok {
		return core.Transaction{}, false
	}
	loc := n.location()
	date, ok := rawDate(r["date"], loc)
	if !ok {
		if n.StrictDates {
			return core.Transaction{}, false
		}
		date = n.now().In(loc)
	}

	txType := core.Expense
	if s, ok := r["type"].(string); ok && s == string(core.Income) {
		txType = core.Income
	}

	category := core.DefaultCategory
	if s := strings.TrimSpace(rawText(r["category"])); s != "" {
		category = s
	}

	description := rawText(r["description"])

	return core.Transaction{
		ID:          id,
		Date:        date,
		Type:        txType,
		Category:    category,
		Amount:      rawAmount(r["amount"]).Abs(),
		Description: description,
	}, true
}

func (n Normalizer) location() *time.Location {
	if n.Location != nil {
		return n.Location
	}
	return time.Local
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func rawID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		return rawID(id.String())
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return "", false
	}
}

// maxAmount bounds the magnitude of a single amount. Anything larger is
// treated as non-finite: amounts are squared and summed as float64 by the
// statistics, which must stay finite.
var maxAmount = decimal.New(1, 15)

// rawAmount coerces v to an amount. Values that are not numbers, or exceed
// maxAmount, become zero.
func rawAmount(v any) decimal.Decimal {
	d := parseAmount(v)
	if d.Abs().GreaterThan(maxAmount) {
		return decimal.Zero
	}
	return d
}

func parseAmount(v any) decimal.Decimal {
	switch a := v.(type) {
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(a)
	case json.Number:
		return parseAmount(a.String())
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(a))
		if err != nil {
			return decimal.Zero
		}
		return d
	case int:
		return decimal.NewFromInt(int64(a))
	case int64:
		return decimal.NewFromInt(a)
	case decimal.Decimal:
		return a
	default:
		return decimal.Zero
	}
}

// rawText renders scalar values as text. Missing values, objects and arrays
// yield "".
func rawText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func rawDate(v any, loc *time.Location) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return d.In(loc), true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t.In(loc), true
			}
		}
		return time.Time{}, false
	case json.Number:
		ms, err := d.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return rawDate(ms, loc)
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(d)).In(loc), true
	case int64:
		return time.UnixMilli(d).In(loc), true
	default:
		return time.Time{}, false
	}
}
