// Package backup reads and writes the JSON backup documents produced by the
// tracker. Two layouts are accepted: the versioned one
// ({"schemaVersion": 2, "exportedAt": ..., "data": {...}}) and the legacy
// one where the data fields sit at the top level.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// SchemaVersion is the version written by Build.
const SchemaVersion = 2

const defaultCurrency = "USD"

var (
	ErrInvalidJSON        = errors.New("invalid JSON")
	ErrUnrecognizedFormat = errors.New("unrecognized backup format")
)

// Data is the payload of a backup document.
type Data struct {
	Transactions       []core.RawTransaction `json:"transactions"`
	Budgets            core.Budgets          `json:"budgets"`
	Currency           string                `json:"currency"`
	Presets            []json.RawMessage     `json:"presets"`
	Theme              *string               `json:"theme"`
	LastTxType         *string               `json:"lastTxType"`
	LastTxCategory     *string               `json:"lastTxCategory"`
	PrivacyPreferences map[string]any        `json:"privacyPreferences"`
}

// Document is a complete backup as written to disk.
type Document struct {
	SchemaVersion int       `json:"schemaVersion"`
	ExportedAt    time.Time `json:"exportedAt"`
	Data          Data      `json:"data"`
}

// Summary counts what a parsed backup contains.
type Summary struct {
	TransactionCount int `json:"transaction_count"`
	BudgetMonths     int `json:"budget_months"`
	PresetCount      int `json:"preset_count"`
}

// Result is a parsed and sanitized backup. Records holds only the raw records
// that survived normalization, in their original form, so they can be stored
// and normalized again later with identical results.
type Result struct {
	SchemaVersion int
	ExportedAt    string
	Data          Data
	Records       []core.RawTransaction
	Transactions  []core.Transaction
	Dropped       int
	Warnings      []string
	Summary       Summary
}

// Parse decodes a backup document of either layout, drops the transactions
// the normalizer cannot represent and the invalid budget limits.
func Parse(r io.Reader, n analytics.Normalizer) (*Result, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	root, ok := parsed.(map[string]any)
	if !ok {
		return nil, ErrUnrecognizedFormat
	}

	version := 1
	if v, ok := numberOf(root["schemaVersion"]); ok && v != 0 {
		version = int(v)
	}
	exportedAt, _ := root["exportedAt"].(string)

	payload := root
	if d, ok := root["data"].(map[string]any); ok {
		payload = d
	}
	data := migrate(payload)

	res := &Result{
		SchemaVersion: version,
		ExportedAt:    exportedAt,
	}

	seen := make(map[string]struct{}, len(data.Transactions))
	for _, rec := range data.Transactions {
		t, ok := n.NormalizeOne(rec)
		if !ok {
			res.Dropped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			res.Dropped++
			continue
		}
		seen[t.ID] = struct{}{}
		res.Records = append(res.Records, rec)
		res.Transactions = append(res.Transactions, t)
	}
	if res.Dropped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d invalid transaction(s) were ignored", res.Dropped))
	}

	data.Transactions = res.Records
	res.Data = data
	res.Summary = Summary{
		TransactionCount: len(res.Transactions),
		BudgetMonths:     len(data.Budgets),
		PresetCount:      len(data.Presets),
	}
	return res, nil
}

// Build assembles a document for export.
func Build(records []core.RawTransaction, budgets core.Budgets, currency string, now time.Time) Document {
	if records == nil {
		records = []core.RawTransaction{}
	}
	if budgets == nil {
		budgets = core.Budgets{}
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return Document{
		SchemaVersion: SchemaVersion,
		ExportedAt:    now.UTC(),
		Data: Data{
			Transactions: records,
			Budgets:      budgets,
			Currency:     currency,
			Presets:      []json.RawMessage{},
		},
	}
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// migrate lifts a loosely typed payload to the current Data layout, replacing
// fields of the wrong shape with their defaults.
func migrate(m map[string]any) Data {
	d := Data{
		Transactions: []core.RawTransaction{},
		Currency:     defaultCurrency,
		Presets:      []json.RawMessage{},
	}
	if list, ok := m["transactions"].([]any); ok {
		for _, item := range list {
			rec, _ := item.(map[string]any)
			// Non-object entries are kept as nil so the normalizer counts them.
			d.Transactions = append(d.Transactions, core.RawTransaction(rec))
		}
	}
	d.Budgets = SanitizeBudgets(m["budgets"])
	if s, ok := m["currency"].(string); ok {
		d.Currency = s
	}
	if list, ok := m["presets"].([]any); ok {
		for _, p := range list {
			raw, err := json.Marshal(p)
			if err == nil {
				d.Presets = append(d.Presets, raw)
			}
		}
	}
	d.Theme = stringPtr(m["theme"])
	d.LastTxType = stringPtr(m["lastTxType"])
	d.LastTxCategory = stringPtr(m["lastTxCategory"])
	if p, ok := m["privacyPreferences"].(map[string]any); ok {
		d.PrivacyPreferences = p
	}
	return d
}

// SanitizeBudgets converts a decoded budgets object into Budgets. Months that
// are not objects are skipped; limits that are not finite positive numbers
// are dropped while their month is kept.
func SanitizeBudgets(v any) core.Budgets {
	out := core.Budgets{}
	months, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for month, cats := range months {
		limits, ok := cats.(map[string]any)
		if !ok {
			continue
		}
		numeric := make(map[string]decimal.Decimal, len(limits))
		for cat, raw := range limits {
			if limit, ok := decimalOf(raw); ok {
				numeric[cat] = limit
			}
		}
		out[month] = numeric
	}
	return out.Sanitize()
}

func decimalOf(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func numberOf(v any) (float64, bool) {
	d, ok := decimalOf(v)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
