package google

import (
	"fmt"
	"strings"

	"fintrack/internal/backup"
	"fintrack/internal/core"
)

// transactionColumns maps accepted header names to record keys.
var transactionColumns = map[string]string{
	"id":          "id",
	"date":        "date",
	"type":        "type",
	"category":    "category",
	"amount":      "amount",
	"description": "description",
	"note":        "description",
}

// parseTransactions turns a values matrix into raw records. Rows without any
// value are skipped; everything else is left to the normalizer.
func parseTransactions(values [][]interface{}) []core.RawTransaction {
	if len(values) == 0 {
		return nil
	}
	headers := toStrings(values[0])
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = transactionColumns[strings.ToLower(h)]
	}

	out := make([]core.RawTransaction, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := core.RawTransaction{}
		for i, cell := range row {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			rec[keys[i]] = cellValue(keys[i], cell)
		}
		if len(rec) == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// parseBudgets reads rows of month, category and limit (header row first).
func parseBudgets(values [][]interface{}) core.Budgets {
	if len(values) < 2 {
		return core.Budgets{}
	}
	headers := toStrings(values[0])
	colMonth := indexOf(headers, "month")
	colCategory := indexOf(headers, "category")
	colLimit := indexOf(headers, "limit")
	if colMonth == -1 || colCategory == -1 || colLimit == -1 {
		return core.Budgets{}
	}

	raw := map[string]any{}
	for _, row := range values[1:] {
		cols := toStrings(row)
		month := safeGet(cols, colMonth)
		category := safeGet(cols, colCategory)
		if month == "" || category == "" {
			continue
		}
		cats, ok := raw[month].(map[string]any)
		if !ok {
			cats = map[string]any{}
			raw[month] = cats
		}
		cats[category] = normalizeDecimalComma(safeGet(cols, colLimit))
	}
	return backup.SanitizeBudgets(raw)
}

func cellValue(key string, cell interface{}) interface{} {
	if s, ok := cell.(string); ok {
		s = strings.TrimSpace(s)
		if key == "amount" {
			return normalizeDecimalComma(s)
		}
		return s
	}
	return cell
}

// normalizeDecimalComma accepts "12,50" and "1.234,50" as well as "1,234.50".
// Whichever separator comes last is the decimal one.
func normalizeDecimalComma(s string) string {
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	if comma > dot {
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
