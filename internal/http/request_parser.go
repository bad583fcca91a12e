// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of query parameters. Absent
// parameters fall back to defaults; malformed ones are reported as
// ErrInvalidParameter so the handler can answer 400.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// ErrInvalidParameter wraps every malformed request parameter.
var ErrInvalidParameter = errors.New("invalid parameter")

// maxBodyBytes bounds JSON bodies and imported backups.
const maxBodyBytes = 32 << 20

func invalidParam(name, value string) error {
	return fmt.Errorf("%w %s: %q", ErrInvalidParameter, name, value)
}

// ParseIntParam returns the integer named key, or def when it is absent.
func ParseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidParam(key, v)
	}
	return n, nil
}

// ParseFloatParam returns the number named key, or def when it is absent.
func ParseFloatParam(query url.Values, key string, def float64) (float64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, invalidParam(key, v)
	}
	return f, nil
}

// ParseYearParam returns the year named key. Zero means "not given" and lets
// the service pick its default.
func ParseYearParam(query url.Values, key string) (int, error) {
	y, err := ParseIntParam(query, key, 0)
	if err != nil {
		return 0, err
	}
	if y != 0 && (y < 1 || y > 9999) {
		return 0, invalidParam(key, query.Get(key))
	}
	return y, nil
}

// ParseDateParam parses a YYYY-MM-DD value as midnight in loc. The zero time
// is returned when the parameter is absent.
func ParseDateParam(query url.Values, key string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, invalidParam(key, v)
	}
	return t, nil
}

// ParseFilter reads start, end, year, category and type. start and end are
// calendar dates and both ends are inclusive.
func ParseFilter(query url.Values, loc *time.Location) (analytics.Filter, error) {
	var f analytics.Filter

	start, err := ParseDateParam(query, "start", loc)
	if err != nil {
		return f, err
	}
	end, err := ParseDateParam(query, "end", loc)
	if err != nil {
		return f, err
	}
	switch {
	case start.IsZero() && end.IsZero():
	case start.IsZero() || end.IsZero():
		return f, fmt.Errorf("%w: start and end must be given together", ErrInvalidParameter)
	case end.Before(start):
		return f, fmt.Errorf("%w: end is before start", ErrInvalidParameter)
	default:
		f.Range = &analytics.DateRange{
			Start: start,
			End:   end.AddDate(0, 0, 1).Add(-time.Nanosecond),
		}
	}

	if f.Year, err = ParseYearParam(query, "year"); err != nil {
		return f, err
	}
	f.Category = sanitizeInput(query.Get("category"))

	switch t := core.TxType(strings.ToLower(strings.TrimSpace(query.Get("type")))); t {
	case "":
	case core.Income, core.Expense:
		f.Type = t
	default:
		return f, invalidParam("type", string(t))
	}
	return f, nil
}

// DecodeJSONBody decodes a bounded JSON request body into v, rejecting
// unknown fields.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w body: %v", ErrInvalidParameter, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w body: trailing data", ErrInvalidParameter)
	}
	return nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
