package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		def     int
		want    int
		wantErr bool
	}{
		{"absent uses default", url.Values{}, 3, 3, false},
		{"value", url.Values{"horizon": {"6"}}, 3, 6, false},
		{"whitespace", url.Values{"horizon": {" 2 "}}, 3, 2, false},
		{"negative passes through", url.Values{"horizon": {"-1"}}, 3, -1, false},
		{"garbage", url.Values{"horizon": {"six"}}, 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntParam(tt.query, "horizon", tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIntParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("error %v does not wrap ErrInvalidParameter", err)
			}
			if got != tt.want {
				t.Errorf("ParseIntParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseYearParam(t *testing.T) {
	if y, err := ParseYearParam(url.Values{}, "year"); err != nil || y != 0 {
		t.Errorf("absent year = %d, %v; want 0, nil", y, err)
	}
	if y, err := ParseYearParam(url.Values{"year": {"2024"}}, "year"); err != nil || y != 2024 {
		t.Errorf("year = %d, %v; want 2024, nil", y, err)
	}
	for _, bad := range []string{"-5", "10000", "20x4"} {
		if _, err := ParseYearParam(url.Values{"year": {bad}}, "year"); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("year %q error = %v, want ErrInvalidParameter", bad, err)
		}
	}
}

func TestParseFloatParam(t *testing.T) {
	if z, err := ParseFloatParam(url.Values{"z": {"2.5"}}, "z", 2); err != nil || z != 2.5 {
		t.Errorf("z = %v, %v; want 2.5", z, err)
	}
	if _, err := ParseFloatParam(url.Values{"z": {"high"}}, "z", 2); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("error = %v, want ErrInvalidParameter", err)
	}
}

func TestParseFilter(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	f, err := ParseFilter(url.Values{
		"start":    {"2024-01-01"},
		"end":      {"2024-01-31"},
		"category": {" Food\x00 "},
		"type":     {"Expense"},
		"year":     {"2024"},
	}, loc)
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}
	if f.Range == nil {
		t.Fatal("range should be set")
	}
	if !f.Range.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("start = %v", f.Range.Start)
	}
	lastInstant := time.Date(2024, 1, 31, 23, 59, 59, 0, loc)
	if !f.Range.Contains(lastInstant) {
		t.Error("end date should be inclusive")
	}
	if f.Range.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, loc)) {
		t.Error("range should stop at the end date")
	}
	if f.Category != "Food" {
		t.Errorf("category = %q, want Food", f.Category)
	}
	if f.Type != core.Expense || f.Year != 2024 {
		t.Errorf("type %q year %d", f.Type, f.Year)
	}

	empty, err := ParseFilter(url.Values{}, loc)
	if err != nil || empty.Range != nil || empty.Year != 0 || empty.Type != "" {
		t.Errorf("empty query = %+v, %v; want the zero filter", empty, err)
	}
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
	}{
		{"bad start", url.Values{"start": {"2024/01/01"}, "end": {"2024-01-02"}}},
		{"only start", url.Values{"start": {"2024-01-01"}}},
		{"only end", url.Values{"end": {"2024-01-01"}}},
		{"reversed", url.Values{"start": {"2024-02-01"}, "end": {"2024-01-01"}}},
		{"bad type", url.Values{"type": {"transfer"}}},
		{"bad year", url.Values{"year": {"soon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFilter(tt.query, time.UTC); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("ParseFilter() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Month string `json:"month"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"month":"2024-01"}`, false},
		{"unknown field", `{"month":"2024-01","extra":1}`, true},
		{"trailing data", `{"month":"2024-01"} {}`, true},
		{"malformed", `{"month":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSONBody(httptest.NewRecorder(), req, &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeJSONBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("error %v does not wrap ErrInvalidParameter", err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Food  ", "Food"},
		{"Fo\x00od", "Food"},
		{"line\nbreak", "line\nbreak"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
