// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring entries. Each
// frequency has its own stepper that places the n-th occurrence relative to
// the first one.

package services

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/analytics"
)

// Frequency is how often a recurring entry repeats.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// MaxGenerated caps the records one entry may create, across every
// occurrence and split line.
const MaxGenerated = 200

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// OccurrenceStepper is the strategy interface for recurring entries.
type OccurrenceStepper interface {
	// Nth returns the date of occurrence n, where occurrence 0 is start.
	Nth(start time.Time, n int) time.Time
}

// DayStepper repeats every Days calendar days.
type DayStepper struct {
	Days int
}

func (s DayStepper) Nth(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, n*s.Days)
}

// MonthStepper repeats on start's day of the month. Months too short for
// that day use their last day instead, without shifting later occurrences.
type MonthStepper struct{}

func (MonthStepper) Nth(start time.Time, n int) time.Time {
	first := time.Date(start.Year(), start.Month()+time.Month(n), 1,
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	day := min(start.Day(), analytics.DaysInMonth(first.Year(), first.Month()))
	return first.AddDate(0, 0, day-1)
}

// occurrenceSteppers maps frequencies to their steppers.
var occurrenceSteppers = map[Frequency]OccurrenceStepper{
	Weekly:   DayStepper{Days: 7},
	Biweekly: DayStepper{Days: 14},
	Monthly:  MonthStepper{},
}

// GetOccurrenceStepper returns the stepper for a frequency.
func GetOccurrenceStepper(frequency Frequency) (OccurrenceStepper, error) {
	stepper, ok := occurrenceSteppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, frequency)
	}
	return stepper, nil
}

// Occurrences returns count dates starting at start and repeating at
// frequency. count must be between 1 and MaxGenerated.
func Occurrences(start time.Time, frequency Frequency, count int) ([]time.Time, error) {
	if count < 1 || count > MaxGenerated {
		return nil, fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidRecurrence, MaxGenerated, count)
	}
	stepper, err := GetOccurrenceStepper(frequency)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, count)
	for i := range out {
		out[i] = stepper.Nth(start, i)
	}
	return out, nil
}
