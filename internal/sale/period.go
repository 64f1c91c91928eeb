package sale

import (
	"fmt"
	"strings"
	"time"
)

// Period names a calendar window relative to now.
type Period string

const (
	PeriodNone  Period = ""
	PeriodDay   Period = "thisDay"
	PeriodWeek  Period = "thisWeek"
	PeriodMonth Period = "thisMonth"
	PeriodYear  Period = "thisYear"
)

// Periods lists the named windows in ascending size.
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}

// ParsePeriod accepts the period names case-insensitively; empty means no filter.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PeriodNone, nil
	}
	for _, p := range Periods {
		if strings.EqualFold(raw, string(p)) {
			return p, nil
		}
	}
	return PeriodNone, fmt.Errorf("unknown period %q", raw)
}

// Range is a half-open [From, To) window. A zero bound is unbounded.
type Range struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range has no bounds at all.
func (r Range) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// PeriodRange returns the UTC window for p containing now. Weeks start on
// Monday 00:00 UTC (ISO 8601).
func PeriodRange(p Period, now time.Time) Range {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodDay:
		return Range{From: day, To: day.AddDate(0, 0, 1)}
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Range{From: start, To: start.AddDate(0, 0, 7)}
	case PeriodMonth:
		return MonthRange(now)
	case PeriodYear:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Range{From: start, To: start.AddDate(1, 0, 0)}
	}
	return Range{}
}

// MonthRange returns the current UTC calendar month.
func MonthRange(now time.Time) Range {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{From: start, To: start.AddDate(0, 1, 0)}
}
