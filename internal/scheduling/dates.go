// Package scheduling holds the calendar and time-of-day rules behind task
// schedules: how due dates and windows are parsed, how a replacement list is
// reconciled with stored occurrences and when an occurrence may be marked
// done. Nothing in here touches storage.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	// DateLayout is the calendar date format accepted and emitted for due dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the canonical time-of-day format of a schedule window.
	ClockLayout = "15:04:05"
)

var clockLayouts = []string{ClockLayout, "15:04"}

// Day returns the calendar date of t as seen in loc, anchored at 00:00 UTC.
func Day(t time.Time, loc *time.Location) datatypes.Date {
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// Date builds a calendar date anchored at 00:00 UTC.
func Date(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// AddDays shifts a calendar date by n days.
func AddDays(d datatypes.Date, n int) datatypes.Date {
	y, m, day := time.Time(d).Date()
	return Date(y, m, day+n)
}

// Compare orders two calendar dates by year, month and day only.
// It returns -1, 0 or +1.
func Compare(a, b datatypes.Date) int {
	ka, kb := dayKey(a), dayKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

func SameDay(a, b datatypes.Date) bool {
	return Compare(a, b) == 0
}

func dayKey(d datatypes.Date) int {
	y, m, day := time.Time(d).Date()
	return y*10000 + int(m)*100 + day
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	y, m, day := time.Time(d).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), day)
}

// ParseDueDate accepts a bare calendar date (YYYY-MM-DD) or an RFC3339
// timestamp. Timestamps are converted into loc before their date is taken.
func ParseDueDate(raw string, loc *time.Location) (datatypes.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return datatypes.Date{}, fmt.Errorf("due date is required")
	}

	if d, err := time.Parse(DateLayout, raw); err == nil {
		return Date(d.Date()), nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t, loc), nil
		}
	}

	return datatypes.Date{}, fmt.Errorf("invalid due date %q", raw)
}

// NormalizeClock accepts "HH:MM" or "HH:MM:SS" and returns "HH:MM:SS".
// An empty value yields def.
func NormalizeClock(raw, def string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(ClockLayout), nil
		}
	}

	return "", fmt.Errorf("invalid time of day %q", raw)
}

// ClockOf returns the time of day of t in loc as "HH:MM:SS".
func ClockOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ClockLayout)
}
