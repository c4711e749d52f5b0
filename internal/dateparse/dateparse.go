// Package dateparse turns relative and absolute date strings into the
// instant they name, for filtering history.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Since parses input as a point in the past, relative to the current time.
//
// Supported formats:
//   - Exact dates: "2026-03-01" (local midnight)
//   - RFC 3339 timestamps: "2026-03-01T15:04:05Z"
//   - Offsets back from now: "2h", "3d", "2w", "1mo"
//   - Day names: "monday" (most recent, today included)
//   - Keywords: "today", "yesterday", "last-week", "last-month"
func Since(input string) (time.Time, error) {
	return SinceFrom(input, time.Now())
}

// SinceFrom is Since with a fixed reference time.
func SinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(input)); err == nil {
		return t, nil
	}

	today := midnight(now)
	switch input {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "last-week":
		return today.AddDate(0, 0, -7), nil
	case "last-month":
		return today.AddDate(0, -1, 0), nil
	}

	if t, ok, err := relative(input, now); ok {
		return t, err
	}

	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		return today.AddDate(0, 0, -daysBack), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

// relative handles "<n><unit>" with an optional leading "-". ok is false
// when input does not have that shape.
func relative(input string, now time.Time) (t time.Time, ok bool, err error) {
	s := strings.TrimPrefix(input, "-")
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return time.Time{}, false, nil
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return time.Time{}, false, nil
	}
	switch unit := s[i:]; unit {
	case "h":
		return now.Add(-time.Duration(n) * time.Hour), true, nil
	case "d":
		return now.AddDate(0, 0, -n), true, nil
	case "w":
		return now.AddDate(0, 0, -7*n), true, nil
	case "mo":
		return now.AddDate(0, -n, 0), true, nil
	default:
		return time.Time{}, true, fmt.Errorf("unknown relative unit %q in %q (use h, d, w or mo)", unit, input)
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
