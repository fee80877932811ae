package utils

import (
	"regexp"
	"time"
)

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DayRange is a half-open [Start, End) time interval
type DayRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range
func (r DayRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func parseDay(raw string, loc *time.Location) (time.Time, bool) {
	if !dayPattern.MatchString(raw) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ParseUTCDay parses YYYY-MM-DD into the covering UTC day.
// ok is false for empty or malformed input.
func ParseUTCDay(raw string) (DayRange, bool) {
	start, ok := parseDay(raw, time.UTC)
	if !ok {
		return DayRange{}, false
	}
	return DayRange{Start: start, End: start.AddDate(0, 0, 1)}, true
}

// ParseLocalRange turns inclusive YYYY-MM-DD bounds into an exclusive-end
// range in loc. When either bound is missing or invalid it falls back to
// the calendar month containing now.
func ParseLocalRange(startDate, endDate string, now time.Time, loc *time.Location) DayRange {
	start, okStart := parseDay(startDate, loc)
	end, okEnd := parseDay(endDate, loc)
	if okStart && okEnd && !end.Before(start) {
		return DayRange{Start: start, End: end.AddDate(0, 0, 1)}
	}
	n := now.In(loc)
	first := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	return DayRange{Start: first, End: first.AddDate(0, 1, 0)}
}

// ParseTimeMaybe accepts RFC3339 timestamps or bare YYYY-MM-DD dates.
func ParseTimeMaybe(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, ok := parseDay(raw, time.UTC); ok {
		return &t
	}
	return nil
}

// DayLabel formats t as DD/MM/YYYY
func DayLabel(t time.Time) string {
	return t.Format("02/01/2006")
}

// ClockLabel formats t as a 12-hour clock, e.g. 3:04 PM
func ClockLabel(t time.Time) string {
	return t.Format("3:04 PM")
}

// DiffSec returns whole seconds from b to a, never negative
func DiffSec(a, b time.Time) int64 {
	d := a.Sub(b)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
