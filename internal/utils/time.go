package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02 15:04:05"
)

// NowUTC is the wall clock used when no clock is injected.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ParseDate parses YYYY-MM-DD in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(layoutDate, strings.TrimSpace(s), time.UTC)
}

// ParseTimeParam accepts RFC3339 or YYYY-MM-DD; empty input yields nil.
func ParseTimeParam(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return &t, nil
}

// FormatDate formats time to YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(layoutDate)
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM:SS" in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTime)
}

// WindowElapsed reports whether now is strictly after start+window.
func WindowElapsed(start time.Time, window time.Duration, now time.Time) bool {
	return now.After(start.Add(window))
}
