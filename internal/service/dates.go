package service

import (
	"strings"
	"time"

	"github.com/f3-invigorate/invigorate/internal/apperror"
)

const dateLayout = "2006-01-02"

// parseCalendarDate accepts a bare "2024-03-04" or an RFC 3339 timestamp
// such as "2024-03-04T05:30:00Z" or "2024-03-04T21:00:00-06:00".
//
// For a timestamp the calendar date is the one written in the string, in
// the string's own offset. A runner in Texas who logs "2024-03-04T21:00-06:00"
// worked out on the 4th even though it was already the 5th in UTC.
func parseCalendarDate(s string) (int, time.Month, int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, 0, false
	}

	layout := dateLayout
	if strings.Contains(s, "T") {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, 0, 0, false
	}
	y, m, d := t.Date()
	return y, m, d, true
}

// NormalizeDate turns a client date into noon on that calendar day in loc.
//
// Every stored record date sits at 12:00, so a day-level comparison never
// slips across midnight however the client or server clocks are zoned.
// Impossible dates ("2024-02-30") are a validation error.
func NormalizeDate(s string, loc *time.Location) (time.Time, error) {
	y, m, d, ok := parseCalendarDate(s)
	if !ok {
		return time.Time{}, apperror.ValidationFailed("date", "Date must be YYYY-MM-DD or an ISO timestamp")
	}
	return time.Date(y, m, d, 12, 0, 0, 0, loc), nil
}

// WeekStart is Sunday 00:00 of the week containing now, in loc.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()-int(n.Weekday()), 0, 0, 0, 0, loc)
}
