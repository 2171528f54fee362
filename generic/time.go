package generic

import (
	"strings"
	"time"
)

// =============================================================================
// CALENDAR HELPERS - All dates are civil dates in UTC
// =============================================================================

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func StartOfYear(year int) time.Time { return Date(year, time.January, 1) }
func EndOfYear(year int) time.Time   { return Date(year, time.December, 31) }

func StartOfMonth(year int, month time.Month) time.Time { return Date(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return Date(year, month+1, 1).AddDate(0, 0, -1)
}

// IsLastDayOfMonth is the single rule deciding whether the current month
// counts as earned for after-earning accrual.
func IsLastDayOfMonth(t time.Time) bool {
	return t.Day() == EndOfMonth(t.Year(), t.Month()).Day()
}

// MonthIndex returns a monotonically increasing month number so that month
// spans crossing a year boundary subtract correctly.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// QuarterOf returns the 0-based quarter of the month.
func QuarterOf(month time.Month) int {
	return (int(month) - 1) / 3
}

func StartOfQuarter(year, quarter int) time.Time {
	return Date(year, time.Month(quarter*3+1), 1)
}

func EndOfQuarter(year, quarter int) time.Time {
	return EndOfMonth(year, time.Month(quarter*3+3))
}

func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// RosterDateLayout is the DD-MMM-YYYY format of the employee directory feed.
const RosterDateLayout = "02-Jan-2006"

// ParseRosterDate parses "07-Apr-2025". Month abbreviations are accepted in
// any case ("07-APR-2025").
func ParseRosterDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(RosterDateLayout) {
		s = s[:3] + strings.ToUpper(s[3:4]) + strings.ToLower(s[4:6]) + s[6:]
	}
	t, err := time.Parse(RosterDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
