package generic

import "time"

// =============================================================================
// LEAVE YEAR - The boundary balances are computed for
// =============================================================================

// LeaveYear is the [Start, End] window a balance row belongs to.
type LeaveYear struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End].
func (y LeaveYear) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(y.Start) && !d.After(y.End)
}

func (y LeaveYear) String() string {
	return "[" + y.Start.Format("2006-01-02") + ", " + y.End.Format("2006-01-02") + "]"
}

// LeaveYearConfig derives leave years from an organization's effective date.
// Only the month and day of EffectiveDate matter; zero means calendar year.
type LeaveYearConfig struct {
	EffectiveDate time.Time
}

// StartFor returns the leave-year start in force on the given date.
func (c LeaveYearConfig) StartFor(date time.Time) time.Time {
	if c.EffectiveDate.IsZero() {
		return StartOfYear(date.Year())
	}
	start := Date(date.Year(), c.EffectiveDate.Month(), c.EffectiveDate.Day())
	// Before this year's anniversary we are still in the previous leave year
	if DateOf(date).Before(start) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}

// YearFor returns the leave year containing date.
func (c LeaveYearConfig) YearFor(date time.Time) LeaveYear {
	start := c.StartFor(date)
	return LeaveYear{Start: start, End: start.AddDate(1, 0, -1)}
}
