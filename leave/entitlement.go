/*
entitlement.go - Pro-rata and slab-based entitlement calculation

PURPOSE:
  Computes, for one leave variant and one employee, the annual
  entitlement and the balance accrued as of a given date.

RULES:
  Full-year employee (joined before the year):
    Grants anchored at the leave-year start, following grantFrequency x grantLeaves.

  Mid-year joiner, after_earning:
    Grants anchored at the joining date.

  Mid-year joiner, in_advance:
    Month pro-ration from the joining month, or the slab table when
    proRataCalculation = slab_system.

FREQUENCY x TIMING:
  per_year    in_advance     full amount at period start
  per_year    after_earning  nothing until the period end, then full amount
  per_quarter in_advance     annual/4 at each elapsed quarter start
  per_quarter after_earning  annual/4 at each reached quarter end
  per_month   in_advance     annual/12 per month whose start has passed
  per_month   after_earning  annual/12 per month whose last day is reached

  The current month counts as earned only when today is its last day.

ROUNDING:
  Results are rounded to half days: round(x*2)/2.

EXAMPLE:
  v := LeaveVariant{PaidDaysInYear: 18, GrantLeaves: after_earning, GrantFrequency: per_month}
  CalculateEntitlement(v, jan1, june15, 2025) // {18, 7.5}
  CalculateEntitlement(v, jan1, june30, 2025) // {18, 9.0}
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

type Entitlement struct {
	TotalEntitlement decimal.Decimal
	CurrentBalance   decimal.Decimal
}

var (
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
)

// CalculateEntitlement returns the annual entitlement and the balance
// accrued by currentDate for an employee who joined on joiningDate.
// currentDate beyond the year is capped at Dec 31 of year.
func CalculateEntitlement(v LeaveVariant, joiningDate, currentDate time.Time, year int) Entitlement {
	return calculate(v, joiningDate, currentDate, generic.StartOfYear(year), generic.EndOfYear(year))
}

// EntitlementForLeaveYear runs the calculation over an organization leave
// year that need not start on Jan 1. Months and quarters count from
// ly.Start's month on the real calendar.
func EntitlementForLeaveYear(v LeaveVariant, joiningDate, currentDate time.Time, ly generic.LeaveYear) Entitlement {
	return calculate(v, joiningDate, currentDate, generic.DateOf(ly.Start), generic.DateOf(ly.End))
}

func calculate(v LeaveVariant, joiningDate, currentDate, start, end time.Time) Entitlement {
	result := Entitlement{TotalEntitlement: v.PaidDaysInYear, CurrentBalance: decimal.Zero}

	join := generic.DateOf(joiningDate)
	now := generic.MinDate(generic.DateOf(currentDate), end)
	w := window{start: start, end: end}

	var current decimal.Decimal
	switch {
	case join.After(end):
		return result
	case join.Before(start):
		current = accrue(v, start, now, w)
	case v.GrantLeaves == generic.GrantAfterEarning:
		if v.usesSlabs() {
			current = slabAfterEarning(v, join, now)
		} else {
			current = accrue(v, join, now, w)
		}
	default:
		if v.usesSlabs() {
			current = slabInAdvance(v, join, now, w)
		} else {
			current = prorateInAdvance(v, join, now, w)
		}
	}

	result.CurrentBalance = generic.RoundHalf(current)
	return result
}

// window is the leave year being computed.
type window struct {
	start, end time.Time
}

// monthsLeft counts months from t's month through the window's last month.
func (w window) monthsLeft(t time.Time) int {
	return generic.MonthIndex(w.end) - generic.MonthIndex(t) + 1
}

// quarter returns t's zero-based quarter within the window.
func (w window) quarter(t time.Time) int {
	return (generic.MonthIndex(t) - generic.MonthIndex(w.start)) / 3
}

// quarterStart returns the first day of the window's quarter q.
func (w window) quarterStart(q int) time.Time {
	return generic.StartOfMonth(w.start.Year(), w.start.Month()).AddDate(0, 3*q, 0)
}

// isQuarterEnd reports whether t is the last day of its window quarter.
func (w window) isQuarterEnd(t time.Time) bool {
	offset := generic.MonthIndex(t) - generic.MonthIndex(w.start)
	return offset%3 == 2 && generic.IsLastDayOfMonth(t)
}

// MonthlyRate is the configured annual entitlement spread over 12 months.
func (v LeaveVariant) MonthlyRate() decimal.Decimal {
	return v.PaidDaysInYear.Div(twelve)
}

func (v LeaveVariant) usesSlabs() bool {
	return v.ProRataCalculation == generic.ProrateSlabSystem && len(v.OnboardingSlabs) > 0
}

// SlabFor returns the slab covering the joining day-of-month.
func (v LeaveVariant) SlabFor(day int) (Slab, bool) {
	for _, s := range v.OnboardingSlabs {
		if s.Covers(day) {
			return s, true
		}
	}
	return Slab{}, false
}

// =============================================================================
// FREQUENCY RULES
// =============================================================================

// accrue applies the grantFrequency x grantLeaves rule from anchor to now.
func accrue(v LeaveVariant, anchor, now time.Time, w window) decimal.Decimal {
	if now.Before(anchor) {
		return decimal.Zero
	}
	periods := decimal.NewFromInt(int64(v.GrantFrequency.PeriodsPerYear()))
	rate := v.PaidDaysInYear.Div(periods)

	switch v.GrantFrequency {
	case generic.PerMonth:
		return rate.Mul(decimal.NewFromInt(int64(monthsElapsed(anchor, now, v.GrantLeaves))))
	case generic.PerQuarter:
		return rate.Mul(decimal.NewFromInt(int64(quartersElapsed(anchor, now, v.GrantLeaves, w))))
	default:
		if v.GrantLeaves == generic.GrantAfterEarning && now.Before(w.end) {
			return decimal.Zero
		}
		if anchor.Equal(w.start) {
			return v.PaidDaysInYear
		}
		// Joined mid-year: the year-end grant covers the months served
		return v.MonthlyRate().Mul(decimal.NewFromInt(int64(w.monthsLeft(anchor))))
	}
}

// monthsElapsed counts granted months from anchor's month through now.
// In advance counts now's month; after earning counts it only on its
// last day.
func monthsElapsed(anchor, now time.Time, timing generic.GrantTiming) int {
	if now.Before(anchor) {
		return 0
	}
	n := generic.MonthIndex(now) - generic.MonthIndex(anchor)
	if timing == generic.GrantInAdvance || generic.IsLastDayOfMonth(now) {
		n++
	}
	return n
}

func quartersElapsed(anchor, now time.Time, timing generic.GrantTiming, w window) int {
	if now.Before(anchor) {
		return 0
	}
	n := w.quarter(now) - w.quarter(anchor)
	if timing == generic.GrantInAdvance || w.isQuarterEnd(now) {
		n++
	}
	return n
}

// =============================================================================
// MID-YEAR JOINERS
// =============================================================================

// prorateInAdvance pro-rates an in-advance variant by months, starting at
// the first month the joiner is credited for.
func prorateInAdvance(v LeaveVariant, join, now time.Time, w window) decimal.Decimal {
	first := generic.StartOfMonth(join.Year(), join.Month())
	if v.ProRataCalculation == generic.ProrateRoundingOff && join.Day() > generic.RoundingOffCutoffDay {
		first = first.AddDate(0, 1, 0)
	}
	if first.After(w.end) || now.Before(join) || now.Before(first) {
		return decimal.Zero
	}

	switch v.GrantFrequency {
	case generic.PerMonth:
		months := generic.MonthIndex(now) - generic.MonthIndex(first) + 1
		return v.MonthlyRate().Mul(decimal.NewFromInt(int64(months)))

	case generic.PerQuarter:
		rate := v.PaidDaysInYear.Div(decimal.NewFromInt(4))
		q0 := w.quarter(first)
		inFirst := 3 - (generic.MonthIndex(first)-generic.MonthIndex(w.start))%3
		amount := rate.Mul(decimal.NewFromInt(int64(inFirst))).Div(three)
		for q := q0 + 1; q < 4; q++ {
			if !now.Before(w.quarterStart(q)) {
				amount = amount.Add(rate)
			}
		}
		return amount

	default:
		return v.MonthlyRate().Mul(decimal.NewFromInt(int64(w.monthsLeft(first))))
	}
}

// slabInAdvance credits the slab's monthly rate for every remaining month
// of the year, joining month included. No covering slab yields zero.
func slabInAdvance(v LeaveVariant, join, now time.Time, w window) decimal.Decimal {
	slab, ok := v.SlabFor(join.Day())
	if !ok || now.Before(join) {
		return decimal.Zero
	}
	return slab.EarnDays.Mul(decimal.NewFromInt(int64(w.monthsLeft(join))))
}

// slabAfterEarning credits the slab's monthly rate for every month
// completed since joining.
func slabAfterEarning(v LeaveVariant, join, now time.Time) decimal.Decimal {
	slab, ok := v.SlabFor(join.Day())
	if !ok {
		return decimal.Zero
	}
	months := monthsElapsed(join, now, generic.GrantAfterEarning)
	return slab.EarnDays.Mul(decimal.NewFromInt(int64(months)))
}
