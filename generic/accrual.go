package generic

import "fmt"

// =============================================================================
// ACCRUAL CONFIGURATION TYPES
// =============================================================================

// GrantTiming decides whether a period's entitlement is credited at its
// start or only once the period has been earned.
type GrantTiming string

const (
	GrantInAdvance    GrantTiming = "in_advance"
	GrantAfterEarning GrantTiming = "after_earning"
)

type AccrualFrequency string

const (
	PerYear    AccrualFrequency = "per_year"
	PerQuarter AccrualFrequency = "per_quarter"
	PerMonth   AccrualFrequency = "per_month"
)

// PeriodsPerYear returns how many grants make up the annual figure.
func (f AccrualFrequency) PeriodsPerYear() int {
	switch f {
	case PerQuarter:
		return 4
	case PerMonth:
		return 12
	default:
		return 1
	}
}

// ProrateMethod decides how a mid-year joiner's first year is pro-rated.
type ProrateMethod string

const (
	ProrateFullMonth   ProrateMethod = "full_month"   // joining month always counts
	ProrateSlabSystem  ProrateMethod = "slab_system"  // day-of-month slab table
	ProrateRoundingOff ProrateMethod = "rounding_off" // joining month counts if joined by the 15th
)

// RoundingOffCutoffDay is the last joining day for which rounding_off still
// counts the joining month.
const RoundingOffCutoffDay = 15

func ParseGrantTiming(s string) (GrantTiming, error) {
	switch GrantTiming(s) {
	case GrantInAdvance, GrantAfterEarning:
		return GrantTiming(s), nil
	}
	return "", fmt.Errorf("%w: unknown grantLeaves %q", ErrInvalidInput, s)
}

func ParseAccrualFrequency(s string) (AccrualFrequency, error) {
	switch AccrualFrequency(s) {
	case PerYear, PerQuarter, PerMonth:
		return AccrualFrequency(s), nil
	}
	return "", fmt.Errorf("%w: unknown grantFrequency %q", ErrInvalidInput, s)
}

func ParseProrateMethod(s string) (ProrateMethod, error) {
	switch ProrateMethod(s) {
	case ProrateFullMonth, ProrateSlabSystem, ProrateRoundingOff:
		return ProrateMethod(s), nil
	case "":
		return ProrateFullMonth, nil
	}
	return "", fmt.Errorf("%w: unknown proRataCalculation %q", ErrInvalidInput, s)
}
