package factory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// PRESETS - Ready-to-use variant and workflow configurations
// =============================================================================
//
// Starting points for common HR setups. They return the admin JSON shape so
// callers can tweak fields before passing them to VariantFromJSON or
// WorkflowFromJSON.
//
//   AnnualLeave:      monthly accrual granted in advance, deducted on approval
//   CasualLeave:      yearly grant, rounding_off pro-rata, deducted at submission
//   SlabAnnualLeave:  monthly accrual after earning, onboarding slabs
//   UnpaidLeave:      never deducted
//   CompOff:          no accrual, credited by approved comp-off requests
//   ManagerThenHR:    two-step approval, HR optionally auto-approving

func AnnualLeave(id string, daysPerYear float64) VariantJSON {
	return VariantJSON{
		ID:                         id,
		LeaveTypeID:                "annual",
		Name:                       "Annual leave",
		PaidDaysInYear:             decimal.NewFromFloat(daysPerYear),
		GrantLeaves:                string(generic.GrantInAdvance),
		GrantFrequency:             string(generic.PerMonth),
		ProRataCalculation:         string(generic.ProrateFullMonth),
		LeaveBalanceDeductionAfter: true,
	}
}

func CasualLeave(id string, daysPerYear float64) VariantJSON {
	return VariantJSON{
		ID:                          id,
		LeaveTypeID:                 "casual",
		Name:                        "Casual leave",
		PaidDaysInYear:              decimal.NewFromFloat(daysPerYear),
		GrantLeaves:                 string(generic.GrantInAdvance),
		GrantFrequency:              string(generic.PerYear),
		ProRataCalculation:          string(generic.ProrateRoundingOff),
		LeaveBalanceDeductionBefore: true,
	}
}

// SlabAnnualLeave accrues after each month is earned; the joining month
// earns the rate of the slab covering the joining day.
func SlabAnnualLeave(id string, daysPerYear float64, slabs ...SlabJSON) VariantJSON {
	v := AnnualLeave(id, daysPerYear)
	v.Name = "Annual leave (slabs)"
	v.GrantLeaves = string(generic.GrantAfterEarning)
	v.ProRataCalculation = string(generic.ProrateSlabSystem)
	v.OnboardingSlabs = slabs
	return v
}

func UnpaidLeave(id string) VariantJSON {
	return VariantJSON{
		ID:                              id,
		LeaveTypeID:                     "unpaid",
		Name:                            "Unpaid leave",
		PaidDaysInYear:                  decimal.Zero,
		GrantLeaves:                     string(generic.GrantInAdvance),
		GrantFrequency:                  string(generic.PerYear),
		LeaveBalanceDeductionNotAllowed: true,
	}
}

func CompOff(id string) VariantJSON {
	return VariantJSON{
		ID:             id,
		LeaveTypeID:    "comp_off",
		Name:           "Comp-off",
		Kind:           "comp_off_variant",
		PaidDaysInYear: decimal.Zero,
		GrantLeaves:    string(generic.GrantAfterEarning),
		GrantFrequency: string(generic.PerYear),
	}
}

// ManagerThenHR builds a leave workflow. hrAutoDays > 0 makes the HR step
// auto-approve that many days after it is reached.
func ManagerThenHR(id string, hrAutoDays int, leaveTypes ...string) WorkflowJSON {
	hr := StepJSON{Title: "HR", RoleIDs: []string{"hr"}}
	name := "Manager then HR"
	if hrAutoDays > 0 {
		hr.AutoApproval = true
		hr.Days = hrAutoDays
		name = fmt.Sprintf("Manager, then HR after %d day(s)", hrAutoDays)
	}
	return WorkflowJSON{
		ID:           id,
		Name:         name,
		Process:      "leave",
		SubProcesses: leaveTypes,
		Steps: []StepJSON{
			{Title: "Manager", RoleIDs: []string{"manager"}},
			hr,
		},
	}
}
