/*
Package factory provides JSON to Go conversion for leave configuration.

PURPOSE:
  Converts JSON leave-variant and workflow definitions into leave.LeaveVariant
  and leave.Workflow values, validating them on the way. HR configures
  policies in JSON (admin UI, seed files); the engine only sees typed,
  validated structs.

VARIANT JSON:
  {
    "id": "annual-2025",
    "leaveTypeId": "annual",
    "name": "Annual leave",
    "kind": "leave_variant",
    "paidDaysInYear": 18,
    "grantLeaves": "after_earning",
    "grantFrequency": "per_month",
    "proRataCalculation": "slab_system",
    "onboardingSlabs": [
      {"fromDay": 1,  "toDay": 15, "earnDays": 1.5},
      {"fromDay": 16, "toDay": 31, "earnDays": 1.0}
    ],
    "leaveBalanceDeductionBefore": false,
    "leaveBalanceDeductionAfter": true,
    "leaveBalanceDeductionNotAllowed": false
  }

WORKFLOW JSON:
  {
    "id": "leave-default",
    "name": "Manager then HR",
    "process": "leave",
    "subProcesses": ["annual", "sick"],
    "steps": [
      {"title": "Manager", "roleIds": ["manager"]},
      {"title": "HR", "roleIds": ["hr"], "autoApproval": true, "days": 2}
    ]
  }

USAGE:
  f := factory.New()
  variant, err := f.ParseVariant("org-1", jsonBytes)
  workflow, err := f.ParseWorkflow("org-1", jsonBytes)
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type VariantJSON struct {
	ID                              string          `json:"id"`
	LeaveTypeID                     string          `json:"leaveTypeId"`
	Name                            string          `json:"name"`
	Kind                            string          `json:"kind,omitempty"`
	PaidDaysInYear                  decimal.Decimal `json:"paidDaysInYear"`
	GrantLeaves                     string          `json:"grantLeaves"`
	GrantFrequency                  string          `json:"grantFrequency"`
	ProRataCalculation              string          `json:"proRataCalculation,omitempty"`
	OnboardingSlabs                 []SlabJSON      `json:"onboardingSlabs,omitempty"`
	LeaveBalanceDeductionBefore     bool            `json:"leaveBalanceDeductionBefore"`
	LeaveBalanceDeductionAfter      bool            `json:"leaveBalanceDeductionAfter"`
	LeaveBalanceDeductionNotAllowed bool            `json:"leaveBalanceDeductionNotAllowed"`
}

type SlabJSON struct {
	FromDay  int             `json:"fromDay"`
	ToDay    int             `json:"toDay"`
	EarnDays decimal.Decimal `json:"earnDays"`
}

// Factory converts JSON configuration to engine types.
type Factory struct{}

func New() *Factory {
	return &Factory{}
}

// ParseVariant parses and validates a leave-variant definition for orgID.
func (f *Factory) ParseVariant(orgID generic.OrgID, data []byte) (leave.LeaveVariant, error) {
	var vj VariantJSON
	if err := json.Unmarshal(data, &vj); err != nil {
		return leave.LeaveVariant{}, fmt.Errorf("%w: failed to parse variant JSON: %s", generic.ErrInvalidInput, err)
	}
	return f.VariantFromJSON(orgID, vj)
}

// VariantFromJSON converts VariantJSON to leave.LeaveVariant.
func (f *Factory) VariantFromJSON(orgID generic.OrgID, vj VariantJSON) (leave.LeaveVariant, error) {
	if vj.ID == "" || vj.LeaveTypeID == "" {
		return leave.LeaveVariant{}, fmt.Errorf("%w: variant id and leaveTypeId are required", generic.ErrInvalidInput)
	}
	if vj.PaidDaysInYear.IsNegative() {
		return leave.LeaveVariant{}, fmt.Errorf("%w: paidDaysInYear must not be negative", generic.ErrInvalidInput)
	}
	timing, err := generic.ParseGrantTiming(vj.GrantLeaves)
	if err != nil {
		return leave.LeaveVariant{}, err
	}
	freq, err := generic.ParseAccrualFrequency(vj.GrantFrequency)
	if err != nil {
		return leave.LeaveVariant{}, err
	}
	method, err := generic.ParseProrateMethod(vj.ProRataCalculation)
	if err != nil {
		return leave.LeaveVariant{}, err
	}
	kind, err := parseKind(vj.Kind)
	if err != nil {
		return leave.LeaveVariant{}, err
	}
	slabs, err := parseSlabs(vj.OnboardingSlabs)
	if err != nil {
		return leave.LeaveVariant{}, fmt.Errorf("variant %s: %w", vj.ID, err)
	}

	return leave.LeaveVariant{
		ID:                  generic.VariantID(vj.ID),
		OrgID:               orgID,
		LeaveTypeID:         generic.LeaveTypeID(vj.LeaveTypeID),
		Name:                vj.Name,
		Kind:                kind,
		PaidDaysInYear:      vj.PaidDaysInYear,
		GrantLeaves:         timing,
		GrantFrequency:      freq,
		ProRataCalculation:  method,
		OnboardingSlabs:     slabs,
		DeductionBefore:     vj.LeaveBalanceDeductionBefore,
		DeductionAfter:      vj.LeaveBalanceDeductionAfter,
		DeductionNotAllowed: vj.LeaveBalanceDeductionNotAllowed,
	}, nil
}

// VariantToJSON converts a leave.LeaveVariant to VariantJSON.
func (f *Factory) VariantToJSON(v leave.LeaveVariant) VariantJSON {
	vj := VariantJSON{
		ID:                              string(v.ID),
		LeaveTypeID:                     string(v.LeaveTypeID),
		Name:                            v.Name,
		Kind:                            string(v.Kind),
		PaidDaysInYear:                  v.PaidDaysInYear,
		GrantLeaves:                     string(v.GrantLeaves),
		GrantFrequency:                  string(v.GrantFrequency),
		ProRataCalculation:              string(v.ProRataCalculation),
		LeaveBalanceDeductionBefore:     v.DeductionBefore,
		LeaveBalanceDeductionAfter:      v.DeductionAfter,
		LeaveBalanceDeductionNotAllowed: v.DeductionNotAllowed,
	}
	for _, s := range v.OnboardingSlabs {
		vj.OnboardingSlabs = append(vj.OnboardingSlabs, SlabJSON{FromDay: s.FromDay, ToDay: s.ToDay, EarnDays: s.EarnDays})
	}
	return vj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseKind(s string) (leave.AssignmentType, error) {
	switch leave.AssignmentType(s) {
	case "":
		return leave.AssignLeaveVariant, nil
	case leave.AssignLeaveVariant, leave.AssignPTOVariant, leave.AssignCompOffVariant:
		return leave.AssignmentType(s), nil
	}
	return "", fmt.Errorf("%w: unknown variant kind %q", generic.ErrInvalidInput, s)
}

// parseSlabs checks every slab sits inside 1..31 and no two overlap.
func parseSlabs(in []SlabJSON) ([]leave.Slab, error) {
	var covered [32]bool
	out := make([]leave.Slab, 0, len(in))
	for _, sj := range in {
		if sj.FromDay < 1 || sj.ToDay > 31 || sj.FromDay > sj.ToDay {
			return nil, fmt.Errorf("%w: slab %d-%d outside 1-31", generic.ErrInvalidInput, sj.FromDay, sj.ToDay)
		}
		if sj.EarnDays.IsNegative() {
			return nil, fmt.Errorf("%w: slab %d-%d has negative earnDays", generic.ErrInvalidInput, sj.FromDay, sj.ToDay)
		}
		for d := sj.FromDay; d <= sj.ToDay; d++ {
			if covered[d] {
				return nil, fmt.Errorf("%w: slabs overlap on day %d", generic.ErrInvalidInput, d)
			}
			covered[d] = true
		}
		out = append(out, leave.Slab{FromDay: sj.FromDay, ToDay: sj.ToDay, EarnDays: sj.EarnDays})
	}
	return out, nil
}
