package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestParseVariant_SlabSystem(t *testing.T) {
	// GIVEN: A slab-system variant in the admin JSON format
	// WHEN: Parsing it
	// THEN: Every field lands on the typed variant

	f := factory.New()
	v, err := f.ParseVariant("org-1", []byte(`{
		"id": "annual-2025",
		"leaveTypeId": "annual",
		"name": "Annual leave",
		"paidDaysInYear": 18,
		"grantLeaves": "after_earning",
		"grantFrequency": "per_month",
		"proRataCalculation": "slab_system",
		"onboardingSlabs": [
			{"fromDay": 1, "toDay": 15, "earnDays": 1.5},
			{"fromDay": 16, "toDay": 31, "earnDays": 1.0}
		],
		"leaveBalanceDeductionAfter": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, generic.VariantID("annual-2025"), v.ID)
	assert.Equal(t, generic.OrgID("org-1"), v.OrgID)
	assert.Equal(t, leave.AssignLeaveVariant, v.Kind)
	assert.True(t, v.PaidDaysInYear.Equal(generic.Days(18)))
	assert.Equal(t, generic.GrantAfterEarning, v.GrantLeaves)
	assert.Equal(t, generic.ProrateSlabSystem, v.ProRataCalculation)
	require.Len(t, v.OnboardingSlabs, 2)
	assert.True(t, v.OnboardingSlabs[0].EarnDays.Equal(generic.Days(1.5)))
	assert.Equal(t, leave.DeductOnApproval, v.DeductionTiming())

	back := f.VariantToJSON(v)
	assert.Equal(t, "slab_system", back.ProRataCalculation)
	assert.Len(t, back.OnboardingSlabs, 2)
}

func TestParseVariant_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"id": `},
		{"missing id", `{"leaveTypeId": "annual", "grantLeaves": "in_advance", "grantFrequency": "per_month"}`},
		{"bad timing", `{"id": "v", "leaveTypeId": "annual", "grantLeaves": "weekly", "grantFrequency": "per_month"}`},
		{"bad frequency", `{"id": "v", "leaveTypeId": "annual", "grantLeaves": "in_advance", "grantFrequency": "daily"}`},
		{"bad kind", `{"id": "v", "leaveTypeId": "annual", "kind": "bonus", "grantLeaves": "in_advance", "grantFrequency": "per_month"}`},
		{"negative days", `{"id": "v", "leaveTypeId": "annual", "paidDaysInYear": -1, "grantLeaves": "in_advance", "grantFrequency": "per_month"}`},
		{"slab out of range", `{"id": "v", "leaveTypeId": "annual", "grantLeaves": "in_advance", "grantFrequency": "per_month",
			"onboardingSlabs": [{"fromDay": 0, "toDay": 15, "earnDays": 1}]}`},
		{"overlapping slabs", `{"id": "v", "leaveTypeId": "annual", "grantLeaves": "in_advance", "grantFrequency": "per_month",
			"onboardingSlabs": [{"fromDay": 1, "toDay": 15, "earnDays": 1}, {"fromDay": 15, "toDay": 31, "earnDays": 1}]}`},
	}
	f := factory.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseVariant("org-1", []byte(tt.json))
			require.Error(t, err)
			assert.True(t, generic.IsClientError(err), "got %v", err)
		})
	}
}

func TestParseWorkflow(t *testing.T) {
	f := factory.New()
	w, err := f.ParseWorkflow("org-1", []byte(`{
		"id": "leave-default",
		"name": "Manager then HR",
		"process": "leave",
		"subProcesses": ["annual", "sick"],
		"steps": [
			{"title": "Manager", "roleIds": ["manager"]},
			{"roleIds": ["hr"], "autoApproval": true, "days": 2}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, leave.ProcessLeave, w.Process)
	assert.Equal(t, []generic.LeaveTypeID{"annual", "sick"}, w.SubProcesses)
	require.Len(t, w.Steps, 2)
	assert.Equal(t, "Step 2", w.Steps[1].Title)
	assert.False(t, w.Steps[1].IsImmediateAuto())
	assert.True(t, w.Governs(leave.KindLeave, "sick"))
	assert.False(t, w.Governs(leave.KindPTO, "sick"))

	back := f.WorkflowToJSON(w)
	assert.Equal(t, 2, back.Steps[1].Days)
}

func TestParseWorkflow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown process", `{"id": "w", "process": "expense", "steps": []}`},
		{"negative delay", `{"id": "w", "process": "leave", "steps": [{"autoApproval": true, "hours": -1}]}`},
		{"delay without auto", `{"id": "w", "process": "leave", "steps": [{"days": 1}]}`},
		{"missing id", `{"process": "leave"}`},
	}
	f := factory.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseWorkflow("org-1", []byte(tt.json))
			assert.True(t, generic.IsClientError(err), "got %v", err)
		})
	}
}

func TestPresets_ParseCleanly(t *testing.T) {
	f := factory.New()

	for _, vj := range []factory.VariantJSON{
		factory.AnnualLeave("annual", 12),
		factory.CasualLeave("casual", 6),
		factory.SlabAnnualLeave("annual-slab", 18,
			factory.SlabJSON{FromDay: 1, ToDay: 15, EarnDays: generic.Days(1.5)},
			factory.SlabJSON{FromDay: 16, ToDay: 31, EarnDays: generic.Days(1)},
		),
		factory.UnpaidLeave("unpaid"),
		factory.CompOff("comp-off"),
	} {
		t.Run(vj.ID, func(t *testing.T) {
			_, err := f.VariantFromJSON("org-1", vj)
			require.NoError(t, err)
		})
	}

	casual, err := f.VariantFromJSON("org-1", factory.CasualLeave("casual", 6))
	require.NoError(t, err)
	assert.Equal(t, leave.DeductOnSubmission, casual.DeductionTiming())
	assert.Equal(t, generic.ProrateRoundingOff, casual.ProRataCalculation)

	unpaid, err := f.VariantFromJSON("org-1", factory.UnpaidLeave("unpaid"))
	require.NoError(t, err)
	assert.Equal(t, leave.DeductNever, unpaid.DeductionTiming())

	compOff, err := f.VariantFromJSON("org-1", factory.CompOff("comp-off"))
	require.NoError(t, err)
	assert.Equal(t, leave.AssignCompOffVariant, compOff.Kind)
}

func TestPresets_ManagerThenHR(t *testing.T) {
	f := factory.New()

	manual, err := f.WorkflowFromJSON("org-1", factory.ManagerThenHR("wf", 0))
	require.NoError(t, err)
	require.Len(t, manual.Steps, 2)
	assert.False(t, manual.Steps[1].AutoApproval)
	assert.True(t, manual.Governs(leave.KindLeave, "anything"))

	delayed, err := f.WorkflowFromJSON("org-1", factory.ManagerThenHR("wf-delayed", 2, "annual"))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, delayed.Steps[1].Delay())
	assert.False(t, delayed.Governs(leave.KindLeave, "sick"))
}
