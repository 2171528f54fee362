/*
scenarios.go - Demo organization loaders for testing and demonstrations

PURPOSE:

	Provides pre-built organizations that populate the database with
	realistic configuration for demos. Each scenario creates an
	organization, its leave variants and workflows from admin JSON,
	employees, then runs the pro-rata reconciliation so balances exist.

AVAILABLE SCENARIOS:

	standard:       Calendar leave year, annual + casual + comp-off,
	                manager then HR approval
	april-slabs:    April-March leave year, slab-system onboarding,
	                HR step auto-approves after two days
	legacy-import:  Imported opening balance plus a pending request with
	                its pending_deduction display row

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create organization
 3. Create variants and workflows via factory
 4. Create employees
 5. Reconcile balances
 6. Optionally submit requests

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "april-slabs", "org_id": "acme"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/variant.go, factory/workflow.go: JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// DefaultScenarioOrg is used when a load request names no organization.
const DefaultScenarioOrg = "demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard",
		Name:        "Standard",
		Description: "Calendar leave year with annual, casual and comp-off leave; manager then HR approval",
	},
	{
		ID:          "april-slabs",
		Name:        "April Leave Year",
		Description: "April-March leave year, slab-based onboarding accrual, HR auto-approves after 2 days",
	},
	{
		ID:          "legacy-import",
		Name:        "Legacy Import",
		Description: "Opening balance imported from the previous system and a pending request",
	},
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrgID == "" {
		req.OrgID = DefaultScenarioOrg
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID, generic.OrgID(req.OrgID)); err != nil {
		writeEngineError(w, "Failed to load scenario", err)
		return
	}

	h.Log.WithField("scenario", req.ScenarioID).WithField("org_id", req.OrgID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
		"org_id":   req.OrgID,
	})
}

func (h *Handler) loadScenario(ctx context.Context, id string, orgID generic.OrgID) error {
	var loader func(context.Context, generic.OrgID) error
	switch id {
	case "standard":
		loader = h.loadStandardScenario
	case "april-slabs":
		loader = h.loadAprilSlabsScenario
	case "legacy-import":
		loader = h.loadLegacyImportScenario
	default:
		return fmt.Errorf("%w: unknown scenario %q", generic.ErrInvalidInput, id)
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := loader(ctx, orgID); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const standardWorkflows = `[
	{
		"id": "casual-fast",
		"name": "Manager only",
		"process": "leave",
		"subProcesses": ["casual"],
		"steps": [{"title": "Manager", "roleIds": ["manager"]}]
	},
	{
		"id": "comp-off-default",
		"name": "Comp-off by manager",
		"process": "comp_off",
		"steps": [{"title": "Manager", "roleIds": ["manager"]}]
	}
]`

func (h *Handler) loadStandardScenario(ctx context.Context, orgID generic.OrgID) error {
	now := h.Engine.Now()
	if err := h.Engine.Store.SaveOrganization(ctx, leave.Organization{ID: orgID, Name: "Standard Co"}); err != nil {
		return err
	}
	if err := h.seedVariants(ctx, orgID,
		factory.AnnualLeave("annual", 12),
		factory.CasualLeave("casual", 6),
		factory.CompOff("comp-off"),
	); err != nil {
		return err
	}
	if err := h.seedStandardWorkflows(ctx, orgID); err != nil {
		return err
	}
	veteran := generic.StartOfYear(now.Year() - 2)
	joiner := generic.DateOf(now.AddDate(0, -2, 0))
	if err := h.seedEmployees(ctx, orgID,
		leave.Employee{ID: "alice", Name: "Alice Martin", EmployeeNumber: "E-001", JoiningDate: &veteran},
		leave.Employee{ID: "bob", Name: "Bob Chen", EmployeeNumber: "E-002", JoiningDate: &joiner},
	); err != nil {
		return err
	}
	if _, err := h.Engine.AutoProRataCalculation(ctx, orgID, nil); err != nil {
		return err
	}

	// One request waiting on the manager, one already through
	start := generic.DateOf(now.AddDate(0, 0, 14))
	if _, err := h.Engine.Submit(ctx, leave.SubmitInput{
		OrgID: orgID, UserID: "alice", Kind: leave.KindLeave, LeaveTypeID: "annual",
		StartDate: start, EndDate: start.AddDate(0, 0, 2), WorkingDays: generic.Days(3),
		Reason: "Family trip",
	}); err != nil {
		return err
	}
	casual, err := h.Engine.Submit(ctx, leave.SubmitInput{
		OrgID: orgID, UserID: "bob", Kind: leave.KindLeave, LeaveTypeID: "casual",
		StartDate: start, EndDate: start, WorkingDays: generic.Days(1),
	})
	if err != nil {
		return err
	}
	_, err = h.Engine.ProcessApproval(ctx, casual.ID, "manager-1")
	return err
}

func (h *Handler) loadAprilSlabsScenario(ctx context.Context, orgID generic.OrgID) error {
	now := h.Engine.Now()
	org := leave.Organization{ID: orgID, Name: "April Ltd", EffectiveDate: generic.Date(now.Year(), time.April, 1)}
	if err := h.Engine.Store.SaveOrganization(ctx, org); err != nil {
		return err
	}
	sick, err := variantsFromJSON(`[
		{"id": "sick", "leaveTypeId": "sick", "name": "Sick leave", "paidDaysInYear": 8,
		 "grantLeaves": "in_advance", "grantFrequency": "per_quarter", "proRataCalculation": "full_month",
		 "leaveBalanceDeductionBefore": true}
	]`)
	if err != nil {
		return err
	}
	slabs := factory.SlabAnnualLeave("annual-slab", 18,
		factory.SlabJSON{FromDay: 1, ToDay: 10, EarnDays: generic.Days(1.5)},
		factory.SlabJSON{FromDay: 11, ToDay: 20, EarnDays: generic.Days(1)},
		factory.SlabJSON{FromDay: 21, ToDay: 31, EarnDays: generic.Days(0.5)},
	)
	if err := h.seedVariants(ctx, orgID, append(sick, slabs)...); err != nil {
		return err
	}
	workflows, err := workflowsFromJSON(`[
		{
			"id": "sick-auto",
			"name": "Sick leave auto-approved",
			"process": "leave",
			"subProcesses": ["sick"],
			"steps": [{"title": "Auto", "autoApproval": true}]
		}
	]`)
	if err != nil {
		return err
	}
	workflows = append(workflows, factory.ManagerThenHR("leave-delayed-hr", 2))
	if err := h.seedWorkflows(ctx, orgID, workflows...); err != nil {
		return err
	}
	ly := org.LeaveYear().YearFor(now)
	early := generic.Date(ly.Start.Year(), ly.Start.Month(), 5)
	late := generic.Date(ly.Start.Year(), ly.Start.Month(), 25)
	if err := h.seedEmployees(ctx, orgID,
		leave.Employee{ID: "carol", Name: "Carol Diaz", EmployeeNumber: "A-100", JoiningDate: &early},
		leave.Employee{ID: "dev", Name: "Dev Patel", EmployeeNumber: "A-101", JoiningDate: &late},
	); err != nil {
		return err
	}
	if _, err := h.Engine.AutoProRataCalculation(ctx, orgID, nil); err != nil {
		return err
	}

	start := generic.DateOf(now.AddDate(0, 0, 7))
	req, err := h.Engine.Submit(ctx, leave.SubmitInput{
		OrgID: orgID, UserID: "carol", Kind: leave.KindLeave, LeaveTypeID: "annual",
		StartDate: start, EndDate: start.AddDate(0, 0, 1), WorkingDays: generic.Days(2),
	})
	if err != nil {
		return err
	}
	// Manager approves; HR is now scheduled for the sweep
	_, err = h.Engine.ProcessApproval(ctx, req.ID, "manager-1")
	return err
}

func (h *Handler) loadLegacyImportScenario(ctx context.Context, orgID generic.OrgID) error {
	now := h.Engine.Now()
	if err := h.Engine.Store.SaveOrganization(ctx, leave.Organization{ID: orgID, Name: "Legacy Inc"}); err != nil {
		return err
	}
	if err := h.seedVariants(ctx, orgID, factory.AnnualLeave("annual", 12)); err != nil {
		return err
	}
	if err := h.seedStandardWorkflows(ctx, orgID); err != nil {
		return err
	}
	joined := generic.StartOfYear(now.Year() - 3)
	if err := h.seedEmployees(ctx, orgID,
		leave.Employee{ID: "erin", Name: "Erin Walsh", EmployeeNumber: "L-7", JoiningDate: &joined},
	); err != nil {
		return err
	}

	key := generic.BalanceKey{UserID: "erin", VariantID: "annual", Year: now.Year(), OrgID: orgID}
	if _, err := h.Engine.ImportOpeningBalance(ctx, key, generic.Days(4.5), "migration"); err != nil {
		return err
	}
	if _, err := h.Engine.AutoProRataCalculation(ctx, orgID, nil); err != nil {
		return err
	}

	start := generic.DateOf(now.AddDate(0, 0, 10))
	if _, err := h.Engine.Submit(ctx, leave.SubmitInput{
		OrgID: orgID, UserID: "erin", Kind: leave.KindLeave, LeaveTypeID: "annual",
		StartDate: start, EndDate: start.AddDate(0, 0, 1), WorkingDays: generic.Days(2),
	}); err != nil {
		return err
	}
	_, err := h.Engine.SyncPendingDeductionsForUser(ctx, "erin", orgID)
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedStandardWorkflows(ctx context.Context, orgID generic.OrgID) error {
	workflows, err := workflowsFromJSON(standardWorkflows)
	if err != nil {
		return err
	}
	workflows = append([]factory.WorkflowJSON{factory.ManagerThenHR("leave-default", 0)}, workflows...)
	return h.seedWorkflows(ctx, orgID, workflows...)
}

func variantsFromJSON(jsonStr string) ([]factory.VariantJSON, error) {
	var out []factory.VariantJSON
	err := json.Unmarshal([]byte(jsonStr), &out)
	return out, err
}

func workflowsFromJSON(jsonStr string) ([]factory.WorkflowJSON, error) {
	var out []factory.WorkflowJSON
	err := json.Unmarshal([]byte(jsonStr), &out)
	return out, err
}

func (h *Handler) seedVariants(ctx context.Context, orgID generic.OrgID, configs ...factory.VariantJSON) error {
	for _, vj := range configs {
		v, err := h.Factory.VariantFromJSON(orgID, vj)
		if err != nil {
			return err
		}
		if err := h.Engine.Store.SaveVariant(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedWorkflows(ctx context.Context, orgID generic.OrgID, configs ...factory.WorkflowJSON) error {
	for _, wj := range configs {
		wf, err := h.Factory.WorkflowFromJSON(orgID, wj)
		if err != nil {
			return err
		}
		if err := h.Engine.Store.SaveWorkflow(ctx, wf); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedEmployees(ctx context.Context, orgID generic.OrgID, employees ...leave.Employee) error {
	for _, e := range employees {
		e.OrgID = orgID
		if err := h.Engine.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
