/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine. Every route except the
  scenario and admin ones is scoped to one organization.

ENDPOINTS (all under /api/orgs/{org}):
  Organization:
    GET    /                               Get organization
    PUT    /                               Create or update organization

  Configuration:
    GET    /variants                       List leave variants
    POST   /variants                       Create variant from admin JSON
    GET    /variants/{id}                  Get variant
    GET    /workflows                      List workflows
    POST   /workflows                      Create workflow from admin JSON
    GET    /workflows/{id}                 Get workflow
    GET    /employees                      List employees
    POST   /employees                      Create or update employee

  Requests:
    POST   /requests                       Submit leave / PTO / comp-off
    GET    /requests                       List (?user_id, ?status, ?kind)
    GET    /requests/{id}                  Get request
    POST   /requests/{id}/approve          Approve current step
    POST   /requests/{id}/reject           Reject
    POST   /requests/{id}/withdraw         Withdraw (leave only)
    POST   /requests/{id}/withdrawal/approve
    POST   /requests/{id}/withdrawal/reject

  Balances:
    GET    /balances                       List (?user_id, ?variant_id, ?year)
    GET    /balances/summary               Ledger summary per balance row
    GET    /transactions                   Ledger (?user_id, ?variant_id, ?year, ?request_id)
    POST   /deductions                     Deduct directly by leave type
    POST   /adjustments                    Manual +/- adjustment
    POST   /imports                        Opening balance import
    POST   /expiries                       Lapse or encash days
    POST   /employees/{user}/pending-sync  Rebuild pending_deduction rows

  Reconciliation:
    POST   /reconcile                      Pro-rata top-up (X-Session-ID gated)
    GET    /consistency                    Balance rows that disagree with ledger

  Admin:
    POST   /api/admin/time-based-approvals Run the auto-approval sweep now
    POST   /api/admin/reset                Delete all data

ERROR HANDLING:
  Engine errors are mapped by category:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Request not in a status that allows the action
  - 500: Invalid stored state, store errors

SECURITY NOTE:
  No authentication or authorization. Actors are taken from the body.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo organization loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// SessionHeader carries the caller's session for the reconcile gate.
const SessionHeader = "X-Session-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can drop all data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *leave.Engine
	Factory *factory.Factory
	Gate    *leave.Gate
	Log     *log.Entry

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around engine. gate may be nil, in which case
// reconcile runs ungated without a roster.
func NewHandler(engine *leave.Engine, gate *leave.Gate) *Handler {
	if gate == nil {
		gate = leave.NewGate(engine, nil)
	}
	return &Handler{
		Engine:  engine,
		Factory: factory.New(),
		Gate:    gate,
		Log:     log.WithField("component", "api"),
	}
}

func orgParam(r *http.Request) generic.OrgID {
	return generic.OrgID(chi.URLParam(r, "org"))
}

// =============================================================================
// ORGANIZATION HANDLERS
// =============================================================================

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.Engine.Store.GetOrganization(r.Context(), orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to get organization", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationDTO(org, h.Engine.Now()))
}

// SaveOrganization creates or updates the organization in the path.
func (h *Handler) SaveOrganization(w http.ResponseWriter, r *http.Request) {
	var req OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	org := leave.Organization{ID: orgParam(r), Name: req.Name}
	if req.EffectiveDate != "" {
		d, err := time.Parse(dateLayout, req.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
			return
		}
		org.EffectiveDate = d
	}
	if err := h.Engine.Store.SaveOrganization(r.Context(), org); err != nil {
		writeEngineError(w, "Failed to save organization", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationDTO(org, h.Engine.Now()))
}

// =============================================================================
// VARIANT AND WORKFLOW HANDLERS
// =============================================================================

func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.Engine.Store.ListVariants(r.Context(), orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to list variants", err)
		return
	}
	dtos := make([]VariantDTO, len(variants))
	for i, v := range variants {
		dtos[i] = h.Factory.VariantToJSON(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	v, err := h.Engine.Store.GetVariant(r.Context(), orgParam(r), generic.VariantID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, "Failed to get variant", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.VariantToJSON(v))
}

// CreateVariant parses the admin JSON and stores the variant.
func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	v, err := h.Factory.ParseVariant(orgParam(r), body)
	if err != nil {
		writeEngineError(w, "Invalid variant", err)
		return
	}
	if err := h.Engine.Store.SaveVariant(r.Context(), v); err != nil {
		writeEngineError(w, "Failed to save variant", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.VariantToJSON(v))
}

func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.Engine.Store.ListWorkflows(r.Context(), orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to list workflows", err)
		return
	}
	dtos := make([]WorkflowDTO, len(workflows))
	for i, wf := range workflows {
		dtos[i] = h.Factory.WorkflowToJSON(wf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.Engine.Store.GetWorkflow(r.Context(), orgParam(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "Failed to get workflow", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.WorkflowToJSON(wf))
}

// CreateWorkflow stores a workflow. Requests already in flight keep the
// steps they were submitted with.
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	wf, err := h.Factory.ParseWorkflow(orgParam(r), body)
	if err != nil {
		writeEngineError(w, "Invalid workflow", err)
		return
	}
	if err := h.Engine.Store.SaveWorkflow(r.Context(), wf); err != nil {
		writeEngineError(w, "Failed to save workflow", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.WorkflowToJSON(wf))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Engine.Store.ListEmployees(r.Context(), orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates an employee. The joining date accepts
// YYYY-MM-DD or the roster's DD-MMM-YYYY.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	emp := leave.Employee{
		ID:             generic.UserID(req.ID),
		OrgID:          orgParam(r),
		Name:           req.Name,
		EmployeeNumber: req.EmployeeNumber,
	}
	if req.JoiningDate != "" {
		d, err := parseDate(req.JoiningDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid joining_date format (use YYYY-MM-DD or DD-MMM-YYYY)", err)
			return
		}
		emp.JoiningDate = &d
	}
	if err := h.Engine.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeEngineError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a request on its workflow's first step. Immediate
// auto-approval steps resolve before the response is written.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end := start
	if req.EndDate != "" {
		if end, err = time.Parse(dateLayout, req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
	}
	kind := leave.RequestKind(req.Kind)
	if kind == "" {
		kind = leave.KindLeave
	}

	created, err := h.Engine.Submit(r.Context(), leave.SubmitInput{
		OrgID:       orgParam(r),
		UserID:      generic.UserID(req.UserID),
		Kind:        kind,
		LeaveTypeID: generic.LeaveTypeID(req.LeaveTypeID),
		WorkflowID:  req.WorkflowID,
		StartDate:   start,
		EndDate:     end,
		WorkingDays: req.WorkingDays,
		Reason:      req.Reason,
	})
	if err != nil {
		writeEngineError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := h.Engine.ListRequests(r.Context(), leave.RequestFilter{
		OrgID:  orgParam(r),
		UserID: generic.UserID(q.Get("user_id")),
		Kind:   leave.RequestKind(q.Get("kind")),
		Status: leave.RequestStatus(q.Get("status")),
	})
	if err != nil {
		writeEngineError(w, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.requestInOrg(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// requestInOrg loads the {id} request and writes a 404 when it belongs to
// another organization.
func (h *Handler) requestInOrg(w http.ResponseWriter, r *http.Request) (leave.Request, bool) {
	req, err := h.Engine.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err == nil && req.OrgID != orgParam(r) {
		err = generic.ErrRequestNotFound
	}
	if err != nil {
		writeEngineError(w, "Failed to get request", err)
		return leave.Request{}, false
	}
	return req, true
}

// requestAction wraps the engine's transitions with the org check and body
// decoding shared by every action endpoint.
func (h *Handler) requestAction(message string, fn func(ctx context.Context, id string, body ActionRequest) (leave.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if body.Actor == "" {
			writeError(w, http.StatusBadRequest, "actor is required", nil)
			return
		}
		req, ok := h.requestInOrg(w, r)
		if !ok {
			return
		}
		updated, err := fn(r.Context(), req.ID, body)
		if err != nil {
			writeEngineError(w, message, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestDTO(updated))
	}
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction("Failed to approve request", func(ctx context.Context, id string, body ActionRequest) (leave.Request, error) {
		return h.Engine.ProcessApproval(ctx, id, body.Actor)
	})(w, r)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction("Failed to reject request", func(ctx context.Context, id string, body ActionRequest) (leave.Request, error) {
		return h.Engine.RejectRequest(ctx, id, body.Actor, body.Reason)
	})(w, r)
}

func (h *Handler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction("Failed to withdraw request", func(ctx context.Context, id string, body ActionRequest) (leave.Request, error) {
		return h.Engine.Withdraw(ctx, id, body.Actor, body.Reason)
	})(w, r)
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.requestAction("Failed to approve withdrawal", func(ctx context.Context, id string, body ActionRequest) (leave.Request, error) {
		return h.Engine.ApproveWithdrawal(ctx, id, body.Actor)
	})(w, r)
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.requestAction("Failed to reject withdrawal", func(ctx context.Context, id string, body ActionRequest) (leave.Request, error) {
		return h.Engine.RejectWithdrawal(ctx, id, body.Actor, body.Reason)
	})(w, r)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

func balanceFilter(r *http.Request) (generic.BalanceFilter, error) {
	q := r.URL.Query()
	f := generic.BalanceFilter{
		OrgID:     orgParam(r),
		UserID:    generic.UserID(q.Get("user_id")),
		VariantID: generic.VariantID(q.Get("variant_id")),
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return f, err
		}
		f.Year = year
	}
	return f, nil
}

func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	filter, err := balanceFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	balances, err := h.Engine.Balances(r.Context(), filter)
	if err != nil {
		writeEngineError(w, "Failed to list balances", err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LedgerSummaries reports, for every matching balance row, what its ledger
// says happened to it.
func (h *Handler) LedgerSummaries(w http.ResponseWriter, r *http.Request) {
	filter, err := balanceFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	balances, err := h.Engine.Balances(r.Context(), filter)
	if err != nil {
		writeEngineError(w, "Failed to list balances", err)
		return
	}
	dtos := make([]LedgerSummaryDTO, 0, len(balances))
	for _, b := range balances {
		txs, err := h.Engine.Transactions(r.Context(), generic.TransactionFilter{
			OrgID:     b.Key.OrgID,
			UserID:    b.Key.UserID,
			VariantID: b.Key.VariantID,
			Year:      b.Key.Year,
		})
		if err != nil {
			writeEngineError(w, "Failed to list transactions", err)
			return
		}
		dtos = append(dtos, toLedgerSummaryDTO(b, leave.SummarizeLedger(txs)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.TransactionFilter{
		OrgID:          orgParam(r),
		UserID:         generic.UserID(q.Get("user_id")),
		VariantID:      generic.VariantID(q.Get("variant_id")),
		LeaveRequestID: q.Get("request_id"),
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		filter.Year = year
	}
	if t := q.Get("type"); t != "" {
		filter.Types = []generic.TransactionType{generic.TransactionType(t)}
	}
	txs, err := h.Engine.Transactions(r.Context(), filter)
	if err != nil {
		writeEngineError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// Deduct takes days off the balance of a leave type outside any workflow.
func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req DeductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	b, err := h.Engine.DeductBalance(r.Context(), generic.UserID(req.UserID), generic.LeaveTypeID(req.LeaveTypeID), req.Amount, orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to deduct balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	h.balanceChange(w, r, "Failed to create adjustment", func(ctx context.Context, key generic.BalanceKey, req BalanceChangeRequest) (generic.Balance, error) {
		return h.Engine.AdjustBalance(ctx, key, req.Amount, req.Description, req.Actor)
	})
}

func (h *Handler) ImportOpeningBalance(w http.ResponseWriter, r *http.Request) {
	h.balanceChange(w, r, "Failed to import opening balance", func(ctx context.Context, key generic.BalanceKey, req BalanceChangeRequest) (generic.Balance, error) {
		return h.Engine.ImportOpeningBalance(ctx, key, req.Amount, req.Actor)
	})
}

func (h *Handler) ExpireBalance(w http.ResponseWriter, r *http.Request) {
	h.balanceChange(w, r, "Failed to expire balance", func(ctx context.Context, key generic.BalanceKey, req BalanceChangeRequest) (generic.Balance, error) {
		return h.Engine.ExpireBalance(ctx, key, req.Amount, generic.TransactionSubtype(req.Subtype), req.Actor)
	})
}

func (h *Handler) balanceChange(w http.ResponseWriter, r *http.Request, message string, fn func(context.Context, generic.BalanceKey, BalanceChangeRequest) (generic.Balance, error)) {
	var req BalanceChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "user_id and variant_id are required", nil)
		return
	}
	if req.Actor == "" {
		req.Actor = leave.ActorSystem
	}
	key := generic.BalanceKey{
		UserID:    generic.UserID(req.UserID),
		VariantID: generic.VariantID(req.VariantID),
		Year:      req.Year,
		OrgID:     orgParam(r),
	}
	if key.Year == 0 {
		key.Year = h.currentYear(r.Context(), key.OrgID)
	}
	b, err := fn(r.Context(), key, req)
	if err != nil {
		writeEngineError(w, message, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBalanceDTO(b))
}

// currentYear is the year of the organization's leave-year start today.
func (h *Handler) currentYear(ctx context.Context, orgID generic.OrgID) int {
	now := h.Engine.Now()
	org, err := h.Engine.Store.GetOrganization(ctx, orgID)
	if err != nil {
		return now.Year()
	}
	return org.LeaveYear().StartFor(now).Year()
}

func (h *Handler) SyncPendingDeductions(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.SyncPendingDeductionsForUser(r.Context(), generic.UserID(chi.URLParam(r, "user")), orgParam(r))
	if err != nil {
		writeEngineError(w, "Failed to sync pending deductions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": result.Purged, "created": result.Created})
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Reconcile runs the pro-rata top-up. With a session header the run
// happens at most once per session; without one it always runs.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	orgID := orgParam(r)
	var (
		summary leave.ReconcileSummary
		ran     = true
		err     error
	)
	if session := r.Header.Get(SessionHeader); session != "" {
		summary, ran, err = h.Gate.Run(r.Context(), orgID, session)
	} else {
		summary, err = h.Engine.AutoProRataCalculation(r.Context(), orgID, h.Gate.Source)
	}
	if err != nil {
		writeEngineError(w, "Failed to reconcile balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileDTO(summary, ran))
}

func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	filter, err := balanceFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	issues, err := h.Engine.CheckConsistency(r.Context(), filter)
	if err != nil {
		writeEngineError(w, "Failed to check consistency", err)
		return
	}
	dtos := make([]InconsistencyDTO, len(issues))
	for i, is := range issues {
		dtos[i] = InconsistencyDTO{
			UserID:    string(is.Key.UserID),
			VariantID: string(is.Key.VariantID),
			Year:      is.Key.Year,
			Balance:   days(is.Balance),
			LedgerNet: days(is.LedgerNet),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunTimeBasedApprovals runs the sweep the scheduler runs on its ticker.
func (h *Handler) RunTimeBasedApprovals(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.ProcessPendingTimeBasedApprovals(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to process time-based approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepDTO(result))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Engine.Store.(Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	return generic.ParseRosterDate(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError picks the status from the error's category.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case generic.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case generic.IsClientError(err):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, generic.ErrInvalidState):
		code = "invalid_state"
	case generic.IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("code", code).Error(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}
