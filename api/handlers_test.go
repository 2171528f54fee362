/*
handlers_test.go - HTTP tests for the request and configuration endpoints

Tests for:
- Organization, variant and workflow configuration
- Request lifecycle through the API (submit, approve, reject, withdraw)
- Error status mapping (400 / 404 / 409)
- Time-based approval sweep and reconcile gating via admin/org endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	h      *Handler
	router http.Handler
	now    time.Time
}

func init() {
	log.SetOutput(io.Discard)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ts := &testServer{t: t, now: time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)}
	engine := leave.NewEngine(store)
	engine.Now = func() time.Time { return ts.now }
	ts.h = NewHandler(engine, nil)
	ts.router = NewRouter(ts.h, nil)
	return ts
}

func (ts *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedOrg configures org "acme" with an annual variant deducted on
// approval, a casual variant deducted at submission, a manager then HR
// workflow and one employee holding 10 imported days of each.
func (ts *testServer) seedOrg(hrStep string) {
	t := ts.t
	t.Helper()

	rec := ts.do(http.MethodPut, "/api/orgs/acme/", OrganizationRequest{Name: "Acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, v := range []string{
		`{"id": "annual", "leaveTypeId": "annual", "name": "Annual", "paidDaysInYear": 12,
		  "grantLeaves": "in_advance", "grantFrequency": "per_month", "leaveBalanceDeductionAfter": true}`,
		`{"id": "casual", "leaveTypeId": "casual", "name": "Casual", "paidDaysInYear": 6,
		  "grantLeaves": "in_advance", "grantFrequency": "per_year", "leaveBalanceDeductionBefore": true}`,
	} {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/variants", v)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = ts.do(http.MethodPost, "/api/orgs/acme/workflows", `{
		"id": "leave-default", "name": "Manager then HR", "process": "leave",
		"steps": [{"title": "Manager", "roleIds": ["manager"]}, `+hrStep+`]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/orgs/acme/employees", EmployeeRequest{ID: "emp-1", Name: "Ana", JoiningDate: "2020-01-06"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, variant := range []string{"annual", "casual"} {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/imports", map[string]any{
			"user_id": "emp-1", "variant_id": variant, "amount": 10, "actor": "migration",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func (ts *testServer) submit(leaveType string, days float64) RequestDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/orgs/acme/requests", map[string]any{
		"user_id": "emp-1", "kind": "leave", "leave_type_id": leaveType,
		"start_date": "2025-07-01", "end_date": "2025-07-02", "working_days": days,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[RequestDTO](ts.t, rec)
}

func (ts *testServer) balance(variant string) BalanceDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, "/api/orgs/acme/balances?user_id=emp-1&variant_id="+variant, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code)
	balances := decode[[]BalanceDTO](ts.t, rec)
	require.Len(ts.t, balances, 1)
	return balances[0]
}

const manualHR = `{"title": "HR", "roleIds": ["hr"]}`

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestConfigurationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOrg(manualHR)

	rec := ts.do(http.MethodGet, "/api/orgs/acme/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	org := decode[OrganizationDTO](t, rec)
	assert.Equal(t, "[2025-01-01, 2025-12-31]", org.LeaveYear)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/variants", nil)
	variants := decode[[]VariantDTO](t, rec)
	assert.Len(t, variants, 2)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/workflows/leave-default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wf := decode[WorkflowDTO](t, rec)
	assert.Len(t, wf.Steps, 2)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/employees", nil)
	employees := decode[[]EmployeeDTO](t, rec)
	require.Len(t, employees, 1)
	assert.Equal(t, "2020-01-06", employees[0].JoiningDate)
}

func TestConfigurationEndpoints_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown org", http.MethodGet, "/api/orgs/nope/", nil, http.StatusNotFound},
		{"unknown variant", http.MethodGet, "/api/orgs/acme/variants/nope", nil, http.StatusNotFound},
		{"invalid variant", http.MethodPost, "/api/orgs/acme/variants", `{"id": "v", "leaveTypeId": "x", "grantLeaves": "weekly", "grantFrequency": "per_month"}`, http.StatusBadRequest},
		{"invalid workflow", http.MethodPost, "/api/orgs/acme/workflows", `{"id": "w", "process": "expense"}`, http.StatusBadRequest},
		{"bad effective date", http.MethodPut, "/api/orgs/acme/", `{"name": "Acme", "effective_date": "April"}`, http.StatusBadRequest},
		{"bad joining date", http.MethodPost, "/api/orgs/acme/employees", `{"id": "e", "joining_date": "soon"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/orgs/acme/requests", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCreateEmployee_RosterDateFormat(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/orgs/acme/employees", EmployeeRequest{ID: "emp-9", JoiningDate: "07-APR-2025"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-04-07", decode[EmployeeDTO](t, rec).JoiningDate)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestRequestLifecycle_TwoStepApproval(t *testing.T) {
	// GIVEN: A manager then HR workflow and 10 annual days
	// WHEN: Both steps approve a 2-day request
	// THEN: The balance drops only after HR, and a third approval conflicts

	ts := newTestServer(t)
	ts.seedOrg(manualHR)

	req := ts.submit("annual", 2)
	assert.Equal(t, "pending", req.Status)
	assert.Equal(t, 1, req.CurrentStep)
	assert.Equal(t, 2, req.TotalSteps)

	rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", ActionRequest{Actor: "mgr-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[RequestDTO](t, rec).CurrentStep)
	assert.Equal(t, 10.0, ts.balance("annual").CurrentBalance)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", ActionRequest{Actor: "hr-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[RequestDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "hr-1", approved.ApprovedBy)
	assert.Len(t, approved.History, 2)
	assert.Equal(t, 8.0, ts.balance("annual").CurrentBalance)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", ActionRequest{Actor: "hr-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Code)
}

func TestRequestLifecycle_RejectRestoresSubmissionDeduction(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOrg(manualHR)

	req := ts.submit("casual", 1.5)
	assert.Equal(t, 8.5, ts.balance("casual").CurrentBalance)

	rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/reject", ActionRequest{Actor: "mgr-1", Reason: "busy week"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decode[RequestDTO](t, rec)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "busy week", rejected.RejectionReason)
	assert.Equal(t, 10.0, ts.balance("casual").CurrentBalance)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/transactions?request_id="+req.ID, nil)
	txs := decode[[]TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	assert.Equal(t, "deduction", txs[0].Type)
	assert.Equal(t, "balance_restoration", txs[1].Type)
}

func TestRequestLifecycle_Withdrawal(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOrg(manualHR)

	req := ts.submit("annual", 2)
	for _, actor := range []string{"mgr-1", "hr-1"} {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", ActionRequest{Actor: actor})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/withdraw", ActionRequest{Actor: "emp-1", Reason: "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "withdrawal_pending", decode[RequestDTO](t, rec).Status)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/withdrawal/approve", ActionRequest{Actor: "hr-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "withdrawal_approved", decode[RequestDTO](t, rec).Status)
	assert.Equal(t, 10.0, ts.balance("annual").CurrentBalance)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/withdrawal/reject", ActionRequest{Actor: "hr-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestActions_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOrg(manualHR)
	req := ts.submit("annual", 1)

	t.Run("missing actor", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown request", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/nope/approve", ActionRequest{Actor: "mgr-1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("request of another org", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/orgs/other/requests/"+req.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = ts.do(http.MethodPost, "/api/orgs/other/requests/"+req.ID+"/reject", ActionRequest{Actor: "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("unknown kind", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/requests", map[string]any{
			"user_id": "emp-1", "kind": "sabbatical", "leave_type_id": "annual",
			"start_date": "2025-07-01", "working_days": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("no workflow for comp-off", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/orgs/acme/requests", map[string]any{
			"user_id": "emp-1", "kind": "comp_off", "leave_type_id": "annual",
			"start_date": "2025-07-01", "working_days": 1,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	// The failed calls above changed nothing
	rec := ts.do(http.MethodGet, "/api/orgs/acme/requests?status=pending", nil)
	pending := decode[[]RequestDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

// =============================================================================
// TIME-BASED APPROVAL AND RECONCILE
// =============================================================================

func TestTimeBasedApprovalSweep(t *testing.T) {
	// GIVEN: HR auto-approves 3 hours after the manager
	// WHEN: The admin sweep runs before and after the schedule
	// THEN: Only the second run approves, as system-time-based

	ts := newTestServer(t)
	ts.seedOrg(`{"title": "HR", "roleIds": ["hr"], "autoApproval": true, "hours": 3}`)

	req := ts.submit("annual", 2)
	rec := ts.do(http.MethodPost, "/api/orgs/acme/requests/"+req.ID+"/approve", ActionRequest{Actor: "mgr-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scheduled := decode[RequestDTO](t, rec)
	require.NotNil(t, scheduled.ScheduledAutoApprovalAt)
	assert.Equal(t, "2025-06-15T13:00:00Z", *scheduled.ScheduledAutoApprovalAt)

	ts.now = ts.now.Add(2 * time.Hour)
	rec = ts.do(http.MethodPost, "/api/admin/time-based-approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[SweepDTO](t, rec).Due)

	ts.now = ts.now.Add(2 * time.Hour)
	rec = ts.do(http.MethodPost, "/api/admin/time-based-approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[SweepDTO](t, rec).Approved)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/requests/"+req.ID, nil)
	got := decode[RequestDTO](t, rec)
	assert.Equal(t, "approved", got.Status)
	assert.Equal(t, leave.ActorSystemTimeBased, got.ApprovedBy)
	assert.Nil(t, got.ScheduledAutoApprovalAt)
	assert.Equal(t, 8.0, ts.balance("annual").CurrentBalance)
}

func TestReconcile_SessionGate(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOrg(manualHR)

	rec := ts.do(http.MethodPost, "/api/orgs/acme/reconcile", nil, SessionHeader, "sess-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[ReconcileDTO](t, rec)
	assert.True(t, first.Ran)
	assert.Equal(t, 1, first.Employees)
	assert.False(t, first.RosterUsed)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/reconcile", nil, SessionHeader, "sess-1")
	assert.False(t, decode[ReconcileDTO](t, rec).Ran)

	rec = ts.do(http.MethodPost, "/api/orgs/acme/reconcile", nil)
	assert.True(t, decode[ReconcileDTO](t, rec).Ran)

	rec = ts.do(http.MethodGet, "/api/orgs/acme/consistency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]InconsistencyDTO](t, rec))
}
