package leave_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOrg generic.OrgID = "org-1"

// Leave types seeded by newTestEngine, one per deduction timing.
const (
	ltAnnual  generic.LeaveTypeID = "annual"   // deducted on final approval
	ltCasual  generic.LeaveTypeID = "casual"   // deducted at submission
	ltUnpaid  generic.LeaveTypeID = "unpaid"   // never deducted
	ltCompOff generic.LeaveTypeID = "comp-off" // credited on approval
)

type testEngine struct {
	*leave.Engine
	store *memory.Memory
	now   time.Time
}

func init() {
	log.SetOutput(io.Discard)
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.SaveOrganization(ctx, leave.Organization{ID: testOrg, Name: "Acme"}))
	for _, v := range []leave.LeaveVariant{
		{ID: "v-annual", LeaveTypeID: ltAnnual, DeductionAfter: true},
		{ID: "v-casual", LeaveTypeID: ltCasual, DeductionBefore: true},
		{ID: "v-unpaid", LeaveTypeID: ltUnpaid, DeductionNotAllowed: true},
		{ID: "v-comp-off", LeaveTypeID: ltCompOff, Kind: leave.AssignCompOffVariant},
	} {
		v.OrgID = testOrg
		v.Name = string(v.LeaveTypeID)
		if v.Kind == "" {
			v.Kind = leave.AssignLeaveVariant
		}
		v.PaidDaysInYear = generic.Days(24)
		v.GrantLeaves = generic.GrantInAdvance
		v.GrantFrequency = generic.PerMonth
		v.ProRataCalculation = generic.ProrateFullMonth
		require.NoError(t, store.SaveVariant(ctx, v))
	}

	te := &testEngine{
		Engine: leave.NewEngine(store),
		store:  store,
		now:    time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
	}
	te.Engine.Now = func() time.Time { return te.now }
	return te
}

func (te *testEngine) advance(d time.Duration) {
	te.now = te.now.Add(d)
}

func (te *testEngine) saveWorkflow(t *testing.T, id string, process leave.Process, steps ...leave.WorkflowStep) leave.Workflow {
	t.Helper()
	w := leave.Workflow{ID: id, OrgID: testOrg, Name: id, Process: process, Steps: steps}
	require.NoError(t, te.store.SaveWorkflow(context.Background(), w))
	return w
}

func (te *testEngine) key(user generic.UserID, variant generic.VariantID) generic.BalanceKey {
	return generic.BalanceKey{UserID: user, VariantID: variant, Year: 2025, OrgID: testOrg}
}

// seed gives the user an opening balance through the ledger.
func (te *testEngine) seed(t *testing.T, user generic.UserID, variant generic.VariantID, days float64) {
	t.Helper()
	_, err := te.AdjustBalance(context.Background(), te.key(user, variant), generic.Days(days), "seed", "test")
	require.NoError(t, err)
}

func (te *testEngine) balance(t *testing.T, user generic.UserID, variant generic.VariantID) generic.Balance {
	t.Helper()
	b, err := te.store.GetBalance(context.Background(), te.key(user, variant))
	require.NoError(t, err)
	return b
}

func (te *testEngine) submit(t *testing.T, user generic.UserID, kind leave.RequestKind, lt generic.LeaveTypeID, days float64) leave.Request {
	t.Helper()
	req, err := te.Submit(context.Background(), leave.SubmitInput{
		OrgID:       testOrg,
		UserID:      user,
		Kind:        kind,
		LeaveTypeID: lt,
		StartDate:   time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, time.June, 17, 0, 0, 0, 0, time.UTC),
		WorkingDays: generic.Days(days),
		Reason:      "family",
	})
	require.NoError(t, err)
	return req
}

func (te *testEngine) requestTxs(t *testing.T, requestID string, types ...generic.TransactionType) []generic.Transaction {
	t.Helper()
	txs, err := te.store.ListTransactions(context.Background(), generic.TransactionFilter{
		OrgID:          testOrg,
		LeaveRequestID: requestID,
		Types:          types,
	})
	require.NoError(t, err)
	return txs
}

func manual(title string) leave.WorkflowStep {
	return leave.WorkflowStep{Title: title, RoleIDs: []string{title}}
}

func auto(title string) leave.WorkflowStep {
	return leave.WorkflowStep{Title: title, AutoApproval: true}
}

func autoAfter(title string, days, hours int) leave.WorkflowStep {
	return leave.WorkflowStep{Title: title, AutoApproval: true, Days: days, Hours: hours}
}

func dec(v float64) decimal.Decimal {
	return generic.Days(v)
}
