package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/roster"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type failingRoster struct{}

func (failingRoster) Fetch(context.Context, generic.OrgID) ([]roster.Record, error) {
	return nil, generic.ErrRosterUnavailable
}

// flakyStore fails every balance write for one user inside transactions.
type flakyStore struct {
	*memory.Memory
	failFor generic.UserID
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return f.Memory.WithTx(ctx, func(s leave.Store) error {
		return fn(flakyView{Store: s, failFor: f.failFor})
	})
}

type flakyView struct {
	leave.Store
	failFor generic.UserID
}

func (v flakyView) SaveBalance(ctx context.Context, b generic.Balance) error {
	if b.Key.UserID == v.failFor {
		return errors.New("disk full")
	}
	return v.Store.SaveBalance(ctx, b)
}

func (te *testEngine) addEmployee(t *testing.T, id generic.UserID, joined *time.Time) {
	t.Helper()
	require.NoError(t, te.store.SaveEmployee(context.Background(), leave.Employee{
		ID: id, OrgID: testOrg, Name: string(id), JoiningDate: joined,
	}))
}

func (te *testEngine) grants(t *testing.T, user generic.UserID, variant generic.VariantID) []generic.Transaction {
	t.Helper()
	txs, err := te.store.ListTransactions(context.Background(), generic.TransactionFilter{
		UserID: user, VariantID: variant, Types: []generic.TransactionType{generic.TxGrant},
	})
	require.NoError(t, err)
	return txs
}

func mid2025(te *testEngine) {
	te.now = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestAutoProRata_RosterJoinersAndFullYear(t *testing.T) {
	// GIVEN: emp-1 joined 10-Mar-2025 per the roster; emp-2 has no record
	// WHEN: Reconciling on June 15 2025 (24 days/year, in_advance, per_month)
	// THEN: emp-1 gets March..June = 8.0, emp-2 gets January..June = 12.0

	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)
	te.addEmployee(t, "emp-2", nil)
	src := roster.Static{{UserID: "emp-1", UserName: "Asha", DateOfJoining: "10-Mar-2025", EmployeeNumber: "E-1"}}

	summary, err := te.AutoProRataCalculation(ctx, testOrg, src)
	require.NoError(t, err)
	assert.True(t, summary.RosterUsed)
	assert.Equal(t, 2, summary.Employees)
	assert.Equal(t, 8, summary.AssignmentsCreated) // 2 employees x 4 variants
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 2, summary.Skipped) // comp-off
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 2025, summary.LeaveYear.Start.Year())

	bal := te.balance(t, "emp-1", "v-annual")
	assertDays(t, 8, bal.CurrentBalance)
	assertDays(t, 24, bal.TotalEntitlement)
	assertDays(t, 12, te.balance(t, "emp-2", "v-annual").CurrentBalance)

	grants := te.grants(t, "emp-1", "v-annual")
	require.Len(t, grants, 1)
	assert.Equal(t, generic.SubtypeAccrual, grants[0].Subtype)

	emp, err := te.store.GetEmployee(ctx, testOrg, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, emp.JoiningDate)
	assert.Equal(t, day(2025, time.March, 10), *emp.JoiningDate)
	assert.Equal(t, "E-1", emp.EmployeeNumber)

	_, err = te.store.GetBalance(ctx, te.key("emp-1", "v-comp-off"))
	assert.ErrorIs(t, err, generic.ErrBalanceNotFound)
}

func TestAutoProRata_Idempotent(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)

	_, err := te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	summary, err := te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.AssignmentsCreated)

	assertDays(t, 12, te.balance(t, "emp-1", "v-annual").CurrentBalance)
	assert.Len(t, te.grants(t, "emp-1", "v-annual"), 1)

	// A new month tops up only the difference
	te.now = time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)
	_, err = te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)

	grants := te.grants(t, "emp-1", "v-annual")
	require.Len(t, grants, 2)
	assertDays(t, 2, grants[1].Amount)
	assertDays(t, 14, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

func TestAutoProRata_TopUpKeepsDeductions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)

	_, err := te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	_, err = te.DeductBalance(ctx, "emp-1", ltAnnual, dec(3), testOrg)
	require.NoError(t, err)

	_, err = te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)

	assertDays(t, 9, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

func TestAutoProRata_AddsOnTopOfImportedBalance(t *testing.T) {
	// GIVEN: An imported opening balance of 6 days
	// WHEN: Reconciling a full-year employee on June 15 (accrual 12.0)
	// THEN: The accrual is added to the import: 18.0, and re-running adds nothing

	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)

	_, err := te.ImportOpeningBalance(ctx, te.key("emp-1", "v-annual"), dec(6), "import-job")
	require.NoError(t, err)

	_, err = te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	_, err = te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)

	assertDays(t, 18, te.balance(t, "emp-1", "v-annual").CurrentBalance)
	grants := te.grants(t, "emp-1", "v-annual")
	require.Len(t, grants, 2)
	assert.Contains(t, grants[1].Description, "imported opening balance")
}

func TestAutoProRata_LegacyImportDescription(t *testing.T) {
	// Rows written before subtypes existed are recognized by description
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)

	key := te.key("emp-1", "v-annual")
	bal := generic.NewBalance(key)
	bal.CurrentBalance = dec(6)
	require.NoError(t, te.store.SaveBalance(ctx, bal))
	require.NoError(t, te.store.AppendTransaction(ctx, generic.Transaction{
		ID: "legacy-import", UserID: key.UserID, VariantID: key.VariantID, OrgID: key.OrgID, Year: key.Year,
		Type: generic.TxGrant, Amount: dec(6), BalanceAfter: dec(6),
		Description: "Imported from Excel", CreatedAt: te.now.AddDate(0, -2, 0),
	}))

	_, err := te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)

	assertDays(t, 18, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

func TestAutoProRata_RosterDown_UsesStoredJoiningDate(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	joined := day(2025, time.April, 7)
	te.addEmployee(t, "emp-1", &joined)

	summary, err := te.AutoProRataCalculation(ctx, testOrg, failingRoster{})
	require.NoError(t, err)
	assert.False(t, summary.RosterUsed)
	assert.Equal(t, 0, summary.Errors)

	// April..June
	assertDays(t, 6, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

func TestAutoProRata_UnparseableRosterDate_FallsBack(t *testing.T) {
	te := newTestEngine(t)
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)
	src := roster.Static{{UserID: "emp-1", DateOfJoining: "2025/03/10"}}

	_, err := te.AutoProRataCalculation(context.Background(), testOrg, src)
	require.NoError(t, err)

	assertDays(t, 12, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

func TestAutoProRata_EmployeeFailureIsolated(t *testing.T) {
	// GIVEN: Balance writes for emp-2 fail
	// WHEN: Reconciling emp-1, emp-2 and emp-3
	// THEN: emp-2 is reported and rolled back, the others are granted

	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	for _, id := range []generic.UserID{"emp-1", "emp-2", "emp-3"} {
		te.addEmployee(t, id, nil)
	}
	engine := leave.NewEngine(&flakyStore{Memory: te.store, failFor: "emp-2"})
	engine.Now = te.Engine.Now

	summary, err := engine.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, generic.UserID("emp-2"), summary.Failures[0].UserID)
	assert.Contains(t, summary.Failures[0].Err, "disk full")

	assertDays(t, 12, te.balance(t, "emp-1", "v-annual").CurrentBalance)
	assertDays(t, 12, te.balance(t, "emp-3", "v-annual").CurrentBalance)
	assert.Empty(t, te.grants(t, "emp-2", "v-annual"))
}

func TestAutoProRata_NonCalendarLeaveYear(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	require.NoError(t, te.store.SaveOrganization(ctx, leave.Organization{
		ID: testOrg, Name: "Acme", EffectiveDate: day(2020, time.April, 1),
	}))
	te.addEmployee(t, "emp-1", nil)

	summary, err := te.AutoProRataCalculation(ctx, testOrg, nil)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.April, 1), summary.LeaveYear.Start)

	// Leave year starts April: April..June
	assertDays(t, 6, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}

// =============================================================================
// SESSION GATE
// =============================================================================

func TestGate_OncePerSession(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	mid2025(te)
	te.addEmployee(t, "emp-1", nil)
	gate := leave.NewGate(te.Engine, roster.Static{})

	_, ran, err := gate.Run(ctx, testOrg, "sess-a")
	require.NoError(t, err)
	assert.True(t, ran)

	_, ran, err = gate.Run(ctx, testOrg, "sess-a")
	require.NoError(t, err)
	assert.False(t, ran)

	_, ran, err = gate.Run(ctx, testOrg, "sess-b")
	require.NoError(t, err)
	assert.True(t, ran)

	gate.Forget(testOrg, "sess-a")
	_, ran, err = gate.Run(ctx, testOrg, "sess-a")
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Len(t, te.grants(t, "emp-1", "v-annual"), 1)
}
