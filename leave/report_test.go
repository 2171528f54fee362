package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestCheckConsistency_AfterMixedOperations(t *testing.T) {
	// GIVEN: Imports, adjustments, approvals, rejections, withdrawals,
	//        expiry and pending rows across several balances
	// WHEN: Checking consistency
	// THEN: Every balance equals the net of its ledger

	te := newTestEngine(t)
	ctx := context.Background()
	te.saveWorkflow(t, "wf-leave", leave.ProcessLeave, manual("manager"))
	te.saveWorkflow(t, "wf-comp", leave.ProcessCompOff, manual("manager"))

	_, err := te.ImportOpeningBalance(ctx, te.key("emp-1", "v-annual"), dec(4), "import")
	require.NoError(t, err)
	te.seed(t, "emp-1", "v-annual", 6)
	te.seed(t, "emp-1", "v-casual", 5)

	approved := te.submit(t, "emp-1", leave.KindLeave, ltAnnual, 2)
	_, err = te.ProcessApproval(ctx, approved.ID, "mgr-1")
	require.NoError(t, err)

	rejected := te.submit(t, "emp-1", leave.KindLeave, ltCasual, 1.5)
	_, err = te.RejectRequest(ctx, rejected.ID, "mgr-1", "")
	require.NoError(t, err)

	withdrawn := te.submit(t, "emp-1", leave.KindLeave, ltAnnual, 1)
	_, err = te.ProcessApproval(ctx, withdrawn.ID, "mgr-1")
	require.NoError(t, err)
	_, err = te.Withdraw(ctx, withdrawn.ID, "emp-1", "")
	require.NoError(t, err)
	_, err = te.ApproveWithdrawal(ctx, withdrawn.ID, "mgr-1")
	require.NoError(t, err)

	comp := te.submit(t, "emp-1", leave.KindCompOff, ltCompOff, 1)
	_, err = te.ProcessApproval(ctx, comp.ID, "mgr-1")
	require.NoError(t, err)

	te.submit(t, "emp-1", leave.KindLeave, ltAnnual, 3)
	_, err = te.SyncPendingDeductionsForUser(ctx, "emp-1", testOrg)
	require.NoError(t, err)
	_, err = te.ExpireBalance(ctx, te.key("emp-1", "v-casual"), dec(1), generic.SubtypeLapsed, "hr-1")
	require.NoError(t, err)

	issues, err := te.CheckConsistency(ctx, generic.BalanceFilter{OrgID: testOrg})
	require.NoError(t, err)
	assert.Empty(t, issues)

	assertDays(t, 8, te.balance(t, "emp-1", "v-annual").CurrentBalance)
	assertDays(t, 4, te.balance(t, "emp-1", "v-casual").CurrentBalance)
	assertDays(t, 1, te.balance(t, "emp-1", "v-comp-off").CurrentBalance)
}

func TestCheckConsistency_ReportsDrift(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.seed(t, "emp-1", "v-annual", 10)

	bal := te.balance(t, "emp-1", "v-annual")
	bal.CurrentBalance = dec(12)
	require.NoError(t, te.store.SaveBalance(ctx, bal))

	issues, err := te.CheckConsistency(ctx, generic.BalanceFilter{UserID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assertDays(t, 12, issues[0].Balance)
	assertDays(t, 10, issues[0].LedgerNet)
	assert.Contains(t, issues[0].String(), "emp-1/v-annual/2025")
}

func TestSummarizeLedger(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.saveWorkflow(t, "wf-leave", leave.ProcessLeave, manual("manager"))

	_, err := te.ImportOpeningBalance(ctx, te.key("emp-1", "v-annual"), dec(5), "import")
	require.NoError(t, err)
	te.seed(t, "emp-1", "v-annual", 10)

	req := te.submit(t, "emp-1", leave.KindLeave, ltAnnual, 2)
	_, err = te.ProcessApproval(ctx, req.ID, "mgr-1")
	require.NoError(t, err)
	_, err = te.ExpireBalance(ctx, te.key("emp-1", "v-annual"), dec(1), generic.SubtypeEncashed, "hr-1")
	require.NoError(t, err)
	te.submit(t, "emp-1", leave.KindLeave, ltAnnual, 0.5)
	_, err = te.SyncPendingDeductionsForUser(ctx, "emp-1", testOrg)
	require.NoError(t, err)

	txs, err := te.Transactions(ctx, generic.TransactionFilter{UserID: "emp-1", VariantID: "v-annual"})
	require.NoError(t, err)
	s := leave.SummarizeLedger(txs)

	assertDays(t, 5, s.Opening)
	assertDays(t, 10, s.Adjusted)
	assertDays(t, 2, s.Availed)
	assertDays(t, 1, s.Encashed)
	assertDays(t, 0.5, s.Pending)
	assertDays(t, 12, s.Net)
	assertDays(t, 12, te.balance(t, "emp-1", "v-annual").CurrentBalance)
}
