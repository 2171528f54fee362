package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// QUANTITIES
// =============================================================================

func TestRoundHalf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"7.33", "7.5"},
		{"7.1", "7"},
		{"7.25", "7.5"},
		{"7.74", "7.5"},
		{"7.75", "8"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := generic.RoundHalf(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestRound2(t *testing.T) {
	got := generic.Round2(decimal.RequireFromString("1.005"))
	assert.Equal(t, "1.01", got.StringFixed(2))
}

// =============================================================================
// DATES
// =============================================================================

func TestParseRosterDate(t *testing.T) {
	for _, s := range []string{"07-Apr-2025", "07-APR-2025", " 07-apr-2025 "} {
		got, err := generic.ParseRosterDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, generic.Date(2025, time.April, 7), got)
	}

	_, err := generic.ParseRosterDate("2025-04-07")
	assert.Error(t, err)
	_, err = generic.ParseRosterDate("")
	assert.Error(t, err)
}

func TestMonthHelpers(t *testing.T) {
	assert.Equal(t, generic.Date(2024, time.February, 29), generic.EndOfMonth(2024, time.February))
	assert.True(t, generic.IsLastDayOfMonth(generic.Date(2025, time.June, 30)))
	assert.False(t, generic.IsLastDayOfMonth(generic.Date(2025, time.June, 29)))
	assert.Equal(t, 2, generic.QuarterOf(time.September))
	assert.Equal(t, generic.Date(2025, time.December, 31), generic.EndOfQuarter(2025, 3))
	assert.Equal(t, 12, generic.MonthIndex(generic.Date(1, time.January, 1))-generic.MonthIndex(generic.Date(0, time.January, 1)))
}

func TestLeaveYearConfig(t *testing.T) {
	// GIVEN: An organization whose leave year starts on April 1
	// WHEN: Resolving leave years around the anniversary
	// THEN: Dates before April belong to the previous leave year

	c := generic.LeaveYearConfig{EffectiveDate: generic.Date(2019, time.April, 1)}

	ly := c.YearFor(generic.Date(2025, time.March, 31))
	assert.Equal(t, generic.Date(2024, time.April, 1), ly.Start)
	assert.Equal(t, generic.Date(2025, time.March, 31), ly.End)

	ly = c.YearFor(generic.Date(2025, time.April, 1))
	assert.Equal(t, generic.Date(2025, time.April, 1), ly.Start)
	assert.True(t, ly.Contains(time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, ly.Contains(generic.Date(2026, time.April, 1)))

	calendar := generic.LeaveYearConfig{}.YearFor(generic.Date(2025, time.June, 15))
	assert.Equal(t, generic.Date(2025, time.January, 1), calendar.Start)
	assert.Equal(t, generic.Date(2025, time.December, 31), calendar.End)
}

func TestParseEnums(t *testing.T) {
	m, err := generic.ParseProrateMethod("")
	require.NoError(t, err)
	assert.Equal(t, generic.ProrateFullMonth, m)

	_, err = generic.ParseGrantTiming("weekly")
	assert.True(t, generic.IsClientError(err))
	_, err = generic.ParseAccrualFrequency("per_week")
	assert.True(t, generic.IsClientError(err))
	assert.Equal(t, 4, generic.PerQuarter.PeriodsPerYear())
}

// =============================================================================
// LEDGER
// =============================================================================

func newLedger(now time.Time) (*generic.Ledger, *memory.Memory) {
	store := memory.New()
	l := generic.NewLedger(store)
	l.Now = func() time.Time { return now }
	return l, store
}

var testKey = generic.BalanceKey{UserID: "emp-1", VariantID: "v-annual", Year: 2025, OrgID: "org-1"}

func TestLedgerPost_PairsBalanceAndEntry(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: A grant and a deduction are posted
	// THEN: The balance row and ledger agree after each post

	ctx := context.Background()
	l, store := newLedger(time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC))

	total := generic.Days(24)
	bal, tx, err := l.Post(ctx, generic.BalanceChange{
		Key: testKey, Type: generic.TxGrant, Subtype: generic.SubtypeAccrual,
		Amount: generic.Days(9), Entitlement: &total, CreateIfMissing: true,
	})
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(generic.Days(9)))
	assert.True(t, bal.TotalEntitlement.Equal(total))
	assert.True(t, tx.BalanceAfter.Equal(generic.Days(9)))

	bal, _, err = l.Post(ctx, generic.BalanceChange{
		Key: testKey, Type: generic.TxDeduction, Amount: generic.Days(-2), Used: generic.Days(2),
	})
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(generic.Days(7)))
	assert.True(t, bal.UsedBalance.Equal(generic.Days(2)))

	net, err := l.Net(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, net.Equal(bal.CurrentBalance))

	stored, err := store.GetBalance(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBalance.Equal(generic.Days(7)))
}

func TestLedgerPost_MissingRow(t *testing.T) {
	l, store := newLedger(time.Now())

	_, _, err := l.Post(context.Background(), generic.BalanceChange{
		Key: testKey, Type: generic.TxDeduction, Amount: generic.Days(-1),
	})
	assert.ErrorIs(t, err, generic.ErrBalanceNotFound)

	txs, err := store.ListTransactions(context.Background(), generic.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLedgerPost_PendingRowIsDisplayOnly(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(time.Now())

	_, _, err := l.Post(ctx, generic.BalanceChange{Key: testKey, Type: generic.TxAdjustment, Amount: generic.Days(5), CreateIfMissing: true})
	require.NoError(t, err)
	bal, tx, err := l.Post(ctx, generic.BalanceChange{Key: testKey, Type: generic.TxPendingDeduction, Amount: generic.Days(-2)})
	require.NoError(t, err)

	assert.True(t, bal.CurrentBalance.Equal(generic.Days(5)))
	assert.True(t, tx.BalanceAfter.Equal(generic.Days(3)), "balance after shows the projected figure")

	net, err := l.Net(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, net.Equal(generic.Days(5)))

	require.NoError(t, store.PurgeTransactions(ctx, []generic.TransactionID{tx.ID}))

	all, err := store.ListTransactions(ctx, generic.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.ErrorIs(t, store.PurgeTransactions(ctx, []generic.TransactionID{all[0].ID}), generic.ErrInvalidInput)
}

func TestClassifyLegacy(t *testing.T) {
	tests := []struct {
		description string
		want        generic.TransactionSubtype
	}{
		{"Imported from Excel", generic.SubtypeOpeningImport},
		{"Opening balance imported: 6 day(s)", generic.SubtypeOpeningImport},
		{"3 days lapsed at year end", generic.SubtypeLapsed},
		{"Encashed 2 days", generic.SubtypeEncashed},
		{"Pro-rata entitlement", generic.SubtypeNone},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.ClassifyLegacy(tt.description))
		})
	}

	tagged := generic.Transaction{Subtype: generic.SubtypeAccrual, Description: "Imported from Excel"}
	assert.Equal(t, generic.SubtypeAccrual, tagged.Kind(), "explicit subtype wins")
}

func TestBalanceDrift(t *testing.T) {
	b := generic.NewBalance(testKey)
	b.TotalEntitlement = generic.Days(24)
	b.UsedBalance = generic.Days(2)
	b.CurrentBalance = generic.Days(10)

	assert.True(t, b.Reconstructed().Equal(generic.Days(22)))
	assert.True(t, b.Drift().Equal(generic.Days(-12)))
}

func TestErrorClassification(t *testing.T) {
	stateErr := &generic.InvalidStateError{RequestID: "r1", CurrentStep: 3, StepCount: 2, Reason: "out of range"}
	assert.ErrorIs(t, stateErr, generic.ErrInvalidState)
	assert.True(t, generic.IsConflict(stateErr))
	assert.Contains(t, stateErr.Error(), "current step 3, 2 steps")

	transErr := &generic.TransitionError{RequestID: "r1", From: "approved", Action: "reject"}
	assert.True(t, generic.IsConflict(transErr))
	assert.False(t, generic.IsNotFound(transErr))
	assert.True(t, generic.IsNotFound(generic.ErrWorkflowNotFound))
}
