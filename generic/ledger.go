/*
ledger.go - Posting balance changes to the aggregate and the log together

PURPOSE:
  The ledger is the audit trail and the alternate computation path for
  balances. Every change to a balance row is paired with exactly one
  ledger entry carrying the resulting BalanceAfter.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never modified
  2. PAIRED: no balance write without a ledger entry, and vice versa
  3. CONSISTENT: the signed sum of balance-affecting entries equals
     CurrentBalance (pending_deduction rows are display-only)

EXAMPLE FLOW:
  1. Pro-rata accrual:      grant +9.0      balanceAfter 9.0
  2. Leave approved (2d):   deduction -2.0  balanceAfter 7.0
  3. Withdrawal approved:   restoration +2  balanceAfter 9.0
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger posts balance changes against a Store. Construct it over the
// Store handed out by a WithTx call so both writes share a transaction.
type Ledger struct {
	Store Store
	Now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Post applies change to the balance row and appends the ledger entry.
func (l *Ledger) Post(ctx context.Context, change BalanceChange) (Balance, Transaction, error) {
	bal, err := l.Store.GetBalance(ctx, change.Key)
	if errors.Is(err, ErrBalanceNotFound) && change.CreateIfMissing {
		bal, err = NewBalance(change.Key), nil
	}
	if err != nil {
		return Balance{}, Transaction{}, err
	}

	now := l.Now().UTC()
	if change.Type.AffectsBalance() {
		bal.CurrentBalance = Round2(bal.CurrentBalance.Add(change.Amount))
		bal.UsedBalance = Round2(bal.UsedBalance.Add(change.Used))
		if change.Type == TxCarryForward {
			bal.CarryForward = Round2(bal.CarryForward.Add(change.Amount))
		}
		if change.Entitlement != nil {
			bal.TotalEntitlement = *change.Entitlement
		}
		bal.UpdatedAt = now
		if err := l.Store.SaveBalance(ctx, bal); err != nil {
			return Balance{}, Transaction{}, fmt.Errorf("failed to save balance: %w", err)
		}
	}

	balanceAfter := bal.CurrentBalance
	if !change.Type.AffectsBalance() {
		balanceAfter = Round2(bal.CurrentBalance.Add(change.Amount))
	}

	tx := Transaction{
		ID:             TransactionID(uuid.NewString()),
		UserID:         change.Key.UserID,
		VariantID:      change.Key.VariantID,
		OrgID:          change.Key.OrgID,
		Year:           change.Key.Year,
		Type:           change.Type,
		Subtype:        change.Subtype,
		Amount:         Round2(change.Amount),
		BalanceAfter:   balanceAfter,
		Description:    change.Description,
		LeaveRequestID: change.RequestID,
		CreatedBy:      change.CreatedBy,
		CreatedAt:      now,
	}
	if err := l.Store.AppendTransaction(ctx, tx); err != nil {
		return Balance{}, Transaction{}, fmt.Errorf("failed to append transaction: %w", err)
	}
	return bal, tx, nil
}

// Net returns the signed sum of balance-affecting entries for key.
func (l *Ledger) Net(ctx context.Context, key BalanceKey) (decimal.Decimal, error) {
	txs, err := l.Store.ListTransactions(ctx, TransactionFilter{
		OrgID:     key.OrgID,
		UserID:    key.UserID,
		VariantID: key.VariantID,
		Year:      key.Year,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return NetAmount(txs), nil
}

// NetAmount sums the signed amounts of balance-affecting entries.
func NetAmount(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Type.AffectsBalance() {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// =============================================================================
// LEGACY DESCRIPTION CLASSIFIER
// =============================================================================

// ClassifyLegacy maps free-text descriptions written before
// TransactionSubtype existed onto a subtype.
func ClassifyLegacy(description string) TransactionSubtype {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "imported from excel"),
		strings.Contains(d, "opening balance imported"):
		return SubtypeOpeningImport
	case strings.Contains(d, "lapsed"):
		return SubtypeLapsed
	case strings.Contains(d, "encashed"):
		return SubtypeEncashed
	default:
		return SubtypeNone
	}
}
