/*
balance.go - Balance-affecting operations

PURPOSE:
  Every operation here changes a balance row and writes exactly one
  ledger entry for it, inside one store transaction:

    DeductBalance         deduction            -amount, used +amount
    restore (internal)    balance_restoration  +amount, used -amount
    credit (internal)     credit               +amount (comp-off earned)
    AdjustBalance         adjustment           +/-amount (manual)
    ImportOpeningBalance  grant/opening_import +amount
    ExpireBalance         debit/lapsed|encashed -amount

  SyncPendingDeductionsForUser maintains display-only pending_deduction
  rows, one per pending request, without touching currentBalance.

NEGATIVE BALANCES:
  No floor is enforced. Whether a request may overdraw is a variant policy
  decision made before submission, not here.
*/
package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// DeductBalance deducts amount from the current-year balance of the variant
// configured for leaveType.
func (e *Engine) DeductBalance(ctx context.Context, userID generic.UserID, leaveType generic.LeaveTypeID, amount decimal.Decimal, orgID generic.OrgID) (generic.Balance, error) {
	var bal generic.Balance
	err := e.withTx(ctx, "deduct_balance", func(s Store) error {
		var err error
		bal, err = e.deductBalance(ctx, s, userID, leaveType, amount, orgID, "")
		return err
	})
	return bal, err
}

// deductBalance posts a deduction. Deductions made for a request create a
// missing balance row and may take it negative.
func (e *Engine) deductBalance(ctx context.Context, s Store, userID generic.UserID, leaveType generic.LeaveTypeID, amount decimal.Decimal, orgID generic.OrgID, requestID string) (generic.Balance, error) {
	variant, err := s.VariantForLeaveType(ctx, orgID, leaveType)
	if err != nil {
		return generic.Balance{}, fmt.Errorf("resolve variant for leave type %s: %w", leaveType, err)
	}
	amount = generic.Round2(amount)
	key := generic.BalanceKey{
		UserID:    userID,
		VariantID: variant.ID,
		Year:      balanceYear(ctx, s, orgID, e.now()),
		OrgID:     orgID,
	}
	bal, _, err := e.ledger(s).Post(ctx, generic.BalanceChange{
		Key:             key,
		Type:            generic.TxDeduction,
		Amount:          amount.Neg(),
		Used:            amount,
		Description:     deductionDescription(amount, requestID),
		RequestID:       requestID,
		CreatedBy:       ActorSystem,
		CreateIfMissing: requestID != "",
	})
	if err != nil {
		return generic.Balance{}, err
	}

	e.Log.WithField("user_id", userID).
		WithField("variant_id", variant.ID).
		WithField("amount", amount.String()).
		WithField("balance_after", bal.CurrentBalance.String()).
		Debug("balance deducted")
	return bal, nil
}

func deductionDescription(amount decimal.Decimal, requestID string) string {
	if requestID == "" {
		return fmt.Sprintf("Deducted %s day(s)", amount.String())
	}
	return fmt.Sprintf("Deducted %s day(s) for request %s", amount.String(), requestID)
}

// restore gives back a deduction made for req.
func (e *Engine) restore(ctx context.Context, s Store, req Request, reason string) (generic.Balance, error) {
	amount := generic.Round2(req.WorkingDays)
	bal, _, err := e.ledger(s).Post(ctx, generic.BalanceChange{
		Key:         requestBalanceKey(ctx, s, req, e.now()),
		Type:        generic.TxBalanceRestoration,
		Amount:      amount,
		Used:        amount.Neg(),
		Description: fmt.Sprintf("Restored %s day(s) for request %s: %s", amount.String(), req.ID, reason),
		RequestID:   req.ID,
		CreatedBy:   ActorSystem,
	})
	return bal, err
}

// credit adds comp-off earned by an approved comp-off request.
func (e *Engine) credit(ctx context.Context, s Store, req Request) (generic.Balance, error) {
	amount := generic.Round2(req.WorkingDays)
	bal, _, err := e.ledger(s).Post(ctx, generic.BalanceChange{
		Key:             requestBalanceKey(ctx, s, req, e.now()),
		Type:            generic.TxCredit,
		Amount:          amount,
		Description:     fmt.Sprintf("Comp-off credited %s day(s) for request %s", amount.String(), req.ID),
		RequestID:       req.ID,
		CreatedBy:       ActorSystem,
		CreateIfMissing: true,
	})
	return bal, err
}

// requestBalanceKey returns the balance row a request's effects land on:
// the row its deduction hit, else the current leave year's row.
func requestBalanceKey(ctx context.Context, s Store, req Request, now time.Time) generic.BalanceKey {
	key := generic.BalanceKey{
		UserID:    req.UserID,
		VariantID: req.VariantID,
		Year:      balanceYear(ctx, s, req.OrgID, now),
		OrgID:     req.OrgID,
	}
	deducted, err := s.ListTransactions(ctx, generic.TransactionFilter{
		OrgID:          req.OrgID,
		UserID:         req.UserID,
		LeaveRequestID: req.ID,
		Types:          []generic.TransactionType{generic.TxDeduction},
	})
	if err == nil && len(deducted) > 0 {
		last := deducted[len(deducted)-1]
		key.VariantID = last.VariantID
		key.Year = last.Year
	}
	return key
}

// AdjustBalance records a manual correction.
func (e *Engine) AdjustBalance(ctx context.Context, key generic.BalanceKey, amount decimal.Decimal, description, actor string) (generic.Balance, error) {
	var bal generic.Balance
	err := e.withTx(ctx, "adjust_balance", func(s Store) error {
		if _, err := s.GetVariant(ctx, key.OrgID, key.VariantID); err != nil {
			return err
		}
		var err error
		bal, _, err = e.ledger(s).Post(ctx, generic.BalanceChange{
			Key:             key,
			Type:            generic.TxAdjustment,
			Subtype:         generic.SubtypeManual,
			Amount:          amount,
			Description:     description,
			CreatedBy:       actor,
			CreateIfMissing: true,
		})
		return err
	})
	return bal, err
}

// ImportOpeningBalance records a balance carried over from a legacy system.
// The reconciliation job adds configured accrual on top of it.
func (e *Engine) ImportOpeningBalance(ctx context.Context, key generic.BalanceKey, amount decimal.Decimal, actor string) (generic.Balance, error) {
	var bal generic.Balance
	err := e.withTx(ctx, "import_opening_balance", func(s Store) error {
		if _, err := s.GetVariant(ctx, key.OrgID, key.VariantID); err != nil {
			return err
		}
		var err error
		bal, _, err = e.ledger(s).Post(ctx, generic.BalanceChange{
			Key:             key,
			Type:            generic.TxGrant,
			Subtype:         generic.SubtypeOpeningImport,
			Amount:          amount,
			Description:     fmt.Sprintf("Opening balance imported: %s day(s)", amount.String()),
			CreatedBy:       actor,
			CreateIfMissing: true,
		})
		return err
	})
	return bal, err
}

// ExpireBalance removes days that lapsed or were encashed.
func (e *Engine) ExpireBalance(ctx context.Context, key generic.BalanceKey, amount decimal.Decimal, subtype generic.TransactionSubtype, actor string) (generic.Balance, error) {
	if subtype != generic.SubtypeLapsed && subtype != generic.SubtypeEncashed {
		return generic.Balance{}, fmt.Errorf("%w: expiry subtype must be lapsed or encashed", generic.ErrInvalidInput)
	}
	var bal generic.Balance
	err := e.withTx(ctx, "expire_balance", func(s Store) error {
		var err error
		bal, _, err = e.ledger(s).Post(ctx, generic.BalanceChange{
			Key:         key,
			Type:        generic.TxDebit,
			Subtype:     subtype,
			Amount:      amount.Neg(),
			Description: fmt.Sprintf("%s %s day(s)", expiryLabel[subtype], amount.String()),
			CreatedBy:   actor,
		})
		return err
	})
	return bal, err
}

var expiryLabel = map[generic.TransactionSubtype]string{
	generic.SubtypeLapsed:   "Lapsed",
	generic.SubtypeEncashed: "Encashed",
}

// =============================================================================
// PENDING DEDUCTIONS
// =============================================================================

type SyncResult struct {
	Purged  int
	Created int
}

// SyncPendingDeductionsForUser keeps exactly one pending_deduction row per
// pending request of the user. Legacy rows without a request key and rows
// for requests that are no longer pending are purged first.
func (e *Engine) SyncPendingDeductionsForUser(ctx context.Context, userID generic.UserID, orgID generic.OrgID) (SyncResult, error) {
	var result SyncResult
	err := e.withTx(ctx, "sync_pending_deductions", func(s Store) error {
		var err error
		result, err = e.syncPendingDeductions(ctx, s, userID, orgID)
		return err
	})
	if err == nil && (result.Purged > 0 || result.Created > 0) {
		e.Log.WithField("user_id", userID).
			WithField("purged", result.Purged).
			WithField("created", result.Created).
			Info("pending deductions synced")
	}
	return result, err
}

func (e *Engine) syncPendingDeductions(ctx context.Context, s Store, userID generic.UserID, orgID generic.OrgID) (SyncResult, error) {
	var result SyncResult

	rows, err := s.ListTransactions(ctx, generic.TransactionFilter{
		OrgID:  orgID,
		UserID: userID,
		Types:  []generic.TransactionType{generic.TxPendingDeduction},
	})
	if err != nil {
		return result, err
	}
	pending, err := s.ListRequests(ctx, RequestFilter{OrgID: orgID, UserID: userID, Status: StatusPending})
	if err != nil {
		return result, err
	}

	wanted := make(map[string]Request)
	for _, r := range pending {
		if r.Kind == KindCompOff {
			continue
		}
		v, err := s.GetVariant(ctx, r.OrgID, r.VariantID)
		if err != nil {
			return result, err
		}
		// Already deducted at submission, or never deducted
		if v.DeductionTiming() != DeductOnApproval {
			continue
		}
		wanted[r.ID] = r
	}

	covered := make(map[string]bool)
	var purge []generic.TransactionID
	for _, row := range rows {
		key := pendingRowKey(row, pending)
		if key == "" || covered[key] {
			purge = append(purge, row.ID)
			continue
		}
		if _, ok := wanted[key]; !ok {
			purge = append(purge, row.ID)
			continue
		}
		covered[key] = true
	}
	if len(purge) > 0 {
		if err := s.PurgeTransactions(ctx, purge); err != nil {
			return result, fmt.Errorf("failed to purge pending deductions: %w", err)
		}
	}
	result.Purged = len(purge)

	for _, r := range pending {
		if _, ok := wanted[r.ID]; !ok || covered[r.ID] {
			continue
		}
		if _, _, err := e.ledger(s).Post(ctx, generic.BalanceChange{
			Key:             requestBalanceKey(ctx, s, r, e.now()),
			Type:            generic.TxPendingDeduction,
			Amount:          generic.Round2(r.WorkingDays).Neg(),
			Description:     fmt.Sprintf("Pending deduction for request %s", r.ID),
			RequestID:       r.ID,
			CreatedBy:       ActorSystem,
			CreateIfMissing: true,
		}); err != nil {
			return result, err
		}
		result.Created++
	}
	return result, nil
}

// pendingRowKey returns the request a pending_deduction row belongs to:
// the explicit request id, or one embedded in a legacy description.
func pendingRowKey(row generic.Transaction, pending []Request) string {
	if row.LeaveRequestID != "" {
		return row.LeaveRequestID
	}
	for _, r := range pending {
		if strings.Contains(row.Description, r.ID) {
			return r.ID
		}
	}
	return ""
}

// purgePendingFor drops the pending_deduction rows of a request that left
// the pending state.
func purgePendingFor(ctx context.Context, s Store, req Request) error {
	rows, err := s.ListTransactions(ctx, generic.TransactionFilter{
		OrgID:          req.OrgID,
		UserID:         req.UserID,
		LeaveRequestID: req.ID,
		Types:          []generic.TransactionType{generic.TxPendingDeduction},
	})
	if err != nil || len(rows) == 0 {
		return err
	}
	ids := make([]generic.TransactionID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return s.PurgeTransactions(ctx, ids)
}
