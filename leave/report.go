package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// LedgerSummary is the ledger's own view of a balance, computed from the
// transaction log alone. Reports use it as a second path next to the
// balance row.
type LedgerSummary struct {
	Opening     decimal.Decimal // imported opening balances
	Granted     decimal.Decimal // accrual and other grants
	Credited    decimal.Decimal // comp-off earned
	Availed     decimal.Decimal // deductions net of restorations
	Restored    decimal.Decimal
	Lapsed      decimal.Decimal
	Encashed    decimal.Decimal
	CarriedOver decimal.Decimal
	Adjusted    decimal.Decimal
	Pending     decimal.Decimal // display-only, not in Net
	Net         decimal.Decimal
}

// SummarizeLedger buckets transactions by what they did. Amounts for
// availed, lapsed, encashed and pending are reported as positive days.
func SummarizeLedger(txs []generic.Transaction) LedgerSummary {
	var s LedgerSummary
	for _, tx := range txs {
		switch tx.Type {
		case generic.TxGrant:
			if tx.Kind() == generic.SubtypeOpeningImport {
				s.Opening = s.Opening.Add(tx.Amount)
			} else {
				s.Granted = s.Granted.Add(tx.Amount)
			}
		case generic.TxCredit:
			s.Credited = s.Credited.Add(tx.Amount)
		case generic.TxDeduction:
			s.Availed = s.Availed.Sub(tx.Amount)
		case generic.TxBalanceRestoration:
			s.Restored = s.Restored.Add(tx.Amount)
			s.Availed = s.Availed.Sub(tx.Amount)
		case generic.TxCarryForward:
			s.CarriedOver = s.CarriedOver.Add(tx.Amount)
		case generic.TxDebit:
			switch tx.Kind() {
			case generic.SubtypeLapsed:
				s.Lapsed = s.Lapsed.Sub(tx.Amount)
			case generic.SubtypeEncashed:
				s.Encashed = s.Encashed.Sub(tx.Amount)
			default:
				s.Adjusted = s.Adjusted.Add(tx.Amount)
			}
		case generic.TxAdjustment:
			s.Adjusted = s.Adjusted.Add(tx.Amount)
		case generic.TxPendingDeduction:
			s.Pending = s.Pending.Sub(tx.Amount)
		}
	}
	s.Net = generic.NetAmount(txs)
	return s
}

// Inconsistency is a balance row whose CurrentBalance disagrees with the
// signed sum of its ledger.
type Inconsistency struct {
	Key       generic.BalanceKey
	Balance   decimal.Decimal
	LedgerNet decimal.Decimal
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s/%s/%d: balance %s, ledger %s", i.Key.UserID, i.Key.VariantID, i.Key.Year, i.Balance, i.LedgerNet)
}

// CheckConsistency compares every matching balance row with its ledger.
func (e *Engine) CheckConsistency(ctx context.Context, filter generic.BalanceFilter) ([]Inconsistency, error) {
	balances, err := e.Store.ListBalances(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []Inconsistency
	l := e.ledger(e.Store)
	for _, b := range balances {
		net, err := l.Net(ctx, b.Key)
		if err != nil {
			return nil, err
		}
		if !net.Equal(b.CurrentBalance) {
			out = append(out, Inconsistency{Key: b.Key, Balance: b.CurrentBalance, LedgerNet: net})
		}
	}
	if len(out) > 0 {
		e.Log.WithField("org_id", filter.OrgID).WithField("count", len(out)).Warn("balance rows disagree with ledger")
	}
	return out, nil
}
