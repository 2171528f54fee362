/*
Package generic provides the ledger and balance primitives of the leave engine.

PURPOSE:
  This package contains the domain-agnostic types shared by every leave,
  PTO and comp-off computation: quantities, ledger entries, materialized
  balances and the store interfaces that persist them. It knows nothing
  about workflows or leave variants.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantities: decimal.Decimal days (or hours), half-day rounding
  - Transaction: An immutable ledger entry recording a balance change
  - BalanceKey: The (user, variant, year, org) identity of a balance row

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing user/variant IDs
  4. Explicit classification: TransactionSubtype replaces free-text matching

SEE ALSO:
  - ledger.go: Posting a change to the balance row and the ledger together
  - balance.go: Materialized balance aggregate
  - store.go: Persistence interfaces
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type OrgID string
type VariantID string
type LeaveTypeID string
type TransactionID string

// =============================================================================
// QUANTITIES
// =============================================================================

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// RoundHalf rounds to the nearest 0.5 as round(x*2)/2.
// 7.33 -> 7.5, 7.1 -> 7.0, 7.25 -> 7.5.
func RoundHalf(d decimal.Decimal) decimal.Decimal {
	return d.Mul(two).Round(0).Div(two)
}

// Round2 rounds to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Round(0).Div(hundred)
}

func Days(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxGrant              TransactionType = "grant"
	TxDeduction          TransactionType = "deduction"
	TxPendingDeduction   TransactionType = "pending_deduction" // display only, never moves currentBalance
	TxBalanceRestoration TransactionType = "balance_restoration"
	TxCarryForward       TransactionType = "carry_forward"
	TxAdjustment         TransactionType = "adjustment"
	TxCredit             TransactionType = "credit"
	TxDebit              TransactionType = "debit"
)

// AffectsBalance reports whether entries of this type move currentBalance.
func (t TransactionType) AffectsBalance() bool {
	return t != TxPendingDeduction
}

// TransactionSubtype is the explicit secondary classifier set when an entry
// is created. Entries written before it existed carry SubtypeNone and are
// classified from their description (see ClassifyLegacy).
type TransactionSubtype string

const (
	SubtypeNone          TransactionSubtype = ""
	SubtypeAccrual       TransactionSubtype = "accrual"
	SubtypeOpeningImport TransactionSubtype = "opening_import"
	SubtypeLapsed        TransactionSubtype = "lapsed"
	SubtypeEncashed      TransactionSubtype = "encashed"
	SubtypeManual        TransactionSubtype = "manual"
)

type Transaction struct {
	ID             TransactionID
	UserID         UserID
	VariantID      VariantID
	OrgID          OrgID
	Year           int
	Type           TransactionType
	Subtype        TransactionSubtype
	Amount         decimal.Decimal // signed
	BalanceAfter   decimal.Decimal
	Description    string
	LeaveRequestID string
	CreatedBy      string
	CreatedAt      time.Time
}

// Kind returns the effective subtype, falling back to the legacy
// description convention for entries that predate the explicit tag.
func (tx Transaction) Kind() TransactionSubtype {
	if tx.Subtype != SubtypeNone {
		return tx.Subtype
	}
	return ClassifyLegacy(tx.Description)
}

// TransactionFilter selects ledger entries. Zero-valued fields match all.
type TransactionFilter struct {
	OrgID          OrgID
	UserID         UserID
	VariantID      VariantID
	Year           int
	Types          []TransactionType
	LeaveRequestID string
}

func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.OrgID != "" && tx.OrgID != f.OrgID {
		return false
	}
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if f.VariantID != "" && tx.VariantID != f.VariantID {
		return false
	}
	if f.Year != 0 && tx.Year != f.Year {
		return false
	}
	if f.LeaveRequestID != "" && tx.LeaveRequestID != f.LeaveRequestID {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if tx.Type == t {
				return true
			}
		}
		return false
	}
	return true
}
