/*
balance.go - Materialized balance aggregate

PURPOSE:
  One row per (user, variant, year, org) holding the current figures.
  The row is denormalized: it is derivable from the ledger, but stored so
  reports and approvals do not replay history on every read.

INVARIANT:
  CurrentBalance == TotalEntitlement - UsedBalance + CarryForward
                    +/- adjustments recorded in the ledger

  The row is only ever changed through Ledger.Post, which writes the
  matching ledger entry in the same store transaction.
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKey identifies a balance row. Unique in every store.
type BalanceKey struct {
	UserID    UserID
	VariantID VariantID
	Year      int
	OrgID     OrgID
}

type Balance struct {
	Key              BalanceKey
	TotalEntitlement decimal.Decimal
	CurrentBalance   decimal.Decimal
	UsedBalance      decimal.Decimal
	CarryForward     decimal.Decimal
	UpdatedAt        time.Time
}

// NewBalance returns an empty row for key.
func NewBalance(key BalanceKey) Balance {
	return Balance{
		Key:              key,
		TotalEntitlement: decimal.Zero,
		CurrentBalance:   decimal.Zero,
		UsedBalance:      decimal.Zero,
		CarryForward:     decimal.Zero,
	}
}

// Reconstructed returns TotalEntitlement - UsedBalance + CarryForward,
// i.e. the current balance without ledger-only adjustments.
func (b Balance) Reconstructed() decimal.Decimal {
	return b.TotalEntitlement.Sub(b.UsedBalance).Add(b.CarryForward)
}

// Drift is the part of CurrentBalance not explained by Reconstructed:
// imports, manual adjustments, pro-rata shortfall against the annual figure.
func (b Balance) Drift() decimal.Decimal {
	return b.CurrentBalance.Sub(b.Reconstructed())
}

// BalanceChange is one atomic mutation of a balance row.
type BalanceChange struct {
	Key         BalanceKey
	Type        TransactionType
	Subtype     TransactionSubtype
	Amount      decimal.Decimal // signed effect on CurrentBalance
	Used        decimal.Decimal // signed effect on UsedBalance
	Entitlement *decimal.Decimal
	Description string
	RequestID   string
	CreatedBy   string

	// CreateIfMissing starts from an empty row instead of failing with
	// ErrBalanceNotFound.
	CreateIfMissing bool
}
