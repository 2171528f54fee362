/*
store.go - Persistence interfaces for the ledger and balance aggregate

PURPOSE:
  Defines the interface between the balance logic and the database.
  Implementations: store/sqlite (production) and store/memory (tests).

APPEND-ONLY CONTRACT:
  Ledger entries are written with AppendTransaction and never updated.
  The single exception is PurgeTransactions, which the pending-deduction
  sync uses to drop display-only pending_deduction rows.

ATOMICITY:
  A balance change always writes the balance row and one ledger entry.
  Callers run Ledger.Post against a Store obtained inside the domain
  store's WithTx so both writes commit or roll back together.
*/
package generic

import "context"

// LedgerStore persists ledger entries.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx Transaction) error

	// ListTransactions returns matching entries ordered by CreatedAt, then
	// insertion order.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// PurgeTransactions deletes entries by ID. Only pending_deduction rows
	// may be purged; implementations reject any other type.
	PurgeTransactions(ctx context.Context, ids []TransactionID) error
}

// BalanceStore persists the materialized balance aggregate.
type BalanceStore interface {
	// GetBalance returns ErrBalanceNotFound when no row exists.
	GetBalance(ctx context.Context, key BalanceKey) (Balance, error)

	// SaveBalance inserts or updates the row for b.Key.
	SaveBalance(ctx context.Context, b Balance) error

	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)
}

// Store is the combined ledger + balance persistence.
type Store interface {
	LedgerStore
	BalanceStore
}

// BalanceFilter selects balance rows. Zero-valued fields match all.
type BalanceFilter struct {
	OrgID     OrgID
	UserID    UserID
	VariantID VariantID
	Year      int
}

func (f BalanceFilter) Matches(b Balance) bool {
	return (f.OrgID == "" || b.Key.OrgID == f.OrgID) &&
		(f.UserID == "" || b.Key.UserID == f.UserID) &&
		(f.VariantID == "" || b.Key.VariantID == f.VariantID) &&
		(f.Year == 0 || b.Key.Year == f.Year)
}
