package leave

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/warp/leave-engine/generic"
)

// Engine drives requests through their workflows and keeps balances and
// the ledger in step. Every transition on a request holds that request's
// lock and runs inside one store transaction, so a request advances at
// most once per action even under concurrent approvers.
//
// Build it with NewEngine; a literal must set Store, Now and Log.
type Engine struct {
	Store TxStore
	Now   func() time.Time
	Log   *log.Entry

	locks      keyedMutex
	sweeps     singleflight.Group
	reconciles singleflight.Group
}

func NewEngine(store TxStore) *Engine {
	return &Engine{
		Store: store,
		Now:   time.Now,
		Log:   log.WithField("component", "leave.engine"),
	}
}

func (e *Engine) now() time.Time {
	return e.Now().UTC()
}

// withTx runs fn in one store transaction. Corrupt stored state aborts the
// operation and is logged with op.
func (e *Engine) withTx(ctx context.Context, op string, fn func(s Store) error) error {
	err := e.Store.WithTx(ctx, fn)
	if errors.Is(err, generic.ErrInvalidState) {
		e.Log.WithField("op", op).WithError(err).Error("stored state is invalid, operation aborted")
	}
	return err
}

func (e *Engine) ledger(s Store) *generic.Ledger {
	l := generic.NewLedger(s)
	l.Now = e.Now
	return l
}

// balanceYear returns the year of the leave year in force at `at`. Orgs
// without a stored configuration use the calendar year.
func balanceYear(ctx context.Context, s Store, orgID generic.OrgID, at time.Time) int {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return at.Year()
	}
	return org.LeaveYear().StartFor(at).Year()
}

// GetRequest returns a request by id.
func (e *Engine) GetRequest(ctx context.Context, id string) (Request, error) {
	return e.Store.GetRequest(ctx, id)
}

// ListRequests returns requests matching filter.
func (e *Engine) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error) {
	return e.Store.ListRequests(ctx, filter)
}

// Balances returns the balance rows matching filter.
func (e *Engine) Balances(ctx context.Context, filter generic.BalanceFilter) ([]generic.Balance, error) {
	return e.Store.ListBalances(ctx, filter)
}

// Transactions returns the ledger entries matching filter.
func (e *Engine) Transactions(ctx context.Context, filter generic.TransactionFilter) ([]generic.Transaction, error) {
	return e.Store.ListTransactions(ctx, filter)
}
