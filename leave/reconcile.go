/*
reconcile.go - Pro-rata reconciliation job

PURPOSE:
  Brings every employee's balances in line with the configured accrual
  rules as of today. Safe to re-run: each run posts only the difference
  between the accrual the rules yield now and the accrual already
  granted, so a second run in the same state writes nothing.

JOINING DATE (first match wins):
  1. Roster record (DD-MMM-YYYY)
  2. Employee.JoiningDate already stored
  3. Leave-year start (full-year entitlement)

IMPORTED BALANCES:
  Opening balances imported from a legacy system are kept as they are.
  The configured accrual is granted on top of them, never instead of them:

    imported 6.0 + accrual 9.0 = balance 15.0

FAILURES:
  The roster being down degrades to fallback joining dates. An employee
  whose processing fails is logged and counted; the others continue.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/roster"
)

type ReconcileSummary struct {
	OrgID              generic.OrgID
	LeaveYear          generic.LeaveYear
	RosterUsed         bool
	Employees          int
	AssignmentsCreated int
	Processed          int
	Skipped            int
	Errors             int
	Failures           []ReconcileFailure
}

type ReconcileFailure struct {
	UserID generic.UserID
	Err    string
}

// AutoProRataCalculation reconciles the balances of every employee of an
// organization. src may be nil. Concurrent runs for one organization share
// a single execution.
func (e *Engine) AutoProRataCalculation(ctx context.Context, orgID generic.OrgID, src roster.Source) (ReconcileSummary, error) {
	v, err, _ := e.reconciles.Do(string(orgID), func() (any, error) {
		return e.reconcile(ctx, orgID, src)
	})
	if err != nil {
		return ReconcileSummary{}, err
	}
	return v.(ReconcileSummary), nil
}

func (e *Engine) reconcile(ctx context.Context, orgID generic.OrgID, src roster.Source) (ReconcileSummary, error) {
	now := e.now()
	logger := e.Log.WithField("org_id", orgID).WithField("job", "pro-rata")
	summary := ReconcileSummary{OrgID: orgID}

	org, err := e.Store.GetOrganization(ctx, orgID)
	if errors.Is(err, generic.ErrOrganizationNotFound) {
		org, err = Organization{ID: orgID}, nil
	}
	if err != nil {
		return summary, err
	}
	summary.LeaveYear = org.LeaveYear().YearFor(now)

	employees, err := e.Store.ListEmployees(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("failed to list employees: %w", err)
	}
	variants, err := e.Store.ListVariants(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("failed to list variants: %w", err)
	}
	summary.Employees = len(employees)

	created, err := e.ensureAssignments(ctx, orgID, employees, variants)
	if err != nil {
		return summary, err
	}
	summary.AssignmentsCreated = created

	var records map[generic.UserID]roster.Record
	if src != nil {
		list, err := src.Fetch(ctx, orgID)
		if err != nil {
			logger.WithError(err).Warn("roster unavailable, using fallback joining dates")
		} else {
			records = roster.Index(list)
			summary.RosterUsed = true
		}
	}

	byID := make(map[generic.VariantID]LeaveVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}
	assignments, err := e.Store.ListAssignments(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("failed to list assignments: %w", err)
	}
	perUser := make(map[generic.UserID][]LeaveVariant)
	for _, a := range assignments {
		if v, ok := byID[a.VariantID]; ok {
			perUser[a.UserID] = append(perUser[a.UserID], v)
		}
	}

	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, hasRecord := records[emp.ID]
		processed, skipped, err := e.reconcileEmployee(ctx, org, emp, rec, hasRecord, perUser[emp.ID], summary.LeaveYear, now)
		if err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, ReconcileFailure{UserID: emp.ID, Err: err.Error()})
			logger.WithField("user_id", emp.ID).WithError(err).Error("pro-rata reconciliation failed for employee")
			continue
		}
		summary.Processed += processed
		summary.Skipped += skipped
	}

	logger.WithField("leave_year", summary.LeaveYear.String()).
		WithField("employees", summary.Employees).
		WithField("assignments_created", summary.AssignmentsCreated).
		WithField("processed", summary.Processed).
		WithField("skipped", summary.Skipped).
		WithField("errors", summary.Errors).
		WithField("roster_used", summary.RosterUsed).
		Info("pro-rata reconciliation completed")
	return summary, nil
}

// ensureAssignments assigns every variant of the organization to every
// employee that lacks it.
func (e *Engine) ensureAssignments(ctx context.Context, orgID generic.OrgID, employees []Employee, variants []LeaveVariant) (int, error) {
	created := 0
	err := e.withTx(ctx, "ensure_assignments", func(s Store) error {
		existing, err := s.ListAssignments(ctx, orgID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, a := range existing {
			have[string(a.UserID)+"|"+string(a.VariantID)] = true
		}
		for _, emp := range employees {
			for _, v := range variants {
				if have[string(emp.ID)+"|"+string(v.ID)] {
					continue
				}
				if err := s.SaveAssignment(ctx, Assignment{
					ID:        uuid.NewString(),
					OrgID:     orgID,
					UserID:    emp.ID,
					VariantID: v.ID,
					Type:      v.Kind,
				}); err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create assignments: %w", err)
	}
	return created, nil
}

// reconcileEmployee tops up every assigned variant of one employee inside
// one transaction.
func (e *Engine) reconcileEmployee(ctx context.Context, org Organization, emp Employee, rec roster.Record, hasRecord bool, variants []LeaveVariant, ly generic.LeaveYear, now time.Time) (processed, skipped int, err error) {
	err = e.withTx(ctx, "reconcile_employee", func(s Store) error {
		processed, skipped = 0, 0

		joining, err := e.joiningDate(ctx, s, emp, rec, hasRecord, ly)
		if err != nil {
			return err
		}
		for _, v := range variants {
			// Comp-off is earned by approved requests, not accrued
			if v.Kind == AssignCompOffVariant {
				skipped++
				continue
			}
			if err := e.topUp(ctx, s, org, emp.ID, v, joining, ly, now); err != nil {
				return fmt.Errorf("variant %s: %w", v.ID, err)
			}
			processed++
		}
		return nil
	})
	return processed, skipped, err
}

// joiningDate resolves the employee's joining date and records a roster
// date on the employee so later runs without the roster keep it.
func (e *Engine) joiningDate(ctx context.Context, s Store, emp Employee, rec roster.Record, hasRecord bool, ly generic.LeaveYear) (time.Time, error) {
	if hasRecord && rec.DateOfJoining != "" {
		d, err := rec.JoiningDate()
		if err == nil {
			if emp.JoiningDate == nil || !emp.JoiningDate.Equal(d) {
				emp.JoiningDate = &d
				if emp.EmployeeNumber == "" {
					emp.EmployeeNumber = rec.EmployeeNumber
				}
				if err := s.SaveEmployee(ctx, emp); err != nil {
					return time.Time{}, err
				}
			}
			return d, nil
		}
		e.Log.WithField("user_id", emp.ID).
			WithField("date_of_joining", rec.DateOfJoining).
			WithError(err).
			Warn("unparseable roster joining date")
	}
	if emp.JoiningDate != nil {
		return generic.DateOf(*emp.JoiningDate), nil
	}
	return ly.Start, nil
}

// topUp grants the difference between the accrual due now and the accrual
// granted so far. Imported opening balances are not part of that sum, so
// the accrual always lands on top of them.
func (e *Engine) topUp(ctx context.Context, s Store, org Organization, userID generic.UserID, v LeaveVariant, joining time.Time, ly generic.LeaveYear, now time.Time) error {
	key := generic.BalanceKey{UserID: userID, VariantID: v.ID, Year: ly.Start.Year(), OrgID: org.ID}
	ent := EntitlementForLeaveYear(v, joining, now, ly)

	txs, err := s.ListTransactions(ctx, generic.TransactionFilter{
		OrgID:     key.OrgID,
		UserID:    key.UserID,
		VariantID: key.VariantID,
		Year:      key.Year,
		Types:     []generic.TransactionType{generic.TxGrant},
	})
	if err != nil {
		return err
	}
	accrued, imported := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Kind() {
		case generic.SubtypeAccrual:
			accrued = accrued.Add(tx.Amount)
		case generic.SubtypeOpeningImport:
			imported = imported.Add(tx.Amount)
		}
	}

	delta := generic.Round2(ent.CurrentBalance.Sub(accrued))
	if delta.IsZero() {
		return e.syncEntitlement(ctx, s, key, ent.TotalEntitlement)
	}

	description := fmt.Sprintf("Pro-rata entitlement %s day(s) as of %s (joined %s)",
		ent.CurrentBalance.StringFixed(1), now.Format("2006-01-02"), joining.Format(generic.RosterDateLayout))
	if !imported.IsZero() {
		description = fmt.Sprintf("Configured entitlement %s day(s) added to imported opening balance %s day(s)",
			ent.CurrentBalance.StringFixed(1), imported.String())
	}
	total := ent.TotalEntitlement
	bal, _, err := e.ledger(s).Post(ctx, generic.BalanceChange{
		Key:             key,
		Type:            generic.TxGrant,
		Subtype:         generic.SubtypeAccrual,
		Amount:          delta,
		Entitlement:     &total,
		Description:     description,
		CreatedBy:       ActorSystem,
		CreateIfMissing: true,
	})
	if err != nil {
		return err
	}
	e.Log.WithField("user_id", userID).
		WithField("variant_id", v.ID).
		WithField("granted", delta.String()).
		WithField("imported", imported.String()).
		WithField("balance_after", bal.CurrentBalance.String()).
		Debug("pro-rata top-up posted")
	return nil
}

// syncEntitlement keeps TotalEntitlement current when no accrual is due.
// TotalEntitlement is configuration, not a ledgered amount.
func (e *Engine) syncEntitlement(ctx context.Context, s Store, key generic.BalanceKey, total decimal.Decimal) error {
	bal, err := s.GetBalance(ctx, key)
	if errors.Is(err, generic.ErrBalanceNotFound) {
		bal, err = generic.NewBalance(key), nil
	}
	if err != nil {
		return err
	}
	if bal.TotalEntitlement.Equal(total) && !bal.UpdatedAt.IsZero() {
		return nil
	}
	bal.TotalEntitlement = total
	bal.UpdatedAt = e.now()
	return s.SaveBalance(ctx, bal)
}

// =============================================================================
// SESSION GATE
// =============================================================================

// Gate runs the reconciliation at most once per (organization, session).
// The job is idempotent but walks every employee, so callers hitting it on
// each page load go through the gate.
type Gate struct {
	Engine *Engine
	Source roster.Source

	mu   sync.Mutex
	runs map[string]ReconcileSummary
}

func NewGate(engine *Engine, src roster.Source) *Gate {
	return &Gate{Engine: engine, Source: src, runs: make(map[string]ReconcileSummary)}
}

// Run reconciles orgID unless this session already did. It returns the
// summary of the run that satisfied the session and whether it ran now.
func (g *Gate) Run(ctx context.Context, orgID generic.OrgID, sessionID string) (ReconcileSummary, bool, error) {
	key := string(orgID) + "|" + sessionID
	g.mu.Lock()
	if s, ok := g.runs[key]; ok {
		g.mu.Unlock()
		return s, false, nil
	}
	g.mu.Unlock()

	summary, err := g.Engine.AutoProRataCalculation(ctx, orgID, g.Source)
	if err != nil {
		return summary, false, err
	}

	g.mu.Lock()
	g.runs[key] = summary
	g.mu.Unlock()
	return summary, true, nil
}

// Forget drops a session's marker, e.g. on logout.
func (g *Gate) Forget(orgID generic.OrgID, sessionID string) {
	g.mu.Lock()
	delete(g.runs, string(orgID)+"|"+sessionID)
	g.mu.Unlock()
}
