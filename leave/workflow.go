/*
workflow.go - Step-indexed approval state machine

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Submit ──▶ pending(step 1) ──▶ pending(step 2) ──▶ … ──▶ approved│
  │                 │                    │                           │
  │                 └──────── reject ────┴──────────▶ rejected       │
  │                                                                  │
  │  leave only:  approved ──▶ withdrawal_pending ──▶ withdrawal_    │
  │               pending  ──▶ withdrawn               approved      │
  └──────────────────────────────────────────────────────────────────┘

AUTO-APPROVAL:
  A step with AutoApproval and no delay resolves in the same call that
  reached it (actor "system"), cascading through consecutive auto steps.
  A step with a delay sets ScheduledAutoApprovalAt; the sweep
  ProcessPendingTimeBasedApprovals resolves it later with actor
  "system-time-based" and clears the schedule, so a second sweep is a
  no-op for that request.

BALANCE EFFECTS:
  Deduction happens at submission (DeductionBefore), at final approval
  (default) or never (DeductionNotAllowed). Rejection restores only a
  submission-time deduction. Comp-off requests credit on final approval.

STEP SNAPSHOT:
  Steps are copied onto the request at submission. Later edits to the
  workflow do not move in-flight requests; a currentStep outside the
  snapshot is reported as an InvalidStateError and nothing is written.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

type SubmitInput struct {
	OrgID       generic.OrgID
	UserID      generic.UserID
	Kind        RequestKind
	LeaveTypeID generic.LeaveTypeID
	WorkflowID  string // optional; selected by process/sub-process when empty
	StartDate   time.Time
	EndDate     time.Time
	WorkingDays decimal.Decimal
	Reason      string
}

func (in SubmitInput) validate() error {
	switch {
	case in.OrgID == "" || in.UserID == "":
		return fmt.Errorf("%w: org and user are required", generic.ErrInvalidInput)
	case !in.Kind.Valid():
		return fmt.Errorf("%w: unknown request kind %q", generic.ErrInvalidInput, in.Kind)
	case in.LeaveTypeID == "":
		return fmt.Errorf("%w: leave type is required", generic.ErrInvalidInput)
	case !in.WorkingDays.IsPositive():
		return fmt.Errorf("%w: working days must be positive", generic.ErrInvalidInput)
	case in.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", generic.ErrInvalidInput)
	case !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate):
		return fmt.Errorf("%w: end date before start date", generic.ErrInvalidInput)
	}
	return nil
}

// Submit creates a pending request on its workflow's first step.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (Request, error) {
	if err := in.validate(); err != nil {
		return Request{}, err
	}
	now := e.now()
	end := in.EndDate
	if end.IsZero() {
		end = in.StartDate
	}

	req := Request{
		ID:             uuid.NewString(),
		OrgID:          in.OrgID,
		UserID:         in.UserID,
		Kind:           in.Kind,
		LeaveTypeID:    in.LeaveTypeID,
		StartDate:      generic.DateOf(in.StartDate),
		EndDate:        generic.DateOf(end),
		WorkingDays:    generic.Round2(in.WorkingDays),
		Reason:         in.Reason,
		Status:         StatusPending,
		CurrentStep:    1,
		WorkflowStatus: WorkflowInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := e.withTx(ctx, "submit", func(s Store) error {
		variant, err := s.VariantForLeaveType(ctx, in.OrgID, in.LeaveTypeID)
		if err != nil {
			return err
		}
		wf, err := selectWorkflow(ctx, s, in)
		if err != nil {
			return err
		}
		req.VariantID = variant.ID
		req.WorkflowID = wf.ID
		req.WorkflowSteps = append([]WorkflowStep(nil), wf.Steps...)

		if req.Kind != KindCompOff && variant.DeductionTiming() == DeductOnSubmission {
			if _, err := e.deductBalance(ctx, s, req.UserID, req.LeaveTypeID, req.WorkingDays, req.OrgID, req.ID); err != nil {
				return err
			}
		}

		if len(req.WorkflowSteps) == 0 {
			if err := e.finalize(ctx, s, &req, variant, ActorSystem, now); err != nil {
				return err
			}
		} else if err := e.advance(ctx, s, &req, variant, now); err != nil {
			return err
		}
		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}

	e.Log.WithField("request_id", req.ID).
		WithField("user_id", req.UserID).
		WithField("kind", req.Kind).
		WithField("status", req.Status).
		Info("request submitted")
	return req, nil
}

func selectWorkflow(ctx context.Context, s Store, in SubmitInput) (Workflow, error) {
	if in.WorkflowID != "" {
		return s.GetWorkflow(ctx, in.OrgID, in.WorkflowID)
	}
	wfs, err := s.ListWorkflows(ctx, in.OrgID)
	if err != nil {
		return Workflow{}, err
	}
	// Prefer a workflow naming the leave type over a catch-all one
	var fallback *Workflow
	for i, wf := range wfs {
		if !wf.Governs(in.Kind, in.LeaveTypeID) {
			continue
		}
		if len(wf.SubProcesses) > 0 {
			return wf, nil
		}
		if fallback == nil {
			fallback = &wfs[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Workflow{}, fmt.Errorf("%w: no workflow governs %s/%s", generic.ErrWorkflowNotFound, in.Kind, in.LeaveTypeID)
}

// ProcessApproval records approvedBy's approval of the current step and
// moves the request on: to the next step (resolving auto-approval steps)
// or, on the last step, to approved with the balance deducted.
func (e *Engine) ProcessApproval(ctx context.Context, requestID, approvedBy string) (Request, error) {
	return e.transition(ctx, requestID, "approve", func(s Store, req *Request, variant LeaveVariant, now time.Time) error {
		if req.Status != StatusPending {
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "approve"}
		}
		final, err := e.approveStep(ctx, s, req, variant, approvedBy, now)
		if err != nil || final {
			return err
		}
		return e.advance(ctx, s, req, variant, now)
	})
}

// RejectRequest ends the workflow as rejected. A deduction made at
// submission is restored; otherwise the balance was never touched.
func (e *Engine) RejectRequest(ctx context.Context, requestID, rejectedBy, reason string) (Request, error) {
	return e.transition(ctx, requestID, "reject", func(s Store, req *Request, variant LeaveVariant, now time.Time) error {
		if req.Status != StatusPending {
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "reject"}
		}
		step, err := currentStep(*req)
		if err != nil {
			return err
		}
		req.History = append(req.History, ApprovalRecord{
			StepIndex: req.CurrentStep - 1,
			StepTitle: step.Title,
			Actor:     rejectedBy,
			Action:    ActionRejected,
			Comment:   reason,
			Timestamp: now,
		})
		req.Status = StatusRejected
		req.WorkflowStatus = WorkflowCompleted
		req.RejectedBy = rejectedBy
		req.RejectionReason = reason
		req.ScheduledAutoApprovalAt = nil

		if req.Kind != KindCompOff && variant.DeductionTiming() == DeductOnSubmission {
			if _, err := e.restore(ctx, s, *req, "rejected"); err != nil {
				return err
			}
		}
		return purgePendingFor(ctx, s, *req)
	})
}

// Withdraw withdraws a leave request. A pending request is withdrawn at
// once; an approved one waits for ApproveWithdrawal.
func (e *Engine) Withdraw(ctx context.Context, requestID, actor, reason string) (Request, error) {
	return e.transition(ctx, requestID, "withdraw", func(s Store, req *Request, variant LeaveVariant, now time.Time) error {
		if req.Kind != KindLeave {
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "withdraw " + string(req.Kind)}
		}
		record := ApprovalRecord{
			StepIndex: req.CurrentStep - 1,
			Actor:     actor,
			Action:    ActionWithdrawalRequested,
			Comment:   reason,
			Timestamp: now,
		}
		switch req.Status {
		case StatusPending:
			req.History = append(req.History, record)
			req.Status = StatusWithdrawn
			req.WorkflowStatus = WorkflowCompleted
			req.ScheduledAutoApprovalAt = nil
			if variant.DeductionTiming() == DeductOnSubmission {
				if _, err := e.restore(ctx, s, *req, "withdrawn"); err != nil {
					return err
				}
			}
			return purgePendingFor(ctx, s, *req)
		case StatusApproved:
			req.History = append(req.History, record)
			req.Status = StatusWithdrawalPending
			return nil
		default:
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "withdraw"}
		}
	})
}

// ApproveWithdrawal completes the withdrawal of an approved leave and
// gives the deducted days back.
func (e *Engine) ApproveWithdrawal(ctx context.Context, requestID, approvedBy string) (Request, error) {
	return e.transition(ctx, requestID, "approve withdrawal", func(s Store, req *Request, variant LeaveVariant, now time.Time) error {
		if req.Status != StatusWithdrawalPending {
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "approve withdrawal"}
		}
		req.History = append(req.History, ApprovalRecord{
			StepIndex: req.CurrentStep - 1,
			Actor:     approvedBy,
			Action:    ActionWithdrawalApproved,
			Timestamp: now,
		})
		req.Status = StatusWithdrawalApproved
		if variant.DeductionTiming() != DeductNever {
			if _, err := e.restore(ctx, s, *req, "withdrawal approved"); err != nil {
				return err
			}
		}
		return nil
	})
}

// RejectWithdrawal puts a withdrawal-pending leave back to approved.
func (e *Engine) RejectWithdrawal(ctx context.Context, requestID, rejectedBy, reason string) (Request, error) {
	return e.transition(ctx, requestID, "reject withdrawal", func(s Store, req *Request, variant LeaveVariant, now time.Time) error {
		if req.Status != StatusWithdrawalPending {
			return &generic.TransitionError{RequestID: req.ID, From: string(req.Status), Action: "reject withdrawal"}
		}
		req.History = append(req.History, ApprovalRecord{
			StepIndex: req.CurrentStep - 1,
			Actor:     rejectedBy,
			Action:    ActionWithdrawalRejected,
			Comment:   reason,
			Timestamp: now,
		})
		req.Status = StatusApproved
		return nil
	})
}

// =============================================================================
// TIME-BASED AUTO-APPROVAL
// =============================================================================

type SweepResult struct {
	Due      int
	Advanced int
	Approved int
	Skipped  int
	Errors   int
}

// ProcessPendingTimeBasedApprovals resolves every pending request whose
// scheduled auto-approval is due. Concurrent calls share one sweep, and
// each request is re-checked under its lock, so a request advances at
// most once per due schedule.
func (e *Engine) ProcessPendingTimeBasedApprovals(ctx context.Context) (SweepResult, error) {
	v, err, _ := e.sweeps.Do("time-based-approvals", func() (any, error) {
		return e.sweep(ctx)
	})
	if err != nil {
		return SweepResult{}, err
	}
	return v.(SweepResult), nil
}

func (e *Engine) sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := e.now()

	due, err := e.Store.ListRequests(ctx, RequestFilter{Status: StatusPending, DueBy: &now})
	if err != nil {
		return result, fmt.Errorf("failed to list due requests: %w", err)
	}
	result.Due = len(due)

	for _, r := range due {
		logger := e.Log.WithField("request_id", r.ID).WithField("org_id", r.OrgID)
		claimed := false
		req, err := e.transition(ctx, r.ID, "auto-approve", func(s Store, req *Request, variant LeaveVariant, _ time.Time) error {
			if req.Status != StatusPending || req.ScheduledAutoApprovalAt == nil || req.ScheduledAutoApprovalAt.After(now) {
				return nil
			}
			claimed = true
			final, err := e.approveStep(ctx, s, req, variant, ActorSystemTimeBased, now)
			if err != nil || final {
				return err
			}
			return e.advance(ctx, s, req, variant, now)
		})
		switch {
		case err != nil:
			result.Errors++
			logger.WithError(err).Error("time-based auto-approval failed")
		case !claimed:
			result.Skipped++
		default:
			result.Advanced++
			if req.Status == StatusApproved {
				result.Approved++
			}
		}
	}

	if result.Due > 0 {
		e.Log.WithField("due", result.Due).
			WithField("advanced", result.Advanced).
			WithField("approved", result.Approved).
			WithField("skipped", result.Skipped).
			WithField("errors", result.Errors).
			Info("time-based approval sweep completed")
	}
	return result, nil
}

// =============================================================================
// STATE MACHINE INTERNALS
// =============================================================================

type transitionFunc func(s Store, req *Request, variant LeaveVariant, now time.Time) error

// transition loads the request under its lock, applies fn and saves the
// result in one store transaction. Nothing is written if fn fails.
func (e *Engine) transition(ctx context.Context, requestID, action string, fn transitionFunc) (Request, error) {
	unlock := e.locks.Lock(requestID)
	defer unlock()

	var out Request
	err := e.withTx(ctx, action, func(s Store) error {
		req, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		variant, err := s.GetVariant(ctx, req.OrgID, req.VariantID)
		if err != nil {
			return err
		}
		before := len(req.History)
		now := e.now()
		if err := fn(s, &req, variant, now); err != nil {
			return err
		}
		if len(req.History) == before {
			out = req
			return nil
		}
		req.UpdatedAt = now
		out = req
		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		entry := e.Log.WithField("request_id", requestID).WithField("action", action).WithError(err)
		if generic.IsConflict(err) && !errors.Is(err, generic.ErrInvalidState) {
			entry.Warn("request transition refused")
		} else {
			entry.Error("request transition failed")
		}
		return Request{}, err
	}

	e.Log.WithField("request_id", out.ID).
		WithField("action", action).
		WithField("status", out.Status).
		WithField("current_step", out.CurrentStep).
		Debug("request transition applied")
	return out, nil
}

func currentStep(req Request) (WorkflowStep, error) {
	idx := req.CurrentStep - 1
	if idx < 0 || idx >= len(req.WorkflowSteps) {
		return WorkflowStep{}, &generic.InvalidStateError{
			RequestID:   req.ID,
			CurrentStep: req.CurrentStep,
			StepCount:   len(req.WorkflowSteps),
			Reason:      "current step outside workflow steps",
		}
	}
	return req.WorkflowSteps[idx], nil
}

// approveStep records actor's approval of the current step. It finalizes
// the request on the last step and reports whether it did.
func (e *Engine) approveStep(ctx context.Context, s Store, req *Request, variant LeaveVariant, actor string, now time.Time) (bool, error) {
	step, err := currentStep(*req)
	if err != nil {
		return false, err
	}
	req.History = append(req.History, ApprovalRecord{
		StepIndex: req.CurrentStep - 1,
		StepTitle: step.Title,
		Actor:     actor,
		Action:    ActionApproved,
		Timestamp: now,
	})
	req.ScheduledAutoApprovalAt = nil

	if req.CurrentStep == len(req.WorkflowSteps) {
		return true, e.finalize(ctx, s, req, variant, actor, now)
	}
	req.CurrentStep++
	return false, nil
}

// advance resolves the step the request now sits on: immediate
// auto-approval steps are approved by the system in a cascade, a delayed
// one is scheduled, a manual one waits.
func (e *Engine) advance(ctx context.Context, s Store, req *Request, variant LeaveVariant, now time.Time) error {
	for req.Status == StatusPending {
		step, err := currentStep(*req)
		if err != nil {
			return err
		}
		if !step.AutoApproval {
			return nil
		}
		if !step.IsImmediateAuto() {
			at := now.Add(step.Delay())
			req.ScheduledAutoApprovalAt = &at
			return nil
		}
		if _, err := e.approveStep(ctx, s, req, variant, ActorSystem, now); err != nil {
			return err
		}
	}
	return nil
}

// finalize marks the request approved and applies its balance effect.
func (e *Engine) finalize(ctx context.Context, s Store, req *Request, variant LeaveVariant, actor string, now time.Time) error {
	at := now
	req.Status = StatusApproved
	req.ApprovedBy = actor
	req.ApprovedAt = &at
	req.WorkflowStatus = WorkflowCompleted
	req.ScheduledAutoApprovalAt = nil

	if req.Kind == KindCompOff {
		if _, err := e.credit(ctx, s, *req); err != nil {
			return err
		}
	} else if variant.DeductionTiming() == DeductOnApproval {
		if _, err := e.deductBalance(ctx, s, req.UserID, req.LeaveTypeID, req.WorkingDays, req.OrgID, req.ID); err != nil {
			return err
		}
	}
	return purgePendingFor(ctx, s, *req)
}
