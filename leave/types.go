// Package leave implements the leave-balance accrual and workflow-approval
// engine: entitlement calculation, multi-step approval workflows with
// auto-approval, balance deduction and restoration, and the pro-rata
// reconciliation job.
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// LEAVE VARIANT - Accrual policy under a leave type
// =============================================================================

type AssignmentType string

const (
	AssignLeaveVariant   AssignmentType = "leave_variant"
	AssignPTOVariant     AssignmentType = "pto_variant"
	AssignCompOffVariant AssignmentType = "comp_off_variant"
)

// Slab maps a joining day-of-month range to a monthly earn rate.
type Slab struct {
	FromDay  int
	ToDay    int
	EarnDays decimal.Decimal
}

func (s Slab) Covers(day int) bool {
	return day >= s.FromDay && day <= s.ToDay
}

type LeaveVariant struct {
	ID                 generic.VariantID
	OrgID              generic.OrgID
	LeaveTypeID        generic.LeaveTypeID
	Name               string
	Kind               AssignmentType
	PaidDaysInYear     decimal.Decimal
	GrantLeaves        generic.GrantTiming
	GrantFrequency     generic.AccrualFrequency
	ProRataCalculation generic.ProrateMethod
	OnboardingSlabs    []Slab

	// Deduction timing flags. Before wins over NotAllowed, which wins over
	// After; a variant with none set deducts after approval.
	DeductionBefore     bool
	DeductionAfter      bool
	DeductionNotAllowed bool
}

type DeductionTiming int

const (
	DeductOnApproval DeductionTiming = iota
	DeductOnSubmission
	DeductNever
)

func (v LeaveVariant) DeductionTiming() DeductionTiming {
	switch {
	case v.DeductionBefore:
		return DeductOnSubmission
	case v.DeductionNotAllowed:
		return DeductNever
	default:
		return DeductOnApproval
	}
}

// =============================================================================
// WORKFLOW
// =============================================================================

type Process string

const (
	ProcessLeave   Process = "leave"
	ProcessPTO     Process = "pto"
	ProcessCompOff Process = "comp_off"
)

type WorkflowStep struct {
	Title        string
	RoleIDs      []string
	AutoApproval bool
	Days         int
	Hours        int
}

// Delay is the wait before a time-delayed auto-approval fires.
func (s WorkflowStep) Delay() time.Duration {
	return time.Duration(s.Days)*24*time.Hour + time.Duration(s.Hours)*time.Hour
}

// IsImmediateAuto reports an auto-approval step with no delay.
func (s WorkflowStep) IsImmediateAuto() bool {
	return s.AutoApproval && s.Delay() <= 0
}

type Workflow struct {
	ID           string
	OrgID        generic.OrgID
	Name         string
	Process      Process
	SubProcesses []generic.LeaveTypeID
	Steps        []WorkflowStep
}

// Governs reports whether the workflow applies to a request of kind for
// leaveType. An empty SubProcesses list governs every leave type.
func (w Workflow) Governs(kind RequestKind, leaveType generic.LeaveTypeID) bool {
	if w.Process != kind.Process() {
		return false
	}
	if len(w.SubProcesses) == 0 {
		return true
	}
	for _, sp := range w.SubProcesses {
		if sp == leaveType {
			return true
		}
	}
	return false
}

// =============================================================================
// REQUEST - Leave, PTO and comp-off share one shape
// =============================================================================

type RequestKind string

const (
	KindLeave   RequestKind = "leave"
	KindPTO     RequestKind = "pto"
	KindCompOff RequestKind = "comp_off"
)

func (k RequestKind) Process() Process {
	switch k {
	case KindPTO:
		return ProcessPTO
	case KindCompOff:
		return ProcessCompOff
	default:
		return ProcessLeave
	}
}

func (k RequestKind) Valid() bool {
	return k == KindLeave || k == KindPTO || k == KindCompOff
}

type RequestStatus string

const (
	StatusPending            RequestStatus = "pending"
	StatusApproved           RequestStatus = "approved"
	StatusRejected           RequestStatus = "rejected"
	StatusWithdrawn          RequestStatus = "withdrawn"
	StatusWithdrawalPending  RequestStatus = "withdrawal_pending"
	StatusWithdrawalApproved RequestStatus = "withdrawal_approved"
)

type WorkflowStatus string

const (
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
)

type ApprovalAction string

const (
	ActionApproved            ApprovalAction = "approved"
	ActionRejected            ApprovalAction = "rejected"
	ActionWithdrawalRequested ApprovalAction = "withdrawal_requested"
	ActionWithdrawalApproved  ApprovalAction = "withdrawal_approved"
	ActionWithdrawalRejected  ApprovalAction = "withdrawal_rejected"
)

// Actors recorded for approvals nobody clicked.
const (
	ActorSystem          = "system"
	ActorSystemTimeBased = "system-time-based"
)

// ApprovalRecord is one append-only entry of a request's audit trail.
type ApprovalRecord struct {
	StepIndex int
	StepTitle string
	Actor     string
	Action    ApprovalAction
	Comment   string
	Timestamp time.Time
}

type Request struct {
	ID          string
	OrgID       generic.OrgID
	UserID      generic.UserID
	Kind        RequestKind
	LeaveTypeID generic.LeaveTypeID
	VariantID   generic.VariantID
	StartDate   time.Time
	EndDate     time.Time
	WorkingDays decimal.Decimal // days, or hours for PTO
	Reason      string

	Status         RequestStatus
	WorkflowID     string
	WorkflowSteps  []WorkflowStep // pinned at submission
	CurrentStep    int            // 1-based
	WorkflowStatus WorkflowStatus
	History        []ApprovalRecord

	ScheduledAutoApprovalAt *time.Time
	ApprovedBy              string
	ApprovedAt              *time.Time
	RejectedBy              string
	RejectionReason         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestFilter selects requests. Zero-valued fields match all.
type RequestFilter struct {
	OrgID  generic.OrgID
	UserID generic.UserID
	Kind   RequestKind
	Status RequestStatus

	// DueBy selects requests with a scheduled auto-approval at or before it.
	DueBy *time.Time
}

func (f RequestFilter) Matches(r Request) bool {
	if f.OrgID != "" && r.OrgID != f.OrgID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.DueBy != nil {
		if r.ScheduledAutoApprovalAt == nil || r.ScheduledAutoApprovalAt.After(*f.DueBy) {
			return false
		}
	}
	return true
}

// =============================================================================
// ORGANIZATION, EMPLOYEES, ASSIGNMENTS
// =============================================================================

type Organization struct {
	ID            generic.OrgID
	Name          string
	EffectiveDate time.Time // leave-year start; zero = Jan 1
}

func (o Organization) LeaveYear() generic.LeaveYearConfig {
	return generic.LeaveYearConfig{EffectiveDate: o.EffectiveDate}
}

type Employee struct {
	ID             generic.UserID
	OrgID          generic.OrgID
	Name           string
	EmployeeNumber string
	JoiningDate    *time.Time
}

type Assignment struct {
	ID        string
	OrgID     generic.OrgID
	UserID    generic.UserID
	VariantID generic.VariantID
	Type      AssignmentType
}
