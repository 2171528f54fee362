/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Responses carry days (or PTO hours) as float64 for display. Request
  bodies take decimal.Decimal so "1.5" and 1.5 are both accepted and no
  binary rounding reaches the ledger.

VALIDATION:
  Validation is done by the engine and the factory, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/variant.go, factory/workflow.go: configuration JSON types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

type OrganizationRequest struct {
	Name          string `json:"name"`
	EffectiveDate string `json:"effective_date,omitempty"` // YYYY-MM-DD leave-year start
}

type EmployeeRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmployeeNumber string `json:"employee_number,omitempty"`
	JoiningDate    string `json:"joining_date,omitempty"` // YYYY-MM-DD or DD-MMM-YYYY
}

type SubmitRequest struct {
	UserID      string          `json:"user_id"`
	Kind        string          `json:"kind"`
	LeaveTypeID string          `json:"leave_type_id"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date,omitempty"`
	WorkingDays decimal.Decimal `json:"working_days"`
	Reason      string          `json:"reason,omitempty"`
}

// ActionRequest is the body of approve / reject / withdraw calls.
type ActionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// BalanceChangeRequest is the body of adjustment, import and expiry calls.
type BalanceChangeRequest struct {
	UserID      string          `json:"user_id"`
	VariantID   string          `json:"variant_id"`
	Year        int             `json:"year"`
	Amount      decimal.Decimal `json:"amount"`
	Subtype     string          `json:"subtype,omitempty"` // expiry: lapsed | encashed
	Description string          `json:"description,omitempty"`
	Actor       string          `json:"actor,omitempty"`
}

type DeductRequest struct {
	UserID      string          `json:"user_id"`
	LeaveTypeID string          `json:"leave_type_id"`
	Amount      decimal.Decimal `json:"amount"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	OrgID      string `json:"org_id,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type OrganizationDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EffectiveDate string `json:"effective_date,omitempty"`
	LeaveYear     string `json:"leave_year"`
}

type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmployeeNumber string `json:"employee_number,omitempty"`
	JoiningDate    string `json:"joining_date,omitempty"`
}

type ApprovalRecordDTO struct {
	StepIndex int    `json:"step_index"`
	StepTitle string `json:"step_title,omitempty"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Comment   string `json:"comment,omitempty"`
	Timestamp string `json:"timestamp"`
}

type RequestDTO struct {
	ID                      string              `json:"id"`
	UserID                  string              `json:"user_id"`
	Kind                    string              `json:"kind"`
	LeaveTypeID             string              `json:"leave_type_id"`
	VariantID               string              `json:"variant_id"`
	StartDate               string              `json:"start_date"`
	EndDate                 string              `json:"end_date"`
	WorkingDays             float64             `json:"working_days"`
	Reason                  string              `json:"reason,omitempty"`
	Status                  string              `json:"status"`
	WorkflowID              string              `json:"workflow_id"`
	CurrentStep             int                 `json:"current_step"`
	TotalSteps              int                 `json:"total_steps"`
	WorkflowStatus          string              `json:"workflow_status"`
	History                 []ApprovalRecordDTO `json:"history"`
	ScheduledAutoApprovalAt *string             `json:"scheduled_auto_approval_at,omitempty"`
	ApprovedBy              string              `json:"approved_by,omitempty"`
	ApprovedAt              *string             `json:"approved_at,omitempty"`
	RejectedBy              string              `json:"rejected_by,omitempty"`
	RejectionReason         string              `json:"rejection_reason,omitempty"`
	CreatedAt               string              `json:"created_at"`
}

type BalanceDTO struct {
	UserID           string  `json:"user_id"`
	VariantID        string  `json:"variant_id"`
	Year             int     `json:"year"`
	TotalEntitlement float64 `json:"total_entitlement"`
	CurrentBalance   float64 `json:"current_balance"`
	UsedBalance      float64 `json:"used_balance"`
	CarryForward     float64 `json:"carry_forward"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

type TransactionDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	VariantID      string  `json:"variant_id"`
	Year           int     `json:"year"`
	Type           string  `json:"type"`
	Subtype        string  `json:"subtype,omitempty"`
	Amount         float64 `json:"amount"`
	BalanceAfter   float64 `json:"balance_after"`
	Description    string  `json:"description,omitempty"`
	LeaveRequestID string  `json:"leave_request_id,omitempty"`
	CreatedBy      string  `json:"created_by,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type LedgerSummaryDTO struct {
	UserID      string  `json:"user_id"`
	VariantID   string  `json:"variant_id"`
	Year        int     `json:"year"`
	Opening     float64 `json:"opening"`
	Granted     float64 `json:"granted"`
	Credited    float64 `json:"credited"`
	Availed     float64 `json:"availed"`
	Restored    float64 `json:"restored"`
	Lapsed      float64 `json:"lapsed"`
	Encashed    float64 `json:"encashed"`
	CarriedOver float64 `json:"carried_over"`
	Adjusted    float64 `json:"adjusted"`
	Pending     float64 `json:"pending"`
	Net         float64 `json:"net"`
	Balance     float64 `json:"balance"`
}

type InconsistencyDTO struct {
	UserID    string  `json:"user_id"`
	VariantID string  `json:"variant_id"`
	Year      int     `json:"year"`
	Balance   float64 `json:"balance"`
	LedgerNet float64 `json:"ledger_net"`
}

type ReconcileDTO struct {
	Ran                bool                `json:"ran"`
	LeaveYear          string              `json:"leave_year"`
	RosterUsed         bool                `json:"roster_used"`
	Employees          int                 `json:"employees"`
	AssignmentsCreated int                 `json:"assignments_created"`
	Processed          int                 `json:"processed"`
	Skipped            int                 `json:"skipped"`
	Errors             int                 `json:"errors"`
	Failures           []ReconcileErrorDTO `json:"failures,omitempty"`
}

type ReconcileErrorDTO struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type SweepDTO struct {
	Due      int `json:"due"`
	Advanced int `json:"advanced"`
	Approved int `json:"approved"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// VariantDTO and WorkflowDTO reuse the configuration JSON shapes so what
// is read back can be posted again unchanged.
type (
	VariantDTO  = factory.VariantJSON
	WorkflowDTO = factory.WorkflowJSON
)

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func days(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toOrganizationDTO(org leave.Organization, now time.Time) OrganizationDTO {
	dto := OrganizationDTO{
		ID:        string(org.ID),
		Name:      org.Name,
		LeaveYear: org.LeaveYear().YearFor(now).String(),
	}
	if !org.EffectiveDate.IsZero() {
		dto.EffectiveDate = org.EffectiveDate.Format(dateLayout)
	}
	return dto
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: string(e.ID), Name: e.Name, EmployeeNumber: e.EmployeeNumber}
	if e.JoiningDate != nil {
		dto.JoiningDate = e.JoiningDate.Format(dateLayout)
	}
	return dto
}

func toRequestDTO(r leave.Request) RequestDTO {
	dto := RequestDTO{
		ID:                      r.ID,
		UserID:                  string(r.UserID),
		Kind:                    string(r.Kind),
		LeaveTypeID:             string(r.LeaveTypeID),
		VariantID:               string(r.VariantID),
		StartDate:               r.StartDate.Format(dateLayout),
		EndDate:                 r.EndDate.Format(dateLayout),
		WorkingDays:             days(r.WorkingDays),
		Reason:                  r.Reason,
		Status:                  string(r.Status),
		WorkflowID:              r.WorkflowID,
		CurrentStep:             r.CurrentStep,
		TotalSteps:              len(r.WorkflowSteps),
		WorkflowStatus:          string(r.WorkflowStatus),
		History:                 make([]ApprovalRecordDTO, len(r.History)),
		ScheduledAutoApprovalAt: formatTimePtr(r.ScheduledAutoApprovalAt),
		ApprovedBy:              r.ApprovedBy,
		ApprovedAt:              formatTimePtr(r.ApprovedAt),
		RejectedBy:              r.RejectedBy,
		RejectionReason:         r.RejectionReason,
		CreatedAt:               r.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, h := range r.History {
		dto.History[i] = ApprovalRecordDTO{
			StepIndex: h.StepIndex,
			StepTitle: h.StepTitle,
			Actor:     h.Actor,
			Action:    string(h.Action),
			Comment:   h.Comment,
			Timestamp: h.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return dto
}

func toBalanceDTO(b generic.Balance) BalanceDTO {
	dto := BalanceDTO{
		UserID:           string(b.Key.UserID),
		VariantID:        string(b.Key.VariantID),
		Year:             b.Key.Year,
		TotalEntitlement: days(b.TotalEntitlement),
		CurrentBalance:   days(b.CurrentBalance),
		UsedBalance:      days(b.UsedBalance),
		CarryForward:     days(b.CarryForward),
	}
	if !b.UpdatedAt.IsZero() {
		dto.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		UserID:         string(tx.UserID),
		VariantID:      string(tx.VariantID),
		Year:           tx.Year,
		Type:           string(tx.Type),
		Subtype:        string(tx.Kind()),
		Amount:         days(tx.Amount),
		BalanceAfter:   days(tx.BalanceAfter),
		Description:    tx.Description,
		LeaveRequestID: tx.LeaveRequestID,
		CreatedBy:      tx.CreatedBy,
		CreatedAt:      tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toLedgerSummaryDTO(b generic.Balance, s leave.LedgerSummary) LedgerSummaryDTO {
	return LedgerSummaryDTO{
		UserID:      string(b.Key.UserID),
		VariantID:   string(b.Key.VariantID),
		Year:        b.Key.Year,
		Opening:     days(s.Opening),
		Granted:     days(s.Granted),
		Credited:    days(s.Credited),
		Availed:     days(s.Availed),
		Restored:    days(s.Restored),
		Lapsed:      days(s.Lapsed),
		Encashed:    days(s.Encashed),
		CarriedOver: days(s.CarriedOver),
		Adjusted:    days(s.Adjusted),
		Pending:     days(s.Pending),
		Net:         days(s.Net),
		Balance:     days(b.CurrentBalance),
	}
}

func toReconcileDTO(s leave.ReconcileSummary, ran bool) ReconcileDTO {
	dto := ReconcileDTO{
		Ran:                ran,
		LeaveYear:          s.LeaveYear.String(),
		RosterUsed:         s.RosterUsed,
		Employees:          s.Employees,
		AssignmentsCreated: s.AssignmentsCreated,
		Processed:          s.Processed,
		Skipped:            s.Skipped,
		Errors:             s.Errors,
	}
	for _, f := range s.Failures {
		dto.Failures = append(dto.Failures, ReconcileErrorDTO{UserID: string(f.UserID), Error: f.Err})
	}
	return dto
}
