package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ORGANIZATIONS
// =============================================================================

func (s *queries) GetOrganization(ctx context.Context, id generic.OrgID) (leave.Organization, error) {
	var (
		org       leave.Organization
		effective sql.NullString
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, effective_date FROM organizations WHERE id = ?`, id,
	).Scan(&org.ID, &org.Name, &effective)
	if errors.Is(err, sql.ErrNoRows) {
		return org, fmt.Errorf("%w: %s", generic.ErrOrganizationNotFound, id)
	}
	if err != nil {
		return org, err
	}
	if t := parseNullTime(effective); t != nil {
		org.EffectiveDate = *t
	}
	return org, nil
}

func (s *queries) SaveOrganization(ctx context.Context, org leave.Organization) error {
	var effective *time.Time
	if !org.EffectiveDate.IsZero() {
		effective = &org.EffectiveDate
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO organizations (id, name, effective_date) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			effective_date = excluded.effective_date`,
		org.ID, org.Name, nullTime(effective),
	)
	return err
}

// =============================================================================
// LEAVE VARIANTS
// =============================================================================

const variantColumns = `id, org_id, leave_type_id, name, kind, paid_days_in_year, grant_leaves,
	grant_frequency, pro_rata_calculation, onboarding_slabs_json,
	deduction_before, deduction_after, deduction_not_allowed`

func (s *queries) GetVariant(ctx context.Context, orgID generic.OrgID, id generic.VariantID) (leave.LeaveVariant, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+variantColumns+` FROM leave_variants WHERE org_id = ? AND id = ?`, orgID, id)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("%w: %s", generic.ErrVariantNotFound, id)
	}
	return v, err
}

func (s *queries) VariantForLeaveType(ctx context.Context, orgID generic.OrgID, lt generic.LeaveTypeID) (leave.LeaveVariant, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+variantColumns+` FROM leave_variants
		 WHERE org_id = ? AND leave_type_id = ? ORDER BY id LIMIT 1`, orgID, lt)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("%w: no variant for leave type %s", generic.ErrVariantNotFound, lt)
	}
	return v, err
}

func (s *queries) ListVariants(ctx context.Context, orgID generic.OrgID) ([]leave.LeaveVariant, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+variantColumns+` FROM leave_variants WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *queries) SaveVariant(ctx context.Context, v leave.LeaveVariant) error {
	slabs, err := json.Marshal(v.OnboardingSlabs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO leave_variants (`+variantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, id) DO UPDATE SET
			leave_type_id = excluded.leave_type_id,
			name = excluded.name,
			kind = excluded.kind,
			paid_days_in_year = excluded.paid_days_in_year,
			grant_leaves = excluded.grant_leaves,
			grant_frequency = excluded.grant_frequency,
			pro_rata_calculation = excluded.pro_rata_calculation,
			onboarding_slabs_json = excluded.onboarding_slabs_json,
			deduction_before = excluded.deduction_before,
			deduction_after = excluded.deduction_after,
			deduction_not_allowed = excluded.deduction_not_allowed`,
		v.ID, v.OrgID, v.LeaveTypeID, v.Name, v.Kind, v.PaidDaysInYear.String(),
		v.GrantLeaves, v.GrantFrequency, v.ProRataCalculation, string(slabs),
		v.DeductionBefore, v.DeductionAfter, v.DeductionNotAllowed,
	)
	return err
}

func scanVariant(row scanner) (leave.LeaveVariant, error) {
	var (
		v         leave.LeaveVariant
		paidDays  string
		slabsJSON string
	)
	err := row.Scan(
		&v.ID, &v.OrgID, &v.LeaveTypeID, &v.Name, &v.Kind, &paidDays,
		&v.GrantLeaves, &v.GrantFrequency, &v.ProRataCalculation, &slabsJSON,
		&v.DeductionBefore, &v.DeductionAfter, &v.DeductionNotAllowed,
	)
	if err != nil {
		return v, err
	}
	if v.PaidDaysInYear, err = parseDecimal("leave_variants.paid_days_in_year", string(v.ID), paidDays); err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(slabsJSON), &v.OnboardingSlabs); err != nil {
		return v, fmt.Errorf("variant %s: bad onboarding slabs: %w", v.ID, err)
	}
	return v, nil
}

// =============================================================================
// WORKFLOWS
// =============================================================================

func (s *queries) GetWorkflow(ctx context.Context, orgID generic.OrgID, id string) (leave.Workflow, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, org_id, name, process, sub_processes_json, steps_json
		 FROM workflows WHERE org_id = ? AND id = ?`, orgID, id)
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return w, fmt.Errorf("%w: %s", generic.ErrWorkflowNotFound, id)
	}
	return w, err
}

func (s *queries) ListWorkflows(ctx context.Context, orgID generic.OrgID) ([]leave.Workflow, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, org_id, name, process, sub_processes_json, steps_json
		 FROM workflows WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var out []leave.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *queries) SaveWorkflow(ctx context.Context, w leave.Workflow) error {
	subs, err := json.Marshal(w.SubProcesses)
	if err != nil {
		return err
	}
	steps, err := json.Marshal(w.Steps)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO workflows (id, org_id, name, process, sub_processes_json, steps_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, id) DO UPDATE SET
			name = excluded.name,
			process = excluded.process,
			sub_processes_json = excluded.sub_processes_json,
			steps_json = excluded.steps_json`,
		w.ID, w.OrgID, w.Name, w.Process, string(subs), string(steps),
	)
	return err
}

func scanWorkflow(row scanner) (leave.Workflow, error) {
	var (
		w           leave.Workflow
		subs, steps string
	)
	if err := row.Scan(&w.ID, &w.OrgID, &w.Name, &w.Process, &subs, &steps); err != nil {
		return w, err
	}
	if err := json.Unmarshal([]byte(subs), &w.SubProcesses); err != nil {
		return w, fmt.Errorf("workflow %s: bad sub-processes: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(steps), &w.Steps); err != nil {
		return w, fmt.Errorf("workflow %s: bad steps: %w", w.ID, err)
	}
	return w, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, org_id, user_id, kind, leave_type_id, variant_id, start_date, end_date,
	working_days, reason, status, workflow_id, workflow_steps_json, current_step, workflow_status,
	history_json, scheduled_auto_approval_at, approved_by, approved_at, rejected_by,
	rejection_reason, created_at, updated_at`

func (s *queries) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, err
}

func (s *queries) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var due any
	if f.DueBy != nil {
		due = formatTime(*f.DueBy)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE (? = '' OR org_id = ?) AND (? = '' OR user_id = ?)
		   AND (? = '' OR kind = ?) AND (? = '' OR status = ?)
		   AND (? IS NULL OR (scheduled_auto_approval_at IS NOT NULL AND scheduled_auto_approval_at <= ?))
		 ORDER BY created_at, id`,
		f.OrgID, f.OrgID, f.UserID, f.UserID, f.Kind, f.Kind, f.Status, f.Status, due, due,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *queries) SaveRequest(ctx context.Context, r leave.Request) error {
	steps, err := json.Marshal(r.WorkflowSteps)
	if err != nil {
		return err
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			workflow_steps_json = excluded.workflow_steps_json,
			current_step = excluded.current_step,
			workflow_status = excluded.workflow_status,
			history_json = excluded.history_json,
			scheduled_auto_approval_at = excluded.scheduled_auto_approval_at,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejected_by = excluded.rejected_by,
			rejection_reason = excluded.rejection_reason,
			updated_at = excluded.updated_at`,
		r.ID, r.OrgID, r.UserID, r.Kind, r.LeaveTypeID, r.VariantID,
		formatTime(r.StartDate), formatTime(r.EndDate), r.WorkingDays.String(), r.Reason,
		r.Status, r.WorkflowID, string(steps), r.CurrentStep, r.WorkflowStatus,
		string(history), nullTime(r.ScheduledAutoApprovalAt), r.ApprovedBy,
		nullTime(r.ApprovedAt), r.RejectedBy, r.RejectionReason,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return err
}

func scanRequest(row scanner) (leave.Request, error) {
	var (
		r                       leave.Request
		start, end, workingDays string
		steps, history          string
		scheduled, approvedAt   sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(
		&r.ID, &r.OrgID, &r.UserID, &r.Kind, &r.LeaveTypeID, &r.VariantID,
		&start, &end, &workingDays, &r.Reason, &r.Status, &r.WorkflowID,
		&steps, &r.CurrentStep, &r.WorkflowStatus, &history, &scheduled,
		&r.ApprovedBy, &approvedAt, &r.RejectedBy, &r.RejectionReason,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}
	r.StartDate = parseTime(start)
	r.EndDate = parseTime(end)
	if r.WorkingDays, err = parseDecimal("requests.working_days", r.ID, workingDays); err != nil {
		return r, err
	}
	r.ScheduledAutoApprovalAt = parseNullTime(scheduled)
	r.ApprovedAt = parseNullTime(approvedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(steps), &r.WorkflowSteps); err != nil {
		return r, fmt.Errorf("request %s: bad workflow steps: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(history), &r.History); err != nil {
		return r, fmt.Errorf("request %s: bad approval history: %w", r.ID, err)
	}
	return r, nil
}

// =============================================================================
// EMPLOYEES & ASSIGNMENTS
// =============================================================================

func (s *queries) GetEmployee(ctx context.Context, orgID generic.OrgID, id generic.UserID) (leave.Employee, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, org_id, name, employee_number, joining_date FROM employees WHERE org_id = ? AND id = ?`,
		orgID, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, err
}

func (s *queries) ListEmployees(ctx context.Context, orgID generic.OrgID) ([]leave.Employee, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, org_id, name, employee_number, joining_date FROM employees WHERE org_id = ? ORDER BY id`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *queries) SaveEmployee(ctx context.Context, e leave.Employee) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, org_id, name, employee_number, joining_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id, id) DO UPDATE SET
			name = excluded.name,
			employee_number = excluded.employee_number,
			joining_date = excluded.joining_date`,
		e.ID, e.OrgID, e.Name, e.EmployeeNumber, nullTime(e.JoiningDate),
	)
	return err
}

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		e       leave.Employee
		joining sql.NullString
	)
	if err := row.Scan(&e.ID, &e.OrgID, &e.Name, &e.EmployeeNumber, &joining); err != nil {
		return e, err
	}
	e.JoiningDate = parseNullTime(joining)
	return e, nil
}

func (s *queries) ListAssignments(ctx context.Context, orgID generic.OrgID) ([]leave.Assignment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, org_id, user_id, variant_id, assignment_type FROM assignments
		 WHERE org_id = ? ORDER BY user_id, variant_id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []leave.Assignment
	for rows.Next() {
		var a leave.Assignment
		if err := rows.Scan(&a.ID, &a.OrgID, &a.UserID, &a.VariantID, &a.Type); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *queries) SaveAssignment(ctx context.Context, a leave.Assignment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assignments (id, org_id, user_id, variant_id, assignment_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET assignment_type = excluded.assignment_type`,
		a.ID, a.OrgID, a.UserID, a.VariantID, a.Type,
	)
	return err
}
