// Package memory provides an in-memory leave.TxStore for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is safe for concurrent use. Every public method takes the store
// lock; WithTx holds it for the whole callback.
type Memory struct {
	mu sync.Mutex
	d  *data
}

var _ leave.TxStore = (*Memory)(nil)

func New() *Memory {
	return &Memory{d: newData()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.d = newData()
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendTransaction(ctx context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.AppendTransaction(ctx, tx)
}

func (m *Memory) ListTransactions(ctx context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListTransactions(ctx, f)
}

func (m *Memory) PurgeTransactions(ctx context.Context, ids []generic.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.PurgeTransactions(ctx, ids)
}

func (m *Memory) GetBalance(ctx context.Context, key generic.BalanceKey) (generic.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetBalance(ctx, key)
}

func (m *Memory) SaveBalance(ctx context.Context, b generic.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveBalance(ctx, b)
}

func (m *Memory) ListBalances(ctx context.Context, f generic.BalanceFilter) ([]generic.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListBalances(ctx, f)
}

func (m *Memory) GetOrganization(ctx context.Context, id generic.OrgID) (leave.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetOrganization(ctx, id)
}

func (m *Memory) SaveOrganization(ctx context.Context, org leave.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveOrganization(ctx, org)
}

func (m *Memory) GetVariant(ctx context.Context, orgID generic.OrgID, id generic.VariantID) (leave.LeaveVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetVariant(ctx, orgID, id)
}

func (m *Memory) VariantForLeaveType(ctx context.Context, orgID generic.OrgID, lt generic.LeaveTypeID) (leave.LeaveVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.VariantForLeaveType(ctx, orgID, lt)
}

func (m *Memory) ListVariants(ctx context.Context, orgID generic.OrgID) ([]leave.LeaveVariant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListVariants(ctx, orgID)
}

func (m *Memory) SaveVariant(ctx context.Context, v leave.LeaveVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveVariant(ctx, v)
}

func (m *Memory) GetWorkflow(ctx context.Context, orgID generic.OrgID, id string) (leave.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetWorkflow(ctx, orgID, id)
}

func (m *Memory) ListWorkflows(ctx context.Context, orgID generic.OrgID) ([]leave.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListWorkflows(ctx, orgID)
}

func (m *Memory) SaveWorkflow(ctx context.Context, w leave.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveWorkflow(ctx, w)
}

func (m *Memory) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetRequest(ctx, id)
}

func (m *Memory) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListRequests(ctx, f)
}

func (m *Memory) SaveRequest(ctx context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveRequest(ctx, r)
}

func (m *Memory) GetEmployee(ctx context.Context, orgID generic.OrgID, id generic.UserID) (leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetEmployee(ctx, orgID, id)
}

func (m *Memory) ListEmployees(ctx context.Context, orgID generic.OrgID) ([]leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListEmployees(ctx, orgID)
}

func (m *Memory) SaveEmployee(ctx context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveEmployee(ctx, e)
}

func (m *Memory) ListAssignments(ctx context.Context, orgID generic.OrgID) ([]leave.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListAssignments(ctx, orgID)
}

func (m *Memory) SaveAssignment(ctx context.Context, a leave.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveAssignment(ctx, a)
}

// =============================================================================
// UNLOCKED STATE - also the transactional view handed to WithTx callbacks
// =============================================================================

type variantKey struct {
	OrgID generic.OrgID
	ID    generic.VariantID
}

type workflowKey struct {
	OrgID generic.OrgID
	ID    string
}

type employeeKey struct {
	OrgID generic.OrgID
	ID    generic.UserID
}

type data struct {
	transactions []generic.Transaction // insertion order
	balances     map[generic.BalanceKey]generic.Balance
	orgs         map[generic.OrgID]leave.Organization
	variants     map[variantKey]leave.LeaveVariant
	workflows    map[workflowKey]leave.Workflow
	requests     map[string]leave.Request
	employees    map[employeeKey]leave.Employee
	assignments  []leave.Assignment
}

func newData() *data {
	return &data{
		balances:  make(map[generic.BalanceKey]generic.Balance),
		orgs:      make(map[generic.OrgID]leave.Organization),
		variants:  make(map[variantKey]leave.LeaveVariant),
		workflows: make(map[workflowKey]leave.Workflow),
		requests:  make(map[string]leave.Request),
		employees: make(map[employeeKey]leave.Employee),
	}
}

func (d *data) clone() *data {
	c := newData()
	c.transactions = append([]generic.Transaction(nil), d.transactions...)
	c.assignments = append([]leave.Assignment(nil), d.assignments...)
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	for k, v := range d.variants {
		c.variants[k] = v
	}
	for k, v := range d.workflows {
		c.workflows[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = cloneRequest(v)
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	return c
}

func cloneRequest(r leave.Request) leave.Request {
	r.WorkflowSteps = append([]leave.WorkflowStep(nil), r.WorkflowSteps...)
	r.History = append([]leave.ApprovalRecord(nil), r.History...)
	if r.ScheduledAutoApprovalAt != nil {
		t := *r.ScheduledAutoApprovalAt
		r.ScheduledAutoApprovalAt = &t
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		r.ApprovedAt = &t
	}
	return r
}

func (d *data) AppendTransaction(_ context.Context, tx generic.Transaction) error {
	d.transactions = append(d.transactions, tx)
	return nil
}

func (d *data) ListTransactions(_ context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	var out []generic.Transaction
	for _, tx := range d.transactions {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (d *data) PurgeTransactions(_ context.Context, ids []generic.TransactionID) error {
	drop := make(map[generic.TransactionID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for _, tx := range d.transactions {
		if drop[tx.ID] && tx.Type != generic.TxPendingDeduction {
			return fmt.Errorf("%w: cannot purge %s transaction %s", generic.ErrInvalidInput, tx.Type, tx.ID)
		}
	}
	kept := d.transactions[:0:0]
	for _, tx := range d.transactions {
		if !drop[tx.ID] {
			kept = append(kept, tx)
		}
	}
	d.transactions = kept
	return nil
}

func (d *data) GetBalance(_ context.Context, key generic.BalanceKey) (generic.Balance, error) {
	b, ok := d.balances[key]
	if !ok {
		return generic.Balance{}, generic.ErrBalanceNotFound
	}
	return b, nil
}

func (d *data) SaveBalance(_ context.Context, b generic.Balance) error {
	d.balances[b.Key] = b
	return nil
}

func (d *data) ListBalances(_ context.Context, f generic.BalanceFilter) ([]generic.Balance, error) {
	var out []generic.Balance
	for _, b := range d.balances {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.VariantID != b.VariantID {
			return a.VariantID < b.VariantID
		}
		return a.Year < b.Year
	})
	return out, nil
}

func (d *data) GetOrganization(_ context.Context, id generic.OrgID) (leave.Organization, error) {
	org, ok := d.orgs[id]
	if !ok {
		return leave.Organization{}, generic.ErrOrganizationNotFound
	}
	return org, nil
}

func (d *data) SaveOrganization(_ context.Context, org leave.Organization) error {
	d.orgs[org.ID] = org
	return nil
}

func (d *data) GetVariant(_ context.Context, orgID generic.OrgID, id generic.VariantID) (leave.LeaveVariant, error) {
	v, ok := d.variants[variantKey{orgID, id}]
	if !ok {
		return leave.LeaveVariant{}, fmt.Errorf("%w: %s", generic.ErrVariantNotFound, id)
	}
	return v, nil
}

func (d *data) VariantForLeaveType(ctx context.Context, orgID generic.OrgID, lt generic.LeaveTypeID) (leave.LeaveVariant, error) {
	all, _ := d.ListVariants(ctx, orgID)
	for _, v := range all {
		if v.LeaveTypeID == lt {
			return v, nil
		}
	}
	return leave.LeaveVariant{}, fmt.Errorf("%w: no variant for leave type %s", generic.ErrVariantNotFound, lt)
}

func (d *data) ListVariants(_ context.Context, orgID generic.OrgID) ([]leave.LeaveVariant, error) {
	var out []leave.LeaveVariant
	for k, v := range d.variants {
		if k.OrgID == orgID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SaveVariant(_ context.Context, v leave.LeaveVariant) error {
	d.variants[variantKey{v.OrgID, v.ID}] = v
	return nil
}

func (d *data) GetWorkflow(_ context.Context, orgID generic.OrgID, id string) (leave.Workflow, error) {
	w, ok := d.workflows[workflowKey{orgID, id}]
	if !ok {
		return leave.Workflow{}, fmt.Errorf("%w: %s", generic.ErrWorkflowNotFound, id)
	}
	return w, nil
}

func (d *data) ListWorkflows(_ context.Context, orgID generic.OrgID) ([]leave.Workflow, error) {
	var out []leave.Workflow
	for k, w := range d.workflows {
		if k.OrgID == orgID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SaveWorkflow(_ context.Context, w leave.Workflow) error {
	d.workflows[workflowKey{w.OrgID, w.ID}] = w
	return nil
}

func (d *data) GetRequest(_ context.Context, id string) (leave.Request, error) {
	r, ok := d.requests[id]
	if !ok {
		return leave.Request{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return cloneRequest(r), nil
}

func (d *data) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var out []leave.Request
	for _, r := range d.requests {
		if f.Matches(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *data) SaveRequest(_ context.Context, r leave.Request) error {
	d.requests[r.ID] = cloneRequest(r)
	return nil
}

func (d *data) GetEmployee(_ context.Context, orgID generic.OrgID, id generic.UserID) (leave.Employee, error) {
	e, ok := d.employees[employeeKey{orgID, id}]
	if !ok {
		return leave.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, nil
}

func (d *data) ListEmployees(_ context.Context, orgID generic.OrgID) ([]leave.Employee, error) {
	var out []leave.Employee
	for k, e := range d.employees {
		if k.OrgID == orgID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SaveEmployee(_ context.Context, e leave.Employee) error {
	d.employees[employeeKey{e.OrgID, e.ID}] = e
	return nil
}

func (d *data) ListAssignments(_ context.Context, orgID generic.OrgID) ([]leave.Assignment, error) {
	var out []leave.Assignment
	for _, a := range d.assignments {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *data) SaveAssignment(_ context.Context, a leave.Assignment) error {
	for i, existing := range d.assignments {
		if existing.ID == a.ID {
			d.assignments[i] = a
			return nil
		}
	}
	d.assignments = append(d.assignments, a)
	return nil
}
