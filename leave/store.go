package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// Store is everything the engine persists. Lookups return the matching
// generic.Err*NotFound sentinel when nothing exists.
type Store interface {
	generic.Store

	GetOrganization(ctx context.Context, id generic.OrgID) (Organization, error)
	SaveOrganization(ctx context.Context, org Organization) error

	GetVariant(ctx context.Context, orgID generic.OrgID, id generic.VariantID) (LeaveVariant, error)
	// VariantForLeaveType resolves the variant configured for a leave type.
	VariantForLeaveType(ctx context.Context, orgID generic.OrgID, leaveType generic.LeaveTypeID) (LeaveVariant, error)
	ListVariants(ctx context.Context, orgID generic.OrgID) ([]LeaveVariant, error)
	SaveVariant(ctx context.Context, v LeaveVariant) error

	GetWorkflow(ctx context.Context, orgID generic.OrgID, id string) (Workflow, error)
	ListWorkflows(ctx context.Context, orgID generic.OrgID) ([]Workflow, error)
	SaveWorkflow(ctx context.Context, w Workflow) error

	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	SaveRequest(ctx context.Context, r Request) error

	GetEmployee(ctx context.Context, orgID generic.OrgID, id generic.UserID) (Employee, error)
	ListEmployees(ctx context.Context, orgID generic.OrgID) ([]Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error

	ListAssignments(ctx context.Context, orgID generic.OrgID) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a Assignment) error
}

// TxStore runs fn inside one store transaction. If fn returns an error
// every write made through the Store passed to fn is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
