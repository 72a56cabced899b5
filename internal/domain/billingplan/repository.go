package billingplan

import (
	"context"

	"github.com/flexprice/billing-engine/internal/types"
)

// Repository defines the interface for billing plan persistence. Every call
// is scoped to the tenant in ctx except ListActiveTenants.
type Repository interface {
	// Create inserts a plan; a duplicate code is ierr.ErrAlreadyExists
	Create(ctx context.Context, plan *BillingPlan) error
	Get(ctx context.Context, id string) (*BillingPlan, error)
	GetByCode(ctx context.Context, code string) (*BillingPlan, error)
	Update(ctx context.Context, plan *BillingPlan) error
	// UpdateRunPointers writes only LastRunAt, NextDueAt and the audit
	// columns, and only while the stored plan is still active. A plan that
	// left active since it was read is ierr.ErrInvalidState.
	UpdateRunPointers(ctx context.Context, plan *BillingPlan) error
	// Delete soft deletes the plan
	Delete(ctx context.Context, plan *BillingPlan) error
	List(ctx context.Context, filter *types.BillingPlanFilter) ([]*BillingPlan, error)
	Count(ctx context.Context, filter *types.BillingPlanFilter) (int, error)

	// ListActiveTenants returns every tenant that has at least one active plan
	ListActiveTenants(ctx context.Context) ([]string, error)
}
