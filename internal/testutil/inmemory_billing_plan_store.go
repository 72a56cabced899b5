package testutil

import (
	"context"
	"slices"

	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

var _ billingplan.Repository = (*InMemoryBillingPlanStore)(nil)

// InMemoryBillingPlanStore implements billingplan.Repository. Codes are
// unique per tenant among rows that are not deleted.
type InMemoryBillingPlanStore struct {
	*InMemoryStore[*billingplan.BillingPlan]
}

func NewInMemoryBillingPlanStore() *InMemoryBillingPlanStore {
	return &InMemoryBillingPlanStore{
		InMemoryStore: NewInMemoryStore[*billingplan.BillingPlan](),
	}
}

func billingPlanFilterFn(ctx context.Context, p *billingplan.BillingPlan, filter interface{}) bool {
	f, ok := filter.(*types.BillingPlanFilter)
	if !ok {
		return false
	}
	if !visible(ctx, p.BaseModel, f.QueryFilter) {
		return false
	}
	if len(f.PlanIDs) > 0 && !lo.Contains(f.PlanIDs, p.ID) {
		return false
	}
	if len(f.PlanStatus) > 0 && !lo.Contains(f.PlanStatus, p.PlanStatus) {
		return false
	}
	if f.ContractID != "" && p.Source.ContractID != f.ContractID {
		return false
	}
	if f.CustomerID != "" && p.Source.Snapshot.CustomerID != f.CustomerID {
		return false
	}
	return true
}

func (s *InMemoryBillingPlanStore) Create(ctx context.Context, p *billingplan.BillingPlan) error {
	if p == nil {
		return ierr.NewError("billing plan cannot be nil").Mark(ierr.ErrValidation)
	}
	dup := s.Find(func(existing *billingplan.BillingPlan) bool {
		return existing.TenantID == p.TenantID &&
			existing.Code == p.Code &&
			existing.Status != types.StatusDeleted
	})
	if len(dup) > 0 {
		return ierr.NewError("billing plan code already exists").
			WithHintf("A billing plan with code %s already exists", p.Code).
			WithReportableDetails(map[string]any{"code": p.Code}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, p.ID, clone(p))
}

func (s *InMemoryBillingPlanStore) Get(ctx context.Context, id string) (*billingplan.BillingPlan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.TenantID != types.GetTenantID(ctx) || p.Status == types.StatusDeleted {
		return nil, ierr.NewError("billing plan not found").
			WithHintf("Billing plan %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return clone(p), nil
}

func (s *InMemoryBillingPlanStore) GetByCode(ctx context.Context, code string) (*billingplan.BillingPlan, error) {
	found := s.Find(func(p *billingplan.BillingPlan) bool {
		return p.TenantID == types.GetTenantID(ctx) && p.Code == code && p.Status == types.StatusPublished
	})
	if len(found) == 0 {
		return nil, ierr.NewError("billing plan not found").
			WithHintf("Billing plan with code %s was not found", code).
			Mark(ierr.ErrNotFound)
	}
	return clone(found[0]), nil
}

func (s *InMemoryBillingPlanStore) Update(ctx context.Context, p *billingplan.BillingPlan) error {
	if _, err := s.Get(ctx, p.ID); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, p.ID, clone(p))
}

func (s *InMemoryBillingPlanStore) UpdateRunPointers(ctx context.Context, p *billingplan.BillingPlan) error {
	return s.Modify(ctx, p.ID, func(existing *billingplan.BillingPlan) (*billingplan.BillingPlan, error) {
		if existing.TenantID != types.GetTenantID(ctx) || existing.Status != types.StatusPublished {
			return nil, ierr.NewError("billing plan not found").
				WithHintf("Billing plan %s was not found", p.ID).
				Mark(ierr.ErrNotFound)
		}
		if existing.PlanStatus != types.PlanStatusActive {
			return nil, ierr.NewError("billing plan is no longer active").
				WithHintf("Billing plan %s is %s", p.ID, existing.PlanStatus).
				Mark(ierr.ErrInvalidState)
		}
		next := clone(existing)
		next.LastRunAt = clone(p.LastRunAt)
		next.NextDueAt = clone(p.NextDueAt)
		next.UpdatedAt = p.UpdatedAt
		next.UpdatedBy = p.UpdatedBy
		return next, nil
	})
}

func (s *InMemoryBillingPlanStore) Delete(ctx context.Context, p *billingplan.BillingPlan) error {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	existing.Status = types.StatusDeleted
	existing.Touch(ctx)
	return s.InMemoryStore.Update(ctx, p.ID, existing)
}

func (s *InMemoryBillingPlanStore) List(ctx context.Context, filter *types.BillingPlanFilter) ([]*billingplan.BillingPlan, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingPlanFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, billingPlanFilterFn, func(a, b *billingplan.BillingPlan) bool {
		return byCreatedAt(a.CreatedAt, b.CreatedAt, a.ID, b.ID, filter)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *billingplan.BillingPlan, _ int) *billingplan.BillingPlan { return clone(p) }), nil
}

func (s *InMemoryBillingPlanStore) Count(ctx context.Context, filter *types.BillingPlanFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingPlanFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, billingPlanFilterFn)
}

func (s *InMemoryBillingPlanStore) ListActiveTenants(ctx context.Context) ([]string, error) {
	active := s.Find(func(p *billingplan.BillingPlan) bool {
		return p.Status == types.StatusPublished && p.PlanStatus == types.PlanStatusActive
	})
	tenants := lo.Uniq(lo.Map(active, func(p *billingplan.BillingPlan, _ int) string { return p.TenantID }))
	slices.Sort(tenants)
	return tenants, nil
}
