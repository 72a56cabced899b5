package testutil

import (
	"context"

	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

var _ occurrence.Repository = (*InMemoryOccurrenceStore)(nil)

// InMemoryOccurrenceStore implements occurrence.Repository with the same
// unique (tenant, plan, seq) the occurrences table carries
type InMemoryOccurrenceStore struct {
	*InMemoryStore[*occurrence.BillingOccurrence]
}

func NewInMemoryOccurrenceStore() *InMemoryOccurrenceStore {
	return &InMemoryOccurrenceStore{
		InMemoryStore: NewInMemoryStore[*occurrence.BillingOccurrence](),
	}
}

func occurrenceFilterFn(ctx context.Context, o *occurrence.BillingOccurrence, filter interface{}) bool {
	f, ok := filter.(*types.OccurrenceFilter)
	if !ok {
		return false
	}
	if !visible(ctx, o.BaseModel, f.QueryFilter) {
		return false
	}
	if f.PlanID != "" && o.PlanID != f.PlanID {
		return false
	}
	if len(f.OccurrenceIDs) > 0 && !lo.Contains(f.OccurrenceIDs, o.ID) {
		return false
	}
	if len(f.OccurrenceStatus) > 0 && !lo.Contains(f.OccurrenceStatus, o.OccurrenceStatus) {
		return false
	}
	return true
}

func (s *InMemoryOccurrenceStore) Create(ctx context.Context, o *occurrence.BillingOccurrence) error {
	if o == nil {
		return ierr.NewError("occurrence cannot be nil").Mark(ierr.ErrValidation)
	}
	dup := s.Find(func(existing *occurrence.BillingOccurrence) bool {
		return existing.TenantID == o.TenantID && existing.PlanID == o.PlanID && existing.Seq == o.Seq
	})
	if len(dup) > 0 {
		return ierr.NewError("occurrence seq already exists").
			WithHintf("Occurrence %d of plan %s already exists", o.Seq, o.PlanID).
			WithReportableDetails(map[string]any{
				"plan_id": o.PlanID,
				"seq":     o.Seq,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, o.ID, clone(o))
}

func (s *InMemoryOccurrenceStore) Get(ctx context.Context, id string) (*occurrence.BillingOccurrence, error) {
	o, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || o.TenantID != types.GetTenantID(ctx) || o.Status == types.StatusDeleted {
		return nil, ierr.NewError("occurrence not found").
			WithHintf("Billing occurrence %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return clone(o), nil
}

func (s *InMemoryOccurrenceStore) Update(ctx context.Context, o *occurrence.BillingOccurrence, from types.OccurrenceStatus) error {
	return s.Modify(ctx, o.ID, func(existing *occurrence.BillingOccurrence) (*occurrence.BillingOccurrence, error) {
		if existing.TenantID != types.GetTenantID(ctx) || existing.Status == types.StatusDeleted {
			return nil, ierr.NewError("occurrence not found").
				WithHintf("Billing occurrence %s was not found", o.ID).
				Mark(ierr.ErrNotFound)
		}
		if existing.OccurrenceStatus != from {
			return nil, ierr.NewError("occurrence status changed").
				WithHintf("Billing occurrence %s is no longer %s", o.ID, from).
				WithReportableDetails(map[string]any{
					"expected": from,
					"actual":   existing.OccurrenceStatus,
				}).
				Mark(ierr.ErrInvalidState)
		}
		return clone(o), nil
	})
}

// List returns occurrences ordered by plan and seq
func (s *InMemoryOccurrenceStore) List(ctx context.Context, filter *types.OccurrenceFilter) ([]*occurrence.BillingOccurrence, error) {
	if filter == nil {
		filter = types.NewNoLimitOccurrenceFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, occurrenceFilterFn, func(a, b *occurrence.BillingOccurrence) bool {
		if a.PlanID != b.PlanID {
			return a.PlanID < b.PlanID
		}
		return a.Seq < b.Seq
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(o *occurrence.BillingOccurrence, _ int) *occurrence.BillingOccurrence { return clone(o) }), nil
}

func (s *InMemoryOccurrenceStore) Count(ctx context.Context, filter *types.OccurrenceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitOccurrenceFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, occurrenceFilterFn)
}

func (s *InMemoryOccurrenceStore) GetMaxSeq(ctx context.Context, planID string) (int, error) {
	rows := s.Find(func(o *occurrence.BillingOccurrence) bool {
		return o.TenantID == types.GetTenantID(ctx) && o.PlanID == planID
	})
	return lo.Max(lo.Map(rows, func(o *occurrence.BillingOccurrence, _ int) int { return o.Seq })), nil
}
