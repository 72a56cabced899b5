package testutil

import (
	"context"

	"github.com/flexprice/billing-engine/internal/domain/invoice"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok {
		return false
	}
	if !visible(ctx, inv.BaseModel, f.QueryFilter) {
		return false
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.CustomerID != "" && inv.Links.CustomerID != f.CustomerID {
		return false
	}
	if f.BillingPlanID != "" && inv.Links.BillingPlanID != f.BillingPlanID {
		return false
	}
	if f.InvoiceType != "" && inv.InvoiceType != f.InvoiceType {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && inv.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !inv.CreatedAt.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	dup := s.Find(func(existing *invoice.Invoice) bool {
		return existing.TenantID == inv.TenantID &&
			existing.Code == inv.Code &&
			existing.Status != types.StatusDeleted
	})
	if len(dup) > 0 {
		return ierr.NewError("invoice code already exists").
			WithHintf("An invoice with code %s already exists", inv.Code).
			WithReportableDetails(map[string]any{"code": inv.Code}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, clone(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.TenantID != types.GetTenantID(ctx) || inv.Status == types.StatusDeleted {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return clone(inv), nil
}

func (s *InMemoryInvoiceStore) GetByCode(ctx context.Context, code string) (*invoice.Invoice, error) {
	found := s.Find(func(inv *invoice.Invoice) bool {
		return inv.TenantID == types.GetTenantID(ctx) && inv.Code == code && inv.Status == types.StatusPublished
	})
	if len(found) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice with code %s was not found", code).
			Mark(ierr.ErrNotFound)
	}
	return clone(found[0]), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if _, err := s.Get(ctx, inv.ID); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, inv.ID, clone(inv))
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, inv *invoice.Invoice) error {
	existing, err := s.Get(ctx, inv.ID)
	if err != nil {
		return err
	}
	existing.Status = types.StatusDeleted
	existing.Touch(ctx)
	return s.InMemoryStore.Update(ctx, inv.ID, existing)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, func(a, b *invoice.Invoice) bool {
		return byCreatedAt(a.CreatedAt, b.CreatedAt, a.ID, b.ID, filter)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice { return clone(inv) }), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}
