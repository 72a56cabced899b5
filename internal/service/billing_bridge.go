package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingBridgeService turns billing occurrences into invoices
type BillingBridgeService interface {
	InvoiceOccurrences(ctx context.Context, req dto.InvoiceOccurrencesRequest) (*dto.InvoiceResponse, error)
}

type billingBridgeService struct {
	ServiceParams
	invoices *invoiceService
}

func NewBillingBridgeService(params ServiceParams) BillingBridgeService {
	return &billingBridgeService{
		ServiceParams: params,
		invoices:      &invoiceService{ServiceParams: params},
	}
}

func (s *billingBridgeService) InvoiceOccurrences(ctx context.Context, req dto.InvoiceOccurrencesRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PlanID == "" {
		return nil, ierr.NewError("billing plan ID is required").
			WithHint("Please provide a valid billing plan ID").
			Mark(ierr.ErrValidation)
	}

	var (
		inv      *invoice.Invoice
		invoiced []*occurrence.BillingOccurrence
	)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		plan, err := s.BillingPlanRepo.Get(ctx, req.PlanID)
		if err != nil {
			return err
		}

		occs, err := s.loadPending(ctx, plan.ID, req.OccurrenceIDs)
		if err != nil {
			return err
		}

		inv, err = s.buildInvoice(ctx, plan, occs, req)
		if err != nil {
			return err
		}

		// The occurrences are claimed before the invoice is written. A
		// concurrent run that claimed one first makes this run fail without
		// leaving a second draft behind.
		for _, o := range occs {
			if _, err := o.TransitionTo(types.OccurrenceStatusInvoiced, lo.ToPtr(inv.ID)); err != nil {
				return err
			}
			o.Touch(ctx)
			if err := s.OccurrenceRepo.Update(ctx, o, types.OccurrenceStatusPending); err != nil {
				if ierr.IsInvalidState(err) {
					return ierr.WithError(err).
						WithHint("The billing occurrences were invoiced by a concurrent request").
						WithReportableDetails(map[string]any{
							"plan_id":       plan.ID,
							"occurrence_id": o.ID,
						}).
						Mark(ierr.ErrInvalidState)
				}
				return err
			}
		}

		if err := s.invoices.create(ctx, inv); err != nil {
			return err
		}
		invoiced = occs
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoiced billing occurrences",
		"plan_id", req.PlanID,
		"invoice_id", inv.ID,
		"occurrences", len(invoiced),
		"grand_total", inv.Totals.GrandTotal.String(),
	)
	s.publishWebhookEvent(ctx, types.WebhookEventInvoiceCreated, invoiceEvent(inv))
	s.publishWebhookEvent(ctx, types.WebhookEventBillingOccurrenceStatusUpdated,
		occurrenceEvent(req.PlanID, inv.TenantID, invoiced))

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

// loadPending returns the requested occurrences in seq order, or every
// pending one of the plan when ids is empty
func (s *billingBridgeService) loadPending(ctx context.Context, planID string, ids []string) ([]*occurrence.BillingOccurrence, error) {
	filter := types.NewNoLimitOccurrenceFilter()
	filter.PlanID = planID

	if len(ids) == 0 {
		filter.OccurrenceStatus = []types.OccurrenceStatus{types.OccurrenceStatusPending}
	} else {
		filter.OccurrenceIDs = lo.Uniq(ids)
	}

	occs, err := s.OccurrenceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		found := lo.Map(occs, func(o *occurrence.BillingOccurrence, _ int) string { return o.ID })
		if missing, _ := lo.Difference(filter.OccurrenceIDs, found); len(missing) > 0 {
			return nil, ierr.NewError("billing occurrences not found").
				WithHint("Some occurrences do not belong to this billing plan").
				WithReportableDetails(map[string]any{
					"plan_id":        planID,
					"occurrence_ids": missing,
				}).
				Mark(ierr.ErrNotFound)
		}
		notPending := lo.Filter(occs, func(o *occurrence.BillingOccurrence, _ int) bool { return !o.IsPending() })
		if len(notPending) > 0 {
			return nil, ierr.NewError("billing occurrences are not pending").
				WithHint("Only pending occurrences can be invoiced").
				WithReportableDetails(map[string]any{
					"plan_id": planID,
					"occurrence_ids": lo.Map(notPending, func(o *occurrence.BillingOccurrence, _ int) string {
						return o.ID
					}),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	if len(occs) == 0 {
		return nil, ierr.NewError("nothing to invoice").
			WithHint("The billing plan has no pending occurrences").
			WithReportableDetails(map[string]any{"plan_id": planID}).
			Mark(ierr.ErrInvalidOperation)
	}

	sort.SliceStable(occs, func(i, j int) bool { return occs[i].Seq < occs[j].Seq })
	return occs, nil
}

func (s *billingBridgeService) buildInvoice(
	ctx context.Context,
	plan *billingplan.BillingPlan,
	occs []*occurrence.BillingOccurrence,
	req dto.InvoiceOccurrencesRequest,
) (*invoice.Invoice, error) {
	currency := occs[0].Currency
	for _, o := range occs {
		if o.Currency != currency {
			return nil, ierr.NewError("occurrences have mixed currencies").
				WithHint("All invoiced occurrences must share one currency").
				WithReportableDetails(map[string]any{
					"plan_id":    plan.ID,
					"currencies": lo.Uniq(lo.Map(occs, func(o *occurrence.BillingOccurrence, _ int) string { return o.Currency })),
				}).
				Mark(ierr.ErrValidation)
		}
	}

	name := plan.Source.Snapshot.ServiceName
	if name == "" {
		name = plan.Source.Snapshot.Title.Get("en", "")
	}
	if name == "" {
		name = plan.Code
	}

	items := make([]*invoice.LineItem, 0, len(occs))
	for _, o := range occs {
		start, end := o.WindowStart, o.WindowEnd
		items = append(items, &invoice.LineItem{
			ID:   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			Kind: types.InvoiceLineItemKindBillingOccurrence,
			Description: fmt.Sprintf("%s #%d (%s to %s)", name, o.Seq,
				start.Format("2006-01-02"), end.Format("2006-01-02")),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   o.Amount,
			TaxRate:     req.TaxRate,
			PeriodStart: &start,
			PeriodEnd:   &end,
		})
	}

	now := s.now()
	var dueDate time.Time
	if req.DueDays != nil {
		dueDate = now.AddDate(0, 0, *req.DueDays)
	} else {
		latest := lo.MaxBy(occs, func(a, b *occurrence.BillingOccurrence) bool { return a.DueAt.After(b.DueAt) })
		dueDate = plan.DueWithGrace(latest.DueAt)
	}
	// Catch-up runs bill windows already past due; those get the default term.
	if dueDate.Before(now) {
		dueDate = now.AddDate(0, 0, s.Config.Billing.InvoiceDueDays)
	}

	return &invoice.Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceType:   types.InvoiceTypeInvoice,
		InvoiceStatus: types.InvoiceStatusDraft,
		Currency:      currency,
		Seller:        req.Seller,
		Buyer:         req.Buyer,
		Items:         items,
		Links: invoice.Links{
			CustomerID:    plan.Source.Snapshot.CustomerID,
			PropertyID:    plan.Source.Snapshot.PropertyID,
			ContractID:    plan.Source.ContractID,
			BillingPlanID: plan.ID,
			BillingOccurrenceIDs: lo.Map(occs, func(o *occurrence.BillingOccurrence, _ int) string {
				return o.ID
			}),
		},
		Notes:     req.Notes,
		Terms:     req.Terms,
		IssueDate: &now,
		DueDate:   &dueDate,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}, nil
}
