package service

import (
	"context"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error)
	RecordPayment(ctx context.Context, id string, req dto.RecordPaymentRequest) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	CreateCreditNote(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

// create assigns a code when missing, computes totals and persists the draft
func (s *invoiceService) create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Code == "" {
		prefix := s.Config.Billing.InvoiceCodePrefix
		if inv.IsCreditNote() {
			prefix = s.Config.Billing.CreditNoteCodePrefix
		}
		inv.Code = types.GenerateShortIDWithPrefix(prefix)
	}

	inv.Recalculate()
	if err := inv.Validate(); err != nil {
		return err
	}
	return s.InvoiceRepo.Create(ctx, inv)
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv := req.ToInvoice(ctx)
	if err := s.create(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"code", inv.Code,
		"type", inv.InvoiceType,
		"grand_total", inv.Totals.GrandTotal.String(),
	)
	s.publishWebhookEvent(ctx, types.WebhookEventInvoiceCreated, invoiceEvent(inv))

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice ID is required").
			WithHint("Please provide a valid invoice ID").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return &dto.InvoiceResponse{Invoice: inv}
	})
	response := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !inv.IsDraft() {
		return nil, ierr.NewError("invoice is not a draft").
			WithHint("Only draft invoices can be edited").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	req.Apply(inv)
	inv.Recalculate()
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	inv.Touch(ctx)
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// An open balance is settled through RecordPayment so that the amount
	// paid stays in step with the status.
	if !inv.IsCreditNote() && inv.Totals.Balance.IsPositive() &&
		(req.Status == types.InvoiceStatusPartiallyPaid || req.Status == types.InvoiceStatusPaid) &&
		inv.InvoiceStatus != req.Status {
		return nil, ierr.NewError("payment status is set by recording payments").
			WithHint("Record a payment to move the invoice to partially_paid or paid").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
				"status":     req.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	from := inv.InvoiceStatus
	changed, err := inv.TransitionTo(req.Status, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return &dto.InvoiceResponse{Invoice: inv}, nil
	}

	inv.Touch(ctx)
	var released []*occurrence.BillingOccurrence
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		if inv.InvoiceStatus != types.InvoiceStatusCanceled {
			return nil
		}
		var err error
		released, err = s.releaseOccurrences(ctx, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice status updated",
		"invoice_id", inv.ID,
		"from", from,
		"to", inv.InvoiceStatus,
		"released_occurrences", len(released),
	)
	s.publishWebhookEvent(ctx, types.WebhookEventInvoiceStatusUpdated, invoiceEvent(inv))
	if len(released) > 0 {
		s.publishWebhookEvent(ctx, types.WebhookEventBillingOccurrenceStatusUpdated,
			occurrenceEvent(inv.Links.BillingPlanID, inv.TenantID, released))
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

// releaseOccurrences puts the occurrences a canceled invoice was built from
// back to pending, so the next bridge run bills them again
func (s *invoiceService) releaseOccurrences(ctx context.Context, inv *invoice.Invoice) ([]*occurrence.BillingOccurrence, error) {
	ids := inv.OccurrenceIDs()
	if len(ids) == 0 {
		return nil, nil
	}

	filter := types.NewNoLimitOccurrenceFilter()
	filter.OccurrenceIDs = ids
	occs, err := s.OccurrenceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	released := make([]*occurrence.BillingOccurrence, 0, len(occs))
	for _, o := range occs {
		if err := o.Release(inv.ID); err != nil {
			s.Logger.Warnw("occurrence not released",
				"invoice_id", inv.ID,
				"occurrence_id", o.ID,
				"status", o.OccurrenceStatus,
			)
			continue
		}
		o.Touch(ctx)
		if err := s.OccurrenceRepo.Update(ctx, o, types.OccurrenceStatusInvoiced); err != nil {
			return nil, err
		}
		released = append(released, o)
	}
	return released, nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, id string, req dto.RecordPaymentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := inv.InvoiceStatus
	if err := inv.ApplyPayment(req.Amount, s.now()); err != nil {
		return nil, err
	}

	inv.Touch(ctx)
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded invoice payment",
		"invoice_id", inv.ID,
		"amount", req.Amount.String(),
		"amount_paid", inv.Totals.AmountPaid.String(),
		"balance", inv.Totals.Balance.String(),
	)
	s.publishWebhookEvent(ctx, types.WebhookEventInvoicePaymentRecorded, invoiceEvent(inv))
	if inv.InvoiceStatus != from {
		s.publishWebhookEvent(ctx, types.WebhookEventInvoiceStatusUpdated, invoiceEvent(inv))
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

// DeleteInvoice removes a draft. Drafts built from occurrences are canceled
// instead, which hands their occurrences back to pending.
func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if !inv.IsDraft() {
		return ierr.NewError("only draft invoices can be deleted").
			WithHint("Cancel the invoice instead of deleting it").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if len(inv.OccurrenceIDs()) > 0 {
		return ierr.NewError("invoice was built from billing occurrences").
			WithHint("Cancel the invoice instead of deleting it").
			WithReportableDetails(map[string]any{
				"invoice_id":     id,
				"occurrence_ids": inv.OccurrenceIDs(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	return s.InvoiceRepo.Delete(ctx, inv)
}

// CreateCreditNote mirrors the items of an issued invoice into a draft
// credit note. The totals flip sign when the credit note is recalculated.
func (s *invoiceService) CreateCreditNote(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	original, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if original.IsCreditNote() {
		return nil, ierr.NewError("cannot credit a credit note").
			WithHint("Credit notes can only be created for invoices").
			Mark(ierr.ErrInvalidOperation)
	}
	creditable := []types.InvoiceStatus{
		types.InvoiceStatusIssued,
		types.InvoiceStatusSent,
		types.InvoiceStatusPartiallyPaid,
		types.InvoiceStatusPaid,
	}
	if !lo.Contains(creditable, original.InvoiceStatus) {
		return nil, ierr.NewError("invoice is not creditable").
			WithHintf("A %s invoice cannot be credited", original.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id": invoiceID,
				"status":     original.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	items := lo.Map(original.Items, func(item *invoice.LineItem, _ int) *invoice.LineItem {
		c := *item
		c.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM)
		return &c
	})

	links := original.Links
	links.BillingOccurrenceIDs = nil
	links.CreditedInvoiceID = original.ID

	cn := &invoice.Invoice{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceType:     types.InvoiceTypeCreditNote,
		InvoiceStatus:   types.InvoiceStatusDraft,
		Currency:        original.Currency,
		FXRate:          original.FXRate,
		Seller:          original.Seller,
		Buyer:           original.Buyer,
		Items:           items,
		InvoiceDiscount: original.InvoiceDiscount,
		Totals:          invoice.Totals{Rounding: original.Totals.Rounding},
		Links:           links,
		Notes:           original.Notes,
		Terms:           original.Terms,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.create(ctx, cn); err != nil {
		return nil, err
	}

	s.Logger.Infow("created credit note",
		"invoice_id", cn.ID,
		"credited_invoice_id", original.ID,
		"grand_total", cn.Totals.GrandTotal.String(),
	)
	s.publishWebhookEvent(ctx, types.WebhookEventInvoiceCreated, invoiceEvent(cn))

	return &dto.InvoiceResponse{Invoice: cn}, nil
}
