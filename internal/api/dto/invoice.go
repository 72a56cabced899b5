package dto

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/internal/domain/invoice"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/flexprice/billing-engine/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one invoice row as sent by the caller. Row amounts are
// always computed server side.
type LineItemRequest struct {
	// kind classifies the row, e.g. billing_occurrence or manual
	Kind string `json:"kind" validate:"required"`

	Description string `json:"description,omitempty"`

	// quantity must be zero or greater
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`

	// unit_price must be zero or greater
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`

	// discount is an optional row discount, rate in percent or a fixed amount
	Discount *types.Discount `json:"discount,omitempty"`

	// tax_rate is a percentage between 0 and 100
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

func (r LineItemRequest) ToLineItem() *invoice.LineItem {
	return &invoice.LineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		Kind:        r.Kind,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Discount:    r.Discount,
		TaxRate:     r.TaxRate,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
	}
}

func toLineItems(reqs []LineItemRequest) []*invoice.LineItem {
	return lo.Map(reqs, func(r LineItemRequest, _ int) *invoice.LineItem {
		return r.ToLineItem()
	})
}

type CreateInvoiceRequest struct {
	// code is an optional tenant-unique number; generated from the configured prefix when empty
	Code string `json:"code,omitempty" validate:"omitempty,max=64"`

	// invoice_type is invoice or creditNote, defaults to invoice
	InvoiceType types.InvoiceType `json:"invoice_type,omitempty"`

	// currency is the three-letter ISO currency code
	Currency string `json:"currency" validate:"required,len=3"`

	// fx_rate is an optional exchange rate to the tenant's reporting currency
	FXRate *decimal.Decimal `json:"fx_rate,omitempty"`

	Seller invoice.PartySnapshot `json:"seller"`
	Buyer  invoice.PartySnapshot `json:"buyer"`

	Items []LineItemRequest `json:"items" validate:"dive"`

	// invoice_discount applies to the sum of row subtotals
	InvoiceDiscount *types.Discount `json:"invoice_discount,omitempty"`

	// rounding is a signed adjustment added to the grand total
	Rounding decimal.Decimal `json:"rounding"`

	Links invoice.Links       `json:"links"`
	Notes types.LocalizedText `json:"notes,omitempty"`
	Terms types.LocalizedText `json:"terms,omitempty"`

	IssueDate *time.Time `json:"issue_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.InvoiceType != "" {
		if err := r.InvoiceType.Validate(); err != nil {
			return err
		}
	}
	return r.ToInvoice(context.Background()).Validate()
}

// ToInvoice builds a draft invoice. Totals are not computed here.
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context) *invoice.Invoice {
	invoiceType := r.InvoiceType
	if invoiceType == "" {
		invoiceType = types.InvoiceTypeInvoice
	}
	return &invoice.Invoice{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		Code:            r.Code,
		InvoiceType:     invoiceType,
		InvoiceStatus:   types.InvoiceStatusDraft,
		Currency:        r.Currency,
		FXRate:          r.FXRate,
		Seller:          r.Seller,
		Buyer:           r.Buyer,
		Items:           toLineItems(r.Items),
		InvoiceDiscount: r.InvoiceDiscount,
		Totals:          invoice.Totals{Rounding: r.Rounding},
		Links:           r.Links,
		Notes:           r.Notes,
		Terms:           r.Terms,
		IssueDate:       r.IssueDate,
		DueDate:         r.DueDate,
		Metadata:        r.Metadata,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

// UpdateInvoiceRequest edits a draft invoice. Nil fields are left as they are;
// items, when present, replace the whole list.
type UpdateInvoiceRequest struct {
	Seller          *invoice.PartySnapshot `json:"seller,omitempty"`
	Buyer           *invoice.PartySnapshot `json:"buyer,omitempty"`
	Items           []LineItemRequest      `json:"items,omitempty" validate:"omitempty,dive"`
	InvoiceDiscount *types.Discount        `json:"invoice_discount,omitempty"`
	// remove_invoice_discount clears the invoice discount
	RemoveInvoiceDiscount bool                `json:"remove_invoice_discount,omitempty"`
	Rounding              *decimal.Decimal    `json:"rounding,omitempty"`
	Notes                 types.LocalizedText `json:"notes,omitempty"`
	Terms                 types.LocalizedText `json:"terms,omitempty"`
	IssueDate             *time.Time          `json:"issue_date,omitempty"`
	DueDate               *time.Time          `json:"due_date,omitempty"`
	Metadata              types.Metadata      `json:"metadata,omitempty"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.RemoveInvoiceDiscount && r.InvoiceDiscount != nil {
		return ierr.NewError("invoice_discount and remove_invoice_discount are exclusive").
			WithHint("Either set or remove the invoice discount, not both").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Apply writes the requested changes onto inv. The caller recalculates.
func (r *UpdateInvoiceRequest) Apply(inv *invoice.Invoice) {
	if r.Seller != nil {
		inv.Seller = *r.Seller
	}
	if r.Buyer != nil {
		inv.Buyer = *r.Buyer
	}
	if r.Items != nil {
		inv.Items = toLineItems(r.Items)
	}
	if r.InvoiceDiscount != nil {
		inv.InvoiceDiscount = r.InvoiceDiscount
	}
	if r.RemoveInvoiceDiscount {
		inv.InvoiceDiscount = nil
	}
	if r.Rounding != nil {
		inv.Totals.Rounding = *r.Rounding
	}
	if r.Notes != nil {
		inv.Notes = r.Notes
	}
	if r.Terms != nil {
		inv.Terms = r.Terms
	}
	if r.IssueDate != nil {
		inv.IssueDate = r.IssueDate
	}
	if r.DueDate != nil {
		inv.DueDate = r.DueDate
	}
	if r.Metadata != nil {
		inv.Metadata = r.Metadata
	}
}

type UpdateInvoiceStatusRequest struct {
	Status types.InvoiceStatus `json:"status" validate:"required"`
}

func (r *UpdateInvoiceStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

type RecordPaymentRequest struct {
	// amount must be greater than zero and at most the open balance
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Note   string          `json:"note,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type InvoiceResponse struct {
	*invoice.Invoice
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]
