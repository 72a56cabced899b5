package types

import (
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/samber/lo"
)

// InvoiceType distinguishes a regular invoice from a credit note
type InvoiceType string

const (
	InvoiceTypeInvoice    InvoiceType = "invoice"
	InvoiceTypeCreditNote InvoiceType = "creditNote"
)

func (t InvoiceType) String() string {
	return string(t)
}

func (t InvoiceType) Validate() error {
	allowed := []InvoiceType{
		InvoiceTypeInvoice,
		InvoiceTypeCreditNote,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid invoice type").
			WithHint("Invoice type must be invoice or creditNote").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"type":    t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceStatus is the settlement lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusIssued        InvoiceStatus = "issued"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCanceled      InvoiceStatus = "canceled"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusIssued,
		InvoiceStatusSent,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}

// InvoiceLineItemKindBillingOccurrence marks items created from a billing occurrence
const InvoiceLineItemKindBillingOccurrence = "billing_occurrence"

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs    []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	CustomerID    string          `json:"customer_id,omitempty" form:"customer_id"`
	BillingPlanID string          `json:"billing_plan_id,omitempty" form:"billing_plan_id"`
	InvoiceType   InvoiceType     `json:"invoice_type,omitempty" form:"invoice_type"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
}

// NewInvoiceFilter creates a new invoice filter with default options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new invoice filter without pagination
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *InvoiceFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.InvoiceType != "" {
		if err := f.InvoiceType.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrValidation)
		}
	}
	return nil
}
