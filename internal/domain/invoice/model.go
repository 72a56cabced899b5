package invoice

import (
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Invoice represents the invoice domain model. Totals and the row amounts on
// each item are derived; Recalculate overwrites whatever is there.
type Invoice struct {
	ID              string              `json:"id"`
	Code            string              `json:"code"`
	InvoiceType     types.InvoiceType   `json:"invoice_type"`
	InvoiceStatus   types.InvoiceStatus `json:"invoice_status"`
	Currency        string              `json:"currency"`
	FXRate          *decimal.Decimal    `json:"fx_rate,omitempty"`
	Seller          PartySnapshot       `json:"seller"`
	Buyer           PartySnapshot       `json:"buyer"`
	Items           []*LineItem         `json:"items"`
	InvoiceDiscount *types.Discount     `json:"invoice_discount,omitempty"`
	Totals          Totals              `json:"totals"`
	Links           Links               `json:"links"`
	Notes           types.LocalizedText `json:"notes,omitempty"`
	Terms           types.LocalizedText `json:"terms,omitempty"`
	IssueDate       *time.Time          `json:"issue_date,omitempty"`
	DueDate         *time.Time          `json:"due_date,omitempty"`
	IssuedAt        *time.Time          `json:"issued_at,omitempty"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CanceledAt      *time.Time          `json:"canceled_at,omitempty"`
	Metadata        types.Metadata      `json:"metadata,omitempty"`
	types.BaseModel
}

// PartySnapshot is a copy of seller or buyer details taken for this invoice.
// Later changes to the party never reach a stored invoice.
type PartySnapshot struct {
	Name    string  `json:"name"`
	TaxID   string  `json:"tax_id,omitempty"`
	Email   string  `json:"email,omitempty"`
	Address Address `json:"address"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// LineItem is one row of an invoice
type LineItem struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Description string           `json:"description,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Discount    *types.Discount  `json:"discount,omitempty"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	RowDiscount decimal.Decimal  `json:"row_discount"`
	RowSubtotal decimal.Decimal  `json:"row_subtotal"`
	RowTax      decimal.Decimal  `json:"row_tax"`
	RowTotal    decimal.Decimal  `json:"row_total"`
	PeriodStart *time.Time       `json:"period_start,omitempty"`
	PeriodEnd   *time.Time       `json:"period_end,omitempty"`
}

// Totals is the derived money block of an invoice
type Totals struct {
	ItemsGrossTotal      decimal.Decimal `json:"items_gross_total"`
	ItemsDiscountTotal   decimal.Decimal `json:"items_discount_total"`
	ItemsSubtotal        decimal.Decimal `json:"items_subtotal"`
	InvoiceDiscountTotal decimal.Decimal `json:"invoice_discount_total"`
	TaxTotal             decimal.Decimal `json:"tax_total"`
	Rounding             decimal.Decimal `json:"rounding"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
	AmountPaid           decimal.Decimal `json:"amount_paid"`
	Balance              decimal.Decimal `json:"balance"`
}

// Links are non-owning back references for traceability
type Links struct {
	CustomerID           string   `json:"customer_id,omitempty"`
	PropertyID           string   `json:"property_id,omitempty"`
	ContractID           string   `json:"contract_id,omitempty"`
	BillingPlanID        string   `json:"billing_plan_id,omitempty"`
	BillingOccurrenceIDs []string `json:"billing_occurrence_ids,omitempty"`
	CreditedInvoiceID    string   `json:"credited_invoice_id,omitempty"`
}

// IsCreditNote reports whether totals carry the negated sign
func (inv *Invoice) IsCreditNote() bool {
	return inv.InvoiceType == types.InvoiceTypeCreditNote
}

// IsDraft reports whether items and amounts may still be edited
func (inv *Invoice) IsDraft() bool {
	return inv.InvoiceStatus == types.InvoiceStatusDraft
}

// Recalculate writes the row amounts back onto every item and recomputes
// the totals from items, invoice discount, rounding and amount paid. Every
// write path calls it after changing any of those.
func (inv *Invoice) Recalculate() {
	for _, item := range inv.Items {
		row := ComputeRow(item)
		item.RowDiscount = row.Discount
		item.RowSubtotal = row.Subtotal
		item.RowTax = row.Tax
		item.RowTotal = row.Total
	}

	inv.Totals = RecomputeTotals(TotalsInput{
		Items:           inv.Items,
		InvoiceDiscount: inv.InvoiceDiscount,
		Rounding:        inv.Totals.Rounding,
		AmountPaid:      inv.Totals.AmountPaid,
		Currency:        inv.Currency,
		IsCreditNote:    inv.IsCreditNote(),
	})
}

func (item *LineItem) Validate() error {
	if item.Kind == "" {
		return ierr.NewError("line item kind is required").
			WithHint("Every line item needs a kind").
			Mark(ierr.ErrValidation)
	}
	if item.Quantity.IsNegative() {
		return ierr.NewError("quantity must not be negative").
			WithHint("Quantity must be zero or greater").
			WithReportableDetails(map[string]any{
				"quantity": item.Quantity.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if item.UnitPrice.IsNegative() {
		return ierr.NewError("unit price must not be negative").
			WithHint("Unit price must be zero or greater").
			WithReportableDetails(map[string]any{
				"unit_price": item.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := item.Discount.Validate(); err != nil {
		return err
	}
	if err := types.ValidatePercentage("tax_rate", item.TaxRate); err != nil {
		return err
	}
	if item.PeriodStart != nil && item.PeriodEnd != nil && !item.PeriodEnd.After(*item.PeriodStart) {
		return ierr.NewError("period end must be after period start").
			WithHint("Line item period end must be after its start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Validate checks every caller-supplied input. It rejects values out of
// range instead of clamping them.
func (inv *Invoice) Validate() error {
	if err := inv.InvoiceType.Validate(); err != nil {
		return err
	}
	if err := inv.InvoiceStatus.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if len(inv.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a 3-letter ISO 4217 code").
			WithReportableDetails(map[string]any{
				"currency": inv.Currency,
			}).
			Mark(ierr.ErrValidation)
	}
	if inv.FXRate != nil && !inv.FXRate.IsPositive() {
		return ierr.NewError("fx rate must be positive").
			WithHint("FX rate must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	for i, item := range inv.Items {
		if item == nil {
			return ierr.NewErrorf("line item %d is empty", i).
				WithHint("Line items must not be empty").
				Mark(ierr.ErrValidation)
		}
		if err := item.Validate(); err != nil {
			return ierr.WithError(err).
				WithReportableDetails(map[string]any{"item_index": i}).
				Mark(ierr.ErrValidation)
		}
	}
	if err := inv.InvoiceDiscount.Validate(); err != nil {
		return err
	}
	if inv.Totals.AmountPaid.IsNegative() {
		return ierr.NewError("amount paid must not be negative").
			WithHint("Amount paid must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	if inv.IssueDate != nil && inv.DueDate != nil && inv.DueDate.Before(*inv.IssueDate) {
		return ierr.NewError("due date before issue date").
			WithHint("Due date must not be before the issue date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OccurrenceIDs returns the billing occurrences this invoice was built from
func (inv *Invoice) OccurrenceIDs() []string {
	return lo.Uniq(inv.Links.BillingOccurrenceIDs)
}
