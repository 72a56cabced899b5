package dto

import (
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/flexprice/billing-engine/internal/validator"
	"github.com/shopspring/decimal"
)

// InvoiceOccurrencesRequest turns pending occurrences of one plan into a
// draft invoice with one row per occurrence
type InvoiceOccurrencesRequest struct {
	PlanID string `json:"-"`

	// occurrence_ids restricts the run; empty means every pending occurrence of the plan
	OccurrenceIDs []string `json:"occurrence_ids,omitempty"`

	Seller invoice.PartySnapshot `json:"seller"`
	Buyer  invoice.PartySnapshot `json:"buyer"`

	// tax_rate applies to every row, percent
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`

	// due_days overrides the due date, counted from today
	DueDays *int `json:"due_days,omitempty" validate:"omitempty,gte=0"`

	Notes types.LocalizedText `json:"notes,omitempty"`
	Terms types.LocalizedText `json:"terms,omitempty"`
}

func (r *InvoiceOccurrencesRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return types.ValidatePercentage("tax_rate", r.TaxRate)
}
