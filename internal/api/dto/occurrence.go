package dto

import (
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/flexprice/billing-engine/internal/validator"
)

type OccurrenceResponse struct {
	*occurrence.BillingOccurrence
}

type ListOccurrencesResponse = types.ListResponse[*OccurrenceResponse]

// UpdateOccurrenceStatusRequest skips or cancels a pending occurrence.
// Occurrences only become invoiced through the invoicing bridge.
type UpdateOccurrenceStatusRequest struct {
	Status types.OccurrenceStatus `json:"status" validate:"required"`
}

func (r *UpdateOccurrenceStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if r.Status == types.OccurrenceStatusInvoiced {
		return ierr.NewError("occurrences are invoiced through the invoice endpoint").
			WithHint("Use the plan invoice endpoint to invoice occurrences").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func NewOccurrenceResponses(items []*occurrence.BillingOccurrence) []*OccurrenceResponse {
	out := make([]*OccurrenceResponse, 0, len(items))
	for _, o := range items {
		out = append(out, &OccurrenceResponse{BillingOccurrence: o})
	}
	return out
}
