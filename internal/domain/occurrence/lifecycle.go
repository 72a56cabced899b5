package occurrence

import (
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

// Pending is the only state with exits a caller can request. Release is the
// one way back from invoiced.
var transitions = map[types.OccurrenceStatus][]types.OccurrenceStatus{
	types.OccurrenceStatusPending: {
		types.OccurrenceStatusInvoiced,
		types.OccurrenceStatusSkipped,
		types.OccurrenceStatusCanceled,
	},
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to types.OccurrenceStatus) bool {
	return lo.Contains(transitions[from], to)
}

// TransitionTo moves the occurrence to status to. invoiceID is required when
// moving to invoiced and ignored otherwise. Same-state requests are a no-op.
func (o *BillingOccurrence) TransitionTo(to types.OccurrenceStatus, invoiceID *string) (bool, error) {
	if err := to.Validate(); err != nil {
		return false, err
	}
	if o.OccurrenceStatus == to {
		return false, nil
	}
	if !CanTransition(o.OccurrenceStatus, to) {
		return false, ierr.NewError("occurrence status transition not allowed").
			WithHintf("Cannot move occurrence from %s to %s", o.OccurrenceStatus, to).
			WithReportableDetails(map[string]any{
				"from": o.OccurrenceStatus,
				"to":   to,
			}).
			Mark(ierr.ErrInvalidState)
	}
	if to == types.OccurrenceStatusInvoiced {
		if invoiceID == nil || *invoiceID == "" {
			return false, ierr.NewError("invoice id is required").
				WithHint("An invoiced occurrence must reference its invoice").
				Mark(ierr.ErrValidation)
		}
		o.InvoiceID = invoiceID
	}
	o.OccurrenceStatus = to
	return true, nil
}

// Release returns an occurrence billed on invoiceID to pending so it can be
// invoiced again. It is used when that invoice is canceled.
func (o *BillingOccurrence) Release(invoiceID string) error {
	if o.OccurrenceStatus != types.OccurrenceStatusInvoiced || o.InvoiceID == nil || *o.InvoiceID != invoiceID {
		return ierr.NewError("occurrence is not billed on this invoice").
			WithHintf("Occurrence %s is not invoiced on %s", o.ID, invoiceID).
			WithReportableDetails(map[string]any{
				"occurrence_id": o.ID,
				"status":        o.OccurrenceStatus,
				"invoice_id":    invoiceID,
			}).
			Mark(ierr.ErrInvalidState)
	}
	o.OccurrenceStatus = types.OccurrenceStatusPending
	o.InvoiceID = nil
	return nil
}
