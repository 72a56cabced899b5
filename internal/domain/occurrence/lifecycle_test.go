package occurrence

import (
	"testing"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTo(t *testing.T) {
	tests := []struct {
		name      string
		from      types.OccurrenceStatus
		to        types.OccurrenceStatus
		invoiceID *string
		changed   bool
		check     func(error) bool
	}{
		{name: "pending to invoiced", from: types.OccurrenceStatusPending, to: types.OccurrenceStatusInvoiced, invoiceID: lo.ToPtr("inv_1"), changed: true},
		{name: "pending to skipped", from: types.OccurrenceStatusPending, to: types.OccurrenceStatusSkipped, changed: true},
		{name: "pending to canceled", from: types.OccurrenceStatusPending, to: types.OccurrenceStatusCanceled, changed: true},
		{name: "same state", from: types.OccurrenceStatusSkipped, to: types.OccurrenceStatusSkipped},
		{name: "invoiced without invoice", from: types.OccurrenceStatusPending, to: types.OccurrenceStatusInvoiced, check: ierr.IsValidation},
		{name: "invoiced back to pending", from: types.OccurrenceStatusInvoiced, to: types.OccurrenceStatusPending, check: ierr.IsInvalidState},
		{name: "skipped to invoiced", from: types.OccurrenceStatusSkipped, to: types.OccurrenceStatusInvoiced, invoiceID: lo.ToPtr("inv_1"), check: ierr.IsInvalidState},
		{name: "unknown target", from: types.OccurrenceStatusPending, to: "archived", check: ierr.IsInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &BillingOccurrence{OccurrenceStatus: tt.from}
			changed, err := o.TransitionTo(tt.to, tt.invoiceID)
			if tt.check != nil {
				require.Error(t, err)
				assert.True(t, tt.check(err), "unexpected error kind: %v", err)
				assert.Equal(t, tt.from, o.OccurrenceStatus, "state must not change on rejection")
				assert.Nil(t, o.InvoiceID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.to, o.OccurrenceStatus)
			if tt.to == types.OccurrenceStatusInvoiced {
				assert.Equal(t, tt.invoiceID, o.InvoiceID)
			}
		})
	}
}

func TestRelease(t *testing.T) {
	t.Run("invoiced on the same invoice", func(t *testing.T) {
		o := &BillingOccurrence{OccurrenceStatus: types.OccurrenceStatusInvoiced, InvoiceID: lo.ToPtr("inv_1")}
		require.NoError(t, o.Release("inv_1"))
		assert.Equal(t, types.OccurrenceStatusPending, o.OccurrenceStatus)
		assert.Nil(t, o.InvoiceID)
	})

	rejected := []struct {
		name string
		o    *BillingOccurrence
	}{
		{name: "other invoice", o: &BillingOccurrence{OccurrenceStatus: types.OccurrenceStatusInvoiced, InvoiceID: lo.ToPtr("inv_2")}},
		{name: "still pending", o: &BillingOccurrence{OccurrenceStatus: types.OccurrenceStatusPending}},
		{name: "skipped", o: &BillingOccurrence{OccurrenceStatus: types.OccurrenceStatusSkipped}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			from := tt.o.OccurrenceStatus
			err := tt.o.Release("inv_1")
			require.Error(t, err)
			assert.True(t, ierr.IsInvalidState(err))
			assert.Equal(t, from, tt.o.OccurrenceStatus)
		})
	}
}
