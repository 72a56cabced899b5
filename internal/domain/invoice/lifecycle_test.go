package invoice

import (
	"testing"
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func draftInvoice() *Invoice {
	inv := &Invoice{
		Code:          "INV-TEST",
		InvoiceType:   types.InvoiceTypeInvoice,
		InvoiceStatus: types.InvoiceStatusDraft,
		Currency:      "EUR",
		Seller:        PartySnapshot{Name: "Hausverwaltung GmbH"},
		Buyer:         PartySnapshot{Name: "Jane Tenant"},
		Items:         []*LineItem{taxedItem()},
	}
	inv.Recalculate()
	return inv
}

func TestInvoiceTransitionTable(t *testing.T) {
	all := []types.InvoiceStatus{
		types.InvoiceStatusDraft,
		types.InvoiceStatusIssued,
		types.InvoiceStatusSent,
		types.InvoiceStatusPartiallyPaid,
		types.InvoiceStatusPaid,
		types.InvoiceStatusCanceled,
	}
	allowed := map[types.InvoiceStatus][]types.InvoiceStatus{
		types.InvoiceStatusDraft:         {types.InvoiceStatusIssued, types.InvoiceStatusCanceled},
		types.InvoiceStatusIssued:        {types.InvoiceStatusSent, types.InvoiceStatusPartiallyPaid, types.InvoiceStatusPaid, types.InvoiceStatusCanceled},
		types.InvoiceStatusSent:          {types.InvoiceStatusPartiallyPaid, types.InvoiceStatusPaid, types.InvoiceStatusCanceled},
		types.InvoiceStatusPartiallyPaid: {types.InvoiceStatusPaid, types.InvoiceStatusCanceled},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, contains(allowed[from], to), CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func contains(list []types.InvoiceStatus, s types.InvoiceStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestTransitionTo_SideEffects(t *testing.T) {
	inv := draftInvoice()

	changed, err := inv.TransitionTo(types.InvoiceStatusIssued, now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, inv.IssuedAt)
	require.NotNil(t, inv.IssueDate)
	assert.True(t, inv.IssueDate.Equal(now))

	sentAt := now.Add(time.Hour)
	_, err = inv.TransitionTo(types.InvoiceStatusSent, sentAt)
	require.NoError(t, err)
	require.NotNil(t, inv.SentAt)
	assert.True(t, inv.SentAt.Equal(sentAt))

	paidAt := now.Add(48 * time.Hour)
	_, err = inv.TransitionTo(types.InvoiceStatusPaid, paidAt)
	require.NoError(t, err)
	assert.True(t, inv.PaidAt.Equal(paidAt))

	_, err = inv.TransitionTo(types.InvoiceStatusDraft, paidAt)
	assert.True(t, ierr.IsInvalidState(err), "paid is terminal")
	_, err = inv.TransitionTo(types.InvoiceStatusCanceled, paidAt)
	assert.True(t, ierr.IsInvalidState(err))
	assert.Nil(t, inv.CanceledAt)
}

func TestTransitionTo_IssueKeepsExplicitIssueDate(t *testing.T) {
	inv := draftInvoice()
	issueDate := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)
	inv.IssueDate = &issueDate

	_, err := inv.TransitionTo(types.InvoiceStatusIssued, now)
	require.NoError(t, err)
	assert.True(t, inv.IssueDate.Equal(issueDate))
	assert.True(t, inv.IssuedAt.Equal(now))
}

func TestTransitionTo_IssueRequiresParties(t *testing.T) {
	inv := draftInvoice()
	inv.Buyer.Name = "  "

	changed, err := inv.TransitionTo(types.InvoiceStatusIssued, now)
	assert.False(t, changed)
	assert.True(t, ierr.IsValidation(err))
	assert.Equal(t, types.InvoiceStatusDraft, inv.InvoiceStatus)
	assert.Nil(t, inv.IssuedAt)
	assert.Contains(t, ierr.DetailsFromErr(err)["missing"], "buyer.name")
}

func TestTransitionTo_UnknownAndSameState(t *testing.T) {
	inv := draftInvoice()

	_, err := inv.TransitionTo("void", now)
	assert.True(t, ierr.IsInvalidState(err))
	assert.Equal(t, types.InvoiceStatusDraft, inv.InvoiceStatus)

	changed, err := inv.TransitionTo(types.InvoiceStatusDraft, now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTransitionTo_CancelStamps(t *testing.T) {
	inv := draftInvoice()
	_, err := inv.TransitionTo(types.InvoiceStatusCanceled, now)
	require.NoError(t, err)
	require.NotNil(t, inv.CanceledAt)
	assert.True(t, inv.CanceledAt.Equal(now))
}

func TestApplyPayment(t *testing.T) {
	inv := draftInvoice()
	_, err := inv.TransitionTo(types.InvoiceStatusIssued, now)
	require.NoError(t, err)

	require.NoError(t, inv.ApplyPayment(d("19"), now))
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, inv.InvoiceStatus)
	assertDecimal(t, "19", inv.Totals.AmountPaid)
	assertDecimal(t, "100", inv.Totals.Balance)
	assert.Nil(t, inv.PaidAt)

	assert.True(t, ierr.IsValidation(inv.ApplyPayment(d("100.01"), now)), "overpayment")
	assert.True(t, ierr.IsValidation(inv.ApplyPayment(d("0"), now)))

	require.NoError(t, inv.ApplyPayment(d("100"), now))
	assert.Equal(t, types.InvoiceStatusPaid, inv.InvoiceStatus)
	assertDecimal(t, "0", inv.Totals.Balance)
	require.NotNil(t, inv.PaidAt)

	assert.True(t, ierr.IsInvalidState(inv.ApplyPayment(d("1"), now)))
}

func TestApplyPayment_Rejections(t *testing.T) {
	draft := draftInvoice()
	assert.True(t, ierr.IsInvalidState(draft.ApplyPayment(d("1"), now)))

	credit := draftInvoice()
	credit.InvoiceType = types.InvoiceTypeCreditNote
	credit.Recalculate()
	_, err := credit.TransitionTo(types.InvoiceStatusIssued, now)
	require.NoError(t, err)
	assert.True(t, ierr.IsInvalidOperation(credit.ApplyPayment(d("1"), now)))
}
