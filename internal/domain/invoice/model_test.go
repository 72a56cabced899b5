package invoice

import (
	"testing"
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateOverwritesCallerSuppliedAmounts(t *testing.T) {
	item := taxedItem()
	item.RowSubtotal = d("9999")
	item.RowTotal = d("9999")

	inv := &Invoice{
		InvoiceType: types.InvoiceTypeInvoice,
		Currency:    "EUR",
		Items:       []*LineItem{item},
		Totals:      Totals{GrandTotal: d("1"), Rounding: d("0.5"), AmountPaid: d("10")},
	}
	inv.Recalculate()

	assertDecimal(t, "100", item.RowSubtotal)
	assertDecimal(t, "19", item.RowTax)
	assertDecimal(t, "119", item.RowTotal)
	assertDecimal(t, "119.5", inv.Totals.GrandTotal)
	assertDecimal(t, "109.5", inv.Totals.Balance)
}

func TestInvoiceValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(inv *Invoice)
	}{
		{"bad type", func(inv *Invoice) { inv.InvoiceType = "proforma" }},
		{"bad currency", func(inv *Invoice) { inv.Currency = "E" }},
		{"negative quantity", func(inv *Invoice) { inv.Items[0].Quantity = d("-1") }},
		{"negative unit price", func(inv *Invoice) { inv.Items[0].UnitPrice = d("-0.01") }},
		{"tax above 100", func(inv *Invoice) { inv.Items[0].TaxRate = lo.ToPtr(d("101")) }},
		{"row rate discount above 100", func(inv *Invoice) {
			inv.Items[0].Discount = &types.Discount{Type: types.DiscountTypeRate, Value: d("150")}
		}},
		{"negative invoice discount", func(inv *Invoice) {
			inv.InvoiceDiscount = &types.Discount{Type: types.DiscountTypeAmount, Value: d("-3")}
		}},
		{"missing kind", func(inv *Invoice) { inv.Items[0].Kind = "" }},
		{"nil item", func(inv *Invoice) { inv.Items = append(inv.Items, nil) }},
		{"zero fx rate", func(inv *Invoice) { inv.FXRate = lo.ToPtr(d("0")) }},
		{"due before issue", func(inv *Invoice) {
			inv.IssueDate = lo.ToPtr(time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
			inv.DueDate = lo.ToPtr(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
		}},
	}

	require.NoError(t, draftInvoice().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := draftInvoice()
			tt.mutate(inv)
			assert.True(t, ierr.IsValidation(inv.Validate()))
		})
	}
}

func TestAmountDiscountAboveGrossIsAccepted(t *testing.T) {
	inv := draftInvoice()
	inv.Items[0].Discount = &types.Discount{Type: types.DiscountTypeAmount, Value: d("1000")}
	require.NoError(t, inv.Validate())

	inv.Recalculate()
	assertDecimal(t, "0", inv.Items[0].RowSubtotal)
	assertDecimal(t, "0", inv.Totals.GrandTotal)
}
