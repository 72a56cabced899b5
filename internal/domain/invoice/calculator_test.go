package invoice

import (
	"testing"

	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func taxedItem() *LineItem {
	return &LineItem{
		Kind:      "service",
		Quantity:  d("2"),
		UnitPrice: d("50"),
		TaxRate:   lo.ToPtr(d("19")),
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		discount *types.Discount
		want     string
	}{
		{"no discount", "100", nil, "0"},
		{"rate", "200", &types.Discount{Type: types.DiscountTypeRate, Value: d("10")}, "20"},
		{"rate above 100 clamps", "80", &types.Discount{Type: types.DiscountTypeRate, Value: d("150")}, "80"},
		{"negative rate clamps to zero", "80", &types.Discount{Type: types.DiscountTypeRate, Value: d("-5")}, "0"},
		{"fractional rate", "33.33", &types.Discount{Type: types.DiscountTypeRate, Value: d("12.5")}, "4.166250"},
		{"amount", "100", &types.Discount{Type: types.DiscountTypeAmount, Value: d("15.5")}, "15.5"},
		{"amount above base clamps", "40", &types.Discount{Type: types.DiscountTypeAmount, Value: d("100")}, "40"},
		{"unknown type takes nothing", "40", &types.Discount{Type: "bogo", Value: d("10")}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, ApplyDiscount(d(tt.base), tt.discount))
		})
	}
}

func TestComputeRow(t *testing.T) {
	t.Run("taxed item without discount", func(t *testing.T) {
		row := ComputeRow(taxedItem())
		assertDecimal(t, "100", row.Gross)
		assertDecimal(t, "0", row.Discount)
		assertDecimal(t, "100", row.Subtotal)
		assertDecimal(t, "19", row.Tax)
		assertDecimal(t, "119", row.Total)
	})

	t.Run("amount discount larger than gross", func(t *testing.T) {
		item := taxedItem()
		item.Discount = &types.Discount{Type: types.DiscountTypeAmount, Value: d("500")}
		row := ComputeRow(item)
		assertDecimal(t, "100", row.Discount)
		assertDecimal(t, "0", row.Subtotal)
		assertDecimal(t, "0", row.Tax)
		assertDecimal(t, "0", row.Total)
	})

	t.Run("rate discount of 150 clamps to 100", func(t *testing.T) {
		item := taxedItem()
		item.Discount = &types.Discount{Type: types.DiscountTypeRate, Value: d("150")}
		row := ComputeRow(item)
		assert.False(t, row.Subtotal.IsNegative())
		assertDecimal(t, "0", row.Subtotal)
	})

	t.Run("no tax rate", func(t *testing.T) {
		row := ComputeRow(&LineItem{Kind: "fee", Quantity: d("1.5"), UnitPrice: d("10")})
		assertDecimal(t, "15", row.Subtotal)
		assertDecimal(t, "0", row.Tax)
		assertDecimal(t, "15", row.Total)
	})
}

func TestRecomputeTotals(t *testing.T) {
	rate10 := &types.Discount{Type: types.DiscountTypeRate, Value: d("10")}

	t.Run("two items with invoice discount", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:           []*LineItem{taxedItem(), taxedItem()},
			InvoiceDiscount: rate10,
			Currency:        "EUR",
		})
		assertDecimal(t, "200", totals.ItemsGrossTotal)
		assertDecimal(t, "0", totals.ItemsDiscountTotal)
		assertDecimal(t, "200", totals.ItemsSubtotal)
		assertDecimal(t, "20", totals.InvoiceDiscountTotal)
		assertDecimal(t, "38", totals.TaxTotal)
		assertDecimal(t, "218", totals.GrandTotal)
		assertDecimal(t, "218", totals.Balance)
	})

	t.Run("credit note carries the negated sign", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:           []*LineItem{taxedItem(), taxedItem()},
			InvoiceDiscount: rate10,
			Currency:        "EUR",
			IsCreditNote:    true,
		})
		assertDecimal(t, "-218", totals.GrandTotal)
		assertDecimal(t, "-218", totals.Balance)
	})

	t.Run("row discounts feed the invoice discount base", func(t *testing.T) {
		item := taxedItem()
		item.Discount = &types.Discount{Type: types.DiscountTypeAmount, Value: d("20")}
		totals := RecomputeTotals(TotalsInput{
			Items:           []*LineItem{item},
			InvoiceDiscount: &types.Discount{Type: types.DiscountTypeAmount, Value: d("10")},
		})
		assertDecimal(t, "100", totals.ItemsGrossTotal)
		assertDecimal(t, "20", totals.ItemsDiscountTotal)
		assertDecimal(t, "80", totals.ItemsSubtotal)
		assertDecimal(t, "10", totals.InvoiceDiscountTotal)
		assertDecimal(t, "15.2", totals.TaxTotal)
		assertDecimal(t, "85.2", totals.GrandTotal)
	})

	t.Run("rounding and partial payment", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:      []*LineItem{{Kind: "fee", Quantity: d("3"), UnitPrice: d("33.333")}},
			Rounding:   d("0.001"),
			AmountPaid: d("40"),
		})
		assertDecimal(t, "100", totals.GrandTotal)
		assertDecimal(t, "0.001", totals.Rounding)
		assertDecimal(t, "40", totals.AmountPaid)
		assertDecimal(t, "60", totals.Balance)
	})

	t.Run("overpayment floors balance at zero", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:      []*LineItem{taxedItem()},
			AmountPaid: d("500"),
		})
		assertDecimal(t, "0", totals.Balance)
	})

	t.Run("negative rounding cannot push grand total below zero", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:    []*LineItem{{Kind: "fee", Quantity: d("1"), UnitPrice: d("0.01")}},
			Rounding: d("-1"),
		})
		assertDecimal(t, "0", totals.GrandTotal)
	})

	t.Run("credit note balance has no floor", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{
			Items:        []*LineItem{taxedItem()},
			AmountPaid:   d("20"),
			IsCreditNote: true,
		})
		assertDecimal(t, "-119", totals.GrandTotal)
		assertDecimal(t, "-139", totals.Balance)
	})

	t.Run("empty invoice", func(t *testing.T) {
		totals := RecomputeTotals(TotalsInput{})
		assertDecimal(t, "0", totals.GrandTotal)
		assertDecimal(t, "0", totals.Balance)
	})
}

func TestRecomputeTotals_IsPure(t *testing.T) {
	in := TotalsInput{
		Items: []*LineItem{
			taxedItem(),
			{Kind: "fee", Quantity: d("7"), UnitPrice: d("3.3333"), TaxRate: lo.ToPtr(d("7")), Discount: &types.Discount{Type: types.DiscountTypeRate, Value: d("33.3")}},
		},
		InvoiceDiscount: &types.Discount{Type: types.DiscountTypeRate, Value: d("2.5")},
		Rounding:        d("0.004"),
		AmountPaid:      d("12.34"),
		Currency:        "EUR",
	}

	first := RecomputeTotals(in)
	second := RecomputeTotals(in)
	assert.Equal(t, first, second)
	assert.Equal(t, first.GrandTotal.String(), second.GrandTotal.String())
}
