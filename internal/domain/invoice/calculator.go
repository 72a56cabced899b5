package invoice

import (
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RowResult holds the derived amounts of one line item
type RowResult struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// TotalsInput is everything the invoice totals depend on
type TotalsInput struct {
	Items           []*LineItem
	InvoiceDiscount *types.Discount
	Rounding        decimal.Decimal
	AmountPaid      decimal.Decimal
	Currency        string
	IsCreditNote    bool
}

// ApplyDiscount returns the amount d takes off base. A rate is clamped to
// [0,100] and an amount to [0,base]. No discount takes nothing off.
func ApplyDiscount(base decimal.Decimal, d *types.Discount) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}

	switch d.Type {
	case types.DiscountTypeRate:
		rate := clamp(d.Value, decimal.Zero, hundred)
		return base.Mul(rate).Div(hundred)
	case types.DiscountTypeAmount:
		return clamp(d.Value, decimal.Zero, decimal.Max(base, decimal.Zero))
	default:
		return decimal.Zero
	}
}

// ComputeRow derives the amounts of a single line item. Ranges are checked
// by LineItem.Validate before this is called; only the discount is clamped.
func ComputeRow(item *LineItem) RowResult {
	gross := decimal.Max(decimal.Zero, item.Quantity.Mul(item.UnitPrice))
	discount := ApplyDiscount(gross, item.Discount)
	subtotal := gross.Sub(discount)

	tax := decimal.Zero
	if item.TaxRate != nil {
		tax = subtotal.Mul(*item.TaxRate).Div(hundred)
	}

	return RowResult{
		Gross:    gross,
		Discount: discount,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// RecomputeTotals is the only way totals are produced. It is pure: the same
// input always yields the same totals. ItemsSubtotal is the sum after row
// discounts and is the base of the invoice discount.
func RecomputeTotals(in TotalsInput) Totals {
	t := Totals{
		ItemsGrossTotal:    decimal.Zero,
		ItemsDiscountTotal: decimal.Zero,
		ItemsSubtotal:      decimal.Zero,
		TaxTotal:           decimal.Zero,
		Rounding:           in.Rounding,
		AmountPaid:         in.AmountPaid,
	}

	for _, item := range in.Items {
		row := ComputeRow(item)
		t.ItemsGrossTotal = t.ItemsGrossTotal.Add(row.Gross)
		t.ItemsDiscountTotal = t.ItemsDiscountTotal.Add(row.Discount)
		t.ItemsSubtotal = t.ItemsSubtotal.Add(row.Subtotal)
		t.TaxTotal = t.TaxTotal.Add(row.Tax)
	}

	t.InvoiceDiscountTotal = ApplyDiscount(t.ItemsSubtotal, in.InvoiceDiscount)

	grand := t.ItemsSubtotal.
		Sub(t.InvoiceDiscountTotal).
		Add(t.TaxTotal).
		Add(in.Rounding)
	t.GrandTotal = decimal.Max(decimal.Zero, grand)

	if in.IsCreditNote {
		t.GrandTotal = t.GrandTotal.Neg()
		t.Balance = t.GrandTotal.Sub(in.AmountPaid)
		return t
	}

	t.Balance = decimal.Max(decimal.Zero, t.GrandTotal.Sub(in.AmountPaid))
	return t
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
