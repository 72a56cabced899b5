package types

import (
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DiscountType is how a discount value is interpreted
type DiscountType string

const (
	// DiscountTypeRate is a percentage of the base, 0 to 100
	DiscountTypeRate DiscountType = "rate"
	// DiscountTypeAmount is a fixed amount in the invoice currency
	DiscountTypeAmount DiscountType = "amount"
)

func (t DiscountType) String() string {
	return string(t)
}

func (t DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypeRate,
		DiscountTypeAmount,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be rate or amount").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"type":    t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Discount is a row-level or invoice-level reduction
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

var oneHundred = decimal.NewFromInt(100)

// Validate rejects values outside the documented ranges. A rate must lie in
// [0,100]; an amount must not be negative. An amount larger than the base it
// is applied to is accepted here and capped when the discount is applied.
func (d *Discount) Validate() error {
	if d == nil {
		return nil
	}
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if d.Value.IsNegative() {
		return ierr.NewError("discount value must not be negative").
			WithHint("Discount value must be zero or greater").
			WithReportableDetails(map[string]any{
				"value": d.Value.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if d.Type == DiscountTypeRate && d.Value.GreaterThan(oneHundred) {
		return ierr.NewError("discount rate above 100").
			WithHint("Discount rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"value": d.Value.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidatePercentage checks a tax rate or similar percentage lies in [0,100]
func ValidatePercentage(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() || v.GreaterThan(oneHundred) {
		return ierr.NewErrorf("%s out of range", field).
			WithHintf("%s must be between 0 and 100", field).
			WithReportableDetails(map[string]any{
				"field": field,
				"value": v.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
