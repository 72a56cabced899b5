package billingplan

import (
	"time"

	"github.com/flexprice/billing-engine/internal/types"
)

// DueAnchorHour is the local clock hour every due instant is normalized to
const DueAnchorHour = 9

// ComputeNextDue returns the first due instant strictly after asOf for the
// rule and period. It works in asOf's location; callers convert asOf into the
// plan timezone first. A rule the period cannot support is a validation error
// and there is no fallback.
func ComputeNextDue(asOf time.Time, rule types.DueRule, period types.BillingPeriod) (time.Time, error) {
	if err := rule.ValidateForPeriod(period); err != nil {
		return time.Time{}, err
	}

	loc := asOf.Location()
	y, m, d := asOf.Date()

	switch rule.Type {
	case types.DueRuleDayOfMonth:
		candidate := types.ClampedDay(y, m, rule.Day, DueAnchorHour, loc)
		if candidate.After(asOf) {
			return candidate, nil
		}
		// Step from the first of the month so the clamp always uses rule.Day
		next := time.Date(y, m, 1, 0, 0, 0, 0, loc).AddDate(0, period.Months(), 0)
		return types.ClampedDay(next.Year(), next.Month(), rule.Day, DueAnchorHour, loc), nil

	default: // types.DueRuleNthWeekday, weekly only
		delta := (rule.Weekday - int(asOf.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return time.Date(y, m, d+delta, DueAnchorHour, 0, 0, 0, loc), nil
	}
}
