package billingplan

import (
	"time"

	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
)

// GenerationResult is the output of one generator run
type GenerationResult struct {
	// Occurrences are new, unpersisted occurrences in seq order. ID and
	// BaseModel are left for the caller to fill.
	Occurrences []*occurrence.BillingOccurrence
	// NextDueAt is the due instant of the first window not yet emitted, nil
	// once the plan's end date has been reached
	NextDueAt *time.Time
	// Exhausted is true when every window before the end date exists
	Exhausted bool
}

// GenerateOccurrences computes the occurrences of plan whose window starts
// before upTo, continuing after lastSeq. lastSeq must be the highest seq
// already persisted for the plan; passing it in keeps this function pure and
// makes a repeated call with the same upTo emit nothing.
//
// Window k starts at StartDate + (k-1) periods and ends where window k+1
// starts, or at EndDate for the last window.
func GenerateOccurrences(plan *BillingPlan, lastSeq int, upTo time.Time) (*GenerationResult, error) {
	if plan == nil {
		return nil, ierr.NewError("plan is required").
			Mark(ierr.ErrValidation)
	}
	if lastSeq < 0 {
		return nil, ierr.NewErrorf("last seq %d is negative", lastSeq).
			Mark(ierr.ErrValidation)
	}
	if plan.PlanStatus != types.PlanStatusActive {
		return nil, ierr.NewError("plan is not active").
			WithHintf("Occurrences are only generated for active plans, plan is %s", plan.PlanStatus).
			WithReportableDetails(map[string]any{
				"plan_id": plan.ID,
				"status":  plan.PlanStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	sched := plan.Schedule
	if err := sched.DueRule.ValidateForPeriod(sched.Period); err != nil {
		return nil, err
	}
	loc, err := sched.Location()
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{NextDueAt: plan.NextDueAt}
	start := sched.StartDate.In(loc)
	if start.After(upTo) {
		return result, nil
	}

	windowStart := func(k int) time.Time {
		// Period was validated above; AddBillingPeriods cannot fail here
		t, _ := types.AddBillingPeriods(start, sched.Period, k)
		return t
	}
	beforeEnd := func(t time.Time) bool {
		return sched.EndDate == nil || t.Before(*sched.EndDate)
	}

	seq := lastSeq
	for {
		ws := windowStart(seq)
		if !ws.Before(upTo) || !beforeEnd(ws) {
			break
		}

		we := windowStart(seq + 1)
		if !beforeEnd(we) {
			we = sched.EndDate.In(loc)
		}

		dueAt, err := ComputeNextDue(ws, sched.DueRule, sched.Period)
		if err != nil {
			return nil, err
		}

		seq++
		result.Occurrences = append(result.Occurrences, &occurrence.BillingOccurrence{
			PlanID:           plan.ID,
			Seq:              seq,
			WindowStart:      ws,
			WindowEnd:        we,
			DueAt:            dueAt,
			Amount:           plan.AmountAt(ws),
			Currency:         sched.Currency,
			OccurrenceStatus: types.OccurrenceStatusPending,
		})
	}

	next := windowStart(seq)
	if !beforeEnd(next) {
		result.NextDueAt = nil
		result.Exhausted = true
		return result, nil
	}

	nextDue, err := ComputeNextDue(next, sched.DueRule, sched.Period)
	if err != nil {
		return nil, err
	}
	result.NextDueAt = &nextDue
	return result, nil
}
