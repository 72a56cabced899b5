package billingplan

import (
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
)

// planTransition is the side effect of an allowed transition. A nil entry
// means the transition only changes the status.
type planTransition func(p *BillingPlan, now time.Time) error

var transitions = map[types.PlanStatus]map[types.PlanStatus]planTransition{
	types.PlanStatusDraft: {
		types.PlanStatusActive: activate,
		types.PlanStatusEnded:  end,
	},
	types.PlanStatusActive: {
		types.PlanStatusPaused: nil,
		types.PlanStatusEnded:  end,
	},
	types.PlanStatusPaused: {
		types.PlanStatusActive: activate,
		types.PlanStatusEnded:  end,
	},
	types.PlanStatusEnded: {},
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to types.PlanStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionTo applies the lifecycle table to the plan. It returns false with
// no error for a same-state request. Rejected requests leave the plan as it was.
func (p *BillingPlan) TransitionTo(to types.PlanStatus, now time.Time) (bool, error) {
	if err := to.Validate(); err != nil {
		return false, err
	}
	if p.PlanStatus == to {
		return false, nil
	}

	effect, ok := transitions[p.PlanStatus][to]
	if !ok {
		return false, ierr.NewError("billing plan status transition not allowed").
			WithHintf("Cannot move billing plan from %s to %s", p.PlanStatus, to).
			WithReportableDetails(map[string]any{
				"from": p.PlanStatus,
				"to":   to,
			}).
			Mark(ierr.ErrInvalidState)
	}
	if effect != nil {
		if err := effect(p, now); err != nil {
			return false, err
		}
	}
	p.PlanStatus = to
	return true, nil
}

// activate seeds NextDueAt with the due instant of the first window the
// first time the plan becomes active
func activate(p *BillingPlan, now time.Time) error {
	if err := p.Schedule.Validate(); err != nil {
		return err
	}
	if p.NextDueAt == nil {
		loc, err := p.Schedule.Location()
		if err != nil {
			return err
		}
		due, err := ComputeNextDue(p.Schedule.StartDate.In(loc), p.Schedule.DueRule, p.Schedule.Period)
		if err != nil {
			return err
		}
		p.NextDueAt = &due
	}
	if p.ActivatedAt == nil {
		activatedAt := now
		p.ActivatedAt = &activatedAt
	}
	return nil
}

func end(p *BillingPlan, _ time.Time) error {
	p.NextDueAt = nil
	return nil
}
