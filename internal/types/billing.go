package types

import (
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the recurrence length of a billing plan
type BillingPeriod string

const (
	BillingPeriodWeekly    BillingPeriod = "weekly"
	BillingPeriodMonthly   BillingPeriod = "monthly"
	BillingPeriodQuarterly BillingPeriod = "quarterly"
	BillingPeriodYearly    BillingPeriod = "yearly"
)

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BillingPeriodWeekly,
		BillingPeriodMonthly,
		BillingPeriodQuarterly,
		BillingPeriodYearly,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be weekly, monthly, quarterly or yearly").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"period":  p,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Months returns the length of a calendar-month based period, 0 for weekly
func (p BillingPeriod) Months() int {
	switch p {
	case BillingPeriodMonthly:
		return 1
	case BillingPeriodQuarterly:
		return 3
	case BillingPeriodYearly:
		return 12
	default:
		return 0
	}
}

// DueRuleType selects how a due date is derived from a period
type DueRuleType string

const (
	// DueRuleDayOfMonth bills on a fixed day of the month, clamped to short months
	DueRuleDayOfMonth DueRuleType = "dayOfMonth"
	// DueRuleNthWeekday bills on a weekday. Only weekly periods support it.
	DueRuleNthWeekday DueRuleType = "nthWeekday"
)

// DueRule is the declarative recurrence rule of a billing plan
type DueRule struct {
	Type DueRuleType `json:"type"`
	// Day is the day of month for dayOfMonth rules, 1..31
	Day int `json:"day,omitempty"`
	// Nth is kept for nthWeekday rules, 1..5. Weekly periods ignore it.
	Nth int `json:"nth,omitempty"`
	// Weekday is 0 (Sunday) through 6 (Saturday)
	Weekday int `json:"weekday"`
}

// Validate checks the rule in isolation
func (r DueRule) Validate() error {
	switch r.Type {
	case DueRuleDayOfMonth:
		if r.Day < 1 || r.Day > 31 {
			return invalidDueRule(r, "Due day must be between 1 and 31")
		}
	case DueRuleNthWeekday:
		if r.Weekday < int(time.Sunday) || r.Weekday > int(time.Saturday) {
			return invalidDueRule(r, "Due weekday must be between 0 (Sunday) and 6 (Saturday)")
		}
		if r.Nth < 1 || r.Nth > 5 {
			return invalidDueRule(r, "Due nth must be between 1 and 5")
		}
	default:
		return invalidDueRule(r, "Due rule type must be dayOfMonth or nthWeekday")
	}
	return nil
}

// ValidateForPeriod checks the rule and that the period supports it
func (r DueRule) ValidateForPeriod(p BillingPeriod) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	switch {
	case r.Type == DueRuleDayOfMonth && p == BillingPeriodWeekly:
		return invalidDueRule(r, "A dayOfMonth due rule needs a monthly, quarterly or yearly period")
	case r.Type == DueRuleNthWeekday && p != BillingPeriodWeekly:
		return invalidDueRule(r, "An nthWeekday due rule is only supported for weekly periods")
	}
	return nil
}

func invalidDueRule(r DueRule, hint string) error {
	return ierr.NewError("invalid due rule").
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"type":    r.Type,
			"day":     r.Day,
			"nth":     r.Nth,
			"weekday": r.Weekday,
		}).
		Mark(ierr.ErrValidation)
}

// PlanStatus is the lifecycle state of a billing plan
type PlanStatus string

const (
	PlanStatusDraft  PlanStatus = "draft"
	PlanStatusActive PlanStatus = "active"
	PlanStatusPaused PlanStatus = "paused"
	PlanStatusEnded  PlanStatus = "ended"
)

func (s PlanStatus) String() string {
	return string(s)
}

func (s PlanStatus) Validate() error {
	allowed := []PlanStatus{
		PlanStatusDraft,
		PlanStatusActive,
		PlanStatusPaused,
		PlanStatusEnded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid billing plan status").
			WithHint("Please provide a valid billing plan status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}

// OccurrenceStatus is the lifecycle state of one billed period
type OccurrenceStatus string

const (
	OccurrenceStatusPending  OccurrenceStatus = "pending"
	OccurrenceStatusInvoiced OccurrenceStatus = "invoiced"
	OccurrenceStatusSkipped  OccurrenceStatus = "skipped"
	OccurrenceStatusCanceled OccurrenceStatus = "canceled"
)

func (s OccurrenceStatus) String() string {
	return string(s)
}

func (s OccurrenceStatus) Validate() error {
	allowed := []OccurrenceStatus{
		OccurrenceStatusPending,
		OccurrenceStatusInvoiced,
		OccurrenceStatusSkipped,
		OccurrenceStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid occurrence status").
			WithHint("Please provide a valid occurrence status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}

// BillingPlanFilter represents filters for billing plan queries
type BillingPlanFilter struct {
	*QueryFilter

	PlanIDs    []string     `json:"plan_ids,omitempty" form:"plan_ids"`
	PlanStatus []PlanStatus `json:"plan_status,omitempty" form:"plan_status"`
	ContractID string       `json:"contract_id,omitempty" form:"contract_id"`
	CustomerID string       `json:"customer_id,omitempty" form:"customer_id"`
}

// NewBillingPlanFilter creates a new BillingPlanFilter with default values
func NewBillingPlanFilter() *BillingPlanFilter {
	return &BillingPlanFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitBillingPlanFilter creates a new BillingPlanFilter with no pagination limits
func NewNoLimitBillingPlanFilter() *BillingPlanFilter {
	return &BillingPlanFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *BillingPlanFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	for _, s := range f.PlanStatus {
		if err := s.Validate(); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// OccurrenceFilter represents filters for billing occurrence queries
type OccurrenceFilter struct {
	*QueryFilter

	PlanID           string             `json:"plan_id,omitempty" form:"plan_id"`
	OccurrenceIDs    []string           `json:"occurrence_ids,omitempty" form:"occurrence_ids"`
	OccurrenceStatus []OccurrenceStatus `json:"occurrence_status,omitempty" form:"occurrence_status"`
}

// NewOccurrenceFilter creates a new OccurrenceFilter with default values
func NewOccurrenceFilter() *OccurrenceFilter {
	return &OccurrenceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitOccurrenceFilter creates a new OccurrenceFilter with no pagination limits
func NewNoLimitOccurrenceFilter() *OccurrenceFilter {
	return &OccurrenceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *OccurrenceFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	for _, s := range f.OccurrenceStatus {
		if err := s.Validate(); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrValidation)
		}
	}
	return nil
}
