package dto

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/flexprice/billing-engine/internal/validator"
	"github.com/shopspring/decimal"
)

type ScheduleRequest struct {
	Amount    decimal.Decimal     `json:"amount" validate:"gte=0"`
	Currency  string              `json:"currency" validate:"required,len=3"`
	Period    types.BillingPeriod `json:"period" validate:"required"`
	DueRule   types.DueRule       `json:"due_rule"`
	StartDate time.Time           `json:"start_date" validate:"required"`
	EndDate   *time.Time          `json:"end_date,omitempty"`
	GraceDays int                 `json:"grace_days" validate:"gte=0"`
	// Timezone is an IANA name; empty falls back to the configured default
	Timezone string `json:"timezone,omitempty"`
}

// ToSchedule builds the domain schedule, applying defaultTZ when the request
// leaves the timezone empty
func (r *ScheduleRequest) ToSchedule(defaultTZ string) billingplan.Schedule {
	tz := r.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	return billingplan.Schedule{
		Amount:    r.Amount,
		Currency:  r.Currency,
		Period:    r.Period,
		DueRule:   r.DueRule,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		GraceDays: r.GraceDays,
		Timezone:  tz,
	}
}

type CreateBillingPlanRequest struct {
	// Code is unique per tenant; generated when empty
	Code     string             `json:"code,omitempty" validate:"omitempty,max=64"`
	Source   billingplan.Source `json:"source"`
	Schedule ScheduleRequest    `json:"schedule"`
	Metadata types.Metadata     `json:"metadata,omitempty"`
}

func (r *CreateBillingPlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Schedule.ToSchedule("").Validate()
}

func (r *CreateBillingPlanRequest) ToBillingPlan(ctx context.Context, defaultTZ string) *billingplan.BillingPlan {
	return &billingplan.BillingPlan{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PLAN),
		Code:       r.Code,
		Source:     r.Source,
		Schedule:   r.Schedule.ToSchedule(defaultTZ),
		PlanStatus: types.PlanStatusDraft,
		Metadata:   r.Metadata,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
}

// UpdateBillingPlanRequest carries partial edits. Schedule edits are only
// accepted while the plan is a draft.
type UpdateBillingPlanRequest struct {
	Schedule *ScheduleRequest    `json:"schedule,omitempty"`
	Source   *billingplan.Source `json:"source,omitempty"`
	Metadata types.Metadata      `json:"metadata,omitempty"`
}

func (r *UpdateBillingPlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Schedule != nil {
		return r.Schedule.ToSchedule("").Validate()
	}
	return nil
}

type UpdateBillingPlanStatusRequest struct {
	Status types.PlanStatus `json:"status" validate:"required"`
}

func (r *UpdateBillingPlanStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

type AddRevisionRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"gte=0"`
	ValidFrom time.Time       `json:"valid_from" validate:"required"`
	Note      string          `json:"note,omitempty"`
}

func (r *AddRevisionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *AddRevisionRequest) ToRevision(now time.Time) billingplan.Revision {
	return billingplan.Revision{
		Amount:    r.Amount,
		ValidFrom: r.ValidFrom,
		Note:      r.Note,
		CreatedAt: now,
	}
}

type BillingPlanResponse struct {
	*billingplan.BillingPlan
}

type ListBillingPlansResponse = types.ListResponse[*BillingPlanResponse]

// GenerateOccurrencesRequest drives one generation run. UpTo defaults to now.
type GenerateOccurrencesRequest struct {
	UpTo *time.Time `json:"up_to,omitempty"`
}

type GenerateOccurrencesResponse struct {
	PlanID      string                `json:"plan_id"`
	Occurrences []*OccurrenceResponse `json:"occurrences"`
	NextDueAt   *time.Time            `json:"next_due_at,omitempty"`
	// Exhausted is set once the plan's end date leaves no further window
	Exhausted bool `json:"exhausted"`
	// Concurrent is set when another run persisted the same windows first
	Concurrent bool `json:"concurrent"`
}

type RunDuePlansRequest struct {
	UpTo *time.Time `json:"up_to,omitempty"`
}

type RunDuePlansResponse struct {
	Tenants   int           `json:"tenants,omitempty"`
	Plans     int           `json:"plans"`
	Generated int           `json:"generated"`
	Failed    int           `json:"failed"`
	Failures  []PlanFailure `json:"failures,omitempty"`
}

// PlanFailure records one plan a billing run could not advance
type PlanFailure struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}
