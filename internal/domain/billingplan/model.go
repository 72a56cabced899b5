package billingplan

import (
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/shopspring/decimal"
)

// BillingPlan is a recurring billing contract derived from a source agreement
type BillingPlan struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Source      Source           `json:"source"`
	Schedule    Schedule         `json:"schedule"`
	PlanStatus  types.PlanStatus `json:"plan_status"`
	LastRunAt   *time.Time       `json:"last_run_at,omitempty"`
	NextDueAt   *time.Time       `json:"next_due_at,omitempty"`
	ActivatedAt *time.Time       `json:"activated_at,omitempty"`
	Revisions   []Revision       `json:"revisions,omitempty"`
	Metadata    types.Metadata   `json:"metadata,omitempty"`
	types.BaseModel
}

// Source points back at the agreement the plan bills for. Snapshot is
// denormalized so plans can be displayed without joins.
type Source struct {
	ContractID     string   `json:"contract_id,omitempty"`
	ContractLineID string   `json:"contract_line_id,omitempty"`
	Snapshot       Snapshot `json:"snapshot"`
}

type Snapshot struct {
	CustomerID   string              `json:"customer_id,omitempty"`
	CustomerName string              `json:"customer_name,omitempty"`
	PropertyID   string              `json:"property_id,omitempty"`
	PropertyName string              `json:"property_name,omitempty"`
	ServiceName  string              `json:"service_name,omitempty"`
	Title        types.LocalizedText `json:"title,omitempty"`
}

// Schedule holds the recurrence parameters of a plan
type Schedule struct {
	Amount    decimal.Decimal     `json:"amount"`
	Currency  string              `json:"currency"`
	Period    types.BillingPeriod `json:"period"`
	DueRule   types.DueRule       `json:"due_rule"`
	StartDate time.Time           `json:"start_date"`
	EndDate   *time.Time          `json:"end_date,omitempty"`
	GraceDays int                 `json:"grace_days"`
	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Revision is one entry of the plan's append-only price history
type Revision struct {
	Amount    decimal.Decimal `json:"amount"`
	ValidFrom time.Time       `json:"valid_from"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Location resolves the schedule's timezone
func (s Schedule) Location() (*time.Location, error) {
	loc, err := types.LoadLocation(s.Timezone)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Unknown timezone %q", s.Timezone).
			Mark(ierr.ErrValidation)
	}
	return loc, nil
}

func (s Schedule) Validate() error {
	if s.Amount.IsNegative() {
		return ierr.NewError("schedule amount must not be negative").
			WithHint("Plan amount must be zero or greater").
			WithReportableDetails(map[string]any{
				"amount": s.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if len(s.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a 3-letter ISO 4217 code").
			WithReportableDetails(map[string]any{
				"currency": s.Currency,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := s.DueRule.ValidateForPeriod(s.Period); err != nil {
		return err
	}
	if s.StartDate.IsZero() {
		return ierr.NewError("start date is required").
			WithHint("Please provide a start date").
			Mark(ierr.ErrValidation)
	}
	if s.EndDate != nil && !s.EndDate.After(s.StartDate) {
		return ierr.NewError("end date must be after start date").
			WithHint("End date must be after the start date").
			WithReportableDetails(map[string]any{
				"start_date": s.StartDate,
				"end_date":   *s.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}
	if s.GraceDays < 0 {
		return ierr.NewError("grace days must not be negative").
			WithHint("Grace days must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

func (p *BillingPlan) Validate() error {
	if p.Code == "" {
		return ierr.NewError("code is required").
			WithHint("Please provide a plan code").
			Mark(ierr.ErrValidation)
	}
	if err := p.PlanStatus.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return p.Schedule.Validate()
}

// AmountAt returns the amount billed for a period starting at t: the latest
// revision effective at t, or the schedule amount when none is. Among
// revisions with the same ValidFrom the one appended last wins.
func (p *BillingPlan) AmountAt(t time.Time) decimal.Decimal {
	best := -1
	for i, r := range p.Revisions {
		if r.ValidFrom.After(t) {
			continue
		}
		if best < 0 || !r.ValidFrom.Before(p.Revisions[best].ValidFrom) {
			best = i
		}
	}
	if best < 0 {
		return p.Schedule.Amount
	}
	return p.Revisions[best].Amount
}

// AddRevision appends a price change. History is never rewritten.
func (p *BillingPlan) AddRevision(r Revision) error {
	if p.PlanStatus == types.PlanStatusEnded {
		return ierr.NewError("plan has ended").
			WithHint("Revisions cannot be added to an ended plan").
			Mark(ierr.ErrInvalidOperation)
	}
	if r.ValidFrom.IsZero() {
		return ierr.NewError("valid_from is required").
			WithHint("Please provide the date the new amount takes effect").
			Mark(ierr.ErrValidation)
	}
	if r.Amount.IsNegative() {
		return ierr.NewError("revision amount must not be negative").
			WithHint("Revision amount must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	p.Revisions = append(p.Revisions, r)
	return nil
}

// DueWithGrace returns the payment deadline for something due at dueAt
func (p *BillingPlan) DueWithGrace(dueAt time.Time) time.Time {
	return dueAt.AddDate(0, 0, p.Schedule.GraceDays)
}
