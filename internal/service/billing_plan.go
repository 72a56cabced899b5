package service

import (
	"context"

	"github.com/flexprice/billing-engine/internal/api/dto"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
)

type BillingPlanService interface {
	CreateBillingPlan(ctx context.Context, req dto.CreateBillingPlanRequest) (*dto.BillingPlanResponse, error)
	GetBillingPlan(ctx context.Context, id string) (*dto.BillingPlanResponse, error)
	ListBillingPlans(ctx context.Context, filter *types.BillingPlanFilter) (*dto.ListBillingPlansResponse, error)
	UpdateBillingPlan(ctx context.Context, id string, req dto.UpdateBillingPlanRequest) (*dto.BillingPlanResponse, error)
	UpdateBillingPlanStatus(ctx context.Context, id string, req dto.UpdateBillingPlanStatusRequest) (*dto.BillingPlanResponse, error)
	AddRevision(ctx context.Context, id string, req dto.AddRevisionRequest) (*dto.BillingPlanResponse, error)
	DeleteBillingPlan(ctx context.Context, id string) error
}

type billingPlanService struct {
	ServiceParams
}

func NewBillingPlanService(params ServiceParams) BillingPlanService {
	return &billingPlanService{
		ServiceParams: params,
	}
}

func (s *billingPlanService) CreateBillingPlan(ctx context.Context, req dto.CreateBillingPlanRequest) (*dto.BillingPlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan := req.ToBillingPlan(ctx, s.Config.Billing.DefaultTimezone)
	if plan.Code == "" {
		plan.Code = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_BILLING_PLAN)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := s.BillingPlanRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.Logger.Infow("created billing plan",
		"plan_id", plan.ID,
		"code", plan.Code,
		"period", plan.Schedule.Period,
	)
	s.publishWebhookEvent(ctx, types.WebhookEventBillingPlanCreated, billingPlanEvent(plan))

	return &dto.BillingPlanResponse{BillingPlan: plan}, nil
}

func (s *billingPlanService) GetBillingPlan(ctx context.Context, id string) (*dto.BillingPlanResponse, error) {
	if id == "" {
		return nil, ierr.NewError("billing plan ID is required").
			WithHint("Please provide a valid billing plan ID").
			Mark(ierr.ErrValidation)
	}

	plan, err := s.BillingPlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.BillingPlanResponse{BillingPlan: plan}, nil
}

func (s *billingPlanService) ListBillingPlans(ctx context.Context, filter *types.BillingPlanFilter) (*dto.ListBillingPlansResponse, error) {
	if filter == nil {
		filter = types.NewBillingPlanFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	plans, err := s.BillingPlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.BillingPlanRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	response := &dto.ListBillingPlansResponse{
		Items: make([]*dto.BillingPlanResponse, len(plans)),
		Pagination: types.NewPaginationResponse(
			count,
			filter.GetLimit(),
			filter.GetOffset(),
		),
	}
	for i, plan := range plans {
		response.Items[i] = &dto.BillingPlanResponse{BillingPlan: plan}
	}
	return response, nil
}

// UpdateBillingPlan edits source and metadata until the plan ends. The
// schedule drives occurrence windows, so it is frozen once the plan leaves
// draft; amount changes after that go through revisions.
func (s *billingPlanService) UpdateBillingPlan(ctx context.Context, id string, req dto.UpdateBillingPlanRequest) (*dto.BillingPlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.BillingPlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if plan.PlanStatus == types.PlanStatusEnded {
		return nil, ierr.NewError("billing plan has ended").
			WithHint("An ended billing plan cannot be edited").
			WithReportableDetails(map[string]any{"plan_id": id}).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.Schedule != nil {
		if plan.PlanStatus != types.PlanStatusDraft {
			return nil, ierr.NewError("schedule is frozen").
				WithHint("The schedule can only be changed while the plan is a draft, add a revision to change the amount").
				WithReportableDetails(map[string]any{
					"plan_id": id,
					"status":  plan.PlanStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		plan.Schedule = req.Schedule.ToSchedule(s.Config.Billing.DefaultTimezone)
	}
	if req.Source != nil {
		plan.Source = *req.Source
	}
	if req.Metadata != nil {
		plan.Metadata = req.Metadata
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	plan.Touch(ctx)
	if err := s.BillingPlanRepo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return &dto.BillingPlanResponse{BillingPlan: plan}, nil
}

func (s *billingPlanService) UpdateBillingPlanStatus(ctx context.Context, id string, req dto.UpdateBillingPlanStatusRequest) (*dto.BillingPlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.BillingPlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := plan.PlanStatus
	changed, err := plan.TransitionTo(req.Status, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return &dto.BillingPlanResponse{BillingPlan: plan}, nil
	}

	plan.Touch(ctx)
	if err := s.BillingPlanRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	s.Logger.Infow("billing plan status updated",
		"plan_id", plan.ID,
		"from", from,
		"to", plan.PlanStatus,
		"next_due_at", plan.NextDueAt,
	)
	s.publishWebhookEvent(ctx, types.WebhookEventBillingPlanStatusUpdated, billingPlanEvent(plan))

	return &dto.BillingPlanResponse{BillingPlan: plan}, nil
}

func (s *billingPlanService) AddRevision(ctx context.Context, id string, req dto.AddRevisionRequest) (*dto.BillingPlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.BillingPlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := plan.AddRevision(req.ToRevision(s.now())); err != nil {
		return nil, err
	}

	plan.Touch(ctx)
	if err := s.BillingPlanRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	s.Logger.Infow("added billing plan revision",
		"plan_id", plan.ID,
		"amount", req.Amount.String(),
		"valid_from", req.ValidFrom,
	)
	return &dto.BillingPlanResponse{BillingPlan: plan}, nil
}

// DeleteBillingPlan soft deletes a draft. Plans that ever ran own
// occurrences and are ended instead.
func (s *billingPlanService) DeleteBillingPlan(ctx context.Context, id string) error {
	plan, err := s.BillingPlanRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if plan.PlanStatus != types.PlanStatusDraft {
		return ierr.NewError("only draft billing plans can be deleted").
			WithHint("End the billing plan instead of deleting it").
			WithReportableDetails(map[string]any{
				"plan_id": id,
				"status":  plan.PlanStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	return s.BillingPlanRepo.Delete(ctx, plan)
}
