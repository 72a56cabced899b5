package service

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
)

type OccurrenceService interface {
	// GenerateOccurrences persists every window of the plan that starts
	// before upTo and has not been generated yet
	GenerateOccurrences(ctx context.Context, planID string, upTo time.Time) (*dto.GenerateOccurrencesResponse, error)

	// RunDuePlans generates for every active plan of the tenant in ctx
	RunDuePlans(ctx context.Context, upTo time.Time) (*dto.RunDuePlansResponse, error)

	// RunAllTenants runs RunDuePlans once for every tenant with an active plan
	RunAllTenants(ctx context.Context, upTo time.Time) (*dto.RunDuePlansResponse, error)

	ListOccurrences(ctx context.Context, filter *types.OccurrenceFilter) (*dto.ListOccurrencesResponse, error)
	GetOccurrence(ctx context.Context, id string) (*dto.OccurrenceResponse, error)
	UpdateOccurrenceStatus(ctx context.Context, id string, req dto.UpdateOccurrenceStatusRequest) (*dto.OccurrenceResponse, error)
}

type occurrenceService struct {
	ServiceParams
}

func NewOccurrenceService(params ServiceParams) OccurrenceService {
	return &occurrenceService{
		ServiceParams: params,
	}
}

func (s *occurrenceService) GenerateOccurrences(ctx context.Context, planID string, upTo time.Time) (*dto.GenerateOccurrencesResponse, error) {
	if planID == "" {
		return nil, ierr.NewError("billing plan ID is required").
			WithHint("Please provide a valid billing plan ID").
			Mark(ierr.ErrValidation)
	}
	if upTo.IsZero() {
		upTo = s.now()
	}

	var (
		plan      *billingplan.BillingPlan
		persisted []*occurrence.BillingOccurrence
		response  *dto.GenerateOccurrencesResponse
	)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.BillingPlanRepo.Get(ctx, planID)
		if err != nil {
			return err
		}

		// The stored max seq is the only source of truth for where the
		// previous run stopped.
		lastSeq, err := s.OccurrenceRepo.GetMaxSeq(ctx, plan.ID)
		if err != nil {
			return err
		}

		result, err := billingplan.GenerateOccurrences(plan, lastSeq, upTo)
		if err != nil {
			if ierr.IsValidation(err) {
				s.Logger.Errorw("billing plan has an invalid schedule",
					"plan_id", plan.ID,
					"period", plan.Schedule.Period,
					"due_rule", plan.Schedule.DueRule,
					"error", err,
				)
			}
			return err
		}

		concurrent := false
		for _, o := range result.Occurrences {
			o.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_OCCURRENCE)
			o.BaseModel = types.GetDefaultBaseModel(ctx)

			// Each insert runs in its own savepoint so a duplicate does not
			// poison the surrounding transaction.
			err := s.DB.WithTx(ctx, func(ctx context.Context) error {
				return s.OccurrenceRepo.Create(ctx, o)
			})
			if ierr.IsAlreadyExists(err) {
				s.Logger.Infow("occurrence already generated by a concurrent run",
					"plan_id", plan.ID,
					"seq", o.Seq,
				)
				concurrent = true
				break
			}
			if err != nil {
				return err
			}
			persisted = append(persisted, o)
		}

		if concurrent {
			// The other run owns the plan pointers; report what it stored.
			fresh, err := s.BillingPlanRepo.Get(ctx, plan.ID)
			if err != nil {
				return err
			}
			response = &dto.GenerateOccurrencesResponse{
				PlanID:      plan.ID,
				Occurrences: dto.NewOccurrenceResponses(persisted),
				NextDueAt:   fresh.NextDueAt,
				Concurrent:  true,
			}
			return nil
		}

		// Only the run pointers are written back. A plan paused or revised
		// since it was read fails here and the run rolls back.
		runAt := upTo
		plan.LastRunAt = &runAt
		plan.NextDueAt = result.NextDueAt
		plan.Touch(ctx)
		if err := s.BillingPlanRepo.UpdateRunPointers(ctx, plan); err != nil {
			if ierr.IsInvalidState(err) {
				s.Logger.Warnw("billing plan changed during the run",
					"plan_id", plan.ID,
					"error", err,
				)
			}
			return err
		}

		response = &dto.GenerateOccurrencesResponse{
			PlanID:      plan.ID,
			Occurrences: dto.NewOccurrenceResponses(persisted),
			NextDueAt:   result.NextDueAt,
			Exhausted:   result.Exhausted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(persisted) > 0 {
		s.Logger.Infow("generated billing occurrences",
			"plan_id", plan.ID,
			"count", len(persisted),
			"first_seq", persisted[0].Seq,
			"last_seq", persisted[len(persisted)-1].Seq,
			"next_due_at", response.NextDueAt,
		)
		s.publishWebhookEvent(ctx, types.WebhookEventBillingOccurrenceGenerated,
			occurrenceEvent(plan.ID, plan.TenantID, persisted))
	}

	return response, nil
}

func (s *occurrenceService) RunDuePlans(ctx context.Context, upTo time.Time) (*dto.RunDuePlansResponse, error) {
	if upTo.IsZero() {
		upTo = s.now()
	}

	filter := types.NewNoLimitBillingPlanFilter()
	filter.PlanStatus = []types.PlanStatus{types.PlanStatusActive}

	plans, err := s.BillingPlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &dto.RunDuePlansResponse{Plans: len(plans)}
	for _, plan := range plans {
		res, err := s.GenerateOccurrences(ctx, plan.ID, upTo)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, dto.PlanFailure{
				TenantID: plan.TenantID,
				PlanID:   plan.ID,
				Error:    err.Error(),
				Err:      err,
			})
			s.Logger.Errorw("failed to generate occurrences for billing plan",
				"plan_id", plan.ID,
				"tenant_id", plan.TenantID,
				"error", err,
			)
			continue
		}
		summary.Generated += len(res.Occurrences)
	}

	s.Logger.Infow("billing run completed",
		"tenant_id", types.GetTenantID(ctx),
		"up_to", upTo,
		"plans", summary.Plans,
		"generated", summary.Generated,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *occurrenceService) RunAllTenants(ctx context.Context, upTo time.Time) (*dto.RunDuePlansResponse, error) {
	if upTo.IsZero() {
		upTo = s.now()
	}

	tenants, err := s.BillingPlanRepo.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}

	total := &dto.RunDuePlansResponse{Tenants: len(tenants)}
	for _, tenantID := range tenants {
		tenantCtx := types.SetTenantID(ctx, tenantID)
		summary, err := s.RunDuePlans(tenantCtx, upTo)
		if err != nil {
			// a tenant whose plans cannot be listed must not stop the others
			s.Logger.Errorw("billing run failed for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			total.Failures = append(total.Failures, dto.PlanFailure{
				TenantID: tenantID,
				Error:    err.Error(),
				Err:      err,
			})
			continue
		}
		total.Plans += summary.Plans
		total.Generated += summary.Generated
		total.Failed += summary.Failed
		total.Failures = append(total.Failures, summary.Failures...)
	}
	return total, nil
}

func (s *occurrenceService) ListOccurrences(ctx context.Context, filter *types.OccurrenceFilter) (*dto.ListOccurrencesResponse, error) {
	if filter == nil {
		filter = types.NewOccurrenceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	items, err := s.OccurrenceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.OccurrenceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	response := types.NewListResponse(
		dto.NewOccurrenceResponses(items),
		count,
		filter.GetLimit(),
		filter.GetOffset(),
	)
	return &response, nil
}

func (s *occurrenceService) GetOccurrence(ctx context.Context, id string) (*dto.OccurrenceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("occurrence ID is required").
			WithHint("Please provide a valid occurrence ID").
			Mark(ierr.ErrValidation)
	}

	o, err := s.OccurrenceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.OccurrenceResponse{BillingOccurrence: o}, nil
}

func (s *occurrenceService) UpdateOccurrenceStatus(ctx context.Context, id string, req dto.UpdateOccurrenceStatusRequest) (*dto.OccurrenceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o, err := s.OccurrenceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := o.OccurrenceStatus
	changed, err := o.TransitionTo(req.Status, nil)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &dto.OccurrenceResponse{BillingOccurrence: o}, nil
	}

	o.Touch(ctx)
	if err := s.OccurrenceRepo.Update(ctx, o, from); err != nil {
		return nil, err
	}

	s.publishWebhookEvent(ctx, types.WebhookEventBillingOccurrenceStatusUpdated,
		occurrenceEvent(o.PlanID, o.TenantID, []*occurrence.BillingOccurrence{o}))
	return &dto.OccurrenceResponse{BillingOccurrence: o}, nil
}
