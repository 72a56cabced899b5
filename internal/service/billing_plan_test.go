package service

import (
	"strings"
	"testing"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/testutil"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingPlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingPlanService
}

func TestBillingPlanService(t *testing.T) {
	suite.Run(t, new(BillingPlanServiceSuite))
}

func (s *BillingPlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewBillingPlanService(newTestParams(&s.BaseServiceTestSuite))
}

func monthlyPlanRequest(code string) dto.CreateBillingPlanRequest {
	return dto.CreateBillingPlanRequest{
		Code: code,
		Source: billingplan.Source{
			ContractID: "contract_1",
			Snapshot: billingplan.Snapshot{
				CustomerID:  "cust_1",
				ServiceName: "Cleaning",
			},
		},
		Schedule: dto.ScheduleRequest{
			Amount:    decimal.NewFromInt(100),
			Currency:  "EUR",
			Period:    types.BillingPeriodMonthly,
			DueRule:   types.DueRule{Type: types.DueRuleDayOfMonth, Day: 1},
			StartDate: date(2025, time.January, 1),
		},
	}
}

func (s *BillingPlanServiceSuite) createPlan(code string) *dto.BillingPlanResponse {
	resp, err := s.service.CreateBillingPlan(s.GetContext(), monthlyPlanRequest(code))
	s.Require().NoError(err)
	return resp
}

func (s *BillingPlanServiceSuite) TestCreateBillingPlan() {
	testCases := []struct {
		name    string
		request func() dto.CreateBillingPlanRequest
		check   func(err error) bool
	}{
		{
			name:    "monthly_plan",
			request: func() dto.CreateBillingPlanRequest { return monthlyPlanRequest("BP-CLEAN") },
		},
		{
			name: "day_out_of_range",
			request: func() dto.CreateBillingPlanRequest {
				req := monthlyPlanRequest("")
				req.Schedule.DueRule.Day = 32
				return req
			},
			check: ierr.IsValidation,
		},
		{
			name: "nth_weekday_on_monthly_period",
			request: func() dto.CreateBillingPlanRequest {
				req := monthlyPlanRequest("")
				req.Schedule.DueRule = types.DueRule{Type: types.DueRuleNthWeekday, Nth: 1, Weekday: 1}
				return req
			},
			check: ierr.IsValidation,
		},
		{
			name: "missing_currency",
			request: func() dto.CreateBillingPlanRequest {
				req := monthlyPlanRequest("")
				req.Schedule.Currency = ""
				return req
			},
			check: ierr.IsValidation,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp, err := s.service.CreateBillingPlan(s.GetContext(), tc.request())
			if tc.check != nil {
				s.Error(err)
				s.True(tc.check(err), "unexpected error: %v", err)
				s.Nil(resp)
				return
			}
			s.NoError(err)
			s.Equal(types.PlanStatusDraft, resp.PlanStatus)
			s.Equal(types.DefaultTenantID, resp.TenantID)
			s.Nil(resp.NextDueAt)
		})
	}
}

func (s *BillingPlanServiceSuite) TestCreateBillingPlan_DefaultsCodeAndTimezone() {
	resp := s.createPlan("")

	s.True(strings.HasPrefix(resp.Code, types.SHORT_ID_PREFIX_BILLING_PLAN), "code %s", resp.Code)
	s.Equal(s.GetConfig().Billing.DefaultTimezone, resp.Schedule.Timezone)
	s.Equal([]string{types.WebhookEventBillingPlanCreated}, s.GetPublishedEvents())
}

func (s *BillingPlanServiceSuite) TestCreateBillingPlan_DuplicateCode() {
	s.createPlan("BP-DUP")

	_, err := s.service.CreateBillingPlan(s.GetContext(), monthlyPlanRequest("BP-DUP"))
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	// codes are unique per tenant only
	_, err = s.service.CreateBillingPlan(s.GetContextForTenant("tenant_other"), monthlyPlanRequest("BP-DUP"))
	s.NoError(err)
}

func (s *BillingPlanServiceSuite) TestUpdateBillingPlanStatus_ActivateSeedsNextDue() {
	plan := s.createPlan("")

	resp, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{
		Status: types.PlanStatusActive,
	})
	s.Require().NoError(err)
	s.Equal(types.PlanStatusActive, resp.PlanStatus)
	s.Require().NotNil(resp.NextDueAt)
	s.True(resp.NextDueAt.Equal(time.Date(2025, time.January, 1, billingplan.DueAnchorHour, 0, 0, 0, time.UTC)))
	s.Require().NotNil(resp.ActivatedAt)
	s.True(resp.ActivatedAt.Equal(fixedNow))

	stored, err := s.GetStores().BillingPlanRepo.Get(s.GetContext(), plan.ID)
	s.Require().NoError(err)
	s.Equal(types.PlanStatusActive, stored.PlanStatus)

	s.Equal([]string{
		types.WebhookEventBillingPlanCreated,
		types.WebhookEventBillingPlanStatusUpdated,
	}, s.GetPublishedEvents())
}

func (s *BillingPlanServiceSuite) TestUpdateBillingPlanStatus_Transitions() {
	testCases := []struct {
		name  string
		path  []types.PlanStatus
		to    types.PlanStatus
		check func(err error) bool
	}{
		{name: "pause_active", path: []types.PlanStatus{types.PlanStatusActive}, to: types.PlanStatusPaused},
		{name: "resume_paused", path: []types.PlanStatus{types.PlanStatusActive, types.PlanStatusPaused}, to: types.PlanStatusActive},
		{name: "end_draft", to: types.PlanStatusEnded},
		{name: "pause_draft", to: types.PlanStatusPaused, check: ierr.IsInvalidState},
		{name: "reactivate_ended", path: []types.PlanStatus{types.PlanStatusEnded}, to: types.PlanStatusActive, check: ierr.IsInvalidState},
		{name: "unknown_status", to: types.PlanStatus("archived"), check: ierr.IsValidation},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			plan := s.createPlan("")
			for _, step := range tc.path {
				_, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: step})
				s.Require().NoError(err)
			}

			resp, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: tc.to})
			if tc.check != nil {
				s.Error(err)
				s.True(tc.check(err), "unexpected error: %v", err)
				return
			}
			s.NoError(err)
			s.Equal(tc.to, resp.PlanStatus)
		})
	}
}

func (s *BillingPlanServiceSuite) TestUpdateBillingPlanStatus_EndClearsNextDue() {
	plan := s.createPlan("")
	_, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusActive})
	s.Require().NoError(err)

	resp, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusEnded})
	s.Require().NoError(err)
	s.Nil(resp.NextDueAt)
}

func (s *BillingPlanServiceSuite) TestUpdateBillingPlan() {
	plan := s.createPlan("")

	newSchedule := monthlyPlanRequest("").Schedule
	newSchedule.DueRule.Day = 15
	resp, err := s.service.UpdateBillingPlan(s.GetContext(), plan.ID, dto.UpdateBillingPlanRequest{
		Schedule: &newSchedule,
		Metadata: types.Metadata{"region": "north"},
	})
	s.Require().NoError(err)
	s.Equal(15, resp.Schedule.DueRule.Day)
	s.Equal("north", resp.Metadata["region"])

	_, err = s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusActive})
	s.Require().NoError(err)

	s.Run("schedule_frozen_once_active", func() {
		_, err := s.service.UpdateBillingPlan(s.GetContext(), plan.ID, dto.UpdateBillingPlanRequest{Schedule: &newSchedule})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("source_editable_while_active", func() {
		source := billingplan.Source{
			ContractID: "contract_2",
			Snapshot:   billingplan.Snapshot{CustomerName: "ACME"},
		}
		resp, err := s.service.UpdateBillingPlan(s.GetContext(), plan.ID, dto.UpdateBillingPlanRequest{Source: &source})
		s.NoError(err)
		s.Equal("contract_2", resp.Source.ContractID)
	})

	s.Run("ended_plan_is_read_only", func() {
		_, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusEnded})
		s.Require().NoError(err)

		_, err = s.service.UpdateBillingPlan(s.GetContext(), plan.ID, dto.UpdateBillingPlanRequest{Metadata: types.Metadata{"a": "b"}})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *BillingPlanServiceSuite) TestAddRevision() {
	plan := s.createPlan("")

	resp, err := s.service.AddRevision(s.GetContext(), plan.ID, dto.AddRevisionRequest{
		Amount:    decimal.NewFromInt(120),
		ValidFrom: date(2025, time.March, 1),
		Note:      "yearly increase",
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Revisions, 1)
	s.True(resp.Revisions[0].CreatedAt.Equal(fixedNow))
	s.True(resp.AmountAt(date(2025, time.March, 1)).Equal(decimal.NewFromInt(120)))
	s.True(resp.AmountAt(date(2025, time.February, 1)).Equal(decimal.NewFromInt(100)))

	s.Run("missing_valid_from", func() {
		_, err := s.service.AddRevision(s.GetContext(), plan.ID, dto.AddRevisionRequest{Amount: decimal.NewFromInt(1)})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("ended_plan", func() {
		_, err := s.service.UpdateBillingPlanStatus(s.GetContext(), plan.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusEnded})
		s.Require().NoError(err)

		_, err = s.service.AddRevision(s.GetContext(), plan.ID, dto.AddRevisionRequest{
			Amount:    decimal.NewFromInt(130),
			ValidFrom: date(2025, time.June, 1),
		})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *BillingPlanServiceSuite) TestDeleteBillingPlan() {
	draft := s.createPlan("")
	s.NoError(s.service.DeleteBillingPlan(s.GetContext(), draft.ID))

	_, err := s.service.GetBillingPlan(s.GetContext(), draft.ID)
	s.True(ierr.IsNotFound(err))

	active := s.createPlan("")
	_, err = s.service.UpdateBillingPlanStatus(s.GetContext(), active.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusActive})
	s.Require().NoError(err)

	err = s.service.DeleteBillingPlan(s.GetContext(), active.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *BillingPlanServiceSuite) TestGetBillingPlan_OtherTenant() {
	plan := s.createPlan("")

	_, err := s.service.GetBillingPlan(s.GetContextForTenant("tenant_other"), plan.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BillingPlanServiceSuite) TestListBillingPlans() {
	for i := 0; i < 3; i++ {
		s.createPlan("")
	}
	active := s.createPlan("")
	_, err := s.service.UpdateBillingPlanStatus(s.GetContext(), active.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusActive})
	s.Require().NoError(err)

	all, err := s.service.ListBillingPlans(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(all.Items, 4)
	s.Equal(4, all.Pagination.Total)

	filter := types.NewBillingPlanFilter()
	filter.PlanStatus = []types.PlanStatus{types.PlanStatusActive}
	onlyActive, err := s.service.ListBillingPlans(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(onlyActive.Items, 1)
	s.Equal(active.ID, onlyActive.Items[0].ID)

	filter = types.NewBillingPlanFilter()
	filter.Limit = lo.ToPtr(2)
	page, err := s.service.ListBillingPlans(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(page.Items, 2)
	s.Equal(4, page.Pagination.Total)
}
