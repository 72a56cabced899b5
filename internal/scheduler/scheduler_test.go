package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/metrics"
	"github.com/flexprice/billing-engine/internal/sentry"
	"github.com/flexprice/billing-engine/internal/service"
	"github.com/flexprice/billing-engine/internal/testutil"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SchedulerSuite struct {
	testutil.BaseServiceTestSuite
	scheduler *Scheduler
	plans     service.BillingPlanService
	metrics   *metrics.Metrics
}

func TestScheduler(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	params := service.ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		BillingPlanRepo:  stores.BillingPlanRepo,
		OccurrenceRepo:   stores.OccurrenceRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		WebhookPublisher: s.GetWebhookPublisher(),
		Clock:            func() time.Time { return now },
	}
	s.plans = service.NewBillingPlanService(params)
	s.metrics = metrics.NewMetrics(prometheus.NewRegistry())

	cfg := s.GetConfig()
	s.scheduler = NewScheduler(cfg, service.NewOccurrenceService(params),
		sentry.NewSentryService(cfg, s.GetLogger()), s.metrics, s.GetLogger())
	s.scheduler.clock = func() time.Time { return now }
}

func (s *SchedulerSuite) activePlan(ctx context.Context) *billingplan.BillingPlan {
	created, err := s.plans.CreateBillingPlan(ctx, dto.CreateBillingPlanRequest{
		Source: billingplan.Source{
			ContractID: "contract_1",
			Snapshot:   billingplan.Snapshot{CustomerID: "cust_1", ServiceName: "Cleaning"},
		},
		Schedule: dto.ScheduleRequest{
			Amount:    decimal.NewFromInt(100),
			Currency:  "EUR",
			Period:    types.BillingPeriodMonthly,
			DueRule:   types.DueRule{Type: types.DueRuleDayOfMonth, Day: 1},
			StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	s.Require().NoError(err)
	resp, err := s.plans.UpdateBillingPlanStatus(ctx, created.ID, dto.UpdateBillingPlanStatusRequest{Status: types.PlanStatusActive})
	s.Require().NoError(err)
	return resp.BillingPlan
}

func (s *SchedulerSuite) TestRunOnce() {
	s.activePlan(s.GetContext())
	s.activePlan(s.GetContextForTenant("tenant_b"))

	broken := s.activePlan(s.GetContextForTenant("tenant_b"))
	broken.Schedule.Timezone = "Mars/Olympus_Mons"
	s.Require().NoError(s.GetStores().BillingPlanRepo.Update(s.GetContextForTenant("tenant_b"), broken))

	s.scheduler.RunOnce(context.Background())

	s.Equal(float64(3), promtest.ToFloat64(s.metrics.BillingPlansProcessed))
	s.Equal(float64(6), promtest.ToFloat64(s.metrics.OccurrencesGeneratedTotal))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.BillingPlanFailuresTotal))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.BillingRunsTotal.WithLabelValues("partial")))

	// a second run at the same instant finds nothing new
	s.scheduler.RunOnce(context.Background())
	s.Equal(float64(6), promtest.ToFloat64(s.metrics.OccurrencesGeneratedTotal))
}

func (s *SchedulerSuite) TestStart_Disabled() {
	s.scheduler.config.SchedulerEnabled = false
	s.NoError(s.scheduler.Start())
	s.Empty(s.scheduler.cron.Entries())
	s.NoError(s.scheduler.Stop(context.Background()))
}

func (s *SchedulerSuite) TestStart_InvalidSpec() {
	s.scheduler.config.SchedulerEnabled = true
	s.scheduler.config.SchedulerSpec = "every now and then"
	s.Error(s.scheduler.Start())
}

func (s *SchedulerSuite) TestStart_RegistersJob() {
	s.scheduler.config.SchedulerEnabled = true
	s.scheduler.config.SchedulerSpec = "*/15 * * * *"
	s.Require().NoError(s.scheduler.Start())
	s.Len(s.scheduler.cron.Entries(), 1)
	s.NoError(s.scheduler.Stop(context.Background()))
}
