package scheduler

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/metrics"
	"github.com/flexprice/billing-engine/internal/sentry"
	"github.com/flexprice/billing-engine/internal/service"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

// Scheduler drives the billing run on a cron spec so occurrences are
// generated without an external trigger
type Scheduler struct {
	cron              *cron.Cron
	config            *config.BillingConfig
	occurrenceService service.OccurrenceService
	sentry            *sentry.Service
	metrics           *metrics.Metrics
	logger            *logger.Logger
	clock             func() time.Time
}

// Module provides the scheduler. Whether it runs depends on the deployment
// mode, so callers invoke RegisterHooks themselves.
func Module() fx.Option {
	return fx.Provide(NewScheduler)
}

func NewScheduler(
	cfg *config.Configuration,
	occurrenceService service.OccurrenceService,
	sentry *sentry.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Scheduler {
	cronLog := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
		config:            &cfg.Billing,
		occurrenceService: occurrenceService,
		sentry:            sentry,
		metrics:           metrics,
		logger:            logger,
		clock:             time.Now,
	}
}

func RegisterHooks(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: s.Stop,
	})
}

// Start registers the billing job and starts the cron loop. It is a no-op
// when the scheduler is disabled.
func (s *Scheduler) Start() error {
	if !s.config.SchedulerEnabled {
		s.logger.Info("billing scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.SchedulerSpec, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infow("billing scheduler started", "spec", s.config.SchedulerSpec)
	return nil
}

// Stop waits for a running job to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("billing scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs the billing run for every tenant with an active plan
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := s.clock()
	upTo := start.UTC()

	s.logger.Infow("starting scheduled billing run", "up_to", upTo.Format(time.RFC3339))

	span, ctx := s.sentry.StartTransaction(ctx, "billing.run")
	if span != nil {
		defer span.Finish()
	}

	resp, err := s.occurrenceService.RunAllTenants(ctx, upTo)
	s.metrics.BillingRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.BillingRunsTotal.WithLabelValues("error").Inc()
		s.sentry.CaptureException(err)
		s.logger.Errorw("scheduled billing run failed", "error", err)
		return
	}

	s.metrics.BillingPlansProcessed.Add(float64(resp.Plans))
	s.metrics.OccurrencesGeneratedTotal.Add(float64(resp.Generated))
	s.metrics.BillingPlanFailuresTotal.Add(float64(resp.Failed))

	for _, f := range resp.Failures {
		s.sentry.CapturePlanError(types.SetTenantID(ctx, f.TenantID), f.PlanID, f.Err)
	}

	result := "success"
	if len(resp.Failures) > 0 {
		result = "partial"
	}
	s.metrics.BillingRunsTotal.WithLabelValues(result).Inc()

	s.logger.Infow("completed scheduled billing run",
		"tenants", resp.Tenants,
		"plans", resp.Plans,
		"generated", resp.Generated,
		"failed", resp.Failed,
	)
}

// cronLogger adapts the zap logger to cron.Logger
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
