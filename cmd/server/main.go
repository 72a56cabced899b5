package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/billing-engine/internal/api"
	"github.com/flexprice/billing-engine/internal/api/cron"
	v1 "github.com/flexprice/billing-engine/internal/api/v1"
	"github.com/flexprice/billing-engine/internal/cache"
	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/metrics"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/repository"
	"github.com/flexprice/billing-engine/internal/scheduler"
	"github.com/flexprice/billing-engine/internal/sentry"
	"github.com/flexprice/billing-engine/internal/service"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/flexprice/billing-engine/internal/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// @title Billing Engine API
// @version 1.0
// @description Recurring billing plans, occurrences and invoices
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey TenantID
// @in header
// @name X-Tenant-ID

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			cache.NewInMemoryCache,
		),
		sentry.Module(),
		metrics.Module(),
		postgres.Module(),
		repository.Module(),
	)

	// Webhook module (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewBillingPlanService,
			service.NewOccurrenceService,
			service.NewInvoiceService,
			service.NewBillingBridgeService,
		),
		scheduler.Module(),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	db *postgres.DB,
	logger *logger.Logger,
	billingPlanService service.BillingPlanService,
	occurrenceService service.OccurrenceService,
	invoiceService service.InvoiceService,
	bridgeService service.BillingBridgeService,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(db, logger),
		BillingPlan: v1.NewBillingPlanHandler(billingPlanService, occurrenceService, bridgeService, logger),
		Occurrence:  v1.NewOccurrenceHandler(occurrenceService, logger),
		Invoice:     v1.NewInvoiceHandler(invoiceService, logger),
		CronBilling: cron.NewBillingHandler(occurrenceService, logger),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	s *scheduler.Scheduler,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		scheduler.RegisterHooks(lc, s)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		if cfg.Billing.SchedulerEnabled {
			scheduler.RegisterHooks(lc, s)
		}
	case types.ModeScheduler:
		if !cfg.Billing.SchedulerEnabled {
			log.Fatal("scheduler mode requires billing.scheduler_enabled")
		}
		scheduler.RegisterHooks(lc, s)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
