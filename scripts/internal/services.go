package internal

import (
	"fmt"

	"github.com/flexprice/billing-engine/internal/cache"
	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/repository"
	"github.com/flexprice/billing-engine/internal/sentry"
	"github.com/flexprice/billing-engine/internal/service"
)

// scriptServices is the service graph scripts run against. Webhooks are not
// published from scripts.
type scriptServices struct {
	log            *logger.Logger
	db             *postgres.DB
	billingPlanSvc service.BillingPlanService
	occurrenceSvc  service.OccurrenceService
}

func newScriptServices() (*scriptServices, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	client := postgres.NewSentryClient(postgres.NewClient(db), sentry.NewSentryService(cfg, log), log)
	cacheClient := cache.NewInMemoryCache(cfg)

	params := service.ServiceParams{
		Logger:          log,
		Config:          cfg,
		DB:              client,
		BillingPlanRepo: repository.NewBillingPlanRepository(db, log, cacheClient),
		OccurrenceRepo:  repository.NewOccurrenceRepository(db, log),
		InvoiceRepo:     repository.NewInvoiceRepository(db, log),
	}

	return &scriptServices{
		log:            log,
		db:             db,
		billingPlanSvc: service.NewBillingPlanService(params),
		occurrenceSvc:  service.NewOccurrenceService(params),
	}, nil
}
