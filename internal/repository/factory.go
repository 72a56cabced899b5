package repository

import (
	"github.com/flexprice/billing-engine/internal/cache"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	postgresRepo "github.com/flexprice/billing-engine/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides every repository the services depend on
func Module() fx.Option {
	return fx.Provide(
		NewBillingPlanRepository,
		NewOccurrenceRepository,
		NewInvoiceRepository,
	)
}

func NewBillingPlanRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) billingplan.Repository {
	return postgresRepo.NewBillingPlanRepository(db, logger, cache)
}

func NewOccurrenceRepository(db *postgres.DB, logger *logger.Logger) occurrence.Repository {
	return postgresRepo.NewOccurrenceRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}
