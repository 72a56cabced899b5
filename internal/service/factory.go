package service

import (
	"time"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	webhookPublisher "github.com/flexprice/billing-engine/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	BillingPlanRepo billingplan.Repository
	OccurrenceRepo  occurrence.Repository
	InvoiceRepo     invoice.Repository

	// Publishers
	WebhookPublisher webhookPublisher.WebhookPublisher

	// Clock returns the current time; nil means time.Now
	Clock func() time.Time
}

// NewServiceParams creates a new ServiceParams struct
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	billingPlanRepo billingplan.Repository,
	occurrenceRepo occurrence.Repository,
	invoiceRepo invoice.Repository,
	webhookPublisher webhookPublisher.WebhookPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		BillingPlanRepo:  billingPlanRepo,
		OccurrenceRepo:   occurrenceRepo,
		InvoiceRepo:      invoiceRepo,
		WebhookPublisher: webhookPublisher,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}
