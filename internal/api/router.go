package api

import (
	"github.com/flexprice/billing-engine/internal/api/cron"
	v1 "github.com/flexprice/billing-engine/internal/api/v1"
	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/metrics"
	"github.com/flexprice/billing-engine/internal/rest/middleware"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health      *v1.HealthHandler
	BillingPlan *v1.BillingPlanHandler
	Occurrence  *v1.OccurrenceHandler
	Invoice     *v1.InvoiceHandler
	CronBilling *cron.BillingHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.MetricsMiddleware(m),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1Private := router.Group("/v1")
	v1Private.Use(middleware.TenantMiddleware(cfg))

	billingPlans := v1Private.Group("/billing-plans")
	{
		billingPlans.POST("", handlers.BillingPlan.CreateBillingPlan)
		billingPlans.GET("", handlers.BillingPlan.ListBillingPlans)
		billingPlans.GET("/:id", handlers.BillingPlan.GetBillingPlan)
		billingPlans.PUT("/:id", handlers.BillingPlan.UpdateBillingPlan)
		billingPlans.DELETE("/:id", handlers.BillingPlan.DeleteBillingPlan)
		billingPlans.POST("/:id/status", handlers.BillingPlan.UpdateBillingPlanStatus)
		billingPlans.POST("/:id/revisions", handlers.BillingPlan.AddRevision)
		billingPlans.POST("/:id/generate", handlers.BillingPlan.GenerateOccurrences)
		billingPlans.GET("/:id/occurrences", handlers.Occurrence.ListPlanOccurrences)
		billingPlans.POST("/:id/invoice", handlers.BillingPlan.InvoiceOccurrences)
	}

	occurrences := v1Private.Group("/occurrences")
	{
		occurrences.GET("", handlers.Occurrence.ListOccurrences)
		occurrences.GET("/:id", handlers.Occurrence.GetOccurrence)
		occurrences.POST("/:id/status", handlers.Occurrence.UpdateOccurrenceStatus)
	}

	invoices := v1Private.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.POST("/:id/status", handlers.Invoice.UpdateInvoiceStatus)
		invoices.POST("/:id/payments", handlers.Invoice.RecordPayment)
		invoices.POST("/:id/credit-note", handlers.Invoice.CreateCreditNote)
	}

	// cron routes run across tenants and are not tenant scoped
	cronGroup := router.Group("/v1/cron")
	{
		cronGroup.POST("/billing/generate", handlers.CronBilling.RunDuePlans)
	}

	return router
}
