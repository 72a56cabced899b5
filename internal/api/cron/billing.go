package cron

import (
	"net/http"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// BillingHandler exposes the billing run so an external scheduler can
// trigger it when the in-process one is disabled
type BillingHandler struct {
	occurrenceService service.OccurrenceService
	logger            *logger.Logger
}

func NewBillingHandler(occurrenceService service.OccurrenceService, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{
		occurrenceService: occurrenceService,
		logger:            logger,
	}
}

// RunDuePlans generates occurrences for every active plan of every tenant
func (h *BillingHandler) RunDuePlans(c *gin.Context) {
	var req dto.RunDuePlansRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	upTo := time.Now().UTC()
	if req.UpTo != nil {
		upTo = req.UpTo.UTC()
	}

	h.logger.Infow("starting billing run cron job", "up_to", upTo.Format(time.RFC3339))

	resp, err := h.occurrenceService.RunAllTenants(c.Request.Context(), upTo)
	if err != nil {
		h.logger.Errorw("billing run cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed billing run cron job",
		"tenants", resp.Tenants,
		"plans", resp.Plans,
		"generated", resp.Generated,
		"failed", resp.Failed,
	)

	c.JSON(http.StatusOK, resp)
}
