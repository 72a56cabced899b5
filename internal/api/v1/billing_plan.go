package v1

import (
	"net/http"

	"github.com/flexprice/billing-engine/internal/api/dto"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/service"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/gin-gonic/gin"
)

type BillingPlanHandler struct {
	service           service.BillingPlanService
	occurrenceService service.OccurrenceService
	bridgeService     service.BillingBridgeService
	log               *logger.Logger
}

func NewBillingPlanHandler(
	service service.BillingPlanService,
	occurrenceService service.OccurrenceService,
	bridgeService service.BillingBridgeService,
	log *logger.Logger,
) *BillingPlanHandler {
	return &BillingPlanHandler{
		service:           service,
		occurrenceService: occurrenceService,
		bridgeService:     bridgeService,
		log:               log,
	}
}

// @Summary Create a billing plan
// @Description Create a draft billing plan from a source contract line
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param plan body dto.CreateBillingPlanRequest true "Billing plan"
// @Success 201 {object} dto.BillingPlanResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /billing-plans [post]
func (h *BillingPlanHandler) CreateBillingPlan(c *gin.Context) {
	var req dto.CreateBillingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateBillingPlan(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a billing plan
// @Tags BillingPlans
// @Produce json
// @Param id path string true "Billing plan ID"
// @Success 200 {object} dto.BillingPlanResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /billing-plans/{id} [get]
func (h *BillingPlanHandler) GetBillingPlan(c *gin.Context) {
	resp, err := h.service.GetBillingPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List billing plans
// @Tags BillingPlans
// @Produce json
// @Param filter query types.BillingPlanFilter false "Filter"
// @Success 200 {object} dto.ListBillingPlansResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /billing-plans [get]
func (h *BillingPlanHandler) ListBillingPlans(c *gin.Context) {
	var filter types.BillingPlanFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.QueryFilter = withDefaultLimit(filter.QueryFilter)

	resp, err := h.service.ListBillingPlans(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update a billing plan
// @Description Schedule changes are only accepted while the plan is a draft
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param plan body dto.UpdateBillingPlanRequest true "Changes"
// @Success 200 {object} dto.BillingPlanResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /billing-plans/{id} [put]
func (h *BillingPlanHandler) UpdateBillingPlan(c *gin.Context) {
	var req dto.UpdateBillingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateBillingPlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change the lifecycle status of a billing plan
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param status body dto.UpdateBillingPlanStatusRequest true "Target status"
// @Success 200 {object} dto.BillingPlanResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /billing-plans/{id}/status [post]
func (h *BillingPlanHandler) UpdateBillingPlanStatus(c *gin.Context) {
	var req dto.UpdateBillingPlanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateBillingPlanStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Append a price revision
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param revision body dto.AddRevisionRequest true "Revision"
// @Success 200 {object} dto.BillingPlanResponse
// @Router /billing-plans/{id}/revisions [post]
func (h *BillingPlanHandler) AddRevision(c *gin.Context) {
	var req dto.AddRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.AddRevision(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a draft billing plan
// @Tags BillingPlans
// @Param id path string true "Billing plan ID"
// @Success 200 {object} dto.SuccessResponse
// @Router /billing-plans/{id} [delete]
func (h *BillingPlanHandler) DeleteBillingPlan(c *gin.Context) {
	if err := h.service.DeleteBillingPlan(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "billing plan deleted successfully"})
}

// @Summary Generate occurrences
// @Description Persist every window of the plan that starts before up_to
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param request body dto.GenerateOccurrencesRequest false "Generation horizon"
// @Success 200 {object} dto.GenerateOccurrencesResponse
// @Router /billing-plans/{id}/generate [post]
func (h *BillingPlanHandler) GenerateOccurrences(c *gin.Context) {
	var req dto.GenerateOccurrencesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.occurrenceService.GenerateOccurrences(c.Request.Context(), c.Param("id"), upTo(req.UpTo))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Invoice pending occurrences
// @Description Bundle pending occurrences of the plan into one draft invoice
// @Tags BillingPlans
// @Accept json
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param request body dto.InvoiceOccurrencesRequest true "Invoice parameters"
// @Success 201 {object} dto.InvoiceResponse
// @Router /billing-plans/{id}/invoice [post]
func (h *BillingPlanHandler) InvoiceOccurrences(c *gin.Context) {
	var req dto.InvoiceOccurrencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.PlanID = c.Param("id")

	resp, err := h.bridgeService.InvoiceOccurrences(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
