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

type OccurrenceHandler struct {
	service service.OccurrenceService
	log     *logger.Logger
}

func NewOccurrenceHandler(service service.OccurrenceService, log *logger.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{service: service, log: log}
}

// @Summary List billing occurrences
// @Tags Occurrences
// @Produce json
// @Param filter query types.OccurrenceFilter false "Filter"
// @Success 200 {object} dto.ListOccurrencesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /occurrences [get]
func (h *OccurrenceHandler) ListOccurrences(c *gin.Context) {
	var filter types.OccurrenceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.QueryFilter = withDefaultLimit(filter.QueryFilter)

	resp, err := h.service.ListOccurrences(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List occurrences of a billing plan
// @Description Ordered by seq
// @Tags BillingPlans
// @Produce json
// @Param id path string true "Billing plan ID"
// @Param filter query types.OccurrenceFilter false "Filter"
// @Success 200 {object} dto.ListOccurrencesResponse
// @Router /billing-plans/{id}/occurrences [get]
func (h *OccurrenceHandler) ListPlanOccurrences(c *gin.Context) {
	var filter types.OccurrenceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.PlanID = c.Param("id")
	filter.QueryFilter = withDefaultLimit(filter.QueryFilter)

	resp, err := h.service.ListOccurrences(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a billing occurrence
// @Tags Occurrences
// @Produce json
// @Param id path string true "Occurrence ID"
// @Success 200 {object} dto.OccurrenceResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /occurrences/{id} [get]
func (h *OccurrenceHandler) GetOccurrence(c *gin.Context) {
	resp, err := h.service.GetOccurrence(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Skip or cancel a pending occurrence
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param status body dto.UpdateOccurrenceStatusRequest true "Target status"
// @Success 200 {object} dto.OccurrenceResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /occurrences/{id}/status [post]
func (h *OccurrenceHandler) UpdateOccurrenceStatus(c *gin.Context) {
	var req dto.UpdateOccurrenceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateOccurrenceStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
