package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/middleware"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
	"github.com/noah-isme/opsgrid-api/pkg/response"
)

type scheduleRunner interface {
	Generate(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResponse, bool, error)
	Validate(ctx context.Context, req dto.ScheduleRequest) (*dto.ValidateResponse, error)
	PurgeCache(ctx context.Context) error
}

// ScheduleHandler exposes the stateless scheduler.
type ScheduleHandler struct {
	service scheduleRunner
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc scheduleRunner) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Generate godoc
// @Summary Run the scheduler
// @Description Places every task occurrence it can without double-booking a site or resource. Infeasible inputs return diagnostics, not errors.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleRequest true "Scheduling request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /schedule [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduling payload"))
		return
	}

	res, hit, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, res, nil, middleware.ResponseMeta(c))
}

// Validate godoc
// @Summary Validate a scheduling request
// @Description Runs boundary validation and the capacity pre-check without placing anything.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleRequest true "Scheduling request"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /schedule/validate [post]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduling payload"))
		return
	}

	res, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// PurgeCache godoc
// @Summary Drop cached schedule results
// @Tags Scheduler
// @Security BearerAuth
// @Success 204
// @Failure 503 {object} response.Envelope
// @Router /schedule/cache [delete]
func (h *ScheduleHandler) PurgeCache(c *gin.Context) {
	if err := h.service.PurgeCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
