package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
	"github.com/noah-isme/opsgrid-api/pkg/response"
)

type planManager interface {
	Create(ctx context.Context, req dto.CreatePlanRequest, actorID string) (*dto.PlanDetailResponse, error)
	List(ctx context.Context, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.PlanResponse, error)
	Entries(ctx context.Context, id string) ([]scheduler.Entry, error)
	Publish(ctx context.Context, id string) (*dto.PlanResponse, error)
	Delete(ctx context.Context, id string) error
}

// PlanHandler exposes persisted schedule plans.
type PlanHandler struct {
	service planManager
}

// NewPlanHandler constructs the handler.
func NewPlanHandler(svc planManager) *PlanHandler {
	return &PlanHandler{service: svc}
}

// Create godoc
// @Summary Create a plan
// @Description Runs the scheduler and stores input and result as the next DRAFT version of (domain, name).
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body dto.CreatePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	res, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List godoc
// @Summary List plans
// @Tags Plans
// @Produce json
// @Param domain query string false "workforce or fleet"
// @Param status query string false "DRAFT or PUBLISHED"
// @Param name query string false "Name contains"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	var query dto.PlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get plan header and diagnostics
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Entries godoc
// @Summary List plan entries
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/entries [get]
func (h *PlanHandler) Entries(c *gin.Context) {
	res, err := h.service.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Publish godoc
// @Summary Publish a draft plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /plans/{id}/publish [post]
func (h *PlanHandler) Publish(c *gin.Context) {
	res, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Delete godoc
// @Summary Delete a draft plan
// @Tags Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /plans/{id} [delete]
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
