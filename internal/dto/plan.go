package dto

import (
	"time"

	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
)

// CreatePlanRequest runs the scheduler and persists the result as a draft plan.
type CreatePlanRequest struct {
	Domain  models.PlanDomain `json:"domain" validate:"required,oneof=workforce fleet"`
	Name    string            `json:"name" validate:"required,max=128"`
	Request ScheduleRequest   `json:"request"`
}

// PlanQuery filters GET /plans.
type PlanQuery struct {
	Domain   string `form:"domain" validate:"omitempty,oneof=workforce fleet"`
	Status   string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Name     string `form:"name"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// PlanResponse is the plan header plus its diagnostics.
type PlanResponse struct {
	ID          string                  `json:"id"`
	Domain      models.PlanDomain       `json:"domain"`
	Name        string                  `json:"name"`
	Version     int                     `json:"version"`
	Status      models.PlanStatus       `json:"status"`
	Digest      string                  `json:"digest"`
	Outcome     scheduler.Outcome       `json:"outcome"`
	Diagnostics scheduler.Diagnostics   `json:"diagnostics"`
	Fulfillment []scheduler.Fulfillment `json:"fulfillment,omitempty"`
	Stats       *scheduler.Stats        `json:"stats,omitempty"`
	CreatedBy   string                  `json:"createdBy"`
	PublishedAt *time.Time              `json:"publishedAt,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// PlanDetailResponse is returned after plan creation with the placed entries.
type PlanDetailResponse struct {
	Plan     PlanResponse      `json:"plan"`
	Schedule []scheduler.Entry `json:"schedule"`
}
