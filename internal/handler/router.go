package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opsgrid-api/internal/middleware"
	"github.com/noah-isme/opsgrid-api/internal/models"
)

// Handlers groups everything mounted under the API prefix. Nil handlers are skipped.
type Handlers struct {
	Auth     *AuthHandler
	Schedule *ScheduleHandler
	Plans    *PlanHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler

	// Audit receives plan mutations. Optional.
	Audit middleware.AuditRecorder
}

// RegisterRoutes mounts the API on group, guarding private routes with tokens.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	if h.Auth != nil {
		group.POST("/auth/login", h.Auth.Login)
	}
	if h.Exports != nil {
		group.GET("/export/:token", h.Exports.Download)
	}

	private := group.Group("")
	private.Use(middleware.JWT(tokens))

	planners := middleware.RequireRoles(models.RolePlanner, models.RoleAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin)
	anyone := middleware.RequireRoles()

	if h.Schedule != nil {
		private.POST("/schedule", planners, h.Schedule.Generate)
		private.POST("/schedule/validate", planners, h.Schedule.Validate)
		private.DELETE("/schedule/cache", admins, h.Schedule.PurgeCache)
	}
	if h.Plans != nil {
		private.POST("/plans", planners, middleware.Audit(h.Audit, models.AuditActionPlanCreate, "plan"), h.Plans.Create)
		private.GET("/plans", anyone, h.Plans.List)
		private.GET("/plans/:id", anyone, h.Plans.Get)
		private.GET("/plans/:id/entries", anyone, h.Plans.Entries)
		private.POST("/plans/:id/publish", admins, middleware.Audit(h.Audit, models.AuditActionPlanPublish, "plan"), h.Plans.Publish)
		private.DELETE("/plans/:id", admins, middleware.Audit(h.Audit, models.AuditActionPlanDelete, "plan"), h.Plans.Delete)
	}
	if h.Exports != nil {
		private.POST("/plans/:id/exports", planners, middleware.Audit(h.Audit, models.AuditActionExportRequest, "plan"), h.Exports.Create)
		private.GET("/exports/:id", anyone, h.Exports.Status)
	}
	if h.Metrics != nil {
		private.GET("/metrics", admins, h.Metrics.Prometheus)
		private.GET("/metrics/summary", admins, h.Metrics.Summary)
	}
}
