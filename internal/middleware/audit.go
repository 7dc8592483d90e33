package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/pkg/logger"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Audit records action on resource after the request succeeds. The resource ID
// is taken from the :id path parameter when present. A nil recorder disables it.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			CreatedAt: start,
		}
		if claims, ok := Claims(c); ok {
			entry.UserID = &claims.UserID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		details, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})
		entry.Details = details

		if err := recorder.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.From(c, nil).Warn("audit log write failed",
				zap.String("action", action),
				zap.Error(err),
			)
		}
	}
}
