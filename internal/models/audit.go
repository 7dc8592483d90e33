package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions recorded for state-changing plan operations.
const (
	AuditActionPlanCreate    = "PLAN_CREATE"
	AuditActionPlanPublish   = "PLAN_PUBLISH"
	AuditActionPlanDelete    = "PLAN_DELETE"
	AuditActionExportRequest = "EXPORT_REQUEST"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	Details    types.JSONText `db:"details" json:"details,omitempty"`
	IPAddress  string         `db:"ip_address" json:"ip_address"`
	UserAgent  string         `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
