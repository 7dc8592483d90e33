package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// PlanDomain identifies which business vertical produced a plan.
type PlanDomain string

const (
	PlanDomainWorkforce PlanDomain = "workforce"
	PlanDomainFleet     PlanDomain = "fleet"
)

// PlanStatus represents lifecycle phases for persisted plans.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusPublished PlanStatus = "PUBLISHED"
)

// SchedulePlan is a versioned, persisted scheduling run.
type SchedulePlan struct {
	ID              string         `db:"id" json:"id"`
	Domain          PlanDomain     `db:"domain" json:"domain"`
	Name            string         `db:"name" json:"name"`
	Version         int            `db:"version" json:"version"`
	Status          PlanStatus     `db:"status" json:"status"`
	Digest          string         `db:"digest" json:"digest"`
	Input           types.JSONText `db:"input" json:"input"`
	Outcome         string         `db:"outcome" json:"outcome"`
	IsPossible      bool           `db:"is_possible" json:"is_possible"`
	Message         string         `db:"message" json:"message"`
	UnassignedTasks pq.StringArray `db:"unassigned_tasks" json:"unassigned_tasks"`
	Fulfillment     types.JSONText `db:"fulfillment" json:"fulfillment"`
	Stats           types.JSONText `db:"stats" json:"stats"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	PublishedAt     *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// PlanEntry is one persisted placement of a plan.
type PlanEntry struct {
	ID           string    `db:"id" json:"id"`
	PlanID       string    `db:"plan_id" json:"plan_id"`
	Position     int       `db:"position" json:"position"`
	Day          string    `db:"day" json:"day"`
	TimeSlot     string    `db:"time_slot" json:"time_slot"`
	TaskID       string    `db:"task_id" json:"task_id"`
	SiteID       string    `db:"site_id" json:"site_id"`
	ResourceName string    `db:"resource_name" json:"resource_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PlanFilter captures list criteria.
type PlanFilter struct {
	Domain   *PlanDomain
	Status   *PlanStatus
	Name     string
	Page     int
	PageSize int
}
