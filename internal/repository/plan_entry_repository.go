package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/opsgrid-api/internal/models"
)

// PlanEntryRepository manages the placed entries of a plan.
type PlanEntryRepository struct {
	db *sqlx.DB
}

// NewPlanEntryRepository builds repository.
func NewPlanEntryRepository(db *sqlx.DB) *PlanEntryRepository {
	return &PlanEntryRepository{db: db}
}

func (r *PlanEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores entries for a plan in the order given.
func (r *PlanEntryRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.PlanEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO schedule_plan_entries (id, plan_id, position, day, time_slot, task_id, site_id, resource_name, created_at)
VALUES (:id, :plan_id, :position, :day, :time_slot, :task_id, :site_id, :resource_name, :created_at)`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert plan entry: %w", err)
		}
	}
	return nil
}

// ListByPlan returns entries in their original schedule order.
func (r *PlanEntryRepository) ListByPlan(ctx context.Context, planID string) ([]models.PlanEntry, error) {
	const query = `SELECT id, plan_id, position, day, time_slot, task_id, site_id, resource_name, created_at
FROM schedule_plan_entries WHERE plan_id = $1 ORDER BY position ASC`
	var entries []models.PlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, planID); err != nil {
		return nil, fmt.Errorf("list plan entries: %w", err)
	}
	return entries, nil
}
