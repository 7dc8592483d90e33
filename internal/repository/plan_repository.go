package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/opsgrid-api/internal/models"
)

const planColumns = `id, domain, name, version, status, digest, input, outcome, is_possible, message, unassigned_tasks, fulfillment, stats, created_by, published_at, created_at, updated_at`

// PlanRepository persists versioned schedule plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a plan assigning the next version for the domain-name tuple.
func (r *PlanRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.SchedulePlan) error {
	if plan == nil {
		return fmt.Errorf("plan payload is nil")
	}
	if plan.Domain == "" || plan.Name == "" {
		return fmt.Errorf("domain and name are required")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = models.PlanStatusDraft
	}
	if len(plan.Input) == 0 {
		plan.Input = types.JSONText(`{}`)
	}
	if len(plan.Fulfillment) == 0 {
		plan.Fulfillment = types.JSONText(`[]`)
	}
	if len(plan.Stats) == 0 {
		plan.Stats = types.JSONText(`{}`)
	}
	if plan.UnassignedTasks == nil {
		plan.UnassignedTasks = []string{}
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM schedule_plans WHERE domain = $1 AND name = $2`
	if err := sqlx.GetContext(ctx, target, &plan.Version, nextVersionQuery, plan.Domain, plan.Name); err != nil {
		return fmt.Errorf("compute next plan version: %w", err)
	}

	const insertQuery = `
INSERT INTO schedule_plans (id, domain, name, version, status, digest, input, outcome, is_possible, message, unassigned_tasks, fulfillment, stats, created_by, published_at, created_at, updated_at)
VALUES (:id, :domain, :name, :version, :status, :digest, :input, :outcome, :is_possible, :message, :unassigned_tasks, :fulfillment, :stats, :created_by, :published_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, plan); err != nil {
		return fmt.Errorf("insert schedule plan: %w", err)
	}
	return nil
}

// List returns plans matching the filter, newest first, with the total count.
func (r *PlanRepository) List(ctx context.Context, filter models.PlanFilter) ([]models.SchedulePlan, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Domain != nil {
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)+1))
		args = append(args, *filter.Domain)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
	}
	base := fmt.Sprintf("FROM schedule_plans WHERE %s", strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, version DESC LIMIT %d OFFSET %d", planColumns, base, size, offset)
	var plans []models.SchedulePlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule plans: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule plans: %w", err)
	}
	return plans, total, nil
}

// FindByID loads a plan by its identifier.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.SchedulePlan, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_plans WHERE id = $1", planColumns)
	var plan models.SchedulePlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Delete removes a draft plan. Published plans are left untouched and reported as missing.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_plans WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, models.PlanStatusDraft)
	if err != nil {
		return fmt.Errorf("delete schedule plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule plan rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a plan to the given status, stamping published_at when publishing.
// Publishing only matches drafts, so a plan published by another writer yields sql.ErrNoRows.
func (r *PlanRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PlanStatus) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if status == models.PlanStatusPublished {
		query = `UPDATE schedule_plans SET status = $1, published_at = $2, updated_at = $3 WHERE id = $4 AND status = $5`
		args = []interface{}{status, now, now, id, models.PlanStatusDraft}
	} else {
		query = `UPDATE schedule_plans SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule plan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule plan status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
