package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type planRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.SchedulePlan) error
	List(ctx context.Context, filter models.PlanFilter) ([]models.SchedulePlan, int, error)
	FindByID(ctx context.Context, id string) (*models.SchedulePlan, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PlanStatus) error
}

type planEntryRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.PlanEntry) error
	ListByPlan(ctx context.Context, planID string) ([]models.PlanEntry, error)
}

type planScheduler interface {
	Schedule(req dto.ScheduleRequest) (string, *scheduler.Result, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// PlanService persists scheduler runs as versioned plans and manages their lifecycle.
type PlanService struct {
	plans     planRepository
	entries   planEntryRepository
	runner    planScheduler
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService wires plan dependencies.
func NewPlanService(plans planRepository, entries planEntryRepository, runner planScheduler, tx txProvider, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		plans:     plans,
		entries:   entries,
		runner:    runner,
		tx:        tx,
		validator: validate,
		logger:    logger,
	}
}

// Create runs the scheduler and stores input, diagnostics and entries as a new draft version.
func (s *PlanService) Create(ctx context.Context, req dto.CreatePlanRequest, actorID string) (*dto.PlanDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	digest, result, err := s.runner.Schedule(req.Request)
	if err != nil {
		return nil, err
	}

	plan, err := newPlanRecord(req, digest, result, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode plan")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.plans.CreateVersioned(ctx, tx, plan); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
		return nil, err
	}

	rows := make([]models.PlanEntry, len(result.Schedule))
	for i, entry := range result.Schedule {
		rows[i] = models.PlanEntry{
			PlanID:       plan.ID,
			Position:     i,
			Day:          entry.Day,
			TimeSlot:     entry.TimeSlot,
			TaskID:       entry.TaskID,
			SiteID:       entry.SiteID,
			ResourceName: entry.ResourceName,
		}
	}
	if err = s.entries.InsertBatch(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist plan entries")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan transaction")
		return nil, err
	}

	s.logger.Info("plan created",
		zap.String("plan_id", plan.ID),
		zap.String("domain", string(plan.Domain)),
		zap.String("name", plan.Name),
		zap.Int("version", plan.Version),
		zap.String("outcome", plan.Outcome),
	)

	header, convErr := toPlanResponse(plan)
	if convErr != nil {
		return nil, appErrors.Wrap(convErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode plan")
	}
	return &dto.PlanDetailResponse{Plan: *header, Schedule: result.Schedule}, nil
}

// List returns plan headers with pagination metadata.
func (s *PlanService) List(ctx context.Context, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan filter")
	}
	filter := models.PlanFilter{Name: query.Name, Page: query.Page, PageSize: query.PageSize}
	if query.Domain != "" {
		domain := models.PlanDomain(query.Domain)
		filter.Domain = &domain
	}
	if query.Status != "" {
		status := models.PlanStatus(query.Status)
		filter.Status = &status
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	out := make([]dto.PlanResponse, 0, len(plans))
	for i := range plans {
		header, err := toPlanResponse(&plans[i])
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode plan")
		}
		out = append(out, *header)
	}
	return out, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns the plan header and diagnostics.
func (s *PlanService) Get(ctx context.Context, id string) (*dto.PlanResponse, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	header, err := toPlanResponse(plan)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode plan")
	}
	return header, nil
}

// Entries returns the persisted schedule in its original order.
func (s *PlanService) Entries(ctx context.Context, id string) ([]scheduler.Entry, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.entries.ListByPlan(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan entries")
	}
	return toEntries(rows), nil
}

// Publish promotes a fully scheduled draft.
func (s *PlanService) Publish(ctx context.Context, id string) (*dto.PlanResponse, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.PlanStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plan is already published")
	}
	if len(plan.UnassignedTasks) > 0 || !plan.IsPossible {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan has unassigned tasks and cannot be published")
	}
	if err := s.plans.UpdateStatus(ctx, nil, id, models.PlanStatusPublished); err != nil {
		// The plan was just read, so no matching draft means another writer published it first.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "plan is already published")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish plan")
	}
	return s.Get(ctx, id)
}

// Delete removes a draft plan and, through the foreign key, its entries.
func (s *PlanService) Delete(ctx context.Context, id string) error {
	plan, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft plans can be deleted")
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	return nil
}

func (s *PlanService) find(ctx context.Context, id string) (*models.SchedulePlan, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan id is required")
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

func newPlanRecord(req dto.CreatePlanRequest, digest string, result *scheduler.Result, actorID string) (*models.SchedulePlan, error) {
	input, err := json.Marshal(req.Request.ToRequest())
	if err != nil {
		return nil, err
	}
	fulfillment, err := json.Marshal(result.Fulfillment)
	if err != nil {
		return nil, err
	}
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return nil, err
	}
	return &models.SchedulePlan{
		Domain:          req.Domain,
		Name:            req.Name,
		Status:          models.PlanStatusDraft,
		Digest:          digest,
		Input:           types.JSONText(input),
		Outcome:         string(result.Outcome),
		IsPossible:      result.Diagnostics.IsPossible,
		Message:         result.Diagnostics.Message,
		UnassignedTasks: append([]string{}, result.Diagnostics.UnassignedTasks...),
		Fulfillment:     types.JSONText(fulfillment),
		Stats:           types.JSONText(stats),
		CreatedBy:       actorID,
	}, nil
}

func toPlanResponse(plan *models.SchedulePlan) (*dto.PlanResponse, error) {
	resp := &dto.PlanResponse{
		ID:      plan.ID,
		Domain:  plan.Domain,
		Name:    plan.Name,
		Version: plan.Version,
		Status:  plan.Status,
		Digest:  plan.Digest,
		Outcome: scheduler.Outcome(plan.Outcome),
		Diagnostics: scheduler.Diagnostics{
			IsPossible:      plan.IsPossible,
			Message:         plan.Message,
			UnassignedTasks: append([]string{}, plan.UnassignedTasks...),
		},
		CreatedBy:   plan.CreatedBy,
		PublishedAt: plan.PublishedAt,
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.UpdatedAt,
	}
	if len(plan.Fulfillment) > 0 {
		if err := plan.Fulfillment.Unmarshal(&resp.Fulfillment); err != nil {
			return nil, err
		}
	}
	if len(plan.Stats) > 0 && string(plan.Stats) != "{}" {
		var stats scheduler.Stats
		if err := plan.Stats.Unmarshal(&stats); err != nil {
			return nil, err
		}
		resp.Stats = &stats
	}
	return resp, nil
}

func toEntries(rows []models.PlanEntry) []scheduler.Entry {
	out := make([]scheduler.Entry, len(rows))
	for i, row := range rows {
		out[i] = scheduler.Entry{
			Day:          row.Day,
			TimeSlot:     row.TimeSlot,
			TaskID:       row.TaskID,
			SiteID:       row.SiteID,
			ResourceName: row.ResourceName,
		}
	}
	return out
}
