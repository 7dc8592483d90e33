package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type planRepoStub struct {
	plans      map[string]*models.SchedulePlan
	createErr  error
	updateErr  error
	deleted    []string
	lastFilter models.PlanFilter
}

func newPlanRepoStub(plans ...*models.SchedulePlan) *planRepoStub {
	stub := &planRepoStub{plans: map[string]*models.SchedulePlan{}}
	for _, plan := range plans {
		stub.plans[plan.ID] = plan
	}
	return stub
}

func (s *planRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.SchedulePlan) error {
	if s.createErr != nil {
		return s.createErr
	}
	version := 0
	for _, existing := range s.plans {
		if existing.Domain == plan.Domain && existing.Name == plan.Name && existing.Version > version {
			version = existing.Version
		}
	}
	plan.ID = "plan-" + plan.Name
	plan.Version = version + 1
	s.plans[plan.ID] = plan
	return nil
}

func (s *planRepoStub) List(ctx context.Context, filter models.PlanFilter) ([]models.SchedulePlan, int, error) {
	s.lastFilter = filter
	out := make([]models.SchedulePlan, 0, len(s.plans))
	for _, plan := range s.plans {
		out = append(out, *plan)
	}
	return out, len(out), nil
}

func (s *planRepoStub) FindByID(ctx context.Context, id string) (*models.SchedulePlan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return plan, nil
}

func (s *planRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.plans[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.plans, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *planRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PlanStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	plan, ok := s.plans[id]
	if !ok {
		return sql.ErrNoRows
	}
	if status == models.PlanStatusPublished && plan.Status != models.PlanStatusDraft {
		return sql.ErrNoRows
	}
	plan.Status = status
	return nil
}

type planEntryRepoStub struct {
	entries map[string][]models.PlanEntry
	err     error
}

func (s *planEntryRepoStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.PlanEntry) error {
	if s.err != nil {
		return s.err
	}
	if s.entries == nil {
		s.entries = map[string][]models.PlanEntry{}
	}
	for _, entry := range entries {
		s.entries[entry.PlanID] = append(s.entries[entry.PlanID], entry)
	}
	return nil
}

func (s *planEntryRepoStub) ListByPlan(ctx context.Context, planID string) ([]models.PlanEntry, error) {
	return s.entries[planID], nil
}

func newPlanServiceFixture(t *testing.T, plans *planRepoStub, entries *planEntryRepoStub) (*PlanService, sqlmock.Sqlmock) {
	tx, mock := newTxProviderMock(t)
	runner := NewSchedulerService(nil, nil, nil, nil, SchedulerServiceConfig{})
	return NewPlanService(plans, entries, runner, tx, nil, nil), mock
}

func TestPlanServiceCreatePersistsDraft(t *testing.T) {
	plans := newPlanRepoStub()
	entries := &planEntryRepoStub{}
	svc, mock := newPlanServiceFixture(t, plans, entries)
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Create(context.Background(), dto.CreatePlanRequest{
		Domain:  models.PlanDomainWorkforce,
		Name:    "week-42",
		Request: sampleScheduleRequest(),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusDraft, resp.Plan.Status)
	assert.Equal(t, 1, resp.Plan.Version)
	assert.Equal(t, scheduler.OutcomeFeasible, resp.Plan.Outcome)
	assert.Equal(t, "user-1", resp.Plan.CreatedBy)
	assert.Len(t, resp.Schedule, 3)
	require.NotNil(t, resp.Plan.Stats)
	assert.Equal(t, 3, resp.Plan.Stats.TotalPlaced)

	stored := entries.entries[resp.Plan.ID]
	require.Len(t, stored, 3)
	for i, entry := range stored {
		assert.Equal(t, i, entry.Position)
		assert.Equal(t, resp.Schedule[i].TaskID, entry.TaskID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanServiceCreateRollsBackOnEntryFailure(t *testing.T) {
	plans := newPlanRepoStub()
	entries := &planEntryRepoStub{err: sql.ErrConnDone}
	svc, mock := newPlanServiceFixture(t, plans, entries)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), dto.CreatePlanRequest{
		Domain:  models.PlanDomainFleet,
		Name:    "routes",
		Request: sampleScheduleRequest(),
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanServiceCreateRejectsInvalidRequest(t *testing.T) {
	svc, mock := newPlanServiceFixture(t, newPlanRepoStub(), &planEntryRepoStub{})
	req := sampleScheduleRequest()
	req.Sites = nil

	_, err := svc.Create(context.Background(), dto.CreatePlanRequest{Domain: models.PlanDomainWorkforce, Name: "x", Request: req}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), dto.CreatePlanRequest{Domain: "orchard", Name: "x", Request: sampleScheduleRequest()}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanServiceListNormalisesPaging(t *testing.T) {
	plans := newPlanRepoStub(&models.SchedulePlan{ID: "p1", Domain: models.PlanDomainWorkforce, Name: "a", Version: 1, Status: models.PlanStatusDraft})
	svc, _ := newPlanServiceFixture(t, plans, &planEntryRepoStub{})

	items, pagination, err := svc.List(context.Background(), dto.PlanQuery{Domain: "workforce", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	require.NotNil(t, plans.lastFilter.Domain)
	assert.Equal(t, models.PlanDomainWorkforce, *plans.lastFilter.Domain)
	assert.Nil(t, plans.lastFilter.Status)
}

func TestPlanServicePublish(t *testing.T) {
	ready := &models.SchedulePlan{ID: "ready", Status: models.PlanStatusDraft, IsPossible: true}
	partial := &models.SchedulePlan{ID: "partial", Status: models.PlanStatusDraft, UnassignedTasks: []string{"t1"}}
	published := &models.SchedulePlan{ID: "done", Status: models.PlanStatusPublished, IsPossible: true}
	svc, _ := newPlanServiceFixture(t, newPlanRepoStub(ready, partial, published), &planEntryRepoStub{})

	resp, err := svc.Publish(context.Background(), "ready")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusPublished, resp.Status)

	_, err = svc.Publish(context.Background(), "partial")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = svc.Publish(context.Background(), "done")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Publish(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestPlanServicePublishLosesRace(t *testing.T) {
	ready := &models.SchedulePlan{ID: "ready", Status: models.PlanStatusDraft, IsPossible: true}
	plans := newPlanRepoStub(ready)
	plans.updateErr = sql.ErrNoRows
	svc, _ := newPlanServiceFixture(t, plans, &planEntryRepoStub{})

	_, err := svc.Publish(context.Background(), "ready")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NotErrorIs(t, err, appErrors.ErrNotFound)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.Status)
}

func TestPlanServiceDeleteOnlyDrafts(t *testing.T) {
	draft := &models.SchedulePlan{ID: "draft", Status: models.PlanStatusDraft}
	published := &models.SchedulePlan{ID: "live", Status: models.PlanStatusPublished}
	plans := newPlanRepoStub(draft, published)
	svc, _ := newPlanServiceFixture(t, plans, &planEntryRepoStub{})

	require.NoError(t, svc.Delete(context.Background(), "draft"))
	assert.Equal(t, []string{"draft"}, plans.deleted)

	err := svc.Delete(context.Background(), "live")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	err = svc.Delete(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPlanServiceEntriesKeepOrder(t *testing.T) {
	plan := &models.SchedulePlan{ID: "p1", Status: models.PlanStatusDraft}
	entries := &planEntryRepoStub{entries: map[string][]models.PlanEntry{
		"p1": {
			{PlanID: "p1", Position: 0, Day: "Mon", TimeSlot: "08:00", TaskID: "t1", SiteID: "s1", ResourceName: "Ana"},
			{PlanID: "p1", Position: 1, Day: "Mon", TimeSlot: "10:00", TaskID: "t2", SiteID: "s1", ResourceName: "Budi"},
		},
	}}
	svc, _ := newPlanServiceFixture(t, newPlanRepoStub(plan), entries)

	out, err := svc.Entries(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, scheduler.Entry{Day: "Mon", TimeSlot: "08:00", TaskID: "t1", SiteID: "s1", ResourceName: "Ana"}, out[0])
	assert.Equal(t, "t2", out[1].TaskID)

	_, err = svc.Entries(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
