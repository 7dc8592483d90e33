package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/middleware"
	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	"github.com/noah-isme/opsgrid-api/internal/service"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

var testTokens = tokenStub{
	"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
	"planner": {UserID: "u-planner", Role: models.RolePlanner},
	"viewer":  {UserID: "u-viewer", Role: models.RoleViewer},
}

type scheduleRunnerStub struct {
	hit      bool
	err      error
	validate *dto.ValidateResponse
	purged   bool
}

func (s *scheduleRunnerStub) Generate(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResponse, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &dto.ScheduleResponse{
		Digest:   "abc",
		Schedule: []scheduler.Entry{{Day: "Mon", TimeSlot: "08:00", TaskID: "t1", SiteID: "s1", ResourceName: "Ana"}},
		Outcome:  scheduler.OutcomeFeasible,
	}, s.hit, nil
}

func (s *scheduleRunnerStub) Validate(ctx context.Context, req dto.ScheduleRequest) (*dto.ValidateResponse, error) {
	return s.validate, s.err
}

func (s *scheduleRunnerStub) PurgeCache(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.purged = true
	return nil
}

type planManagerStub struct {
	createdBy string
	deleted   string
	err       error
}

func (s *planManagerStub) Create(ctx context.Context, req dto.CreatePlanRequest, actorID string) (*dto.PlanDetailResponse, error) {
	s.createdBy = actorID
	return &dto.PlanDetailResponse{Plan: dto.PlanResponse{ID: "p1", Name: req.Name, Version: 1, Status: models.PlanStatusDraft}}, s.err
}

func (s *planManagerStub) List(ctx context.Context, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error) {
	return []dto.PlanResponse{{ID: "p1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, s.err
}

func (s *planManagerStub) Get(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if id != "p1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return &dto.PlanResponse{ID: id}, nil
}

func (s *planManagerStub) Entries(ctx context.Context, id string) ([]scheduler.Entry, error) {
	return []scheduler.Entry{}, s.err
}

func (s *planManagerStub) Publish(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.PlanResponse{ID: id, Status: models.PlanStatusPublished}, nil
}

func (s *planManagerStub) Delete(ctx context.Context, id string) error {
	s.deleted = id
	return s.err
}

type exportJobsStub struct {
	download *service.ExportDownload
	err      error
}

func (s *exportJobsStub) CreateJob(ctx context.Context, planID string, req dto.CreateExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	return &dto.ExportJobResponse{ID: "job-1", PlanID: planID, Format: req.Format, Status: models.ExportStatusQueued}, s.err
}

func (s *exportJobsStub) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ExportJobResponse, error) {
	return &dto.ExportJobResponse{ID: id, Status: models.ExportStatusFinished, Progress: 100}, s.err
}

func (s *exportJobsStub) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return s.download, s.err
}

type routerFixture struct {
	engine   *gin.Engine
	schedule *scheduleRunnerStub
	plans    *planManagerStub
	exports  *exportJobsStub
}

func newRouterFixture() *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		schedule: &scheduleRunnerStub{},
		plans:    &planManagerStub{},
		exports:  &exportJobsStub{},
	}
	f.engine = gin.New()
	f.engine.Use(middleware.WithResponseMeta())
	RegisterRoutes(f.engine.Group("/api/v1"), Handlers{
		Schedule: NewScheduleHandler(f.schedule),
		Plans:    NewPlanHandler(f.plans),
		Exports:  NewExportHandler(f.exports),
		Metrics:  NewMetricsHandler(service.NewMetricsService(), nil),
	}, testTokens)
	return f
}

func (f *routerFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func scheduleBody() dto.ScheduleRequest {
	return dto.ScheduleRequest{
		Tasks:     []dto.TaskInput{{ID: "t1", ResourceName: "Ana", RequiredOccurrences: 1}},
		Sites:     []dto.SiteInput{{ID: "s1"}},
		TimeSlots: []string{"08:00"},
		Days:      []string{"Mon"},
	}
}

func TestScheduleRequiresPlannerRole(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/schedule", "", scheduleBody()).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/schedule", "viewer", scheduleBody()).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/schedule", "planner", scheduleBody()).Code)
}

func TestScheduleReportsCacheHit(t *testing.T) {
	f := newRouterFixture()
	f.schedule.hit = true

	w := f.do(http.MethodPost, "/api/v1/schedule", "admin", scheduleBody())
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])

	var data dto.ScheduleResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, scheduler.OutcomeFeasible, data.Outcome)
	assert.Len(t, data.Schedule, 1)
}

func TestScheduleMapsServiceErrors(t *testing.T) {
	f := newRouterFixture()
	f.schedule.err = appErrors.Clone(appErrors.ErrInvalidInput, "tasks[0].requiredOccurrences: must be >= 1, got 0")
	w := f.do(http.MethodPost, "/api/v1/schedule", "planner", scheduleBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, decode(t, w).Error.Code)

	f.schedule.err = appErrors.ErrPayloadTooLarge
	w = f.do(http.MethodPost, "/api/v1/schedule", "planner", scheduleBody())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestScheduleRejectsMalformedJSON(t *testing.T) {
	f := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer planner")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleValidate(t *testing.T) {
	f := newRouterFixture()
	f.schedule.validate = &dto.ValidateResponse{Valid: false, Field: "days[1]", Reason: "duplicate label"}

	w := f.do(http.MethodPost, "/api/v1/schedule/validate", "planner", scheduleBody())
	require.Equal(t, http.StatusOK, w.Code)
	var data dto.ValidateResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.False(t, data.Valid)
	assert.Equal(t, "days[1]", data.Field)
}

func TestPlanRoutes(t *testing.T) {
	f := newRouterFixture()

	w := f.do(http.MethodPost, "/api/v1/plans", "planner", dto.CreatePlanRequest{Domain: models.PlanDomainFleet, Name: "routes", Request: scheduleBody()})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u-planner", f.plans.createdBy)

	w = f.do(http.MethodGet, "/api/v1/plans?domain=fleet&page=1", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Pagination.TotalCount)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/plans/p1", "viewer", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/plans/zz", "viewer", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/plans/p1/entries", "viewer", nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/plans/p1/publish", "planner", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/plans/p1/publish", "admin", nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/plans/p1", "planner", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/plans/p1", "admin", nil).Code)
	assert.Equal(t, "p1", f.plans.deleted)
}

func TestPlanPublishPreconditionFailed(t *testing.T) {
	f := newRouterFixture()
	f.plans.err = appErrors.Clone(appErrors.ErrPreconditionFailed, "plan has unassigned tasks and cannot be published")

	w := f.do(http.MethodPost, "/api/v1/plans/p1/publish", "admin", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestExportRoutes(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/plans/p1/exports", "viewer", dto.CreateExportRequest{Format: models.ExportFormatCSV}).Code)

	w := f.do(http.MethodPost, "/api/v1/plans/p1/exports", "planner", dto.CreateExportRequest{Format: models.ExportFormatCSV})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job dto.ExportJobResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))
	assert.Equal(t, "p1", job.PlanID)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/exports/job-1", "viewer", nil).Code)
}

func TestExportDownloadIsPublic(t *testing.T) {
	f := newRouterFixture()
	file, err := os.CreateTemp(t.TempDir(), "plan*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("#,Day\n1,Mon\n")
	_, _ = file.Seek(0, 0)
	f.exports.download = &service.ExportDownload{File: file, Filename: "plan.csv", Format: models.ExportFormatCSV, ExpiresAt: time.Now().Add(time.Hour)}

	w := f.do(http.MethodGet, "/api/v1/export/some-token", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plan.csv")
	assert.Equal(t, "#,Day\n1,Mon\n", w.Body.String())

	f.exports.err = appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	f.exports.download = nil
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/export/bad", "", nil).Code)
}

func TestMetricsRequireAdmin(t *testing.T) {
	f := newRouterFixture()
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/metrics", "planner", nil).Code)

	w := f.do(http.MethodGet, "/api/v1/metrics", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "opsgrid_")

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/metrics/summary", "admin", nil).Code)
}

func TestReadyReportsFailingChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return context.DeadlineExceeded },
	})
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSchedulePurgeCacheIsAdminOnly(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/schedule/cache", "planner", nil).Code)
	assert.False(t, f.schedule.purged)

	w := f.do(http.MethodDelete, "/api/v1/schedule/cache", "admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.schedule.purged)
}

func TestSchedulePurgeCacheUnavailable(t *testing.T) {
	f := newRouterFixture()
	f.schedule.err = appErrors.Clone(appErrors.ErrUnavailable, "schedule cache is disabled")

	w := f.do(http.MethodDelete, "/api/v1/schedule/cache", "admin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, appErrors.ErrUnavailable.Code, decode(t, w).Error.Code)
}
