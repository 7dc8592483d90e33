package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/opsgrid-api/internal/dto"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type scheduleCache interface {
	Lookup(ctx context.Context, digest string, dest interface{}) (bool, error)
	Store(ctx context.Context, digest string, value interface{}, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// SchedulerServiceConfig bounds request size and cache lifetime.
type SchedulerServiceConfig struct {
	CacheTTL time.Duration
	MaxTasks int
	MaxCells int
}

// SchedulerService runs the constraint scheduler behind validation, limits and a result cache.
type SchedulerService struct {
	cache     scheduleCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SchedulerServiceConfig
}

// NewSchedulerService wires scheduler dependencies. cache and metrics may be nil.
func NewSchedulerService(cache scheduleCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SchedulerServiceConfig) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &SchedulerService{
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate schedules the request. The boolean reports whether the result came from cache.
func (s *SchedulerService) Generate(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResponse, bool, error) {
	input, err := s.prepare(req)
	if err != nil {
		return nil, false, err
	}
	if err := scheduler.Validate(input); err != nil {
		return nil, false, invalidInput(err)
	}

	digest, err := Digest(input)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash scheduling request")
	}

	if s.cache != nil {
		var cached dto.ScheduleResponse
		hit, cacheErr := s.cache.Lookup(ctx, digest, &cached)
		if cacheErr != nil {
			s.logger.Warn("schedule cache lookup failed", zap.String("digest", digest), zap.Error(cacheErr))
		}
		if hit {
			return &cached, true, nil
		}
	}

	result, err := s.run(input)
	if err != nil {
		return nil, false, err
	}
	resp := dto.NewScheduleResponse(digest, result)

	if s.cache != nil {
		if err := s.cache.Store(ctx, digest, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("schedule cache store failed", zap.String("digest", digest), zap.Error(err))
		}
	}
	return resp, false, nil
}

// Validate runs boundary validation and the capacity pre-check without scheduling.
// Semantic problems are reported in the response rather than as errors.
func (s *SchedulerService) Validate(ctx context.Context, req dto.ScheduleRequest) (*dto.ValidateResponse, error) {
	input, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	resp := &dto.ValidateResponse{Valid: true}
	if err := scheduler.Validate(input); err != nil {
		var fieldErr *scheduler.InvalidInputError
		if !errors.As(err, &fieldErr) {
			return nil, invalidInput(err)
		}
		resp.Valid = false
		resp.Field = fieldErr.Field
		resp.Reason = fieldErr.Reason
		return resp, nil
	}

	capacity := scheduler.PreCheck(input)
	resp.TotalRequired = capacity.TotalRequired
	resp.TotalAvailable = capacity.TotalAvailable
	resp.CapacityOK = !capacity.Exceeded()
	if capacity.Exceeded() {
		resp.Message = capacity.Message()
	}
	return resp, nil
}

// PurgeCache drops cached schedule results.
func (s *SchedulerService) PurgeCache(ctx context.Context) error {
	if s.cache == nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "schedule cache is disabled")
	}
	return s.cache.Purge(ctx)
}

// Schedule converts and runs a request, returning its digest alongside the result.
// It does not consult the cache.
func (s *SchedulerService) Schedule(req dto.ScheduleRequest) (string, *scheduler.Result, error) {
	input, err := s.prepare(req)
	if err != nil {
		return "", nil, err
	}
	if err := scheduler.Validate(input); err != nil {
		return "", nil, invalidInput(err)
	}
	digest, err := Digest(input)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash scheduling request")
	}
	result, err := s.run(input)
	if err != nil {
		return "", nil, err
	}
	return digest, result, nil
}

func (s *SchedulerService) prepare(req dto.ScheduleRequest) (scheduler.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return scheduler.Request{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling payload")
	}
	if s.cfg.MaxTasks > 0 && len(req.Tasks) > s.cfg.MaxTasks {
		return scheduler.Request{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%d tasks exceed the limit of %d", len(req.Tasks), s.cfg.MaxTasks))
	}
	cells := len(req.Sites) * len(req.Days) * len(req.TimeSlots)
	if s.cfg.MaxCells > 0 && cells > s.cfg.MaxCells {
		return scheduler.Request{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%d grid cells exceed the limit of %d", cells, s.cfg.MaxCells))
	}
	return req.ToRequest(), nil
}

func (s *SchedulerService) run(input scheduler.Request) (*scheduler.Result, error) {
	start := time.Now()
	result, err := scheduler.Schedule(input)
	elapsed := time.Since(start)
	if err != nil {
		return nil, invalidInput(err)
	}
	s.metrics.ObserveSchedulerRun(string(result.Outcome), result.Stats.Utilization, elapsed)
	s.logger.Debug("scheduler run finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("placed", result.Stats.TotalPlaced),
		zap.Int("required", result.Stats.TotalRequired),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// Digest returns the hex SHA-256 of the request's canonical JSON form.
func Digest(req scheduler.Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func invalidInput(err error) error {
	var fieldErr *scheduler.InvalidInputError
	if errors.As(err, &fieldErr) {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, fieldErr.Error())
	}
	if errors.Is(err, scheduler.ErrInvalidInput) {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduler failed")
}
