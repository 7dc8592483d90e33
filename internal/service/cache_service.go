package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

const scheduleCachePrefix = "schedule"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService stores schedule results by request digest. Backend failures
// never fail a scheduling call: reads degrade to misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func scheduleKey(digest string) string {
	return scheduleCachePrefix + ":" + digest
}

// Lookup decodes the result cached for digest into dest and reports a hit.
func (s *CacheService) Lookup(ctx context.Context, digest string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, scheduleKey(digest), dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}

// Store caches value under digest. A non-positive ttl uses the default.
func (s *CacheService) Store(ctx context.Context, digest string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, scheduleKey(digest), value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	return err
}

// Purge drops every cached schedule result.
func (s *CacheService) Purge(ctx context.Context) error {
	if !s.Enabled() {
		return appErrors.Clone(appErrors.ErrUnavailable, "schedule cache is disabled")
	}
	if err := s.repo.DeleteByPattern(ctx, scheduleCachePrefix+":*"); err != nil {
		s.logger.Warn("schedule cache purge failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to purge schedule cache")
	}
	s.logger.Info("schedule cache purged")
	return nil
}
