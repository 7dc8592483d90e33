package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type cacheRepoStub struct {
	items     map[string][]byte
	ttls      map[string]time.Duration
	getErr    error
	deleteErr error
	patterns  []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.items[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.items = map[string][]byte{}
	return nil
}

func TestCacheServiceLookupAndStore(t *testing.T) {
	repo := newCacheRepoStub()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	var dest map[string]string
	hit, err := svc.Lookup(context.Background(), "abc", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Store(context.Background(), "abc", map[string]string{"outcome": "feasible"}, 0))
	assert.Equal(t, time.Minute, repo.ttls["schedule:abc"])

	hit, err = svc.Lookup(context.Background(), "abc", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "feasible", dest["outcome"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var dest map[string]string
	hit, err := svc.Lookup(context.Background(), "abc", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, 0, nil, false)

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Store(context.Background(), "abc", "value", 0))
	assert.Empty(t, repo.items)

	err := svc.Purge(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestCacheServicePurge(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, 0, nil, true)
	require.NoError(t, svc.Store(context.Background(), "abc", "value", 0))

	require.NoError(t, svc.Purge(context.Background()))
	assert.Equal(t, []string{"schedule:*"}, repo.patterns)
	assert.Empty(t, repo.items)

	repo.deleteErr = errors.New("scan failed")
	err := svc.Purge(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}
