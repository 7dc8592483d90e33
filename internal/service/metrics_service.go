package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/opsgrid-api/internal/models"
)

const metricsNamespace = "opsgrid"

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	schedulerRuns    *prometheus.CounterVec
	schedulerLatency prometheus.Observer
	schedulerPlaced  prometheus.Histogram
	exportJobs       *prometheus.CounterVec

	cacheHitCount         uint64
	cacheMissCount        uint64
	requestCount          uint64
	requestDurationTotal  uint64
	schedulerRunCount     uint64
	schedulerDurationNano uint64

	mu       sync.Mutex
	outcomes map[string]uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Latency for cache lookups",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Latency for cache set operations",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result",
	}, []string{"result"})

	schedulerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "scheduler_runs_total",
		Help:      "Scheduler runs by outcome",
	}, []string{"outcome"})

	schedulerLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "scheduler_run_seconds",
		Help:      "Wall time of a single scheduler run",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	schedulerPlaced := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "scheduler_utilization_ratio",
		Help:      "Share of grid cells filled per run",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "export_jobs_total",
		Help:      "Export job executions by format and result",
	}, []string{"format", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheLookups,
		schedulerRuns, schedulerLatency, schedulerPlaced, exportJobs, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheLookups:     cacheLookups,
		schedulerRuns:    schedulerRuns,
		schedulerLatency: schedulerLatency,
		schedulerPlaced:  schedulerPlaced,
		exportJobs:       exportJobs,
		outcomes:         make(map[string]uint64),
	}
}

// TrackQueueDepth exports depth as opsgrid_queue_pending{queue=name}.
func (m *MetricsService) TrackQueueDepth(name string, depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "queue_pending",
		Help:        "Jobs waiting in a background queue",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 {
		return float64(depth())
	}))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveSchedulerRun records one engine invocation.
func (m *MetricsService) ObserveSchedulerRun(outcome string, utilization float64, duration time.Duration) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(outcome).Inc()
	m.schedulerLatency.Observe(duration.Seconds())
	m.schedulerPlaced.Observe(utilization)
	atomic.AddUint64(&m.schedulerRunCount, 1)
	atomic.AddUint64(&m.schedulerDurationNano, uint64(duration.Nanoseconds()))

	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

// ObserveExportJob counts a finished export attempt.
func (m *MetricsService) ObserveExportJob(format string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.exportJobs.WithLabelValues(format, result).Inc()
}

// Snapshot returns aggregated metrics suitable for JSON consumers.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{SchedulerRuns: map[string]uint64{}}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	runs := atomic.LoadUint64(&m.schedulerRunCount)
	runDuration := atomic.LoadUint64(&m.schedulerDurationNano)

	snapshot := models.SystemMetrics{
		CacheHits:     hits,
		CacheMisses:   misses,
		RequestsTotal: requests,
		SchedulerRuns: make(map[string]uint64),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if hits+misses > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if runs > 0 {
		snapshot.AverageSchedulerRunMs = float64(runDuration) / float64(runs) / float64(time.Millisecond)
	}

	m.mu.Lock()
	for outcome, count := range m.outcomes {
		snapshot.SchedulerRuns[outcome] = count
	}
	m.mu.Unlock()
	return snapshot
}
