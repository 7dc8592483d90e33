package models

import "time"

// SystemMetrics is a JSON snapshot of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	SchedulerRuns            map[string]uint64 `json:"scheduler_runs"`
	AverageSchedulerRunMs    float64           `json:"average_scheduler_run_ms"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
