package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all prometheus metrics for cadence.
// uses a custom registry to avoid polluting the global namespace.
type Metrics struct {
	Registry *prometheus.Registry

	// http_request_duration_seconds - histogram for ops endpoint latency
	HTTPRequestDuration *prometheus.HistogramVec

	// cadence_cache_requests_total - progress cache lookups by backend and result
	CacheRequestsTotal *prometheus.CounterVec

	// cadence_cache_evictions_total - keys evicted after record changes
	CacheEvictionsTotal *prometheus.CounterVec

	// cadence_placement_job_duration_seconds - histogram for the monthly placement run
	PlacementJobDuration prometheus.Histogram

	// cadence_placements_computed_total - shared habits ranked, by outcome
	PlacementsComputedTotal *prometheus.CounterVec

	// cadence_leaderboard_refresh_duration_seconds - histogram for leaderboard refreshes
	LeaderboardRefreshDuration prometheus.Histogram
}

// New creates and registers all prometheus metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// add standard go runtime and process collectors
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_cache_requests_total",
				Help: "Progress cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),

		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_cache_evictions_total",
				Help: "Progress cache keys evicted after record changes",
			},
			[]string{"backend"},
		),

		PlacementJobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cadence_placement_job_duration_seconds",
			Help:    "Duration of monthly placement runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		}),

		PlacementsComputedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_placements_computed_total",
				Help: "Shared habits processed by the placement job",
			},
			[]string{"outcome"},
		),

		LeaderboardRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cadence_leaderboard_refresh_duration_seconds",
			Help:    "Duration of leaderboard refreshes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
	}

	// register all custom metrics
	reg.MustRegister(
		m.HTTPRequestDuration,
		m.CacheRequestsTotal,
		m.CacheEvictionsTotal,
		m.PlacementJobDuration,
		m.PlacementsComputedTotal,
		m.LeaderboardRefreshDuration,
	)

	return m
}

// RecordHTTPRequest records the duration of an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

// RecordCacheHit counts a cache hit on backend.
func (m *Metrics) RecordCacheHit(backend string) {
	m.CacheRequestsTotal.WithLabelValues(backend, "hit").Inc()
}

// RecordCacheMiss counts a cache miss on backend.
func (m *Metrics) RecordCacheMiss(backend string) {
	m.CacheRequestsTotal.WithLabelValues(backend, "miss").Inc()
}

// RecordCacheError counts a failed cache lookup on backend.
func (m *Metrics) RecordCacheError(backend string) {
	m.CacheRequestsTotal.WithLabelValues(backend, "error").Inc()
}

// RecordCacheEvictions adds n evicted keys on backend.
func (m *Metrics) RecordCacheEvictions(backend string, n int) {
	m.CacheEvictionsTotal.WithLabelValues(backend).Add(float64(n))
}

// RecordPlacementJob records a placement run and its per-habit outcomes.
func (m *Metrics) RecordPlacementJob(durationSeconds float64, succeeded, failed int) {
	m.PlacementJobDuration.Observe(durationSeconds)
	m.PlacementsComputedTotal.WithLabelValues("succeeded").Add(float64(succeeded))
	m.PlacementsComputedTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordLeaderboardRefresh records the duration of a leaderboard refresh.
func (m *Metrics) RecordLeaderboardRefresh(durationSeconds float64) {
	m.LeaderboardRefreshDuration.Observe(durationSeconds)
}
