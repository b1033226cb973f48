package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by service (swapi, openweather) and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: openweather p99 near the 5s timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Weather lookups that degraded to the unavailable sentinel, by reason.
	WeatherUnavailableTotal *prometheus.CounterVec

	// Cache lookups. Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures absorbed by the gateway, by operation.
	CacheErrorsTotal *prometheus.CounterVec

	CacheOperationDuration *prometheus.HistogramVec

	// Concurrent rebuilds of the same cache key. Non-zero means a stampede.
	CacheStampedeTotal prometheus.Counter

	// Background refreshes of the fusion cache entry, by outcome.
	CacheWarmingRunsTotal       *prometheus.CounterVec
	CacheWarmingDurationSeconds prometheus.Histogram

	// History writes by kind and outcome.
	HistoryWritesTotal *prometheus.CounterVec

	// Fusion responses by source (cache, api).
	FusionResponsesTotal *prometheus.CounterVec

	// Rate limit denials by class (api, external, auth).
	RateLimitDeniedTotal *prometheus.CounterVec

	TokensIssuedTotal prometheus.Counter

	// Auth failures by error code.
	AuthFailuresTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "status"},
	)
	WeatherUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherUnavailableTotal",
			Help: "Weather lookups replaced by the unavailable placeholder",
		},
		[]string{"reason"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend failures treated as miss or skipped write",
		},
		[]string{"cacheType", "operation"},
	)
	CacheOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache backend operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		},
		[]string{"cacheType", "operation"},
	)
	CacheStampedeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheStampedeTotal",
			Help: "Cache misses that started a rebuild while another rebuild of the same key was running",
		},
	)
	CacheWarmingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheWarmingRunsTotal",
			Help: "Scheduled cache refresh runs, by outcome",
		},
		[]string{"status"},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of scheduled cache refresh runs",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	HistoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "historyWritesTotal",
			Help: "History records written, by kind and outcome",
		},
		[]string{"kind", "status"},
	)
	FusionResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusionResponsesTotal",
			Help: "Fused results served, by source",
		},
		[]string{"source"},
	)
	RateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
		[]string{"class"},
	)
	TokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokensIssuedTotal",
			Help: "Total number of access tokens issued",
		},
	)
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authFailuresTotal",
			Help: "Rejected bearer tokens, by error code",
		},
		[]string{"code"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, WeatherUnavailableTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheOperationDuration, CacheStampedeTotal,
		CacheWarmingRunsTotal, CacheWarmingDurationSeconds,
		HistoryWritesTotal, FusionResponsesTotal,
		RateLimitDeniedTotal, TokensIssuedTotal, AuthFailuresTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
