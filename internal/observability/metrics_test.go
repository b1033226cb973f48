package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, cache and history packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/fusionados", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/fusionados").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	UpstreamCallsTotal.WithLabelValues("swapi", "success").Inc()
	UpstreamCallsTotal.WithLabelValues("openweather", "error").Inc()
	UpstreamDuration.WithLabelValues("openweather", "success").Observe(0.1)
	WeatherUnavailableTotal.WithLabelValues("timeout").Inc()
	CacheHitsTotal.WithLabelValues("redis").Inc()
	CacheMissesTotal.WithLabelValues("redis").Inc()
	CacheErrorsTotal.WithLabelValues("redis", "get").Inc()
	CacheOperationDuration.WithLabelValues("redis", "set").Observe(0.002)
	CacheStampedeTotal.Inc()
	CacheWarmingRunsTotal.WithLabelValues("success").Inc()
	CacheWarmingDurationSeconds.Observe(1.2)
	HistoryWritesTotal.WithLabelValues("fusion", "success").Inc()
	FusionResponsesTotal.WithLabelValues("cache").Inc()
	RateLimitDeniedTotal.WithLabelValues("auth").Inc()
	TokensIssuedTotal.Inc()
	AuthFailuresTotal.WithLabelValues("TOKEN_EXPIRED").Inc()
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
