// Package client talks to the two upstream APIs the gateway fuses: the SWAPI
// people endpoint and the OpenWeather current-weather endpoint. Each call is a
// single attempt; resilience is left to the caller's infrastructure.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

var (
	// ErrUpstreamUnavailable wraps every failure of a required upstream call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamUnreachable additionally marks connection-class failures
	// (timeout, refused, DNS) so the HTTP edge can answer 503 instead of 502.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

const (
	upstreamSWAPI       = "swapi"
	upstreamOpenWeather = "openweather"
)

// getJSON performs one GET against rawURL and decodes a 2xx body into dst.
// Metrics are recorded under the given upstream label.
func getJSON(ctx context.Context, hc *http.Client, upstream, rawURL string, dst any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(upstream, "error").Observe(duration)
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(upstream, status).Inc()
	observability.UpstreamDuration.WithLabelValues(upstream, status).Observe(duration)

	if err := errorForStatus(resp.StatusCode); err != nil {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func errorForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

// isConnectionError reports whether err is a transport-level failure: the
// upstream could not be reached or did not answer in time.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
