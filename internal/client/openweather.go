package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/fusion-gateway/internal/models"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
	"go.uber.org/zap"
)

// ErrWeatherDisabled is reported in a skipped WeatherResult when no usable API
// key is configured.
var ErrWeatherDisabled = errors.New("weather lookups disabled: no API key")

// placeholderKeys are values shipped in sample configuration that can never
// authenticate.
var placeholderKeys = map[string]struct{}{
	"YOUR_API_KEY":        {},
	"default_weather_key": {},
}

// WeatherResult is the outcome of one best-effort weather lookup. Raw is nil
// whenever Err is set or the call was skipped.
type WeatherResult struct {
	Raw     *models.RawWeather
	Err     error
	Skipped bool
}

// OK reports whether the lookup produced data.
func (r WeatherResult) OK() bool { return r.Raw != nil && r.Err == nil }

// WeatherFetcher looks up current weather. It never fails the caller; every
// failure is carried in the result.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, location string) WeatherResult
}

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid weather API URL: %w", err)
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Enabled reports whether a usable API key is configured.
func (c *OpenWeatherClient) Enabled() bool {
	if c.apiKey == "" {
		return false
	}
	_, placeholder := placeholderKeys[c.apiKey]
	return !placeholder
}

// FetchWeather performs one bounded lookup for location. Without a usable key
// it returns a skipped result and makes no network call.
func (c *OpenWeatherClient) FetchWeather(ctx context.Context, location string) WeatherResult {
	logger := observability.LoggerFromContext(ctx)

	if !c.Enabled() {
		observability.WeatherUnavailableTotal.WithLabelValues("skipped").Inc()
		return WeatherResult{Err: ErrWeatherDisabled, Skipped: true}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw models.RawWeather
	if err := getJSON(reqCtx, c.client, upstreamOpenWeather, c.buildURL(location), &raw); err != nil {
		category := CategorizeError(err)
		observability.WeatherUnavailableTotal.WithLabelValues(string(category)).Inc()
		logger.Warn("weather lookup failed",
			zap.String("location", location),
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return WeatherResult{Err: err}
	}
	return WeatherResult{Raw: &raw}
}

func (c *OpenWeatherClient) buildURL(location string) string {
	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	return c.apiURL + "?" + params.Encode()
}

// ValidateAPIKey calls the API once with a known location. It returns
// ErrWeatherDisabled without a request when no key is configured and wraps
// ErrInvalidAPIKey when the API answers 401.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	if !c.Enabled() {
		return ErrWeatherDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("London"), nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
