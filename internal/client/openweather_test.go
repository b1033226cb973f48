package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const tatooineJSON = `{"name":"Tatooine","main":{"temp":25,"humidity":60},"weather":[{"main":"Clear","description":"clear"}],"wind":{"speed":3}}`

func TestOpenWeatherClient_FetchWeather_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "https://swapi.dev/api/planets/1/" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("appid") != "test-api-key-12345" {
			t.Errorf("appid = %q", q.Get("appid"))
		}
		if q.Get("units") != "metric" {
			t.Errorf("units = %q, want metric", q.Get("units"))
		}
		_, _ = w.Write([]byte(tatooineJSON))
	}))
	defer server.Close()

	c, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	res := c.FetchWeather(context.Background(), "https://swapi.dev/api/planets/1/")
	if !res.OK() {
		t.Fatalf("FetchWeather() = %+v, want OK", res)
	}
	if res.Raw.Name != "Tatooine" || res.Raw.Main == nil || *res.Raw.Main.Temp != 25 {
		t.Errorf("unexpected raw weather: %+v", res.Raw)
	}
}

// TestOpenWeatherClient_FetchWeather_SkipsWithoutKey verifies that a missing or
// placeholder key short-circuits without any network call.
func TestOpenWeatherClient_FetchWeather_SkipsWithoutKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(tatooineJSON))
	}))
	defer server.Close()

	for _, key := range []string{"", "YOUR_API_KEY", "default_weather_key"} {
		c, err := NewOpenWeatherClient(key, server.URL, time.Second)
		if err != nil {
			t.Fatalf("NewOpenWeatherClient(%q) error = %v", key, err)
		}
		res := c.FetchWeather(context.Background(), "Tatooine")
		if !res.Skipped || res.Raw != nil || !errors.Is(res.Err, ErrWeatherDisabled) {
			t.Errorf("key %q: result = %+v, want skipped", key, res)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

// TestOpenWeatherClient_FetchWeather_AbsorbsFailures verifies that HTTP errors,
// bad bodies and timeouts come back in the result instead of panicking or
// blocking past the timeout.
func TestOpenWeatherClient_FetchWeather_AbsorbsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantErr: ErrLocationNotFound,
		},
		{
			name:    "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			wantErr: ErrRateLimited,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantErr: ErrUpstreamFailure,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
		},
		{
			name:    "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not json")) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c, _ := NewOpenWeatherClient("test-api-key-12345", server.URL, 50*time.Millisecond)
			start := time.Now()
			res := c.FetchWeather(context.Background(), "Tatooine")
			if res.OK() || res.Raw != nil || res.Err == nil || res.Skipped {
				t.Fatalf("result = %+v, want failure", res)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
			if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
				t.Errorf("FetchWeather took %v, want bounded by timeout", elapsed)
			}
		})
	}
}

func TestOpenWeatherClient_ValidateAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "appid=bad-key-000000") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(tatooineJSON))
	}))
	defer server.Close()

	good, _ := NewOpenWeatherClient("test-api-key-12345", server.URL, time.Second)
	if err := good.ValidateAPIKey(context.Background()); err != nil {
		t.Errorf("ValidateAPIKey(good) = %v, want nil", err)
	}
	bad, _ := NewOpenWeatherClient("bad-key-000000", server.URL, time.Second)
	if err := bad.ValidateAPIKey(context.Background()); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("ValidateAPIKey(bad) = %v, want ErrInvalidAPIKey", err)
	}
	off, _ := NewOpenWeatherClient("", server.URL, time.Second)
	if err := off.ValidateAPIKey(context.Background()); !errors.Is(err, ErrWeatherDisabled) {
		t.Errorf("ValidateAPIKey(empty) = %v, want ErrWeatherDisabled", err)
	}
}
