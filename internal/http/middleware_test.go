package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/fusion-gateway/internal/auth"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// TestCorrelationIDMiddleware_PropagatesHeader verifies that an incoming
// correlation id is echoed and exposed through the context.
func TestCorrelationIDMiddleware_PropagatesHeader(t *testing.T) {
	var gotID string
	var gotLogger *zap.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = observability.CorrelationIDFromContext(r.Context())
		gotLogger = observability.LoggerFromContext(r.Context())
	})

	core, logs := observer.New(zapcore.InfoLevel)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	CorrelationIDMiddleware(zap.New(core))(next).ServeHTTP(w, req)

	if gotID != "abc-123" {
		t.Errorf("context correlation id = %q, want abc-123", gotID)
	}
	if w.Header().Get("X-Correlation-ID") != "abc-123" {
		t.Errorf("response header = %q, want abc-123", w.Header().Get("X-Correlation-ID"))
	}
	gotLogger.Info("hello")
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "abc-123" {
		t.Errorf("logger fields = %v, want correlation_id=abc-123", entries)
	}
}

// TestCorrelationIDMiddleware_GeneratesID verifies that a missing header gets
// a generated id.
func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	w := httptest.NewRecorder()
	CorrelationIDMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(w.Header().Get("X-Correlation-ID")) != 36 {
		t.Errorf("generated id = %q, want a UUID", w.Header().Get("X-Correlation-ID"))
	}
}

// TestCORSMiddleware verifies headers on normal requests and the preflight
// short-circuit.
func TestCORSMiddleware(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/fusionados", nil))
	if w.Code != http.StatusOK || called {
		t.Errorf("preflight status = %d, called = %v; want 200 without calling next", w.Code, called)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fusionados", nil))
	if !called || w.Code != http.StatusTeapot {
		t.Errorf("GET not passed through: status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("Allow-Methods = %q", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

// TestMetricsMiddleware_UsesRouteTemplate verifies that metrics are labelled
// with the matched route and the in-flight tracker returns to zero.
func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	var during int64
	router.HandleFunc("/historial", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusCreated)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/historial?page=2", nil))

	scrape := httptest.NewRecorder()
	observability.MetricsHandler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `httpRequestsTotal{method="GET",route="/historial",statusCode="2xx"}`
	if !strings.Contains(scrape.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
	if during < 1 {
		t.Errorf("in-flight during request = %d, want >= 1", during)
	}
	if InFlightCount() != 0 {
		t.Errorf("in-flight after request = %d, want 0", InFlightCount())
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

// TestAuthMiddleware verifies each rejection code and that valid claims
// reach the handler.
func TestAuthMiddleware(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer := newTestIssuer(t, clock)
	valid, _, err := issuer.Issue("luke", auth.RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	other, err := auth.NewIssuer("another-secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	forged, _, _ := other.Issue("luke", auth.RoleUser)
	past := newTestIssuer(t, clockwork.NewFakeClockAt(clock.Now().Add(-2*time.Hour)))
	expired, _, _ := past.Issue("luke", auth.RoleUser)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"wrong scheme", "Basic abc", "INVALID_AUTH_FORMAT"},
		{"empty token", "Bearer   ", "EMPTY_TOKEN"},
		{"garbage", "Bearer not-a-jwt", "TOKEN_MALFORMED"},
		{"wrong secret", "Bearer " + forged, "INVALID_SIGNATURE"},
		{"expired", "Bearer " + expired, "TOKEN_EXPIRED"},
		{"valid", "Bearer " + valid, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *auth.Claims
			h := AuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, _ = ClaimsFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/validate-token", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if tt.wantCode == "" {
				if w.Code != http.StatusOK || claims == nil || claims.Username != "luke" {
					t.Errorf("status = %d, claims = %+v; want 200 with luke", w.Code, claims)
				}
				return
			}
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if body := decodeBody(t, w); body["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
			}
		})
	}
}

func TestClaimsFromContext_Missing(t *testing.T) {
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Error("ClaimsFromContext() ok = true on empty context")
	}
}
