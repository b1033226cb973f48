package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/apperr"
	"github.com/kjstillabower/fusion-gateway/internal/auth"
	"github.com/kjstillabower/fusion-gateway/internal/history"
	"github.com/kjstillabower/fusion-gateway/internal/models"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
	"github.com/kjstillabower/fusion-gateway/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

const serviceName = "fusion-gateway"

// FusionGetter serves the fused dataset.
type FusionGetter interface {
	GetFused(ctx context.Context) (models.FusionResult, error)
}

// HistoryLog appends and pages through stored records.
type HistoryLog interface {
	Append(ctx context.Context, kind history.Kind, payload any) (history.Record, error)
	Query(ctx context.Context, kind history.Kind, pageSize int, cursor string) (history.Page, error)
}

// HealthConfig holds the static facts reported by GET /health.
type HealthConfig struct {
	Environment string
	Version     string
	StartTime   time.Time
	// CacheBackend and CachePing report cache reachability; informational only.
	CacheBackend string
	CachePing    func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	fusion       FusionGetter
	history      HistoryLog
	issuer       *auth.Issuer
	healthConfig *HealthConfig
	logger       *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(fusion FusionGetter, hist HistoryLog, issuer *auth.Issuer, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if healthConfig == nil {
		healthConfig = &HealthConfig{StartTime: time.Now()}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		fusion:       fusion,
		history:      hist,
		issuer:       issuer,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetFusionados handles GET /fusionados.
func (h *Handler) GetFusionados(w http.ResponseWriter, r *http.Request) {
	result, err := h.fusion.GetFused(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostAlmacenar handles POST /almacenar. The body must be a non-empty JSON
// object and is stored verbatim as a custom history record.
func (h *Handler) PostAlmacenar(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
			return
		}
		writeAppError(w, r, apperr.Validation("VALIDATION_ERROR", "Request body could not be read"))
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		writeAppError(w, r, apperr.Validation("VALIDATION_ERROR", validation.ErrBodyRequired.Error()))
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		writeAppError(w, r, apperr.Validation("VALIDATION_ERROR", validation.ErrBodyRequired.Error()))
		return
	}

	rec, err := h.history.Append(r.Context(), history.KindCustom, json.RawMessage(compact.Bytes()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Data stored successfully",
		"id":      rec.ID,
	})
}

type historyResponse struct {
	Items      []history.Record `json:"items"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Count      int              `json:"count"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// GetHistorial handles GET /historial?page=&limit=&cursor=&kind=.
// page is echoed back; the cursor drives pagination.
func (h *Handler) GetHistorial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := validation.IntOrDefault(q.Get("page"), 1)
	limit := history.ClampPageSize(validation.IntOrDefault(q.Get("limit"), history.DefaultPageSize))

	kind, err := history.ParseKind(q.Get("kind"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := h.history.Query(r.Context(), kind, limit, q.Get("cursor"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Items:      result.Items,
		Page:       page,
		Limit:      limit,
		Count:      result.Count,
		NextCursor: result.NextCursor,
	})
}

type tokenRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn string `json:"expiresIn"`
	Message   string `json:"message"`
}

// PostToken handles POST /token.
func (h *Handler) PostToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAppError(w, r, apperr.Validation("VALIDATION_ERROR", "Body must be a JSON object with string username and password"))
		return
	}

	username, err := validation.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		writeAppError(w, r, apperr.Validation("VALIDATION_ERROR", strings.Join(validation.Messages(err), ", ")))
		return
	}

	token, _, err := h.issuer.Issue(username, auth.RoleUser)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	observability.TokensIssuedTotal.Inc()
	observability.LoggerFromContextOr(r.Context(), h.logger).Info("token issued", zap.String("username", username))

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: auth.ExpiresIn(h.issuer.TTL()),
		Message:   "Token generated successfully",
	})
}

// ValidateToken handles GET /validate-token. AuthMiddleware has already
// verified the token.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "No user information in token")
		return
	}
	user := map[string]interface{}{
		"username":  claims.Username,
		"role":      claims.Role,
		"issuedAt":  nil,
		"expiresAt": nil,
	}
	if claims.IssuedAt != nil {
		user["issuedAt"] = claims.IssuedAt.UTC().Format(history.TimeLayout)
	}
	if claims.ExpiresAt != nil {
		user["expiresAt"] = claims.ExpiresAt.UTC().Format(history.TimeLayout)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"user":    user,
		"message": "Token is valid",
	})
}

// GetHealth handles GET /health. The process is healthy whenever it can
// answer; the cache check is informational because the cache is optional.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	if h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(r.Context()); err != nil {
			checks["cache"] = "unhealthy"
			observability.LoggerFromContextOr(r.Context(), h.logger).Debug("cache ping failed", zap.Error(err))
		} else {
			checks["cache"] = "healthy"
		}
	}
	resp := map[string]interface{}{
		"status":      "healthy",
		"service":     serviceName,
		"environment": h.healthConfig.Environment,
		"uptime":      time.Since(h.healthConfig.StartTime).Seconds(),
		"timestamp":   time.Now().UTC().Format(history.TimeLayout),
		"checks":      checks,
	}
	if h.healthConfig.CacheBackend != "" {
		resp["cacheBackend"] = h.healthConfig.CacheBackend
	}
	writeJSON(w, http.StatusOK, resp)
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	version := h.healthConfig.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Character and weather fusion API",
		"version":       version,
		"documentation": "/docs",
		"health":        "/health",
		"endpoints": map[string]map[string]string{
			"authentication": {
				"POST /token":         "Issue a bearer token",
				"GET /validate-token": "Validate a bearer token (requires authentication)",
			},
			"main": {
				"GET /fusionados": "Characters fused with their homeworld weather",
				"POST /almacenar": "Store a custom JSON document (requires authentication)",
				"GET /historial":  "Page through stored records (requires authentication)",
			},
		},
	})
}

var availableEndpoints = []string{
	"GET /",
	"GET /health",
	"GET /docs",
	"GET /metrics",
	"POST /token",
	"GET /validate-token",
	"GET /fusionados",
	"POST /almacenar",
	"GET /historial",
}

// NotFound answers unknown routes with the list of valid ones.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":              "NOT_FOUND",
		"message":            "Route " + r.Method + " " + r.URL.RequestURI() + " does not exist",
		"availableEndpoints": availableEndpoints,
	})
}

// MethodNotAllowed answers a known path used with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method "+r.Method+" is not allowed on "+r.URL.Path)
}
