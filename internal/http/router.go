package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/auth"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// RouterConfig carries the per-class rate limits. A zero RateLimit
// disables limiting for that class.
type RouterConfig struct {
	APILimit      RateLimit
	ExternalLimit RateLimit
	AuthLimit     RateLimit
	// Clock drives the rate limiters; nil uses wall time.
	Clock clockwork.Clock
}

// NewRouter wires every route with its middleware. CORS and correlation ids
// are applied ahead of routing so 404 responses carry them too.
func NewRouter(h *Handler, issuer *auth.Issuer, cfg RouterConfig, logger *zap.Logger) http.Handler {
	apiLimit := RateLimitMiddleware(NewClientLimiter("api", cfg.APILimit, cfg.Clock))
	externalLimit := RateLimitMiddleware(NewClientLimiter("external", cfg.ExternalLimit, cfg.Clock))
	authLimit := RateLimitMiddleware(NewClientLimiter("auth", cfg.AuthLimit, cfg.Clock))
	requireAuth := AuthMiddleware(issuer)

	router := mux.NewRouter()
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/docs", h.GetDocs).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.Handle("/token", authLimit(http.HandlerFunc(h.PostToken))).Methods(http.MethodPost)
	router.Handle("/validate-token", requireAuth(http.HandlerFunc(h.ValidateToken))).Methods(http.MethodGet)

	router.Handle("/fusionados", externalLimit(http.HandlerFunc(h.GetFusionados))).Methods(http.MethodGet)
	router.Handle("/almacenar", apiLimit(requireAuth(http.HandlerFunc(h.PostAlmacenar)))).Methods(http.MethodPost)
	router.Handle("/historial", apiLimit(requireAuth(http.HandlerFunc(h.GetHistorial)))).Methods(http.MethodGet)

	router.NotFoundHandler = MetricsMiddleware(http.HandlerFunc(h.NotFound))
	router.MethodNotAllowedHandler = MetricsMiddleware(http.HandlerFunc(h.MethodNotAllowed))

	return CORSMiddleware(CorrelationIDMiddleware(logger)(AccessLogMiddleware(router)))
}
