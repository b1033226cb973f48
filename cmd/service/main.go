package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/auth"
	"github.com/kjstillabower/fusion-gateway/internal/cache"
	"github.com/kjstillabower/fusion-gateway/internal/client"
	"github.com/kjstillabower/fusion-gateway/internal/config"
	"github.com/kjstillabower/fusion-gateway/internal/history"
	httphandler "github.com/kjstillabower/fusion-gateway/internal/http"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
	"github.com/kjstillabower/fusion-gateway/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.FlushLogs(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.JWTSecretDefaulted {
		logger.Warn("JWT_SECRET not set; using development secret", zap.String("environment", cfg.Environment))
	}

	swapiClient, err := client.NewSWAPIClient(cfg.SWAPIURL, cfg.SWAPITimeout)
	if err != nil {
		logger.Fatal("swapi client", zap.Error(err))
	}
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if !weatherClient.Enabled() {
		logger.Warn("WEATHER_API_KEY not set; fused records will carry unavailable weather")
	} else {
		go checkWeatherKey(context.Background(), weatherClient, logger)
	}

	store, err := newCacheStore(cfg)
	if err != nil {
		logger.Fatal("cache store", zap.Error(err))
	}
	cacheGateway := cache.NewGateway(store, cfg.CacheBackend, cfg.CacheOpTimeout, logger)
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	historyStore, err := newHistoryStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal("history store", zap.Error(err))
	}
	historyLog := history.NewLog(historyStore, nil, cfg.HistoryOpTimeout, logger)
	logger.Info("history backend", zap.String("backend", cfg.HistoryBackend))

	fusionService := service.NewFusionService(swapiClient, weatherClient, cacheGateway, historyLog, service.Options{
		CacheTTL:    cfg.CacheTTL,
		Concurrency: cfg.FusionConcurrency,
	}, logger)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, nil)
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		Environment:  cfg.Environment,
		StartTime:    time.Now(),
		CacheBackend: cfg.CacheBackend,
		CachePing:    cacheGateway.Ping,
	}
	handler := httphandler.NewHandler(fusionService, historyLog, issuer, healthConfig, logger)
	router := httphandler.NewRouter(handler, issuer, httphandler.RouterConfig{
		APILimit:      httphandler.RateLimit(cfg.APIRateLimit),
		ExternalLimit: httphandler.RateLimit(cfg.ExternalRateLimit),
		AuthLimit:     httphandler.RateLimit(cfg.AuthRateLimit),
	}, logger)

	var warmer *cache.Warmer
	if cfg.CacheWarmSchedule != "" {
		warmer, err = cache.NewWarmer(fusionService, cfg.CacheWarmSchedule, logger)
		if err != nil {
			logger.Fatal("cache warmer", zap.Error(err))
		}
		warmer.Start(context.Background())
		logger.Info("cache warming enabled", zap.String("schedule", cfg.CacheWarmSchedule))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if warmer != nil {
		warmer.Stop()
	}
	if err := cacheGateway.Close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	if err := historyLog.Close(); err != nil {
		logger.Error("history close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newCacheStore builds the configured cache backend. Redis and memcached
// clients connect lazily, so an unreachable server does not block startup.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		rs, err := cache.NewRedisStore(cfg.RedisURL, cfg.CacheOpTimeout)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "memcached":
		return cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns), nil
	case "in_memory":
		return cache.NewInMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// newHistoryStore builds the configured history backend.
func newHistoryStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.HistoryBackend {
	case "dynamodb":
		api, err := history.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		return history.NewDynamoStore(api, cfg.DynamoTable), nil
	case "sqlite":
		ss, err := history.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

// weatherKeyValidator is satisfied by *client.OpenWeatherClient.
type weatherKeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// checkWeatherKey calls the weather API once and logs a warning when the
// key is rejected or the API cannot be reached. The service runs either way.
func checkWeatherKey(ctx context.Context, v weatherKeyValidator, logger *zap.Logger) {
	if err := v.ValidateAPIKey(ctx); err != nil {
		logger.Warn("weather API key check failed; fused records may carry unavailable weather", zap.Error(err))
		return
	}
	logger.Info("weather API key validated")
}
