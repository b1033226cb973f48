package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// DefaultOpTimeout bounds a single backend call when none is configured.
const DefaultOpTimeout = time.Second

// Lookup is the outcome of a best-effort Get. Err records an absorbed
// failure; a lookup with Err set is always a miss.
type Lookup struct {
	Hit bool
	Err error
}

// Write is the outcome of a best-effort Set.
type Write struct {
	Err error
}

// Gateway wraps a Store with JSON encoding and absorbs every failure:
// backend errors, timeouts and codec errors turn into a miss or a skipped
// write, are logged at warn and counted.
type Gateway struct {
	store     Store
	backend   string
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewGateway returns a Gateway over store. backend labels metrics and logs.
func NewGateway(store Store, backend string, opTimeout time.Duration, logger *zap.Logger) *Gateway {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, backend: backend, opTimeout: opTimeout, logger: logger}
}

// Get looks up key and decodes the value into dst on a hit.
func (g *Gateway) Get(ctx context.Context, key string, dst any) Lookup {
	logger := observability.LoggerFromContextOr(ctx, g.logger)

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	start := time.Now()
	raw, ok, err := g.store.Get(opCtx, key)
	observability.CacheOperationDuration.WithLabelValues(g.backend, "get").Observe(time.Since(start).Seconds())
	if err != nil {
		g.absorb(logger, "get", key, err)
		observability.CacheMissesTotal.WithLabelValues(g.backend).Inc()
		return Lookup{Err: err}
	}
	if !ok {
		logger.Debug("cache miss", zap.String("key", key))
		observability.CacheMissesTotal.WithLabelValues(g.backend).Inc()
		return Lookup{}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		err = fmt.Errorf("decode cached value: %w", err)
		g.absorb(logger, "decode", key, err)
		observability.CacheMissesTotal.WithLabelValues(g.backend).Inc()
		return Lookup{Err: err}
	}
	logger.Debug("cache hit", zap.String("key", key))
	observability.CacheHitsTotal.WithLabelValues(g.backend).Inc()
	return Lookup{Hit: true}
}

// Set encodes value and stores it under key for ttl.
func (g *Gateway) Set(ctx context.Context, key string, value any, ttl time.Duration) Write {
	logger := observability.LoggerFromContextOr(ctx, g.logger)

	raw, err := json.Marshal(value)
	if err != nil {
		err = fmt.Errorf("encode value: %w", err)
		g.absorb(logger, "encode", key, err)
		return Write{Err: err}
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	start := time.Now()
	err = g.store.Set(opCtx, key, raw, ttl)
	observability.CacheOperationDuration.WithLabelValues(g.backend, "set").Observe(time.Since(start).Seconds())
	if err != nil {
		g.absorb(logger, "set", key, err)
		return Write{Err: err}
	}
	return Write{}
}

// Ping checks backend reachability within the operation timeout. Unlike Get
// and Set it reports the error; it backs the health check only.
func (g *Gateway) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()
	return g.store.Ping(opCtx)
}

// Close releases the backend client.
func (g *Gateway) Close() error {
	return g.store.Close()
}

func (g *Gateway) absorb(logger *zap.Logger, op, key string, err error) {
	observability.CacheErrorsTotal.WithLabelValues(g.backend, op).Inc()
	logger.Warn("cache operation failed, continuing without cache",
		zap.String("backend", g.backend),
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
