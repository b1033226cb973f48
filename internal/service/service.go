package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/fusion-gateway/internal/cache"
	"github.com/kjstillabower/fusion-gateway/internal/client"
	"github.com/kjstillabower/fusion-gateway/internal/history"
	"github.com/kjstillabower/fusion-gateway/internal/models"
	"github.com/kjstillabower/fusion-gateway/internal/normalize"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// ErrNoCharacters is returned when the character source answers with an
// empty list. There is nothing to fuse, so it is reported as not found.
var ErrNoCharacters = errors.New("no characters returned by upstream")

const (
	DefaultCacheKey    = "fusionados"
	DefaultCacheTTL    = 1800 * time.Second
	DefaultConcurrency = 10
)

// Cache is the best-effort cache the service reads and writes.
type Cache interface {
	Get(ctx context.Context, key string, dst any) cache.Lookup
	Set(ctx context.Context, key string, value any, ttl time.Duration) cache.Write
}

// HistoryAppender persists fused results.
type HistoryAppender interface {
	Append(ctx context.Context, kind history.Kind, payload any) (history.Record, error)
}

// Options tunes the fusion pipeline. Zero values take the package defaults.
type Options struct {
	CacheKey    string
	CacheTTL    time.Duration
	Concurrency int
}

// FusionService joins SWAPI characters with the weather of their homeworld,
// cache-aside, and records every freshly built result in history.
type FusionService struct {
	characters client.CharacterFetcher
	weather    client.WeatherFetcher
	cache      Cache
	history    HistoryAppender

	cacheKey    string
	ttl         time.Duration
	concurrency int

	stampedeTracker *stampedeTracker
	logger          *zap.Logger
}

// NewFusionService creates a FusionService with the provided dependencies.
func NewFusionService(characters client.CharacterFetcher, weather client.WeatherFetcher, c Cache, h HistoryAppender, opts Options, logger *zap.Logger) *FusionService {
	if opts.CacheKey == "" {
		opts.CacheKey = DefaultCacheKey
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FusionService{
		characters:      characters,
		weather:         weather,
		cache:           c,
		history:         h,
		cacheKey:        opts.CacheKey,
		ttl:             opts.CacheTTL,
		concurrency:     opts.Concurrency,
		stampedeTracker: newStampedeTracker(),
		logger:          logger,
	}
}

// GetFused returns the fused dataset, from cache when present. On a miss it
// rebuilds from upstream, writes the cache and appends a history record;
// neither side effect can fail the call. Errors wrap
// client.ErrUpstreamUnavailable or ErrNoCharacters.
//
// The pipeline runs detached from the caller's cancellation: once started,
// upstream fetches and writes complete even if the client goes away.
func (s *FusionService) GetFused(ctx context.Context) (models.FusionResult, error) {
	ctx = context.WithoutCancel(ctx)
	logger := observability.LoggerFromContextOr(ctx, s.logger)
	start := time.Now()

	var cached []models.FusedRecord
	if s.cache.Get(ctx, s.cacheKey, &cached).Hit {
		observability.FusionResponsesTotal.WithLabelValues(models.SourceCache).Inc()
		logger.Debug("fusion served", zap.String("source", models.SourceCache), zap.Int("records", len(cached)))
		return models.FusionResult{Source: models.SourceCache, Data: cached}, nil
	}

	if n := s.stampedeTracker.RecordMiss(s.cacheKey); n > 1 {
		observability.CacheStampedeTotal.Inc()
		logger.Debug("concurrent rebuild of cache key", zap.String("key", s.cacheKey), zap.Int("concurrent", n))
	}
	defer s.stampedeTracker.RecordHit(s.cacheKey)

	records, err := s.build(ctx)
	if err != nil {
		return models.FusionResult{}, err
	}

	s.cache.Set(ctx, s.cacheKey, records, s.ttl)

	if _, err := s.history.Append(ctx, history.KindFusion, records); err != nil {
		logger.Warn("history write failed, responding without audit record", zap.Error(err))
	}

	observability.FusionResponsesTotal.WithLabelValues(models.SourceAPI).Inc()
	logger.Debug("fusion served",
		zap.String("source", models.SourceAPI),
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)),
	)
	return models.FusionResult{Source: models.SourceAPI, Data: records}, nil
}

// Refresh rebuilds the dataset and overwrites the cache entry without
// reading the cache or writing history. Used by the cache warmer.
func (s *FusionService) Refresh(ctx context.Context) ([]models.FusedRecord, error) {
	records, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if w := s.cache.Set(ctx, s.cacheKey, records, s.ttl); w.Err != nil {
		return records, fmt.Errorf("refresh cache: %w", w.Err)
	}
	return records, nil
}

// build fetches characters, then the weather of every homeworld concurrently,
// and joins them by position. Weather failures never fail the build.
func (s *FusionService) build(ctx context.Context) ([]models.FusedRecord, error) {
	raw, err := s.characters.FetchCharacters(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoCharacters
	}
	chars := normalize.Characters(raw)

	weather := make([]models.Weather, len(chars))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range chars {
		i, c := i, c
		g.Go(func() error {
			res := s.weather.FetchWeather(ctx, c.Homeworld)
			weather[i] = normalize.Weather(res.Raw)
			return nil
		})
	}
	_ = g.Wait()

	return normalize.Fuse(chars, weather), nil
}
