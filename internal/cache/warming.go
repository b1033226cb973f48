package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/models"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// Refresher is implemented by the service layer to rebuild and cache the
// fused result. Used by Warmer to avoid a dependency on the service package.
type Refresher interface {
	Refresh(ctx context.Context) ([]models.FusedRecord, error)
}

// Warmer refreshes the fusion cache entry on a cron schedule so requests
// rarely see a cold cache.
type Warmer struct {
	refresher Refresher
	logger    *zap.Logger
	cron      *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWarmer validates schedule (standard five-field cron expression or a descriptor
// such as "@every 25m") and returns a stopped Warmer.
func NewWarmer(refresher Refresher, schedule string, logger *zap.Logger) (*Warmer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{s: logger.Sugar()}
	w := &Warmer{
		refresher: refresher,
		logger:    logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := w.cron.AddFunc(schedule, w.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid warming schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Warm runs one refresh and records its outcome.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("warming fusion cache")

	records, err := w.refresher.Refresh(ctx)
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if err != nil {
		observability.CacheWarmingRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cache warming: %w", err)
	}
	observability.CacheWarmingRunsTotal.WithLabelValues("success").Inc()
	w.logger.Info("cache warming complete",
		zap.Int("records", len(records)),
		zap.Float64("duration_seconds", duration),
	)
	return nil
}

// Start runs an initial refresh in the background and then follows the
// schedule until Stop or until ctx is done.
func (w *Warmer) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	runCtx := w.ctx
	w.mu.Unlock()

	go func() {
		if err := w.Warm(runCtx); err != nil {
			w.logger.Warn("initial cache warm failed", zap.Error(err))
		}
	}()
	w.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (w *Warmer) Stop() {
	done := w.cron.Stop()
	<-done.Done()
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()
}

func (w *Warmer) runScheduled() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := w.Warm(ctx); err != nil {
		w.logger.Warn("scheduled cache warm failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
