package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Log owns a Store and stamps new records with an id and creation time.
type Log struct {
	store     Store
	clock     clockwork.Clock
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewLog returns a Log over store. A nil clock uses wall time; a zero
// opTimeout leaves backend calls bounded only by ctx.
func NewLog(store Store, clock clockwork.Clock, opTimeout time.Duration, logger *zap.Logger) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: store, clock: clock, opTimeout: opTimeout, logger: logger}
}

// NewID returns "<kind>-<unix millis>-<8 hex chars>".
func NewID(kind Kind, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", kind, now.UnixMilli(), suffix)
}

// Append stores payload as a new record of kind. The payload is encoded as
// JSON; a backend failure wraps ErrStorageUnavailable.
func (l *Log) Append(ctx context.Context, kind Kind, payload any) (Record, error) {
	if kind != KindFusion && kind != KindCustom {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode payload: %w", err)
	}

	now := l.clock.Now().UTC()
	rec := Record{
		ID:        NewID(kind, now),
		Kind:      kind,
		CreatedAt: now.Format(TimeLayout),
		Payload:   data,
	}

	opCtx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := l.store.Put(opCtx, rec); err != nil {
		observability.HistoryWritesTotal.WithLabelValues(string(kind), "error").Inc()
		return Record{}, fmt.Errorf("%w: put %s: %w", ErrStorageUnavailable, rec.ID, err)
	}
	observability.HistoryWritesTotal.WithLabelValues(string(kind), "success").Inc()
	observability.LoggerFromContextOr(ctx, l.logger).Debug("history record stored",
		zap.String("id", rec.ID),
		zap.String("kind", string(kind)),
	)
	return rec, nil
}

// ClampPageSize maps n into [1, MaxPageSize]; non-positive means default.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Query returns one page of kind, newest first. cursor is the NextCursor of
// a previous page or empty for the first page.
func (l *Log) Query(ctx context.Context, kind Kind, pageSize int, cursor string) (Page, error) {
	if kind != KindFusion && kind != KindCustom {
		return Page{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	opCtx, cancel := l.withTimeout(ctx)
	defer cancel()

	page, err := l.store.Query(opCtx, Query{Kind: kind, Limit: ClampPageSize(pageSize), Cursor: cursor})
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return Page{}, err
		}
		return Page{}, fmt.Errorf("%w: query %s: %w", ErrStorageUnavailable, kind, err)
	}
	if page.Items == nil {
		page.Items = []Record{}
	}
	page.Count = len(page.Items)
	return page, nil
}

// Close releases the backend.
func (l *Log) Close() error {
	return l.store.Close()
}

func (l *Log) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opTimeout)
}
