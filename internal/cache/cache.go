// Package cache holds the fusion result cache. A Store is a raw byte-oriented
// backend; the Gateway on top of it is best-effort and never fails a caller.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store is a key-value backend with per-entry expiry. Get returns
// (nil, false, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// InMemoryStore implements Store using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryStore struct {
	mu    sync.Mutex
	data  map[string]entry
	clock clockwork.Clock
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryStore creates an in-memory store. A nil clock uses wall time.
func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryStore{
		data:  make(map[string]entry),
		clock: clock,
	}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{
		value:     buf,
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *InMemoryStore) Close() error { return nil }
