package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/fusion-gateway/internal/models"
)

// failingStore returns err from every operation.
type failingStore struct {
	err   error
	block bool
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.block {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	return nil, false, f.err
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *failingStore) Ping(ctx context.Context) error { return f.err }
func (f *failingStore) Close() error                   { return nil }

func sampleRecords() []models.FusedRecord {
	h := 172
	return []models.FusedRecord{{
		Character: models.Character{Name: "Luke Skywalker", Height: &h, Homeworld: "https://swapi.dev/api/planets/1/"},
		Weather:   models.UnavailableWeather(),
	}}
}

func TestGateway_RoundTrip(t *testing.T) {
	g := NewGateway(NewInMemoryStore(nil), "in_memory", time.Second, nil)
	ctx := context.Background()

	var miss []models.FusedRecord
	l := g.Get(ctx, "fusionados", &miss)
	assert.False(t, l.Hit)
	assert.NoError(t, l.Err)

	w := g.Set(ctx, "fusionados", sampleRecords(), 1800*time.Second)
	require.NoError(t, w.Err)

	var got []models.FusedRecord
	l = g.Get(ctx, "fusionados", &got)
	require.True(t, l.Hit)
	assert.Equal(t, sampleRecords(), got)
}

// TestGateway_AbsorbsBackendErrors verifies a failing backend reads as a miss,
// a failed write is reported only in the result, and both log at warn.
func TestGateway_AbsorbsBackendErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := NewGateway(&failingStore{err: errors.New("connection refused")}, "redis", time.Second, zap.New(core))
	ctx := context.Background()

	var dst []models.FusedRecord
	l := g.Get(ctx, "fusionados", &dst)
	assert.False(t, l.Hit)
	assert.Error(t, l.Err)
	assert.Nil(t, dst)

	w := g.Set(ctx, "fusionados", sampleRecords(), time.Minute)
	assert.Error(t, w.Err)

	failures := logs.FilterMessage("cache operation failed, continuing without cache").All()
	require.Len(t, failures, 2)
	for _, e := range failures {
		assert.Equal(t, "redis", e.ContextMap()["backend"])
	}
}

func TestGateway_OpTimeout(t *testing.T) {
	g := NewGateway(&failingStore{block: true}, "redis", 20*time.Millisecond, nil)
	start := time.Now()

	var dst []models.FusedRecord
	l := g.Get(context.Background(), "k", &dst)
	assert.False(t, l.Hit)
	assert.ErrorIs(t, l.Err, context.DeadlineExceeded)
	w := g.Set(context.Background(), "k", 1, time.Minute)
	assert.ErrorIs(t, w.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateway_CorruptEntryIsMiss(t *testing.T) {
	store := NewInMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "fusionados", []byte("{not json"), time.Minute))

	g := NewGateway(store, "in_memory", time.Second, nil)
	var dst []models.FusedRecord
	l := g.Get(ctx, "fusionados", &dst)
	assert.False(t, l.Hit)
	assert.Error(t, l.Err)
}

func TestGateway_EncodeErrorSkipsWrite(t *testing.T) {
	store := NewInMemoryStore(nil)
	g := NewGateway(store, "in_memory", time.Second, nil)

	w := g.Set(context.Background(), "k", make(chan int), time.Minute)
	assert.Error(t, w.Err)
	_, ok, _ := store.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestGateway_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), time.Second)
	require.NoError(t, err)
	g := NewGateway(store, "redis", time.Second, nil)
	defer g.Close()

	ctx := context.Background()
	require.NoError(t, g.Ping(ctx))
	require.NoError(t, g.Set(ctx, "fusionados", sampleRecords(), 1800*time.Second).Err)

	var got []models.FusedRecord
	require.True(t, g.Get(ctx, "fusionados", &got).Hit)
	assert.Equal(t, "Luke Skywalker", got[0].Name)

	mr.Close()
	assert.Error(t, g.Ping(ctx))
	assert.False(t, g.Get(ctx, "fusionados", &got).Hit)
}
