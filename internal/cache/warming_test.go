package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/fusion-gateway/internal/models"
)

type mockRefresher struct {
	calls atomic.Int32
	err   error
	ran   chan struct{}
}

func (m *mockRefresher) Refresh(ctx context.Context) ([]models.FusedRecord, error) {
	m.calls.Add(1)
	if m.ran != nil {
		select {
		case m.ran <- struct{}{}:
		default:
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return []models.FusedRecord{{Weather: models.UnavailableWeather()}}, nil
}

func TestNewWarmer_InvalidSchedule(t *testing.T) {
	_, err := NewWarmer(&mockRefresher{}, "every now and then", nil)
	assert.Error(t, err)
}

func TestWarmer_Warm_Success(t *testing.T) {
	r := &mockRefresher{}
	w, err := NewWarmer(r, "@every 25m", nil)
	require.NoError(t, err)
	require.NoError(t, w.Warm(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestWarmer_Warm_RefresherError(t *testing.T) {
	r := &mockRefresher{err: errors.New("swapi down")}
	w, err := NewWarmer(r, "*/5 * * * *", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Warm(context.Background()), r.err)
}

// TestWarmer_StartStop verifies Start triggers an initial refresh and Stop
// returns once the scheduler has halted.
func TestWarmer_StartStop(t *testing.T) {
	r := &mockRefresher{ran: make(chan struct{}, 1)}
	w, err := NewWarmer(r, "@every 1h", nil)
	require.NoError(t, err)

	w.Start(context.Background())
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "initial refresh did not run")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Stop() did not return")
	}
}
