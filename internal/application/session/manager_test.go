package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
)

func TestManager_OpenGetClose(t *testing.T) {
	h := newHarness(t)
	adaSource(h)

	s, err := h.manager.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.manager.Len())

	got, err := h.manager.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, h.manager.Close(s.ID()))
	_, err = h.manager.Get(s.ID())
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	assert.True(t, shared.IsNotFound(err))

	assert.ErrorIs(t, h.manager.Close(s.ID()), shared.ErrSessionNotFound)
}

func TestManager_IdleSessionsExpire(t *testing.T) {
	h := newHarness(t)
	adaSource(h)

	s, err := h.manager.Open(context.Background())
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	_, err = h.manager.Get(s.ID())
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	_, err = h.manager.Get(s.ID())
	assert.ErrorIs(t, err, shared.ErrSessionExpired)
	assert.Zero(t, h.manager.Len())
}

func TestManager_ActivityKeepsSessionAlive(t *testing.T) {
	h := newHarness(t)
	adaSource(h)

	s, err := h.manager.Open(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.clock.Advance(50 * time.Minute)
		s.Validate()
	}
	_, err = h.manager.Get(s.ID())
	assert.NoError(t, err)
}

func TestManager_Sweep(t *testing.T) {
	h := newHarness(t)
	adaSource(h)
	ctx := context.Background()

	old, err := h.manager.Open(ctx)
	require.NoError(t, err)
	h.clock.Advance(90 * time.Minute)
	fresh, err := h.manager.Open(ctx)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.manager.Sweep())

	_, err = h.manager.Get(old.ID())
	assert.Error(t, err)
	_, err = h.manager.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManager_MaxSessions(t *testing.T) {
	h := newHarness(t)
	adaSource(h)
	h.manager.config.MaxSessions = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.manager.Open(ctx)
		require.NoError(t, err)
	}
	_, err := h.manager.Open(ctx)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	h.clock.Advance(2 * time.Hour)
	_, err = h.manager.Open(ctx)
	assert.NoError(t, err, "idle sessions are evicted to make room")
}

func TestManager_Capacity(t *testing.T) {
	h := newHarness(t)
	adaSource(h)
	h.manager.config.MaxSessions = 2
	ctx := context.Background()

	stats, err := h.manager.Capacity()
	require.NoError(t, err)
	assert.Equal(t, CapacityStats{Open: 0, Max: 2}, stats)

	for i := 0; i < 2; i++ {
		_, err := h.manager.Open(ctx)
		require.NoError(t, err)
	}
	stats, err = h.manager.Capacity()
	assert.ErrorIs(t, err, shared.ErrTooManySessions)
	assert.Equal(t, 2, stats.Open)

	h.clock.Advance(2 * time.Hour)
	stats, err = h.manager.Capacity()
	require.NoError(t, err)
	assert.Zero(t, stats.Open, "idle sessions do not count")
}
