package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/repositories/games"
	"github.com/undercroft/undercroft/internal/uuid"
)

type registryHarness struct {
	r     *Registry
	repo  games.Repository
	clock *fakeClock
}

func newRegistryHarness(t *testing.T, settings func(*RegistryConfig)) *registryHarness {
	t.Helper()

	bus := events.NewBus(zap.NewNop())
	h := &registryHarness{
		repo:  games.NewInMemory(),
		clock: newFakeClock(),
	}
	cfg := RegistryConfig{
		Settings: testSettings(),
		Bus:      bus,
		Monsters: &stubMonsters{},
		Repo:     h.repo,
		IDGen:    uuid.NewDeterministicGenerator("game"),
		Clock:    h.clock.Now,
	}
	if settings != nil {
		settings(&cfg)
	}
	h.r = NewRegistry(cfg)

	t.Cleanup(func() {
		require.NoError(t, h.r.StopAll(context.Background()))
		bus.Close()
	})
	return h
}

func TestRegistryCreateAndGet(t *testing.T) {
	h := newRegistryHarness(t, nil)

	g, err := h.r.Create(context.Background(), "First Delve")
	require.NoError(t, err)
	assert.Equal(t, "First Delve", g.Name())

	got, ok := h.r.Get(g.ID())
	require.True(t, ok)
	assert.Same(t, g, got)

	_, ok = h.r.Get("missing")
	assert.False(t, ok)

	assert.Len(t, h.r.List(), 1)
}

func TestRegistryFindOrRestore(t *testing.T) {
	h := newRegistryHarness(t, nil)
	ctx := context.Background()

	g, err := h.r.Create(ctx, "Persistent")
	require.NoError(t, err)
	id := g.ID()

	// A live game comes back without touching the repository.
	same, err := h.r.FindOrRestore(ctx, id)
	require.NoError(t, err)
	assert.Same(t, g, same)

	// Stop everything so the save is the only copy, then restore.
	require.NoError(t, h.r.StopAll(ctx))
	_, ok := h.r.Get(id)
	require.False(t, ok)

	restored, err := h.r.FindOrRestore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, restored.ID())
	assert.Equal(t, "Persistent", restored.Name())

	_, err = h.r.FindOrRestore(ctx, "never-existed")
	require.Error(t, err)
	assert.True(t, dserr.IsNotFound(err))
}

func TestRegistryAutoJoinPrefersFullestGame(t *testing.T) {
	h := newRegistryHarness(t, nil)
	ctx := context.Background()

	empty, err := h.r.Create(ctx, "Empty")
	require.NoError(t, err)
	busy, err := h.r.Create(ctx, "Busy")
	require.NoError(t, err)

	_, _, err = busy.AddPlayer(ctx, &fakeConn{}, "tok-1", "", "Ana")
	require.NoError(t, err)
	_, _, err = busy.AddPlayer(ctx, &fakeConn{}, "tok-2", "", "Bob")
	require.NoError(t, err)

	picked, err := h.r.AutoJoin(ctx)
	require.NoError(t, err)
	assert.Same(t, busy, picked, "parties cluster into the fullest game")
	_ = empty
}

func TestRegistryAutoJoinSkipsFullAndCompleted(t *testing.T) {
	h := newRegistryHarness(t, func(cfg *RegistryConfig) {
		cfg.Settings.MaxPlayersPerGame = 1
	})
	ctx := context.Background()

	full, err := h.r.Create(ctx, "Full")
	require.NoError(t, err)
	_, _, err = full.AddPlayer(ctx, &fakeConn{}, "tok-1", "", "Ana")
	require.NoError(t, err)

	done, err := h.r.Create(ctx, "Done")
	require.NoError(t, err)
	ts := h.clock.Now()
	done.mu.Lock()
	done.completedAt = &ts
	done.mu.Unlock()

	picked, err := h.r.AutoJoin(ctx)
	require.NoError(t, err)
	assert.NotSame(t, full, picked)
	assert.NotSame(t, done, picked)
	assert.Len(t, h.r.List(), 3, "a fresh game was created")
}

func TestRegistrySweepReapsCompletedGames(t *testing.T) {
	h := newRegistryHarness(t, nil)
	ctx := context.Background()

	g, err := h.r.Create(ctx, "Cleared")
	require.NoError(t, err)
	ts := h.clock.Now()
	g.mu.Lock()
	g.completedAt = &ts
	g.mu.Unlock()

	// Inside the grace window the game survives.
	h.clock.Advance(5 * time.Minute)
	h.r.sweep(ctx)
	_, ok := h.r.Get(g.ID())
	assert.True(t, ok)

	// Past it the game is reaped and its save deleted for good.
	h.clock.Advance(6 * time.Minute)
	h.r.sweep(ctx)
	_, ok = h.r.Get(g.ID())
	assert.False(t, ok)
	_, err = h.repo.Load(ctx, g.ID())
	require.Error(t, err)
	assert.True(t, dserr.IsNotFound(err))
}

func TestRegistrySweepParksIdleGames(t *testing.T) {
	h := newRegistryHarness(t, nil)
	ctx := context.Background()

	g, err := h.r.Create(ctx, "Sleepy")
	require.NoError(t, err)

	// Idle past the timeout with nobody connected: unloaded from
	// memory, but the save stays so FindOrRestore can bring it back.
	h.clock.Advance(2 * time.Hour)
	h.r.sweep(ctx)

	_, ok := h.r.Get(g.ID())
	assert.False(t, ok)
	state, err := h.repo.Load(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, g.ID(), state.GameID)

	restored, err := h.r.FindOrRestore(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, g.ID(), restored.ID())
}

func TestRegistryStopAllSavesEverything(t *testing.T) {
	h := newRegistryHarness(t, nil)
	ctx := context.Background()

	g1, err := h.r.Create(ctx, "One")
	require.NoError(t, err)
	g2, err := h.r.Create(ctx, "Two")
	require.NoError(t, err)

	require.NoError(t, h.r.StopAll(ctx))
	assert.Empty(t, h.r.List())

	for _, id := range []string{g1.ID(), g2.ID()} {
		state, err := h.repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, state.GameID)
	}
}
