package player_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/repositories/players"
	"github.com/undercroft/undercroft/internal/services/player"
)

func newTestService() (player.Service, players.Repository) {
	repo := players.NewInMemory()
	svc := player.NewService(&player.ServiceConfig{Repository: repo})
	return svc, repo
}

func TestXPForCRCanonicalTable(t *testing.T) {
	cases := map[float64]int{
		0:     10,
		0.125: 25,
		0.25:  50,
		0.5:   100,
		1:     200,
		2:     450,
		3:     700,
		4:     1100,
		5:     1800,
	}
	for cr, want := range cases {
		assert.Equal(t, want, player.XPForCR(cr), "CR %v", cr)
	}
}

func TestXPForCRNearestLower(t *testing.T) {
	assert.Equal(t, 100, player.XPForCR(0.75), "between 1/2 and 1 pays the 1/2 value")
	assert.Equal(t, 450, player.XPForCR(2.9))
	assert.Equal(t, 1800, player.XPForCR(20), "above the table pays the top value")
	assert.Equal(t, 10, player.XPForCR(-1), "below the floor pays the floor")
}

func TestGetOrCreateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.GetOrCreateProfile(ctx, "prof-1", "user-1", "Aria")
	require.NoError(t, err)
	assert.Equal(t, "user-1", created.UserID)
	assert.Zero(t, created.XP)

	// A second call returns the same profile, not a fresh one.
	again, err := svc.GetOrCreateProfile(ctx, "prof-1", "user-2", "Other")
	require.NoError(t, err)
	assert.Equal(t, "user-1", again.UserID)
}

func TestAwardKillAccumulatesAndFlushes(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreateProfile(ctx, "prof-1", "user-1", "Aria")
	require.NoError(t, err)

	xp, err := svc.AwardKill(ctx, "prof-1", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 50, xp)

	xp, err = svc.AwardKill(ctx, "prof-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 200, xp)

	// Mutations are cached until a flush writes them through.
	require.NoError(t, svc.Flush(ctx))

	stored, err := repo.Get(ctx, "prof-1")
	require.NoError(t, err)
	assert.Equal(t, 250, stored.XP)
	assert.Equal(t, 2, stored.Kills)
}

func TestRecordDeath(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreateProfile(ctx, "prof-1", "user-1", "Aria")
	require.NoError(t, err)

	require.NoError(t, svc.RecordDeath(ctx, "prof-1"))
	require.NoError(t, svc.Flush(ctx))

	stored, err := repo.Get(ctx, "prof-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Deaths)
}

func TestLeaderboard(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, p := range []struct {
		id string
		cr float64
	}{
		{"prof-a", 5},    // 1800
		{"prof-b", 0.25}, // 50
		{"prof-c", 1},    // 200
	} {
		_, err := svc.GetOrCreateProfile(ctx, p.id, "u", p.id)
		require.NoError(t, err)
		_, err = svc.AwardKill(ctx, p.id, p.cr)
		require.NoError(t, err)
	}

	// Leaderboard flushes internally before reading.
	entries, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "prof-a", entries[0].ProfileID)
	assert.Equal(t, 1800, entries[0].XP)
	assert.Equal(t, "prof-c", entries[1].ProfileID)
}

func TestAwardXPIgnoresNonPositive(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreateProfile(ctx, "prof-1", "user-1", "Aria")
	require.NoError(t, err)

	require.NoError(t, svc.AwardXP(ctx, "prof-1", 0))
	require.NoError(t, svc.AwardXP(ctx, "prof-1", -5))
	require.NoError(t, svc.Flush(ctx))

	stored, err := repo.Get(ctx, "prof-1")
	require.NoError(t, err)
	assert.Zero(t, stored.XP)
}
