package players_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/repositories/players"
)

func TestRedisCreateWritesProfileAndLeaderboard(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := players.NewRedis(client)

	profile := &players.Profile{ID: "prof-1", UserID: "user-1", Name: "Aria", XP: 150}
	jsonData, err := json.Marshal(profile)
	require.NoError(t, err)

	mock.ExpectSet("profile:prof-1", string(jsonData), 0).SetVal("OK")
	mock.ExpectZAdd("leaderboard:xp", redis.Z{Score: 150, Member: "prof-1"}).SetVal(1)

	require.NoError(t, repo.Create(context.Background(), profile))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGetMissingIsNotFound(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := players.NewRedis(client)

	mock.ExpectGet("profile:ghost").RedisNil()

	_, err := repo.Get(context.Background(), "ghost")
	assert.True(t, dserr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTopByXP(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := players.NewRedis(client)

	first, err := json.Marshal(&players.Profile{ID: "prof-1", Name: "Aria", XP: 300})
	require.NoError(t, err)
	second, err := json.Marshal(&players.Profile{ID: "prof-2", Name: "Bram", XP: 100})
	require.NoError(t, err)

	mock.ExpectZRevRangeWithScores("leaderboard:xp", 0, 1).SetVal([]redis.Z{
		{Score: 300, Member: "prof-1"},
		{Score: 100, Member: "prof-2"},
	})
	mock.ExpectGet("profile:prof-1").SetVal(string(first))
	mock.ExpectGet("profile:prof-2").SetVal(string(second))

	entries, err := repo.TopByXP(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Aria", entries[0].Name)
	assert.Equal(t, 300, entries[0].XP)
	assert.Equal(t, "prof-2", entries[1].ProfileID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryLeaderboardOrdering(t *testing.T) {
	repo := players.NewInMemory()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &players.Profile{ID: "a", Name: "A", XP: 10}))
	require.NoError(t, repo.Create(ctx, &players.Profile{ID: "b", Name: "B", XP: 50}))
	require.NoError(t, repo.Create(ctx, &players.Profile{ID: "c", Name: "C", XP: 30}))

	entries, err := repo.TopByXP(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ProfileID)
	assert.Equal(t, "c", entries[1].ProfileID)
}
