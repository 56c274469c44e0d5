package species_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/repositories/species"
)

func TestRedisLoadAll(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := species.NewRedis(client)

	rec := &species.Record{MonsterType: "goblin", Generation: 1, States: 2, Actions: 2, QTable: []float32{1, 0, 0, 2}}
	recJSON, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectGet("species:schema").SetVal(strconv.Itoa(ai.SchemaVersion))
	mock.ExpectSMembers("species:types").SetVal([]string{"goblin"})
	mock.ExpectGet("species:goblin").SetVal(string(recJSON))

	loaded, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, rec.QTable, loaded["goblin"].QTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLoadAllSchemaMismatchResets(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := species.NewRedis(client)

	mock.ExpectGet("species:schema").SetVal(strconv.Itoa(ai.SchemaVersion - 1))
	mock.ExpectSMembers("species:types").SetVal([]string{"goblin"})
	mock.ExpectDel("species:goblin").SetVal(1)
	mock.ExpectDel("species:goblin:history").SetVal(1)
	mock.ExpectDel("species:types").SetVal(1)
	mock.ExpectSet("species:schema", strconv.Itoa(ai.SchemaVersion), 0).SetVal("OK")

	loaded, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSaveAll(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := species.NewRedis(client)

	rec := &species.Record{MonsterType: "kobold", States: 1, Actions: 1, QTable: []float32{3}}
	recJSON, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectSet("species:schema", strconv.Itoa(ai.SchemaVersion), 0).SetVal("OK")
	mock.ExpectSet("species:kobold", string(recJSON), 0).SetVal("OK")
	mock.ExpectSAdd("species:types", "kobold").SetVal(1)

	require.NoError(t, repo.SaveAll(context.Background(), map[string]*species.Record{"kobold": rec}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHistoryMissingIsEmpty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := species.NewRedis(client)

	mock.ExpectGet("species:ghoul:history").RedisNil()

	history, err := repo.LoadHistory(context.Background(), "ghoul")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}
