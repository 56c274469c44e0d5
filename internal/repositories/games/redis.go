package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	dserr "github.com/undercroft/undercroft/internal/errors"
)

const activeKey = "games:active"

func gameKey(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}

type redisRepo struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed game save repository.
func NewRedis(client *redis.Client) Repository {
	return &redisRepo{client: client}
}

func (r *redisRepo) Save(ctx context.Context, state *State) error {
	if state == nil {
		return errors.New("state cannot be nil")
	}
	if state.GameID == "" {
		return dserr.InvalidArgument("game id is required")
	}

	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, gameKey(state.GameID), string(jsonData), 0)
	pipe.SAdd(ctx, activeKey, state.GameID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save game in Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) Load(ctx context.Context, gameID string) (*State, error) {
	jsonData, err := r.client.Get(ctx, gameKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, dserr.NotFoundf("game '%s' not found", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	return &state, nil
}

func (r *redisRepo) Delete(ctx context.Context, gameID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, gameKey(gameID))
	pipe.SRem(ctx, activeKey, gameID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete game from Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list games from Redis: %w", err)
	}
	return ids, nil
}
