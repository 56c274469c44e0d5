package players

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	dserr "github.com/undercroft/undercroft/internal/errors"
)

const leaderboardKey = "leaderboard:xp"

func profileKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}

type redisRepo struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed profile repository. XP is mirrored
// into a sorted set so the leaderboard is one ZRevRange away.
func NewRedis(client *redis.Client) Repository {
	return &redisRepo{client: client}
}

func (r *redisRepo) Create(ctx context.Context, profile *Profile) error {
	return r.set(ctx, profile)
}

func (r *redisRepo) Update(ctx context.Context, profile *Profile) error {
	return r.set(ctx, profile)
}

func (r *redisRepo) set(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	if profile.ID == "" {
		return dserr.InvalidArgument("profile id is required")
	}

	jsonData, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, profileKey(profile.ID), string(jsonData), 0)
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(profile.XP), Member: profile.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save profile in Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) Get(ctx context.Context, id string) (*Profile, error) {
	jsonData, err := r.client.Get(ctx, profileKey(id)).Bytes()
	if err == redis.Nil {
		return nil, dserr.NotFoundf("profile '%s' not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from Redis: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(jsonData, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (r *redisRepo) Delete(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, profileKey(id))
	pipe.ZRem(ctx, leaderboardKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete profile from Redis: %w", err)
	}
	return nil
}

func (r *redisRepo) TopByXP(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		return []LeaderboardEntry{}, nil
	}

	scored, err := r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard from Redis: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(scored))
	for _, z := range scored {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entry := LeaderboardEntry{ProfileID: id, XP: int(z.Score)}
		if profile, err := r.Get(ctx, id); err == nil {
			entry.Name = profile.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
