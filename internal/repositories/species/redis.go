package species

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/undercroft/undercroft/internal/ai"
)

const (
	schemaKey = "species:schema"
	typesKey  = "species:types"
)

func recordKey(monsterType string) string {
	return fmt.Sprintf("species:%s", monsterType)
}

func historyKey(monsterType string) string {
	return fmt.Sprintf("species:%s:history", monsterType)
}

type redisRepo struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed species repository.
func NewRedis(client *redis.Client) Repository {
	return &redisRepo{client: client}
}

func (r *redisRepo) LoadAll(ctx context.Context) (map[string]*Record, error) {
	stored, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read species schema version: %w", err)
	}

	if err == redis.Nil || stored != strconv.Itoa(ai.SchemaVersion) {
		if err := r.reset(ctx); err != nil {
			return nil, err
		}
		return map[string]*Record{}, nil
	}

	types, err := r.client.SMembers(ctx, typesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list species types: %w", err)
	}

	records := make(map[string]*Record, len(types))
	for _, monsterType := range types {
		jsonData, err := r.client.Get(ctx, recordKey(monsterType)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get species %q: %w", monsterType, err)
		}

		var rec Record
		if err := json.Unmarshal(jsonData, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal species %q: %w", monsterType, err)
		}
		records[monsterType] = &rec
	}

	return records, nil
}

func (r *redisRepo) SaveAll(ctx context.Context, records map[string]*Record) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, schemaKey, strconv.Itoa(ai.SchemaVersion), 0)

	for monsterType, rec := range records {
		jsonData, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal species %q: %w", monsterType, err)
		}
		pipe.Set(ctx, recordKey(monsterType), string(jsonData), 0)
		pipe.SAdd(ctx, typesKey, monsterType)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save species records: %w", err)
	}
	return nil
}

func (r *redisRepo) LoadHistory(ctx context.Context, monsterType string) ([]HistoryEntry, error) {
	jsonData, err := r.client.Get(ctx, historyKey(monsterType)).Bytes()
	if err == redis.Nil {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %q: %w", monsterType, err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(jsonData, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history for %q: %w", monsterType, err)
	}
	return history, nil
}

func (r *redisRepo) SaveHistory(ctx context.Context, monsterType string, history []HistoryEntry) error {
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}

	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history for %q: %w", monsterType, err)
	}

	if err := r.client.Set(ctx, historyKey(monsterType), string(jsonData), 0).Err(); err != nil {
		return fmt.Errorf("failed to save history for %q: %w", monsterType, err)
	}
	return nil
}

// reset wipes every species key. Called when the stored schema version
// does not match the running encoder.
func (r *redisRepo) reset(ctx context.Context) error {
	types, err := r.client.SMembers(ctx, typesKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to list species types for reset: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, monsterType := range types {
		pipe.Del(ctx, recordKey(monsterType))
		pipe.Del(ctx, historyKey(monsterType))
	}
	pipe.Del(ctx, typesKey)
	pipe.Set(ctx, schemaKey, strconv.Itoa(ai.SchemaVersion), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset species store: %w", err)
	}
	return nil
}
