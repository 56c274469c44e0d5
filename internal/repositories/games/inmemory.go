package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	dserr "github.com/undercroft/undercroft/internal/errors"
)

type inMemoryRepo struct {
	mu    sync.RWMutex
	saves map[string][]byte
}

// NewInMemory creates a map-backed game save repository for tests and
// single-process deployments without Redis. Saves are stored as their
// JSON encoding so load always returns an independent copy.
func NewInMemory() Repository {
	return &inMemoryRepo{saves: make(map[string][]byte)}
}

func (r *inMemoryRepo) Save(_ context.Context, state *State) error {
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

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[state.GameID] = jsonData
	return nil
}

func (r *inMemoryRepo) Load(_ context.Context, gameID string) (*State, error) {
	r.mu.RLock()
	jsonData, ok := r.saves[gameID]
	r.mu.RUnlock()

	if !ok {
		return nil, dserr.NotFoundf("game '%s' not found", gameID)
	}

	var state State
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	return &state, nil
}

func (r *inMemoryRepo) Delete(_ context.Context, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saves, gameID)
	return nil
}

func (r *inMemoryRepo) ListIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.saves))
	for id := range r.saves {
		ids = append(ids, id)
	}
	return ids, nil
}
