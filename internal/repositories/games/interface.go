package games

import (
	"context"
	"time"

	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=mockgames -source=interface.go

// MapState is the persisted dungeon: the tile grid plus what is needed
// to regenerate or respawn into it.
type MapState struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Tiles  dungeon.Grid `json:"tiles"`
	SpawnX int          `json:"spawn_x"`
	SpawnY int          `json:"spawn_y"`
	Seed   int64        `json:"seed"`
}

// State is one game's full save document.
type State struct {
	GameID        string                       `json:"game_id"`
	Name          string                       `json:"name"`
	CreatedAt     time.Time                    `json:"created_at"`
	LastActivity  time.Time                    `json:"last_activity"`
	CompletedAt   *time.Time                   `json:"completed_at,omitempty"`
	Map           MapState                     `json:"map"`
	Rooms         []*dungeon.Room              `json:"rooms"`
	Players       map[string]*entities.Player  `json:"players"`
	Monsters      map[string]*entities.Monster `json:"monsters"`
	TokenToPlayer map[string]string            `json:"token_to_player"`
}

// Repository persists game saves.
type Repository interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, gameID string) (*State, error)
	Delete(ctx context.Context, gameID string) error
	ListIDs(ctx context.Context) ([]string, error)
}
