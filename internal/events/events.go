package events

import (
	"time"

	"github.com/undercroft/undercroft/internal/entities"
)

// EventType represents the type of game event
type EventType string

const (
	// EventTypeDamageDealt fires for every combat exchange; carries the
	// reward used to train the species Q-table
	EventTypeDamageDealt EventType = "damage_dealt"

	// EventTypeMonsterDied fires when a monster is killed in a fight
	EventTypeMonsterDied EventType = "monster_died"

	// EventTypeMonsterFled fires when a monster flees a fight
	EventTypeMonsterFled EventType = "monster_fled"

	// EventTypePlayerEnteredRoom fires when a player steps into a room
	EventTypePlayerEnteredRoom EventType = "player_entered_room"

	// EventTypeFightStarted fires when a fight becomes active
	EventTypeFightStarted EventType = "fight_started"

	// EventTypeFightEnded fires when a fight reaches a terminal state
	EventTypeFightEnded EventType = "fight_ended"

	// EventTypePlayerJoined fires when a new player enters a game
	EventTypePlayerJoined EventType = "player_joined"

	// EventTypePlayerLeft fires when a player leaves a game for good
	EventTypePlayerLeft EventType = "player_left"

	// EventTypeGameCompleted fires once, when a game first observes
	// that every room is visited and no monsters remain
	EventTypeGameCompleted EventType = "game_completed"
)

// Listener priorities; lower runs earlier.
const (
	PriorityLearning   = 100 // Q-table updates see events first
	PriorityStats      = 200 // player stats and leaderboard
	PriorityDiagnostic = 300
)

// Event is the base interface for all game events
type Event interface {
	GetType() EventType
	GetGameID() string
	GetTimestamp() time.Time
}

// BaseEvent provides common implementation for all events
type BaseEvent struct {
	Type      EventType
	GameID    string
	Timestamp time.Time
}

func (e *BaseEvent) GetType() EventType      { return e.Type }
func (e *BaseEvent) GetGameID() string       { return e.GameID }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// RewardEvent carries a learning signal for a species Q-table. Emitted
// as EventTypeDamageDealt on every combat exchange and as
// EventTypeMonsterDied / EventTypeMonsterFled on terminal outcomes.
type RewardEvent struct {
	BaseEvent
	MonsterID   string
	MonsterType string
	Reward      float64
	Snapshot    *entities.AISnapshot
}

// PlayerEnteredRoomEvent fires when a player's room changes.
type PlayerEnteredRoomEvent struct {
	BaseEvent
	PlayerID   string
	RoomID     int
	RoomType   string
	FirstVisit bool
}

// FightStartedEvent fires when a fight becomes active.
type FightStartedEvent struct {
	BaseEvent
	FightID          string
	MonsterID        string
	MonsterType      string
	InitiatorID      string
	MonsterInitiated bool
}

// FightEndedEvent fires on any terminal fight state.
type FightEndedEvent struct {
	BaseEvent
	FightID     string
	MonsterType string
	Result      string
	XPEarned    int
	PlayerIDs   []string
}

// PlayerJoinedEvent fires when a player joins a game.
type PlayerJoinedEvent struct {
	BaseEvent
	PlayerID string
	Name     string
}

// PlayerLeftEvent fires when a player permanently leaves a game.
type PlayerLeftEvent struct {
	BaseEvent
	PlayerID string
}

// GameCompletedEvent fires once per game when completion latches.
type GameCompletedEvent struct {
	BaseEvent
}
