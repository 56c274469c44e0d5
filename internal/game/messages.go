package game

import (
	"time"

	"github.com/undercroft/undercroft/internal/domain/combat"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
)

// Server-to-client message types.
const (
	MsgWelcome         = "welcome"
	MsgStateUpdate     = "state_update"
	MsgRoomEntered     = "room_entered"
	MsgPlayerJoined    = "player_joined"
	MsgPlayerLeft      = "player_left"
	MsgFightRequest    = "fight_request"
	MsgCanJoinFight    = "can_join_fight"
	MsgFightStarted    = "fight_started"
	MsgFightUpdated    = "fight_updated"
	MsgMonsterAttacks  = "monster_attacks"
	MsgPlayerFled      = "player_fled"
	MsgFightEnded      = "fight_ended"
	MsgFightLeft       = "fight_left"
	MsgFightDeclined   = "fight_declined"
	MsgPlayerRespawned = "player_respawned"
	MsgMapRegenerating = "map_regenerating"
	MsgError           = "error"
)

// PlayerView is a player as seen inside a viewport: X/Y are
// viewport-local, WorldX/WorldY absolute.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	WorldX      int    `json:"world_x"`
	WorldY      int    `json:"world_y"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	Color       string `json:"color"`
	IsDefending bool   `json:"is_defending"`
}

// MonsterView is a monster as seen inside a viewport.
type MonsterView struct {
	ID          string `json:"id"`
	MonsterType string `json:"monster_type"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Color       string `json:"color"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	WorldX      int    `json:"world_x"`
	WorldY      int    `json:"world_y"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	InFight     bool   `json:"in_fight"`
}

// ViewportView is the cropped map window sent to one client.
type ViewportView struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Tiles    [][]dungeon.Tile `json:"tiles"`
	Players  []PlayerView   `json:"players"`
	Monsters []MonsterView  `json:"monsters"`
}

// FightView is the client-facing snapshot of a fight.
type FightView struct {
	ID            string   `json:"id"`
	MonsterID     string   `json:"monster_id"`
	MonsterType   string   `json:"monster_type"`
	MonsterHP     int      `json:"monster_hp"`
	MonsterMaxHP  int      `json:"monster_max_hp"`
	PlayerIDs     []string `json:"player_ids"`
	TurnOrder     []string `json:"turn_order"`
	CurrentTurnID string   `json:"current_turn_id"`
	Status        string   `json:"status"`
	TimeRemaining int64    `json:"time_remaining_ms"`
	CombatLog     []string `json:"combat_log"`
}

// RoomView describes a room to the client when it is entered.
type RoomView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	RoomType    string `json:"room_type"`
	Description string `json:"description,omitempty"`
	FirstVisit  bool   `json:"first_visit"`
}

type welcomeMessage struct {
	Type           string             `json:"type"`
	PlayerID       string             `json:"player_id"`
	IsReconnection bool               `json:"is_reconnection"`
	GameID         string             `json:"game_id"`
	GameName       string             `json:"game_name"`
	MapWidth       int                `json:"map_width"`
	MapHeight      int                `json:"map_height"`
	State          stateUpdateMessage `json:"state"`
}

type stateUpdateMessage struct {
	Type     string       `json:"type"`
	Tick     int64        `json:"tick"`
	Viewport ViewportView `json:"viewport"`
	Fight    *FightView   `json:"fight,omitempty"`
}

type roomEnteredMessage struct {
	Type string   `json:"type"`
	Room RoomView `json:"room"`
}

type playerJoinedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type playerLeftMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

type fightRequestMessage struct {
	Type        string `json:"type"`
	MonsterID   string `json:"monster_id"`
	MonsterType string `json:"monster_type"`
	MonsterName string `json:"monster_name"`
}

type canJoinFightMessage struct {
	Type        string `json:"type"`
	FightID     string `json:"fight_id"`
	MonsterID   string `json:"monster_id"`
	MonsterType string `json:"monster_type"`
}

type fightStartedMessage struct {
	Type             string    `json:"type"`
	Fight            FightView `json:"fight"`
	MonsterInitiated bool      `json:"monster_initiated"`
}

type fightUpdatedMessage struct {
	Type  string    `json:"type"`
	Fight FightView `json:"fight"`
}

type monsterAttacksMessage struct {
	Type     string `json:"type"`
	FightID  string `json:"fight_id"`
	TargetID string `json:"target_id"`
	Action   string `json:"action"`
	Hit      bool   `json:"hit"`
	Critical bool   `json:"critical"`
	Damage   int    `json:"damage"`
	TargetHP int    `json:"target_hp"`
}

type playerFledMessage struct {
	Type     string `json:"type"`
	FightID  string `json:"fight_id"`
	PlayerID string `json:"player_id"`
}

type fightEndedMessage struct {
	Type        string `json:"type"`
	FightID     string `json:"fight_id"`
	Result      string `json:"result"`
	XPEarned    int    `json:"xp_earned"`
	MonsterType string `json:"monster_type"`
}

type fightLeftMessage struct {
	Type    string `json:"type"`
	FightID string `json:"fight_id"`
}

type fightDeclinedMessage struct {
	Type string `json:"type"`
}

type playerRespawnedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	HP       int    `json:"hp"`
}

type mapRegeneratingMessage struct {
	Type string `json:"type"`
}

// ErrorMessage is sent when a client action is rejected. No state
// changed on the server.
type ErrorMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorMessage wraps a rejection reason in the wire shape.
func NewErrorMessage(reason string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Success: false, Error: reason}
}

// fightViewLocked renders a fight for the wire. Caller holds g.mu.
func (g *Game) fightViewLocked(f *combat.Fight, now time.Time) FightView {
	view := FightView{
		ID:            f.ID,
		MonsterID:     f.MonsterID,
		PlayerIDs:     append([]string(nil), f.PlayerIDs...),
		TurnOrder:     append([]string(nil), f.TurnOrder...),
		CurrentTurnID: f.CurrentTurnID(),
		Status:        string(f.Status),
		TimeRemaining: f.TimeRemaining(now).Milliseconds(),
		CombatLog:     append([]string(nil), f.CombatLog...),
	}
	if m, ok := g.monsterByID[f.MonsterID]; ok {
		view.MonsterType = m.MonsterType
		view.MonsterHP = m.Stats.HP
		view.MonsterMaxHP = m.Stats.MaxHP
	}
	return view
}

func monsterView(m *entities.Monster, inFight bool) MonsterView {
	return MonsterView{
		ID:          m.ID,
		MonsterType: m.MonsterType,
		Name:        m.Name,
		Symbol:      m.Symbol,
		Color:       m.Color,
		WorldX:      m.X,
		WorldY:      m.Y,
		HP:          m.Stats.HP,
		MaxHP:       m.Stats.MaxHP,
		InFight:     inFight,
	}
}

func playerView(p *entities.Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		WorldX:      p.X,
		WorldY:      p.Y,
		HP:          p.HP,
		MaxHP:       p.MaxHP,
		Color:       p.Color,
		IsDefending: p.IsDefending,
	}
}
