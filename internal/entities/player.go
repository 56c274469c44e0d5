package entities

import (
	"time"
)

// DefaultFightImmunity is how long a player cannot be auto-engaged
// after a fight ends.
const DefaultFightImmunity = 2 * time.Second

// NoRoom marks a player or monster that is not inside any room.
const NoRoom = -1

// Position is a tile coordinate on the map grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Modifier returns the D&D ability modifier for a stat, using floor
// division so low stats go negative correctly.
func Modifier(stat int) int {
	d := stat - 10
	if d < 0 {
		return -((-d + 1) / 2)
	}
	return d / 2
}

// Player is a connected (or reconnectable) adventurer inside one game.
type Player struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	X                  int       `json:"x"`
	Y                  int       `json:"y"`
	HP                 int       `json:"hp"`
	MaxHP              int       `json:"max_hp"`
	AC                 int       `json:"ac"`
	Str                int       `json:"str"`
	Dex                int       `json:"dex"`
	Con                int       `json:"con"`
	DamageDice         string    `json:"damage_dice"`
	Color              string    `json:"color"`
	IsDefending        bool      `json:"is_defending"`
	FightImmunityUntil time.Time `json:"fight_immunity_until"`
	CurrentRoomID      int       `json:"current_room_id"`
}

// NewPlayer creates a player with the default statline at a position.
func NewPlayer(id, name string, x, y int) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		X:             x,
		Y:             y,
		HP:            30,
		MaxHP:         30,
		AC:            12,
		Str:           14,
		Dex:           12,
		Con:           12,
		DamageDice:    "1d6",
		CurrentRoomID: NoRoom,
	}
}

// IsAlive returns true while the player has hit points left.
func (p *Player) IsAlive() bool {
	return p.HP > 0
}

// EffectiveAC is the armor class including the defend bonus.
func (p *Player) EffectiveAC() int {
	if p.IsDefending {
		return p.AC + 2
	}
	return p.AC
}

// StrModifier is the player's strength modifier, used on attack rolls.
func (p *Player) StrModifier() int {
	return Modifier(p.Str)
}

// TakeDamage applies damage clamped to the remaining hit points and
// returns the amount actually dealt.
func (p *Player) TakeDamage(n int) int {
	if n < 0 {
		n = 0
	}
	if n > p.HP {
		n = p.HP
	}
	p.HP -= n
	return n
}

// Heal restores hit points up to the maximum and returns the amount
// actually restored.
func (p *Player) Heal(n int) int {
	if n < 0 {
		n = 0
	}
	if p.HP+n > p.MaxHP {
		n = p.MaxHP - p.HP
	}
	p.HP += n
	return n
}

// Respawn returns the player to a position at full health and clears
// combat-transient state.
func (p *Player) Respawn(x, y int) {
	p.X = x
	p.Y = y
	p.HP = p.MaxHP
	p.IsDefending = false
	p.CurrentRoomID = NoRoom
}

// GrantFightImmunity starts the default post-fight grace window.
func (p *Player) GrantFightImmunity(now time.Time) {
	p.FightImmunityUntil = now.Add(DefaultFightImmunity)
}

// IsFightImmune reports whether the player is inside the grace window.
func (p *Player) IsFightImmune(now time.Time) bool {
	return now.Before(p.FightImmunityUntil)
}
