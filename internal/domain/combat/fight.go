package combat

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a fight.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusFled    Status = "fled"
)

// Terminal results recorded when a fight ends.
const (
	ResultVictory = "victory"
	ResultDefeat  = "defeat"
)

// combatLogLimit bounds the retained log; older lines roll off.
const combatLogLimit = 50

// Fight is one turn-based engagement between a single monster and one
// or more players. The monster always occupies the last slot of the
// turn order; joining players are inserted just before it so every
// player acts before the monster each round.
type Fight struct {
	ID               string    `json:"id"`
	MonsterID        string    `json:"monster_id"`
	PlayerIDs        []string  `json:"player_ids"`
	TurnOrder        []string  `json:"turn_order"`
	CurrentTurnIndex int       `json:"current_turn_index"`
	Status           Status    `json:"status"`
	Result           string    `json:"result,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	TurnEndTime      time.Time `json:"turn_end_time"`
	TurnDuration     time.Duration
	CombatLog        []string `json:"combat_log"`
}

// New creates an active fight between the initiating player and the
// monster, with the player acting first.
func New(id, monsterID, initiatorPlayerID string, turnDuration time.Duration, now time.Time) *Fight {
	return &Fight{
		ID:           id,
		MonsterID:    monsterID,
		PlayerIDs:    []string{initiatorPlayerID},
		TurnOrder:    []string{initiatorPlayerID, monsterID},
		Status:       StatusActive,
		StartedAt:    now,
		TurnEndTime:  now.Add(turnDuration),
		TurnDuration: turnDuration,
	}
}

// MonsterActsFirst points the turn at the monster and restarts the
// timer, used when the monster initiated the fight.
func (f *Fight) MonsterActsFirst(now time.Time) {
	for i, id := range f.TurnOrder {
		if id == f.MonsterID {
			f.CurrentTurnIndex = i
			break
		}
	}
	f.TurnEndTime = now.Add(f.TurnDuration)
}

// CurrentTurnID is whose turn it is right now.
func (f *Fight) CurrentTurnID() string {
	if len(f.TurnOrder) == 0 {
		return ""
	}
	return f.TurnOrder[f.CurrentTurnIndex%len(f.TurnOrder)]
}

// IsMonsterTurn reports whether the monster acts next.
func (f *Fight) IsMonsterTurn() bool {
	return f.CurrentTurnID() == f.MonsterID
}

// IsPlayersTurn reports whether it is the given player's turn.
func (f *Fight) IsPlayersTurn(playerID string) bool {
	return f.CurrentTurnID() == playerID
}

// HasPlayer reports whether the player participates in the fight.
func (f *Fight) HasPlayer(playerID string) bool {
	for _, id := range f.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// AdvanceTurn rotates to the next participant and restarts the timer.
func (f *Fight) AdvanceTurn(now time.Time) {
	if len(f.TurnOrder) == 0 {
		return
	}
	f.CurrentTurnIndex = (f.CurrentTurnIndex + 1) % len(f.TurnOrder)
	f.TurnEndTime = now.Add(f.TurnDuration)
}

// AddPlayer inserts a joining player immediately before the monster in
// the turn order. The running turn timer is not reset. Joining an
// already-joined player is a no-op.
func (f *Fight) AddPlayer(playerID string) {
	if f.HasPlayer(playerID) {
		return
	}
	f.PlayerIDs = append(f.PlayerIDs, playerID)

	for i, id := range f.TurnOrder {
		if id != f.MonsterID {
			continue
		}
		f.TurnOrder = append(f.TurnOrder, "")
		copy(f.TurnOrder[i+1:], f.TurnOrder[i:])
		f.TurnOrder[i] = playerID
		// Inserting ahead of the current actor shifts them right.
		if i <= f.CurrentTurnIndex {
			f.CurrentTurnIndex++
		}
		return
	}
}

// RemovePlayer takes a player out of the fight (flee, death, or
// disconnect), keeping the turn pointer on the correct next actor.
// When the last player leaves, the fight's status flips to fled.
func (f *Fight) RemovePlayer(playerID string, now time.Time) {
	for i, id := range f.PlayerIDs {
		if id == playerID {
			f.PlayerIDs = append(f.PlayerIDs[:i], f.PlayerIDs[i+1:]...)
			break
		}
	}

	for i, id := range f.TurnOrder {
		if id != playerID {
			continue
		}
		f.TurnOrder = append(f.TurnOrder[:i], f.TurnOrder[i+1:]...)
		switch {
		case i < f.CurrentTurnIndex:
			f.CurrentTurnIndex--
		case i == f.CurrentTurnIndex:
			// The departed player's slot now holds the next actor;
			// give them a fresh timer.
			f.CurrentTurnIndex %= len(f.TurnOrder)
			f.TurnEndTime = now.Add(f.TurnDuration)
		}
		break
	}

	if len(f.PlayerIDs) == 0 && f.Status == StatusActive {
		f.Status = StatusFled
	}
}

// End moves the fight to its terminal state with a result.
func (f *Fight) End(result string) {
	f.Status = StatusEnded
	f.Result = result
}

// TimeRemaining is how long the current actor has left on their turn.
func (f *Fight) TimeRemaining(now time.Time) time.Duration {
	return f.TurnEndTime.Sub(now)
}

// Log appends a combat log line, rolling off the oldest beyond the
// retention limit.
func (f *Fight) Log(format string, args ...interface{}) {
	f.CombatLog = append(f.CombatLog, fmt.Sprintf(format, args...))
	if len(f.CombatLog) > combatLogLimit {
		f.CombatLog = f.CombatLog[len(f.CombatLog)-combatLogLimit:]
	}
}
