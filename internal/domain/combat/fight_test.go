package combat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/domain/combat"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newFight() *combat.Fight {
	return combat.New("fight-1", "monster-1", "player-a", 30*time.Second, t0)
}

func assertInvariants(t *testing.T, f *combat.Fight) {
	t.Helper()

	monsterCount := 0
	for _, id := range f.TurnOrder {
		if id == f.MonsterID {
			monsterCount++
		}
	}
	require.Equal(t, 1, monsterCount, "monster appears in turn order exactly once")

	for _, pid := range f.PlayerIDs {
		occurrences := 0
		for _, id := range f.TurnOrder {
			if id == pid {
				occurrences++
			}
		}
		require.Equal(t, 1, occurrences, "player %s appears in turn order exactly once", pid)
	}

	if f.Status == combat.StatusActive {
		require.Less(t, f.CurrentTurnIndex, len(f.TurnOrder))
	}
}

func TestNewFight(t *testing.T) {
	f := newFight()

	assert.Equal(t, combat.StatusActive, f.Status)
	assert.Equal(t, []string{"player-a", "monster-1"}, f.TurnOrder)
	assert.Equal(t, "player-a", f.CurrentTurnID())
	assert.Equal(t, t0.Add(30*time.Second), f.TurnEndTime)
	assertInvariants(t, f)
}

func TestMonsterActsFirst(t *testing.T) {
	f := newFight()
	f.MonsterActsFirst(t0.Add(time.Second))

	assert.True(t, f.IsMonsterTurn())
	assert.Equal(t, t0.Add(31*time.Second), f.TurnEndTime)
	assertInvariants(t, f)
}

func TestAdvanceTurnRotates(t *testing.T) {
	f := newFight()

	f.AdvanceTurn(t0)
	assert.True(t, f.IsMonsterTurn())

	f.AdvanceTurn(t0)
	assert.True(t, f.IsPlayersTurn("player-a"))
	assertInvariants(t, f)
}

func TestJoinInsertsBeforeMonster(t *testing.T) {
	f := newFight()
	deadline := f.TurnEndTime

	f.AddPlayer("player-b")

	assert.Equal(t, []string{"player-a", "player-b", "monster-1"}, f.TurnOrder)
	assert.Equal(t, "player-a", f.CurrentTurnID(), "join does not steal the turn")
	assert.Equal(t, deadline, f.TurnEndTime, "join does not reset the timer")
	assertInvariants(t, f)
}

func TestJoinDuringMonsterTurn(t *testing.T) {
	f := newFight()
	f.AdvanceTurn(t0) // monster's turn

	f.AddPlayer("player-b")

	assert.True(t, f.IsMonsterTurn(), "current actor survives the insertion")
	assertInvariants(t, f)
}

func TestJoinTwiceIsNoop(t *testing.T) {
	f := newFight()
	f.AddPlayer("player-b")
	f.AddPlayer("player-b")

	assert.Len(t, f.PlayerIDs, 2)
	assertInvariants(t, f)
}

func TestRemoveBeforeCurrentDecrements(t *testing.T) {
	f := newFight()
	f.AddPlayer("player-b")
	f.AdvanceTurn(t0) // player-b's turn

	f.RemovePlayer("player-a", t0.Add(time.Second))

	assert.Equal(t, "player-b", f.CurrentTurnID())
	assert.Equal(t, combat.StatusActive, f.Status)
	assertInvariants(t, f)
}

func TestRemoveCurrentResetsTimer(t *testing.T) {
	f := newFight()
	f.AddPlayer("player-b")

	// player-a is up; removing them should hand the turn to player-b
	// with a fresh clock.
	f.RemovePlayer("player-a", t0.Add(5*time.Second))

	assert.Equal(t, "player-b", f.CurrentTurnID())
	assert.Equal(t, t0.Add(35*time.Second), f.TurnEndTime)
	assertInvariants(t, f)
}

func TestLastPlayerRemovedFleesFight(t *testing.T) {
	f := newFight()
	f.RemovePlayer("player-a", t0)

	assert.Equal(t, combat.StatusFled, f.Status)
	assert.Empty(t, f.PlayerIDs)
	assert.Equal(t, []string{"monster-1"}, f.TurnOrder)
}

func TestEnd(t *testing.T) {
	f := newFight()
	f.End(combat.ResultVictory)

	assert.Equal(t, combat.StatusEnded, f.Status)
	assert.Equal(t, combat.ResultVictory, f.Result)
}

func TestTimeRemaining(t *testing.T) {
	f := newFight()

	assert.Equal(t, 30*time.Second, f.TimeRemaining(t0))
	assert.Negative(t, f.TimeRemaining(t0.Add(31*time.Second)))
}

func TestCombatLogBounded(t *testing.T) {
	f := newFight()
	for i := 0; i < 200; i++ {
		f.Log("swing %d", i)
	}

	assert.Len(t, f.CombatLog, 50)
	assert.Equal(t, "swing 199", f.CombatLog[len(f.CombatLog)-1])
}
