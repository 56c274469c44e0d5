package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/entities"
	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/events"
)

// fightHarness is the shared setup: Ana at (2,2) with a goblin one
// tile east, plus a bystander goblin far away so killing the first one
// does not complete the dungeon.
func fightHarness(t *testing.T) (*harness, string, *fakeConn) {
	t.Helper()
	h := newHarness(t, arenaState("g1", 20, 10))
	id, conn := h.addPlayer(t, "token-a", "Ana")
	h.placeMonster(testGoblin("m1", 3, 2))
	h.placeMonster(testGoblin("m2", 15, 7))
	return h, id, conn
}

func TestRequestFightValidations(t *testing.T) {
	h, id, _ := fightHarness(t)
	ctx := context.Background()

	err := h.g.RequestFight(ctx, id, "m2") // 13 tiles away
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err))

	err = h.g.RequestFight(ctx, id, "no-such-monster")
	require.Error(t, err)
	assert.True(t, dserr.IsNotFound(err))

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	err = h.g.RequestFight(ctx, id, "m1")
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err), "one fight at a time")
}

func TestSoloFightCriticalKill(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	rec := &captureListener{}
	h.bus.Subscribe(events.EventTypeDamageDealt, rec)
	h.bus.Subscribe(events.EventTypeMonsterDied, rec)

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	// Natural 20 crits; doubled dice roll 4+3=7, exactly the goblin's HP.
	h.roller.SetRolls([]int{20, 4, 3})
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionAttack))

	assert.False(t, h.hasMonster("m1"))
	assert.Equal(t, 0, h.fightCount())

	var ended *fightEndedMessage
	for _, m := range conn.messages() {
		if fe, ok := m.(fightEndedMessage); ok {
			fe := fe
			ended = &fe
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "victory", ended.Result)
	assert.Equal(t, 50, ended.XPEarned, "goblin is CR 1/4")
	assert.Equal(t, "goblin", ended.MonsterType)

	require.Eventually(t, func() bool {
		return len(rec.ofType(events.EventTypeMonsterDied)) == 1 &&
			len(rec.ofType(events.EventTypeDamageDealt)) == 1
	}, time.Second, 5*time.Millisecond)

	hit := rec.ofType(events.EventTypeDamageDealt)[0].(*events.RewardEvent)
	assert.Equal(t, float64(-7), hit.Reward, "damage taken is a negative signal")
	died := rec.ofType(events.EventTypeMonsterDied)[0].(*events.RewardEvent)
	assert.Equal(t, float64(-100), died.Reward)
	assert.Equal(t, "goblin", died.MonsterType)
	require.NotNil(t, died.Snapshot)
	assert.Equal(t, 12, died.Snapshot.StateIndex)
}

func TestCombatActionValidations(t *testing.T) {
	h, id, _ := fightHarness(t)
	ctx := context.Background()

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	err := h.g.CombatAction(ctx, id, fightID, "somersault")
	require.Error(t, err)
	assert.True(t, dserr.IsInvalidArgument(err))

	err = h.g.CombatAction(ctx, id, "no-such-fight", ActionAttack)
	require.Error(t, err)
	assert.True(t, dserr.IsNotFound(err))

	// A bystander cannot act in a fight they never joined.
	other, _ := h.addPlayer(t, "token-b", "Bob")
	err = h.g.CombatAction(ctx, other, fightID, ActionAttack)
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err))

	// Burn the player's turn, then acting again is out of turn.
	h.roller.SetRolls([]int{5}) // 5+2 misses AC 13
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionAttack))
	err = h.g.CombatAction(ctx, id, fightID, ActionAttack)
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err))
}

func TestMonsterTurnAggressiveAttack(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	rec := &captureListener{}
	h.bus.Subscribe(events.EventTypeDamageDealt, rec)

	h.stub.decideFn = func(*entities.Monster) ai.Action { return ai.ActionAttackAggressive }

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	// Player misses, handing the turn to the monster.
	h.roller.SetRolls([]int{5})
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionAttack))

	// Goblin str 8 is -1, aggressive adds +1: a natural 14 hits AC 12.
	// Damage 1d6=5 plus the aggressive +1.
	h.roller.SetRolls([]int{14, 5})
	h.g.Tick(ctx)

	assert.Equal(t, 24, h.playerHP(t, id))

	var attack *monsterAttacksMessage
	for _, m := range conn.messages() {
		if ma, ok := m.(monsterAttacksMessage); ok {
			ma := ma
			attack = &ma
		}
	}
	require.NotNil(t, attack)
	assert.True(t, attack.Hit)
	assert.False(t, attack.Critical)
	assert.Equal(t, 6, attack.Damage)
	assert.Equal(t, 24, attack.TargetHP)
	assert.Equal(t, string(ai.ActionAttackAggressive), attack.Action)

	// Dealing damage is a positive signal for the monster's choice:
	// one negative event for the player's miss never fires, so the
	// first damage event is the monster's +5.
	require.Eventually(t, func() bool {
		return len(rec.ofType(events.EventTypeDamageDealt)) == 1
	}, time.Second, 5*time.Millisecond)
	reward := rec.ofType(events.EventTypeDamageDealt)[0].(*events.RewardEvent)
	assert.Equal(t, float64(6), reward.Reward)
}

func TestDefendRaisesACForOneRound(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	h.stub.decideFn = func(*entities.Monster) ai.Action { return ai.ActionAttackAggressive }

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionDefend))

	// Defending lifts AC from 12 to 14; a natural 13 (total 13 with the
	// goblin's net +0) now misses.
	h.roller.SetRolls([]int{13})
	h.g.Tick(ctx)

	assert.Equal(t, 30, h.playerHP(t, id))
	var attack *monsterAttacksMessage
	for _, m := range conn.messages() {
		if ma, ok := m.(monsterAttacksMessage); ok {
			ma := ma
			attack = &ma
		}
	}
	require.NotNil(t, attack)
	assert.False(t, attack.Hit)

	// The stance clears when the player's next turn begins.
	h.g.mu.Lock()
	defending := h.g.players[id].IsDefending
	h.g.mu.Unlock()
	assert.False(t, defending)
}

func TestItemActionHeals(t *testing.T) {
	h, id, _ := fightHarness(t)
	ctx := context.Background()

	h.g.mu.Lock()
	h.g.players[id].HP = 10
	h.g.mu.Unlock()

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	h.roller.SetRolls([]int{15})
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionItem))
	assert.Equal(t, 25, h.playerHP(t, id))
}

func TestMonsterFleesForHalfXP(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	rec := &captureListener{}
	h.bus.Subscribe(events.EventTypeMonsterFled, rec)

	h.stub.decideFn = func(*entities.Monster) ai.Action { return ai.ActionFlee }

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	h.roller.SetRolls([]int{5}) // miss, monster's turn
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionAttack))
	h.g.Tick(ctx)

	assert.False(t, h.hasMonster("m1"), "a fled monster leaves the map")
	assert.Equal(t, 0, h.fightCount())

	var ended *fightEndedMessage
	for _, m := range conn.messages() {
		if fe, ok := m.(fightEndedMessage); ok {
			fe := fe
			ended = &fe
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "victory", ended.Result)
	assert.Equal(t, 25, ended.XPEarned, "half XP when the monster escapes")

	require.Eventually(t, func() bool {
		return len(rec.ofType(events.EventTypeMonsterFled)) == 1
	}, time.Second, 5*time.Millisecond)
	fled := rec.ofType(events.EventTypeMonsterFled)[0].(*events.RewardEvent)
	assert.Equal(t, float64(10), fled.Reward, "escaping alive pays out")
}

func TestTurnTimeoutKillsIdlePlayer(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))

	// Within the window nothing happens.
	h.clock.Advance(29 * time.Second)
	h.g.Tick(ctx)
	assert.Equal(t, 1, h.fightCount())
	assert.Equal(t, 30, h.playerHP(t, id))

	// Past it, freezing up is lethal: death, respawn, fight resolved.
	h.clock.Advance(2 * time.Second)
	h.g.Tick(ctx)

	assert.Equal(t, 0, h.fightCount())
	assert.Equal(t, 30, h.playerHP(t, id), "respawn restores full HP")
	assert.True(t, h.hasMonster("m1"), "the monster survives")

	msgs := conn.messages()
	assert.True(t, hasMessage(msgs, MsgPlayerRespawned))
	assert.True(t, hasMessage(msgs, MsgFightLeft))

	// The loser still hears how the fight ended.
	var ended *fightEndedMessage
	for _, m := range msgs {
		if fe, ok := m.(fightEndedMessage); ok {
			fe := fe
			ended = &fe
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "defeat", ended.Result)
	assert.Equal(t, 0, ended.XPEarned)
	assert.Equal(t, "goblin", ended.MonsterType)

	var respawn *playerRespawnedMessage
	for _, m := range msgs {
		if pr, ok := m.(playerRespawnedMessage); ok {
			pr := pr
			respawn = &pr
		}
	}
	require.NotNil(t, respawn)
	assert.Equal(t, id, respawn.PlayerID)
	assert.Equal(t, 30, respawn.HP)
}

func TestJoinFightAndTurnOrder(t *testing.T) {
	h, id1, _ := fightHarness(t)
	ctx := context.Background()

	id2, conn2 := h.addPlayer(t, "token-b", "Bob")
	h.movePlayerTo(t, id2, 3, 3) // adjacent to m1 at (3,2)

	require.NoError(t, h.g.RequestFight(ctx, id1, "m1"))
	fightID := h.soleFightID(t)

	require.NoError(t, h.g.JoinFight(ctx, id2, fightID))

	var updated *fightUpdatedMessage
	for _, m := range conn2.messages() {
		if fu, ok := m.(fightUpdatedMessage); ok {
			fu := fu
			updated = &fu
		}
	}
	require.NotNil(t, updated)
	// Joiners slot in just before the monster, so everyone acts first.
	assert.Equal(t, []string{id1, id2, "m1"}, updated.Fight.TurnOrder)
	assert.Equal(t, id1, updated.Fight.CurrentTurnID)

	// Far away players cannot join.
	id3, _ := h.addPlayer(t, "token-c", "Cal")
	h.movePlayerTo(t, id3, 15, 2)
	err := h.g.JoinFight(ctx, id3, fightID)
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err))
}

func TestFleeLeavesFightRunningForOthers(t *testing.T) {
	h, id1, conn1 := fightHarness(t)
	ctx := context.Background()

	id2, conn2 := h.addPlayer(t, "token-b", "Bob")
	h.movePlayerTo(t, id2, 3, 3)

	require.NoError(t, h.g.RequestFight(ctx, id1, "m1"))
	fightID := h.soleFightID(t)
	require.NoError(t, h.g.JoinFight(ctx, id2, fightID))

	require.NoError(t, h.g.FleeFight(ctx, id1, fightID))

	assert.True(t, hasMessage(conn1.messages(), MsgFightLeft))
	assert.True(t, hasMessage(conn2.messages(), MsgPlayerFled))
	assert.Equal(t, 1, h.fightCount(), "fight continues for the remaining player")

	// The deserter can move again; the holdout cannot.
	require.NoError(t, h.g.MovePlayer(ctx, id1, -1, 0))
	err := h.g.MovePlayer(ctx, id2, 0, 1)
	require.Error(t, err)
	assert.True(t, dserr.IsValidation(err))

	// Last player out releases the monster.
	require.NoError(t, h.g.FleeFight(ctx, id2, fightID))
	assert.Equal(t, 0, h.fightCount())
	assert.True(t, h.hasMonster("m1"))
}

func TestDeclineFightJustDismisses(t *testing.T) {
	h, id, conn := fightHarness(t)

	require.NoError(t, h.g.DeclineFight(context.Background(), id))
	assert.True(t, hasMessage(conn.messages(), MsgFightDeclined))
	assert.Equal(t, 0, h.fightCount())
}

func TestMonsterInitiatesFightAndStrikesFirst(t *testing.T) {
	h, id, conn := fightHarness(t)
	ctx := context.Background()

	h.stub.decideFn = func(*entities.Monster) ai.Action { return ai.ActionAttackAggressive }

	// Aggro check and the monster's opening attack land in one tick.
	h.roller.SetRolls([]int{14, 5})
	h.g.Tick(ctx)

	assert.Equal(t, 1, h.fightCount())
	assert.Equal(t, 24, h.playerHP(t, id))

	var started *fightStartedMessage
	for _, m := range conn.messages() {
		if fs, ok := m.(fightStartedMessage); ok {
			fs := fs
			started = &fs
		}
	}
	require.NotNil(t, started)
	assert.True(t, started.MonsterInitiated)
	assert.Equal(t, "m1", started.Fight.MonsterID)
}

func TestFightImmunityBlocksAggro(t *testing.T) {
	h, id, _ := fightHarness(t)
	ctx := context.Background()

	h.stub.decideFn = func(*entities.Monster) ai.Action { return ai.ActionAttackAggressive }

	h.g.mu.Lock()
	h.g.players[id].GrantFightImmunity(h.clock.Now())
	h.g.mu.Unlock()

	h.g.Tick(ctx)
	assert.Equal(t, 0, h.fightCount(), "grace window holds")

	// Once the window lapses the goblin pounces.
	h.clock.Advance(entities.DefaultFightImmunity + time.Second)
	h.roller.SetRolls([]int{14, 5})
	h.g.Tick(ctx)
	assert.Equal(t, 1, h.fightCount())
}

func TestVictoryCompletesAndRegeneratesDungeon(t *testing.T) {
	h := newHarness(t, arenaState("g1", 20, 10))
	id, conn := h.addPlayer(t, "token-a", "Ana")
	h.placeMonster(testGoblin("m1", 3, 2)) // the dungeon's last monster

	ctx := context.Background()
	require.NoError(t, h.g.RequestFight(ctx, id, "m1"))
	fightID := h.soleFightID(t)

	h.roller.SetRolls([]int{20, 4, 3})
	require.NoError(t, h.g.CombatAction(ctx, id, fightID, ActionAttack))

	require.NotNil(t, h.g.CompletedAt())
	assert.True(t, hasMessage(conn.messages(), MsgMapRegenerating))

	// A fresh dungeon at the configured size replaces the arena, and
	// the party starts over at its entrance.
	h.g.mu.Lock()
	width, height := h.g.width, h.g.height
	p := h.g.players[id]
	hp, px, py := p.HP, p.X, p.Y
	sx, sy := h.g.spawnX, h.g.spawnY
	h.g.mu.Unlock()
	assert.Equal(t, 40, width)
	assert.Equal(t, 24, height)
	assert.Equal(t, 30, hp)
	assert.Equal(t, sx, px)
	assert.Equal(t, sy, py)
}
