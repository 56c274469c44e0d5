package monster_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/repositories/species"
	"github.com/undercroft/undercroft/internal/services/monster"
	"github.com/undercroft/undercroft/internal/uuid"
)

func newTestService(t *testing.T) monster.Service {
	t.Helper()
	repo, err := species.NewFile(t.TempDir())
	require.NoError(t, err)

	return monster.NewService(&monster.ServiceConfig{
		Repository:  repo,
		IDGenerator: uuid.NewDeterministicGenerator("mon"),
		RNG:         rand.New(rand.NewSource(11)),
	})
}

func rewardEvent(monsterType string, state int, action ai.Action, reward float64, eventType events.EventType) *events.RewardEvent {
	return &events.RewardEvent{
		BaseEvent: events.BaseEvent{
			Type:      eventType,
			GameID:    "g1",
			Timestamp: time.Now(),
		},
		MonsterType: monsterType,
		Reward:      reward,
		Snapshot: &entities.AISnapshot{
			MonsterType: monsterType,
			StateIndex:  state,
			Action:      string(action),
			WorldState: &entities.WorldState{
				RoomType:         "hall",
				NearbyEnemies:    1,
				DistanceToThreat: 1,
				ThreatDirection:  entities.DirectionNorth,
			},
			HPRatio: 0.8,
		},
	}
}

func TestRewardUpdatesQTable(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.ActionAttackAggressive, 5, events.EventTypeDamageDealt)))

	assert.Greater(t, svc.QValue("goblin", 10, ai.ActionAttackAggressive), float32(0))
}

func TestMalformedRewardsIgnored(t *testing.T) {
	svc := newTestService(t)

	// Zero reward.
	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.ActionAttackAggressive, 0, events.EventTypeDamageDealt)))
	// Unknown action name.
	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.Action("breathe_fire"), 5, events.EventTypeDamageDealt)))
	// Missing snapshot.
	require.NoError(t, svc.HandleEvent(&events.RewardEvent{
		BaseEvent:   events.BaseEvent{Type: events.EventTypeDamageDealt},
		MonsterType: "goblin",
		Reward:      5,
	}))
	// State index out of range.
	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", ai.StateSpace+1, ai.ActionAttackAggressive, 5, events.EventTypeDamageDealt)))

	assert.Zero(t, svc.QValue("goblin", 10, ai.ActionAttackAggressive))
}

func TestMonsterDiedBumpsGeneration(t *testing.T) {
	svc := newTestService(t)

	assert.Zero(t, svc.Generation("goblin"))
	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.ActionAttackAggressive, -100, events.EventTypeMonsterDied)))
	assert.Equal(t, 1, svc.Generation("goblin"))
}

func TestGenerationCapped(t *testing.T) {
	repo, err := species.NewFile(t.TempDir())
	require.NoError(t, err)
	svc := monster.NewService(&monster.ServiceConfig{
		Repository:       repo,
		MaxGenerationCap: 2,
		RNG:              rand.New(rand.NewSource(1)),
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.ActionAttackAggressive, -100, events.EventTypeMonsterDied)))
	}
	assert.Equal(t, 2, svc.Generation("goblin"))
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	repo, err := species.NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	svc := monster.NewService(&monster.ServiceConfig{Repository: repo, RNG: rand.New(rand.NewSource(1))})
	require.NoError(t, svc.HandleEvent(rewardEvent("goblin", 10, ai.ActionAttackAggressive, 5, events.EventTypeDamageDealt)))
	learned := svc.QValue("goblin", 10, ai.ActionAttackAggressive)
	require.NoError(t, svc.Persist(ctx))

	// A fresh service over the same directory sees the learned table.
	reloadRepo, err := species.NewFile(dir)
	require.NoError(t, err)
	reloaded := monster.NewService(&monster.ServiceConfig{Repository: reloadRepo, RNG: rand.New(rand.NewSource(1))})
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, learned, reloaded.QValue("goblin", 10, ai.ActionAttackAggressive))
}

func TestSpawnMonstersAvoidDoors(t *testing.T) {
	svc := newTestService(t)
	gen := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 6, Seed: 5})

	// Roll every room repeatedly: whatever spawns must sit on plain
	// floor, inside the room, away from doors.
	sawSpawn := false
	for attempt := 0; attempt < 20 && !sawSpawn; attempt++ {
		for _, room := range gen.Rooms[1:] {
			for _, m := range svc.SpawnMonstersForRoom(room, gen.Tiles) {
				sawSpawn = true
				assert.True(t, room.Contains(m.X, m.Y), "monster inside its room")
				assert.Equal(t, dungeon.TileFloor, gen.Tiles.At(m.X, m.Y))
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						assert.False(t, gen.Tiles.At(m.X+dx, m.Y+dy).IsDoor(),
							"monster at (%d,%d) adjacent to a door", m.X, m.Y)
					}
				}
				assert.Equal(t, room.ID, m.RoomID)
				assert.Positive(t, m.Stats.HP)
			}
		}
	}
	require.True(t, sawSpawn, "expected at least one spawn across attempts")
}

func TestSpawnSkipsTinyRooms(t *testing.T) {
	svc := newTestService(t)
	grid := dungeon.NewGrid(10, 10)
	room := &dungeon.Room{ID: 1, X: 1, Y: 1, Width: 4, Height: 4, RoomType: "crypt"}

	for i := 0; i < 10; i++ {
		assert.Empty(t, svc.SpawnMonstersForRoom(room, grid))
	}
}

func TestObliviousMonsterNeverFights(t *testing.T) {
	svc := newTestService(t)
	rat := entities.DefaultCatalog()["giant_rat"].NewMonster("r1", 5, 5, 0)

	world := &entities.WorldState{
		RoomType:         "hall",
		HPRatio:          1,
		NearbyEnemies:    1,
		DistanceToThreat: 1,
		ThreatDirection:  entities.DirectionNorth,
	}

	for tick := int64(0); tick < 50; tick++ {
		action := svc.DecideCombatAction(rat, tick, world)
		require.False(t, action.IsCombat(), "oblivious monster chose %s", action)
	}
}

func TestUpdateMonsterMovesTowardThreat(t *testing.T) {
	repo, err := species.NewFile(t.TempDir())
	require.NoError(t, err)

	// Full exploration: every decision draws uniformly, so movement
	// actions come up quickly and the test never depends on biases.
	hp := ai.DefaultHyperparameters()
	hp.Epsilon = 1
	hp.EpsilonMin = 1
	svc := monster.NewService(&monster.ServiceConfig{
		Repository:      repo,
		RNG:             rand.New(rand.NewSource(11)),
		Hyperparameters: &hp,
	})

	// Open 20x20 floor with walls would be nicer, but a bare floor
	// grid exercises the pathing just as well.
	grid := dungeon.NewGrid(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			grid.Set(x, y, dungeon.TileFloor)
		}
	}

	orc := entities.DefaultCatalog()["orc"].NewMonster("o1", 3, 3, 0)
	threat := entities.Position{X: 10, Y: 3}
	world := &entities.WorldState{
		RoomType:         "hall",
		HPRatio:          1,
		NearbyEnemies:    1,
		DistanceToThreat: 7,
		ThreatDirection:  entities.DirectionEast,
		ThreatPosition:   &threat,
	}

	tc := monster.TickContext{Grid: grid, Tick: 100, World: world}

	startX, startY := orc.X, orc.Y
	moved := false
	// The epsilon-greedy agent may pick a non-movement action on a
	// given tick; try a few ticks far enough apart to clear the
	// movement rate limit.
	for tick := int64(100); tick < 160 && !moved; tick += 5 {
		tc.Tick = tick
		moved = svc.UpdateMonster(tc, orc)
	}

	require.True(t, moved, "orc never moved")
	assert.True(t, orc.X != startX || orc.Y != startY)
	assert.Equal(t, dungeon.TileFloor, grid.At(orc.X, orc.Y))
}

func TestUpdateMonsterRefreshesRoomOnMove(t *testing.T) {
	repo, err := species.NewFile(t.TempDir())
	require.NoError(t, err)

	hp := ai.DefaultHyperparameters()
	hp.Epsilon = 1
	hp.EpsilonMin = 1
	svc := monster.NewService(&monster.ServiceConfig{
		Repository:      repo,
		RNG:             rand.New(rand.NewSource(7)),
		Hyperparameters: &hp,
	})

	grid := dungeon.NewGrid(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			grid.Set(x, y, dungeon.TileFloor)
		}
	}
	// Two rooms separated by an open corridor band (x 4..9).
	rooms := []*dungeon.Room{
		{ID: 1, X: 0, Y: 0, Width: 4, Height: 20},
		{ID: 2, X: 10, Y: 0, Width: 10, Height: 20},
	}

	orc := entities.DefaultCatalog()["orc"].NewMonster("o1", 3, 3, 1)
	threat := entities.Position{X: 15, Y: 3}
	world := &entities.WorldState{
		RoomType:         "hall",
		HPRatio:          1,
		NearbyEnemies:    1,
		DistanceToThreat: 7,
		ThreatDirection:  entities.DirectionEast,
		ThreatPosition:   &threat,
	}

	// Wherever the orc ends up after a step, its recorded room must
	// match the map: the containing room's id, or none in a corridor.
	tc := monster.TickContext{Grid: grid, Rooms: rooms, World: world}
	moves := 0
	for tick := int64(100); tick < 400; tick += 5 {
		tc.Tick = tick
		if !svc.UpdateMonster(tc, orc) {
			continue
		}
		moves++
		want := entities.NoRoom
		for _, room := range rooms {
			if room.Contains(orc.X, orc.Y) {
				want = room.ID
			}
		}
		require.Equal(t, want, orc.RoomID, "at (%d,%d)", orc.X, orc.Y)
	}
	require.Greater(t, moves, 0, "orc never moved")
}

func TestUpdateMonsterRateLimited(t *testing.T) {
	svc := newTestService(t)

	grid := dungeon.NewGrid(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			grid.Set(x, y, dungeon.TileFloor)
		}
	}

	zombie := entities.DefaultCatalog()["zombie"].NewMonster("z1", 5, 5, 0)
	zombie.LastMoveTick = 100

	world := &entities.WorldState{RoomType: "hall", HPRatio: 1, DistanceToThreat: entities.NoThreatDistance, ThreatDirection: entities.DirectionNone}

	// Immediately after moving, the monster cannot move again.
	assert.False(t, svc.UpdateMonster(monster.TickContext{Grid: grid, Tick: 101, World: world}, zombie))
	assert.Equal(t, 5, zombie.X)
	assert.Equal(t, 5, zombie.Y)
}
