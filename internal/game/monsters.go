package game

import (
	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/domain/combat"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
	monsterservice "github.com/undercroft/undercroft/internal/services/monster"
)

// perceptionRadius bounds what counts as "nearby" when building a
// monster's world state.
const perceptionRadius = 8

// updateMonstersLocked runs the out-of-combat AI: aggro checks first,
// then one decision-and-movement step per idle monster. Caller holds
// g.mu; reports whether any monster moved.
func (g *Game) updateMonstersLocked(out *outbox) bool {
	g.checkMonsterAggroLocked(out)

	moved := false
	for _, m := range g.monsterByID {
		if !m.IsAlive() || g.fightForMonsterLocked(m.ID) != nil {
			continue
		}
		// A monster whose home room no longer resolves is skipped, not
		// deleted; a later map fix can revive it.
		if m.RoomID != entities.NoRoom && g.roomByIDLocked(m.RoomID) == nil {
			continue
		}

		tc := monsterservice.TickContext{
			Grid:  g.tiles,
			Rooms: g.rooms,
			Tick:  g.tick,
			World: g.buildWorldStateLocked(m),
			Occupied: func(x, y int) bool {
				return g.occupiedLocked(x, y, m.ID)
			},
		}
		if g.monsters.UpdateMonster(tc, m) {
			moved = true
		}
	}
	return moved
}

// checkMonsterAggroLocked lets idle monsters start fights. A monster
// standing next to a vulnerable player asks its policy what it would
// do; an aggressive answer opens a fight with the monster acting
// first. Caller holds g.mu.
func (g *Game) checkMonsterAggroLocked(out *outbox) {
	now := g.now()

	for _, m := range g.monsterByID {
		if !m.IsAlive() || m.IsOblivious() || g.fightForMonsterLocked(m.ID) != nil {
			continue
		}

		var target *entities.Player
		for _, p := range g.players {
			if !p.IsAlive() || p.IsFightImmune(now) {
				continue
			}
			if g.fightForPlayerLocked(p.ID) != nil {
				continue
			}
			if chebyshev(m.X, m.Y, p.X, p.Y) == 1 {
				target = p
				break
			}
		}
		if target == nil {
			continue
		}

		action := g.monsters.DecideCombatAction(m, g.tick, g.buildWorldStateLocked(m))
		switch action {
		case ai.ActionAttackAggressive, ai.ActionAttackDefensive, ai.ActionAmbush:
		default:
			continue
		}

		f := combat.New(g.idGen.New(), m.ID, target.ID, g.settings.TurnDuration, now)
		f.MonsterActsFirst(now)
		f.Log("The %s attacks %s!", m.Name, target.Name)
		g.fights[f.ID] = f
		g.touchLocked()

		g.announceFightLocked(out, f, true)
	}
}

// buildWorldStateLocked assembles what the monster can perceive this
// tick. The nearest living player is the threat regardless of range;
// the encoder's distance bins do the discounting. Caller holds g.mu.
func (g *Game) buildWorldStateLocked(m *entities.Monster) *entities.WorldState {
	ws := &entities.WorldState{
		HPRatio:          m.Stats.HPRatio(),
		DistanceToThreat: entities.NoThreatDistance,
		ThreatDirection:  entities.DirectionNone,
	}

	if room := dungeon.RoomAt(g.rooms, m.X, m.Y); room != nil {
		ws.RoomType = room.RoomType
	} else {
		ws.InCorridor = true
	}

	var nearest *entities.Player
	nearestDist := 0
	for _, p := range g.players {
		if !p.IsAlive() {
			continue
		}
		d := chebyshev(m.X, m.Y, p.X, p.Y)
		if nearest == nil || d < nearestDist {
			nearest = p
			nearestDist = d
		}
		if d <= perceptionRadius {
			ws.NearbyEnemies++
		}
	}
	if nearest != nil {
		ws.DistanceToThreat = nearestDist
		ws.ThreatDirection = entities.DirectionTo(m.X, m.Y, nearest.X, nearest.Y)
		ws.ThreatPosition = &entities.Position{X: nearest.X, Y: nearest.Y}
	}

	for _, other := range g.monsterByID {
		if other.ID == m.ID || !other.IsAlive() {
			continue
		}
		if chebyshev(m.X, m.Y, other.X, other.Y) <= perceptionRadius {
			ws.NearbyAllies++
		}
	}

	return ws
}
