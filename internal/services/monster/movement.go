package monster

import (
	"hash/fnv"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
)

const fleeSearchRadius = 8

func (s *service) UpdateMonster(tc TickContext, m *entities.Monster) bool {
	result := s.decide(m, tc.Tick, tc.World)

	if !result.Action.IsMovement() {
		// Combat and stance actions hold position; the game's aggro
		// check decides whether a fight actually starts.
		return false
	}

	if !s.canMoveThisTick(m, tc.Tick) {
		return false
	}

	var moved bool
	switch result.Action {
	case ai.ActionMoveTowardThreat:
		moved = s.moveTowardThreat(tc, m)
	case ai.ActionMoveAwayThreat, ai.ActionFlee:
		moved = s.moveAwayFromThreat(tc, m)
	case ai.ActionPatrolWaypoint:
		moved = s.moveTowardWaypoint(tc, m)
	case ai.ActionPatrol:
		moved = s.stepRandom(tc, m)
	}

	if moved {
		m.LastMoveTick = tc.Tick
	}
	return moved
}

// canMoveThisTick rate-limits movement per monster. The interval is
// derived from the monster id so a crowd does not march in lockstep.
func (s *service) canMoveThisTick(m *entities.Monster, tick int64) bool {
	h := fnv.New32a()
	h.Write([]byte(m.ID))
	interval := int64(2 + h.Sum32()%3)
	return tick-m.LastMoveTick >= interval
}

func (s *service) moveTowardThreat(tc TickContext, m *entities.Monster) bool {
	if tc.World == nil || tc.World.ThreatPosition == nil {
		return s.stepRandom(tc, m)
	}
	return s.stepAlongPath(tc, m, *tc.World.ThreatPosition)
}

func (s *service) moveAwayFromThreat(tc TickContext, m *entities.Monster) bool {
	if tc.World == nil || tc.World.ThreatPosition == nil {
		return s.stepRandom(tc, m)
	}

	from := entities.Position{X: m.X, Y: m.Y}
	target, ok := dungeon.FindFleePosition(tc.Grid, from, *tc.World.ThreatPosition, fleeSearchRadius)
	if !ok {
		return false
	}
	return s.stepAlongPath(tc, m, target)
}

// moveTowardWaypoint paths toward the cached patrol waypoint,
// generating a new one when none is set, it was reached, or it turned
// out to be unreachable.
func (s *service) moveTowardWaypoint(tc TickContext, m *entities.Monster) bool {
	if m.PatrolTarget != nil && m.PatrolTarget.X == m.X && m.PatrolTarget.Y == m.Y {
		m.PatrolTarget = nil
	}

	if m.PatrolTarget == nil {
		if wp, ok := s.pickWaypoint(tc, m); ok {
			m.PatrolTarget = &wp
		} else {
			return s.stepRandom(tc, m)
		}
	}

	if s.stepAlongPath(tc, m, *m.PatrolTarget) {
		return true
	}
	// Unreachable waypoint: forget it and try fresh next tick.
	m.PatrolTarget = nil
	return false
}

// pickWaypoint chooses a patrol destination: usually a corridor tile
// near the monster, a nearby room center when the monster is already
// in a corridor, otherwise any floor tile in a small box around it.
func (s *service) pickWaypoint(tc TickContext, m *entities.Monster) (entities.Position, bool) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	roll := s.rng.Float64()

	if roll < 0.4 {
		if pos, ok := s.randomTileInBoxLocked(tc, m, 8, func(x, y int) bool {
			return dungeon.InCorridor(tc.Rooms, x, y)
		}); ok {
			return pos, true
		}
	}

	if dungeon.InCorridor(tc.Rooms, m.X, m.Y) && roll < 0.6 {
		if room := s.nearestRoomLocked(tc, m); room != nil {
			cx, cy := room.Center()
			return entities.Position{X: cx, Y: cy}, true
		}
	}

	return s.randomTileInBoxLocked(tc, m, 6, func(x, y int) bool { return true })
}

func (s *service) randomTileInBoxLocked(tc TickContext, m *entities.Monster, radius int, accept func(x, y int) bool) (entities.Position, bool) {
	for attempt := 0; attempt < 20; attempt++ {
		x := m.X + s.rng.Intn(2*radius+1) - radius
		y := m.Y + s.rng.Intn(2*radius+1) - radius
		if x == m.X && y == m.Y {
			continue
		}
		if tc.Grid.At(x, y) != dungeon.TileFloor || !accept(x, y) {
			continue
		}
		return entities.Position{X: x, Y: y}, true
	}
	return entities.Position{}, false
}

func (s *service) nearestRoomLocked(tc TickContext, m *entities.Monster) *dungeon.Room {
	var nearest *dungeon.Room
	bestDist := 1 << 30
	for _, room := range tc.Rooms {
		cx, cy := room.Center()
		d := absInt(cx-m.X) + absInt(cy-m.Y)
		if d < bestDist {
			bestDist = d
			nearest = room
		}
	}
	return nearest
}

// stepAlongPath takes the first step of an A* path toward the target.
func (s *service) stepAlongPath(tc TickContext, m *entities.Monster, target entities.Position) bool {
	path := dungeon.FindPath(tc.Grid, entities.Position{X: m.X, Y: m.Y}, target)
	if len(path) < 2 {
		return false
	}

	next := path[1]
	if tc.Occupied != nil && tc.Occupied(next.X, next.Y) {
		return false
	}

	m.X = next.X
	m.Y = next.Y
	refreshRoom(tc, m)
	return true
}

// refreshRoom re-derives the monster's room after a step so the
// recorded RoomID stays truthful as it wanders through corridors into
// neighboring rooms.
func refreshRoom(tc TickContext, m *entities.Monster) {
	m.RoomID = entities.NoRoom
	for _, room := range tc.Rooms {
		if room.Contains(m.X, m.Y) {
			m.RoomID = room.ID
			return
		}
	}
}

// stepRandom shuffles the four cardinal directions and takes the first
// walkable, unoccupied one.
func (s *service) stepRandom(tc TickContext, m *entities.Monster) bool {
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	s.engineMu.Lock()
	s.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	s.engineMu.Unlock()

	for _, d := range dirs {
		nx, ny := m.X+d[0], m.Y+d[1]
		if !tc.Grid.At(nx, ny).IsWalkable() {
			continue
		}
		if tc.Occupied != nil && tc.Occupied(nx, ny) {
			continue
		}
		m.X = nx
		m.Y = ny
		refreshRoom(tc, m)
		return true
	}
	return false
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
