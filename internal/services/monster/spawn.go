package monster

import (
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
)

const (
	// minRoomArea is the floor area below which a room spawns nothing.
	minRoomArea = 25

	// maxMonstersPerRoom caps a single room's population.
	maxMonstersPerRoom = 3

	// areaPerMonster: one monster per this much floor.
	areaPerMonster = 50
)

// spawnChance is the probability a qualifying room spawns anything at
// all, by room type. The entrance is always safe.
var spawnChance = map[string]float64{
	"entrance":   0,
	"hall":       0.5,
	"armory":     0.7,
	"barracks":   0.7,
	"guard_room": 0.8,
	"library":    0.4,
	"study":      0.3,
	"storage":    0.5,
	"chapel":     0.6,
	"crypt":      0.9,
	"prison":     0.7,
}

const defaultSpawnChance = 0.5

// roomMonsterWeights is the weighted species table per room type.
// Types without a row draw from the default table.
var roomMonsterWeights = map[string]map[string]int{
	"armory":     {"goblin": 3, "orc": 2, "skeleton": 2},
	"barracks":   {"goblin": 3, "orc": 2, "kobold": 2},
	"guard_room": {"goblin": 3, "orc": 3, "skeleton": 1},
	"hall":       {"goblin": 2, "kobold": 2, "giant_rat": 2},
	"library":    {"spectre": 2, "cultist": 2, "giant_rat": 1},
	"study":      {"spectre": 2, "cultist": 2},
	"storage":    {"giant_rat": 4, "kobold": 2},
	"chapel":     {"cultist": 4, "skeleton": 2, "zombie": 1},
	"crypt":      {"skeleton": 3, "zombie": 3, "ghoul": 2, "spectre": 1},
	"prison":     {"zombie": 2, "ghoul": 2, "giant_rat": 2},
}

var defaultMonsterWeights = map[string]int{
	"goblin": 3, "kobold": 2, "giant_rat": 2, "skeleton": 1,
}

func (s *service) SpawnMonstersForRoom(room *dungeon.Room, grid dungeon.Grid) []*entities.Monster {
	if room == nil || room.Area() < minRoomArea {
		return nil
	}

	chance, ok := spawnChance[room.RoomType]
	if !ok {
		chance = defaultSpawnChance
	}

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if s.rng.Float64() >= chance {
		return nil
	}

	count := room.Area() / areaPerMonster
	if count < 1 {
		count = 1
	}
	if count > maxMonstersPerRoom {
		count = maxMonstersPerRoom
	}

	weights, ok := roomMonsterWeights[room.RoomType]
	if !ok {
		weights = defaultMonsterWeights
	}

	var spawned []*entities.Monster
	for i := 0; i < count; i++ {
		monsterType := s.pickWeightedLocked(weights)
		def, ok := s.catalog[monsterType]
		if !ok {
			continue
		}

		x, y, found := s.findSpawnTileLocked(room, grid, spawned)
		if !found {
			break
		}

		m := def.NewMonster(s.idGen.New(), x, y, room.ID)
		spawned = append(spawned, m)
	}

	return spawned
}

// pickWeightedLocked draws a species from a weight table. Iteration
// order over the map is random, which is fine under a weighted draw.
// Caller holds engineMu for the RNG.
func (s *service) pickWeightedLocked(weights map[string]int) string {
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return ""
	}

	pick := s.rng.Intn(total)
	for monsterType, w := range weights {
		pick -= w
		if pick < 0 {
			return monsterType
		}
	}
	return ""
}

// findSpawnTileLocked picks a floor tile in the room that is not on or
// next to a door and not already taken by a monster spawned this call.
// Caller holds engineMu for the RNG.
func (s *service) findSpawnTileLocked(room *dungeon.Room, grid dungeon.Grid, taken []*entities.Monster) (int, int, bool) {
	for attempt := 0; attempt < 30; attempt++ {
		x := room.X + s.rng.Intn(room.Width)
		y := room.Y + s.rng.Intn(room.Height)

		if grid.At(x, y) != dungeon.TileFloor {
			continue
		}
		if nearDoor(grid, x, y) {
			continue
		}

		occupied := false
		for _, m := range taken {
			if m.X == x && m.Y == y {
				occupied = true
				break
			}
		}
		if occupied {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}

// nearDoor reports whether (x,y) is a door or 8-adjacent to one.
// Spawning against a door traps players in the doorway.
func nearDoor(grid dungeon.Grid, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if grid.At(x+dx, y+dy).IsDoor() {
				return true
			}
		}
	}
	return false
}
