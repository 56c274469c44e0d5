package ai

import (
	"fmt"

	"github.com/undercroft/undercroft/internal/entities"
)

// Bin counts for each perception dimension, row-major from slowest to
// fastest varying. Their product is the Q-table row count.
const (
	hpRatioBins      = 3
	enemyCountBins   = 4
	allyCountBins    = 4
	roomCategoryBins = 3
	distanceBins     = 3
	directionBins    = 9
	corridorBins     = 2
)

// StateSpace is the number of distinct encoded states (Q-table rows).
const StateSpace = hpRatioBins * enemyCountBins * allyCountBins *
	roomCategoryBins * distanceBins * directionBins * corridorBins

// Room categories as the encoder sees them.
const (
	RoomCategoryCombat = iota
	RoomCategorySafe
	RoomCategoryDangerous
)

// Distance bins.
const (
	DistanceAdjacent = iota
	DistanceNear
	DistanceFar
)

// roomCategories classifies room types a monster can fight, rest, or
// get hurt in. Unknown types are treated as safe.
var roomCategories = map[string]int{
	"armory":     RoomCategoryCombat,
	"guard_room": RoomCategoryCombat,
	"barracks":   RoomCategoryCombat,
	"entrance":   RoomCategorySafe,
	"hall":       RoomCategorySafe,
	"library":    RoomCategorySafe,
	"study":      RoomCategorySafe,
	"storage":    RoomCategorySafe,
	"crypt":      RoomCategoryDangerous,
	"chapel":     RoomCategoryDangerous,
	"prison":     RoomCategoryDangerous,
}

// DiscreteState is one encoded world state, dimension by dimension.
type DiscreteState struct {
	HPRatio      int
	EnemyCount   int
	AllyCount    int
	RoomCategory int
	Distance     int
	Direction    int
	InCorridor   int
}

// Flat collapses the dimensions into a single Q-table row index.
func (d DiscreteState) Flat() int {
	flat := d.HPRatio
	flat = flat*enemyCountBins + d.EnemyCount
	flat = flat*allyCountBins + d.AllyCount
	flat = flat*roomCategoryBins + d.RoomCategory
	flat = flat*distanceBins + d.Distance
	flat = flat*directionBins + d.Direction
	flat = flat*corridorBins + d.InCorridor
	return flat
}

// Encode discretizes a world state. When oblivious is set (monster
// intelligence 6 or lower) the threat dimensions are forced to their
// "nothing there" values: dim monsters never perceive players.
func Encode(w *entities.WorldState, oblivious bool) (int, DiscreteState) {
	if w == nil {
		w = &entities.WorldState{DistanceToThreat: entities.NoThreatDistance, ThreatDirection: entities.DirectionNone}
	}

	d := DiscreteState{
		HPRatio:      binHPRatio(w.HPRatio),
		EnemyCount:   binCount(w.NearbyEnemies),
		AllyCount:    binCount(w.NearbyAllies),
		RoomCategory: RoomCategoryFor(w.RoomType),
		Distance:     binDistance(w.DistanceToThreat),
		Direction:    w.ThreatDirection.Index(),
	}
	if w.InCorridor {
		d.InCorridor = 1
	}

	if oblivious {
		d.EnemyCount = 0
		d.Distance = DistanceFar
		d.Direction = entities.DirectionNone.Index()
	}

	return d.Flat(), d
}

// Decode is the inverse of DiscreteState.Flat.
func Decode(flat int) DiscreteState {
	var d DiscreteState
	d.InCorridor = flat % corridorBins
	flat /= corridorBins
	d.Direction = flat % directionBins
	flat /= directionBins
	d.Distance = flat % distanceBins
	flat /= distanceBins
	d.RoomCategory = flat % roomCategoryBins
	flat /= roomCategoryBins
	d.AllyCount = flat % allyCountBins
	flat /= allyCountBins
	d.EnemyCount = flat % enemyCountBins
	flat /= enemyCountBins
	d.HPRatio = flat % hpRatioBins
	return d
}

// DescribeState renders an encoded state as labeled values for
// debugging and the species history log.
func DescribeState(flat int) map[string]string {
	d := Decode(flat)

	hpLabels := [...]string{"critical", "hurt", "healthy"}
	catLabels := [...]string{"combat", "safe", "dangerous"}
	distLabels := [...]string{"adjacent", "near", "far"}

	countLabel := func(bin int) string {
		if bin >= 3 {
			return "3+"
		}
		return fmt.Sprintf("%d", bin)
	}

	corridor := "false"
	if d.InCorridor == 1 {
		corridor = "true"
	}

	return map[string]string{
		"hp_ratio":         hpLabels[d.HPRatio],
		"enemy_count":      countLabel(d.EnemyCount),
		"ally_count":       countLabel(d.AllyCount),
		"room_category":    catLabels[d.RoomCategory],
		"distance":         distLabels[d.Distance],
		"threat_direction": string(entities.DirectionFromIndex(d.Direction)),
		"in_corridor":      corridor,
	}
}

// RoomCategoryFor maps a room type to its encoder category; unknown
// types are safe.
func RoomCategoryFor(roomType string) int {
	if cat, ok := roomCategories[roomType]; ok {
		return cat
	}
	return RoomCategorySafe
}

func binHPRatio(ratio float64) int {
	switch {
	case ratio <= 0.33:
		return 0
	case ratio <= 0.66:
		return 1
	}
	return 2
}

func binCount(n int) int {
	if n < 0 {
		return 0
	}
	if n >= 3 {
		return 3
	}
	return n
}

func binDistance(d int) int {
	switch {
	case d <= 1:
		return DistanceAdjacent
	case d <= 4:
		return DistanceNear
	}
	return DistanceFar
}
