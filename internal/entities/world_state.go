package entities

// Direction is one of the eight compass directions, or none.
type Direction string

const (
	DirectionNorth     Direction = "n"
	DirectionNortheast Direction = "ne"
	DirectionEast      Direction = "e"
	DirectionSoutheast Direction = "se"
	DirectionSouth     Direction = "s"
	DirectionSouthwest Direction = "sw"
	DirectionWest      Direction = "w"
	DirectionNorthwest Direction = "nw"
	DirectionNone      Direction = "none"
)

var directionOrder = [...]Direction{
	DirectionNorth, DirectionNortheast, DirectionEast, DirectionSoutheast,
	DirectionSouth, DirectionSouthwest, DirectionWest, DirectionNorthwest,
}

// Index maps a direction to 0..7 clockwise from north; none is 8.
func (d Direction) Index() int {
	for i, dir := range directionOrder {
		if dir == d {
			return i
		}
	}
	return 8
}

// DirectionFromIndex is the inverse of Index.
func DirectionFromIndex(i int) Direction {
	if i < 0 || i >= len(directionOrder) {
		return DirectionNone
	}
	return directionOrder[i]
}

// DirectionTo gives the compass direction from (fromX,fromY) toward
// (toX,toY), or none when they coincide.
func DirectionTo(fromX, fromY, toX, toY int) Direction {
	dx := sign(toX - fromX)
	dy := sign(toY - fromY)

	switch {
	case dx == 0 && dy < 0:
		return DirectionNorth
	case dx > 0 && dy < 0:
		return DirectionNortheast
	case dx > 0 && dy == 0:
		return DirectionEast
	case dx > 0 && dy > 0:
		return DirectionSoutheast
	case dx == 0 && dy > 0:
		return DirectionSouth
	case dx < 0 && dy > 0:
		return DirectionSouthwest
	case dx < 0 && dy == 0:
		return DirectionWest
	case dx < 0 && dy < 0:
		return DirectionNorthwest
	}
	return DirectionNone
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// WorldState is what a monster can perceive about its surroundings on
// one tick. The game builds it; the state encoder discretizes it.
type WorldState struct {
	RoomType         string    `json:"room_type"`
	HPRatio          float64   `json:"hp_ratio"`
	NearbyEnemies    int       `json:"nearby_enemies"`
	NearbyAllies     int       `json:"nearby_allies"`
	DistanceToThreat int       `json:"distance_to_threat"`
	ThreatDirection  Direction `json:"threat_direction"`
	InCorridor       bool      `json:"in_corridor"`
	ThreatPosition   *Position `json:"threat_position,omitempty"`
}

// NoThreatDistance is used when no threat is perceived.
const NoThreatDistance = 999

// Clone returns a deep copy safe to retain across ticks.
func (w *WorldState) Clone() *WorldState {
	if w == nil {
		return nil
	}
	out := *w
	if w.ThreatPosition != nil {
		pos := *w.ThreatPosition
		out.ThreatPosition = &pos
	}
	return &out
}

// Personality biases a species' action selection. All traits are
// clamped to [0,1].
type Personality struct {
	Aggression    float64 `json:"aggression"`
	Caution       float64 `json:"caution"`
	Cunning       float64 `json:"cunning"`
	PackMentality float64 `json:"pack_mentality"`
	Exploration   float64 `json:"exploration"`
}

// Clamped returns the personality with every trait forced into [0,1].
func (p Personality) Clamped() Personality {
	return Personality{
		Aggression:    clamp01(p.Aggression),
		Caution:       clamp01(p.Caution),
		Cunning:       clamp01(p.Cunning),
		PackMentality: clamp01(p.PackMentality),
		Exploration:   clamp01(p.Exploration),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
