package entities

// Behavior is a monster's baseline disposition, used as the fallback
// when the Q-table has nothing to say.
type Behavior string

const (
	BehaviorStatic     Behavior = "static"
	BehaviorPatrol     Behavior = "patrol"
	BehaviorSearching  Behavior = "searching"
	BehaviorAggressive Behavior = "aggressive"
	BehaviorFleeing    Behavior = "fleeing"
	BehaviorAmbush     Behavior = "ambush"
	BehaviorWander     Behavior = "wander"
	BehaviorHaunt      Behavior = "haunt"
	BehaviorRitual     Behavior = "ritual"
)

// MonsterStats holds a monster's D&D statline.
type MonsterStats struct {
	HP              int     `json:"hp"`
	MaxHP           int     `json:"max_hp"`
	AC              int     `json:"ac"`
	Str             int     `json:"str"`
	Dex             int     `json:"dex"`
	Con             int     `json:"con"`
	Int             int     `json:"int"`
	Wis             int     `json:"wis"`
	Cha             int     `json:"cha"`
	Speed           int     `json:"speed"`
	ChallengeRating float64 `json:"challenge_rating"`
}

// TakeDamage applies damage clamped to the remaining hit points and
// returns the amount actually dealt.
func (s *MonsterStats) TakeDamage(n int) int {
	if n < 0 {
		n = 0
	}
	if n > s.HP {
		n = s.HP
	}
	s.HP -= n
	return n
}

// HPRatio is current over max hit points in [0,1].
func (s *MonsterStats) HPRatio() float64 {
	if s.MaxHP <= 0 {
		return 0
	}
	return float64(s.HP) / float64(s.MaxHP)
}

// Monster is one spawned individual. All individuals of a type share
// the species Q-table; everything here is per-individual.
type Monster struct {
	ID                string            `json:"id"`
	MonsterType       string            `json:"monster_type"`
	Name              string            `json:"name"`
	X                 int               `json:"x"`
	Y                 int               `json:"y"`
	RoomID            int               `json:"room_id"`
	Symbol            string            `json:"symbol"`
	Color             string            `json:"color"`
	Stats             MonsterStats      `json:"stats"`
	Behavior          Behavior          `json:"behavior"`
	Description       string            `json:"description,omitempty"`
	DamageDice        string            `json:"damage_dice"`
	Personality       Personality       `json:"personality"`
	PatrolTarget      *Position         `json:"patrol_target,omitempty"`
	LastMoveTick      int64             `json:"last_move_tick"`
	TargetPlayerID    string            `json:"target_player_id,omitempty"`
	LastSeenPlayerPos *Position         `json:"last_seen_player_pos,omitempty"`
	Intelligence      IntelligenceState `json:"intelligence_state"`
}

// IsAlive returns true while the monster has hit points left.
func (m *Monster) IsAlive() bool {
	return m.Stats.HP > 0
}

// StrModifier is the monster's strength modifier, used on attack rolls.
func (m *Monster) StrModifier() int {
	return Modifier(m.Stats.Str)
}

// IsOblivious reports whether the monster is too dim to ever perceive
// players (intelligence 6 or lower).
func (m *Monster) IsOblivious() bool {
	return m.Stats.Int <= 6
}

// IntelligenceState is the per-monster slice of the learning loop:
// what it last saw, did, and was rewarded for.
type IntelligenceState struct {
	MemoryEvents     []MemoryEvent `json:"memory_events,omitempty"`
	LastStateIndex   int           `json:"last_state_index"`
	LastAction       string        `json:"last_action,omitempty"`
	LastReward       float64       `json:"last_reward"`
	LastDecisionTick int64         `json:"last_decision_tick"`
	Generation       int           `json:"generation"`
	QTableVersion    int           `json:"q_table_version"`
	LastWorldState   *WorldState   `json:"last_world_state,omitempty"`
}

// NewIntelligenceState returns an empty state with no last decision.
func NewIntelligenceState() IntelligenceState {
	return IntelligenceState{LastStateIndex: -1}
}

// MemoryEvent is one remembered stimulus with a decaying intensity.
type MemoryEvent struct {
	Kind      string  `json:"kind"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float64 `json:"intensity"`
	Tick      int64   `json:"tick"`
}

// Snapshot captures the monster's current learning inputs so a reward
// arriving later can still close the (state, action) transition.
func (s *IntelligenceState) Snapshot(monsterType string, hpRatio float64) *AISnapshot {
	if s.LastStateIndex < 0 || s.LastAction == "" {
		return nil
	}
	return &AISnapshot{
		MonsterType: monsterType,
		StateIndex:  s.LastStateIndex,
		Action:      s.LastAction,
		WorldState:  s.LastWorldState,
		HPRatio:     hpRatio,
	}
}

// AISnapshot rides on reward events back to the monster service.
type AISnapshot struct {
	MonsterType string      `json:"monster_type"`
	StateIndex  int         `json:"state_index"`
	Action      string      `json:"action"`
	WorldState  *WorldState `json:"world_state,omitempty"`
	HPRatio     float64     `json:"hp_ratio"`
}
