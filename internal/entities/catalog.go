package entities

// SpeciesDefinition is the template every individual of a monster type
// is stamped from. Stats are copied per spawn; the Q-table is shared
// per species and lives in the species store, not here.
type SpeciesDefinition struct {
	Type        string       `json:"type"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Color       string       `json:"color"`
	Description string       `json:"description"`
	Behavior    Behavior     `json:"behavior"`
	Stats       MonsterStats `json:"stats"`
	DamageDice  string       `json:"damage_dice"`
	Personality Personality  `json:"personality"`
}

// NewMonster stamps out one individual of this species.
func (d SpeciesDefinition) NewMonster(id string, x, y, roomID int) *Monster {
	stats := d.Stats
	stats.HP = stats.MaxHP
	return &Monster{
		ID:           id,
		MonsterType:  d.Type,
		Name:         d.Name,
		X:            x,
		Y:            y,
		RoomID:       roomID,
		Symbol:       d.Symbol,
		Color:        d.Color,
		Stats:        stats,
		Behavior:     d.Behavior,
		Description:  d.Description,
		DamageDice:   d.DamageDice,
		Personality:  d.Personality.Clamped(),
		Intelligence: NewIntelligenceState(),
	}
}

// DefaultCatalog returns the built-in species, keyed by type.
func DefaultCatalog() map[string]SpeciesDefinition {
	defs := []SpeciesDefinition{
		{
			Type:        "goblin",
			Name:        "Goblin",
			Symbol:      "g",
			Color:       "#7cb342",
			Description: "A small, vicious humanoid that fights dirtiest in a pack.",
			Behavior:    BehaviorPatrol,
			Stats:       MonsterStats{MaxHP: 7, AC: 13, Str: 8, Dex: 14, Con: 10, Int: 10, Wis: 8, Cha: 8, Speed: 30, ChallengeRating: 0.25},
			DamageDice:  "1d6",
			Personality: Personality{Aggression: 0.6, Caution: 0.4, Cunning: 0.5, PackMentality: 0.8, Exploration: 0.5},
		},
		{
			Type:        "kobold",
			Name:        "Kobold",
			Symbol:      "k",
			Color:       "#bf6332",
			Description: "A cowardly reptilian scavenger, brave only in numbers.",
			Behavior:    BehaviorSearching,
			Stats:       MonsterStats{MaxHP: 5, AC: 12, Str: 7, Dex: 15, Con: 9, Int: 8, Wis: 7, Cha: 8, Speed: 30, ChallengeRating: 0.125},
			DamageDice:  "1d4",
			Personality: Personality{Aggression: 0.4, Caution: 0.7, Cunning: 0.6, PackMentality: 0.8, Exploration: 0.4},
		},
		{
			Type:        "giant_rat",
			Name:        "Giant Rat",
			Symbol:      "r",
			Color:       "#8d6e63",
			Description: "An oversized rodent drawn to food and warmth.",
			Behavior:    BehaviorWander,
			Stats:       MonsterStats{MaxHP: 7, AC: 12, Str: 7, Dex: 15, Con: 11, Int: 2, Wis: 10, Cha: 4, Speed: 30, ChallengeRating: 0.125},
			DamageDice:  "1d4",
			Personality: Personality{Aggression: 0.5, Caution: 0.6, Cunning: 0.2, PackMentality: 0.6, Exploration: 0.7},
		},
		{
			Type:        "skeleton",
			Name:        "Skeleton",
			Symbol:      "s",
			Color:       "#e0e0e0",
			Description: "Animated bones that guard wherever they fell.",
			Behavior:    BehaviorStatic,
			Stats:       MonsterStats{MaxHP: 13, AC: 13, Str: 10, Dex: 14, Con: 15, Int: 6, Wis: 8, Cha: 5, Speed: 30, ChallengeRating: 0.25},
			DamageDice:  "1d6",
			Personality: Personality{Aggression: 0.7, Caution: 0.2, Cunning: 0.1, PackMentality: 0.3, Exploration: 0.2},
		},
		{
			Type:        "zombie",
			Name:        "Zombie",
			Symbol:      "z",
			Color:       "#689f38",
			Description: "A shambling corpse that never stops coming.",
			Behavior:    BehaviorWander,
			Stats:       MonsterStats{MaxHP: 22, AC: 8, Str: 13, Dex: 6, Con: 16, Int: 3, Wis: 6, Cha: 5, Speed: 20, ChallengeRating: 0.25},
			DamageDice:  "1d6",
			Personality: Personality{Aggression: 0.8, Caution: 0.1, Cunning: 0.1, PackMentality: 0.2, Exploration: 0.3},
		},
		{
			Type:        "orc",
			Name:        "Orc",
			Symbol:      "o",
			Color:       "#558b2f",
			Description: "A brutal raider that charges the nearest foe.",
			Behavior:    BehaviorAggressive,
			Stats:       MonsterStats{MaxHP: 15, AC: 13, Str: 16, Dex: 12, Con: 16, Int: 7, Wis: 11, Cha: 10, Speed: 30, ChallengeRating: 0.5},
			DamageDice:  "1d12",
			Personality: Personality{Aggression: 0.85, Caution: 0.2, Cunning: 0.3, PackMentality: 0.6, Exploration: 0.5},
		},
		{
			Type:        "cultist",
			Name:        "Cultist",
			Symbol:      "c",
			Color:       "#7e57c2",
			Description: "A robed fanatic muttering over a half-drawn circle.",
			Behavior:    BehaviorRitual,
			Stats:       MonsterStats{MaxHP: 9, AC: 12, Str: 11, Dex: 12, Con: 10, Int: 10, Wis: 11, Cha: 10, Speed: 30, ChallengeRating: 0.125},
			DamageDice:  "1d6",
			Personality: Personality{Aggression: 0.5, Caution: 0.5, Cunning: 0.7, PackMentality: 0.7, Exploration: 0.3},
		},
		{
			Type:        "ghoul",
			Name:        "Ghoul",
			Symbol:      "G",
			Color:       "#9e9d24",
			Description: "A grave-fed horror with a paralyzing hunger.",
			Behavior:    BehaviorAmbush,
			Stats:       MonsterStats{MaxHP: 22, AC: 12, Str: 13, Dex: 15, Con: 10, Int: 7, Wis: 10, Cha: 6, Speed: 30, ChallengeRating: 1},
			DamageDice:  "2d4",
			Personality: Personality{Aggression: 0.8, Caution: 0.3, Cunning: 0.4, PackMentality: 0.4, Exploration: 0.4},
		},
		{
			Type:        "spectre",
			Name:        "Spectre",
			Symbol:      "S",
			Color:       "#80deea",
			Description: "A cold presence that drifts through the dark.",
			Behavior:    BehaviorHaunt,
			Stats:       MonsterStats{MaxHP: 22, AC: 12, Str: 1, Dex: 14, Con: 11, Int: 10, Wis: 10, Cha: 11, Speed: 40, ChallengeRating: 1},
			DamageDice:  "3d6",
			Personality: Personality{Aggression: 0.6, Caution: 0.4, Cunning: 0.8, PackMentality: 0.1, Exploration: 0.6},
		},
	}

	catalog := make(map[string]SpeciesDefinition, len(defs))
	for _, d := range defs {
		catalog[d.Type] = d
	}
	return catalog
}
