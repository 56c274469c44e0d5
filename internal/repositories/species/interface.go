package species

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=mockspecies -source=interface.go

// Record is the persisted learning state of one monster species. The
// Q-table buffer is row-major States×Actions; the dimensions ride
// along so a load can detect and absorb an encoder reshape.
type Record struct {
	MonsterType        string    `json:"monster_type"`
	Generation         int       `json:"generation"`
	Encounters         int       `json:"encounters"`
	TotalLearningSteps int       `json:"total_learning_steps"`
	States             int       `json:"states"`
	Actions            int       `json:"actions"`
	QTable             []float32 `json:"q_table"`
}

// HistoryEntry is one recorded learning step, kept per species for
// diagnostics. History is stored as a separate blob so loading the
// Q-tables does not drag it in.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	StateIndex int       `json:"state_index"`
	Action     string    `json:"action"`
	Reward     float64   `json:"reward"`
	QBefore    float64   `json:"q_before"`
	QAfter     float64   `json:"q_after"`
	Epsilon    float64   `json:"epsilon"`
}

// HistoryLimit caps the retained history entries per species.
const HistoryLimit = 1000

// Repository persists species records and their history blobs. Both
// implementations verify the stored schema version on load: a mismatch
// wipes everything, because a Q-table trained under a different state
// encoding is meaningless.
type Repository interface {
	// LoadAll returns every stored species record keyed by type. On a
	// schema version mismatch it clears the store and returns an empty
	// map.
	LoadAll(ctx context.Context) (map[string]*Record, error)

	// SaveAll writes the given records and stamps the current schema
	// version. Records not in the map are left untouched.
	SaveAll(ctx context.Context, records map[string]*Record) error

	// LoadHistory returns the history blob for one species; a species
	// with no stored history yields an empty slice.
	LoadHistory(ctx context.Context, monsterType string) ([]HistoryEntry, error)

	// SaveHistory replaces the history blob for one species.
	SaveHistory(ctx context.Context, monsterType string, history []HistoryEntry) error
}
