package monster

//go:generate mockgen -destination=mock/mock_service.go -package=mockmonster -source=service.go

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/repositories/species"
	"github.com/undercroft/undercroft/internal/uuid"
)

// defaultPersistInterval is how often dirty species tables are written
// back to the store.
const defaultPersistInterval = time.Minute

// listenerID identifies the service on the event bus.
const listenerID = "monster-service"

// TickContext is the slice of game state the service needs to step one
// monster. The game builds it under its own lock.
type TickContext struct {
	Grid  dungeon.Grid
	Rooms []*dungeon.Room
	Tick  int64
	World *entities.WorldState

	// Occupied reports whether another entity stands on a tile, so
	// monsters do not walk into players or each other.
	Occupied func(x, y int) bool
}

// Service owns the species knowledge store and runs the monster AI:
// spawning, per-tick decisions and movement, and the learning side of
// the reward loop.
type Service interface {
	// Catalog exposes the species definitions keyed by monster type.
	Catalog() map[string]entities.SpeciesDefinition

	// SpawnMonstersForRoom rolls the room's spawn table and stamps out
	// monsters on valid floor tiles, never on or beside a door.
	SpawnMonstersForRoom(room *dungeon.Room, grid dungeon.Grid) []*entities.Monster

	// UpdateMonster runs one AI tick for a monster outside combat and
	// reports whether it moved.
	UpdateMonster(tc TickContext, m *entities.Monster) bool

	// DecideCombatAction picks a combat-turn action with the adjacent
	// in-melee overlay applied to the world state.
	DecideCombatAction(m *entities.Monster, tick int64, world *entities.WorldState) ai.Action

	// Load primes the species store from the repository; a schema
	// mismatch comes back as an empty store.
	Load(ctx context.Context) error

	// Persist writes dirty species records and history blobs.
	Persist(ctx context.Context) error

	// Start runs the periodic persist loop until ctx is canceled, then
	// persists one final time.
	Start(ctx context.Context)

	// events.EventListener: reward events feed the Q-tables.
	HandleEvent(event events.Event) error
	Priority() int
	ID() string

	// QValue and Generation expose learning state for the debug
	// surface and tests.
	QValue(monsterType string, state int, action ai.Action) float32
	Generation(monsterType string) int
}

// speciesState is the in-memory learning state for one monster type.
// Per-species locking serializes reward application with decisions
// made by concurrently ticking games.
type speciesState struct {
	mu            sync.Mutex
	rec           *species.Record
	table         *ai.QTable
	history       []species.HistoryEntry
	historyLoaded bool
	dirty         bool
	historyDirty  bool
}

type service struct {
	repo    species.Repository
	catalog map[string]entities.SpeciesDefinition
	idGen   uuid.Generator
	log     *zap.Logger

	maxGenerationCap int
	inheritanceRatio float64
	persistInterval  time.Duration

	// engineMu guards the shared engine/agent and its RNG.
	engineMu sync.Mutex
	engine   *ai.Engine
	rng      *rand.Rand

	mu      sync.Mutex
	species map[string]*speciesState
}

// ServiceConfig holds configuration for the service
type ServiceConfig struct {
	Repository  species.Repository // Required
	Bus         *events.Bus        // Optional; subscribes to reward events when set
	Catalog     map[string]entities.SpeciesDefinition
	IDGenerator uuid.Generator
	Logger      *zap.Logger
	RNG         *rand.Rand

	MaxGenerationCap int
	InheritanceRatio float64
	PersistInterval  time.Duration
	Hyperparameters  *ai.Hyperparameters
}

// NewService creates a new monster service
func NewService(cfg *ServiceConfig) Service {
	if cfg.Repository == nil {
		panic("species repository is required")
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = entities.DefaultCatalog()
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewGoogleUUIDGenerator()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	hp := ai.DefaultHyperparameters()
	if cfg.Hyperparameters != nil {
		hp = *cfg.Hyperparameters
	}
	maxGen := cfg.MaxGenerationCap
	if maxGen <= 0 {
		maxGen = 100
	}
	ratio := cfg.InheritanceRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.85
	}
	persistInterval := cfg.PersistInterval
	if persistInterval <= 0 {
		persistInterval = defaultPersistInterval
	}

	s := &service{
		repo:             cfg.Repository,
		catalog:          catalog,
		idGen:            idGen,
		log:              logger,
		maxGenerationCap: maxGen,
		inheritanceRatio: ratio,
		persistInterval:  persistInterval,
		engine:           ai.NewEngine(ai.NewAgent(hp, rng), logger),
		rng:              rng,
		species:          make(map[string]*speciesState),
	}

	if cfg.Bus != nil {
		cfg.Bus.Subscribe(events.EventTypeDamageDealt, s)
		cfg.Bus.Subscribe(events.EventTypeMonsterDied, s)
		cfg.Bus.Subscribe(events.EventTypeMonsterFled, s)
	}

	return s
}

func (s *service) Catalog() map[string]entities.SpeciesDefinition {
	return s.catalog
}

// stateFor returns the learning state for a species, creating a fresh
// zeroed table on first sight.
func (s *service) stateFor(monsterType string) *speciesState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.species[monsterType]; ok {
		return st
	}

	st := &speciesState{
		rec: &species.Record{
			MonsterType: monsterType,
			States:      ai.StateSpace,
			Actions:     ai.ActionCount,
		},
		table: ai.NewQTable(ai.StateSpace, ai.ActionCount),
	}
	s.species[monsterType] = st
	return st
}

func (s *service) Load(ctx context.Context) error {
	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for monsterType, rec := range records {
		table := ai.QTableFromValues(rec.QTable, rec.States, rec.Actions, ai.StateSpace, ai.ActionCount)
		rec.States = ai.StateSpace
		rec.Actions = ai.ActionCount
		s.species[monsterType] = &speciesState{rec: rec, table: table}
	}

	s.log.Info("species store loaded", zap.Int("species", len(records)))
	return nil
}

func (s *service) Persist(ctx context.Context) error {
	s.mu.Lock()
	states := make(map[string]*speciesState, len(s.species))
	for monsterType, st := range s.species {
		states[monsterType] = st
	}
	s.mu.Unlock()

	dirty := make(map[string]*species.Record)
	type historyWrite struct {
		monsterType string
		entries     []species.HistoryEntry
	}
	var histories []historyWrite

	for monsterType, st := range states {
		st.mu.Lock()
		if st.dirty {
			rec := *st.rec
			rec.QTable = make([]float32, len(st.table.Values))
			copy(rec.QTable, st.table.Values)
			dirty[monsterType] = &rec
			st.dirty = false
		}
		if st.historyDirty {
			entries := make([]species.HistoryEntry, len(st.history))
			copy(entries, st.history)
			histories = append(histories, historyWrite{monsterType, entries})
			st.historyDirty = false
		}
		st.mu.Unlock()
	}

	if len(dirty) > 0 {
		if err := s.repo.SaveAll(ctx, dirty); err != nil {
			s.markDirty(dirty)
			return err
		}
	}
	for _, hw := range histories {
		if err := s.repo.SaveHistory(ctx, hw.monsterType, hw.entries); err != nil {
			s.log.Error("failed to save species history",
				zap.String("species", hw.monsterType),
				zap.Error(err))
		}
	}
	return nil
}

// markDirty restores the dirty flags after a failed batch write so the
// next persist retries.
func (s *service) markDirty(records map[string]*species.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for monsterType := range records {
		if st, ok := s.species[monsterType]; ok {
			st.dirty = true
		}
	}
}

func (s *service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Persist(ctx); err != nil {
				s.log.Warn("periodic species persist failed", zap.Error(err))
			}
		case <-ctx.Done():
			persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Persist(persistCtx); err != nil {
				s.log.Warn("final species persist failed", zap.Error(err))
			}
			cancel()
			return
		}
	}
}

// decide runs the decision pipeline for one monster under the engine
// lock. The species table is read without its lock held; reward writes
// racing a read can only make a single decision stale, never corrupt.
func (s *service) decide(m *entities.Monster, tick int64, world *entities.WorldState) ai.DecisionResult {
	st := s.stateFor(m.MonsterType)

	personality := m.Personality
	if def, ok := s.catalog[m.MonsterType]; ok && personality == (entities.Personality{}) {
		personality = def.Personality
	}

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	result := s.engine.Decide(ai.DecisionContext{
		Monster:     m,
		Personality: personality,
		QTable:      st.table,
		Tick:        tick,
		World:       world,
	})

	// A monster that cannot perceive players cannot act against them:
	// combat and threat-seeking choices degrade to patrol.
	if m.IsOblivious() && (result.Action.IsCombat() || result.Action == ai.ActionMoveTowardThreat) {
		result.Action = ai.ActionPatrol
		m.Intelligence.LastAction = string(result.Action)
	}

	return result
}

func (s *service) DecideCombatAction(m *entities.Monster, tick int64, world *entities.WorldState) ai.Action {
	overlay := world.Clone()
	if overlay == nil {
		overlay = &entities.WorldState{}
	}
	// In melee the threat is by definition adjacent and the fight is
	// happening in the open room, whatever the map says.
	overlay.DistanceToThreat = 1
	overlay.InCorridor = false
	if overlay.ThreatDirection == "" || overlay.ThreatDirection == entities.DirectionNone {
		overlay.ThreatDirection = entities.DirectionNorth
	}

	return s.decide(m, tick, overlay).Action
}

// HandleEvent applies a reward event to the species Q-table. Malformed
// events (no snapshot, unknown action, zero reward) are ignored
// without touching the table.
func (s *service) HandleEvent(event events.Event) error {
	reward, ok := event.(*events.RewardEvent)
	if !ok {
		return nil
	}
	snapshot := reward.Snapshot
	if snapshot == nil || snapshot.MonsterType == "" || reward.Reward == 0 {
		return nil
	}
	action := ai.Action(snapshot.Action)
	if action.Index() < 0 {
		return nil
	}
	if snapshot.StateIndex < 0 || snapshot.StateIndex >= ai.StateSpace {
		return nil
	}

	st := s.stateFor(snapshot.MonsterType)

	oblivious := false
	if def, ok := s.catalog[snapshot.MonsterType]; ok {
		oblivious = def.Stats.Int <= 6
	}

	world := snapshot.WorldState.Clone()
	if world == nil {
		world = &entities.WorldState{DistanceToThreat: entities.NoThreatDistance, ThreatDirection: entities.DirectionNone}
	}
	world.HPRatio = snapshot.HPRatio
	nextState, _ := ai.Encode(world, oblivious)

	s.engineMu.Lock()
	st.mu.Lock()
	result := s.engine.Learn(st.table, snapshot.StateIndex, nextState, action, reward.Reward)
	st.rec.TotalLearningSteps++
	st.dirty = true
	s.appendHistoryLocked(st, snapshot.MonsterType, species.HistoryEntry{
		Timestamp:  event.GetTimestamp(),
		StateIndex: snapshot.StateIndex,
		Action:     snapshot.Action,
		Reward:     reward.Reward,
		QBefore:    result.QBefore,
		QAfter:     result.QAfter,
		Epsilon:    result.Epsilon,
	})

	if event.GetType() == events.EventTypeMonsterDied || event.GetType() == events.EventTypeMonsterFled {
		st.rec.Encounters++
	}
	if event.GetType() == events.EventTypeMonsterDied && st.rec.Generation < s.maxGenerationCap {
		// The next generation inherits a damped copy of what this one
		// learned.
		st.rec.Generation++
		st.table.Scale(float32(s.inheritanceRatio))
	}
	st.mu.Unlock()
	s.engineMu.Unlock()

	s.log.Debug("reward applied",
		zap.String("species", snapshot.MonsterType),
		zap.String("action", snapshot.Action),
		zap.Float64("reward", reward.Reward),
		zap.Float64("delta", result.Delta))

	return nil
}

// appendHistoryLocked lazily loads the species history blob on first
// touch, then appends within the cap. Caller holds st.mu.
func (s *service) appendHistoryLocked(st *speciesState, monsterType string, entry species.HistoryEntry) {
	if !st.historyLoaded {
		loaded, err := s.repo.LoadHistory(context.Background(), monsterType)
		if err != nil {
			s.log.Warn("failed to load species history",
				zap.String("species", monsterType),
				zap.Error(err))
			loaded = nil
		}
		st.history = loaded
		st.historyLoaded = true
	}

	st.history = append(st.history, entry)
	if len(st.history) > species.HistoryLimit {
		st.history = st.history[len(st.history)-species.HistoryLimit:]
	}
	st.historyDirty = true
}

func (s *service) Priority() int { return events.PriorityLearning }
func (s *service) ID() string    { return listenerID }

// QValue exposes one table cell for tests and the debug surface.
func (s *service) QValue(monsterType string, state int, action ai.Action) float32 {
	st := s.stateFor(monsterType)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.table.At(state, action.Index())
}

// Generation exposes a species' generation counter.
func (s *service) Generation(monsterType string) int {
	st := s.stateFor(monsterType)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rec.Generation
}
