package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/config"
	"github.com/undercroft/undercroft/internal/dice"
	"github.com/undercroft/undercroft/internal/domain/combat"
	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/repositories/games"
	monsterservice "github.com/undercroft/undercroft/internal/services/monster"
	playerservice "github.com/undercroft/undercroft/internal/services/player"
	"github.com/undercroft/undercroft/internal/uuid"
)

// playerColors is cycled through as players join.
var playerColors = []string{
	"#42a5f5", "#ef5350", "#66bb6a", "#ffca28",
	"#ab47bc", "#26c6da", "#ff7043", "#8d6e63",
}

// Config holds configuration for a game instance.
type Config struct {
	ID   string
	Name string

	Settings config.GameConfig

	Bus      *events.Bus            // Required
	Monsters monsterservice.Service // Required
	Players  playerservice.Service  // Optional; XP and stats become no-ops
	Repo     games.Repository       // Required
	Roller   dice.Roller
	IDGen    uuid.Generator
	Logger   *zap.Logger

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// Game is one dungeon session. A single mutex guards all mutable
// state; it is never held across a network send.
type Game struct {
	id        string
	name      string
	createdAt time.Time

	settings config.GameConfig
	bus      *events.Bus
	monsters monsterservice.Service
	stats    playerservice.Service
	repo     games.Repository
	roller   dice.Roller
	idGen    uuid.Generator
	log      *zap.Logger
	clock    func() time.Time

	mu sync.Mutex

	width, height  int
	tiles          dungeon.Grid
	rooms          []*dungeon.Room
	spawnX, spawnY int
	mapSeed        int64

	players       map[string]*entities.Player
	monsterByID   map[string]*entities.Monster
	tokenToPlayer map[string]string
	fights        map[string]*combat.Fight
	conns         map[string]Conn

	tick         int64
	lastActivity time.Time
	completedAt  *time.Time
	dirty        bool
	initialized  bool

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// New creates a game instance. Initialize must be called before any
// player joins.
func New(cfg Config) *Game {
	if cfg.Bus == nil {
		panic("event bus is required")
	}
	if cfg.Monsters == nil {
		panic("monster service is required")
	}
	if cfg.Repo == nil {
		panic("games repository is required")
	}

	roller := cfg.Roller
	if roller == nil {
		roller = dice.NewRandomRoller()
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = uuid.NewGoogleUUIDGenerator()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	id := cfg.ID
	if id == "" {
		id = idGen.New()
	}
	name := cfg.Name
	if name == "" {
		name = "The Undercroft"
	}

	g := &Game{
		id:            id,
		name:          name,
		createdAt:     clock(),
		settings:      cfg.Settings,
		bus:           cfg.Bus,
		monsters:      cfg.Monsters,
		stats:         cfg.Players,
		repo:          cfg.Repo,
		roller:        roller,
		idGen:         idGen,
		log:           logger.With(zap.String("game", id)),
		clock:         clock,
		players:       make(map[string]*entities.Player),
		monsterByID:   make(map[string]*entities.Monster),
		tokenToPlayer: make(map[string]string),
		fights:        make(map[string]*combat.Fight),
		conns:         make(map[string]Conn),
	}
	g.lastActivity = g.createdAt
	return g
}

// ID returns the game's identifier.
func (g *Game) ID() string { return g.id }

// Name returns the game's display name.
func (g *Game) Name() string { return g.name }

func (g *Game) now() time.Time { return g.clock() }

// Initialize generates a fresh dungeon, or restores the save named by
// loadSaveID when non-empty, then starts the tick and autosave loops.
// Returns false when the restore fails; calling it twice is a no-op.
func (g *Game) Initialize(ctx context.Context, loadSaveID string) bool {
	g.mu.Lock()
	if g.initialized {
		g.mu.Unlock()
		return true
	}

	if loadSaveID != "" {
		state, err := g.repo.Load(ctx, loadSaveID)
		if err != nil {
			g.mu.Unlock()
			g.log.Error("game restore failed",
				zap.String("save", loadSaveID),
				zap.Error(err))
			return false
		}
		g.applyStateLocked(state)
	} else {
		g.generateMapLocked(0)
	}

	g.initialized = true
	g.lastActivity = g.now()
	roomCount := len(g.rooms)
	seed := g.mapSeed
	g.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done.Add(2)
	go g.tickLoop(loopCtx)
	go g.saveLoop(loopCtx)

	g.log.Info("game initialized",
		zap.Bool("restored", loadSaveID != ""),
		zap.Int("rooms", roomCount),
		zap.Int64("seed", seed))
	return true
}

// Stop cancels the tick and autosave loops, waits for them, and writes
// a final save.
func (g *Game) Stop(ctx context.Context) {
	if g.cancel != nil {
		g.cancel()
		g.done.Wait()
	}
	if err := g.save(ctx, true); err != nil {
		g.log.Error("final save failed", zap.Error(err))
	}
}

// generateMapLocked carves a new dungeon and resets map-derived state.
// Caller holds g.mu.
func (g *Game) generateMapLocked(seed int64) {
	gen := dungeon.Generate(dungeon.GenerateConfig{
		Width:     g.settings.MapWidth,
		Height:    g.settings.MapHeight,
		RoomCount: g.settings.RoomCount,
		Seed:      seed,
	})

	g.width = gen.Width
	g.height = gen.Height
	g.tiles = gen.Tiles
	g.rooms = gen.Rooms
	g.spawnX = gen.SpawnX
	g.spawnY = gen.SpawnY
	g.mapSeed = gen.Seed
	g.dirty = true
}

// applyStateLocked loads a save document into the instance. Caller
// holds g.mu.
func (g *Game) applyStateLocked(state *games.State) {
	g.id = state.GameID
	if state.Name != "" {
		g.name = state.Name
	}
	g.createdAt = state.CreatedAt
	g.completedAt = state.CompletedAt
	g.width = state.Map.Width
	g.height = state.Map.Height
	g.tiles = state.Map.Tiles
	g.spawnX = state.Map.SpawnX
	g.spawnY = state.Map.SpawnY
	g.mapSeed = state.Map.Seed
	g.rooms = state.Rooms

	g.players = state.Players
	if g.players == nil {
		g.players = make(map[string]*entities.Player)
	}
	g.monsterByID = state.Monsters
	if g.monsterByID == nil {
		g.monsterByID = make(map[string]*entities.Monster)
	}
	g.tokenToPlayer = state.TokenToPlayer
	if g.tokenToPlayer == nil {
		g.tokenToPlayer = make(map[string]string)
	}
}

// buildStateLocked snapshots the instance into a save document. Caller
// holds g.mu.
func (g *Game) buildStateLocked() *games.State {
	return &games.State{
		GameID:       g.id,
		Name:         g.name,
		CreatedAt:    g.createdAt,
		LastActivity: g.lastActivity,
		CompletedAt:  g.completedAt,
		Map: games.MapState{
			Width:  g.width,
			Height: g.height,
			Tiles:  g.tiles,
			SpawnX: g.spawnX,
			SpawnY: g.spawnY,
			Seed:   g.mapSeed,
		},
		Rooms:         g.rooms,
		Players:       g.players,
		Monsters:      g.monsterByID,
		TokenToPlayer: g.tokenToPlayer,
	}
}

// save persists the game when dirty (or unconditionally when force). A
// failed save keeps the dirty flag so the next pass retries.
func (g *Game) save(ctx context.Context, force bool) error {
	g.mu.Lock()
	if !g.dirty && !force {
		g.mu.Unlock()
		return nil
	}
	state := g.buildStateLocked()
	g.dirty = false
	g.mu.Unlock()

	if err := g.repo.Save(ctx, state); err != nil {
		g.mu.Lock()
		g.dirty = true
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *Game) tickLoop(ctx context.Context) {
	defer g.done.Done()

	ticker := time.NewTicker(g.settings.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.runTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Game) saveLoop(ctx context.Context) {
	defer g.done.Done()

	interval := g.settings.AutosaveInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := g.save(ctx, false); err != nil {
				g.log.Error("autosave failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// runTick is one tick loop iteration: recovers panics so a bad tick
// never kills the loop.
func (g *Game) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("tick panic recovered", zap.Any("panic", r))
		}
	}()
	g.Tick(ctx)
}

// Tick advances the game by one step: monster AI and movement, monster
// combat turns, and turn timeouts, followed by a state broadcast.
// Exported so tests can drive the clock directly.
func (g *Game) Tick(ctx context.Context) {
	out := &outbox{}

	g.mu.Lock()
	g.tick++
	moved := g.updateMonstersLocked(out)
	acted := g.processMonsterCombatTurnsLocked(ctx, out)
	timedOut := g.processTurnTimeoutsLocked(ctx, out)
	if moved || acted || timedOut {
		g.dirty = true
	}
	if len(g.conns) > 0 {
		g.broadcastStateLocked(out)
	}
	g.mu.Unlock()

	g.flush(out, true)
}

// touchLocked marks activity and the save-needed flag. Caller holds
// g.mu.
func (g *Game) touchLocked() {
	g.lastActivity = g.now()
	g.dirty = true
}

// sendLocked queues a message for one player. Caller holds g.mu.
func (g *Game) sendLocked(out *outbox, playerID string, payload interface{}) {
	out.add(playerID, g.conns[playerID], payload)
}

// broadcastLocked queues a message for every connected player. Caller
// holds g.mu.
func (g *Game) broadcastLocked(out *outbox, payload interface{}) {
	for playerID, conn := range g.conns {
		out.add(playerID, conn, payload)
	}
}

// broadcastStateLocked queues a per-player state_update, each with
// that player's viewport. Caller holds g.mu.
func (g *Game) broadcastStateLocked(out *outbox) {
	now := g.now()
	for playerID, conn := range g.conns {
		out.add(playerID, conn, g.stateUpdateLocked(playerID, now))
	}
}

func (g *Game) stateUpdateLocked(playerID string, now time.Time) stateUpdateMessage {
	msg := stateUpdateMessage{
		Type:     MsgStateUpdate,
		Tick:     g.tick,
		Viewport: g.viewportLocked(playerID),
	}
	if f := g.fightForPlayerLocked(playerID); f != nil {
		view := g.fightViewLocked(f, now)
		msg.Fight = &view
	}
	return msg
}

// flush sends queued deliveries outside the lock. A failed send drops
// that player's connection; dropDead guards against recursing forever
// when the disconnect broadcast itself fails.
func (g *Game) flush(out *outbox, dropDead bool) {
	var failed []string
	for _, d := range out.deliveries {
		if err := d.conn.WriteJSON(d.payload); err != nil {
			g.log.Debug("send failed, dropping connection",
				zap.String("player", d.playerID),
				zap.Error(err))
			failed = append(failed, d.playerID)
		}
	}
	if !dropDead {
		return
	}
	for _, playerID := range failed {
		g.HandleDisconnect(context.Background(), playerID)
	}
}

// fightForPlayerLocked finds the active fight a player is in, or nil.
// Caller holds g.mu.
func (g *Game) fightForPlayerLocked(playerID string) *combat.Fight {
	for _, f := range g.fights {
		if f.Status == combat.StatusActive && f.HasPlayer(playerID) {
			return f
		}
	}
	return nil
}

// fightForMonsterLocked finds the active fight a monster is in, or
// nil. Caller holds g.mu.
func (g *Game) fightForMonsterLocked(monsterID string) *combat.Fight {
	for _, f := range g.fights {
		if f.Status == combat.StatusActive && f.MonsterID == monsterID {
			return f
		}
	}
	return nil
}

func (g *Game) roomByIDLocked(roomID int) *dungeon.Room {
	for _, r := range g.rooms {
		if r.ID == roomID {
			return r
		}
	}
	return nil
}

// tokenForPlayerLocked reverse-maps a player id to its profile token.
// Caller holds g.mu.
func (g *Game) tokenForPlayerLocked(playerID string) string {
	for token, id := range g.tokenToPlayer {
		if id == playerID {
			return token
		}
	}
	return ""
}

// occupiedLocked reports whether any entity other than excludeID
// stands on (x,y). Caller holds g.mu.
func (g *Game) occupiedLocked(x, y int, excludeID string) bool {
	for _, p := range g.players {
		if p.ID != excludeID && p.X == x && p.Y == y {
			return true
		}
	}
	for _, m := range g.monsterByID {
		if m.ID != excludeID && m.X == x && m.Y == y {
			return true
		}
	}
	return false
}

// LastActivity reports when the game last saw a mutation.
func (g *Game) LastActivity() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActivity
}

// CompletedAt reports when completion latched, or nil.
func (g *Game) CompletedAt() *time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completedAt
}

// PlayerCount is the number of players (connected or not) in the game.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// ConnCount is the number of live connections.
func (g *Game) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// HasCapacity reports whether another player may join.
func (g *Game) HasCapacity() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings.MaxPlayersPerGame <= 0 || len(g.players) < g.settings.MaxPlayersPerGame
}

// isCompletedLocked: every room visited, no monsters left, and the map
// actually has rooms. Caller holds g.mu.
func (g *Game) isCompletedLocked() bool {
	if len(g.rooms) == 0 || len(g.monsterByID) > 0 {
		return false
	}
	for _, r := range g.rooms {
		if !r.Visited {
			return false
		}
	}
	return true
}

// checkCompletionLocked latches completed_at on first observation,
// rewards the party, and regenerates the dungeon so the session can
// keep going until the registry reaps it. Caller holds g.mu.
func (g *Game) checkCompletionLocked(ctx context.Context, out *outbox) {
	if g.completedAt != nil || !g.isCompletedLocked() {
		return
	}

	now := g.now()
	g.completedAt = &now
	g.touchLocked()

	g.bus.EmitAsync(&events.GameCompletedEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeGameCompleted, GameID: g.id, Timestamp: now},
	})

	if g.stats != nil {
		for playerID := range g.players {
			if token := g.tokenForPlayerLocked(playerID); token != "" {
				if err := g.stats.RecordGameWon(ctx, token); err != nil {
					g.log.Warn("failed to record game win",
						zap.String("player", playerID),
						zap.Error(err))
				}
			}
		}
	}

	g.log.Info("dungeon cleared, regenerating map")
	g.broadcastLocked(out, mapRegeneratingMessage{Type: MsgMapRegenerating})

	g.fights = make(map[string]*combat.Fight)
	g.monsterByID = make(map[string]*entities.Monster)
	g.generateMapLocked(0)
	for _, p := range g.players {
		p.Respawn(g.spawnX, g.spawnY)
	}
	for _, p := range g.players {
		g.enterRoomLocked(ctx, out, p)
	}
}
