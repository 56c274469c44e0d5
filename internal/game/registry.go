package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/undercroft/undercroft/internal/config"
	"github.com/undercroft/undercroft/internal/dice"
	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/repositories/games"
	monsterservice "github.com/undercroft/undercroft/internal/services/monster"
	playerservice "github.com/undercroft/undercroft/internal/services/player"
	"github.com/undercroft/undercroft/internal/uuid"
)

// cleanupInterval is how often the registry sweeps for dead games.
const cleanupInterval = time.Minute

// RegistryConfig holds configuration for the registry and the games it
// creates.
type RegistryConfig struct {
	Settings config.GameConfig

	Bus      *events.Bus            // Required
	Monsters monsterservice.Service // Required
	Players  playerservice.Service
	Repo     games.Repository // Required
	Roller   dice.Roller
	IDGen    uuid.Generator
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Registry owns the set of live game instances: creation, lookup,
// restore-on-demand, auto-join placement, and garbage collection of
// inactive or finished games.
type Registry struct {
	cfg RegistryConfig
	log *zap.Logger

	mu    sync.Mutex
	games map[string]*Game
}

// NewRegistry creates a new game registry
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Bus == nil {
		panic("event bus is required")
	}
	if cfg.Monsters == nil {
		panic("monster service is required")
	}
	if cfg.Repo == nil {
		panic("games repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = uuid.NewGoogleUUIDGenerator()
	}

	return &Registry{
		cfg:   cfg,
		log:   logger,
		games: make(map[string]*Game),
	}
}

// newGame builds an uninitialized instance wired with the registry's
// collaborators.
func (r *Registry) newGame(id, name string) *Game {
	return New(Config{
		ID:       id,
		Name:     name,
		Settings: r.cfg.Settings,
		Bus:      r.cfg.Bus,
		Monsters: r.cfg.Monsters,
		Players:  r.cfg.Players,
		Repo:     r.cfg.Repo,
		Roller:   r.cfg.Roller,
		IDGen:    r.cfg.IDGen,
		Logger:   r.cfg.Logger,
		Clock:    r.cfg.Clock,
	})
}

// Create makes, initializes, and registers a fresh game.
func (r *Registry) Create(ctx context.Context, name string) (*Game, error) {
	g := r.newGame(r.cfg.IDGen.New(), name)
	if !g.Initialize(ctx, "") {
		return nil, dserr.Internal("failed to initialize game")
	}

	r.mu.Lock()
	r.games[g.ID()] = g
	r.mu.Unlock()

	r.log.Info("game created", zap.String("game", g.ID()))
	return g, nil
}

// Get returns a live game by id.
func (r *Registry) Get(gameID string) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[gameID]
	return g, ok
}

// List returns the live games.
func (r *Registry) List() []*Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	return out
}

// FindOrRestore returns the live game, or loads its save from the
// repository and brings it back.
func (r *Registry) FindOrRestore(ctx context.Context, gameID string) (*Game, error) {
	r.mu.Lock()
	if g, ok := r.games[gameID]; ok {
		r.mu.Unlock()
		return g, nil
	}
	r.mu.Unlock()

	g := r.newGame(gameID, "")
	if !g.Initialize(ctx, gameID) {
		return nil, dserr.NotFoundf("game '%s' not found", gameID)
	}

	r.mu.Lock()
	// Lost a race with another restore of the same id: keep the first.
	if existing, ok := r.games[gameID]; ok {
		r.mu.Unlock()
		g.Stop(ctx)
		return existing, nil
	}
	r.games[gameID] = g
	r.mu.Unlock()

	r.log.Info("game restored", zap.String("game", gameID))
	return g, nil
}

// AutoJoin places a player: the fullest live game that still has room
// and is not finished, creating a new one when none qualifies.
func (r *Registry) AutoJoin(ctx context.Context) (*Game, error) {
	r.mu.Lock()
	var best *Game
	for _, g := range r.games {
		if g.CompletedAt() != nil || !g.HasCapacity() {
			continue
		}
		if best == nil || g.PlayerCount() > best.PlayerCount() {
			best = g
		}
	}
	r.mu.Unlock()

	if best != nil {
		return best, nil
	}
	return r.Create(ctx, "")
}

// Start runs the cleanup sweep until ctx is canceled.
func (r *Registry) Start(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// sweep reaps games nobody can come back to: completed games past the
// grace period (save deleted too) and empty games idle past the
// inactivity timeout (save kept for restore).
func (r *Registry) sweep(ctx context.Context) {
	now := time.Now()
	if r.cfg.Clock != nil {
		now = r.cfg.Clock()
	}

	type reapable struct {
		g          *Game
		deleteSave bool
	}
	var victims []reapable

	r.mu.Lock()
	for id, g := range r.games {
		if completed := g.CompletedAt(); completed != nil &&
			now.Sub(*completed) > r.cfg.Settings.CompletedGameGracePeriod {
			victims = append(victims, reapable{g, true})
			delete(r.games, id)
			continue
		}
		if g.ConnCount() == 0 && r.cfg.Settings.GameInactiveTimeout > 0 &&
			now.Sub(g.LastActivity()) > r.cfg.Settings.GameInactiveTimeout {
			victims = append(victims, reapable{g, false})
			delete(r.games, id)
		}
	}
	r.mu.Unlock()

	for _, v := range victims {
		v.g.Stop(ctx)
		if v.deleteSave {
			if err := r.cfg.Repo.Delete(ctx, v.g.ID()); err != nil {
				r.log.Warn("failed to delete finished game save",
					zap.String("game", v.g.ID()),
					zap.Error(err))
			}
		}
		r.log.Info("game reaped",
			zap.String("game", v.g.ID()),
			zap.Bool("save_deleted", v.deleteSave))
	}
}

// StopAll shuts every live game down concurrently, saving each.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		all = append(all, g)
	}
	r.games = make(map[string]*Game)
	r.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, g := range all {
		g := g
		eg.Go(func() error {
			g.Stop(egCtx)
			return nil
		})
	}
	return eg.Wait()
}
