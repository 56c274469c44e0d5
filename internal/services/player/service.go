package player

//go:generate mockgen -destination=mock/mock_service.go -package=mockplayer -source=service.go

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/repositories/players"
)

// defaultFlushInterval is how often dirty profiles are written back.
const defaultFlushInterval = 30 * time.Second

// Service tracks persistent player profiles and their lifetime stats.
type Service interface {
	// GetOrCreateProfile resolves a profile by id, creating it bound to
	// the given user when it does not exist yet.
	GetOrCreateProfile(ctx context.Context, id, userID, name string) (*players.Profile, error)

	// GetProfile resolves an existing profile.
	GetProfile(ctx context.Context, id string) (*players.Profile, error)

	// AwardKill grants XP for a monster of the given challenge rating
	// and returns the amount awarded.
	AwardKill(ctx context.Context, profileID string, challengeRating float64) (int, error)

	// AwardXP grants a flat XP amount (half-XP on monster flee).
	AwardXP(ctx context.Context, profileID string, amount int) error

	// RecordDeath increments the profile's death counter.
	RecordDeath(ctx context.Context, profileID string) error

	// RecordGameWon increments the profile's completed-dungeon counter.
	RecordGameWon(ctx context.Context, profileID string) error

	// Leaderboard returns the top n profiles by XP.
	Leaderboard(ctx context.Context, n int) ([]players.LeaderboardEntry, error)

	// Flush writes every dirty profile through to the repository.
	Flush(ctx context.Context) error

	// Start runs the periodic flush loop until ctx is canceled, then
	// flushes one final time.
	Start(ctx context.Context)
}

type service struct {
	repo players.Repository
	log  *zap.Logger

	flushInterval time.Duration

	mu       sync.Mutex
	profiles map[string]*players.Profile
	dirty    map[string]bool
}

// ServiceConfig holds configuration for the service
type ServiceConfig struct {
	Repository    players.Repository // Required
	Logger        *zap.Logger
	FlushInterval time.Duration
}

// NewService creates a new player service
func NewService(cfg *ServiceConfig) Service {
	if cfg.Repository == nil {
		panic("player repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	return &service{
		repo:          cfg.Repository,
		log:           logger,
		flushInterval: flushInterval,
		profiles:      make(map[string]*players.Profile),
		dirty:         make(map[string]bool),
	}
}

func (s *service) GetOrCreateProfile(ctx context.Context, id, userID, name string) (*players.Profile, error) {
	if id == "" {
		return nil, dserr.InvalidArgument("profile id is required")
	}

	s.mu.Lock()
	if cached, ok := s.profiles[id]; ok {
		clone := *cached
		s.mu.Unlock()
		return &clone, nil
	}
	s.mu.Unlock()

	profile, err := s.repo.Get(ctx, id)
	if dserr.IsNotFound(err) {
		now := time.Now()
		profile = &players.Profile{
			ID:        id,
			UserID:    userID,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, profile); err != nil {
			return nil, dserr.Wrapf(err, "failed to create profile '%s'", id)
		}
	} else if err != nil {
		return nil, dserr.Wrapf(err, "failed to get profile '%s'", id)
	}

	s.mu.Lock()
	s.profiles[id] = profile
	s.mu.Unlock()

	clone := *profile
	return &clone, nil
}

func (s *service) GetProfile(ctx context.Context, id string) (*players.Profile, error) {
	s.mu.Lock()
	if cached, ok := s.profiles[id]; ok {
		clone := *cached
		s.mu.Unlock()
		return &clone, nil
	}
	s.mu.Unlock()

	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.profiles[id] = profile
	s.mu.Unlock()

	clone := *profile
	return &clone, nil
}

func (s *service) AwardKill(ctx context.Context, profileID string, challengeRating float64) (int, error) {
	xp := XPForCR(challengeRating)
	err := s.mutate(ctx, profileID, func(p *players.Profile) {
		p.XP += xp
		p.Kills++
	})
	if err != nil {
		return 0, err
	}
	return xp, nil
}

func (s *service) AwardXP(ctx context.Context, profileID string, amount int) error {
	if amount <= 0 {
		return nil
	}
	return s.mutate(ctx, profileID, func(p *players.Profile) {
		p.XP += amount
	})
}

func (s *service) RecordDeath(ctx context.Context, profileID string) error {
	return s.mutate(ctx, profileID, func(p *players.Profile) {
		p.Deaths++
	})
}

func (s *service) RecordGameWon(ctx context.Context, profileID string) error {
	return s.mutate(ctx, profileID, func(p *players.Profile) {
		p.GamesWon++
	})
}

func (s *service) Leaderboard(ctx context.Context, n int) ([]players.LeaderboardEntry, error) {
	// Stats are flushed before reading so the board reflects kills
	// from this flush window.
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("leaderboard flush failed", zap.Error(err))
	}
	return s.repo.TopByXP(ctx, n)
}

// mutate applies fn to the cached profile, loading it on first touch,
// and marks it dirty for the next flush.
func (s *service) mutate(ctx context.Context, profileID string, fn func(*players.Profile)) error {
	s.mu.Lock()
	profile, ok := s.profiles[profileID]
	s.mu.Unlock()

	if !ok {
		loaded, err := s.repo.Get(ctx, profileID)
		if err != nil {
			return dserr.Wrapf(err, "failed to load profile '%s'", profileID)
		}
		s.mu.Lock()
		// Someone may have raced us; prefer the cached copy.
		if cached, exists := s.profiles[profileID]; exists {
			profile = cached
		} else {
			profile = loaded
			s.profiles[profileID] = profile
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	fn(profile)
	profile.UpdatedAt = time.Now()
	s.dirty[profileID] = true
	s.mu.Unlock()
	return nil
}

func (s *service) Flush(ctx context.Context) error {
	s.mu.Lock()
	toWrite := make([]*players.Profile, 0, len(s.dirty))
	for id := range s.dirty {
		if profile, ok := s.profiles[id]; ok {
			clone := *profile
			toWrite = append(toWrite, &clone)
		}
		delete(s.dirty, id)
	}
	s.mu.Unlock()

	var lastErr error
	for _, profile := range toWrite {
		if err := s.repo.Update(ctx, profile); err != nil {
			s.log.Error("failed to flush profile",
				zap.String("profile", profile.ID),
				zap.Error(err))
			// Keep the dirty mark so the next flush retries.
			s.mu.Lock()
			s.dirty[profile.ID] = true
			s.mu.Unlock()
			lastErr = err
		}
	}
	return lastErr
}

func (s *service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Warn("periodic profile flush failed", zap.Error(err))
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.log.Warn("final profile flush failed", zap.Error(err))
			}
			cancel()
			return
		}
	}
}
