package players

import (
	"context"
	"errors"
	"sort"
	"sync"

	dserr "github.com/undercroft/undercroft/internal/errors"
)

type inMemoryRepo struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemory creates a map-backed profile repository for tests.
func NewInMemory() Repository {
	return &inMemoryRepo{profiles: make(map[string]*Profile)}
}

func (r *inMemoryRepo) Create(_ context.Context, profile *Profile) error {
	return r.set(profile)
}

func (r *inMemoryRepo) Update(_ context.Context, profile *Profile) error {
	return r.set(profile)
}

func (r *inMemoryRepo) set(profile *Profile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	if profile.ID == "" {
		return dserr.InvalidArgument("profile id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *profile
	r.profiles[profile.ID] = &clone
	return nil
}

func (r *inMemoryRepo) Get(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[id]
	if !ok {
		return nil, dserr.NotFoundf("profile '%s' not found", id)
	}
	clone := *profile
	return &clone, nil
}

func (r *inMemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
	return nil
}

func (r *inMemoryRepo) TopByXP(_ context.Context, n int) ([]LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]LeaderboardEntry, 0, len(r.profiles))
	for _, p := range r.profiles {
		entries = append(entries, LeaderboardEntry{ProfileID: p.ID, Name: p.Name, XP: p.XP})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].ProfileID < entries[j].ProfileID
	})

	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}
