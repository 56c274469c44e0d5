package players

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=mockplayers -source=interface.go

// Profile is one persistent player identity, selected by the
// player_token cookie and bound to the authenticated user.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	XP        int       `json:"xp"`
	Kills     int       `json:"kills"`
	Deaths    int       `json:"deaths"`
	GamesWon  int       `json:"games_won"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	ProfileID string `json:"profile_id"`
	Name      string `json:"name"`
	XP        int    `json:"xp"`
}

// Repository persists profiles and maintains the XP leaderboard.
type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	Get(ctx context.Context, id string) (*Profile, error)
	Update(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, id string) error

	// TopByXP returns up to n leaderboard entries, highest XP first.
	TopByXP(ctx context.Context, n int) ([]LeaderboardEntry, error)
}
