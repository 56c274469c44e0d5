package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the server
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Game   GameConfig
	AI     AIConfig
	Log    LogConfig
}

// ServerConfig holds HTTP/WebSocket listener configuration
type ServerConfig struct {
	Addr string
	// AuthTokens maps access tokens to user ids for the built-in
	// static verifier ("tok1:user1,tok2:user2"). Empty means the
	// deployment wires its own verifier.
	AuthTokens string
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GameConfig holds per-game runtime knobs
type GameConfig struct {
	TickInterval             time.Duration
	AutosaveInterval         time.Duration
	TurnDuration             time.Duration
	ViewportWidth            int
	ViewportHeight           int
	MaxPlayersPerGame        int
	GameInactiveTimeout      time.Duration
	CompletedGameGracePeriod time.Duration
	MapWidth                 int
	MapHeight                int
	RoomCount                int
}

// AIConfig holds monster intelligence knobs
type AIConfig struct {
	// SpeciesBackend selects the species store implementation:
	// "redis" or "file".
	SpeciesBackend             string
	DataDir                    string
	MaxGenerationCap           int
	GenerationInheritanceRatio float64
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
	Env   string // "production" or "development"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:       getEnvOrDefault("SERVER_ADDR", ":8080"),
			AuthTokens: os.Getenv("AUTH_TOKENS"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
		},
		Game: GameConfig{
			TickInterval:             getEnvAsDurationOrDefault("GAME_TICK_INTERVAL", 500*time.Millisecond),
			AutosaveInterval:         getEnvAsDurationOrDefault("GAME_AUTOSAVE_INTERVAL", 5*time.Minute),
			TurnDuration:             getEnvAsDurationOrDefault("GAME_TURN_DURATION", 30*time.Second),
			ViewportWidth:            getEnvAsIntOrDefault("GAME_VIEWPORT_WIDTH", 60),
			ViewportHeight:           getEnvAsIntOrDefault("GAME_VIEWPORT_HEIGHT", 30),
			MaxPlayersPerGame:        getEnvAsIntOrDefault("GAME_MAX_PLAYERS", 8),
			GameInactiveTimeout:      getEnvAsDurationOrDefault("GAME_INACTIVE_TIMEOUT", time.Hour),
			CompletedGameGracePeriod: getEnvAsDurationOrDefault("GAME_COMPLETED_GRACE_PERIOD", 10*time.Minute),
			MapWidth:                 getEnvAsIntOrDefault("GAME_MAP_WIDTH", 80),
			MapHeight:                getEnvAsIntOrDefault("GAME_MAP_HEIGHT", 50),
			RoomCount:                getEnvAsIntOrDefault("GAME_ROOM_COUNT", 8),
		},
		AI: AIConfig{
			SpeciesBackend:             getEnvOrDefault("AI_SPECIES_BACKEND", "redis"),
			DataDir:                    getEnvOrDefault("AI_DATA_DIR", "./data"),
			MaxGenerationCap:           getEnvAsIntOrDefault("AI_MAX_GENERATION", 100),
			GenerationInheritanceRatio: getEnvAsFloatOrDefault("AI_GENERATION_INHERITANCE", 0.85),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			Env:   getEnvOrDefault("APP_ENV", "development"),
		},
	}

	if cfg.Game.TickInterval <= 0 {
		return nil, fmt.Errorf("GAME_TICK_INTERVAL must be positive")
	}
	if cfg.Game.ViewportWidth <= 0 || cfg.Game.ViewportHeight <= 0 {
		return nil, fmt.Errorf("viewport dimensions must be positive")
	}
	switch cfg.AI.SpeciesBackend {
	case "redis", "file":
	default:
		return nil, fmt.Errorf("AI_SPECIES_BACKEND must be \"redis\" or \"file\", got %q", cfg.AI.SpeciesBackend)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
