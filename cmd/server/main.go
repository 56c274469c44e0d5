package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/undercroft/undercroft/internal/auth"
	"github.com/undercroft/undercroft/internal/config"
	"github.com/undercroft/undercroft/internal/events"
	"github.com/undercroft/undercroft/internal/game"
	gamesrepo "github.com/undercroft/undercroft/internal/repositories/games"
	playersrepo "github.com/undercroft/undercroft/internal/repositories/players"
	"github.com/undercroft/undercroft/internal/repositories/species"
	monsterservice "github.com/undercroft/undercroft/internal/services/monster"
	playerservice "github.com/undercroft/undercroft/internal/services/player"
	"github.com/undercroft/undercroft/internal/ws"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs the game saves, player profiles, and (by default)
	// the species store.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	cancel()
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	var speciesRepo species.Repository
	switch cfg.AI.SpeciesBackend {
	case "file":
		speciesRepo, err = species.NewFile(cfg.AI.DataDir)
		if err != nil {
			logger.Fatal("failed to open species data dir", zap.Error(err))
		}
	default:
		speciesRepo = species.NewRedis(redisClient)
	}
	gamesRepo := gamesrepo.NewRedis(redisClient)
	playersRepo := playersrepo.NewRedis(redisClient)

	bus := events.NewBus(logger.Named("events"))

	monsters := monsterservice.NewService(&monsterservice.ServiceConfig{
		Repository:       speciesRepo,
		Bus:              bus,
		Logger:           logger.Named("monsters"),
		MaxGenerationCap: cfg.AI.MaxGenerationCap,
		InheritanceRatio: cfg.AI.GenerationInheritanceRatio,
	})
	if err := monsters.Load(ctx); err != nil {
		logger.Fatal("failed to load species store", zap.Error(err))
	}

	profiles := playerservice.NewService(&playerservice.ServiceConfig{
		Repository: playersRepo,
		Logger:     logger.Named("players"),
	})

	registry := game.NewRegistry(game.RegistryConfig{
		Settings: cfg.Game,
		Bus:      bus,
		Monsters: monsters,
		Players:  profiles,
		Repo:     gamesRepo,
		Logger:   logger.Named("game"),
	})

	go monsters.Start(ctx)
	go profiles.Start(ctx)
	go registry.Start(ctx)

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Registry: registry,
		Profiles: profiles,
		Verifier: auth.NewStaticVerifier(cfg.Server.AuthTokens),
		Logger:   logger.Named("ws"),
	})

	router := mux.NewRouter()
	router.Handle("/ws", wsHandler)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		n := 10
		if raw := r.URL.Query().Get("n"); raw != "" {
			if parsed, perr := strconv.Atoi(raw); perr == nil && parsed > 0 && parsed <= 100 {
				n = parsed
			}
		}
		entries, lerr := profiles.Leaderboard(r.Context(), n)
		if lerr != nil {
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if serr := server.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(serr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := registry.StopAll(shutdownCtx); err != nil {
		logger.Warn("game shutdown failed", zap.Error(err))
	}
	if err := monsters.Persist(shutdownCtx); err != nil {
		logger.Warn("species persist failed", zap.Error(err))
	}
	if err := profiles.Flush(shutdownCtx); err != nil {
		logger.Warn("profile flush failed", zap.Error(err))
	}
	bus.Close()
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}
	logger.Info("goodbye")
}

// newLogger builds the root logger: JSON in production, console in
// development, level from config.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	return zc.Build()
}
