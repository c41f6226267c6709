package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/playpool/billiards/internal/accounts"
	"github.com/playpool/billiards/internal/api"
	"github.com/playpool/billiards/internal/api/handlers"
	"github.com/playpool/billiards/internal/config"
	"github.com/playpool/billiards/internal/database"
	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/migrations"
	"github.com/playpool/billiards/internal/redis"
	"github.com/playpool/billiards/internal/rules"
	"github.com/playpool/billiards/internal/server"
	"github.com/playpool/billiards/internal/stats"
)

func main() {
	// Initialize configuration
	cfg := config.Load()

	if err := logger.Init(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: cfg.Environment != "production"}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log

	settings, err := config.LoadSettings(cfg.PhysicsSettingsFile)
	if err != nil {
		log.Fatalf("Failed to load physics settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	startup, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := database.Connect(startup, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if cfg.MigrateOnStart {
		log.Info("[MIGRATE] Running DB migrations on startup...")
		if err := migrations.Run(cfg.DatabaseURL, "migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(startup, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()
	publisher := redis.NewPublisher(rdb, cfg.SnapshotTTL())

	users := accounts.NewStore(db)
	tokens := accounts.NewTokens(cfg.JWTSecret, cfg.TokenTTL())
	recorder := stats.NewStore(db)

	manager := game.NewManager(game.Options{
		Settings:    settings,
		Starting:    rules.Player(settings.StartingPlayer),
		CueInterval: cfg.CueInterval(),
		ReadyWait:   cfg.ReadyWait(),
		Recorder:    recorder,
		Publisher:   publisher,
	})

	chOpts := cfg.ChannelOptions()
	chOpts.Logger = log
	games := server.New(net.JoinHostPort("", cfg.GamePort), server.Deps{
		Tokens:  tokens,
		Matches: manager,
		Channel: chOpts,
	})

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, handlers.Deps{
		Config:    cfg,
		Users:     users,
		Tokens:    tokens,
		Stats:     recorder,
		Sessions:  manager,
		Lobbies:   manager,
		Snapshots: publisher,
		Games:     games,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		manager.StartMatchmakerWorker(gctx, cfg.MatchmakerInterval)
		return nil
	})
	g.Go(func() error {
		log.Infof("Starting game server on port %s", cfg.GamePort)
		if err := games.ListenAndServe(gctx); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("Starting HTTP API on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdown); err != nil {
			log.Warnw("HTTP shutdown", "error", err)
		}
		if err := games.Shutdown(shutdown); err != nil {
			log.Warnw("game server shutdown", "error", err)
		}
		if err := manager.Shutdown(shutdown); err != nil {
			log.Warnw("session shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
