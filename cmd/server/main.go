package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/corrscope/internal/clients/polygon"
	"github.com/aristath/corrscope/internal/config"
	"github.com/aristath/corrscope/internal/database"
	"github.com/aristath/corrscope/internal/events"
	"github.com/aristath/corrscope/internal/modules/analysis"
	"github.com/aristath/corrscope/internal/modules/marketdata"
	"github.com/aristath/corrscope/internal/modules/settings"
	"github.com/aristath/corrscope/internal/ratelimit"
	"github.com/aristath/corrscope/internal/scheduler"
	"github.com/aristath/corrscope/internal/server"
	"github.com/aristath/corrscope/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting corrscope")

	// Initialize config database (settings live here)
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Settings repository, then let stored settings override the environment
	settingsRepo := settings.NewRepository(db.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply stored settings")
	}

	if cfg.PolygonAPIKey == "" {
		log.Warn().Msg("No API credential configured; correlation endpoints will return 409 until one is set")
	}

	// Event bus + manager
	bus := events.NewBus()
	eventManager := events.NewManager(bus, log)

	// Market data pipeline: client -> rate gate -> collector -> cache
	client := polygon.NewClient(cfg.PolygonBaseURL, log)

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.FetchDelay > 0 {
		limiter = ratelimit.NewFixedInterval(cfg.FetchDelay)
	}

	collector := marketdata.NewCollector(client, limiter, eventManager, log)
	cache := marketdata.NewCache(log)

	// Analysis engine
	analysisSvc := analysis.NewService(log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if cfg.PrefetchEnabled {
		prefetch := scheduler.NewPrefetchJob(cfg, cache, collector, settingsRepo, log)
		if err := sched.AddJob(cfg.PrefetchSchedule, prefetch); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.PrefetchSchedule).Msg("Failed to register prefetch job")
		}
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DB:        db,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Cache:     cache,
		Collector: collector,
		Analysis:  analysisSvc,
		Settings:  settingsRepo,
		Bus:       bus,
		Events:    eventManager,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
