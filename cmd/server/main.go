package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/database"
	"github.com/iatidata/sector-harvester/internal/handler"
	"github.com/iatidata/sector-harvester/internal/logger"
	"github.com/iatidata/sector-harvester/internal/repository"
	"github.com/iatidata/sector-harvester/internal/router"
	"github.com/iatidata/sector-harvester/internal/service"
	"github.com/iatidata/sector-harvester/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting harvested activity API")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Activity Store ────────────────────────────────────────────────
	// The PostgreSQL archive is preferred when configured; otherwise the
	// harvest output directory is served directly.
	var reader service.ActivityReader
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		reader = repository.NewActivityArchiveRepository(pool)
	} else {
		fileRepo, err := repository.NewActivityFileRepository(cfg.OutputDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open output directory")
		}
		log.Info().Str("output_dir", fileRepo.Dir()).Msg("Serving activities from output directory")
		reader = fileRepo
	}

	// ─── Run Status (optional) ─────────────────────────────────────────
	var runReader service.RunStatusReader
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		runReader = repository.NewRunStatusRepository(rdb)
	}

	// ─── Initialize Services & Handlers ────────────────────────────────
	handlers := &router.Handlers{
		Activity: handler.NewActivityHandler(service.NewActivityService(reader, log)),
		Run:      handler.NewRunHandler(service.NewRunService(runReader)),
	}

	r := router.SetupRouter(handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
