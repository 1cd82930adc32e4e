package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/database"
	"github.com/iatidata/sector-harvester/internal/datastore"
	"github.com/iatidata/sector-harvester/internal/filter"
	"github.com/iatidata/sector-harvester/internal/logger"
	"github.com/iatidata/sector-harvester/internal/messaging"
	"github.com/iatidata/sector-harvester/internal/repository"
	"github.com/iatidata/sector-harvester/internal/service"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

// run wires and executes one harvest and returns the process exit code.
// Errors are logged instead of fatal so deferred closes always run.
func run() int {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.ValidateHarvest(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 2
	}

	log.Info().
		Str("datastore_url", cfg.DatastoreURL).
		Str("output_dir", cfg.OutputDir).
		Int("sector_codes", len(config.SectorCodes())).
		Msg("Starting IATI sector harvest")

	// Interruption stops the run between requests; files already written stay on disk.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Query & Client ────────────────────────────────────────────────
	codes := config.SectorCodes()
	searchURL, err := datastore.BuildSearchURL(cfg.DatastoreURL, codes, cfg.PageSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build search URL")
		return 1
	}
	client := datastore.NewClient(searchURL, cfg.APIKey, cfg.HTTPTimeout)

	// ─── Sinks ─────────────────────────────────────────────────────────
	fileRepo, err := repository.NewActivityFileRepository(cfg.OutputDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prepare output directory")
		return 1
	}
	sinks := []service.ActivitySink{fileRepo}

	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to PostgreSQL")
			return 1
		}
		defer pool.Close()
		sinks = append(sinks, repository.NewActivityArchiveRepository(pool))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := messaging.NewActivityPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing activities to Kafka")
	}

	harvestService := service.NewHarvestService(client, filter.NewSectorFilter(codes), sinks, service.HarvestOptions{
		PageDelay:       cfg.PageDelay,
		MaxPages:        cfg.MaxPages,
		DuplicatePolicy: cfg.DuplicatePolicy,
		CleanOutput:     cfg.CleanOutput,
	}, log)

	// ─── Run Status (optional) ─────────────────────────────────────────
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, run summary will not be recorded")
		} else {
			defer rdb.Close()
			harvestService.WithRunStatus(repository.NewRunStatusRepository(rdb))
		}
	}

	// ─── Run ───────────────────────────────────────────────────────────
	summary, err := harvestService.Run(ctx)
	if cfg.MetricsPushURL != "" {
		pushMetrics(cfg.MetricsPushURL, summary.RunID, log)
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", summary.RunID).Msg("Harvest aborted")
		return 1
	}
	return 0
}

// pushMetrics sends the run's counters to a Prometheus Pushgateway.
// Failures are logged, never fatal.
func pushMetrics(url, runID string, log zerolog.Logger) {
	pusher := push.New(url, "iati_harvest")
	for _, c := range service.HarvestCollectors() {
		pusher.Collector(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pusher.PushContext(ctx); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Failed to push harvest metrics")
		return
	}
	log.Info().Str("run_id", runID).Msg("Harvest metrics pushed")
}
