package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	httpadapter "github.com/couchcryptid/storm-data-clusters/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-clusters/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-clusters/internal/adapter/tzlookup"
	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/config"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/fetch"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/pipeline"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Coordinate time zone fallback (feature-flagged via TZLOOKUP_ENABLED / TZLOOKUP_API_KEY).
	var locator domain.TimeZoneLocator
	var tzStore *badger.DB
	if cfg.TZLookupEnabled {
		client := tzlookup.NewClient(cfg.TZLookupAPIKey, cfg.TZLookupTimeout, logger, metrics)
		locator = client
		tzStore, err = tzlookup.OpenStore(cfg.TZLookupCacheDir)
		if err != nil {
			logger.Warn("persistent time zone cache unavailable", "dir", cfg.TZLookupCacheDir, "error", err)
		} else {
			locator = tzlookup.NewPersistentLocator(locator, tzStore, logger, metrics)
		}
		locator = tzlookup.NewCachedLocator(locator, cfg.TZLookupCacheSize, metrics)
		metrics.TZLookupEnabled.Set(1)
		logger.Info("time zone lookup enabled", "cache_size", cfg.TZLookupCacheSize, "timeout", cfg.TZLookupTimeout)
	} else {
		logger.Info("time zone lookup disabled")
	}

	fetcher := fetch.New(fetch.Config{
		Dir:     cfg.WorkDir,
		Workers: cfg.FetchWorkers,
		Timeout: cfg.FetchTimeout,
		MaxAge:  cfg.FetchMaxAge,
	}, logger, metrics)
	archive := stormevents.NewArchive(fetcher, cfg.ArchiveURL)
	loader := stormevents.NewLoader(fetcher, archive, temporal.NewReconciler(locator, logger), logger, metrics)

	// Cluster sink (feature-flagged via KAFKA_ENABLED).
	var publisher pipeline.ClusterPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		publisher = writer
		logger.Info("cluster publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaClusterTopic)
	}

	algorithm, err := cluster.ParseAlgorithm(cfg.ClusterAlgorithm)
	if err != nil {
		logger.Error("invalid cluster algorithm", "error", err)
		os.Exit(1)
	}
	svc := pipeline.New(loader, publisher, algorithm, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.Defaults{
		TimeZone: cfg.TargetTimeZone,
		Params: cluster.Params{
			EpsKm:      cfg.ClusterEpsKm,
			EpsMin:     cfg.ClusterEpsMin,
			MinSamples: cfg.ClusterMinSamples,
		},
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Probe the archive and hold readiness.
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("service error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if tzStore != nil {
		if err := tzStore.Close(); err != nil {
			logger.Error("time zone cache close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
