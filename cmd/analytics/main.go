// Command analytics starts the standalone analytics aggregation service.
//
// It consumes annotation events from Kafka (per-request events from the
// recognizer, per-document events from the annotator), aggregates them in
// memory (request totals, latency percentiles, cache hit rate, entity
// counts by type and terminology, top concepts), persists periodic
// snapshots to PostgreSQL, and exposes an HTTP API at GET /api/v1/analytics
// for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics"
	aggstore "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
)

// main boots the analytics service: it restores the latest snapshot from
// PostgreSQL, attaches Kafka consumers for both event topics, starts the
// in-memory aggregator and periodic snapshotting, and serves the HTTP API.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The event handler needs the aggregator, and the aggregator runs the
	// consumers, so wiring happens in two steps.
	agg := analytics.NewAggregator(cfg.Analytics.TopK)
	handleEvent := analytics.HandleEvent(agg)
	agg.AddConsumers(
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, handleEvent),
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Annotations, handleEvent),
	)

	snapshots := aggstore.NewStore(db)
	if err := snapshots.RestoreLatest(ctx, agg); err != nil {
		slog.Warn("failed to restore analytics snapshot", "error", err)
	}
	snapshots.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started",
		"topics", []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.Annotations},
		"snapshot_interval", cfg.Analytics.SnapshotInterval,
	)

	// HTTP API.
	analyticsHandler := analytics.NewHandler(agg, snapshots)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumers active"}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health", analyticsHandler.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
