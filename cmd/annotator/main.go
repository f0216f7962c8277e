// Command annotator starts the annotation worker service.
//
// The annotator consumes document events from Kafka, runs dictionary-based
// entity recognition over each document, persists the resulting annotations
// to PostgreSQL, and publishes per-document analytics events. It also serves
// an internal RPC API (Annotator.Annotate, Dictionary.Stats,
// Dictionary.Reload) used by the recognizer service.
//
// All configured terminologies are loaded before consumption begins.
//
// Usage:
//
//	go run ./cmd/annotator [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator/consumer"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator/store"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/executor"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/terminology"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting annotator service",
		"workers", cfg.Annotator.Workers,
		"terminologies", len(cfg.Terminologies),
	)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Analytics events flow to Kafka in batches alongside the stored
	// annotations.
	annotationsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Annotations)
	defer annotationsProducer.Close()
	coll := collector.NewBatchCollector(annotationsProducer, cfg.Annotator.BatchSize, 0)
	coll.Start(ctx)

	manager := terminology.NewManager("", m)
	exec := executor.New(manager, m, cfg.Annotator.Workers)
	st := store.New(db)

	svc, err := annotator.New(manager, exec, st, coll, m, cfg.Annotator.Postfilters)
	if err != nil {
		slog.Error("failed to create annotator service", "error", err)
		os.Exit(1)
	}

	// Load every configured terminology before touching the document topic.
	// A worker that consumes with no dictionaries would mark everything
	// failed.
	if err := svc.Bootstrap(ctx, cfg.Terminologies); err != nil {
		slog.Error("terminology bootstrap failed", "error", err)
		os.Exit(1)
	}

	// Internal RPC for the recognizer (synchronous annotation, dictionary
	// stats, reloads).
	rpcServer := rpc.NewServer()
	annotator.RegisterRPC(rpcServer, svc)
	go func() {
		if err := rpcServer.Serve(cfg.Annotator.RPCAddr); err != nil {
			slog.Error("rpc server error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	group := consumer.NewGroup(cfg.Kafka, cfg.Kafka.Topics.Documents, cfg.Annotator.Workers, svc, m)

	slog.Info("annotator service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.Documents,
		"group", cfg.Kafka.ConsumerGroup,
		"rpc_addr", cfg.Annotator.RPCAddr,
	)

	if err := group.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	rpcServer.Stop()
	coll.Close()

	annotated, failed := svc.Counts()
	slog.Info("annotator service stopped", "documents_annotated", annotated, "documents_failed", failed)
}
