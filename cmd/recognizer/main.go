// Command recognizer starts the synchronous entity recognition service.
//
// It serves POST /api/v1/annotate for on-demand annotation of raw text,
// manages the terminology lifecycle over HTTP, reads stored annotations
// from PostgreSQL, and caches rendered responses in Redis. Terminology
// mutations invalidate the cache locally and broadcast an invalidation
// event so replica caches follow.
//
// Usage:
//
//	go run ./cmd/recognizer [-config configs/development.yaml]
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
	annstore "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator/store"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/cache"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/executor"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/handler"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/terminology"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
)

// annotatorPoolSize is the number of pooled RPC connections to the annotator.
const annotatorPoolSize = 4

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recognizer service",
		"port", cfg.Server.Port,
		"terminologies", len(cfg.Terminologies),
		"default_terminology", cfg.Recognizer.DefaultTerminology,
	)

	m := metrics.New()

	manager := terminology.NewManager(cfg.Recognizer.DefaultTerminology, m)
	for _, tc := range cfg.Terminologies {
		if err := manager.Add(tc); err != nil {
			slog.Error("failed to register terminology", "name", tc.Name, "error", err)
			os.Exit(1)
		}
	}
	exec := executor.New(manager, m, cfg.Recognizer.MaxConcurrent)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	var annotationCache *cache.AnnotationCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, annotation caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		annotationCache = cache.New(redisClient, cfg.Redis)
		slog.Info("annotation cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	// Cache invalidations broadcast to every recognizer replica.
	invalidationsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidationsProducer.Close()
	if annotationCache != nil {
		invalidationsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate,
			cache.HandleInvalidation(annotationCache))
		go func() {
			if err := invalidationsConsumer.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
	}

	annotatorPool := rpc.NewPool(cfg.Recognizer.AnnotatorAddr, annotatorPoolSize)

	h := handler.New(handler.Deps{
		Executor:      exec,
		Manager:       manager,
		Cache:         annotationCache,
		Store:         annstore.New(db),
		Annotator:     annotatorPool,
		Invalidations: invalidationsProducer,
		Collector:     collector,
		Metrics:       m,
	}, cfg.Recognizer)

	checker := health.NewChecker()
	checker.Register("terminologies", func(ctx context.Context) health.ComponentHealth {
		ready := 0
		for _, info := range manager.List() {
			if info.Status == terminology.StatusReady {
				ready++
			}
		}
		if ready == 0 && len(cfg.Terminologies) > 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no terminologies ready"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d ready", ready)}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/annotate", h.Annotate)
	mux.HandleFunc("GET /api/v1/documents/{id}/annotations", h.DocumentAnnotations)
	mux.HandleFunc("GET /api/v1/terminologies", h.ListTerminologies)
	mux.HandleFunc("POST /api/v1/terminologies", h.AddTerminology)
	mux.HandleFunc("GET /api/v1/terminologies/{name}", h.GetTerminology)
	mux.HandleFunc("DELETE /api/v1/terminologies/{name}", h.RemoveTerminology)
	mux.HandleFunc("POST /api/v1/terminologies/{name}/reload", h.ReloadTerminology)
	mux.HandleFunc("GET /api/v1/annotator/stats", h.AnnotatorStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

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

	slog.Info("recognizer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	annotatorPool.Close()
	slog.Info("recognizer service stopped")
}
