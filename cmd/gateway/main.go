// Command gateway starts the API gateway service.
//
// The gateway is the single entry point for external clients. It authenticates
// requests via API keys (SHA-256 validated against PostgreSQL), enforces
// per-key scopes and rate limits, and proxies requests to the ingestion,
// recognizer, and analytics services through per-upstream circuit breakers.
// It also exposes admin endpoints for API key management and a direct
// document-retrieval endpoint backed by PostgreSQL.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
)

// main initialises PostgreSQL, the API-key validator, the rate limiter, the
// gateway handler + router middleware chain, and starts the HTTP server.
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
	slog.Info("starting gateway service",
		"port", cfg.Gateway.Port,
		"ingestion_url", cfg.Gateway.IngestionURL,
		"recognizer_url", cfg.Gateway.RecognizerURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
	)

	// PostgreSQL — shared with auth for API key validation + document retrieval.
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	m := metrics.New()

	// Auth + rate limiting.
	validator := apikey.NewValidator(db)
	limiter := ratelimit.New(time.Minute)

	// Gateway handler → router with full middleware chain.
	h := gwhandler.New(gwhandler.Config{
		IngestionURL:  cfg.Gateway.IngestionURL,
		RecognizerURL: cfg.Gateway.RecognizerURL,
		AnalyticsURL:  cfg.Gateway.AnalyticsURL,
	}, db, validator, m)

	chain := router.New(h, validator, limiter, cfg.Gateway.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
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

	slog.Info("gateway service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway service stopped")
}
