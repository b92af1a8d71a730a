// FraudLens - Fraud ring detection over the entity graph.
// Copyright (c) 2025 finsec
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/finsec/fraudlens/internal/alert"
	"github.com/finsec/fraudlens/internal/api"
	"github.com/finsec/fraudlens/internal/bus"
	"github.com/finsec/fraudlens/internal/cache"
	"github.com/finsec/fraudlens/internal/detect"
	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/graph"
	"github.com/finsec/fraudlens/internal/investigate"
	"github.com/finsec/fraudlens/internal/ring"
	"github.com/finsec/fraudlens/internal/risk"
	"github.com/finsec/fraudlens/internal/rules"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FRAUDLENS_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting fraudlens",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"graph", cfg.Graph.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize graph store
	store, err := graph.New(cfg.Graph)
	if err != nil {
		slog.Error("failed to initialize graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("graph store initialized", "driver", cfg.Graph.Driver)

	// Initialize cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize screening rules
	screener, err := rules.NewEngine(cfg.Screening.FlagThreshold)
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	if err := screener.LoadRules(rules.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screener.RuleCount())

	// Initialize engines and services
	detector := detect.NewEngine(store, logger)
	scorer := risk.NewEngine(store, logger)
	rings := ring.NewService(store, busImpl, logger)
	alerts := alert.NewService(store, busImpl, logger)
	facade := investigate.New(store, cacheImpl, busImpl, detector, scorer, rings, alerts, screener, logger)
	slog.Info("investigation facade initialized")

	// Initialize server
	srv := api.NewServer(cfg.Server, store, cacheImpl, facade, rings, alerts, detector, Version)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fraudlens is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fraudlens shutdown complete")
}

// loadConfig builds the configuration from defaults plus environment
// overrides. FRAUDLENS_TIER=pro switches to postgres + redis + NATS.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("FRAUDLENS_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if port := os.Getenv("FRAUDLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("FRAUDLENS_SQLITE_PATH"); path != "" {
		cfg.Graph.SQLitePath = path
	}
	if host := os.Getenv("FRAUDLENS_POSTGRES_HOST"); host != "" {
		cfg.Graph.PostgresHost = host
	}
	if pass := os.Getenv("FRAUDLENS_POSTGRES_PASSWORD"); pass != "" {
		cfg.Graph.PostgresPassword = pass
	}
	if addr := os.Getenv("FRAUDLENS_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("FRAUDLENS_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if threshold := os.Getenv("FRAUDLENS_FLAG_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Screening.FlagThreshold = t
		}
	}

	return cfg
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FraudLens - fraud ring detection over the entity graph")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /dashboard               - Investigation dashboard summary")
	fmt.Println("    GET  /investigate/{type}/{id} - Entity dossier")
	fmt.Println("    POST /detect                  - Run full pattern detection sweep")
	fmt.Println("    GET  /accounts/high-risk      - High-risk accounts")
	fmt.Println("    GET  /transactions/flagged    - Flagged transactions")
	fmt.Println("    POST /transactions            - Ingest and screen a transaction")
	fmt.Println("    POST /reports                 - Create an investigation report")
	fmt.Println("    GET  /rings                   - Active fraud rings")
	fmt.Println("    POST /rings/{id}/status       - Update ring investigation status")
	fmt.Println("    GET  /alerts                  - Unresolved alerts")
	fmt.Println("    POST /alerts/{id}/resolve     - Resolve an alert")
	fmt.Println("    GET  /path?from=&to=          - Connection path between entities")
	fmt.Println("    GET  /infrastructure/{kind}   - Shared device/IP clusters")
	fmt.Println("    GET  /search?q=               - Entity search")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
