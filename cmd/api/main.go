package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stratalabs/finsight/internal/api"
	"github.com/stratalabs/finsight/internal/audit"
	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/config"
	"github.com/stratalabs/finsight/internal/llm"
	"github.com/stratalabs/finsight/internal/mcp"
	"github.com/stratalabs/finsight/internal/metrics"
	"github.com/stratalabs/finsight/internal/reason"
	"github.com/stratalabs/finsight/internal/store"
	"github.com/stratalabs/finsight/internal/tools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Str("version", version).Msg("Starting finsight API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Database
	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Database unreachable at startup, continuing")
	}

	// Authorization
	matrix := auth.NewMatrix()
	if err := matrix.Validate(auth.AllRoles); err != nil {
		log.Fatal().Err(err).Msg("Permission matrix failed validation")
	}
	guard := auth.NewGuard(matrix)

	// Tool registry
	st := store.NewWithPool(pool)
	registry, err := tools.NewRegistry(guard,
		tools.NewQueryTransactionsTool(st),
		tools.NewAnalyzeRiskTool(st),
		tools.NewMarketSummaryTool(st),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build tool registry")
	}

	// Reasoning strategy
	var strategy reason.Strategy
	switch cfg.Reasoning.Strategy {
	case "directed":
		client := llm.NewClient(llm.ClientConfig{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.GetTimeout(),
		})
		strategy = reason.NewDirectedStrategy(llm.NewBreakerClient(client), registry)
	default:
		strategy = reason.NewPatternStrategy()
	}
	log.Info().Str("strategy", strategy.Name()).Msg("Reasoning strategy selected")

	orchestrator := reason.NewOrchestrator(registry, strategy, cfg.Reasoning.MaxToolSteps)
	auditLogger := audit.NewLogger(pool, cfg.Audit.Enabled)

	// Metrics
	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}

	server := api.NewServer(api.Config{
		Host:            cfg.API.Host,
		Port:            cfg.API.Port,
		AllowedOrigins:  cfg.API.AllowedOrigins,
		RateLimitPerSec: cfg.API.RateLimitPerSec,
		RateLimitBurst:  cfg.API.RateLimitBurst,
		Registry:        registry,
		Orchestrator:    orchestrator,
		MCP:             mcp.NewServer(registry, cfg.App.Name, version),
		Audit:           auditLogger,
		DB:              pool,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case <-gctx.Done():
			return gctx.Err()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop server gracefully")
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to stop metrics server")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Server exited with error")
	}

	log.Info().Msg("Server stopped")
}
