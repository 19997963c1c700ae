// Command mcp-server exposes the financial tool registry over MCP stdio.
// Stdout carries the protocol, so all logging goes to stderr.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/config"
	"github.com/stratalabs/finsight/internal/mcp"
	"github.com/stratalabs/finsight/internal/store"
	"github.com/stratalabs/finsight/internal/tools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	callerID := flag.Int64("caller-id", 0, "caller id the session runs as")
	callerName := flag.String("caller-name", "", "display name for the caller")
	rolesFlag := flag.String("roles", "", "comma-separated roles for the session")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	rolesStr := *rolesFlag
	if rolesStr == "" {
		rolesStr = os.Getenv("FINSIGHT_MCP_ROLES")
	}
	if rolesStr == "" {
		log.Fatal().Msg("No roles given; set -roles or FINSIGHT_MCP_ROLES")
	}
	roles, err := auth.ParseRoles(rolesStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid roles")
	}

	identity := auth.Identity{
		CallerID:    *callerID,
		DisplayName: *callerName,
		Roles:       roles,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()

	matrix := auth.NewMatrix()
	if err := matrix.Validate(auth.AllRoles); err != nil {
		log.Fatal().Err(err).Msg("Permission matrix failed validation")
	}

	st := store.NewWithPool(pool)
	registry, err := tools.NewRegistry(auth.NewGuard(matrix),
		tools.NewQueryTransactionsTool(st),
		tools.NewAnalyzeRiskTool(st),
		tools.NewMarketSummaryTool(st),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build tool registry")
	}

	server := mcp.NewServer(registry, cfg.App.Name, version)
	log.Info().
		Int64("caller_id", identity.CallerID).
		Str("roles", rolesStr).
		Msg("MCP server ready on stdio")

	if err := server.ServeStdio(ctx, os.Stdin, os.Stdout, identity); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
