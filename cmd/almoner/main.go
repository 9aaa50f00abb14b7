package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/codec"
	"github.com/ohana-garden/almoner/internal/config"
	"github.com/ohana-garden/almoner/internal/graph"
	"github.com/ohana-garden/almoner/internal/resolution"
	"github.com/ohana-garden/almoner/internal/resolver"
	"github.com/ohana-garden/almoner/internal/schema"
	"github.com/ohana-garden/almoner/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "almoner",
		Short: "Almoner: graph persistence and entity resolution for the giving graph",
		Long:  "Almoner persists funders, organizations, people and funding opportunities as a property graph, collapsing semantically identical entities from different sources onto single nodes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		healthCmd(),
		schemaCmd(),
		resolveCmd(),
		getCmd(),
		extractCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newGraph(ctx context.Context, logger *slog.Logger) (*graph.Neo4jGraph, error) {
	return graph.NewNeo4jGraph(ctx, graph.Config{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	}, logger)
}

func newStore(q graph.Querier, reg *schema.Registry, logger *slog.Logger) store.Store {
	return store.NewGraphStore(q, reg, codec.New(logger), logger)
}

func newResolver(logger *slog.Logger) *resolver.Client {
	if cfg.Resolver.BaseURL == "" {
		return nil
	}
	return resolver.NewClient(
		cfg.Resolver.BaseURL,
		cfg.Resolver.Timeout(),
		cfg.Resolver.ProbeInterval(),
		logger,
	)
}

func newEngine(st store.Store, res *resolver.Client, logger *slog.Logger) *resolution.Engine {
	if res == nil {
		return resolution.NewEngine(st, nil, logger)
	}
	return resolution.NewEngine(st, res, logger)
}

// graphPinger adapts a Querier into the health-check interface.
type graphPinger struct {
	q graph.Querier
}

func (p graphPinger) Ping(ctx context.Context) error {
	_, err := p.q.Query(ctx, "RETURN 1", nil)
	return err
}
