package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds Bolt connection settings for the graph engine.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jGraph implements Querier over the Bolt protocol.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jGraph connects to the graph engine and verifies connectivity.
func NewNeo4jGraph(ctx context.Context, cfg Config, logger *slog.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bolt driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: verifying connectivity to %s: %v", ErrConnectivity, cfg.URI, err)
	}

	logger.Info("connected to graph engine", "uri", cfg.URI, "database", cfg.Database)

	return &Neo4jGraph{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (g *Neo4jGraph) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var rows []map[string]any
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]any, len(record.Keys))
			for i, key := range record.Keys {
				row[key] = normalizeValue(record.Values[i])
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, g.wrapErr("query", err)
	}

	rows, _ := result.([]map[string]any)
	return rows, nil
}

func (g *Neo4jGraph) Mutate(ctx context.Context, cypher string, params map[string]any) (WriteSummary, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		c := summary.Counters()
		return WriteSummary{
			NodesCreated:         c.NodesCreated(),
			NodesDeleted:         c.NodesDeleted(),
			RelationshipsCreated: c.RelationshipsCreated(),
			RelationshipsDeleted: c.RelationshipsDeleted(),
			PropertiesSet:        c.PropertiesSet(),
		}, nil
	})
	if err != nil {
		return WriteSummary{}, g.wrapErr("mutate", err)
	}

	summary, _ := result.(WriteSummary)
	g.logger.Debug("mutation applied",
		"nodesCreated", summary.NodesCreated,
		"relationshipsCreated", summary.RelationshipsCreated,
		"propertiesSet", summary.PropertiesSet)
	return summary, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// wrapErr tags transport failures with ErrConnectivity so callers can tell an
// unreachable engine apart from a rejected query.
func (g *Neo4jGraph) wrapErr(op string, err error) error {
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%w: %s: %v", ErrConnectivity, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// normalizeValue converts driver-specific values into plain Go values. Nodes
// and relationships collapse to their property maps; lists and maps are
// normalized recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return normalizeValue(val.Props)
	case neo4j.Relationship:
		return normalizeValue(val.Props)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeValue(val[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
