// Package graph defines the minimal access port the core requires from the
// graph engine: parameterized reads returning rows and parameterized writes
// returning mutation counts. The engine itself (Neo4j, FalkorDB or anything
// else speaking Bolt) lives outside this repository.
package graph

import (
	"context"
	"errors"
)

// ErrConnectivity marks transport-level failures reaching the graph engine.
// Callers treat it as fatal for the current operation; retry policy belongs
// to them, not here.
var ErrConnectivity = errors.New("graph engine unreachable")

// WriteSummary reports the counters of a single mutation. The repository
// inspects these to detect no-op conditions, e.g. an edge write that created
// zero relationships means an endpoint was missing.
type WriteSummary struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Querier executes Cypher against the graph engine. Parameters are always
// passed out-of-band, never interpolated into the query text.
type Querier interface {
	// Query runs a read-only query and returns one map per result record.
	// Node and relationship values are surfaced as their flat property maps.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Mutate runs a write query and returns its mutation counters.
	Mutate(ctx context.Context, cypher string, params map[string]any) (WriteSummary, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
