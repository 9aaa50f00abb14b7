// Package schema declares the desired graph schema: per-label identity and
// secondary indexes, and the set of legal edge triples. The registry is the
// single authority the repository consults before any edge write.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ohana-garden/almoner/internal/graph"
	"github.com/ohana-garden/almoner/internal/models"
)

// ErrSchemaViolation is returned when an edge's (type, from, to) triple is
// not declared. Edge writes carrying it are rejected before touching the
// store, never silently dropped.
var ErrSchemaViolation = errors.New("schema violation")

// IndexKind distinguishes identity constraints from secondary indexes.
type IndexKind string

const (
	// KindIdentity implies uniqueness and an index on the property.
	KindIdentity IndexKind = "identity"
	// KindSearchable is an exact-match secondary index.
	KindSearchable IndexKind = "searchable"
	// KindFulltext is a full-text secondary index.
	KindFulltext IndexKind = "fulltext"
)

// IndexDecl is one desired (label, property, kind) tuple.
type IndexDecl struct {
	Label    models.Label
	Property string
	Kind     IndexKind
}

// EdgeDecl is one legal (type, from, to) triple.
type EdgeDecl struct {
	Type string
	From models.Label
	To   models.Label
}

// desiredIndexes is the declarative desired state applied at startup.
// Every label gets an identity constraint on id; nameKey backs the
// exact-name resolution tier.
var desiredIndexes = []IndexDecl{
	{models.LabelFunder, "id", KindIdentity},
	{models.LabelOrg, "id", KindIdentity},
	{models.LabelPerson, "id", KindIdentity},
	{models.LabelOpportunity, "id", KindIdentity},
	{models.LabelEpisode, "id", KindIdentity},

	{models.LabelFunder, "nameKey", KindSearchable},
	{models.LabelOrg, "nameKey", KindSearchable},
	{models.LabelPerson, "nameKey", KindSearchable},
	{models.LabelOpportunity, "nameKey", KindSearchable},
	{models.LabelOpportunity, "status", KindSearchable},
	{models.LabelOpportunity, "deadline", KindSearchable},
	{models.LabelOpportunity, "amountMin", KindSearchable},

	{models.LabelFunder, "name", KindFulltext},
	{models.LabelOrg, "name", KindFulltext},
	{models.LabelOpportunity, "title", KindFulltext},
	{models.LabelOpportunity, "description", KindFulltext},
}

// desiredEdges is the closed set of legal relationships.
var desiredEdges = []EdgeDecl{
	{"OFFERS", models.LabelFunder, models.LabelOpportunity},
	{"FUNDS", models.LabelFunder, models.LabelOrg},
	{"APPLIED_TO", models.LabelOrg, models.LabelOpportunity},
	{"MEMBER_OF", models.LabelPerson, models.LabelOrg},
	{"MENTIONED_IN", models.LabelFunder, models.LabelEpisode},
	{"MENTIONED_IN", models.LabelOrg, models.LabelEpisode},
	{"MENTIONED_IN", models.LabelPerson, models.LabelEpisode},
	{"MENTIONED_IN", models.LabelOpportunity, models.LabelEpisode},
}

// Registry holds the declared schema and answers validation lookups in
// memory. It is immutable after construction.
type Registry struct {
	indexes []IndexDecl
	edges   map[string][]EdgeDecl // keyed by edge type
	logger  *slog.Logger
}

// NewRegistry builds the registry from the declared desired state.
func NewRegistry(logger *slog.Logger) *Registry {
	edges := make(map[string][]EdgeDecl)
	for _, e := range desiredEdges {
		edges[e.Type] = append(edges[e.Type], e)
	}
	return &Registry{
		indexes: desiredIndexes,
		edges:   edges,
		logger:  logger,
	}
}

// DeclareIndexes applies every declared index and constraint idempotently.
// An "already exists" response from the engine is success; any other error
// is fatal to startup.
func (r *Registry) DeclareIndexes(ctx context.Context, q graph.Querier) error {
	for _, decl := range r.indexes {
		stmt := indexStatement(decl)
		if _, err := q.Mutate(ctx, stmt, nil); err != nil {
			if isAlreadyExists(err) {
				r.logger.Debug("index already present", "label", decl.Label, "property", decl.Property)
				continue
			}
			return fmt.Errorf("declaring %s index on %s.%s: %w", decl.Kind, decl.Label, decl.Property, err)
		}
		r.logger.Info("declared index", "label", decl.Label, "property", decl.Property, "kind", decl.Kind)
	}
	return nil
}

// ValidateEdge reports whether the (type, from, to) triple is declared.
func (r *Registry) ValidateEdge(edgeType string, from, to models.Label) error {
	for _, e := range r.edges[edgeType] {
		if e.From == from && e.To == to {
			return nil
		}
	}
	return fmt.Errorf("%w: edge %s from %s to %s is not declared", ErrSchemaViolation, edgeType, from, to)
}

// EdgesFrom returns the declared edge triples whose source is label.
func (r *Registry) EdgesFrom(label models.Label) []EdgeDecl {
	var out []EdgeDecl
	for _, decls := range r.edges {
		for _, e := range decls {
			if e.From == label {
				out = append(out, e)
			}
		}
	}
	return out
}

// EdgesTo returns the declared edge triples whose target is label.
func (r *Registry) EdgesTo(label models.Label) []EdgeDecl {
	var out []EdgeDecl
	for _, decls := range r.edges {
		for _, e := range decls {
			if e.To == label {
				out = append(out, e)
			}
		}
	}
	return out
}

// indexStatement renders the Cypher for one declaration. Labels and
// properties come from the closed declarations above, never from callers.
func indexStatement(d IndexDecl) string {
	switch d.Kind {
	case KindIdentity:
		return fmt.Sprintf("CREATE CONSTRAINT FOR (n:%s) REQUIRE n.%s IS UNIQUE", d.Label, d.Property)
	case KindFulltext:
		return fmt.Sprintf("CALL db.idx.fulltext.createNodeIndex('%s', '%s')", d.Label, d.Property)
	default:
		return fmt.Sprintf("CREATE INDEX FOR (n:%s) ON (n.%s)", d.Label, d.Property)
	}
}

// isAlreadyExists matches the engine's "already indexed"/"already exists"
// rejections, which vary in wording across Neo4j and FalkorDB.
func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "already indexed") ||
		strings.Contains(msg, "equivalent") ||
		strings.Contains(msg, "constraint already")
}
