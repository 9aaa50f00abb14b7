package store

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohana-garden/almoner/internal/codec"
	"github.com/ohana-garden/almoner/internal/graph"
	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

// fakeQuerier scripts graph responses and records every statement so tests
// can assert on query shape and parameter passing without an engine.
type fakeQuerier struct {
	queryRows    []map[string]any
	queryErr     error
	mutateRes    graph.WriteSummary
	mutateErr    error
	lastCypher   string
	lastParams   map[string]any
	mutateCalled int
}

func (f *fakeQuerier) Query(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.lastCypher, f.lastParams = cypher, params
	return f.queryRows, f.queryErr
}

func (f *fakeQuerier) Mutate(_ context.Context, cypher string, params map[string]any) (graph.WriteSummary, error) {
	f.lastCypher, f.lastParams = cypher, params
	f.mutateCalled++
	return f.mutateRes, f.mutateErr
}

func (f *fakeQuerier) Close(_ context.Context) error { return nil }

func newGraphStore(q graph.Querier) *GraphStore {
	logger := slog.Default()
	return NewGraphStore(q, schema.NewRegistry(logger), codec.New(logger), logger)
}

func TestGraphStore_CreateNode(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{NodesCreated: 1}}
	s := newGraphStore(q)

	id, err := s.CreateNode(context.Background(), models.LabelFunder, map[string]any{
		"name": "Hawaii Community Foundation",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, "CREATE (n:Funder) SET n = $props", q.lastCypher)
	props := q.lastParams["props"].(map[string]any)
	assert.Equal(t, id, props["id"])
	assert.Equal(t, "hawaii community foundation", props["nameKey"])
}

func TestGraphStore_CreateNodeKeepsCallerID(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{NodesCreated: 1}}
	s := newGraphStore(q)

	id, err := s.CreateNode(context.Background(), models.LabelOrg, map[string]any{
		"id":   "org-7",
		"name": "Ohana Garden",
	})
	require.NoError(t, err)
	assert.Equal(t, "org-7", id)
}

func TestGraphStore_CreateNodeRejectsUnknownLabel(t *testing.T) {
	q := &fakeQuerier{}
	s := newGraphStore(q)

	_, err := s.CreateNode(context.Background(), models.Label("Sponsor"), nil)
	require.Error(t, err)
	assert.Zero(t, q.mutateCalled, "no statement may reach the store")
}

func TestGraphStore_GetNodeDecodesProperties(t *testing.T) {
	q := &fakeQuerier{queryRows: []map[string]any{{
		"n": map[string]any{
			"id":        "opp-1",
			"title":     "Community Health Grant",
			"amountMin": 5000.0,
			"amountMax": 25000.0,
		},
	}}}
	s := newGraphStore(q)

	props, err := s.GetNode(context.Background(), models.LabelOpportunity, "opp-1")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (n:Opportunity {id: $id}) RETURN n", q.lastCypher)
	r, ok := props["amount"].(*models.AmountRange)
	require.True(t, ok, "flattened range must come back composed")
	assert.Equal(t, 5000.0, *r.Min)
	assert.NotContains(t, props, "amountMin")
}

func TestGraphStore_GetNodeMissing(t *testing.T) {
	s := newGraphStore(&fakeQuerier{})

	_, err := s.GetNode(context.Background(), models.LabelFunder, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestGraphStore_UpdateNodeMissing verifies the repository reads the engine's
// mutation counters: zero properties set on a patch means the node was not
// there.
func TestGraphStore_UpdateNodeMissing(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{PropertiesSet: 0}}
	s := newGraphStore(q)

	err := s.UpdateNode(context.Background(), models.LabelOrg, "gone", map[string]any{"status": "active"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestGraphStore_UpdateNodeEmptyPatchIsNoOp verifies a patch whose values all
// encode away never reaches the engine, where its zero properties-set count
// would misreport an existing node as absent.
func TestGraphStore_UpdateNodeEmptyPatchIsNoOp(t *testing.T) {
	q := &fakeQuerier{}
	s := newGraphStore(q)

	require.NoError(t, s.UpdateNode(context.Background(), models.LabelOrg, "org-7", map[string]any{"foo": nil}))
	assert.Zero(t, q.mutateCalled)

	require.NoError(t, s.UpdateNode(context.Background(), models.LabelOrg, "org-7", nil))
	assert.Zero(t, q.mutateCalled)
}

func TestGraphStore_UpdateNodeRefreshesNameKey(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{PropertiesSet: 2}}
	s := newGraphStore(q)

	err := s.UpdateNode(context.Background(), models.LabelOrg, "org-7", map[string]any{
		"name": "Ohana  Garden Collective",
	})
	require.NoError(t, err)

	props := q.lastParams["props"].(map[string]any)
	assert.Equal(t, "ohana garden collective", props["nameKey"])
	assert.NotContains(t, props, "id", "a patch must not rewrite identity")
}

func TestGraphStore_UpsertNodeRequiresID(t *testing.T) {
	s := newGraphStore(&fakeQuerier{})

	_, _, err := s.UpsertNode(context.Background(), models.LabelFunder, "", map[string]any{"name": "X"})
	require.Error(t, err)
}

// TestGraphStore_UpsertNodeReportsCreation verifies the created flag follows
// the engine's node counter, which is how a MERGE distinguishes create from
// match.
func TestGraphStore_UpsertNodeReportsCreation(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{NodesCreated: 1}}
	s := newGraphStore(q)

	id, created, err := s.UpsertNode(context.Background(), models.LabelFunder, "f-1", map[string]any{"name": "HCF"})
	require.NoError(t, err)
	assert.Equal(t, "f-1", id)
	assert.True(t, created)

	q.mutateRes = graph.WriteSummary{NodesCreated: 0, PropertiesSet: 2}
	_, created, err = s.UpsertNode(context.Background(), models.LabelFunder, "f-1", map[string]any{"name": "HCF"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGraphStore_DeleteNodeMissing(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{NodesDeleted: 0}}
	s := newGraphStore(q)

	err := s.DeleteNode(context.Background(), models.LabelPerson, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraphStore_FindNodeByNameNormalizes(t *testing.T) {
	q := &fakeQuerier{queryRows: []map[string]any{{
		"n": map[string]any{"id": "f-1", "name": "Hawaii Community Foundation"},
	}}}
	s := newGraphStore(q)

	props, err := s.FindNodeByName(context.Background(), models.LabelFunder, "  HAWAII   Community Foundation ")
	require.NoError(t, err)
	assert.Equal(t, "f-1", props["id"])
	assert.Equal(t, "hawaii community foundation", q.lastParams["nameKey"])
}

// TestGraphStore_CreateEdgeSchemaViolation verifies an undeclared triple is
// rejected before any statement reaches the engine.
func TestGraphStore_CreateEdgeSchemaViolation(t *testing.T) {
	q := &fakeQuerier{}
	s := newGraphStore(q)

	_, err := s.CreateEdge(context.Background(), "OFFERS",
		models.LabelPerson, "p-1", models.LabelPerson, "p-2", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrSchemaViolation)
	assert.Zero(t, q.mutateCalled)
}

// TestGraphStore_CreateEdgeMissingEndpoint verifies that a MATCH miss shows up
// as zero relationships created and maps to ErrEndpointNotFound.
func TestGraphStore_CreateEdgeMissingEndpoint(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{RelationshipsCreated: 0}}
	s := newGraphStore(q)

	_, err := s.CreateEdge(context.Background(), "OFFERS",
		models.LabelFunder, "f-1", models.LabelOpportunity, "missing", nil)
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestGraphStore_CreateEdgeStampsIdentity(t *testing.T) {
	q := &fakeQuerier{mutateRes: graph.WriteSummary{RelationshipsCreated: 1}}
	s := newGraphStore(q)

	id, err := s.CreateEdge(context.Background(), "APPLIED_TO",
		models.LabelOrg, "org-7", models.LabelOpportunity, "opp-1",
		map[string]any{"status": "submitted"})
	require.NoError(t, err)

	props := q.lastParams["props"].(map[string]any)
	assert.Equal(t, id, props["id"])
	assert.NotEmpty(t, props["createdAt"])
	assert.Equal(t, "submitted", props["status"])
	assert.Equal(t, "org-7", q.lastParams["fromId"])
	assert.Equal(t, "opp-1", q.lastParams["toId"])
}

func TestGraphStore_FindEdgesFrom(t *testing.T) {
	q := &fakeQuerier{queryRows: []map[string]any{{
		"id":      "e-1",
		"type":    "OFFERS",
		"props":   map[string]any{"id": "e-1", "createdAt": "2026-01-02T03:04:05Z", "cycle": "2026"},
		"otherId": "opp-1",
	}}}
	s := newGraphStore(q)

	hops, err := s.FindEdgesFrom(context.Background(), models.LabelFunder, "f-1")
	require.NoError(t, err)
	require.Len(t, hops, 1)

	hop := hops[0]
	assert.Equal(t, "e-1", hop.Edge.ID)
	assert.Equal(t, "OFFERS", hop.Edge.Type)
	assert.Equal(t, "f-1", hop.Edge.FromID)
	assert.Equal(t, "opp-1", hop.Edge.ToID)
	assert.Equal(t, "opp-1", hop.OtherNodeID)
	assert.False(t, hop.Edge.CreatedAt.IsZero())
	assert.Equal(t, map[string]any{"cycle": "2026"}, hop.Edge.Properties)
}

func TestGraphStore_FindEdgesToReversesDirection(t *testing.T) {
	q := &fakeQuerier{queryRows: []map[string]any{{
		"id":      "e-2",
		"type":    "APPLIED_TO",
		"props":   map[string]any{"id": "e-2"},
		"otherId": "org-7",
	}}}
	s := newGraphStore(q)

	hops, err := s.FindEdgesTo(context.Background(), models.LabelOpportunity, "opp-1")
	require.NoError(t, err)
	require.Len(t, hops, 1)

	assert.Equal(t, "org-7", hops[0].Edge.FromID)
	assert.Equal(t, "opp-1", hops[0].Edge.ToID)
	assert.Equal(t, "org-7", hops[0].OtherNodeID)
}
