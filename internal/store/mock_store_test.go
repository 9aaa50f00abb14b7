package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohana-garden/almoner/internal/codec"
	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

func newMockStore() *MockStore {
	logger := slog.Default()
	return NewMockStore(schema.NewRegistry(logger), codec.New(logger))
}

func TestMockStore_NodeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()

	id, err := s.CreateNode(ctx, models.LabelFunder, map[string]any{
		"name":   "Hawaii Community Foundation",
		"amount": map[string]any{"min": 5000, "max": 25000},
	})
	require.NoError(t, err)

	props, err := s.GetNode(ctx, models.LabelFunder, id)
	require.NoError(t, err)
	assert.Equal(t, "Hawaii Community Foundation", props["name"])
	r, ok := props["amount"].(*models.AmountRange)
	require.True(t, ok, "mock must run the real codec")
	assert.Equal(t, 5000.0, *r.Min)

	require.NoError(t, s.UpdateNode(ctx, models.LabelFunder, id, map[string]any{"state": "HI"}))
	props, err = s.GetNode(ctx, models.LabelFunder, id)
	require.NoError(t, err)
	assert.Equal(t, "HI", props["state"])

	require.NoError(t, s.DeleteNode(ctx, models.LabelFunder, id))
	_, err = s.GetNode(ctx, models.LabelFunder, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_LabelsPartitionNodes(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()

	id, err := s.CreateNode(ctx, models.LabelOrg, map[string]any{"id": "shared", "name": "Org"})
	require.NoError(t, err)

	_, err = s.GetNode(ctx, models.LabelFunder, id)
	assert.ErrorIs(t, err, ErrNotFound, "a lookup under another label must miss")
}

func TestMockStore_FindNodeByName(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()

	id, err := s.CreateNode(ctx, models.LabelOrg, map[string]any{"name": "Ohana Garden"})
	require.NoError(t, err)

	props, err := s.FindNodeByName(ctx, models.LabelOrg, "  ohana   GARDEN ")
	require.NoError(t, err)
	assert.Equal(t, id, props["id"])

	_, err = s.FindNodeByName(ctx, models.LabelOrg, "someone else")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_EdgeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()

	funder, err := s.CreateNode(ctx, models.LabelFunder, map[string]any{"name": "HCF"})
	require.NoError(t, err)
	opp, err := s.CreateNode(ctx, models.LabelOpportunity, map[string]any{"title": "Grant"})
	require.NoError(t, err)

	_, err = s.CreateEdge(ctx, "OFFERS", models.LabelFunder, funder, models.LabelOpportunity, opp, nil)
	require.NoError(t, err)

	out, err := s.FindEdgesFrom(ctx, models.LabelFunder, funder)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, opp, out[0].OtherNodeID)

	in, err := s.FindEdgesTo(ctx, models.LabelOpportunity, opp)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, funder, in[0].OtherNodeID)

	// Deleting an endpoint detaches its edges.
	require.NoError(t, s.DeleteNode(ctx, models.LabelOpportunity, opp))
	out, err = s.FindEdgesFrom(ctx, models.LabelFunder, funder)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMockStore_CreateEdgeChecksSchemaAndEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()

	funder, err := s.CreateNode(ctx, models.LabelFunder, map[string]any{"name": "HCF"})
	require.NoError(t, err)

	_, err = s.CreateEdge(ctx, "OFFERS", models.LabelPerson, funder, models.LabelPerson, funder, nil)
	assert.ErrorIs(t, err, schema.ErrSchemaViolation)

	_, err = s.CreateEdge(ctx, "OFFERS", models.LabelFunder, funder, models.LabelOpportunity, "missing", nil)
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestMockStore_ForcedErr(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	boom := errors.New("storage down")
	s.ForcedErr = boom

	_, err := s.CreateNode(ctx, models.LabelFunder, nil)
	assert.ErrorIs(t, err, boom)
	_, err = s.GetNode(ctx, models.LabelFunder, "x")
	assert.ErrorIs(t, err, boom)
	_, err = s.FindNodeByName(ctx, models.LabelFunder, "x")
	assert.ErrorIs(t, err, boom)
}
