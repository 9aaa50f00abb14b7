package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	node := neo4j.Node{
		ElementId: "4:abc:1",
		Labels:    []string{"Funder"},
		Props:     map[string]any{"id": "f-1", "name": "HCF"},
	}
	assert.Equal(t, map[string]any{"id": "f-1", "name": "HCF"}, normalizeValue(node))

	rel := neo4j.Relationship{
		ElementId: "5:abc:2",
		Type:      "OFFERS",
		Props:     map[string]any{"id": "e-1"},
	}
	assert.Equal(t, map[string]any{"id": "e-1"}, normalizeValue(rel))

	// Nested containers normalize recursively.
	got := normalizeValue([]any{node, map[string]any{"inner": rel}})
	assert.Equal(t, []any{
		map[string]any{"id": "f-1", "name": "HCF"},
		map[string]any{"inner": map[string]any{"id": "e-1"}},
	}, got)

	// Scalars pass through untouched.
	assert.Equal(t, int64(42), normalizeValue(int64(42)))
	assert.Equal(t, "text", normalizeValue("text"))
	assert.Nil(t, normalizeValue(nil))
}
