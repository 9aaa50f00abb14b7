package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ohana-garden/almoner/internal/codec"
	"github.com/ohana-garden/almoner/internal/graph"
	"github.com/ohana-garden/almoner/internal/metrics"
	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

// GraphStore implements Store against a graph engine reached through the
// graph.Querier port. Labels and edge types are validated against the closed
// schema before they are rendered into query text; all values travel as
// out-of-band parameters.
type GraphStore struct {
	q      graph.Querier
	schema *schema.Registry
	codec  *codec.Codec
	logger *slog.Logger
}

// NewGraphStore wires the repository to a querier, the schema registry and
// the property codec.
func NewGraphStore(q graph.Querier, reg *schema.Registry, c *codec.Codec, logger *slog.Logger) *GraphStore {
	return &GraphStore{q: q, schema: reg, codec: c, logger: logger}
}

func (s *GraphStore) CreateNode(ctx context.Context, label models.Label, props map[string]any) (string, error) {
	if !label.IsValid() {
		return "", fmt.Errorf("creating node: unknown label %q", label)
	}

	id, _ := props["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	flat, err := s.encodeWithIdentity(id, props)
	if err != nil {
		return "", fmt.Errorf("creating %s node: %w", label, err)
	}

	cypher := fmt.Sprintf("CREATE (n:%s) SET n = $props", label)
	summary, err := s.q.Mutate(ctx, cypher, map[string]any{"props": flat})
	if err != nil {
		return "", fmt.Errorf("creating %s node: %w", label, err)
	}
	if summary.NodesCreated == 0 {
		return "", fmt.Errorf("creating %s node %s: no node created", label, id)
	}

	metrics.Inc(metrics.NodeWrites)
	s.logger.Debug("created node", "label", label, "id", id)
	return id, nil
}

func (s *GraphStore) GetNode(ctx context.Context, label models.Label, id string) (map[string]any, error) {
	if !label.IsValid() {
		return nil, fmt.Errorf("getting node: unknown label %q", label)
	}

	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n", label)
	rows, err := s.q.Query(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("getting %s node %s: %w", label, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}

	flat, ok := rows[0]["n"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("getting %s node %s: unexpected row shape", label, id)
	}
	return s.codec.Decode(flat)
}

func (s *GraphStore) UpdateNode(ctx context.Context, label models.Label, id string, partial map[string]any) error {
	if !label.IsValid() {
		return fmt.Errorf("updating node: unknown label %q", label)
	}
	if len(partial) == 0 {
		return nil
	}

	flat, err := s.encodePatch(partial)
	if err != nil {
		return fmt.Errorf("updating %s node %s: %w", label, id, err)
	}
	// Nil values encode away; an empty patch would report zero properties
	// set and misread an existing node as absent.
	if len(flat) == 0 {
		return nil
	}

	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) SET n += $props", label)
	summary, err := s.q.Mutate(ctx, cypher, map[string]any{"id": id, "props": flat})
	if err != nil {
		return fmt.Errorf("updating %s node %s: %w", label, id, err)
	}
	if summary.PropertiesSet == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}

	metrics.Inc(metrics.NodeWrites)
	return nil
}

func (s *GraphStore) UpsertNode(ctx context.Context, label models.Label, id string, props map[string]any) (string, bool, error) {
	if !label.IsValid() {
		return "", false, fmt.Errorf("upserting node: unknown label %q", label)
	}
	if id == "" {
		return "", false, fmt.Errorf("upserting %s node: id is required", label)
	}

	flat, err := s.encodeWithIdentity(id, props)
	if err != nil {
		return "", false, fmt.Errorf("upserting %s node %s: %w", label, id, err)
	}

	cypher := fmt.Sprintf(`MERGE (n:%s {id: $id})
ON CREATE SET n = $props
ON MATCH SET n += $props`, label)
	summary, err := s.q.Mutate(ctx, cypher, map[string]any{"id": id, "props": flat})
	if err != nil {
		return "", false, fmt.Errorf("upserting %s node %s: %w", label, id, err)
	}

	created := summary.NodesCreated > 0
	metrics.Inc(metrics.NodeWrites)
	s.logger.Debug("upserted node", "label", label, "id", id, "created", created)
	return id, created, nil
}

func (s *GraphStore) DeleteNode(ctx context.Context, label models.Label, id string) error {
	if !label.IsValid() {
		return fmt.Errorf("deleting node: unknown label %q", label)
	}

	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) DETACH DELETE n", label)
	summary, err := s.q.Mutate(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("deleting %s node %s: %w", label, id, err)
	}
	if summary.NodesDeleted == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}
	return nil
}

func (s *GraphStore) FindNodeByName(ctx context.Context, label models.Label, name string) (map[string]any, error) {
	if !label.IsValid() {
		return nil, fmt.Errorf("finding node by name: unknown label %q", label)
	}

	key := codec.NameKey(name)
	if key == "" {
		return nil, fmt.Errorf("%w: %s with empty name", ErrNotFound, label)
	}

	cypher := fmt.Sprintf("MATCH (n:%s {nameKey: $nameKey}) RETURN n LIMIT 1", label)
	rows, err := s.q.Query(ctx, cypher, map[string]any{"nameKey": key})
	if err != nil {
		return nil, fmt.Errorf("finding %s node by name %q: %w", label, name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s named %q", ErrNotFound, label, name)
	}

	flat, ok := rows[0]["n"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("finding %s node by name %q: unexpected row shape", label, name)
	}
	return s.codec.Decode(flat)
}

func (s *GraphStore) CreateEdge(ctx context.Context, edgeType string, fromLabel models.Label, fromID string, toLabel models.Label, toID string, props map[string]any) (string, error) {
	if err := s.schema.ValidateEdge(edgeType, fromLabel, toLabel); err != nil {
		metrics.Inc(metrics.SchemaViolations)
		return "", err
	}

	flat, err := s.codec.Encode(props)
	if err != nil {
		return "", fmt.Errorf("creating %s edge: %w", edgeType, err)
	}
	edgeID := uuid.NewString()
	flat["id"] = edgeID
	flat["createdAt"] = time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)

	cypher := fmt.Sprintf(`MATCH (a:%s {id: $fromId}), (b:%s {id: $toId})
CREATE (a)-[r:%s]->(b)
SET r = $props`, fromLabel, toLabel, edgeType)
	summary, err := s.q.Mutate(ctx, cypher, map[string]any{
		"fromId": fromID,
		"toId":   toID,
		"props":  flat,
	})
	if err != nil {
		return "", fmt.Errorf("creating %s edge %s->%s: %w", edgeType, fromID, toID, err)
	}
	if summary.RelationshipsCreated == 0 {
		return "", fmt.Errorf("%w: %s edge from %s %s to %s %s", ErrEndpointNotFound, edgeType, fromLabel, fromID, toLabel, toID)
	}

	metrics.Inc(metrics.EdgeWrites)
	s.logger.Debug("created edge", "type", edgeType, "from", fromID, "to", toID)
	return edgeID, nil
}

func (s *GraphStore) FindEdgesFrom(ctx context.Context, label models.Label, id string) ([]models.EdgeHop, error) {
	cypher := fmt.Sprintf(`MATCH (a:%s {id: $id})-[r]->(b)
RETURN r.id AS id, type(r) AS type, properties(r) AS props, b.id AS otherId`, label)
	return s.findEdges(ctx, label, id, cypher, true)
}

func (s *GraphStore) FindEdgesTo(ctx context.Context, label models.Label, id string) ([]models.EdgeHop, error) {
	cypher := fmt.Sprintf(`MATCH (a:%s {id: $id})<-[r]-(b)
RETURN r.id AS id, type(r) AS type, properties(r) AS props, b.id AS otherId`, label)
	return s.findEdges(ctx, label, id, cypher, false)
}

func (s *GraphStore) findEdges(ctx context.Context, label models.Label, id, cypher string, outgoing bool) ([]models.EdgeHop, error) {
	if !label.IsValid() {
		return nil, fmt.Errorf("finding edges: unknown label %q", label)
	}

	rows, err := s.q.Query(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("finding edges of %s node %s: %w", label, id, err)
	}

	hops := make([]models.EdgeHop, 0, len(rows))
	for _, row := range rows {
		flat, _ := row["props"].(map[string]any)
		otherID, _ := row["otherId"].(string)

		edge := models.Edge{
			ID:     stringValue(row["id"]),
			Type:   stringValue(row["type"]),
			FromID: id,
			ToID:   otherID,
		}
		if !outgoing {
			edge.FromID, edge.ToID = otherID, id
		}

		if flat != nil {
			delete(flat, "id")
			if raw, ok := flat["createdAt"].(string); ok {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					edge.CreatedAt = t.UTC()
				}
				delete(flat, "createdAt")
			}
			decoded, err := s.codec.Decode(flat)
			if err != nil {
				return nil, fmt.Errorf("decoding edge %s properties: %w", edge.ID, err)
			}
			if len(decoded) > 0 {
				edge.Properties = decoded
			}
		}

		hops = append(hops, models.EdgeHop{Edge: edge, OtherNodeID: otherID})
	}
	return hops, nil
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.q.Close(ctx)
}

// encodeWithIdentity encodes props and stamps the identity and nameKey
// fields the repository owns.
func (s *GraphStore) encodeWithIdentity(id string, props map[string]any) (map[string]any, error) {
	flat, err := s.codec.Encode(props)
	if err != nil {
		return nil, err
	}
	flat["id"] = id
	if name, ok := flat["name"].(string); ok && name != "" {
		flat["nameKey"] = codec.NameKey(name)
	}
	return flat, nil
}

// encodePatch encodes a partial update, refreshing nameKey when the patch
// renames the node and refusing to rewrite identity.
func (s *GraphStore) encodePatch(partial map[string]any) (map[string]any, error) {
	flat, err := s.codec.Encode(partial)
	if err != nil {
		return nil, err
	}
	delete(flat, "id")
	if name, ok := flat["name"].(string); ok && name != "" {
		flat["nameKey"] = codec.NameKey(name)
	}
	return flat, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
