package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ohana-garden/almoner/internal/codec"
	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

// MockStore is an in-memory implementation of Store for testing. It runs the
// same codec and schema validation as GraphStore so behavior matches the real
// repository, holding flat encoded properties keyed by label and id.
type MockStore struct {
	mu     sync.RWMutex
	nodes  map[models.Label]map[string]map[string]any
	edges  []mockEdge
	schema *schema.Registry
	codec  *codec.Codec

	// ForcedErr, when set, is returned by every operation. It simulates a
	// storage outage for cascade failure-path tests.
	ForcedErr error
}

type mockEdge struct {
	edge      models.Edge
	fromLabel models.Label
	toLabel   models.Label
}

// NewMockStore creates an empty mock store.
func NewMockStore(reg *schema.Registry, c *codec.Codec) *MockStore {
	return &MockStore{
		nodes:  make(map[models.Label]map[string]map[string]any),
		schema: reg,
		codec:  c,
	}
}

func (m *MockStore) CreateNode(_ context.Context, label models.Label, props map[string]any) (string, error) {
	if m.ForcedErr != nil {
		return "", m.ForcedErr
	}
	if !label.IsValid() {
		return "", fmt.Errorf("creating node: unknown label %q", label)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, _ := props["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	flat, err := m.encodeWithIdentity(id, props)
	if err != nil {
		return "", err
	}
	m.labelNodes(label)[id] = flat
	return id, nil
}

func (m *MockStore) GetNode(_ context.Context, label models.Label, id string) (map[string]any, error) {
	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flat, ok := m.nodes[label][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}
	return m.codec.Decode(copyMap(flat))
}

func (m *MockStore) UpdateNode(_ context.Context, label models.Label, id string, partial map[string]any) error {
	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	if len(partial) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	flat, ok := m.labelNodes(label)[id]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}
	patch, err := m.codec.Encode(partial)
	if err != nil {
		return err
	}
	delete(patch, "id")
	for k, v := range patch {
		flat[k] = v
	}
	if name, ok := flat["name"].(string); ok && name != "" {
		flat["nameKey"] = codec.NameKey(name)
	}
	return nil
}

func (m *MockStore) UpsertNode(_ context.Context, label models.Label, id string, props map[string]any) (string, bool, error) {
	if m.ForcedErr != nil {
		return "", false, m.ForcedErr
	}
	if id == "" {
		return "", false, fmt.Errorf("upserting %s node: id is required", label)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := m.labelNodes(label)
	patch, err := m.encodeWithIdentity(id, props)
	if err != nil {
		return "", false, err
	}
	if existing, ok := nodes[id]; ok {
		for k, v := range patch {
			existing[k] = v
		}
		return id, false, nil
	}
	nodes[id] = patch
	return id, true, nil
}

func (m *MockStore) DeleteNode(_ context.Context, label models.Label, id string) error {
	if m.ForcedErr != nil {
		return m.ForcedErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := m.labelNodes(label)
	if _, ok := nodes[id]; !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, label, id)
	}
	delete(nodes, id)

	// Deletion detaches all edges.
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.edge.FromID != id && e.edge.ToID != id {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	return nil
}

func (m *MockStore) FindNodeByName(_ context.Context, label models.Label, name string) (map[string]any, error) {
	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := codec.NameKey(name)
	if key != "" {
		for _, flat := range m.nodes[label] {
			if flat["nameKey"] == key {
				return m.codec.Decode(copyMap(flat))
			}
		}
	}
	return nil, fmt.Errorf("%w: %s named %q", ErrNotFound, label, name)
}

func (m *MockStore) CreateEdge(_ context.Context, edgeType string, fromLabel models.Label, fromID string, toLabel models.Label, toID string, props map[string]any) (string, error) {
	if m.ForcedErr != nil {
		return "", m.ForcedErr
	}
	if err := m.schema.ValidateEdge(edgeType, fromLabel, toLabel); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.labelNodes(fromLabel)[fromID]; !ok {
		return "", fmt.Errorf("%w: %s edge from %s %s", ErrEndpointNotFound, edgeType, fromLabel, fromID)
	}
	if _, ok := m.labelNodes(toLabel)[toID]; !ok {
		return "", fmt.Errorf("%w: %s edge to %s %s", ErrEndpointNotFound, edgeType, toLabel, toID)
	}

	decoded, err := m.roundTrip(props)
	if err != nil {
		return "", err
	}
	edge := models.Edge{
		ID:         uuid.NewString(),
		Type:       edgeType,
		FromID:     fromID,
		ToID:       toID,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Properties: decoded,
	}
	m.edges = append(m.edges, mockEdge{edge: edge, fromLabel: fromLabel, toLabel: toLabel})
	return edge.ID, nil
}

func (m *MockStore) FindEdgesFrom(_ context.Context, label models.Label, id string) ([]models.EdgeHop, error) {
	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hops []models.EdgeHop
	for _, e := range m.edges {
		if e.fromLabel == label && e.edge.FromID == id {
			hops = append(hops, models.EdgeHop{Edge: e.edge, OtherNodeID: e.edge.ToID})
		}
	}
	return hops, nil
}

func (m *MockStore) FindEdgesTo(_ context.Context, label models.Label, id string) ([]models.EdgeHop, error) {
	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hops []models.EdgeHop
	for _, e := range m.edges {
		if e.toLabel == label && e.edge.ToID == id {
			hops = append(hops, models.EdgeHop{Edge: e.edge, OtherNodeID: e.edge.FromID})
		}
	}
	return hops, nil
}

func (m *MockStore) Close(_ context.Context) error { return nil }

// --- helpers ---

// labelNodes must be called with the write lock held.
func (m *MockStore) labelNodes(label models.Label) map[string]map[string]any {
	if m.nodes[label] == nil {
		m.nodes[label] = make(map[string]map[string]any)
	}
	return m.nodes[label]
}

func (m *MockStore) encodeWithIdentity(id string, props map[string]any) (map[string]any, error) {
	flat, err := m.codec.Encode(props)
	if err != nil {
		return nil, err
	}
	flat["id"] = id
	if name, ok := flat["name"].(string); ok && name != "" {
		flat["nameKey"] = codec.NameKey(name)
	}
	return flat, nil
}

func (m *MockStore) roundTrip(props map[string]any) (map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	flat, err := m.codec.Encode(props)
	if err != nil {
		return nil, err
	}
	return m.codec.Decode(flat)
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
