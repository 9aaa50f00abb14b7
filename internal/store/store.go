package store

import (
	"context"
	"errors"

	"github.com/ohana-garden/almoner/internal/models"
)

// ErrNotFound is the typed absence returned by lookups that miss. It is the
// expected negative signal the resolution cascade branches on, not a failure.
var ErrNotFound = errors.New("node not found")

// ErrEndpointNotFound is returned by CreateEdge when either endpoint does not
// exist: the write affected zero relationships and must not pass as success.
var ErrEndpointNotFound = errors.New("edge endpoint not found")

// Store is the sole persistence surface collaborator engines may use. None of
// them talk to the graph engine directly; this interface preserves the
// single-source-of-truth invariant. Label is mandatory on every call so the
// codec and the query are never guessed from context.
type Store interface {
	// CreateNode writes a new node, assigning an id when the properties do
	// not carry one, and returns that id.
	CreateNode(ctx context.Context, label models.Label, props map[string]any) (string, error)

	// GetNode returns the decoded properties of one node, or ErrNotFound.
	GetNode(ctx context.Context, label models.Label, id string) (map[string]any, error)

	// UpdateNode merges only the provided fields into an existing node
	// (a patch, not a put).
	UpdateNode(ctx context.Context, label models.Label, id string, partial map[string]any) error

	// UpsertNode atomically creates or merges a node keyed on id, reporting
	// whether the write created it. This is the primitive preferred over
	// separate lookup-then-create sequences.
	UpsertNode(ctx context.Context, label models.Label, id string, props map[string]any) (string, bool, error)

	// DeleteNode removes a node, detaching all its edges first.
	DeleteNode(ctx context.Context, label models.Label, id string) error

	// FindNodeByName matches the whitespace-normalized, case-insensitive
	// display name among nodes of the label, or returns ErrNotFound.
	FindNodeByName(ctx context.Context, label models.Label, name string) (map[string]any, error)

	// CreateEdge validates the (type, from, to) triple against the schema
	// registry and writes the relationship. Missing endpoints surface as
	// ErrEndpointNotFound, never as silent success.
	CreateEdge(ctx context.Context, edgeType string, fromLabel models.Label, fromID string, toLabel models.Label, toID string, props map[string]any) (string, error)

	// FindEdgesFrom returns one-hop outgoing (edge, otherNodeID) pairs.
	FindEdgesFrom(ctx context.Context, label models.Label, id string) ([]models.EdgeHop, error)

	// FindEdgesTo returns one-hop incoming (edge, otherNodeID) pairs.
	FindEdgesTo(ctx context.Context, label models.Label, id string) ([]models.EdgeHop, error)

	// Close releases underlying resources.
	Close(ctx context.Context) error
}
