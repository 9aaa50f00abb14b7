// Package resolution implements the entity resolution cascade: the decision
// engine that collapses semantically identical entities from different
// sources onto a single graph node.
//
// Tiers run in strict order and short-circuit on the first hit: stable-id
// lookup, exact-name lookup, external resolver, fallback creation. A lookup
// miss is the only signal that advances the cascade; a storage error aborts
// it, so a downstream outage can never masquerade as a flood of new entities.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ohana-garden/almoner/internal/metrics"
	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/resolver"
	"github.com/ohana-garden/almoner/internal/store"
	"github.com/ohana-garden/almoner/pkg/slug"
)

// nameExactConfidence is the score assigned to a case-insensitive,
// whitespace-normalized display-name match.
const nameExactConfidence = 0.95

// ExternalResolver is the narrow, failure-tolerant view of the resolver
// service the cascade consumes. *resolver.Client satisfies it.
type ExternalResolver interface {
	Supports(label models.Label) bool
	Available(ctx context.Context) bool
	Resolve(ctx context.Context, label models.Label, fields map[string]any) (*resolver.Result, error)
}

// Engine runs the cascade against the repository, with optional external
// assistance.
type Engine struct {
	store  store.Store
	ext    ExternalResolver // nil disables the external tier
	logger *slog.Logger
}

// NewEngine creates a cascade engine. ext may be nil, in which case the
// external tier is skipped entirely.
func NewEngine(st store.Store, ext ExternalResolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, ext: ext, logger: logger}
}

// Resolve decides whether the candidate matches an existing node and merges
// into it, or creates one. Property-equal candidates under the same stable
// identity always yield the same node id.
func (e *Engine) Resolve(ctx context.Context, cand models.Candidate) (*models.Resolution, error) {
	if !cand.Label.IsValid() {
		return nil, fmt.Errorf("resolving entity: unknown label %q", cand.Label)
	}

	metrics.Inc(metrics.ResolveTotal)
	props := candidateProps(cand)

	// Tier 1: stable identifier. The id is externally authoritative, so a hit
	// is certain.
	if cand.StableID != "" {
		res, err := e.resolveByStableID(ctx, cand, props)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	// Tier 2: exact display name among nodes of the same label. Many entities
	// arrive without a stable identifier but with an unambiguous name.
	if cand.Name != "" {
		res, err := e.resolveByName(ctx, cand, props)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	// Tier 3: external resolver, best-effort. Its unavailability is invisible
	// to the caller; only a hit changes the outcome.
	if res, err := e.resolveExternally(ctx, cand, props); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	// Tier 4: fallback creation through the atomic upsert primitive.
	return e.createFallback(ctx, cand, props)
}

func (e *Engine) resolveByStableID(ctx context.Context, cand models.Candidate, props map[string]any) (*models.Resolution, error) {
	_, err := e.store.GetNode(ctx, cand.Label, cand.StableID)
	switch {
	case err == nil:
		if err := e.store.UpdateNode(ctx, cand.Label, cand.StableID, props); err != nil {
			return nil, fmt.Errorf("merging candidate into %s %s: %w", cand.Label, cand.StableID, err)
		}
		metrics.Inc(metrics.ResolveStableID)
		e.logger.Debug("resolved by stable id", "label", cand.Label, "id", cand.StableID)
		return &models.Resolution{
			NodeID:     cand.StableID,
			Confidence: 1.0,
			Factors:    []string{models.FactorStableID},
			IsNew:      false,
		}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("stable id lookup for %s %s: %w", cand.Label, cand.StableID, err)
	}
}

func (e *Engine) resolveByName(ctx context.Context, cand models.Candidate, props map[string]any) (*models.Resolution, error) {
	node, err := e.store.FindNodeByName(ctx, cand.Label, cand.Name)
	switch {
	case err == nil:
		id, _ := node["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("name lookup for %s %q: matched node has no id", cand.Label, cand.Name)
		}
		if err := e.store.UpdateNode(ctx, cand.Label, id, props); err != nil {
			return nil, fmt.Errorf("merging candidate into %s %s: %w", cand.Label, id, err)
		}
		metrics.Inc(metrics.ResolveNameExact)
		e.logger.Debug("resolved by exact name", "label", cand.Label, "id", id, "name", cand.Name)
		return &models.Resolution{
			NodeID:     id,
			Confidence: nameExactConfidence,
			Factors:    []string{models.FactorNameExact},
			IsNew:      false,
		}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("name lookup for %s %q: %w", cand.Label, cand.Name, err)
	}
}

// resolveExternally returns (nil, nil) whenever the external tier cannot
// help: unsupported label, service down, no match, or any transport failure.
// Only a storage error writing the resolved node is fatal.
func (e *Engine) resolveExternally(ctx context.Context, cand models.Candidate, props map[string]any) (*models.Resolution, error) {
	if e.ext == nil || !e.ext.Supports(cand.Label) {
		return nil, nil
	}
	if !e.ext.Available(ctx) {
		metrics.Inc(metrics.ResolverSkipped)
		e.logger.Debug("external resolver unavailable, skipping tier", "label", cand.Label)
		return nil, nil
	}

	result, err := e.ext.Resolve(ctx, cand.Label, props)
	if err != nil {
		if !errors.Is(err, resolver.ErrUnknownEntity) {
			e.logger.Warn("external resolver failed, continuing cascade", "label", cand.Label, "error", err)
		}
		return nil, nil
	}

	// Resolver canonical fields take precedence over locally supplied ones.
	merged := copyProps(props)
	for k, v := range result.Properties {
		if v != nil {
			merged[k] = v
		}
	}
	if result.Name != "" {
		merged["name"] = result.Name
	}

	if _, _, err := e.store.UpsertNode(ctx, cand.Label, result.ID, merged); err != nil {
		return nil, fmt.Errorf("storing externally resolved %s %s: %w", cand.Label, result.ID, err)
	}

	metrics.Inc(metrics.ResolveExternal)
	e.logger.Debug("resolved externally",
		"label", cand.Label, "id", result.ID, "confidence", result.Confidence, "isNew", result.IsNew)
	return &models.Resolution{
		NodeID:     result.ID,
		Confidence: result.Confidence,
		Factors:    []string{models.FactorExternalResolver},
		IsNew:      result.IsNew,
	}, nil
}

// createFallback assigns an id and writes the node through the atomic upsert
// primitive rather than a lookup-then-create pair, so two concurrent calls
// with the same deterministic key converge on one node.
func (e *Engine) createFallback(ctx context.Context, cand models.Candidate, props map[string]any) (*models.Resolution, error) {
	id := cand.StableID
	if id == "" {
		id = compositeID(cand)
	}
	if id == "" {
		id = uuid.NewString()
	}

	_, created, err := e.store.UpsertNode(ctx, cand.Label, id, props)
	if err != nil {
		return nil, fmt.Errorf("creating %s node %s: %w", cand.Label, id, err)
	}

	if created {
		metrics.Inc(metrics.ResolveCreated)
		e.logger.Debug("created new entity", "label", cand.Label, "id", id)
	}
	return &models.Resolution{
		NodeID:     id,
		Confidence: 1.0,
		Factors:    []string{models.FactorNewEntity},
		IsNew:      created,
	}, nil
}

// candidateProps flattens the candidate into the property set written to the
// node. The stable identifier is kept as a property as well so it survives a
// merge into a node matched by another tier.
func candidateProps(cand models.Candidate) map[string]any {
	props := copyProps(cand.Properties)
	if cand.Name != "" {
		props["name"] = cand.Name
	}
	if cand.StableID != "" {
		props["stableId"] = cand.StableID
	}
	return props
}

// compositeID derives a deterministic slug when the candidate carries the
// agency+title pair, the strongest deterministic key opportunities arrive
// with.
func compositeID(cand models.Candidate) string {
	agency, _ := cand.Properties["agencyName"].(string)
	title, _ := cand.Properties["title"].(string)
	return slug.Composite(agency, title)
}

func copyProps(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
