package models

import "time"

// AmountRange is a monetary range, e.g. a grant's award band.
// Min or Max may be nil when the source only reports one bound.
type AmountRange struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// GeoPoint is a geographic coordinate with an optional state/region tag.
type GeoPoint struct {
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	State string   `json:"state,omitempty"`
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EdgeHop pairs an edge with the node id on its far side, as returned by
// one-hop traversals.
type EdgeHop struct {
	Edge        Edge   `json:"edge"`
	OtherNodeID string `json:"other_node_id"`
}

// Float64Ptr returns a pointer to v. Convenience for building ranges and
// coordinates in literals.
func Float64Ptr(v float64) *float64 { return &v }
