package models

// Label classifies the kind of node in the graph.
type Label string

const (
	LabelFunder      Label = "Funder"
	LabelOrg         Label = "Org"
	LabelPerson      Label = "Person"
	LabelOpportunity Label = "Opportunity"
	LabelEpisode     Label = "Episode"
)

// ValidLabels is the closed set of node labels.
var ValidLabels = []Label{
	LabelFunder,
	LabelOrg,
	LabelPerson,
	LabelOpportunity,
	LabelEpisode,
}

// IsValid returns true if the label is recognized.
func (l Label) IsValid() bool {
	for i := range ValidLabels {
		if l == ValidLabels[i] {
			return true
		}
	}
	return false
}

// Candidate is a proposed entity submitted for resolution. It carries no node
// id; the cascade decides whether it maps onto an existing node.
type Candidate struct {
	Label      Label          `json:"label"`
	StableID   string         `json:"stable_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Resolution factor tags explaining how a candidate was matched.
const (
	FactorStableID         = "stable_id_match"
	FactorNameExact        = "name_exact"
	FactorExternalResolver = "external_resolver"
	FactorNewEntity        = "new_entity"
)

// Resolution is the outcome of resolving a candidate: the matched-or-created
// node id, a confidence in [0,1], the factors behind the decision, and
// whether a new node was created.
type Resolution struct {
	NodeID     string   `json:"node_id"`
	Confidence float64  `json:"confidence"`
	Factors    []string `json:"factors"`
	IsNew      bool     `json:"is_new"`
}
