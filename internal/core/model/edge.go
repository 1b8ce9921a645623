package model

// RelationType tags a directed relationship between two insight nodes.
type RelationType string

const (
	RelationAddresses   RelationType = "addresses"
	RelationSupports    RelationType = "supports"
	RelationContradicts RelationType = "contradicts"
	RelationTriggers    RelationType = "triggers"
	RelationInfluences  RelationType = "influences"
	RelationResonates   RelationType = "resonates"
)

// Edge is a directed, typed link between two nodes. Multiple edges between
// the same ordered pair are allowed as long as the relation type differs;
// identical (source, target, relation_type) triples are equivalent.
type Edge struct {
	ID       string       `json:"id,omitempty"`
	SourceID string       `json:"source"`
	TargetID string       `json:"target"`
	Relation RelationType `json:"relation_type"`
	Strength float64      `json:"strength,omitempty"`
	Context  string       `json:"context,omitempty"`
}

// EdgeKey identifies an edge up to the equivalence the store enforces.
type EdgeKey struct {
	SourceID string
	TargetID string
	Relation RelationType
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, TargetID: e.TargetID, Relation: e.Relation}
}
