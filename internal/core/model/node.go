package model

// NodeType tags an insight node with its place in the brand taxonomy.
type NodeType string

const (
	NodeKeyMessage         NodeType = "key_message"
	NodeValueProposition   NodeType = "value_proposition"
	NodeDifferentiator     NodeType = "differentiator"
	NodeProofPoint         NodeType = "proof_point"
	NodeEpidemiologyFact   NodeType = "epidemiology_fact"
	NodeSymptomBurden      NodeType = "symptom_burden"
	NodeTreatmentLandscape NodeType = "treatment_landscape"
	NodeUnmetNeed          NodeType = "unmet_need"
	NodePatientMotivation  NodeType = "patient_motivation"
	NodePatientBelief      NodeType = "patient_belief"
	NodePatientTension     NodeType = "patient_tension"
	NodeJourneyInsight     NodeType = "journey_insight"
	NodePrescribingDriver  NodeType = "prescribing_driver"
	NodeClinicalConcern    NodeType = "clinical_concern"
	NodePracticeConstraint NodeType = "practice_constraint"
	NodeCompetitorPosition NodeType = "competitor_position"
	NodeMarketBarrier      NodeType = "market_barrier"
)

// Node is a single insight statement extracted from a source document.
// Content is immutable except through explicit edit or merge operations.
type Node struct {
	ID               string   `json:"id"`
	Type             NodeType `json:"node_type"`
	Text             string   `json:"text"`
	SourceQuote      string   `json:"source_quote,omitempty"`
	Segment          string   `json:"segment,omitempty"`
	Confidence       float64  `json:"confidence"`
	Verified         bool     `json:"verified"`
	SourceDocumentID string   `json:"source_document_id,omitempty"`
}
