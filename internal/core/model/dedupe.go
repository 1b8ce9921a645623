package model

// Recommendation labels a duplicate candidate for the operator.
type Recommendation string

const (
	RecommendAutoMerge Recommendation = "auto_merge"
	RecommendReview    Recommendation = "review"
)

// DuplicateCandidate pairs a primary node (kept on merge) with a secondary
// node (absorbed on merge). Candidates are ephemeral: recomputed on demand,
// never stored as graph entities.
type DuplicateCandidate struct {
	PrimaryID      string         `json:"primary"`
	SecondaryID    string         `json:"secondary"`
	Similarity     float64        `json:"similarity"`
	Recommendation Recommendation `json:"recommendation"`
}
