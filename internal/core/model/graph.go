package model

// Stats are derived counts recomputed after every mutation.
type Stats struct {
	NodeCount          int              `json:"node_count"`
	EdgeCount          int              `json:"edge_count"`
	ContradictionCount int              `json:"contradiction_count"`
	CountsByType       map[NodeType]int `json:"counts_by_type"`
}

// Graph is the node and edge set for one brand context.
type Graph struct {
	BrandID string `json:"brand_id,omitempty"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Stats   Stats  `json:"stats"`
}

// ComputeStats derives stats from the given node and edge sets.
func ComputeStats(nodes []Node, edges []Edge) Stats {
	s := Stats{
		NodeCount:    len(nodes),
		EdgeCount:    len(edges),
		CountsByType: make(map[NodeType]int),
	}
	for _, n := range nodes {
		s.CountsByType[n.Type]++
	}
	for _, e := range edges {
		if e.Relation == RelationContradicts {
			s.ContradictionCount++
		}
	}
	return s
}
