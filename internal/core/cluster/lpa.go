// Package cluster groups related insights into themes with label
// propagation, so the display surface can offer a clustered view of the
// brand graph. Clusters are a derived view: recomputed on demand, never
// persisted.
package cluster

import (
	"sort"

	"github.com/brandlens/lattice/internal/core/model"
)

// Detector runs label propagation over the undirected view of the graph.
type Detector struct {
	MaxIterations int
}

func NewDetector() *Detector {
	return &Detector{MaxIterations: 20}
}

// Cluster is one detected theme.
type Cluster struct {
	Label string       `json:"label"`
	Nodes []model.Node `json:"nodes"`
}

// Detect returns clusters of two or more nodes. Parallel edges between a
// pair count as a stronger connection. Ties break on the lexicographically
// largest label so repeated runs agree.
func (d *Detector) Detect(g model.Graph) []Cluster {
	if len(g.Nodes) == 0 {
		return nil
	}

	nodeMap := make(map[string]model.Node, len(g.Nodes))
	adj := make(map[string]map[string]int, len(g.Nodes))
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = make(map[string]int)
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	for _, e := range g.Edges {
		if _, ok := nodeMap[e.SourceID]; !ok {
			continue
		}
		if _, ok := nodeMap[e.TargetID]; !ok {
			continue
		}
		adj[e.SourceID][e.TargetID]++
		adj[e.TargetID][e.SourceID]++
	}

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			max := 0
			for v, weight := range neighbors {
				label := labels[v]
				counts[label] += weight
				if counts[label] > max {
					max = counts[label]
				}
			}

			var tied []string
			for label, count := range counts {
				if count == max {
					tied = append(tied, label)
				}
			}
			sort.Strings(tied)
			best := tied[len(tied)-1]

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]model.Node)
	for _, id := range ids {
		grouped[labels[id]] = append(grouped[labels[id]], nodeMap[id])
	}

	var clusters []Cluster
	for label, members := range grouped {
		if len(members) < 2 {
			continue
		}
		clusters = append(clusters, Cluster{Label: label, Nodes: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Label < clusters[j].Label })
	return clusters
}
