// Package focus computes the weakly connected component of a selected node.
// The display surface keeps in-component elements at full weight and dims
// everything else; nothing is removed from the graph.
package focus

import "github.com/brandlens/lattice/internal/core/model"

// Component returns the set of nodes reachable from seed treating every
// edge as bidirectional, the seed included. An unknown seed yields an
// empty set.
func Component(g model.Graph, seed string) map[string]bool {
	present := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		present[n.ID] = true
	}
	if !present[seed] {
		return map[string]bool{}
	}

	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if !present[e.SourceID] || !present[e.TargetID] {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		adj[e.TargetID] = append(adj[e.TargetID], e.SourceID)
	}

	component := map[string]bool{seed: true}
	queue := []string{seed}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if !component[v] {
				component[v] = true
				queue = append(queue, v)
			}
		}
	}
	return component
}
