// Package layout computes a 2D position for every node using a layered
// graph drawing: rank assignment, ordering within ranks, then coordinate
// assignment. Cycles are broken deterministically before ranking so the
// engine terminates on any input, and disconnected components are laid out
// independently and packed without overlap.
package layout

import (
	"sort"

	"github.com/brandlens/lattice/internal/core/model"
)

// Direction controls which axis ranks advance along.
type Direction string

const (
	DirectionTopDown   Direction = "top_down"
	DirectionLeftRight Direction = "left_right"
)

// Attachment hints which card sides the chrome should route edges between.
const (
	AttachTopToBottom = "top-to-bottom"
	AttachLeftToRight = "left-to-right"
)

// Config sizes the per-node bounding box and the gaps between boxes.
type Config struct {
	NodeWidth    float64
	NodeHeight   float64
	NodeSpacing  float64 // between nodes within a rank
	RankSpacing  float64 // between ranks
	ComponentGap float64 // between disconnected components
	Sweeps       int     // ordering passes per component
	Direction    Direction
}

// DefaultConfig matches the display card the chrome draws.
func DefaultConfig() Config {
	return Config{
		NodeWidth:    280,
		NodeHeight:   140,
		NodeSpacing:  60,
		RankSpacing:  120,
		ComponentGap: 160,
		Sweeps:       4,
		Direction:    DirectionTopDown,
	}
}

// Result maps every node to a finite position for one graph snapshot.
type Result struct {
	Positions  map[string]model.Position `json:"positions"`
	Attachment string                    `json:"attachment"`
	Width      float64                   `json:"width"`
	Height     float64                   `json:"height"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Sweeps <= 0 {
		cfg.Sweeps = 4
	}
	return &Engine{cfg: cfg}
}

// Layout positions every node in the graph. The empty graph yields an empty
// position map.
func (e *Engine) Layout(g model.Graph) *Result {
	res := &Result{
		Positions:  make(map[string]model.Position, len(g.Nodes)),
		Attachment: AttachTopToBottom,
	}
	if e.cfg.Direction == DirectionLeftRight {
		res.Attachment = AttachLeftToRight
	}
	if len(g.Nodes) == 0 {
		return res
	}

	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	// Directed adjacency deduplicated per ordered pair; parallel edges with
	// different relation types count once for drawing purposes.
	out := make(map[string][]string)
	in := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, edge := range g.Edges {
		if !present[edge.SourceID] || !present[edge.TargetID] || edge.SourceID == edge.TargetID {
			continue
		}
		pair := [2]string{edge.SourceID, edge.TargetID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		out[edge.SourceID] = append(out[edge.SourceID], edge.TargetID)
		in[edge.TargetID] = append(in[edge.TargetID], edge.SourceID)
	}
	for _, adj := range out {
		sort.Strings(adj)
	}
	for _, adj := range in {
		sort.Strings(adj)
	}

	var cursor float64
	for _, comp := range components(ids, out, in) {
		w, h := e.layoutComponent(comp, out, in, cursor, res.Positions)
		if e.cfg.Direction == DirectionLeftRight {
			cursor += h + e.cfg.ComponentGap
			if w > res.Width {
				res.Width = w
			}
			res.Height = cursor - e.cfg.ComponentGap
		} else {
			cursor += w + e.cfg.ComponentGap
			if h > res.Height {
				res.Height = h
			}
			res.Width = cursor - e.cfg.ComponentGap
		}
	}
	return res
}

// components splits the node set into weakly connected components, each
// sorted by id, ordered by their smallest member for determinism.
func components(ids []string, out, in map[string][]string) [][]string {
	visited := make(map[string]bool, len(ids))
	var comps [][]string
	for _, id := range ids {
		if visited[id] {
			continue
		}
		var comp []string
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			comp = append(comp, u)
			for _, v := range out[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
			for _, v := range in[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}
		sort.Strings(comp)
		comps = append(comps, comp)
	}
	return comps
}

// layoutComponent ranks, orders, and positions one component, writing into
// positions offset by origin along the packing axis. Returns the component
// extent (width, height) in top-down orientation terms.
func (e *Engine) layoutComponent(comp []string, out, in map[string][]string, origin float64, positions map[string]model.Position) (float64, float64) {
	inComp := make(map[string]bool, len(comp))
	for _, id := range comp {
		inComp[id] = true
	}

	forward := breakCycles(comp, out, inComp)
	rank := assignRanks(comp, forward)

	maxRank := 0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}
	rows := make([][]string, maxRank+1)
	for _, id := range comp {
		rows[rank[id]] = append(rows[rank[id]], id)
	}
	for _, row := range rows {
		sort.Strings(row)
	}

	e.orderRows(rows, forward)

	// Coordinates: ranks advance along the main axis, rows are centered on
	// the cross axis relative to the widest row.
	step := e.cfg.NodeWidth + e.cfg.NodeSpacing
	maxRow := 0.0
	for _, row := range rows {
		w := float64(len(row))*step - e.cfg.NodeSpacing
		if w > maxRow {
			maxRow = w
		}
	}
	for r, row := range rows {
		rowWidth := float64(len(row))*step - e.cfg.NodeSpacing
		offset := (maxRow - rowWidth) / 2
		for i, id := range row {
			cross := origin + offset + float64(i)*step
			main := float64(r) * (e.cfg.NodeHeight + e.cfg.RankSpacing)
			if e.cfg.Direction == DirectionLeftRight {
				positions[id] = model.Position{X: main, Y: cross}
			} else {
				positions[id] = model.Position{X: cross, Y: main}
			}
		}
	}

	height := float64(maxRank+1)*(e.cfg.NodeHeight+e.cfg.RankSpacing) - e.cfg.RankSpacing
	if e.cfg.Direction == DirectionLeftRight {
		return height, maxRow
	}
	return maxRow, height
}

// breakCycles returns the forward adjacency with back edges removed. A DFS
// in sorted order classifies any edge into a node still on the stack as a
// back edge; those edges keep rendering but do not participate in ranking.
func breakCycles(comp []string, out map[string][]string, inComp map[string]bool) map[string][]string {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(comp))
	forward := make(map[string][]string, len(comp))

	var visit func(u string)
	visit = func(u string) {
		state[u] = onStack
		for _, v := range out[u] {
			if !inComp[v] {
				continue
			}
			if state[v] == onStack {
				continue // back edge
			}
			forward[u] = append(forward[u], v)
			if state[v] == unvisited {
				visit(v)
			}
		}
		state[u] = done
	}

	for _, id := range comp {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return forward
}

// assignRanks runs longest-path ranking over the acyclic forward edges so
// every edge points from a lower rank to a strictly higher one.
func assignRanks(comp []string, forward map[string][]string) map[string]int {
	indeg := make(map[string]int, len(comp))
	for _, id := range comp {
		indeg[id] = 0
	}
	for _, targets := range forward {
		for _, v := range targets {
			indeg[v]++
		}
	}

	rank := make(map[string]int, len(comp))
	var queue []string
	for _, id := range comp {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range forward[u] {
			if rank[u]+1 > rank[v] {
				rank[v] = rank[u] + 1
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return rank
}

// orderRows reduces crossings with alternating barycenter sweeps: each node
// moves toward the average index of its neighbors in the fixed adjacent row.
func (e *Engine) orderRows(rows [][]string, forward map[string][]string) {
	if len(rows) < 2 {
		return
	}

	// Reverse adjacency restricted to forward edges.
	backward := make(map[string][]string)
	for u, targets := range forward {
		for _, v := range targets {
			backward[v] = append(backward[v], u)
		}
	}

	index := make(map[string]int)
	rebuild := func(row []string) {
		for i, id := range row {
			index[id] = i
		}
	}
	for _, row := range rows {
		rebuild(row)
	}

	sortRow := func(row []string, neighbors map[string][]string) {
		bary := make(map[string]float64, len(row))
		for i, id := range row {
			adj := neighbors[id]
			if len(adj) == 0 {
				bary[id] = float64(i)
				continue
			}
			sum := 0.0
			for _, n := range adj {
				sum += float64(index[n])
			}
			bary[id] = sum / float64(len(adj))
		}
		sort.SliceStable(row, func(i, j int) bool { return bary[row[i]] < bary[row[j]] })
		rebuild(row)
	}

	for sweep := 0; sweep < e.cfg.Sweeps; sweep++ {
		if sweep%2 == 0 {
			for r := 1; r < len(rows); r++ {
				sortRow(rows[r], backward)
			}
		} else {
			for r := len(rows) - 2; r >= 0; r-- {
				sortRow(rows[r], forward)
			}
		}
	}
}
