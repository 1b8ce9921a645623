// Package store holds the canonical node and edge set for one brand context
// and applies the mutations the curation workflow needs. All structural
// validation happens here: an invalid operation returns a sentinel error and
// leaves the store untouched.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brandlens/lattice/internal/core/model"
)

var (
	// ErrNodeNotFound is returned when an operation references an id that
	// does not exist in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSelfMerge is returned when a merge lists the primary among its
	// secondaries.
	ErrSelfMerge = errors.New("cannot merge a node into itself")
)

// Store indexes one brand graph by node id, node type, and segment.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	brandID   string
	nodes     map[string]model.Node
	edges     []model.Edge
	edgeKeys  map[model.EdgeKey]bool
	byType    map[model.NodeType][]string
	bySegment map[string][]string
	stats     model.Stats
}

// LoadReport describes what Load had to discard.
type LoadReport struct {
	DroppedEdges   []model.Edge
	DuplicateEdges int
}

// MergeResult records a completed merge, with enough prior state to undo it.
type MergeResult struct {
	PrimaryID    string
	AbsorbedIDs  []string
	SkippedIDs   []string
	RemovedNodes []model.Node
	prevEdges    []model.Edge
}

// Absorbed reports how many secondaries the merge actually consumed.
func (r *MergeResult) Absorbed() int { return len(r.AbsorbedIDs) }

// DeleteResult records a completed delete, with enough prior state to undo it.
type DeleteResult struct {
	RemovedNode model.Node
	prevEdges   []model.Edge
}

// EditResult records a completed edit, with the node as it was before.
type EditResult struct {
	Prev model.Node
}

// EditPatch carries the mutable fields of a manual node edit. Nil fields
// are left unchanged.
type EditPatch struct {
	Text     *string
	Segment  *string
	Verified *bool
}

func New() *Store {
	s := &Store{}
	s.reset("")
	return s
}

func (s *Store) reset(brandID string) {
	s.brandID = brandID
	s.nodes = make(map[string]model.Node)
	s.edges = nil
	s.edgeKeys = make(map[model.EdgeKey]bool)
	s.byType = make(map[model.NodeType][]string)
	s.bySegment = make(map[string][]string)
	s.stats = model.ComputeStats(nil, nil)
}

// Load replaces the store contents with a fresh snapshot. Edges whose source
// or target does not reference a loaded node are dropped and reported, as
// are exact (source, target, relation_type) duplicates.
func (s *Store) Load(brandID string, nodes []model.Node, edges []model.Edge) *LoadReport {
	s.reset(brandID)

	report := &LoadReport{}
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		s.nodes[n.ID] = n
	}
	for _, e := range edges {
		if _, ok := s.nodes[e.SourceID]; !ok {
			report.DroppedEdges = append(report.DroppedEdges, e)
			continue
		}
		if _, ok := s.nodes[e.TargetID]; !ok {
			report.DroppedEdges = append(report.DroppedEdges, e)
			continue
		}
		if s.edgeKeys[e.Key()] {
			report.DuplicateEdges++
			continue
		}
		s.edgeKeys[e.Key()] = true
		s.edges = append(s.edges, e)
	}

	s.reindex()
	return report
}

// ApplyMerge absorbs every node in secondaryIDs into primaryID: their edges
// are rewritten to reference the primary, rewrite-induced self-loops and
// duplicate edges are dropped, and the secondary nodes are deleted. The
// operation is atomic: validation happens before any mutation. Secondaries
// that no longer exist are skipped, not errors, so a re-sent merge is a
// no-op.
func (s *Store) ApplyMerge(primaryID string, secondaryIDs []string) (*MergeResult, error) {
	if _, ok := s.nodes[primaryID]; !ok {
		return nil, fmt.Errorf("merge primary %q: %w", primaryID, ErrNodeNotFound)
	}

	res := &MergeResult{PrimaryID: primaryID}
	absorb := make(map[string]bool)
	for _, id := range secondaryIDs {
		if id == primaryID {
			return nil, fmt.Errorf("merge %q: %w", primaryID, ErrSelfMerge)
		}
		if _, ok := s.nodes[id]; !ok {
			res.SkippedIDs = append(res.SkippedIDs, id)
			continue
		}
		if !absorb[id] {
			absorb[id] = true
			res.AbsorbedIDs = append(res.AbsorbedIDs, id)
		}
	}
	if len(absorb) == 0 {
		return res, nil
	}

	res.prevEdges = append([]model.Edge(nil), s.edges...)
	for id := range absorb {
		res.RemovedNodes = append(res.RemovedNodes, s.nodes[id])
	}
	sort.Slice(res.RemovedNodes, func(i, j int) bool {
		return res.RemovedNodes[i].ID < res.RemovedNodes[j].ID
	})

	var rewritten []model.Edge
	keys := make(map[model.EdgeKey]bool)
	for _, e := range s.edges {
		if absorb[e.SourceID] {
			e.SourceID = primaryID
		}
		if absorb[e.TargetID] {
			e.TargetID = primaryID
		}
		if e.SourceID == e.TargetID {
			// A primary<->secondary edge collapses on rewrite.
			continue
		}
		if keys[e.Key()] {
			continue
		}
		keys[e.Key()] = true
		rewritten = append(rewritten, e)
	}

	for id := range absorb {
		delete(s.nodes, id)
	}
	s.edges = rewritten
	s.edgeKeys = keys
	s.reindex()
	return res, nil
}

// ApplyDelete removes the node and every edge touching it.
func (s *Store) ApplyDelete(id string) (*DeleteResult, error) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("delete %q: %w", id, ErrNodeNotFound)
	}

	res := &DeleteResult{
		RemovedNode: node,
		prevEdges:   append([]model.Edge(nil), s.edges...),
	}

	var kept []model.Edge
	keys := make(map[model.EdgeKey]bool)
	for _, e := range s.edges {
		if e.SourceID == id || e.TargetID == id {
			continue
		}
		keys[e.Key()] = true
		kept = append(kept, e)
	}

	delete(s.nodes, id)
	s.edges = kept
	s.edgeKeys = keys
	s.reindex()
	return res, nil
}

// ApplyEdit updates the mutable content fields of a node.
func (s *Store) ApplyEdit(id string, patch EditPatch) (*EditResult, error) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("edit %q: %w", id, ErrNodeNotFound)
	}

	res := &EditResult{Prev: node}
	if patch.Text != nil {
		node.Text = *patch.Text
	}
	if patch.Segment != nil {
		node.Segment = *patch.Segment
	}
	if patch.Verified != nil {
		node.Verified = *patch.Verified
	}
	s.nodes[id] = node
	s.reindex()
	return res, nil
}

// UndoMerge restores the node and edge set from before the given merge.
func (s *Store) UndoMerge(res *MergeResult) {
	if res == nil || len(res.AbsorbedIDs) == 0 {
		return
	}
	for _, n := range res.RemovedNodes {
		s.nodes[n.ID] = n
	}
	s.restoreEdges(res.prevEdges)
}

// UndoDelete restores the node and edge set from before the given delete.
func (s *Store) UndoDelete(res *DeleteResult) {
	if res == nil {
		return
	}
	s.nodes[res.RemovedNode.ID] = res.RemovedNode
	s.restoreEdges(res.prevEdges)
}

// UndoEdit restores the node content from before the given edit.
func (s *Store) UndoEdit(res *EditResult) {
	if res == nil {
		return
	}
	s.nodes[res.Prev.ID] = res.Prev
	s.reindex()
}

func (s *Store) restoreEdges(prev []model.Edge) {
	s.edges = append([]model.Edge(nil), prev...)
	s.edgeKeys = make(map[model.EdgeKey]bool, len(prev))
	for _, e := range prev {
		s.edgeKeys[e.Key()] = true
	}
	s.reindex()
}

func (s *Store) reindex() {
	s.byType = make(map[model.NodeType][]string)
	s.bySegment = make(map[string][]string)
	for id, n := range s.nodes {
		s.byType[n.Type] = append(s.byType[n.Type], id)
		if n.Segment != "" {
			s.bySegment[n.Segment] = append(s.bySegment[n.Segment], id)
		}
	}
	for _, ids := range s.byType {
		sort.Strings(ids)
	}
	for _, ids := range s.bySegment {
		sort.Strings(ids)
	}
	s.stats = model.ComputeStats(s.nodeSlice(), s.edges)
}

func (s *Store) nodeSlice() []model.Node {
	nodes := make([]model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// BrandID returns the brand context the current snapshot belongs to.
func (s *Store) BrandID() string { return s.brandID }

// Node looks up a single node by id.
func (s *Store) Node(id string) (model.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by id.
func (s *Store) Nodes() []model.Node { return s.nodeSlice() }

// Edges returns a copy of the current edge set.
func (s *Store) Edges() []model.Edge {
	return append([]model.Edge(nil), s.edges...)
}

// NodesByType returns the ids of every node carrying the given type tag.
func (s *Store) NodesByType(t model.NodeType) []string {
	return append([]string(nil), s.byType[t]...)
}

// NodesBySegment returns the ids of every node carrying the given raw
// segment label.
func (s *Store) NodesBySegment(segment string) []string {
	return append([]string(nil), s.bySegment[segment]...)
}

// Stats returns the derived counts for the current snapshot.
func (s *Store) Stats() model.Stats { return s.stats }

// Graph assembles the current snapshot as a value for the derivation
// engines (layout, filter, focus, dedupe), which never mutate it.
func (s *Store) Graph() model.Graph {
	return model.Graph{
		BrandID: s.brandID,
		Nodes:   s.nodeSlice(),
		Edges:   s.Edges(),
		Stats:   s.stats,
	}
}
