// Package core owns one viewing session per brand context: it pulls
// snapshots through the sync client into the store and derives everything
// the display surface needs (layout, filtering, focus, duplicate
// candidates, clusters). Mutations are optimistic: applied locally first,
// then pushed to the backend; a backend failure leaves the local change in
// place but reports it as unconfirmed so the operator layer can decide.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandlens/lattice/internal/core/cluster"
	"github.com/brandlens/lattice/internal/core/dedupe"
	"github.com/brandlens/lattice/internal/core/filter"
	"github.com/brandlens/lattice/internal/core/focus"
	"github.com/brandlens/lattice/internal/core/layout"
	"github.com/brandlens/lattice/internal/core/model"
	"github.com/brandlens/lattice/internal/core/store"
	"github.com/brandlens/lattice/internal/graphsync"
)

// ErrNotLatestMutation is returned when a rollback targets anything but the
// most recent live mutation; earlier changes may have later ones layered on
// top.
var ErrNotLatestMutation = errors.New("only the latest mutation can be rolled back")

type MutationKind string

const (
	MutationMerge     MutationKind = "merge"
	MutationAutoMerge MutationKind = "auto_merge"
	MutationDelete    MutationKind = "delete"
	MutationEdit      MutationKind = "edit"
)

type MutationStatus string

const (
	// MutationConfirmed means the backend accepted the change.
	MutationConfirmed MutationStatus = "confirmed"
	// MutationUnconfirmed means the local change is applied but the
	// backend push failed; the operator layer decides whether to roll back.
	MutationUnconfirmed MutationStatus = "unconfirmed"
	MutationRolledBack  MutationStatus = "rolled_back"
)

// Mutation is the two-phase record of one optimistic local change. Session
// methods hand out value copies; the live records stay behind the session
// mutex.
type Mutation struct {
	ID     string         `json:"id"`
	Kind   MutationKind   `json:"kind"`
	Status MutationStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
	Merged int            `json:"merged,omitempty"`
}

// mutation pairs the exported record with its undo command.
type mutation struct {
	Mutation
	undo func()
}

// Session is the single logical owner of one brand's GraphStore. Methods
// are safe to call from concurrent HTTP handlers; internally everything is
// serialized.
type Session struct {
	BrandID string

	// UUIDGenerator is swappable for deterministic tests.
	UUIDGenerator func() string

	mu        sync.Mutex
	store     *store.Store
	sync      *graphsync.Client
	resolver  *dedupe.Resolver
	clusters  *cluster.Detector
	layoutCfg layout.Config
	log       *zap.SugaredLogger

	loaded     bool
	generation int
	focusID    string
	mutations  []*mutation
}

func NewSession(brandID string, syncClient *graphsync.Client, layoutCfg layout.Config, autoMergeThreshold float64, log *zap.SugaredLogger) *Session {
	st := store.New()
	return &Session{
		BrandID:       brandID,
		UUIDGenerator: func() string { return uuid.New().String() },
		store:         st,
		sync:          syncClient,
		resolver:      dedupe.NewResolver(st, autoMergeThreshold),
		clusters:      cluster.NewDetector(),
		layoutCfg:     layoutCfg,
		log:           log.With("brand_id", brandID),
	}
}

// Refresh pulls a fresh snapshot. On fetch failure the previously loaded
// graph stays fully usable. A refresh started after this one supersedes it:
// the late response is discarded instead of clobbering newer data.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	snap, err := s.sync.FetchSnapshot(ctx, s.BrandID)
	if err != nil {
		return fmt.Errorf("refresh brand %s: %w", s.BrandID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Debugw("discarding superseded snapshot", "generation", gen)
		return nil
	}

	report := s.store.Load(s.BrandID, snap.Nodes, snap.Edges)
	if len(report.DroppedEdges) > 0 {
		s.log.Warnw("dropped edges referencing missing nodes", "count", len(report.DroppedEdges))
	}
	s.loaded = true
	s.focusID = ""
	s.mutations = nil
	return nil
}

// Loaded reports whether a snapshot has been loaded into this session.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Stats returns the derived counts for the current snapshot.
func (s *Session) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Stats()
}

// ViewNode is one node prepared for display.
type ViewNode struct {
	model.Node
	Position model.Position `json:"position"`
	Style    model.Style    `json:"style"`
	Dimmed   bool           `json:"dimmed"`
}

// View is the displayable subgraph for the current predicates and focus.
type View struct {
	BrandID    string       `json:"brand_id"`
	Nodes      []ViewNode   `json:"nodes"`
	Edges      []model.Edge `json:"edges"`
	Stats      model.Stats  `json:"stats"`
	FocusID    string       `json:"focus_id,omitempty"`
	Attachment string       `json:"attachment"`
	Width      float64      `json:"width"`
	Height     float64      `json:"height"`
}

// View derives the visible subgraph, positions it, and applies focus
// dimming. Filtering happens first; focus dims only within the filtered
// subgraph. An empty or unloaded graph yields an empty view.
func (s *Session) View(opts filter.Options) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.store.Graph()
	visible := filter.Apply(g, opts)

	sub := model.Graph{BrandID: g.BrandID, Edges: visible.Edges}
	for _, n := range g.Nodes {
		if visible.Nodes[n.ID] {
			sub.Nodes = append(sub.Nodes, n)
		}
	}

	engine := layout.NewEngine(s.layoutCfg)
	placed := engine.Layout(sub)

	var component map[string]bool
	if s.focusID != "" {
		component = focus.Component(sub, s.focusID)
	}

	view := &View{
		BrandID:    s.BrandID,
		Edges:      sub.Edges,
		Stats:      g.Stats,
		FocusID:    s.focusID,
		Attachment: placed.Attachment,
		Width:      placed.Width,
		Height:     placed.Height,
	}
	for _, n := range sub.Nodes {
		view.Nodes = append(view.Nodes, ViewNode{
			Node:     n,
			Position: placed.Positions[n.ID],
			Style:    model.StyleFor(n.Type),
			Dimmed:   component != nil && !component[n.ID],
		})
	}
	return view
}

// ToggleFocus selects a node's connected component for highlighting, or
// clears focus when the node is already focused. Returns the focused node
// id, empty when focus is now off.
func (s *Session) ToggleFocus(nodeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focusID == nodeID {
		s.focusID = ""
		return "", nil
	}
	if _, ok := s.store.Node(nodeID); !ok {
		return s.focusID, fmt.Errorf("focus %q: %w", nodeID, store.ErrNodeNotFound)
	}
	s.focusID = nodeID
	return s.focusID, nil
}

// SetLayoutDirection switches the rank axis for subsequent views.
func (s *Session) SetLayoutDirection(dir layout.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutCfg.Direction = dir
}

// Duplicates recomputes duplicate candidates at the given threshold.
func (s *Session) Duplicates(threshold float64) []model.DuplicateCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Candidates(threshold)
}

// Contradictions lists conflicting insight pairs for operator review.
func (s *Session) Contradictions() []dedupe.Contradiction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Contradictions()
}

// Clusters groups related insights into themes.
func (s *Session) Clusters() []cluster.Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clusters.Detect(s.store.Graph())
}

// Merge absorbs secondaries into the primary locally, then pushes the
// change to the backend. Structural errors reject without mutating; a
// backend failure leaves the mutation unconfirmed.
func (s *Session) Merge(ctx context.Context, primaryID string, secondaryIDs []string) (Mutation, error) {
	s.mu.Lock()
	res, err := s.resolver.Merge(primaryID, secondaryIDs)
	if err != nil {
		s.mu.Unlock()
		return Mutation{}, err
	}
	s.clearFocusIfAbsorbed(res)
	m := &mutation{
		Mutation: Mutation{
			ID:     s.UUIDGenerator(),
			Kind:   MutationMerge,
			Status: MutationConfirmed,
			Merged: res.Absorbed(),
		},
		undo: func() { s.store.UndoMerge(res) },
	}
	s.mutations = append(s.mutations, m)
	snap := m.Mutation
	s.mu.Unlock()

	if res.Absorbed() == 0 {
		return snap, nil
	}
	return s.push(ctx, m, func() error {
		return s.sync.MergeNodes(ctx, s.BrandID, primaryID, res.AbsorbedIDs)
	}), nil
}

// Delete removes a node locally, then pushes the change to the backend.
func (s *Session) Delete(ctx context.Context, nodeID string) (Mutation, error) {
	s.mu.Lock()
	res, err := s.resolver.Delete(nodeID)
	if err != nil {
		s.mu.Unlock()
		return Mutation{}, err
	}
	if s.focusID == nodeID {
		s.focusID = ""
	}
	m := &mutation{
		Mutation: Mutation{
			ID:     s.UUIDGenerator(),
			Kind:   MutationDelete,
			Status: MutationConfirmed,
		},
		undo: func() { s.store.UndoDelete(res) },
	}
	s.mutations = append(s.mutations, m)
	s.mu.Unlock()

	return s.push(ctx, m, func() error {
		return s.sync.DeleteNode(ctx, s.BrandID, nodeID)
	}), nil
}

// Edit updates a node's text, segment, or verified flag locally, then
// pushes the change to the backend.
func (s *Session) Edit(ctx context.Context, nodeID string, patch store.EditPatch) (Mutation, error) {
	s.mu.Lock()
	res, err := s.store.ApplyEdit(nodeID, patch)
	if err != nil {
		s.mu.Unlock()
		return Mutation{}, err
	}
	updated, _ := s.store.Node(nodeID)
	m := &mutation{
		Mutation: Mutation{
			ID:     s.UUIDGenerator(),
			Kind:   MutationEdit,
			Status: MutationConfirmed,
		},
		undo: func() { s.store.UndoEdit(res) },
	}
	s.mutations = append(s.mutations, m)
	s.mu.Unlock()

	return s.push(ctx, m, func() error {
		return s.sync.UpdateNode(ctx, s.BrandID, updated)
	}), nil
}

// AutoMerge merges every high-confidence duplicate pair in one batch,
// first-encountered wins, then pushes each merge to the backend.
func (s *Session) AutoMerge(ctx context.Context, threshold float64) (Mutation, error) {
	s.mu.Lock()
	merged, results, err := s.resolver.AutoMerge(threshold)
	if err != nil {
		s.mu.Unlock()
		return Mutation{}, err
	}
	for _, res := range results {
		s.clearFocusIfAbsorbed(res)
	}
	m := &mutation{
		Mutation: Mutation{
			ID:     s.UUIDGenerator(),
			Kind:   MutationAutoMerge,
			Status: MutationConfirmed,
			Merged: merged,
		},
		undo: func() {
			for i := len(results) - 1; i >= 0; i-- {
				s.store.UndoMerge(results[i])
			}
		},
	}
	s.mutations = append(s.mutations, m)
	snap := m.Mutation
	s.mu.Unlock()

	if merged == 0 {
		return snap, nil
	}
	return s.push(ctx, m, func() error {
		for _, res := range results {
			if err := s.sync.MergeNodes(ctx, s.BrandID, res.PrimaryID, res.AbsorbedIDs); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// clearFocusIfAbsorbed drops focus when the focused node was merged away.
// Caller holds the lock.
func (s *Session) clearFocusIfAbsorbed(res *store.MergeResult) {
	if s.focusID == "" {
		return
	}
	for _, id := range res.AbsorbedIDs {
		if id == s.focusID {
			s.focusID = ""
			return
		}
	}
}

// push runs the backend call for an optimistic mutation, records the
// outcome, and returns a snapshot of the record.
func (s *Session) push(ctx context.Context, m *mutation, call func() error) Mutation {
	err := call()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		m.Status = MutationUnconfirmed
		m.Error = err.Error()
		s.log.Warnw("backend rejected mutation, local change unconfirmed",
			"mutation_id", m.ID, "kind", m.Kind, "error", err)
		return m.Mutation
	}
	m.Status = MutationConfirmed
	return m.Mutation
}

// Mutations returns value copies of the mutation log, newest last.
func (s *Session) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mutation, len(s.mutations))
	for i, m := range s.mutations {
		out[i] = m.Mutation
	}
	return out
}

// Rollback reverts the most recent live mutation. Older mutations cannot be
// reverted out of order; later changes may depend on them.
func (s *Session) Rollback(mutationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.mutations) - 1; i >= 0; i-- {
		m := s.mutations[i]
		if m.Status == MutationRolledBack {
			continue
		}
		if m.ID != mutationID {
			return fmt.Errorf("rollback %q: %w", mutationID, ErrNotLatestMutation)
		}
		m.undo()
		m.Status = MutationRolledBack
		return nil
	}
	return fmt.Errorf("rollback %q: %w", mutationID, ErrNotLatestMutation)
}
