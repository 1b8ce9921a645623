package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandlens/lattice/internal/core/filter"
	"github.com/brandlens/lattice/internal/core/layout"
	"github.com/brandlens/lattice/internal/core/model"
	"github.com/brandlens/lattice/internal/core/store"
	"github.com/brandlens/lattice/internal/driver"
	"github.com/brandlens/lattice/internal/graphsync"
)

func newTestSession(t *testing.T, d *mockDriver) *Session {
	t.Helper()
	log := zap.NewNop().Sugar()
	s := NewSession("brand-1", graphsync.NewClient(d, log), layout.DefaultConfig(), 0.85, log)

	seq := 0
	s.UUIDGenerator = func() string {
		seq++
		return fmt.Sprintf("mutation-%d", seq)
	}
	return s
}

// snapshotDriver serves a small graph: two near-duplicate key messages, an
// unmet need they address, and a contradicting clinical concern.
func snapshotDriver() *mockDriver {
	return &mockDriver{
		nodeRecords: []*neo4j.Record{
			nodeRecord("km-1", "key_message", "fast acting relief for chronic pain", 0.9),
			nodeRecord("km-2", "key_message", "fast acting relief for chronic pain daily", 0.8),
			nodeRecord("un-1", "unmet_need", "patients abandon slow treatments", 0.7),
			nodeRecord("cc-1", "clinical_concern", "interaction risk with statins", 0.6),
		},
		edgeRecords: []*neo4j.Record{
			edgeRecord("e1", "km-1", "un-1", "addresses"),
			edgeRecord("e2", "km-2", "un-1", "addresses"),
			edgeRecord("e3", "cc-1", "km-1", "contradicts"),
		},
	}
}

func TestRefreshLoadsSnapshot(t *testing.T) {
	s := newTestSession(t, snapshotDriver())

	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Loaded())

	stats := s.Stats()
	assert.Equal(t, 4, stats.NodeCount)
	assert.Equal(t, 3, stats.EdgeCount)
	assert.Equal(t, 1, stats.ContradictionCount)
}

func TestRefreshFailureKeepsPreviousGraph(t *testing.T) {
	d := snapshotDriver()
	s := newTestSession(t, d)
	require.NoError(t, s.Refresh(context.Background()))

	d.fetchErr = errors.New("connection reset")
	err := s.Refresh(context.Background())
	require.Error(t, err)

	assert.True(t, s.Loaded())
	assert.Equal(t, 4, s.Stats().NodeCount)
}

func TestViewPositionsAndStylesEveryNode(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	view := s.View(filter.Options{})
	require.Len(t, view.Nodes, 4)
	assert.Len(t, view.Edges, 3)

	seen := make(map[model.Position]bool)
	for _, vn := range view.Nodes {
		assert.NotEmpty(t, vn.Style.Label)
		assert.NotEmpty(t, vn.Style.Color)
		assert.False(t, vn.Dimmed)
		assert.False(t, seen[vn.Position], "node %s overlaps another", vn.ID)
		seen[vn.Position] = true
	}
}

func TestViewAppliesFilters(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	view := s.View(filter.Options{NodeTypes: []model.NodeType{model.NodeKeyMessage}})
	assert.Len(t, view.Nodes, 2)
	assert.Empty(t, view.Edges)
	// Stats describe the full graph, not the filtered view.
	assert.Equal(t, 4, view.Stats.NodeCount)
}

func TestToggleFocusDimsOutsideComponent(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	focused, err := s.ToggleFocus("km-1")
	require.NoError(t, err)
	assert.Equal(t, "km-1", focused)

	view := s.View(filter.Options{})
	for _, vn := range view.Nodes {
		// The whole sample graph is one component, so nothing dims.
		assert.False(t, vn.Dimmed, "node %s dimmed inside the focused component", vn.ID)
	}

	// Toggling the same node again clears focus.
	focused, err = s.ToggleFocus("km-1")
	require.NoError(t, err)
	assert.Empty(t, focused)
}

func TestToggleFocusUnknownNode(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("ghost")
	assert.ErrorIs(t, err, store.ErrNodeNotFound)
}

func TestFocusDimsDisconnectedNodes(t *testing.T) {
	d := snapshotDriver()
	d.nodeRecords = append(d.nodeRecords, nodeRecord("island", "market_barrier", "payer pushback", 0.5))
	s := newTestSession(t, d)
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("km-1")
	require.NoError(t, err)

	view := s.View(filter.Options{})
	dimmed := make(map[string]bool)
	for _, vn := range view.Nodes {
		dimmed[vn.ID] = vn.Dimmed
	}
	assert.True(t, dimmed["island"])
	assert.False(t, dimmed["km-1"])
	assert.False(t, dimmed["un-1"])
}

func TestMergeConfirmedOnBackendSuccess(t *testing.T) {
	d := snapshotDriver()
	s := newTestSession(t, d)
	require.NoError(t, s.Refresh(context.Background()))

	m, err := s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)

	assert.Equal(t, MutationConfirmed, m.Status)
	assert.Equal(t, 1, m.Merged)
	assert.Equal(t, 3, s.Stats().NodeCount)
	// Two rewrites plus one delete pushed for the absorbed node.
	assert.Equal(t, 3, d.pushCount())
}

func TestMergeUnconfirmedOnBackendFailure(t *testing.T) {
	d := snapshotDriver()
	d.pushErr = errors.New("write timeout")
	s := newTestSession(t, d)
	require.NoError(t, s.Refresh(context.Background()))

	m, err := s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)

	// The local change sticks; only the confirmation is withheld.
	assert.Equal(t, MutationUnconfirmed, m.Status)
	assert.NotEmpty(t, m.Error)
	assert.Equal(t, 3, s.Stats().NodeCount)
}

func TestMergeStructuralErrorDoesNotRecordMutation(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.Merge(context.Background(), "ghost", []string{"km-2"})
	assert.ErrorIs(t, err, store.ErrNodeNotFound)
	assert.Empty(t, s.Mutations())
}

func TestMergeAbsorbingFocusedNodeClearsFocus(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("km-2")
	require.NoError(t, err)

	_, err = s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)

	view := s.View(filter.Options{})
	assert.Empty(t, view.FocusID)
	for _, vn := range view.Nodes {
		assert.False(t, vn.Dimmed, "node %s dimmed with no focus active", vn.ID)
	}
}

func TestMergeKeepsFocusOnSurvivingPrimary(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("km-1")
	require.NoError(t, err)

	_, err = s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)

	assert.Equal(t, "km-1", s.View(filter.Options{}).FocusID)
}

func TestAutoMergeAbsorbingFocusedNodeClearsFocus(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	// km-2 is the lower-confidence near-duplicate, so the batch absorbs it.
	_, err := s.ToggleFocus("km-2")
	require.NoError(t, err)

	m, err := s.AutoMerge(context.Background(), 0.85)
	require.NoError(t, err)
	require.Equal(t, 1, m.Merged)

	view := s.View(filter.Options{})
	assert.Empty(t, view.FocusID)
	for _, vn := range view.Nodes {
		assert.False(t, vn.Dimmed, "node %s dimmed with no focus active", vn.ID)
	}
}

func TestDeleteClearsFocusOnDeletedNode(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("cc-1")
	require.NoError(t, err)

	_, err = s.Delete(context.Background(), "cc-1")
	require.NoError(t, err)

	view := s.View(filter.Options{})
	assert.Empty(t, view.FocusID)
	assert.Len(t, view.Nodes, 3)
}

func TestEditPushesUpdatedNode(t *testing.T) {
	d := snapshotDriver()
	s := newTestSession(t, d)
	require.NoError(t, s.Refresh(context.Background()))

	text := "rapid relief, once daily"
	m, err := s.Edit(context.Background(), "km-1", store.EditPatch{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, MutationConfirmed, m.Status)
	assert.Equal(t, 1, d.pushCount())
}

func TestAutoMergeReportsMergedCount(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	m, err := s.AutoMerge(context.Background(), 0.85)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Merged)
	assert.Equal(t, 3, s.Stats().NodeCount)
}

func TestRollbackLatestMutation(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	m, err := s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)
	require.Equal(t, 3, s.Stats().NodeCount)

	require.NoError(t, s.Rollback(m.ID))
	assert.Equal(t, 4, s.Stats().NodeCount)

	muts := s.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, MutationRolledBack, muts[0].Status)
}

func TestRollbackRejectsOlderMutation(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	first, err := s.Delete(context.Background(), "cc-1")
	require.NoError(t, err)
	_, err = s.Merge(context.Background(), "km-1", []string{"km-2"})
	require.NoError(t, err)

	err = s.Rollback(first.ID)
	assert.ErrorIs(t, err, ErrNotLatestMutation)
}

func TestRollbackUnknownMutation(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	assert.ErrorIs(t, s.Rollback("ghost"), ErrNotLatestMutation)
}

func TestRefreshClearsMutationLogAndFocus(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.ToggleFocus("km-1")
	require.NoError(t, err)
	_, err = s.Delete(context.Background(), "cc-1")
	require.NoError(t, err)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.Mutations())
	assert.Empty(t, s.View(filter.Options{}).FocusID)
	assert.Equal(t, 4, s.Stats().NodeCount)
}

// scriptedDriver lets a test control each query response, including
// blocking an in-flight fetch.
type scriptedDriver struct {
	fn func(query string) (neo4j.EagerResult, error)
}

func (s *scriptedDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	return s.fn(query)
}

func (s *scriptedDriver) BuildIndices(ctx context.Context) error { return nil }

func (s *scriptedDriver) Close(ctx context.Context) error { return nil }

func TestSupersededRefreshIsDiscarded(t *testing.T) {
	firstInFlight := make(chan struct{})
	release := make(chan struct{})
	var fetches int32

	d := &scriptedDriver{fn: func(query string) (neo4j.EagerResult, error) {
		if query != driver.GetBrandNodesQuery {
			return neo4j.EagerResult{}, nil
		}
		if atomic.AddInt32(&fetches, 1) == 1 {
			close(firstInFlight)
			<-release
			return neo4j.EagerResult{Records: []*neo4j.Record{
				nodeRecord("old-1", "key_message", "stale one", 0.9),
				nodeRecord("old-2", "key_message", "stale two", 0.9),
			}}, nil
		}
		return neo4j.EagerResult{Records: []*neo4j.Record{
			nodeRecord("new-1", "key_message", "fresh", 0.9),
		}}, nil
	}}

	log := zap.NewNop().Sugar()
	s := NewSession("brand-1", graphsync.NewClient(d, log), layout.DefaultConfig(), 0.85, log)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()
	<-firstInFlight

	// A newer refresh starts and finishes while the first is still waiting
	// on the backend.
	require.NoError(t, s.Refresh(context.Background()))
	require.Equal(t, 1, s.Stats().NodeCount)

	// The late response must not clobber the newer snapshot.
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.Stats().NodeCount)

	view := s.View(filter.Options{})
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, "new-1", view.Nodes[0].ID)
}

func TestMutationsReturnsDetachedCopies(t *testing.T) {
	pushStarted := make(chan struct{})
	release := make(chan struct{})
	var pushes int32

	snapshot := snapshotDriver()
	d := &scriptedDriver{fn: func(query string) (neo4j.EagerResult, error) {
		switch query {
		case driver.GetBrandNodesQuery:
			return neo4j.EagerResult{Records: snapshot.nodeRecords}, nil
		case driver.GetBrandEdgesQuery:
			return neo4j.EagerResult{Records: snapshot.edgeRecords}, nil
		default:
			if atomic.AddInt32(&pushes, 1) == 1 {
				close(pushStarted)
			}
			<-release
			return neo4j.EagerResult{}, errors.New("write timeout")
		}
	}}

	log := zap.NewNop().Sugar()
	s := NewSession("brand-1", graphsync.NewClient(d, log), layout.DefaultConfig(), 0.85, log)
	require.NoError(t, s.Refresh(context.Background()))

	done := make(chan Mutation, 1)
	go func() {
		m, err := s.Merge(context.Background(), "km-1", []string{"km-2"})
		if err != nil {
			t.Error(err)
		}
		done <- m
	}()
	<-pushStarted

	// Reading the log while the backend push is in flight must hand back a
	// copy of the optimistic record, not the live one.
	inFlight := s.Mutations()
	require.Len(t, inFlight, 1)
	assert.Equal(t, MutationConfirmed, inFlight[0].Status)

	close(release)
	final := <-done
	assert.Equal(t, MutationUnconfirmed, final.Status)
	assert.Equal(t, MutationUnconfirmed, s.Mutations()[0].Status)

	// The earlier copy is unaffected by the outcome recorded afterwards.
	assert.Equal(t, MutationConfirmed, inFlight[0].Status)
}

func TestDuplicatesAndContradictions(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	dups := s.Duplicates(0.7)
	require.NotEmpty(t, dups)
	assert.Equal(t, "km-1", dups[0].PrimaryID)
	assert.Equal(t, "km-2", dups[0].SecondaryID)

	contras := s.Contradictions()
	require.Len(t, contras, 1)
	assert.Equal(t, "cc-1", contras[0].Source.ID)
}

func TestSetLayoutDirectionAffectsNextView(t *testing.T) {
	s := newTestSession(t, snapshotDriver())
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, layout.AttachTopToBottom, s.View(filter.Options{}).Attachment)
	s.SetLayoutDirection(layout.DirectionLeftRight)
	assert.Equal(t, layout.AttachLeftToRight, s.View(filter.Options{}).Attachment)
}
