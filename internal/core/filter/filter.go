// Package filter derives the visible subgraph for a set of operator
// predicates. Apply is a pure function over the graph snapshot: it never
// mutates the store and is cheap enough to re-run on every predicate change.
package filter

import (
	"strings"

	"github.com/brandlens/lattice/internal/core/model"
)

// SegmentBucket is the coarse audience class a free-text segment label
// falls into.
type SegmentBucket string

const (
	SegmentAll     SegmentBucket = ""
	SegmentPatient SegmentBucket = "patient"
	SegmentHCP     SegmentBucket = "hcp"
	SegmentOther   SegmentBucket = "other"
)

var patientKeywords = []string{"patient", "consumer", "caregiver"}

var hcpKeywords = []string{"hcp", "physician", "doctor", "prescriber", "clinician", "nurse", "specialist"}

// ClassifySegment buckets a raw segment label with a keyword test.
// Named cohorts that match neither vocabulary land in SegmentOther.
func ClassifySegment(segment string) SegmentBucket {
	s := strings.ToLower(segment)
	for _, kw := range patientKeywords {
		if strings.Contains(s, kw) {
			return SegmentPatient
		}
	}
	for _, kw := range hcpKeywords {
		if strings.Contains(s, kw) {
			return SegmentHCP
		}
	}
	return SegmentOther
}

// Options are the composable predicates. Nil slices mean "all"; predicates
// compose by intersection.
type Options struct {
	NodeTypes []model.NodeType
	Segment   SegmentBucket
	Relations []model.RelationType
}

// IsAll reports whether the options leave the graph unfiltered.
func (o Options) IsAll() bool {
	return len(o.NodeTypes) == 0 && o.Segment == SegmentAll && len(o.Relations) == 0
}

// Result is the visible subgraph.
type Result struct {
	Nodes map[string]bool
	Edges []model.Edge
}

// Apply computes the visible node and edge sets. An edge survives only if
// both endpoints survive and its relation type is allowed; an active
// relation filter additionally drops nodes that are not endpoints of any
// surviving edge.
func Apply(g model.Graph, opts Options) Result {
	allowedTypes := toSet(opts.NodeTypes)
	allowedRelations := toSet(opts.Relations)

	visible := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if allowedTypes != nil && !allowedTypes[string(n.Type)] {
			continue
		}
		if opts.Segment != SegmentAll && ClassifySegment(n.Segment) != opts.Segment {
			continue
		}
		visible[n.ID] = true
	}

	var edges []model.Edge
	for _, e := range g.Edges {
		if !visible[e.SourceID] || !visible[e.TargetID] {
			continue
		}
		if allowedRelations != nil && !allowedRelations[string(e.Relation)] {
			continue
		}
		edges = append(edges, e)
	}

	if allowedRelations != nil {
		// Relation filtering means "show only participants in that
		// relationship": drop nodes with no surviving edge.
		participants := make(map[string]bool, len(edges)*2)
		for _, e := range edges {
			participants[e.SourceID] = true
			participants[e.TargetID] = true
		}
		visible = participants
	}

	return Result{Nodes: visible, Edges: edges}
}

func toSet[T ~string](values []T) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[string(v)] = true
	}
	return set
}
