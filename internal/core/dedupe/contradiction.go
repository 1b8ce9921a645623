package dedupe

import (
	"sort"

	"github.com/brandlens/lattice/internal/core/model"
)

// Contradiction joins a contradicts edge to its endpoint nodes so the
// operator can review conflicting insights side by side.
type Contradiction struct {
	Source  model.Node `json:"source"`
	Target  model.Node `json:"target"`
	Context string     `json:"context,omitempty"`
}

// Contradictions lists every contradicts edge in the current snapshot,
// ordered by source then target id.
func (r *Resolver) Contradictions() []Contradiction {
	var out []Contradiction
	for _, e := range r.store.Edges() {
		if e.Relation != model.RelationContradicts {
			continue
		}
		src, ok := r.store.Node(e.SourceID)
		if !ok {
			continue
		}
		dst, ok := r.store.Node(e.TargetID)
		if !ok {
			continue
		}
		out = append(out, Contradiction{Source: src, Target: dst, Context: e.Context})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source.ID != out[j].Source.ID {
			return out[i].Source.ID < out[j].Source.ID
		}
		return out[i].Target.ID < out[j].Target.ID
	})
	return out
}
