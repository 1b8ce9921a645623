// Package dedupe finds near-identical insight nodes and consolidates them.
// Candidates are recomputed on demand from pairwise text similarity; merges
// and deletes delegate to the store, which guarantees edge integrity.
package dedupe

import (
	"sort"

	"github.com/brandlens/lattice/internal/core/model"
	"github.com/brandlens/lattice/internal/core/store"
)

// DefaultAutoMergeThreshold is the similarity above which a candidate is
// labeled auto_merge rather than review.
const DefaultAutoMergeThreshold = 0.85

type Resolver struct {
	store         *store.Store
	autoThreshold float64
}

func NewResolver(st *store.Store, autoThreshold float64) *Resolver {
	if autoThreshold <= 0 || autoThreshold > 1 {
		autoThreshold = DefaultAutoMergeThreshold
	}
	return &Resolver{store: st, autoThreshold: autoThreshold}
}

// Candidates enumerates unordered node pairs whose similarity meets the
// threshold. The higher-confidence member becomes the primary; ties break
// on longer text, then lower id. Output order is similarity descending,
// then ids, so repeated calls over the same snapshot agree.
func (r *Resolver) Candidates(threshold float64) []model.DuplicateCandidate {
	nodes := r.store.Nodes()

	var candidates []model.DuplicateCandidate
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			sim := Similarity(nodes[i].Text, nodes[j].Text)
			if sim < threshold {
				continue
			}
			primary, secondary := rankPair(nodes[i], nodes[j])
			rec := model.RecommendReview
			if sim >= r.autoThreshold {
				rec = model.RecommendAutoMerge
			}
			candidates = append(candidates, model.DuplicateCandidate{
				PrimaryID:      primary.ID,
				SecondaryID:    secondary.ID,
				Similarity:     sim,
				Recommendation: rec,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		if candidates[i].PrimaryID != candidates[j].PrimaryID {
			return candidates[i].PrimaryID < candidates[j].PrimaryID
		}
		return candidates[i].SecondaryID < candidates[j].SecondaryID
	})
	return candidates
}

func rankPair(a, b model.Node) (primary, secondary model.Node) {
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a, b
		}
		return b, a
	}
	if len(a.Text) != len(b.Text) {
		if len(a.Text) > len(b.Text) {
			return a, b
		}
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

// Merge absorbs the secondaries into the primary. Secondaries that are
// already gone are skipped by the store, so re-running a merge is safe.
func (r *Resolver) Merge(primaryID string, secondaryIDs []string) (*store.MergeResult, error) {
	return r.store.ApplyMerge(primaryID, secondaryIDs)
}

// Delete removes a node and every edge touching it.
func (r *Resolver) Delete(nodeID string) (*store.DeleteResult, error) {
	return r.store.ApplyDelete(nodeID)
}

// AutoMerge merges every auto_merge-labeled candidate at or above the
// threshold in one batch. A pair whose primary or secondary was already
// consumed earlier in the batch is skipped rather than chained; a second
// pass catches second-order duplicates. Returns the number of nodes merged
// away and the per-merge results.
func (r *Resolver) AutoMerge(threshold float64) (int, []*store.MergeResult, error) {
	if threshold < r.autoThreshold {
		threshold = r.autoThreshold
	}

	consumed := make(map[string]bool)
	merged := 0
	var results []*store.MergeResult
	for _, cand := range r.Candidates(threshold) {
		if cand.Recommendation != model.RecommendAutoMerge {
			continue
		}
		if consumed[cand.PrimaryID] || consumed[cand.SecondaryID] {
			continue
		}
		res, err := r.store.ApplyMerge(cand.PrimaryID, []string{cand.SecondaryID})
		if err != nil {
			return merged, results, err
		}
		if res.Absorbed() == 0 {
			continue
		}
		consumed[cand.PrimaryID] = true
		consumed[cand.SecondaryID] = true
		merged += res.Absorbed()
		results = append(results, res)
	}
	return merged, results, nil
}
