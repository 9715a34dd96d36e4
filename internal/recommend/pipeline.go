package recommend

import (
	"sort"

	"github.com/tably/tably/internal/catalog"
)

// ScoredCandidate pairs a restaurant with its composite score and rank
// position. Candidates are produced fresh per request and never persisted.
type ScoredCandidate struct {
	Restaurant *catalog.Restaurant
	Score      float64
	Rank       int
}

// RankedResult is the deterministic baseline produced by the pipeline.
type RankedResult struct {
	Count      int
	Candidates []ScoredCandidate
}

// Pipeline orchestrates filter -> score -> sort -> truncate over a loaded
// table. Preferences must already be normalized; every stage past
// normalization is total and cannot fail.
type Pipeline struct {
	scorer *Scorer
}

// NewPipeline creates a pipeline using the given scorer.
func NewPipeline(scorer *Scorer) *Pipeline {
	return &Pipeline{scorer: scorer}
}

// Rank runs the deterministic pipeline and truncates to prefs.TopN. An
// empty filtered set yields an empty result with Count 0.
func (p *Pipeline) Rank(table *catalog.Table, prefs Preferences) *RankedResult {
	candidates := p.Pool(table, prefs, prefs.TopN)
	return &RankedResult{
		Count:      len(candidates),
		Candidates: candidates,
	}
}

// Pool returns the top-k scored candidates, sorted. The re-ranker uses this
// to hand the LLM a wider shortlist than the final top-N; k below TopN is
// raised to TopN.
func (p *Pipeline) Pool(table *catalog.Table, prefs Preferences, k int) []ScoredCandidate {
	if k < prefs.TopN {
		k = prefs.TopN
	}

	filtered := Filter(table.All(), prefs)

	candidates := make([]ScoredCandidate, len(filtered))
	for i, r := range filtered {
		candidates[i] = ScoredCandidate{
			Restaurant: r,
			Score:      p.scorer.Score(r, prefs),
		}
	}

	// Score descending; ties break by votes descending, then id ascending,
	// never by table order.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Restaurant.Votes != b.Restaurant.Votes {
			return a.Restaurant.Votes > b.Restaurant.Votes
		}
		return a.Restaurant.ID < b.Restaurant.ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}
