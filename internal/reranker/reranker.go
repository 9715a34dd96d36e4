// Package reranker re-orders and annotates the deterministic shortlist with
// an LLM.
//
// The re-ranker is strictly best-effort: any provider failure, timeout, or
// malformed response degrades to the deterministic order with no annotations,
// and the caller cannot tell the failure classes apart. Responses are cached
// by request fingerprint so repeated searches cost one LLM call.
package reranker

import (
	"context"

	"github.com/tably/tably/internal/recommend"
)

// Annotated is a scored candidate optionally carrying the LLM's explanation
// and confidence score. Both are absent when the re-ranker fell back or the
// LLM omitted the candidate.
type Annotated struct {
	recommend.ScoredCandidate
	Explanation string
	LLMScore    *float64
}

// Result is the re-ranked, annotated shortlist truncated to the requested
// top-N.
type Result struct {
	Candidates []Annotated
	FromCache  bool
}

// Reranker re-orders a deterministic candidate pool. Implementations never
// fail the request: on any error they return the deterministic order
// unannotated.
type Reranker interface {
	Rerank(ctx context.Context, candidates []recommend.ScoredCandidate, prefs recommend.Preferences) *Result
}

// Fallback builds the degraded result: deterministic order, no annotations,
// truncated to prefs.TopN.
func Fallback(candidates []recommend.ScoredCandidate, prefs recommend.Preferences) *Result {
	n := prefs.TopN
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]Annotated, n)
	for i := 0; i < n; i++ {
		out[i] = Annotated{ScoredCandidate: candidates[i]}
	}
	return &Result{Candidates: out}
}
