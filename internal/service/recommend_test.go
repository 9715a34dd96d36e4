package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tably/tably/internal/cache"
	"github.com/tably/tably/internal/catalog"
	"github.com/tably/tably/internal/recommend"
	"github.com/tably/tably/internal/reranker"
)

type staticSource struct {
	restaurants []catalog.Restaurant
}

func (s *staticSource) Load(ctx context.Context) ([]catalog.Restaurant, error) {
	return s.restaurants, nil
}

// annotatingReranker marks every candidate so tests can tell the LLM phase
// ran.
type annotatingReranker struct{}

func (annotatingReranker) Rerank(ctx context.Context, candidates []recommend.ScoredCandidate, prefs recommend.Preferences) *reranker.Result {
	result := reranker.Fallback(candidates, prefs)
	for i := range result.Candidates {
		result.Candidates[i].Explanation = "annotated"
	}
	return result
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestService(t *testing.T, opts ...RecommendationServiceOption) *RecommendationService {
	t.Helper()
	source := &staticSource{restaurants: []catalog.Restaurant{
		{ID: "1", Name: "Truffles", City: "bangalore", Cuisines: []string{"Cafe"}, Rating: floatPtr(4.7), Votes: 9000, PriceRange: intPtr(2)},
		{ID: "2", Name: "Meghana Foods", City: "bangalore", Cuisines: []string{"Biryani"}, Rating: floatPtr(4.4), Votes: 7000, PriceRange: intPtr(2)},
		{ID: "3", Name: "Saravana Bhavan", City: "chennai", Cuisines: []string{"South Indian"}, Rating: floatPtr(4.2), Votes: 3000, PriceRange: intPtr(1)},
	}}

	return NewRecommendationService(
		cache.NewTableCache(source),
		recommend.NewPipeline(recommend.NewScorer(5000)),
		Options{
			Limits:        recommend.Limits{TopNDefault: 5, TopNMax: 50},
			PoolSize:      15,
			AllowedModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		},
		opts...,
	)
}

func TestRank_FiltersAndEchoes(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Rank(context.Background(), recommend.RawPreferences{
		Cities:    []string{"Bangalore"},
		MinRating: floatPtr(4.5),
	})
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}

	if result.Count != 1 || result.Restaurants[0].ID != "1" {
		t.Errorf("expected only Truffles, got %+v", result.Restaurants)
	}
	if !reflect.DeepEqual(result.FiltersApplied.Cities, []string{"bangalore"}) {
		t.Errorf("expected normalized city echo, got %v", result.FiltersApplied.Cities)
	}
	if result.FiltersApplied.MaxPriceBucket != nil {
		t.Error("unset filter must not be echoed")
	}
	if result.FiltersApplied.TopN != 5 {
		t.Errorf("expected default top_n echoed, got %d", result.FiltersApplied.TopN)
	}
}

func TestRank_ValidationErrorSurfaces(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Rank(context.Background(), recommend.RawPreferences{MinRating: floatPtr(9)})
	var vErr *recommend.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "min_rating" {
		t.Errorf("expected min_rating validation error, got %v", err)
	}
}

func TestRank_UnknownModelRejected(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Rank(context.Background(), recommend.RawPreferences{Model: "gpt-17"})
	var vErr *recommend.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "model_name" {
		t.Errorf("expected model_name validation error, got %v", err)
	}
}

func TestRankAndRerank_UsesReranker(t *testing.T) {
	svc := newTestService(t, WithReranker(annotatingReranker{}))

	result, err := svc.RankAndRerank(context.Background(), recommend.RawPreferences{Cities: []string{"bangalore"}})
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 restaurants, got %d", result.Count)
	}
	for _, r := range result.Restaurants {
		if r.Explanation == nil || *r.Explanation != "annotated" {
			t.Errorf("restaurant %s missing annotation", r.ID)
		}
	}
}

func TestRankAndRerank_NoRerankerDegrades(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.RankAndRerank(context.Background(), recommend.RawPreferences{Cities: []string{"bangalore"}})
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	for _, r := range result.Restaurants {
		if r.Explanation != nil || r.LLMScore != nil {
			t.Error("expected absent annotations without a reranker")
		}
	}

	// Deterministic order matches the plain rank view.
	ranked, err := svc.Rank(context.Background(), recommend.RawPreferences{Cities: []string{"bangalore"}})
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if !reflect.DeepEqual(result, ranked) {
		t.Error("degraded rerank differs from the deterministic rank view")
	}
}

func TestMetadata(t *testing.T) {
	svc := newTestService(t)

	meta, err := svc.Metadata(context.Background())
	if err != nil {
		t.Fatalf("metadata failed: %v", err)
	}
	if !reflect.DeepEqual(meta.Cities, []string{"bangalore", "chennai"}) {
		t.Errorf("unexpected cities %v", meta.Cities)
	}
	if len(meta.Cuisines) != 3 {
		t.Errorf("unexpected cuisines %v", meta.Cuisines)
	}
	if !reflect.DeepEqual(meta.AvailableModels, []string{"gemini-2.5-flash", "gemini-2.5-pro"}) {
		t.Errorf("unexpected models %v", meta.AvailableModels)
	}
}
