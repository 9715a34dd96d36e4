// Package service orchestrates the recommendation pipeline for the HTTP
// layer: preference normalization, deterministic ranking, optional LLM
// re-ranking, and response shaping.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tably/tably/internal/cache"
	"github.com/tably/tably/internal/catalog"
	"github.com/tably/tably/internal/metrics"
	"github.com/tably/tably/internal/recommend"
	"github.com/tably/tably/internal/reranker"
)

// RecommendationService answers the /candidates and /recommendations views.
type RecommendationService struct {
	tables   *cache.TableCache
	pipeline *recommend.Pipeline
	reranker reranker.Reranker // nil disables the LLM phase
	logger   *slog.Logger
	limits   recommend.Limits
	poolSize int
	models   []string // selectable model allowlist; empty allows any
}

// Options configures the service.
type Options struct {
	Limits        recommend.Limits
	PoolSize      int
	AllowedModels []string
}

// RecommendationServiceOption is a functional option for the service.
type RecommendationServiceOption func(*RecommendationService)

// WithReranker enables LLM re-ranking.
func WithReranker(r reranker.Reranker) RecommendationServiceOption {
	return func(s *RecommendationService) {
		s.reranker = r
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) RecommendationServiceOption {
	return func(s *RecommendationService) {
		s.logger = logger
	}
}

// NewRecommendationService creates the service over a table cache and a
// deterministic pipeline.
func NewRecommendationService(tables *cache.TableCache, pipeline *recommend.Pipeline, opts Options, fns ...RecommendationServiceOption) *RecommendationService {
	s := &RecommendationService{
		tables:   tables,
		pipeline: pipeline,
		logger:   slog.Default(),
		limits:   opts.Limits,
		poolSize: opts.PoolSize,
		models:   opts.AllowedModels,
	}
	if s.poolSize < 1 {
		s.poolSize = 15
	}

	for _, fn := range fns {
		fn(s)
	}

	return s
}

// RestaurantView is the serialized restaurant shape returned to callers.
type RestaurantView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	City        string   `json:"city,omitempty"`
	Area        string   `json:"area,omitempty"`
	Cuisines    []string `json:"cuisines"`
	PriceRange  *int     `json:"price_range,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Votes       int      `json:"votes"`
	Score       float64  `json:"score"`
	Explanation *string  `json:"explanation,omitempty"`
	LLMScore    *float64 `json:"llm_score,omitempty"`
}

// FiltersApplied echoes only the preference fields the caller actually set.
type FiltersApplied struct {
	Cities         []string `json:"cities,omitempty"`
	Cuisines       []string `json:"cuisines,omitempty"`
	MinRating      *float64 `json:"min_rating,omitempty"`
	MaxPriceBucket *int     `json:"max_price_bucket,omitempty"`
	TopN           int      `json:"top_n"`
	ModelName      string   `json:"model_name,omitempty"`
	Context        string   `json:"context_description,omitempty"`
}

// Result is the response envelope for both views.
type Result struct {
	Count          int              `json:"count"`
	FiltersApplied FiltersApplied   `json:"filters_applied"`
	Restaurants    []RestaurantView `json:"restaurants"`
}

// Metadata describes the filterable values derived from the loaded table.
type Metadata struct {
	Cities          []string `json:"cities"`
	Cuisines        []string `json:"cuisines"`
	AvailableModels []string `json:"available_models"`
}

// Rank runs the deterministic pipeline only. Validation failures return a
// *recommend.ValidationError; an empty match is a normal empty result.
func (s *RecommendationService) Rank(ctx context.Context, raw recommend.RawPreferences) (*Result, error) {
	prefs, table, err := s.prepare(ctx, raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ranked := s.pipeline.Rank(table, prefs)
	metrics.PipelineDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())

	views := make([]RestaurantView, len(ranked.Candidates))
	for i, c := range ranked.Candidates {
		views[i] = restaurantView(c, "", nil)
	}

	return &Result{
		Count:          len(views),
		FiltersApplied: echoFilters(prefs),
		Restaurants:    views,
	}, nil
}

// RankAndRerank runs the full pipeline including the LLM phase. External
// failures never surface: the result degrades to the deterministic ranking
// with absent annotation fields.
func (s *RecommendationService) RankAndRerank(ctx context.Context, raw recommend.RawPreferences) (*Result, error) {
	prefs, table, err := s.prepare(ctx, raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pool := s.pipeline.Pool(table, prefs, s.poolSize)
	metrics.PipelineDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())

	var result *reranker.Result
	if s.reranker != nil {
		rerankStart := time.Now()
		result = s.reranker.Rerank(ctx, pool, prefs)
		metrics.PipelineDuration.WithLabelValues("rerank").Observe(time.Since(rerankStart).Seconds())
	} else {
		result = reranker.Fallback(pool, prefs)
	}

	views := make([]RestaurantView, len(result.Candidates))
	for i, c := range result.Candidates {
		views[i] = restaurantView(c.ScoredCandidate, c.Explanation, c.LLMScore)
	}

	return &Result{
		Count:          len(views),
		FiltersApplied: echoFilters(prefs),
		Restaurants:    views,
	}, nil
}

// Metadata derives the distinct city, cuisine, and model sets.
func (s *RecommendationService) Metadata(ctx context.Context) (*Metadata, error) {
	table, err := s.tables.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Cities:          table.Cities(),
		Cuisines:        table.Cuisines(),
		AvailableModels: s.models,
	}, nil
}

func (s *RecommendationService) prepare(ctx context.Context, raw recommend.RawPreferences) (recommend.Preferences, *catalog.Table, error) {
	prefs, err := recommend.Normalize(raw, s.limits)
	if err != nil {
		return recommend.Preferences{}, nil, err
	}

	if prefs.Model != "" && len(s.models) > 0 && !contains(s.models, prefs.Model) {
		return recommend.Preferences{}, nil, &recommend.ValidationError{
			Field:   "model_name",
			Message: "model is not available",
		}
	}

	table, err := s.tables.Get(ctx)
	if err != nil {
		return recommend.Preferences{}, nil, err
	}
	return prefs, table, nil
}

func restaurantView(c recommend.ScoredCandidate, explanation string, llmScore *float64) RestaurantView {
	r := c.Restaurant
	view := RestaurantView{
		ID:         r.ID,
		Name:       r.Name,
		City:       r.City,
		Area:       r.Area,
		Cuisines:   r.Cuisines,
		PriceRange: r.PriceRange,
		Rating:     r.Rating,
		Votes:      r.Votes,
		Score:      c.Score,
		LLMScore:   llmScore,
	}
	if explanation != "" {
		view.Explanation = &explanation
	}
	return view
}

func echoFilters(prefs recommend.Preferences) FiltersApplied {
	return FiltersApplied{
		Cities:         prefs.Cities,
		Cuisines:       prefs.Cuisines,
		MinRating:      prefs.MinRating,
		MaxPriceBucket: prefs.MaxPriceBucket,
		TopN:           prefs.TopN,
		ModelName:      prefs.Model,
		Context:        prefs.Context,
	}
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
