package reranker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tably/tably/internal/cache"
	"github.com/tably/tably/internal/llm"
	"github.com/tably/tably/internal/metrics"
	"github.com/tably/tably/internal/recommend"
)

// Re-ranker outcome classes. The caller-visible result of every failure
// class is identical; they are tracked separately for observability only.
const (
	outcomeSuccess   = "success"
	outcomeCacheHit  = "cache_hit"
	outcomeTimeout   = "timeout"
	outcomeCanceled  = "canceled"
	outcomeNetwork   = "network"
	outcomeMalformed = "malformed"
	outcomeEmpty     = "empty"
)

// LLMReranker implements Reranker against an llm.LLM provider with a
// persistent response cache in front of it.
type LLMReranker struct {
	llmClient llm.LLM
	cache     cache.ResponseCache
	logger    *slog.Logger
	model     string
	timeout   time.Duration
	cacheTTL  time.Duration
}

// LLMRerankerOption is a functional option for configuring LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithModel sets the default model used when the request names none.
func WithModel(model string) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.model = model
	}
}

// WithCache sets the persistent response cache. Without one every request
// goes to the provider.
func WithCache(c cache.ResponseCache) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.cache = c
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.timeout = d
	}
}

// WithCacheTTL sets the cache entry lifetime (0 = no expiry).
func WithCacheTTL(d time.Duration) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.cacheTTL = d
	}
}

// WithLogger sets the logger for recovered failures.
func WithLogger(logger *slog.Logger) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.logger = logger
	}
}

// NewLLMReranker creates an LLM-backed reranker.
func NewLLMReranker(llmClient llm.LLM, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{
		llmClient: llmClient,
		logger:    slog.Default(),
		model:     llm.DefaultGeminiModel,
		timeout:   30 * time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// recommendation is one entry of the LLM's response envelope. Score is
// decoded loosely: a non-numeric value is treated as absent rather than
// failing the whole response.
type recommendation struct {
	RestaurantID string `json:"restaurant_id"`
	Explanation  string `json:"explanation"`
	Score        any    `json:"score"`
}

type responseEnvelope struct {
	Recommendations []recommendation `json:"recommendations"`
}

// cacheEntry is the validated response persisted in the LLM cache.
type cacheEntry struct {
	Recommendations []cachedRecommendation `json:"recommendations"`
	Model           string                 `json:"model"`
	CreatedAt       time.Time              `json:"created_at"`
}

type cachedRecommendation struct {
	RestaurantID string   `json:"restaurant_id"`
	Explanation  string   `json:"explanation"`
	Score        *float64 `json:"score,omitempty"`
}

// Rerank asks the LLM to re-order the candidate pool, consulting the cache
// first. It never fails: on any provider, parse, or cache problem the
// deterministic order is returned unannotated.
func (r *LLMReranker) Rerank(ctx context.Context, candidates []recommend.ScoredCandidate, prefs recommend.Preferences) *Result {
	if len(candidates) == 0 {
		return &Result{}
	}

	model := prefs.Model
	if model == "" {
		model = r.model
	}
	fp := Fingerprint(candidates, prefs, model)

	if cached, ok := r.cacheGet(ctx, fp); ok {
		metrics.RerankOutcomes.WithLabelValues(outcomeCacheHit).Inc()
		result := r.apply(candidates, cached.Recommendations, prefs)
		result.FromCache = true
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	response, err := r.llmClient.Generate(callCtx, buildPrompt(candidates, prefs), llm.GenerateOptions{
		Model:        model,
		SystemPrompt: systemInstruction,
		Temperature:  0.3, // low temperature for factual, focused reasoning
		JSONResponse: true,
	})
	if err != nil {
		return r.fallback(candidates, prefs, fp, classify(err), err)
	}

	validated, err := r.parse(response, candidates)
	if err != nil {
		return r.fallback(candidates, prefs, fp, outcomeMalformed, err)
	}
	if len(validated) == 0 {
		return r.fallback(candidates, prefs, fp, outcomeEmpty, errors.New("no valid recommendations in response"))
	}

	// A canceled caller gets no cache write: partial state must never be
	// persisted on abandonment.
	if ctx.Err() == nil {
		r.cachePut(ctx, fp, cacheEntry{
			Recommendations: validated,
			Model:           model,
			CreatedAt:       time.Now().UTC(),
		})
	}

	metrics.RerankOutcomes.WithLabelValues(outcomeSuccess).Inc()
	return r.apply(candidates, validated, prefs)
}

// parse extracts, validates, and normalizes the response envelope. Ids
// outside the candidate pool and duplicates are discarded; non-numeric
// scores become absent; out-of-range scores are clamped to [0, 1].
func (r *LLMReranker) parse(response string, candidates []recommend.ScoredCandidate) ([]cachedRecommendation, error) {
	response = extractJSON(response)

	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(response), &envelope); err != nil {
		return nil, err
	}

	pool := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		pool[c.Restaurant.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(envelope.Recommendations))
	var validated []cachedRecommendation
	for _, rec := range envelope.Recommendations {
		if _, ok := pool[rec.RestaurantID]; !ok {
			continue
		}
		if _, dup := seen[rec.RestaurantID]; dup {
			continue
		}
		seen[rec.RestaurantID] = struct{}{}

		validated = append(validated, cachedRecommendation{
			RestaurantID: rec.RestaurantID,
			Explanation:  strings.TrimSpace(rec.Explanation),
			Score:        coerceScore(rec.Score),
		})
	}

	return validated, nil
}

// apply merges LLM annotations with the deterministic pool: annotated
// candidates first in the LLM's order, omitted candidates after them in
// deterministic order, truncated to prefs.TopN.
func (r *LLMReranker) apply(candidates []recommend.ScoredCandidate, recs []cachedRecommendation, prefs recommend.Preferences) *Result {
	byID := make(map[string]recommend.ScoredCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.Restaurant.ID] = c
	}

	annotated := make([]Annotated, 0, len(candidates))
	taken := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		c, ok := byID[rec.RestaurantID]
		if !ok {
			continue
		}
		taken[rec.RestaurantID] = struct{}{}
		annotated = append(annotated, Annotated{
			ScoredCandidate: c,
			Explanation:     rec.Explanation,
			LLMScore:        rec.Score,
		})
	}

	for _, c := range candidates {
		if _, ok := taken[c.Restaurant.ID]; ok {
			continue
		}
		annotated = append(annotated, Annotated{ScoredCandidate: c})
	}

	if len(annotated) > prefs.TopN {
		annotated = annotated[:prefs.TopN]
	}
	return &Result{Candidates: annotated}
}

func (r *LLMReranker) fallback(candidates []recommend.ScoredCandidate, prefs recommend.Preferences, fp, outcome string, err error) *Result {
	metrics.RerankOutcomes.WithLabelValues(outcome).Inc()
	r.logger.Warn("LLM re-ranking failed, falling back to deterministic order",
		"fingerprint", fp,
		"error_class", outcome,
		"error", err,
	)
	return Fallback(candidates, prefs)
}

// cacheGet treats every cache problem, including a corrupt entry, as a
// miss.
func (r *LLMReranker) cacheGet(ctx context.Context, fp string) (*cacheEntry, bool) {
	if r.cache == nil {
		return nil, false
	}

	value, ok, err := r.cache.Get(ctx, fp)
	if err != nil {
		metrics.LLMCacheMisses.Inc()
		r.logger.Warn("LLM cache read failed, treating as miss", "fingerprint", fp, "error", err)
		return nil, false
	}
	if !ok {
		metrics.LLMCacheMisses.Inc()
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		metrics.LLMCacheMisses.Inc()
		r.logger.Warn("LLM cache entry corrupt, treating as miss", "fingerprint", fp, "error", err)
		return nil, false
	}

	metrics.LLMCacheHits.Inc()
	return &entry, true
}

// cachePut logs and proceeds on failure; a lost write only costs a future
// LLM call.
func (r *LLMReranker) cachePut(ctx context.Context, fp string, entry cacheEntry) {
	if r.cache == nil {
		return
	}

	value, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn("LLM cache entry marshal failed", "fingerprint", fp, "error", err)
		return
	}
	if err := r.cache.Set(ctx, fp, value, r.cacheTTL); err != nil {
		r.logger.Warn("LLM cache write failed, proceeding without cache update", "fingerprint", fp, "error", err)
	}
}

// classify maps a provider error to its outcome class.
func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	default:
		return outcomeNetwork
	}
}

// coerceScore accepts numeric scores in any JSON representation and clamps
// them to [0, 1]; anything else is absent.
func coerceScore(v any) *float64 {
	var score float64
	switch t := v.(type) {
	case float64:
		score = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		score = f
	default:
		return nil
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &score
}

// extractJSON strips markdown code fences some models wrap around their
// JSON output.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	return strings.TrimSpace(response)
}

// Ensure LLMReranker implements Reranker interface.
var _ Reranker = (*LLMReranker)(nil)
