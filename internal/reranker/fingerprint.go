package reranker

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"

	"github.com/tably/tably/internal/recommend"
)

// fingerprintPayload is the canonical content hashed into the cache key.
// Preference lists are already sorted by normalization, and candidate ids
// arrive in deterministic rank order, so equal requests always serialize
// identically. TopN is deliberately excluded: a cached response covers the
// whole candidate pool and is reshaped to whatever top-N the caller asks
// for.
type fingerprintPayload struct {
	IDs            []string `json:"ids"`
	Cities         []string `json:"cities"`
	Cuisines       []string `json:"cuisines"`
	MinRating      *float64 `json:"min_rating"`
	MaxPriceBucket *int     `json:"max_price_bucket"`
	Context        string   `json:"context"`
	Model          string   `json:"model"`
}

// Fingerprint derives the LLM cache key from the normalized preferences,
// the ordered candidate ids, and the model identifier.
func Fingerprint(candidates []recommend.ScoredCandidate, prefs recommend.Preferences, model string) string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Restaurant.ID
	}

	payload, _ := json.Marshal(fingerprintPayload{
		IDs:            ids,
		Cities:         prefs.Cities,
		Cuisines:       prefs.Cuisines,
		MinRating:      prefs.MinRating,
		MaxPriceBucket: prefs.MaxPriceBucket,
		Context:        prefs.Context,
		Model:          model,
	})

	sum := sha256.Sum256(payload)
	return "llm:" + hex.EncodeToString(sum[:])
}
