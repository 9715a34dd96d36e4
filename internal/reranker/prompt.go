package reranker

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tably/tably/internal/recommend"
)

const systemInstruction = `You are an expert local food critic and restaurant recommender.
Your task is to take a user's search criteria and a list of statistically filtered candidate restaurants, and return a tailored shortlist with explanations.

You must:
1. Re-rank the provided candidates based on how well they exemplify the requested criteria (city, cuisines, rating, price) and any described occasion.
2. Only return restaurants from the provided candidate list, identified by their exact "id" string.
3. Provide a concise, engaging explanation (1-3 sentences) for EACH chosen restaurant justifying why it's a great choice for their specific search criteria.
4. Assign a context match score (0.0 to 1.0) based on how perfectly it fits their request.
5. Order your recommendations best match first.

Respond ONLY with valid JSON of the form {"recommendations": [{"restaurant_id": "...", "explanation": "...", "score": 0.0}]}. Do not include markdown formatting or extra text outside the JSON.`

// promptCandidate is the minimal candidate view embedded in the prompt.
type promptCandidate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Cuisines    []string `json:"cuisines"`
	Rating      *float64 `json:"rating"`
	Votes       int      `json:"votes"`
	PriceBucket *int     `json:"price_bucket"`
}

// buildPrompt combines the criteria summary and the candidate JSON into the
// user prompt.
func buildPrompt(candidates []recommend.ScoredCandidate, prefs recommend.Preferences) string {
	var criteria []string
	if len(prefs.Cities) > 0 {
		criteria = append(criteria, "Cities: "+strings.Join(prefs.Cities, ", "))
	}
	if len(prefs.Cuisines) > 0 {
		criteria = append(criteria, "Cuisines: "+strings.Join(prefs.Cuisines, ", "))
	}
	if prefs.MinRating != nil {
		criteria = append(criteria, fmt.Sprintf("Minimum Rating: %g+", *prefs.MinRating))
	}
	if prefs.MaxPriceBucket != nil {
		criteria = append(criteria, fmt.Sprintf("Max Price Bucket: %d/4", *prefs.MaxPriceBucket))
	}
	if prefs.Context != "" {
		criteria = append(criteria, "Occasion: "+prefs.Context)
	}

	summary := "General recommendation based on top scores."
	if len(criteria) > 0 {
		summary = strings.Join(criteria, "\n")
	}

	views := make([]promptCandidate, len(candidates))
	for i, c := range candidates {
		r := c.Restaurant
		views[i] = promptCandidate{
			ID:          r.ID,
			Name:        r.Name,
			Cuisines:    r.Cuisines,
			Rating:      r.Rating,
			Votes:       r.Votes,
			PriceBucket: r.PriceRange,
		}
	}
	candidatesJSON, _ := json.MarshalIndent(views, "", "  ")

	var sb strings.Builder
	sb.WriteString("USER SEARCH CRITERIA:\n")
	sb.WriteString(summary)
	sb.WriteString("\n\nCANDIDATE RESTAURANTS (JSON array):\n")
	sb.Write(candidatesJSON)
	sb.WriteString("\n")
	return sb.String()
}
