package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tably/tably/internal/cache"
	"github.com/tably/tably/internal/catalog"
	"github.com/tably/tably/internal/recommend"
	"github.com/tably/tably/internal/service"
)

type staticSource struct {
	restaurants []catalog.Restaurant
}

func (s *staticSource) Load(ctx context.Context) ([]catalog.Restaurant, error) {
	return s.restaurants, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	restaurants := []catalog.Restaurant{
		{ID: "1", Name: "Truffles", City: "bangalore", Cuisines: []string{"Cafe"}, Rating: floatPtr(4.7), Votes: 9000, PriceRange: intPtr(2)},
		{ID: "2", Name: "Meghana Foods", City: "bangalore", Cuisines: []string{"Biryani"}, Rating: floatPtr(4.6), Votes: 7000, PriceRange: intPtr(2)},
		{ID: "3", Name: "Corner House", City: "bangalore", Cuisines: []string{"Desserts"}, Rating: floatPtr(4.5), Votes: 5000, PriceRange: intPtr(1)},
		{ID: "4", Name: "Low Rated", City: "bangalore", Cuisines: []string{"Cafe"}, Rating: floatPtr(3.2), Votes: 100, PriceRange: intPtr(1)},
		{ID: "5", Name: "Saravana Bhavan", City: "chennai", Cuisines: []string{"South Indian"}, Rating: floatPtr(4.2), Votes: 3000, PriceRange: intPtr(1)},
	}

	svc := service.NewRecommendationService(
		cache.NewTableCache(&staticSource{restaurants: restaurants}),
		recommend.NewPipeline(recommend.NewScorer(5000)),
		service.Options{
			Limits:        recommend.Limits{TopNDefault: 5, TopNMax: 50},
			PoolSize:      15,
			AllowedModels: []string{"gemini-2.5-flash"},
		},
	)

	return NewHTTPServer(HTTPServerConfig{Port: 0}, svc)
}

func doRequest(t *testing.T, s *HTTPServer, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) service.Result {
	t.Helper()
	var result service.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return result
}

func TestCandidates_FilteredScenario(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/candidates?cities=Bangalore&min_rating=4.5&top_n=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Count != 3 {
		t.Fatalf("expected count 3, got %d", result.Count)
	}
	for _, r := range result.Restaurants {
		if r.City != "bangalore" {
			t.Errorf("restaurant %s has city %q", r.ID, r.City)
		}
		if r.Rating == nil || *r.Rating < 4.5 {
			t.Errorf("restaurant %s fails the rating floor", r.ID)
		}
		if r.Explanation != nil || r.LLMScore != nil {
			t.Error("debug view must not carry LLM annotations")
		}
	}
}

func TestCandidates_UnknownCityIsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/candidates?cities=Atlantis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	result := decodeResult(t, rec)
	if result.Count != 0 || len(result.Restaurants) != 0 {
		t.Errorf("expected empty result, got count=%d", result.Count)
	}
}

func TestCandidates_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"bad rating range", "/candidates?min_rating=7.5", "min_rating"},
		{"non-numeric rating", "/candidates?min_rating=high", "min_rating"},
		{"bad price bucket", "/candidates?max_price_bucket=9", "max_price_bucket"},
		{"zero top_n", "/candidates?top_n=0", "top_n"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tt.target, "")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body["field"] != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, body["field"])
			}
		})
	}
}

func TestRecommendations_WithoutLLMDegrades(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/recommendations",
		`{"cities": ["Bangalore"], "top_n": 2, "context_description": "date night"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Count != 2 {
		t.Fatalf("expected 2 restaurants, got %d", result.Count)
	}
	for _, r := range result.Restaurants {
		if r.Explanation != nil || r.LLMScore != nil {
			t.Error("expected absent annotations without an LLM")
		}
	}
	if result.FiltersApplied.Context != "date night" {
		t.Errorf("context not echoed: %+v", result.FiltersApplied)
	}
}

func TestRecommendations_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/recommendations", `{"cities": [`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for invalid JSON, got %d", rec.Code)
	}
}

func TestRecommendations_UnknownModel(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/recommendations", `{"model_name": "gpt-17"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metadata/filters", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var meta service.Metadata
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatalf("decoding metadata: %v", err)
	}
	if len(meta.Cities) != 2 || meta.Cities[0] != "bangalore" {
		t.Errorf("unexpected cities %v", meta.Cities)
	}
	if len(meta.AvailableModels) != 1 {
		t.Errorf("unexpected models %v", meta.AvailableModels)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz returned %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz returned %d", rec.Code)
	}
}
