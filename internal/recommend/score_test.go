package recommend

import (
	"math"
	"testing"

	"github.com/tably/tably/internal/catalog"
)

func TestScorer_CompositeWeights(t *testing.T) {
	s := NewScorer(5000)

	// rating 5.0 -> 0.6, votes at cap -> 0.3, bucket match -> 0.1
	r := &catalog.Restaurant{ID: "1", Rating: floatPtr(5.0), Votes: 5000, PriceRange: intPtr(2)}
	got := s.Score(r, Preferences{MaxPriceBucket: intPtr(2)})
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected perfect score 1.0, got %g", got)
	}

	// rating 4.0 -> 0.48, votes 2500/5000 -> 0.15, no price -> 0
	r = &catalog.Restaurant{ID: "2", Rating: floatPtr(4.0), Votes: 2500}
	got = s.Score(r, Preferences{})
	if math.Abs(got-0.63) > 1e-9 {
		t.Errorf("expected 0.63, got %g", got)
	}
}

func TestScorer_MissingFieldsContributeZero(t *testing.T) {
	s := NewScorer(5000)

	r := &catalog.Restaurant{ID: "1"}
	if got := s.Score(r, Preferences{}); got != 0 {
		t.Errorf("expected zero score for empty restaurant, got %g", got)
	}

	// missing price with a budget set contributes nothing
	r = &catalog.Restaurant{ID: "2", Rating: floatPtr(5.0)}
	got := s.Score(r, Preferences{MaxPriceBucket: intPtr(2)})
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected 0.6, got %g", got)
	}
}

func TestScorer_VotesCapped(t *testing.T) {
	s := NewScorer(5000)

	atCap := &catalog.Restaurant{ID: "1", Votes: 5000}
	beyond := &catalog.Restaurant{ID: "2", Votes: 500000}
	if s.Score(atCap, Preferences{}) != s.Score(beyond, Preferences{}) {
		t.Error("votes beyond the cap changed the score")
	}
}

func TestScorer_VotesMonotonic(t *testing.T) {
	s := NewScorer(5000)

	prev := -1.0
	for _, votes := range []int{0, 1, 100, 2500, 4999, 5000} {
		got := s.Score(&catalog.Restaurant{ID: "x", Votes: votes}, Preferences{})
		if got < prev {
			t.Errorf("score decreased at votes=%d: %g < %g", votes, got, prev)
		}
		prev = got
	}
}

func TestScorer_BoundedZeroOne(t *testing.T) {
	s := NewScorer(100)

	extremes := []*catalog.Restaurant{
		{ID: "1"},
		{ID: "2", Rating: floatPtr(5.0), Votes: 1 << 30, PriceRange: intPtr(1)},
		{ID: "3", Rating: floatPtr(5.0), Votes: 1 << 30, PriceRange: intPtr(4)},
	}
	for _, r := range extremes {
		for _, prefs := range []Preferences{{}, {MaxPriceBucket: intPtr(1)}, {MaxPriceBucket: intPtr(4)}} {
			got := s.Score(r, prefs)
			if got < 0 || got > 1 {
				t.Errorf("score %g out of [0,1] for restaurant %s", got, r.ID)
			}
		}
	}
}

func TestScorer_PriceFitGradedWithoutBudget(t *testing.T) {
	s := NewScorer(5000)

	cheap := s.Score(&catalog.Restaurant{ID: "1", PriceRange: intPtr(1)}, Preferences{})
	premium := s.Score(&catalog.Restaurant{ID: "2", PriceRange: intPtr(4)}, Preferences{})
	if cheap <= premium {
		t.Errorf("expected lower buckets rewarded without a budget: %g <= %g", cheap, premium)
	}
}
