package recommend

import (
	"github.com/tably/tably/internal/catalog"
)

// Composite score weights; they sum to 1.0 so the score stays in [0, 1].
const (
	weightRating   = 0.60
	weightVotes    = 0.30
	weightPriceFit = 0.10

	maxRating = 5.0

	// DefaultVotesCap bounds the vote contribution: counts beyond the cap
	// are not rewarded further, so outliers cannot dominate.
	DefaultVotesCap = 5000
)

// Scorer computes the deterministic composite score for a candidate. It is
// stateless; the same restaurant and preferences always produce the same
// score.
type Scorer struct {
	votesCap int
}

// NewScorer creates a scorer with the given vote-count cap. A non-positive
// cap falls back to DefaultVotesCap.
func NewScorer(votesCap int) *Scorer {
	if votesCap <= 0 {
		votesCap = DefaultVotesCap
	}
	return &Scorer{votesCap: votesCap}
}

// Score returns the composite quality score in [0, 1]:
//
//	0.60 * rating/5  +  0.30 * min(votes, cap)/cap  +  0.10 * priceFit
//
// Missing rating or price contribute zero to their component. Vote
// normalization is capped-linear: monotonic up to the cap, flat beyond it.
func (s *Scorer) Score(r *catalog.Restaurant, prefs Preferences) float64 {
	var ratingScore float64
	if r.Rating != nil {
		ratingScore = clamp01(*r.Rating / maxRating)
	}

	votes := r.Votes
	if votes > s.votesCap {
		votes = s.votesCap
	}
	votesScore := float64(votes) / float64(s.votesCap)

	return ratingScore*weightRating + votesScore*weightVotes + priceFit(r, prefs)*weightPriceFit
}

// priceFit rewards a bucket that exactly matches the requested budget cap.
// Without a budget, cheaper buckets earn a graded reward so price still
// differentiates otherwise-equal candidates. Missing price data contributes
// nothing.
func priceFit(r *catalog.Restaurant, prefs Preferences) float64 {
	if r.PriceRange == nil {
		return 0
	}
	if prefs.MaxPriceBucket != nil {
		if *r.PriceRange == *prefs.MaxPriceBucket {
			return 1.0
		}
		return 0
	}
	// bucket 1 -> 1.0, 2 -> 0.75, 3 -> 0.5, 4 -> 0.25
	return float64(5-*r.PriceRange) / 4.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
