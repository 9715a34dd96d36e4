package recommend

import (
	"strings"

	"github.com/tably/tably/internal/catalog"
)

// Filter returns the restaurants satisfying every supplied constraint.
// Absent constraints impose no restriction; an empty result is a normal
// outcome, not an error. The shared table is never mutated.
func Filter(restaurants []*catalog.Restaurant, prefs Preferences) []*catalog.Restaurant {
	out := make([]*catalog.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if matches(r, prefs) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r *catalog.Restaurant, prefs Preferences) bool {
	// City: exact match against any requested city, never substring.
	if len(prefs.Cities) > 0 && !containsFold(prefs.Cities, r.City) {
		return false
	}

	// Price: a missing bucket can never be verified within budget.
	if prefs.MaxPriceBucket != nil {
		if r.PriceRange == nil || *r.PriceRange > *prefs.MaxPriceBucket {
			return false
		}
	}

	// Rating: unrated entries are excluded when a floor is set.
	if prefs.MinRating != nil {
		if r.Rating == nil || *r.Rating < *prefs.MinRating {
			return false
		}
	}

	// Cuisine: any-match over the requested set.
	if len(prefs.Cuisines) > 0 {
		found := false
		for _, c := range r.Cuisines {
			if containsFold(prefs.Cuisines, c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// containsFold reports whether needles (already lower-cased by Normalize)
// contains value, case-insensitively.
func containsFold(needles []string, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, n := range needles {
		if n == value {
			return true
		}
	}
	return false
}
