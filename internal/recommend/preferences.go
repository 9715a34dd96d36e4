// Package recommend implements the deterministic recommendation pipeline:
// preference normalization, hard filtering, composite scoring, and ranking.
package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a malformed or out-of-range preference field. It
// is the only error the pipeline surfaces to callers; the HTTP layer maps it
// to a 422 with the field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RawPreferences carries user input exactly as the transport layer decoded
// it, before any normalization or validation.
type RawPreferences struct {
	Cities         []string
	Cuisines       []string
	MinRating      *float64
	MaxPriceBucket *int
	TopN           *int
	Context        string
	Model          string
}

// Preferences is the validated, canonical form of a request. City and
// cuisine values are trimmed and lower-cased; absent fields mean "no
// preference".
type Preferences struct {
	Cities         []string
	Cuisines       []string
	MinRating      *float64
	MaxPriceBucket *int
	TopN           int
	Context        string
	Model          string
}

// Limits bounds the values Normalize accepts.
type Limits struct {
	TopNDefault int
	TopNMax     int
}

// Normalize validates raw preferences and produces the canonical record.
// Out-of-range values fail with a *ValidationError naming the field; they
// are never silently clamped. Empty strings in list fields are dropped, not
// rejected.
func Normalize(raw RawPreferences, limits Limits) (Preferences, error) {
	prefs := Preferences{
		Cities:   normalizeList(raw.Cities),
		Cuisines: normalizeList(raw.Cuisines),
		Context:  strings.TrimSpace(raw.Context),
		Model:    strings.TrimSpace(raw.Model),
		TopN:     limits.TopNDefault,
	}

	if raw.MinRating != nil {
		if *raw.MinRating < 0.0 || *raw.MinRating > 5.0 {
			return Preferences{}, &ValidationError{
				Field:   "min_rating",
				Message: fmt.Sprintf("must be between 0.0 and 5.0, got %g", *raw.MinRating),
			}
		}
		v := *raw.MinRating
		prefs.MinRating = &v
	}

	if raw.MaxPriceBucket != nil {
		if *raw.MaxPriceBucket < 1 || *raw.MaxPriceBucket > 4 {
			return Preferences{}, &ValidationError{
				Field:   "max_price_bucket",
				Message: fmt.Sprintf("must be between 1 and 4, got %d", *raw.MaxPriceBucket),
			}
		}
		v := *raw.MaxPriceBucket
		prefs.MaxPriceBucket = &v
	}

	if raw.TopN != nil {
		if *raw.TopN < 1 || *raw.TopN > limits.TopNMax {
			return Preferences{}, &ValidationError{
				Field:   "top_n",
				Message: fmt.Sprintf("must be between 1 and %d, got %d", limits.TopNMax, *raw.TopN),
			}
		}
		prefs.TopN = *raw.TopN
	}

	return prefs, nil
}

// normalizeList trims, lower-cases, deduplicates, and sorts string values,
// dropping empties. Sorting keeps downstream fingerprints stable regardless
// of input order.
func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SplitList splits a comma-separated query value into its parts. Used by the
// transport layer, which accepts both repeated and comma-joined parameters.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
