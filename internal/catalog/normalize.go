package catalog

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RawRecord is a single untyped row as delivered by a dataset source. Field
// names vary between dataset exports; Normalize knows the common aliases.
type RawRecord map[string]any

// Zomato-style exports use a handful of alternative column names for the
// same attribute. Lookup order matters: the first non-empty value wins.
var (
	idKeys     = []string{"id", "restaurant_id", "url"}
	nameKeys   = []string{"name", "restaurant_name"}
	cityKeys   = []string{"city", "listed_in(city)", "city_name"}
	areaKeys   = []string{"location", "address", "locality"}
	cuisineKey = []string{"cuisines", "cuisine", "tags"}
	ratingKeys = []string{"rating", "rate", "aggregate_rating"}
	votesKeys  = []string{"votes", "rating_count", "review_count"}
	costKeys   = []string{"approx_cost(for two people)", "approx_cost_for_two_people", "approx_cost"}
)

// Normalize converts a raw dataset record into a Restaurant. It is
// deterministic and performs no I/O: the same record always produces the
// same Restaurant, including its synthetic id.
func Normalize(rec RawRecord) Restaurant {
	name := strings.TrimSpace(firstString(rec, nameKeys))
	if name == "" {
		name = "Unknown Restaurant"
	}

	city := strings.ToLower(strings.TrimSpace(firstString(rec, cityKeys)))
	area := strings.TrimSpace(firstString(rec, areaKeys))

	id := strings.TrimSpace(firstString(rec, idKeys))
	if id == "" {
		id = syntheticID(name, city, area)
	}

	return Restaurant{
		ID:         id,
		Name:       name,
		City:       city,
		Area:       area,
		Cuisines:   splitCuisines(firstValue(rec, cuisineKey)),
		PriceRange: derivePriceRange(rec),
		Rating:     parseRating(firstValue(rec, ratingKeys)),
		Votes:      parseVotes(firstValue(rec, votesKeys)),
	}
}

// syntheticID derives a stable UUIDv5 from the dedup key so that records
// without an id column keep the same id across reloads.
func syntheticID(name, city, area string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tably:restaurant:"+dedupKey(name, city, area))).String()
}

func firstValue(rec RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(rec RawRecord, keys []string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s := asString(v); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// parseRating accepts plain floats, "4.3/5" style strings, and the usual
// placeholder tokens ("NEW", "NaN", "-") which all mean absent.
func parseRating(v any) *float64 {
	f := parseFloat(v)
	if f == nil {
		return nil
	}
	if *f < 0 || *f > 5 {
		return nil
	}
	return f
}

func parseFloat(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	}

	text := strings.TrimSpace(asString(v))
	if text == "" {
		return nil
	}
	switch strings.ToUpper(text) {
	case "NEW", "NAN", "NULL", "NA", "N/A", "-":
		return nil
	}
	// Zomato-style ratings look like "4.3/5"
	if i := strings.Index(text, "/"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseVotes handles comma-grouped counts ("1,234"). Absent or negative
// values become zero; a missing vote count and zero votes score identically.
func parseVotes(v any) int {
	n := parseInt(v)
	if n == nil || *n < 0 {
		return 0
	}
	return *n
}

func parseInt(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return &t
	case float64:
		n := int(t)
		return &n
	}

	text := strings.ReplaceAll(strings.TrimSpace(asString(v)), ",", "")
	if text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

func splitCuisines(v any) []string {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		var out []string
		for _, item := range list {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(asString(v), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// derivePriceRange prefers an explicit price_range column and otherwise
// buckets approximate cost for two: <=500 -> 1, <=1000 -> 2, <=2000 -> 3,
// above -> 4.
func derivePriceRange(rec RawRecord) *int {
	if v, ok := rec["price_range"]; ok {
		if n := parseInt(v); n != nil && *n >= 1 && *n <= 4 {
			return n
		}
	}

	cost := parseInt(firstValue(rec, costKeys))
	if cost == nil {
		return nil
	}

	bucket := 4
	switch {
	case *cost <= 500:
		bucket = 1
	case *cost <= 1000:
		bucket = 2
	case *cost <= 2000:
		bucket = 3
	}
	return &bucket
}
