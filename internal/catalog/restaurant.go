// Package catalog defines the restaurant domain model and the dataset sources that load it.
package catalog

import (
	"context"
	"sort"
	"strings"
)

// Restaurant is a single catalogue entry. Instances are built once at load
// time and shared read-only across requests; nothing may mutate them
// afterwards.
type Restaurant struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	City       string   `json:"city,omitempty"` // lowercased at load time for matching
	Area       string   `json:"area,omitempty"`
	Cuisines   []string `json:"cuisines"`
	PriceRange *int     `json:"price_range,omitempty"` // 1 (budget) to 4 (premium)
	Rating     *float64 `json:"rating,omitempty"`      // 0.0 to 5.0
	Votes      int      `json:"votes"`
}

// Source loads the raw restaurant catalogue in bulk. Implementations cover
// CSV files, the Hugging Face datasets-server API, and Postgres.
type Source interface {
	// Load returns the full, normalized catalogue in source order.
	Load(ctx context.Context) ([]Restaurant, error)
}

// Table is the immutable in-memory restaurant catalogue. It deduplicates
// entries on construction and precomputes the distinct city and cuisine sets
// served by the metadata endpoint. Concurrent reads need no locking because
// the table never changes after NewTable returns.
type Table struct {
	restaurants []*Restaurant
	cities      []string
	cuisines    []string
}

// NewTable builds a table from loaded restaurants, dropping duplicates that
// share the same (name, city, area) composite key. The first occurrence wins.
func NewTable(restaurants []Restaurant) *Table {
	t := &Table{restaurants: make([]*Restaurant, 0, len(restaurants))}

	seen := make(map[string]struct{}, len(restaurants))
	citySet := make(map[string]struct{})
	cuisineSet := make(map[string]struct{})

	for i := range restaurants {
		r := restaurants[i]
		key := dedupKey(r.Name, r.City, r.Area)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		t.restaurants = append(t.restaurants, &r)

		if r.City != "" {
			citySet[r.City] = struct{}{}
		}
		for _, c := range r.Cuisines {
			cuisineSet[c] = struct{}{}
		}
	}

	t.cities = sortedKeys(citySet)
	t.cuisines = sortedKeys(cuisineSet)
	return t
}

func dedupKey(name, city, area string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(city) + "|" + strings.ToLower(area)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every restaurant in the table. The returned slice and the
// restaurants it points to are shared; callers must treat them as read-only.
func (t *Table) All() []*Restaurant {
	return t.restaurants
}

// Len returns the number of restaurants in the table.
func (t *Table) Len() int {
	return len(t.restaurants)
}

// Cities returns the distinct non-empty city names, sorted.
func (t *Table) Cities() []string {
	return t.cities
}

// Cuisines returns the distinct cuisine names, sorted.
func (t *Table) Cuisines() []string {
	return t.cuisines
}
