package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/tably/tably/internal/catalog"
)

// RestaurantSource implements catalog.Source against a restaurants table.
type RestaurantSource struct {
	db    *DB
	limit int // 0 = no limit
}

// NewRestaurantSource creates a Postgres-backed catalogue source.
func NewRestaurantSource(db *DB, limit int) *RestaurantSource {
	return &RestaurantSource{db: db, limit: limit}
}

// Load reads the full restaurants table. Cuisines are stored as a
// comma-separated text column, matching the dataset's raw shape.
func (s *RestaurantSource) Load(ctx context.Context) ([]catalog.Restaurant, error) {
	query := `
		SELECT id, name, city, area, cuisines, price_range, rating, votes
		FROM restaurants
		ORDER BY id
	`
	if s.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", s.limit)
	}

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []catalog.Restaurant
	for rows.Next() {
		var (
			r        catalog.Restaurant
			city     *string
			area     *string
			cuisines *string
			votes    *int
		)
		if err := rows.Scan(&r.ID, &r.Name, &city, &area, &cuisines, &r.PriceRange, &r.Rating, &votes); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}

		if city != nil {
			r.City = strings.ToLower(strings.TrimSpace(*city))
		}
		if area != nil {
			r.Area = strings.TrimSpace(*area)
		}
		if cuisines != nil {
			for _, part := range strings.Split(*cuisines, ",") {
				if c := strings.TrimSpace(part); c != "" {
					r.Cuisines = append(r.Cuisines, c)
				}
			}
		}
		if votes != nil && *votes > 0 {
			r.Votes = *votes
		}

		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read restaurants: %w", err)
	}

	return restaurants, nil
}

var _ catalog.Source = (*RestaurantSource)(nil)
