package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource loads the catalogue from a local CSV export. The first row must
// be a header; column names follow the same aliases Normalize understands.
type CSVSource struct {
	path  string
	limit int // 0 = no limit
}

// NewCSVSource creates a source reading from the given file path.
func NewCSVSource(path string, limit int) *CSVSource {
	return &CSVSource{path: path, limit: limit}
}

// Load reads and normalizes every row of the file.
func (s *CSVSource) Load(ctx context.Context) ([]Restaurant, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var restaurants []Restaurant
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		rec := make(RawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		restaurants = append(restaurants, Normalize(rec))

		if s.limit > 0 && len(restaurants) >= s.limit {
			break
		}
	}

	return restaurants, nil
}

var _ Source = (*CSVSource)(nil)
