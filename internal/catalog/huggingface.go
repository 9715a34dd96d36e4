package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHFBaseURL is the public Hugging Face datasets-server endpoint.
	DefaultHFBaseURL = "https://datasets-server.huggingface.co"

	// hfPageSize is the datasets-server maximum rows per request.
	hfPageSize = 100
)

// HFSource loads the catalogue from the Hugging Face datasets-server rows
// API, paging through the requested split.
type HFSource struct {
	baseURL    string
	dataset    string
	split      string
	limit      int
	httpClient *http.Client
}

// HFOption is a functional option for configuring HFSource.
type HFOption func(*HFSource)

// WithHFBaseURL sets a custom datasets-server base URL.
func WithHFBaseURL(u string) HFOption {
	return func(s *HFSource) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHFSplit sets the dataset split to load.
func WithHFSplit(split string) HFOption {
	return func(s *HFSource) {
		s.split = split
	}
}

// WithHFLimit caps the number of rows loaded (0 = no cap).
func WithHFLimit(limit int) HFOption {
	return func(s *HFSource) {
		s.limit = limit
	}
}

// WithHFHTTPClient sets a custom HTTP client.
func WithHFHTTPClient(client *http.Client) HFOption {
	return func(s *HFSource) {
		s.httpClient = client
	}
}

// NewHFSource creates a source for the named dataset.
func NewHFSource(dataset string, opts ...HFOption) *HFSource {
	s := &HFSource{
		baseURL: DefaultHFBaseURL,
		dataset: dataset,
		split:   "train",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hfRowsResponse is the subset of the rows API response we consume.
type hfRowsResponse struct {
	Rows []struct {
		Row RawRecord `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// Load pages through the split and normalizes every row.
func (s *HFSource) Load(ctx context.Context) ([]Restaurant, error) {
	var restaurants []Restaurant

	for offset := 0; ; offset += hfPageSize {
		page, err := s.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Rows) == 0 {
			break
		}

		for _, row := range page.Rows {
			restaurants = append(restaurants, Normalize(row.Row))
			if s.limit > 0 && len(restaurants) >= s.limit {
				return restaurants, nil
			}
		}

		if offset+hfPageSize >= page.NumRowsTotal {
			break
		}
	}

	return restaurants, nil
}

func (s *HFSource) fetchPage(ctx context.Context, offset int) (*hfRowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", s.dataset)
	q.Set("config", "default")
	q.Set("split", s.split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(hfPageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset rows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("datasets-server error (status %d): %s", resp.StatusCode, string(body))
	}

	var page hfRowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding dataset rows: %w", err)
	}

	return &page, nil
}

var _ Source = (*HFSource)(nil)
