package externalservices

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// searchAPIResponse is the subset of the search provider's JSON response
// this client cares about (organic results with position/title/link/snippet).
type searchAPIResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
}

// SearchClient is a resty-based SearchProvider for the external web search
// service (§6), grounded on the teacher's single-purpose HTTP client shape
// generalized to an interface-satisfying collaborator.
type SearchClient struct {
	client  *resty.Client
	apiKey  string
	baseURL string
	log     *logging.Logger
}

// NewSearchClient builds a SearchClient against baseURL (e.g. SerpAPI) that
// retries a failed request twice. The client sets no timeout of its own;
// requests are bounded only by the caller's context.
func NewSearchClient(baseURL, apiKey string, log *logging.Logger) *SearchClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(2)
	return &SearchClient{client: client, apiKey: apiKey, baseURL: baseURL, log: log}
}

// Search implements SearchProvider (§6).
func (s *SearchClient) Search(ctx context.Context, query string, num int) ([]SearchResult, error) {
	var body searchAPIResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"num":    fmt.Sprintf("%d", num),
			"api_key": s.apiKey,
		}).
		SetResult(&body).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("search request for %q: %w", query, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search provider returned %s for %q", resp.Status(), query)
	}

	out := make([]SearchResult, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		out = append(out, SearchResult{
			URL:     r.Link,
			Title:   r.Title,
			Snippet: r.Snippet,
			Rank:    r.Position,
		})
		if len(out) >= num {
			break
		}
	}
	return out, nil
}
