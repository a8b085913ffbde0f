package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// SearchClient is the search gateway. Implementations return at most
// numResults documents; an empty result set is a valid outcome, not an
// error.
type SearchClient interface {
	Search(ctx context.Context, query string, numResults int) ([]*model.SearchResult, error)
}

// SerpAPI queries the SerpAPI Google engine.
type SerpAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type SerpAPIOption func(*SerpAPI)

// WithSerpAPIBaseURL overrides the endpoint, mainly for tests.
func WithSerpAPIBaseURL(baseURL string) SerpAPIOption {
	return func(c *SerpAPI) {
		c.baseURL = baseURL
	}
}

func NewSerpAPI(apiKey string, opts ...SerpAPIOption) *SerpAPI {
	c := &SerpAPI{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serpResponse struct {
	OrganicResults []serpOrganicResult `json:"organic_results"`
	Error          string              `json:"error"`
}

type serpOrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Date    string `json:"date"`
}

func (c *SerpAPI) Search(ctx context.Context, query string, numResults int) ([]*model.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(numResults))
	params.Set("gl", "us")
	params.Set("hl", "en")
	params.Set("api_key", c.apiKey)

	endpoint := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build search request", goerr.T(model.TagSearchFailed))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "search request failed", goerr.T(model.TagSearchFailed), goerr.V("query", query))
	}
	defer resp.Body.Close()

	var sr serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search response", goerr.T(model.TagSearchFailed), goerr.V("status", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK || sr.Error != "" {
		return nil, goerr.New("search provider returned an error",
			goerr.T(model.TagSearchFailed),
			goerr.V("status", resp.StatusCode),
			goerr.V("message", sr.Error),
			goerr.V("query", query))
	}

	results := make([]*model.SearchResult, 0, len(sr.OrganicResults))
	for _, item := range sr.OrganicResults {
		if len(results) >= numResults {
			break
		}
		author := item.Source
		if author == "" {
			author = "Unknown Source"
		}
		published := item.Date
		if published == "" {
			published = "Accessed on " + time.Now().Format("2006-01-02")
		}
		results = append(results, &model.SearchResult{
			Title:     item.Title,
			Link:      item.Link,
			Author:    author,
			Published: published,
			Snippet:   item.Snippet,
		})
	}
	return results, nil
}
