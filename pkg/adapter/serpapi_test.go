package adapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/aria/pkg/adapter"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestSerpAPISearch(t *testing.T) {
	var gotQuery, gotKey, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("api_key")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"title": "Paper A", "link": "https://example.com/a", "snippet": "about A", "source": "Nature", "date": "2025-01-15"},
				{"title": "Paper B", "link": "https://example.com/b", "snippet": "about B"},
				{"title": "Paper C", "link": "https://example.com/c", "snippet": "about C", "source": "Science"}
			]
		}`))
	}))
	defer srv.Close()

	client := adapter.NewSerpAPI("test-key", adapter.WithSerpAPIBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "room temperature superconductors", 2)
	gt.NoError(t, err)

	gt.Equal(t, gotQuery, "room temperature superconductors")
	gt.Equal(t, gotKey, "test-key")
	gt.Equal(t, gotNum, "2")

	// Provider may return more hits than requested; the client truncates
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Title, "Paper A")
	gt.Equal(t, results[0].Author, "Nature")
	gt.Equal(t, results[0].Published, "2025-01-15")
	gt.Equal(t, results[1].Author, "Unknown Source")
	gt.S(t, results[1].Published).Contains("Accessed on")
}

func TestSerpAPISearchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results": []}`))
	}))
	defer srv.Close()

	client := adapter.NewSerpAPI("test-key", adapter.WithSerpAPIBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "no such thing", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestSerpAPISearchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid API key"}`))
	}))
	defer srv.Close()

	client := adapter.NewSerpAPI("bad-key", adapter.WithSerpAPIBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "anything", 2)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagSearchFailed))
}

func TestSerpAPISearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := adapter.NewSerpAPI("test-key", adapter.WithSerpAPIBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "anything", 2)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagSearchFailed))
}
