package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{
		Timeout: 5 * time.Second,
		Retry:   config.RetryPolicy{Attempts: 1, Delay: "1ms", MaxDelay: "1ms"},
	})
}

func TestDuckDuckGo_AbstractAndTopics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "golang", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("no_html"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"AbstractText": "Go is a language.",
			"AbstractURL":  "https://go.dev",
			"RelatedTopics": []map[string]interface{}{
				{"Text": "Topic one", "FirstURL": "https://ddg/1"},
				{"Name": "group", "Topics": []interface{}{}},
				{"Text": "Topic two", "FirstURL": "https://ddg/2"},
				{"Text": "Topic three", "FirstURL": "https://ddg/3"},
			},
		})
	}))
	defer server.Close()

	res, err := NewDuckDuckGo(testClient(), server.URL+"/").Search(context.Background(), "golang", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"Go is a language.", "Topic one"}, res.Snippets)
	assert.Equal(t, []entities.SourceRecord{
		{Type: "duckduckgo", Title: "Instant Answer", URL: "https://go.dev"},
		{Type: "duckduckgo", Title: "Topic one", URL: "https://ddg/1"},
	}, res.Sources)
}

func TestWikipedia_OpensearchAndSummaries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/w/api.php":
			assert.Equal(t, "opensearch", r.URL.Query().Get("action"))
			json.NewEncoder(w).Encode([]interface{}{
				"go",
				[]string{"Go (language)", "Empty Page"},
				[]string{"", ""},
				[]string{"https://en.wikipedia.org/wiki/Go_(language)", "https://en.wikipedia.org/wiki/Empty"},
			})
		case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/Go_"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"title":   "Go (programming language)",
				"extract": "Go is statically typed.",
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"title": "Empty Page", "extract": ""})
		}
	}))
	defer server.Close()

	res, err := NewWikipedia(testClient(), "en", server.URL).Search(context.Background(), "go", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"Go (programming language): Go is statically typed."}, res.Snippets)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "wikipedia", res.Sources[0].Type)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(language)", res.Sources[0].URL)
}

const ddgPage = `<html><body>
<div class="result results_links">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=x">Example <b>A</b></a>
  <a class="result__snippet" href="#">First   snippet</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.com/b">Example B</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.com/c">Example C</a>
  <div class="result__snippet">Third</div>
</div>
</body></html>`

func TestParseDuckDuckGoHTML(t *testing.T) {
	results, err := ParseDuckDuckGoHTML(ddgPage, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, HTMLResult{Title: "Example A", URL: "https://example.com/a", Snippet: "First snippet"}, results[0])
	assert.Equal(t, "https://example.com/b", results[1].URL)
	assert.Empty(t, results[1].Snippet)
}

func TestDuckDuckGoHTML_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go news", r.URL.Query().Get("q"))
		w.Write([]byte(ddgPage))
	}))
	defer server.Close()

	res, err := NewDuckDuckGoHTML(testClient(), server.URL).Search(context.Background(), "go news", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"First snippet", "Example B", "Third"}, res.Snippets)
	assert.Len(t, res.Sources, 3)
}

func TestKeyedProviders_MissingKey(t *testing.T) {
	ctx := context.Background()
	providers := []ports.LiveSearcher{
		NewBrave(testClient(), "", ""),
		NewSerper(testClient(), "", ""),
		NewGoogleCSE(testClient(), "key", "", ""),
	}
	for _, p := range providers {
		_, err := p.Search(ctx, "q", 3)
		assert.ErrorIs(t, err, ports.ErrMissingKey, p.Name())
	}
}

func TestBrave_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"web": map[string]interface{}{"results": []map[string]interface{}{
				{"title": "T1", "url": "https://b/1", "description": "D1"},
				{"title": "T2", "url": "", "description": ""},
			}},
		})
	}))
	defer server.Close()

	res, err := NewBrave(testClient(), "secret", server.URL).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "T2"}, res.Snippets)
	assert.Equal(t, []entities.SourceRecord{{Type: "brave", Title: "T1", URL: "https://b/1"}}, res.Sources)
}

func TestSerper_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "k", r.Header.Get("X-API-KEY"))
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "weather", body["q"])
		json.NewEncoder(w).Encode(map[string]interface{}{
			"organic": []map[string]interface{}{{"title": "S", "link": "https://s", "snippet": "sunny"}},
		})
	}))
	defer server.Close()

	res, err := NewSerper(testClient(), "k", server.URL).Search(context.Background(), "weather", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunny"}, res.Snippets)
}

func TestGoogleCSE_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cx1", r.URL.Query().Get("cx"))
		assert.Equal(t, "10", r.URL.Query().Get("num"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{"title": "G", "link": "https://g", "snippet": "found"}},
		})
	}))
	defer server.Close()

	res, err := NewGoogleCSE(testClient(), "k", "cx1", server.URL).Search(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.Equal(t, []entities.SourceRecord{{Type: "google_cse", Title: "G", URL: "https://g"}}, res.Sources)
}

func TestProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewDuckDuckGo(testClient(), server.URL+"/").Search(context.Background(), "q", 3)
	assert.True(t, httpclient.IsStatus(err, http.StatusServiceUnavailable))
}
