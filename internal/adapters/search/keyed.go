package search

import (
	"context"
	"fmt"
	"net/url"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// Brave queries the Brave Search API.
type Brave struct {
	client  *httpclient.Client
	key     string
	baseURL string
}

// NewBrave creates the adapter. Search returns ports.ErrMissingKey without a key.
func NewBrave(client *httpclient.Client, key, baseURL string) *Brave {
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	return &Brave{client: client, key: key, baseURL: baseURL}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	if b.key == "" {
		return ports.SearchResult{}, ports.ErrMissingKey
	}
	params := url.Values{"q": {query}, "count": {fmt.Sprint(max(1, maxResults))}}
	headers := map[string]string{"X-Subscription-Token": b.key, "Accept": "application/json"}

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := b.client.GetJSON(ctx, b.baseURL+"?"+params.Encode(), headers, &resp); err != nil {
		return ports.SearchResult{}, fmt.Errorf("brave: %w", err)
	}

	var hits []webHit
	for _, r := range resp.Web.Results {
		hits = append(hits, webHit{r.Title, r.URL, r.Description})
	}
	return collect(b.Name(), hits, maxResults), nil
}

// Serper queries google.serper.dev.
type Serper struct {
	client  *httpclient.Client
	key     string
	baseURL string
}

// NewSerper creates the adapter. Search returns ports.ErrMissingKey without a key.
func NewSerper(client *httpclient.Client, key, baseURL string) *Serper {
	if baseURL == "" {
		baseURL = "https://google.serper.dev/search"
	}
	return &Serper{client: client, key: key, baseURL: baseURL}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	if s.key == "" {
		return ports.SearchResult{}, ports.ErrMissingKey
	}
	var resp struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	in := map[string]any{"q": query, "num": max(1, maxResults)}
	if err := s.client.PostJSON(ctx, s.baseURL, map[string]string{"X-API-KEY": s.key}, in, &resp); err != nil {
		return ports.SearchResult{}, fmt.Errorf("serper: %w", err)
	}

	var hits []webHit
	for _, r := range resp.Organic {
		hits = append(hits, webHit{r.Title, r.Link, r.Snippet})
	}
	return collect(s.Name(), hits, maxResults), nil
}

// GoogleCSE queries the Google Custom Search JSON API.
type GoogleCSE struct {
	client  *httpclient.Client
	key     string
	cx      string
	baseURL string
}

// NewGoogleCSE creates the adapter. Both key and cx are required.
func NewGoogleCSE(client *httpclient.Client, key, cx, baseURL string) *GoogleCSE {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/customsearch/v1"
	}
	return &GoogleCSE{client: client, key: key, cx: cx, baseURL: baseURL}
}

func (g *GoogleCSE) Name() string { return "google_cse" }

func (g *GoogleCSE) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	if g.key == "" || g.cx == "" {
		return ports.SearchResult{}, ports.ErrMissingKey
	}
	params := url.Values{
		"key": {g.key},
		"cx":  {g.cx},
		"q":   {query},
		"num": {fmt.Sprint(min(10, max(1, maxResults)))},
	}
	var resp struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := g.client.GetJSON(ctx, g.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return ports.SearchResult{}, fmt.Errorf("google cse: %w", err)
	}

	var hits []webHit
	for _, r := range resp.Items {
		hits = append(hits, webHit{r.Title, r.Link, r.Snippet})
	}
	return collect(g.Name(), hits, maxResults), nil
}

type webHit struct {
	title, url, snippet string
}

func collect(provider string, hits []webHit, maxResults int) ports.SearchResult {
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	var out ports.SearchResult
	for _, h := range hits {
		text := h.snippet
		if text == "" {
			text = h.title
		}
		if text == "" {
			continue
		}
		out.Snippets = append(out.Snippets, text)
		if h.url != "" {
			out.Sources = append(out.Sources, entities.SourceRecord{Type: provider, Title: h.title, URL: h.url})
		}
	}
	return out
}

var (
	_ ports.LiveSearcher = (*Brave)(nil)
	_ ports.LiveSearcher = (*Serper)(nil)
	_ ports.LiveSearcher = (*GoogleCSE)(nil)
)
