// Package search provides the live web search adapters. Free providers
// (DuckDuckGo, Wikipedia) form the primary path; keyed providers (Brave,
// Serper, Google CSE) are fallbacks.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// DuckDuckGo queries the Instant Answer API.
type DuckDuckGo struct {
	client  *httpclient.Client
	baseURL string
}

var _ ports.LiveSearcher = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates the adapter. An empty baseURL uses the public API.
func NewDuckDuckGo(client *httpclient.Client, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = "https://api.duckduckgo.com/"
	}
	return &DuckDuckGo{client: client, baseURL: baseURL}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

type ddgResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search returns the abstract plus up to maxResults related topics.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	params := url.Values{
		"q":           {query},
		"format":      {"json"},
		"no_redirect": {"1"},
		"no_html":     {"1"},
	}
	var resp ddgResponse
	if err := d.client.GetJSON(ctx, d.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return ports.SearchResult{}, fmt.Errorf("duckduckgo: %w", err)
	}

	var out ports.SearchResult
	if text := strings.TrimSpace(resp.AbstractText); text != "" {
		out.Snippets = append(out.Snippets, text)
		if resp.AbstractURL != "" {
			out.Sources = append(out.Sources, entities.SourceRecord{
				Type: "duckduckgo", Title: "Instant Answer", URL: resp.AbstractURL,
			})
		}
	}

	topics := resp.RelatedTopics
	if maxResults > 0 && len(topics) > maxResults {
		topics = topics[:maxResults]
	}
	for _, rt := range topics {
		text := strings.TrimSpace(rt.Text)
		if text == "" {
			continue
		}
		out.Snippets = append(out.Snippets, text)
		if rt.FirstURL != "" {
			out.Sources = append(out.Sources, entities.SourceRecord{
				Type: "duckduckgo", Title: text, URL: rt.FirstURL,
			})
		}
	}
	return out, nil
}
