package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// DuckDuckGoHTML scrapes the DuckDuckGo HTML results page. It is only
// used when enhanced search is on.
type DuckDuckGoHTML struct {
	client  *httpclient.Client
	baseURL string
}

var _ ports.LiveSearcher = (*DuckDuckGoHTML)(nil)

// NewDuckDuckGoHTML creates the adapter.
func NewDuckDuckGoHTML(client *httpclient.Client, baseURL string) *DuckDuckGoHTML {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	return &DuckDuckGoHTML{client: client, baseURL: baseURL}
}

func (d *DuckDuckGoHTML) Name() string { return "duckduckgo_html" }

// HTMLResult is one parsed DuckDuckGo HTML result.
type HTMLResult struct {
	Title   string
	URL     string
	Snippet string
}

// Search fetches and parses the results page.
func (d *DuckDuckGoHTML) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.5",
	}
	body, err := d.client.GetText(ctx, d.baseURL+"?q="+url.QueryEscape(query), headers)
	if err != nil {
		return ports.SearchResult{}, fmt.Errorf("duckduckgo html: %w", err)
	}
	results, err := ParseDuckDuckGoHTML(body, maxResults)
	if err != nil {
		return ports.SearchResult{}, err
	}

	var out ports.SearchResult
	for _, r := range results {
		text := r.Snippet
		if text == "" {
			text = r.Title
		}
		out.Snippets = append(out.Snippets, text)
		out.Sources = append(out.Sources, entities.SourceRecord{Type: "duckduckgo", Title: r.Title, URL: r.URL})
	}
	return out, nil
}

// ParseDuckDuckGoHTML extracts result links and snippets. A snippet is
// attached to the most recent result link.
func ParseDuckDuckGoHTML(page string, maxResults int) ([]HTMLResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	var results []HTMLResult
	done := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n.Type == html.ElementNode {
			class := attr(n, "class")
			switch {
			case hasClass(class, "result__a"):
				if len(results) == maxResults {
					done = true
					return
				}
				results = append(results, HTMLResult{
					Title: textContent(n),
					URL:   resolveRedirect(attr(n, "href")),
				})
			case hasClass(class, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	kept := results[:0]
	for _, r := range results {
		if r.URL != "" && r.Title != "" {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == name {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
