package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// Wikipedia runs an opensearch and fetches the REST summary of each hit.
type Wikipedia struct {
	client  *httpclient.Client
	lang    string
	baseURL string // overrides https://<lang>.wikipedia.org
}

var _ ports.LiveSearcher = (*Wikipedia)(nil)

// NewWikipedia creates the adapter for a language edition (default en).
func NewWikipedia(client *httpclient.Client, lang, baseURL string) *Wikipedia {
	if lang == "" {
		lang = "en"
	}
	return &Wikipedia{client: client, lang: lang, baseURL: strings.TrimRight(baseURL, "/")}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

func (w *Wikipedia) root() string {
	if w.baseURL != "" {
		return w.baseURL
	}
	return fmt.Sprintf("https://%s.wikipedia.org", w.lang)
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Search looks up titles and keeps those with a non-empty summary, in
// opensearch order.
func (w *Wikipedia) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	params := url.Values{
		"action": {"opensearch"},
		"search": {query},
		"limit":  {fmt.Sprint(maxResults)},
		"format": {"json"},
	}
	var raw []json.RawMessage
	if err := w.client.GetJSON(ctx, w.root()+"/w/api.php?"+params.Encode(), nil, &raw); err != nil {
		return ports.SearchResult{}, fmt.Errorf("wikipedia opensearch: %w", err)
	}
	if len(raw) < 4 {
		return ports.SearchResult{}, nil
	}
	var titles, urls []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return ports.SearchResult{}, fmt.Errorf("decoding titles: %w", err)
	}
	_ = json.Unmarshal(raw[3], &urls)

	summaries := make([]*wikiSummary, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, title := range titles {
		g.Go(func() error {
			s, err := w.summary(gctx, title)
			if err == nil {
				summaries[i] = s
			}
			return nil
		})
	}
	_ = g.Wait()

	var out ports.SearchResult
	for i, s := range summaries {
		if s == nil || strings.TrimSpace(s.Extract) == "" {
			continue
		}
		title := s.Title
		if title == "" {
			title = titles[i]
		}
		link := s.ContentURLs.Desktop.Page
		if link == "" && i < len(urls) {
			link = urls[i]
		}
		out.Snippets = append(out.Snippets, title+": "+strings.TrimSpace(s.Extract))
		out.Sources = append(out.Sources, entities.SourceRecord{Type: "wikipedia", Title: title, URL: link})
	}
	return out, nil
}

func (w *Wikipedia) summary(ctx context.Context, title string) (*wikiSummary, error) {
	path := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	var s wikiSummary
	if err := w.client.GetJSON(ctx, w.root()+"/api/rest_v1/page/summary/"+path, nil, &s); err != nil {
		return nil, fmt.Errorf("wikipedia summary %q: %w", title, err)
	}
	return &s, nil
}
