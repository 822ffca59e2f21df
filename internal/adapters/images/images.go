// Package images provides keyed image search adapters. Each returns
// ports.ErrMissingKey when its key is not configured.
package images

import (
	"context"
	"fmt"
	"net/url"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// Unsplash searches photos on Unsplash.
type Unsplash struct {
	client  *httpclient.Client
	key     string
	baseURL string
}

func NewUnsplash(client *httpclient.Client, key, baseURL string) *Unsplash {
	if baseURL == "" {
		baseURL = "https://api.unsplash.com/search/photos"
	}
	return &Unsplash{client: client, key: key, baseURL: baseURL}
}

func (u *Unsplash) Name() string { return "unsplash" }

func (u *Unsplash) SearchImages(ctx context.Context, query string, maxResults int) ([]entities.ImageItem, error) {
	if u.key == "" {
		return nil, ports.ErrMissingKey
	}
	params := url.Values{"query": {query}, "per_page": {fmt.Sprint(maxResults)}}
	var resp struct {
		Results []struct {
			Description    string `json:"description"`
			AltDescription string `json:"alt_description"`
			URLs           struct {
				Regular string `json:"regular"`
				Thumb   string `json:"thumb"`
			} `json:"urls"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"results"`
	}
	headers := map[string]string{"Authorization": "Client-ID " + u.key}
	if err := u.client.GetJSON(ctx, u.baseURL+"?"+params.Encode(), headers, &resp); err != nil {
		return nil, fmt.Errorf("unsplash: %w", err)
	}

	items := make([]entities.ImageItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, entities.ImageItem{
			Title:     textutil.FirstNonEmpty(r.Description, r.AltDescription, "Unsplash image"),
			Image:     r.URLs.Regular,
			Thumbnail: r.URLs.Thumb,
			URL:       r.Links.HTML,
		})
	}
	return limit(items, maxResults), nil
}

// Bing searches the Bing Image Search API.
type Bing struct {
	client  *httpclient.Client
	key     string
	baseURL string
}

func NewBing(client *httpclient.Client, key, baseURL string) *Bing {
	if baseURL == "" {
		baseURL = "https://api.bing.microsoft.com/v7.0/images/search"
	}
	return &Bing{client: client, key: key, baseURL: baseURL}
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) SearchImages(ctx context.Context, query string, maxResults int) ([]entities.ImageItem, error) {
	if b.key == "" {
		return nil, ports.ErrMissingKey
	}
	params := url.Values{"q": {query}, "count": {fmt.Sprint(maxResults)}}
	var resp struct {
		Value []struct {
			Name         string `json:"name"`
			ContentURL   string `json:"contentUrl"`
			ThumbnailURL string `json:"thumbnailUrl"`
			HostPageURL  string `json:"hostPageUrl"`
		} `json:"value"`
	}
	headers := map[string]string{"Ocp-Apim-Subscription-Key": b.key}
	if err := b.client.GetJSON(ctx, b.baseURL+"?"+params.Encode(), headers, &resp); err != nil {
		return nil, fmt.Errorf("bing images: %w", err)
	}

	items := make([]entities.ImageItem, 0, len(resp.Value))
	for _, v := range resp.Value {
		items = append(items, entities.ImageItem{
			Title:     textutil.FirstNonEmpty(v.Name, "Bing image"),
			Image:     v.ContentURL,
			Thumbnail: v.ThumbnailURL,
			URL:       v.HostPageURL,
		})
	}
	return limit(items, maxResults), nil
}

// Pexels searches photos on Pexels.
type Pexels struct {
	client  *httpclient.Client
	key     string
	baseURL string
}

func NewPexels(client *httpclient.Client, key, baseURL string) *Pexels {
	if baseURL == "" {
		baseURL = "https://api.pexels.com/v1/search"
	}
	return &Pexels{client: client, key: key, baseURL: baseURL}
}

func (p *Pexels) Name() string { return "pexels" }

func (p *Pexels) SearchImages(ctx context.Context, query string, maxResults int) ([]entities.ImageItem, error) {
	if p.key == "" {
		return nil, ports.ErrMissingKey
	}
	params := url.Values{"query": {query}, "per_page": {fmt.Sprint(maxResults)}}
	var resp struct {
		Photos []struct {
			Alt string `json:"alt"`
			URL string `json:"url"`
			Src struct {
				Large string `json:"large"`
				Tiny  string `json:"tiny"`
			} `json:"src"`
		} `json:"photos"`
	}
	headers := map[string]string{"Authorization": p.key}
	if err := p.client.GetJSON(ctx, p.baseURL+"?"+params.Encode(), headers, &resp); err != nil {
		return nil, fmt.Errorf("pexels: %w", err)
	}

	items := make([]entities.ImageItem, 0, len(resp.Photos))
	for _, ph := range resp.Photos {
		items = append(items, entities.ImageItem{
			Title:     textutil.FirstNonEmpty(ph.Alt, "Pexels image"),
			Image:     ph.Src.Large,
			Thumbnail: ph.Src.Tiny,
			URL:       ph.URL,
		})
	}
	return limit(items, maxResults), nil
}

func limit(items []entities.ImageItem, n int) []entities.ImageItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

var (
	_ ports.ImageSearcher = (*Unsplash)(nil)
	_ ports.ImageSearcher = (*Bing)(nil)
	_ ports.ImageSearcher = (*Pexels)(nil)
)
