package images

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func TestUnsplash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID k", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []map[string]interface{}{
			{"description": "", "alt_description": "a cat", "urls": map[string]string{"regular": "https://i/1", "thumb": "https://t/1"}, "links": map[string]string{"html": "https://u/1"}},
			{"urls": map[string]string{"regular": "https://i/2"}},
			{"description": "extra"},
		}})
	}))
	defer server.Close()

	items, err := NewUnsplash(testClient(), "k", server.URL).SearchImages(context.Background(), "cat", 2)
	require.NoError(t, err)
	assert.Equal(t, []entities.ImageItem{
		{Title: "a cat", Image: "https://i/1", Thumbnail: "https://t/1", URL: "https://u/1"},
		{Title: "Unsplash image", Image: "https://i/2"},
	}, items)
}

func TestBing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("Ocp-Apim-Subscription-Key"))
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []map[string]interface{}{
			{"name": "Bridge", "contentUrl": "https://i/b", "thumbnailUrl": "https://t/b", "hostPageUrl": "https://p/b"},
		}})
	}))
	defer server.Close()

	items, err := NewBing(testClient(), "k", server.URL).SearchImages(context.Background(), "bridge", 4)
	require.NoError(t, err)
	assert.Equal(t, []entities.ImageItem{{Title: "Bridge", Image: "https://i/b", Thumbnail: "https://t/b", URL: "https://p/b"}}, items)
}

func TestPexels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{"photos": []map[string]interface{}{
			{"alt": "", "url": "https://p/1", "src": map[string]string{"large": "https://i/1", "tiny": "https://t/1"}},
		}})
	}))
	defer server.Close()

	items, err := NewPexels(testClient(), "k", server.URL).SearchImages(context.Background(), "x", 4)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pexels image", items[0].Title)
	assert.Equal(t, "https://t/1", items[0].Thumbnail)
}

func TestMissingKey(t *testing.T) {
	for _, s := range []ports.ImageSearcher{
		NewUnsplash(testClient(), "", ""),
		NewBing(testClient(), "", ""),
		NewPexels(testClient(), "", ""),
	} {
		_, err := s.SearchImages(context.Background(), "q", 4)
		assert.ErrorIs(t, err, ports.ErrMissingKey, s.Name())
	}
}
