package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

// ModelCatalog implements ports.ModelCatalog with the Ollama API client.
// The model list is cached until Invalidate or the TTL expires.
type ModelCatalog struct {
	client *api.Client
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	models  []string
	fetched time.Time
}

var _ ports.ModelCatalog = (*ModelCatalog)(nil)

// NewModelCatalog creates a catalog for the server at baseURL.
func NewModelCatalog(baseURL string, ttl time.Duration, logger *zap.Logger) (*ModelCatalog, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ModelCatalog{
		client: api.NewClient(u, &http.Client{Timeout: 15 * time.Second}),
		ttl:    ttl,
		logger: logging.OrNop(logger).Named("models"),
	}, nil
}

// Client exposes the underlying API client for other Ollama adapters.
func (c *ModelCatalog) Client() *api.Client {
	return c.client
}

// Models returns the installed model names, sorted.
func (c *ModelCatalog) Models(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models != nil && time.Since(c.fetched) < c.ttl {
		return append([]string(nil), c.models...), nil
	}

	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)

	c.models = names
	c.fetched = time.Now()
	c.logger.Debug("model list refreshed", zap.Int("count", len(names)))
	return append([]string(nil), names...), nil
}

// Invalidate drops the cached model list.
func (c *ModelCatalog) Invalidate() {
	c.mu.Lock()
	c.models = nil
	c.mu.Unlock()
}

// Healthy reports whether the server answers a heartbeat.
func (c *ModelCatalog) Healthy(ctx context.Context) bool {
	if err := c.client.Heartbeat(ctx); err != nil {
		c.logger.Debug("heartbeat failed", zap.Error(err))
		return false
	}
	return true
}
