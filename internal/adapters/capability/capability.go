// Package capability decides whether a model accepts image attachments.
package capability

import (
	"context"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

var visionMarkers = []string{
	"llava", "bakllava", "vision", "moondream", "minicpm-v",
	"qwen2-vl", "qwen2.5vl", "gemma3", "llama4", "granite3.2-vision",
}

// NameHeuristic guesses from the model name. It answers Yes for known
// vision families and Unknown otherwise.
type NameHeuristic struct{}

// SupportsImages implements ports.CapabilityProber.
func (NameHeuristic) SupportsImages(_ context.Context, model string) ports.Capability {
	name := strings.ToLower(model)
	for _, m := range visionMarkers {
		if strings.Contains(name, m) {
			return ports.CapabilityYes
		}
	}
	return ports.CapabilityUnknown
}

// ShowClient is the part of the Ollama API client used by ShowProber.
type ShowClient interface {
	Show(ctx context.Context, req *api.ShowRequest) (*api.ShowResponse, error)
}

// ShowProber asks the server for model details.
type ShowProber struct {
	client ShowClient
	logger *zap.Logger
}

// NewShowProber creates a prober backed by the Ollama show endpoint.
func NewShowProber(client ShowClient, logger *zap.Logger) *ShowProber {
	return &ShowProber{client: client, logger: logging.OrNop(logger).Named("capability")}
}

// SupportsImages implements ports.CapabilityProber. A model with a
// projector, a clip family or vision metadata is a Yes; a successful
// answer without any of these is a No.
func (p *ShowProber) SupportsImages(ctx context.Context, model string) ports.Capability {
	if p.client == nil || model == "" {
		return ports.CapabilityUnknown
	}
	resp, err := p.client.Show(ctx, &api.ShowRequest{Model: model})
	if err != nil {
		p.logger.Debug("show failed", zap.String("model", model), zap.Error(err))
		return ports.CapabilityUnknown
	}
	if len(resp.ProjectorInfo) > 0 {
		return ports.CapabilityYes
	}
	for _, f := range resp.Details.Families {
		if strings.EqualFold(f, "clip") || strings.EqualFold(f, "mllama") {
			return ports.CapabilityYes
		}
	}
	for k := range resp.ModelInfo {
		if strings.Contains(k, ".vision.") {
			return ports.CapabilityYes
		}
	}
	return ports.CapabilityNo
}

// Chain asks each prober in order; the first definitive answer wins and
// is cached per model. Unknown answers are not cached.
type Chain struct {
	probers []ports.CapabilityProber

	mu    sync.RWMutex
	cache map[string]ports.Capability
}

// NewChain creates a Chain. Nil probers are skipped.
func NewChain(probers ...ports.CapabilityProber) *Chain {
	c := &Chain{cache: make(map[string]ports.Capability)}
	for _, p := range probers {
		if p != nil {
			c.probers = append(c.probers, p)
		}
	}
	return c
}

// SupportsImages implements ports.CapabilityProber.
func (c *Chain) SupportsImages(ctx context.Context, model string) ports.Capability {
	c.mu.RLock()
	cached, ok := c.cache[model]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	for _, p := range c.probers {
		if got := p.SupportsImages(ctx, model); got != ports.CapabilityUnknown {
			c.mu.Lock()
			c.cache[model] = got
			c.mu.Unlock()
			return got
		}
	}
	return ports.CapabilityUnknown
}

// Forget drops the cached answer for model.
func (c *Chain) Forget(model string) {
	c.mu.Lock()
	delete(c.cache, model)
	c.mu.Unlock()
}
