package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

type fakeShow struct {
	resp  *api.ShowResponse
	err   error
	calls int
}

func (f *fakeShow) Show(_ context.Context, _ *api.ShowRequest) (*api.ShowResponse, error) {
	f.calls++
	return f.resp, f.err
}

type countingProber struct {
	answer ports.Capability
	calls  int
}

func (p *countingProber) SupportsImages(context.Context, string) ports.Capability {
	p.calls++
	return p.answer
}

func TestNameHeuristic(t *testing.T) {
	tests := []struct {
		model string
		want  ports.Capability
	}{
		{"llava:13b", ports.CapabilityYes},
		{"Gemma3:4b", ports.CapabilityYes},
		{"llama3.2-vision", ports.CapabilityYes},
		{"qwen2.5vl:7b", ports.CapabilityYes},
		{"llama3.1", ports.CapabilityUnknown},
		{"", ports.CapabilityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, NameHeuristic{}.SupportsImages(context.Background(), tt.model))
		})
	}
}

func TestShowProber(t *testing.T) {
	ctx := context.Background()

	withProjector := &fakeShow{resp: &api.ShowResponse{ProjectorInfo: map[string]any{"clip.has_vision_encoder": true}}}
	assert.Equal(t, ports.CapabilityYes, NewShowProber(withProjector, nil).SupportsImages(ctx, "m"))

	clip := &fakeShow{resp: &api.ShowResponse{Details: api.ModelDetails{Families: []string{"llama", "clip"}}}}
	assert.Equal(t, ports.CapabilityYes, NewShowProber(clip, nil).SupportsImages(ctx, "m"))

	visionInfo := &fakeShow{resp: &api.ShowResponse{ModelInfo: map[string]any{"gemma3.vision.block_count": 27}}}
	assert.Equal(t, ports.CapabilityYes, NewShowProber(visionInfo, nil).SupportsImages(ctx, "m"))

	textOnly := &fakeShow{resp: &api.ShowResponse{Details: api.ModelDetails{Families: []string{"llama"}}}}
	assert.Equal(t, ports.CapabilityNo, NewShowProber(textOnly, nil).SupportsImages(ctx, "m"))

	failing := &fakeShow{err: errors.New("not found")}
	assert.Equal(t, ports.CapabilityUnknown, NewShowProber(failing, nil).SupportsImages(ctx, "m"))

	assert.Equal(t, ports.CapabilityUnknown, NewShowProber(nil, nil).SupportsImages(ctx, "m"))
}

func TestChain_FirstDefinitiveWinsAndCaches(t *testing.T) {
	unknown := &countingProber{answer: ports.CapabilityUnknown}
	no := &countingProber{answer: ports.CapabilityNo}
	yes := &countingProber{answer: ports.CapabilityYes}

	chain := NewChain(unknown, nil, no, yes)
	ctx := context.Background()

	assert.Equal(t, ports.CapabilityNo, chain.SupportsImages(ctx, "m"))
	assert.Equal(t, ports.CapabilityNo, chain.SupportsImages(ctx, "m"))
	assert.Equal(t, 1, unknown.calls)
	assert.Equal(t, 1, no.calls)
	assert.Equal(t, 0, yes.calls)

	chain.Forget("m")
	chain.SupportsImages(ctx, "m")
	assert.Equal(t, 2, no.calls)
}

func TestChain_UnknownNotCached(t *testing.T) {
	unknown := &countingProber{answer: ports.CapabilityUnknown}
	chain := NewChain(unknown)

	assert.Equal(t, ports.CapabilityUnknown, chain.SupportsImages(context.Background(), "m"))
	chain.SupportsImages(context.Background(), "m")
	assert.Equal(t, 2, unknown.calls)
}
