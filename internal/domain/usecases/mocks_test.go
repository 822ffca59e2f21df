package usecases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockSearcher implements ports.LiveSearcher for testing
type mockSearcher struct {
	name   string
	result ports.SearchResult
	err    error
	delay  time.Duration
	calls  atomic.Int32
	panics bool
}

func (m *mockSearcher) Name() string { return m.name }

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) (ports.SearchResult, error) {
	m.calls.Add(1)
	if m.panics {
		panic("searcher exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ports.SearchResult{}, ctx.Err()
		}
	}
	return m.result, m.err
}

// mockAPI implements ports.APIProvider for testing
type mockAPI struct {
	name   string
	text   string
	err    error
	panics bool
}

func (m *mockAPI) Name() string { return m.name }

func (m *mockAPI) Fetch(ctx context.Context, query string) (string, error) {
	if m.panics {
		panic("api exploded")
	}
	return m.text, m.err
}

// mockImages implements ports.ImageSearcher for testing
type mockImages struct {
	name  string
	items []entities.ImageItem
}

func (m *mockImages) Name() string { return m.name }

func (m *mockImages) SearchImages(ctx context.Context, query string, maxResults int) ([]entities.ImageItem, error) {
	if len(m.items) > maxResults {
		return m.items[:maxResults], nil
	}
	return m.items, nil
}

// mockTranslator implements ports.Translator for testing
type mockTranslator struct {
	name string
	fn   func(text, target string) (string, error)
}

func (m *mockTranslator) Name() string { return m.name }

func (m *mockTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	return m.fn(text, target)
}

// mockKB implements ports.KnowledgeBase for testing
type mockKB struct {
	hits      []entities.KBHit
	ensureErr error
	ensured   atomic.Int32
}

func (m *mockKB) Ensure(ctx context.Context, dir string, chunkChars, overlapChars int) error {
	m.ensured.Add(1)
	return m.ensureErr
}

func (m *mockKB) Search(dir, query string, k int) []entities.KBHit {
	if len(m.hits) > k {
		return m.hits[:k]
	}
	return m.hits
}

// mockChat implements ports.ChatService for testing
type mockChat struct {
	mu        sync.Mutex
	calls     []ports.ChatCall
	response  string
	transport string
	panics    bool
}

func (m *mockChat) Chat(ctx context.Context, call ports.ChatCall) ports.ChatReply {
	if m.panics {
		panic("chat exploded")
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	transport := m.transport
	if transport == "" {
		transport = "chat"
	}
	return ports.ChatReply{Raw: map[string]any{"response": m.response}, Transport: transport}
}

func (m *mockChat) lastCall() ports.ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// mockParser implements ports.ResponseParser for testing
type mockParser struct{}

func (mockParser) Parse(raw any, thinking bool) entities.ParsedOutput {
	m, _ := raw.(map[string]any)
	final, _ := m["response"].(string)
	out := entities.ParsedOutput{Final: final}
	if thinking {
		out.Thinking = "reasoning"
	}
	return out
}

// mockCaps implements ports.CapabilityProber for testing
type mockCaps struct {
	answer ports.Capability
}

func (m mockCaps) SupportsImages(ctx context.Context, model string) ports.Capability {
	return m.answer
}

// mockDetector implements ports.LanguageDetector for testing
type mockDetector struct {
	code string
}

func (m mockDetector) Detect(text string) (string, bool) {
	return m.code, m.code != ""
}

// mockSessions implements ports.SessionStore for testing
type mockSessions struct {
	mu    sync.Mutex
	saved map[string][]entities.Message
}

func newMockSessions() *mockSessions {
	return &mockSessions{saved: make(map[string][]entities.Message)}
}

func (m *mockSessions) Load(ctx context.Context, id string) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.saved[id]
	if !ok {
		return nil, nil
	}
	return append([]entities.Message(nil), msgs...), nil
}

func (m *mockSessions) Save(ctx context.Context, id string, msgs []entities.Message) error {
	if id == "" {
		return errors.New("empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = append([]entities.Message(nil), msgs...)
	return nil
}
