// Package llm provides the Ollama model adapters.
// Clean Architecture: adapters implementing ports.ChatService and ports.ModelCatalog.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"

	TransportChat     = "chat"
	TransportGenerate = "generate"
	TransportError    = "error"

	failurePrefix = "[contextrag] model call failed (fallback): "
)

// OllamaChatAdapter implements ports.ChatService using the Ollama API.
// It tries /api/chat first and falls back to /api/generate.
type OllamaChatAdapter struct {
	baseURL string
	client  *httpclient.Client
	logger  *zap.Logger
}

var _ ports.ChatService = (*OllamaChatAdapter)(nil)

// NewOllamaChatAdapter creates a chat adapter. A nil client gets a 120s
// timeout and the default Ollama retry policy.
func NewOllamaChatAdapter(baseURL string, client *httpclient.Client, logger *zap.Logger) *OllamaChatAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger = logging.OrNop(logger)
	if client == nil {
		client = httpclient.New(httpclient.Options{
			Timeout: 120 * time.Second,
			Retry:   config.Default().Ollama.Retry,
			Logger:  logger,
		})
	}
	return &OllamaChatAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("llm"),
	}
}

// ollamaChatRequest is the Ollama chat API request.
type ollamaChatRequest struct {
	Model     string                   `json:"model"`
	Messages  []entities.Message       `json:"messages"`
	Stream    bool                     `json:"stream"`
	KeepAlive string                   `json:"keep_alive,omitempty"`
	Options   entities.SamplingOptions `json:"options"`
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model     string                   `json:"model"`
	System    string                   `json:"system,omitempty"`
	Prompt    string                   `json:"prompt"`
	Stream    bool                     `json:"stream"`
	KeepAlive string                   `json:"keep_alive,omitempty"`
	Options   entities.SamplingOptions `json:"options"`
}

// Chat sends the conversation to the model. It never fails: when both
// transports error the reply carries a synthetic response.
func (a *OllamaChatAdapter) Chat(ctx context.Context, call ports.ChatCall) ports.ChatReply {
	raw, err := a.chat(ctx, call)
	if err == nil {
		return ports.ChatReply{Raw: raw, Transport: TransportChat}
	}
	a.logger.Warn("chat endpoint failed, falling back to generate",
		zap.String("model", call.Model), zap.Error(err))

	raw, err = a.generate(ctx, call)
	if err == nil {
		return ports.ChatReply{Raw: raw, Transport: TransportGenerate}
	}
	a.logger.Warn("generate endpoint failed", zap.String("model", call.Model), zap.Error(err))

	msg := failurePrefix + err.Error()
	if httpclient.IsStatus(err, http.StatusNotFound) {
		msg += fmt.Sprintf(" (model %q may not be pulled)", call.Model)
	}
	return ports.ChatReply{
		Raw:       map[string]any{"response": msg},
		Transport: TransportError,
	}
}

func (a *OllamaChatAdapter) chat(ctx context.Context, call ports.ChatCall) (map[string]any, error) {
	req := ollamaChatRequest{
		Model:     call.Model,
		Messages:  call.Messages,
		Stream:    false,
		KeepAlive: call.KeepAlive,
		Options:   call.Options,
	}
	var out map[string]any
	if err := a.client.PostJSON(ctx, a.baseURL+"/api/chat", nil, req, &out); err != nil {
		return nil, fmt.Errorf("calling Ollama chat: %w", err)
	}
	if msg, ok := out["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("ollama chat error: %s", msg)
	}
	return out, nil
}

func (a *OllamaChatAdapter) generate(ctx context.Context, call ports.ChatCall) (map[string]any, error) {
	system, prompt := FlattenMessages(call.Messages)
	req := ollamaGenerateRequest{
		Model:     call.Model,
		System:    system,
		Prompt:    prompt,
		Stream:    false,
		KeepAlive: call.KeepAlive,
		Options:   call.Options,
	}
	var out map[string]any
	if err := a.client.PostJSON(ctx, a.baseURL+"/api/generate", nil, req, &out); err != nil {
		return nil, fmt.Errorf("calling Ollama generate: %w", err)
	}
	if msg, ok := out["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("ollama generate error: %s", msg)
	}
	return out, nil
}

// FlattenMessages joins all system contents and all user contents with
// blank lines for the generate endpoint. Assistant turns are dropped.
func FlattenMessages(msgs []entities.Message) (system, prompt string) {
	var sys, usr []string
	for _, m := range msgs {
		switch m.Role {
		case entities.RoleSystem:
			sys = append(sys, m.Content)
		case entities.RoleUser:
			usr = append(usr, m.Content)
		}
	}
	return strings.TrimSpace(strings.Join(sys, "\n\n")), strings.TrimSpace(strings.Join(usr, "\n\n"))
}
