// Package entities contains core business entities.
// These are plain domain objects with no knowledge of providers, storage or transport.
package entities

import (
	"fmt"
	"time"
)

// SourceType tags where a snippet or citation came from.
type SourceType string

const (
	SourceKB        SourceType = "kb"
	SourceLive      SourceType = "live"
	SourceAPI       SourceType = "api"
	SourceImage     SourceType = "image"
	SourceUserImage SourceType = "user_image"
)

// Snippet is a short text unit from any source, destined for the prompt context.
type Snippet struct {
	Text        string
	SourceType  SourceType
	OriginTitle string
	OriginURL   string
	Score       float64 // Only set for KB snippets
}

// SourceRecord is a citation entry. Live providers may use finer types
// such as "wikipedia" or "brave".
type SourceRecord struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NumberedSource is a SourceRecord as it appears in the rendered source list.
type NumberedSource struct {
	N int `json:"n"`
	SourceRecord
}

// Document is a knowledge-base source file.
type Document struct {
	ID      string
	Name    string
	Path    string
	Content string
	ModTime time.Time
	Size    int64
}

// KBChunk is a slice of a knowledge-base document.
type KBChunk struct {
	Title    string // File name
	Path     string
	Text     string
	TermFreq map[string]int
	TokenLen int
}

// KBHit is a chunk returned by a knowledge-base search.
type KBHit struct {
	Chunk KBChunk
	Score float64
}

// ImageItem is one image-search result.
type ImageItem struct {
	Title     string `json:"title"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged prompt segment.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64, no data: prefix
}

// Context sizes are counted in runes.
const (
	MinContextChars     = 1200
	MaxContextChars     = 700000
	DefaultContextChars = 3600
)

// ClampContextChars clamps a requested context size to the supported range.
// Zero or negative means the default.
func ClampContextChars(n int) int {
	if n <= 0 {
		return DefaultContextChars
	}
	return max(MinContextChars, min(MaxContextChars, n))
}

// Budgets maps each context category to its character allowance.
type Budgets struct {
	KB         int `json:"kb"`
	Live       int `json:"live"`
	API        int `json:"api"`
	Images     int `json:"images"`
	UserImages int `json:"user_images"`
}

// Sum returns the total of all allowances.
func (b Budgets) Sum() int {
	return b.KB + b.Live + b.API + b.Images + b.UserImages
}

// RenderedContext is the final prompt-context block with its numbered sources.
type RenderedContext struct {
	Text    string           `json:"text"`
	Sources []NumberedSource `json:"sources"`
	Budgets Budgets          `json:"budgets"`
	Profile string           `json:"profile"`
}

// ParsedOutput is derived from one raw model response.
type ParsedOutput struct {
	Thinking  string
	Final     string
	Citations []string
}

// UserImage is an image supplied with the request.
type UserImage struct {
	Data        string `json:"data"` // base64
	Description string `json:"description,omitempty"`
}

// SamplingOptions are forwarded to the model as "options".
type SamplingOptions struct {
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	NumPredict    int     `json:"num_predict" yaml:"num_predict"`
	Mirostat      int     `json:"mirostat" yaml:"mirostat"`
	TopK          int     `json:"top_k" yaml:"top_k"`
	TopP          float64 `json:"top_p" yaml:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty"`
	NumCtx        int     `json:"num_ctx,omitempty" yaml:"num_ctx"`
	Seed          *int    `json:"seed,omitempty" yaml:"seed"`
}

// DefaultSamplingOptions returns the sampling defaults used when a request sets none.
func DefaultSamplingOptions() SamplingOptions {
	return SamplingOptions{
		Temperature:   0.7,
		NumPredict:    1024,
		Mirostat:      0,
		TopK:          40,
		TopP:          0.9,
		RepeatPenalty: 1.1,
	}
}

// Normalized fills zero or out-of-range options with defaults.
func (o SamplingOptions) Normalized() SamplingOptions {
	d := DefaultSamplingOptions()
	if o.Temperature < 0 || o.Temperature > 2 {
		o.Temperature = d.Temperature
	}
	if o.NumPredict == 0 {
		o.NumPredict = d.NumPredict
	}
	if o.Mirostat < 0 || o.Mirostat > 2 {
		o.Mirostat = d.Mirostat
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.TopP <= 0 || o.TopP > 1 {
		o.TopP = d.TopP
	}
	if o.RepeatPenalty <= 0 {
		o.RepeatPenalty = d.RepeatPenalty
	}
	if o.NumCtx < 0 {
		o.NumCtx = 0
	}
	return o
}

// KeepAlive renders a keep-alive duration the way Ollama expects it,
// e.g. "10m" or "1h".
func KeepAlive(n int, unit string) string {
	n = max(0, n)
	if unit == "hours" || unit == "h" {
		return fmt.Sprintf("%dh", n)
	}
	return fmt.Sprintf("%dm", n)
}

// RunRequest carries one end-to-end request through the pipeline.
// Zero values mean "use the configured default" where a default exists.
type RunRequest struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	Model        string `json:"model,omitempty"`

	KeepAlive     int    `json:"keep_alive,omitempty"`
	KeepAliveUnit string `json:"keep_alive_unit,omitempty"` // "minutes" or "hours"

	RefreshConnection bool   `json:"refresh_connection,omitempty"`
	UseLiveSearch     bool   `json:"use_live_search"`
	EnhancedSearch    bool   `json:"enhanced_search,omitempty"`
	UseKnowledgeBase  bool   `json:"use_knowledge_base"`
	UseMultiAPI       bool   `json:"use_multi_api"`
	ImageProvider     string `json:"image_provider,omitempty"`
	UseToolPrompt     bool   `json:"use_tool_prompt,omitempty"`
	Thinking          bool   `json:"thinking,omitempty"`
	ForceContext      bool   `json:"force_context_if_empty,omitempty"`
	HarmonizeGPTOSS   bool   `json:"harmonize_gpt_oss,omitempty"`
	AutoTranslate     bool   `json:"auto_translate,omitempty"`
	ContextChaining   bool   `json:"context_chaining,omitempty"`

	SessionID           string      `json:"session_id,omitempty"`
	ContextMessagesJSON string      `json:"context_messages_json,omitempty"`
	AnswerLanguage      string      `json:"answer_language,omitempty"`
	TargetLanguage      string      `json:"target_language,omitempty"`
	Images              []UserImage `json:"images,omitempty"`
	MaxContextChars     int         `json:"max_context_chars,omitempty"`

	Options *SamplingOptions `json:"options,omitempty"`
}

// RunInfo describes how the last run was assembled.
type RunInfo struct {
	Model          string        `json:"model"`
	SessionID      string        `json:"session_id,omitempty"`
	Profile        string        `json:"profile"`
	Budgets        Budgets       `json:"budgets"`
	ContextChars   int           `json:"context_chars"`
	KBHits         int           `json:"kb_hits"`
	LiveSnippets   int           `json:"live_snippets"`
	APISnippets    int           `json:"api_snippets"`
	ImageItems     int           `json:"image_items"`
	UserImages     int           `json:"user_images"`
	Multimodal     bool          `json:"multimodal"`
	Transport      string        `json:"transport"`
	PromptLanguage string        `json:"prompt_language,omitempty"`
	Translated     bool          `json:"translated"`
	Duration       time.Duration `json:"duration_ns"`
	GeneratedAt    string        `json:"generated_at"`
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	Thinking  string           `json:"thinking"`
	Final     string           `json:"final"`
	Sources   []NumberedSource `json:"sources"`
	Citations []string         `json:"citations,omitempty"`
	Info      RunInfo          `json:"info"`
}

// ProviderSummary lists the optional providers a pipeline was built with.
type ProviderSummary struct {
	Images      []string `json:"images"`
	Translators int      `json:"translators"`
}
