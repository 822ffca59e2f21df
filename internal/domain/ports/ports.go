// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
)

var (
	// ErrNoResults is returned by providers that answered but found nothing.
	ErrNoResults = errors.New("no results")

	// ErrMissingKey is returned by keyed providers that were not configured.
	ErrMissingKey = errors.New("missing api key")
)

// KnowledgeBase builds and searches the local TF-IDF index.
type KnowledgeBase interface {
	// Ensure rebuilds the index for dir when its content signature changed.
	Ensure(ctx context.Context, dir string, chunkChars, overlapChars int) error

	// Search returns the top k chunks of dir's index for query.
	Search(dir, query string, k int) []entities.KBHit
}

// SearchResult is what one live-search provider returned.
type SearchResult struct {
	Snippets []string
	Sources  []entities.SourceRecord
}

// Empty reports whether the result carries neither snippets nor sources.
func (r SearchResult) Empty() bool {
	return len(r.Snippets) == 0 && len(r.Sources) == 0
}

// LiveSearcher queries a web search provider.
type LiveSearcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) (SearchResult, error)
}

// APIProvider answers one kind of keyword-routed question (weather, news...).
type APIProvider interface {
	Name() string
	Fetch(ctx context.Context, query string) (string, error)
}

// ImageSearcher queries an image search provider.
type ImageSearcher interface {
	Name() string
	SearchImages(ctx context.Context, query string, maxResults int) ([]entities.ImageItem, error)
}

// Translator translates text to a target language code.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, target string) (string, error)
}

// LanguageDetector guesses the ISO 639-1 language of a text.
// ok is false when the detector has no confident answer.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}

// Capability is a tri-state answer from a CapabilityProber.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityYes
	CapabilityNo
)

// CapabilityProber decides whether a model accepts image attachments.
type CapabilityProber interface {
	SupportsImages(ctx context.Context, model string) Capability
}

// ChatCall is one request to the model endpoint.
type ChatCall struct {
	Model     string
	Messages  []entities.Message
	Options   entities.SamplingOptions
	KeepAlive string // e.g. "5m", "1h"
}

// ChatReply is the raw decoded response plus the transport that produced it.
type ChatReply struct {
	Raw       any
	Transport string // "chat", "generate" or "error"
}

// ChatService sends messages to the model. Implementations never fail:
// transport errors are folded into a synthetic response.
type ChatService interface {
	Chat(ctx context.Context, call ChatCall) ChatReply
}

// ModelCatalog lists models and checks server health.
type ModelCatalog interface {
	Models(ctx context.Context) ([]string, error)
	Healthy(ctx context.Context) bool
}

// ResponseParser splits a raw model response into thinking and final text.
type ResponseParser interface {
	Parse(raw any, thinking bool) entities.ParsedOutput
}

// SessionStore persists chained conversation state per session.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) ([]entities.Message, error)
	Save(ctx context.Context, sessionID string, messages []entities.Message) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
