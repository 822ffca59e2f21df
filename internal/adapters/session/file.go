// Package session persists chained conversation history.
// Clean Architecture: adapters implementing ports.SessionStore.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

// SanitizeID keeps [A-Za-z0-9_-] and replaces everything else with '_'.
// When anything was replaced, a short hash of the id is appended so that
// distinct ids never share a name. An empty result becomes "default".
func SanitizeID(id string) string {
	id = strings.TrimSpace(id)
	var sb strings.Builder
	replaced := false
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
			replaced = true
		}
	}
	if sb.Len() == 0 {
		return "default"
	}
	if replaced {
		sum := sha256.Sum256([]byte(id))
		sb.WriteString("-" + hex.EncodeToString(sum[:4]))
	}
	return sb.String()
}

// FileStore keeps one JSON file per session in a directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ ports.SessionStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file used for a session.
func (s *FileStore) Path(sessionID string) string {
	return filepath.Join(s.dir, "ollama_context_"+SanitizeID(sessionID)+".json")
}

// Load returns the stored history. A missing file is an empty history.
func (s *FileStore) Load(_ context.Context, sessionID string) ([]entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var msgs []entities.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return msgs, nil
}

// Save replaces the stored history. The file is written to a temp file
// and renamed into place.
func (s *FileStore) Save(_ context.Context, sessionID string, messages []entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if messages == nil {
		messages = []entities.Message{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	path := s.Path(sessionID)
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing session: %w", err)
	}
	return nil
}
