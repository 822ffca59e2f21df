// Package loader reads knowledge-base documents from disk.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
)

// FileInfo identifies one knowledge-base file for signature purposes.
type FileInfo struct {
	Path    string
	ModUnix int64
	Size    int64
}

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct {
	extensions []string
}

// NewTextLoader creates a text loader. No extensions means .txt and .md.
func NewTextLoader(extensions ...string) *TextLoader {
	if len(extensions) == 0 {
		extensions = []string{".txt", ".md"}
	}
	return &TextLoader{extensions: extensions}
}

// Load reads a text document. Invalid UTF-8 sequences are dropped.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		ID:      generateDocID(path),
		Name:    filepath.Base(path),
		Path:    path,
		Content: strings.ToValidUTF8(string(content), ""),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return l.extensions
}

// List walks dir recursively and returns supported files sorted by path.
// Entries that cannot be stat'ed are skipped.
func (l *TextLoader) List(dir string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() || !l.supports(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:    path,
			ModUnix: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func (l *TextLoader) supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
