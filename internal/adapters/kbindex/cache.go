package kbindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/adapters/loader"
	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

// ErrNotReady is returned by Ensure when the directory cannot be indexed.
var ErrNotReady = errors.New("knowledge base not ready")

// Stats describes a cached index.
type Stats struct {
	Dir       string `json:"dir"`
	Signature string `json:"signature"`
	Chunks    int    `json:"chunks"`
	Terms     int    `json:"terms"`
	Builds    int    `json:"builds"`
	Ready     bool   `json:"ready"`
}

// Cache holds one index per knowledge-base directory. The signature check
// and rebuild for a directory run under that directory's lock.
type Cache struct {
	loader *loader.TextLoader
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu     sync.Mutex
	sig    string
	builds int
	index  atomic.Pointer[Index]
}

// NewCache creates an empty cache.
func NewCache(l *loader.TextLoader, logger *zap.Logger) *Cache {
	if l == nil {
		l = loader.NewTextLoader()
	}
	return &Cache{
		loader:  l,
		logger:  logging.OrNop(logger).Named("kbindex"),
		entries: make(map[string]*entry),
	}
}

var _ ports.KnowledgeBase = (*Cache)(nil)

// Ensure rebuilds the index for dir when the signature of its files and
// the chunk parameters changed. A missing directory marks it not ready.
func (c *Cache) Ensure(ctx context.Context, dir string, chunkChars, overlapChars int) error {
	key := cacheKey(dir)
	e := c.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	if info, err := os.Stat(key); err != nil || !info.IsDir() {
		e.sig = ""
		e.index.Store(nil)
		return fmt.Errorf("%w: %s", ErrNotReady, dir)
	}

	files, err := c.loader.List(key)
	if err != nil {
		e.sig = ""
		e.index.Store(nil)
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	sig := Signature(files, chunkChars, overlapChars)
	if sig == e.sig && e.index.Load() != nil {
		return nil
	}

	ix, err := Build(ctx, c.loader, files, chunkChars, overlapChars)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	ix.Signature = sig
	e.index.Store(ix)
	e.sig = sig
	e.builds++

	c.logger.Info("knowledge base indexed",
		zap.String("dir", key),
		zap.Int("files", len(files)),
		zap.Int("chunks", len(ix.Chunks)),
		zap.Int("terms", len(ix.IDF)))
	return nil
}

// Search queries the cached index for dir. It returns nothing when the
// directory was never ensured or is not ready.
func (c *Cache) Search(dir, query string, k int) []entities.KBHit {
	c.mu.Lock()
	e, ok := c.entries[cacheKey(dir)]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return e.index.Load().Search(query, k)
}

// Invalidate forces the next Ensure for dir to rebuild. The current index
// keeps serving searches until then.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	e, ok := c.entries[cacheKey(dir)]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.sig = ""
	e.mu.Unlock()
	c.logger.Debug("knowledge base invalidated", zap.String("dir", dir))
}

// Stats reports the cached state of dir.
func (c *Cache) Stats(dir string) Stats {
	key := cacheKey(dir)
	st := Stats{Dir: key}

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st.Builds = e.builds
	if ix := e.index.Load(); ix != nil {
		st.Ready = true
		st.Signature = ix.Signature
		st.Chunks = len(ix.Chunks)
		st.Terms = len(ix.IDF)
	}
	return st
}

// Follow invalidates dir whenever the watcher reports a change under it.
// It returns once the watch is established; events are consumed until ctx
// is done or the watcher closes.
func (c *Cache) Follow(ctx context.Context, w ports.FileWatcher, dir string) error {
	events, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	go func() {
		for ev := range events {
			c.logger.Debug("knowledge base change", zap.String("path", ev.Path))
			c.Invalidate(dir)
		}
	}()
	return nil
}

func (c *Cache) entry(key string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Signature hashes file identities and chunk parameters.
func Signature(files []loader.FileInfo, chunkChars, overlapChars int) string {
	items := make([]string, len(files))
	for i, f := range files {
		items[i] = fmt.Sprintf("%s|%d|%d", f.Path, f.ModUnix, f.Size)
	}
	raw := strings.Join(items, "|") + fmt.Sprintf("|%d|%d", chunkChars, overlapChars)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func cacheKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
