package kbindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeKB(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return dir
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	a := ChunkText(text, 200, 40)
	b := ChunkText(text, 200, 40)
	assert.Equal(t, a, b)
	assert.Greater(t, len(a), 1)
}

func TestChunkText_CoversEveryRune(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&b, "w%d", i)
		if i%7 == 6 {
			b.WriteString(".")
		}
		b.WriteString("  \n")
	}
	text := b.String()
	norm := strings.Join(strings.Fields(text), " ")

	chunks := ChunkText(text, 150, 30)
	covered := make([]bool, len(norm))
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 150)
		start := strings.Index(norm, ch)
		require.GreaterOrEqual(t, start, 0, "chunk must be a substring of the normalized text")
		for i := start; i < start+len(ch); i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("rune %d not covered", i)
		}
	}
}

func TestChunkText_PrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 60)
	chunks := ChunkText(text, 100, 10)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0], ". "), "got %q", chunks[0])
}

func TestChunkText_IgnoresEarlyBoundary(t *testing.T) {
	text := "Hi. " + strings.Repeat("x", 200)
	chunks := ChunkText(text, 100, 0)
	assert.Len(t, []rune(chunks[0]), 100)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText(" \n\t ", 100, 10))
}

func TestChunkText_OverlapLargerThanChunkTerminates(t *testing.T) {
	chunks := ChunkText(strings.Repeat("word ", 50), 10, 50)
	assert.NotEmpty(t, chunks)
}

func TestIndex_RankingPrefersMatchingChunk(t *testing.T) {
	dir := writeKB(t, map[string]string{
		"match.txt": "Ollama serves local language models over HTTP.",
		"other.txt": "Bananas are yellow and grow in tropical climates.",
	})
	cache := NewCache(nil, nil)
	require.NoError(t, cache.Ensure(context.Background(), dir, 900, 120))

	hits := cache.Search(dir, "local language models", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "match.txt", hits[0].Chunk.Title)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	var ix *Index
	assert.Nil(t, ix.Search("anything", 3))

	ix = newIndex(nil)
	assert.Nil(t, ix.Search("anything", 3))

	dir := writeKB(t, map[string]string{"a.md": "Some content here."})
	cache := NewCache(nil, nil)
	require.NoError(t, cache.Ensure(context.Background(), dir, 900, 120))
	assert.Nil(t, cache.Search(dir, "?!", 3), "no query tokens")
	assert.Nil(t, cache.Search(t.TempDir(), "content", 3), "never ensured")
}

func TestIndex_IDF(t *testing.T) {
	dir := writeKB(t, map[string]string{
		"a.txt": "shared unique",
		"b.txt": "shared",
	})
	cache := NewCache(nil, nil)
	require.NoError(t, cache.Ensure(context.Background(), dir, 900, 120))

	e := cache.entries[cacheKey(dir)]
	ix := e.index.Load()
	require.NotNil(t, ix)
	// N=2: shared df=2 → ln(3/3)+1 = 1, unique df=1 → ln(3/2)+1
	assert.InDelta(t, 1.0, ix.IDF["shared"], 1e-9)
	assert.InDelta(t, 1.4054651081, ix.IDF["unique"], 1e-9)
}

func TestCache_EnsureIsIdempotent(t *testing.T) {
	dir := writeKB(t, map[string]string{"notes/a.txt": "One. Two. Three."})
	cache := NewCache(nil, nil)
	ctx := context.Background()

	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	assert.Equal(t, 1, cache.Stats(dir).Builds)

	// Changed parameters change the signature.
	require.NoError(t, cache.Ensure(ctx, dir, 500, 50))
	assert.Equal(t, 2, cache.Stats(dir).Builds)
}

func TestCache_ConcurrentEnsureBuildsOnce(t *testing.T) {
	dir := writeKB(t, map[string]string{"a.txt": "Concurrency test content."})
	cache := NewCache(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Ensure(context.Background(), dir, 900, 120)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Stats(dir).Builds)
}

func TestCache_InvalidateForcesRebuild(t *testing.T) {
	dir := writeKB(t, map[string]string{"a.txt": "Before."})
	cache := NewCache(nil, nil)
	ctx := context.Background()

	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	cache.Invalidate(dir)
	assert.True(t, cache.Stats(dir).Ready, "stale index keeps serving")

	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	assert.Equal(t, 2, cache.Stats(dir).Builds)
}

func TestCache_MissingDirNotReady(t *testing.T) {
	cache := NewCache(nil, nil)
	err := cache.Ensure(context.Background(), "/nonexistent/kb", 900, 120)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.False(t, cache.Stats("/nonexistent/kb").Ready)
}

func TestSignature_ChangesWithFiles(t *testing.T) {
	dir := writeKB(t, map[string]string{"a.txt": "v1"})
	cache := NewCache(nil, nil)
	ctx := context.Background()
	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	before := cache.Stats(dir).Signature

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("new file"), 0644))
	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	assert.NotEqual(t, before, cache.Stats(dir).Signature)
}

type fakeWatcher struct {
	events chan ports.FileEvent
}

func (w *fakeWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return w.events, nil
}

func (w *fakeWatcher) Stop() error {
	close(w.events)
	return nil
}

func TestCache_FollowInvalidatesOnEvent(t *testing.T) {
	dir := writeKB(t, map[string]string{"a.txt": "Watched."})
	cache := NewCache(nil, nil)
	ctx := context.Background()
	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))

	w := &fakeWatcher{events: make(chan ports.FileEvent)}
	require.NoError(t, cache.Follow(ctx, w, dir))
	w.events <- ports.FileEvent{Path: filepath.Join(dir, "a.txt"), Operation: ports.FileModified}
	// A second send only completes after the first event was handled.
	w.events <- ports.FileEvent{Path: filepath.Join(dir, "a.txt"), Operation: ports.FileModified}
	require.NoError(t, w.Stop())

	require.NoError(t, cache.Ensure(ctx, dir, 900, 120))
	assert.Equal(t, 2, cache.Stats(dir).Builds)
}
