// Package kbindex provides the local knowledge-base TF-IDF index and its
// signature-keyed cache.
package kbindex

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/0xcro3dile/contextrag-go/internal/adapters/loader"
	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

const (
	// Chunks longer than this many tokens get a smaller length bonus.
	lengthPivot = 250.0
	lengthBonus = 0.05
)

// Index is an immutable TF-IDF index over knowledge-base chunks.
type Index struct {
	Chunks    []entities.KBChunk
	IDF       map[string]float64
	Signature string
	BuiltAt   time.Time

	norms []float64
}

// Build reads files in order, chunks and tokenizes them and computes IDF
// weights. Unreadable or empty files are skipped.
func Build(ctx context.Context, l *loader.TextLoader, files []loader.FileInfo, chunkChars, overlapChars int) (*Index, error) {
	var chunks []entities.KBChunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.Load(ctx, f.Path)
		if err != nil || doc.Content == "" {
			continue
		}
		title := filepath.Base(f.Path)
		for _, text := range ChunkText(doc.Content, chunkChars, overlapChars) {
			tokens := textutil.Tokenize(text)
			tf := make(map[string]int, len(tokens))
			for _, tok := range tokens {
				tf[tok]++
			}
			chunks = append(chunks, entities.KBChunk{
				Title:    title,
				Path:     f.Path,
				Text:     text,
				TermFreq: tf,
				TokenLen: len(tokens),
			})
		}
	}
	return newIndex(chunks), nil
}

func newIndex(chunks []entities.KBChunk) *Index {
	df := make(map[string]int)
	for _, ch := range chunks {
		for term := range ch.TermFreq {
			df[term]++
		}
	}

	n := float64(max(1, len(chunks)))
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log((n+1)/(float64(d)+1)) + 1
	}

	ix := &Index{Chunks: chunks, IDF: idf, BuiltAt: time.Now()}
	ix.norms = make([]float64, len(chunks))
	for i, ch := range chunks {
		ix.norms[i] = ix.norm(ch.TermFreq)
	}
	return ix
}

// Search scores every chunk against query and returns the top k,
// highest first. Ties keep index order.
func (ix *Index) Search(query string, k int) []entities.KBHit {
	if ix == nil || len(ix.Chunks) == 0 || k <= 0 {
		return nil
	}
	tokens := textutil.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	qtf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		qtf[tok]++
	}
	qnorm := ix.norm(qtf)

	hits := make([]entities.KBHit, len(ix.Chunks))
	for i, ch := range ix.Chunks {
		sim := ix.dot(qtf, ch.TermFreq) / (qnorm * ix.norms[i])
		sim += lengthBonus * (1 / (1 + math.Max(0, float64(ch.TokenLen)-lengthPivot)/lengthPivot))
		hits[i] = entities.KBHit{Chunk: ch, Score: sim}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (ix *Index) weight(term string) float64 {
	if w, ok := ix.IDF[term]; ok {
		return w
	}
	return 1.0
}

func (ix *Index) dot(a, b map[string]int) float64 {
	var s float64
	for term, ca := range a {
		if cb, ok := b[term]; ok {
			w := ix.weight(term)
			s += (float64(ca) * w) * (float64(cb) * w)
		}
	}
	return s
}

// norm returns the weighted L2 norm, or 1 for an empty vector.
func (ix *Index) norm(tf map[string]int) float64 {
	var s float64
	for term, c := range tf {
		v := float64(c) * ix.weight(term)
		s += v * v
	}
	if s <= 0 {
		return 1
	}
	return math.Sqrt(s)
}
