package kbindex

import (
	"unicode"

	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

// minBoundaryRatio is how far into the window a sentence end must be
// before it is preferred over a hard cut.
const minBoundaryRatio = 0.6

// ChunkText normalizes whitespace and splits text into windows of at most
// size runes that overlap by overlap runes. A window ends at its last
// sentence boundary when that boundary is at least 60% into the window.
func ChunkText(text string, size, overlap int) []string {
	r := []rune(textutil.NormalizeWhitespace(text))
	n := len(r)
	if n == 0 {
		return nil
	}
	if size <= 0 {
		size = 900
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	for i := 0; i < n; {
		end := min(i+size, n)
		if b := sentenceEnd(r[i:end]); b > 0 && float64(b) >= float64(size)*minBoundaryRatio {
			end = i + b
		}
		chunks = append(chunks, string(r[i:end]))
		if end >= n {
			break
		}
		i = max(end-overlap, i+1)
	}
	return chunks
}

// sentenceEnd returns the offset just past the last sentence terminator in
// seg that is followed by whitespace (which is included) or by the end of
// seg. It returns 0 when there is none.
func sentenceEnd(seg []rune) int {
	for j := len(seg) - 1; j >= 0; j-- {
		if !isTerminator(seg[j]) {
			continue
		}
		if j == len(seg)-1 {
			return j + 1
		}
		if unicode.IsSpace(seg[j+1]) {
			return j + 2
		}
	}
	return 0
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
