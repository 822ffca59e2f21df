// Package textutil holds the small text helpers shared by the pipeline.
// All lengths are counted in runes.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ellipsis is appended by Clamp when text was cut.
const Ellipsis = "..."

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
)

// Len returns the length of s in runes.
func Len(s string) int {
	return len([]rune(s))
}

// Clamp shortens s to at most limit runes, backing off to the last space
// before the cut and appending an ellipsis.
func Clamp(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 0 {
		return Ellipsis
	}
	cut := r[:limit]
	if i := lastSpace(cut); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(string(cut), " ") + Ellipsis
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

// FirstNonEmpty returns the first value that is not empty.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizeWhitespace collapses every whitespace run to one space and trims.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePrompt applies NFC, trims, collapses spaces and tabs, and caps
// blank-line runs at one.
func NormalizePrompt(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	return CollapseNewlines(s)
}

// CollapseNewlines replaces 3+ consecutive newlines with two.
func CollapseNewlines(s string) string {
	return manyNewlines.ReplaceAllString(s, "\n\n")
}

// Tokenize lowercases s and returns its maximal runs of letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TrimToLastLine cuts s to limit runes, then drops the partial last line.
func TrimToLastLine(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := string(r[:max(0, limit)])
	if i := strings.LastIndex(cut, "\n"); i >= 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
