package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

// NoReasoningPlaceholder is the thinking text when the model returned no
// separate reasoning.
const NoReasoningPlaceholder = "[Model did not return a separate reasoning trace]"

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
	finalBlock = regexp.MustCompile(`(?is)<final>(.*?)</final>`)
)

// Parser implements ports.ResponseParser.
type Parser struct {
	extractors []TextExtractor
}

var _ ports.ResponseParser = (*Parser)(nil)

// New creates a Parser. With no extractors the defaults are used.
func New(extractors ...TextExtractor) *Parser {
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	return &Parser{extractors: extractors}
}

// Parse extracts the text, splits thinking from the final answer when
// thinking is on, sanitizes both and pulls citation markers out of the
// final text. It never fails.
func (p *Parser) Parse(raw any, thinking bool) entities.ParsedOutput {
	text := ExtractText(raw, p.extractors)

	out := entities.ParsedOutput{Final: text}
	if thinking {
		out.Thinking, out.Final = SplitThinking(text)
	}

	out.Thinking = Sanitize(out.Thinking)
	out.Final, out.Citations = ExtractCitations(Sanitize(out.Final))
	return out
}

// SplitThinking separates reasoning from the answer. Tagged blocks win;
// untagged text is split after its first sentence when the next sentence
// starts with an uppercase letter.
func SplitThinking(text string) (thinking, final string) {
	if text == "" {
		return "", ""
	}

	think := thinkBlock.FindStringSubmatch(text)
	fin := finalBlock.FindStringSubmatch(text)

	if think == nil && fin == nil {
		if head, tail, ok := splitFirstSentence(text); ok {
			return head, tail
		}
		return NoReasoningPlaceholder, text
	}

	final = text
	if think != nil {
		thinking = strings.TrimSpace(think[1])
	}
	switch {
	case fin != nil:
		final = strings.TrimSpace(fin[1])
	case think != nil:
		final = strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
	}
	if thinking == "" {
		thinking = NoReasoningPlaceholder
	}
	return thinking, final
}

// splitFirstSentence splits at the first '.' that is followed by
// whitespace and then an uppercase letter.
func splitFirstSentence(text string) (string, string, bool) {
	r := []rune(text)
	for i := 0; i < len(r)-1; i++ {
		if r[i] != '.' || !unicode.IsSpace(r[i+1]) {
			continue
		}
		j := i + 1
		for j < len(r) && unicode.IsSpace(r[j]) {
			j++
		}
		if j < len(r) && unicode.IsUpper(r[j]) {
			return strings.TrimSpace(string(r[:i+1])), strings.TrimSpace(string(r[j:])), true
		}
	}
	return "", "", false
}
