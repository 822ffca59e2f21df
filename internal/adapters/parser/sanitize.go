package parser

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

var (
	sentenceLabel = regexp.MustCompile(`(?i)^\s*Sentence\s+\d+\s*[:=：]`)
	citation      = regexp.MustCompile(`(?i)[ \t]*[\[(](?:bron|source)\s*:\s*([^\])]+)[\])]`)
)

const watermark = "Aristomenis Marinis presents"

// Sanitize drops debug, telemetry and watermark lines and limits blank
// runs to one line. Applying it twice changes nothing.
func Sanitize(s string) string {
	if s == "" {
		return s
	}

	var kept []string
	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimRight(raw, "\r")
		if isNoise(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}

	var out []string
	blank := false
	for _, line := range kept {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(textutil.CollapseNewlines(strings.Join(out, "\n")))
}

func isNoise(line string) bool {
	switch {
	case strings.HasPrefix(line, "[DEBUG]"):
		return true
	case strings.HasPrefix(strings.ToLower(line), "total_duration:"):
		return true
	case sentenceLabel.MatchString(line):
		return true
	case strings.Contains(line, watermark):
		return true
	}
	return false
}

// ExtractCitations removes [source: ...] and (bron: ...) style markers from
// s and returns them, deduplicated, in order of appearance.
func ExtractCitations(s string) (string, []string) {
	matches := citation.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s, nil
	}
	refs := lo.Uniq(lo.FilterMap(matches, func(m []string, _ int) (string, bool) {
		ref := strings.TrimSpace(m[1])
		return ref, ref != ""
	}))

	// Only the whitespace directly before a marker goes with it.
	return strings.TrimSpace(citation.ReplaceAllString(s, "")), refs
}
