// Package langdetect guesses the ISO 639-1 language of a prompt.
package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

var isoCodes = map[whatlanggo.Lang]string{
	whatlanggo.Eng: "en",
	whatlanggo.Nld: "nl",
	whatlanggo.Deu: "de",
	whatlanggo.Fra: "fr",
	whatlanggo.Spa: "es",
	whatlanggo.Ita: "it",
	whatlanggo.Por: "pt",
}

// Whatlang wraps whatlanggo restricted to the supported languages.
type Whatlang struct {
	opts      whatlanggo.Options
	threshold float64
}

// NewWhatlang creates the detector. Detections below threshold are not
// confident; zero means 0.5.
func NewWhatlang(threshold float64) *Whatlang {
	if threshold <= 0 {
		threshold = 0.5
	}
	wl := make(map[whatlanggo.Lang]bool, len(isoCodes))
	for l := range isoCodes {
		wl[l] = true
	}
	return &Whatlang{opts: whatlanggo.Options{Whitelist: wl}, threshold: threshold}
}

// Detect implements ports.LanguageDetector.
func (w *Whatlang) Detect(text string) (string, bool) {
	if len(textutil.Tokenize(text)) < 3 {
		return "", false
	}
	info := whatlanggo.DetectWithOptions(text, w.opts)
	code, ok := isoCodes[info.Lang]
	if !ok || info.Confidence < w.threshold {
		return "", false
	}
	return code, true
}

var stopwords = map[string][]string{
	"en": {"the", "and", "is", "are", "what", "how", "of", "to", "in", "with", "this", "that", "you", "for", "today", "weather"},
	"nl": {"de", "het", "een", "en", "is", "wat", "hoe", "van", "niet", "ik", "je", "met", "voor", "dat", "vandaag", "weer", "zijn"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ich", "wie", "mit", "für", "ein", "eine", "heute", "wetter"},
	"fr": {"le", "la", "les", "et", "est", "une", "des", "que", "pour", "avec", "pas", "je", "quel", "aujourd'hui"},
}

var diacritics = map[string]string{
	"de": "äöüß",
	"fr": "éèêàçùôî",
	"nl": "ĳ",
}

// Heuristic scores Dutch, English, German and French stopwords and
// characteristic letters. It is confident when one language clearly leads.
type Heuristic struct{}

// Detect implements ports.LanguageDetector.
func (Heuristic) Detect(text string) (string, bool) {
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		return "", false
	}

	scores := make(map[string]int, len(stopwords))
	for lang, words := range stopwords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		for _, tok := range tokens {
			if _, ok := set[tok]; ok {
				scores[lang] += 2
			}
		}
	}
	lower := strings.ToLower(text)
	for lang, chars := range diacritics {
		for _, r := range chars {
			scores[lang] += strings.Count(lower, string(r))
		}
	}
	if strings.Contains(lower, "ij") {
		scores["nl"]++
	}

	best, second := "", 0
	bestScore := 0
	for _, lang := range []string{"en", "nl", "de", "fr"} {
		s := scores[lang]
		switch {
		case s > bestScore:
			second = bestScore
			best, bestScore = lang, s
		case s > second:
			second = s
		}
	}
	if bestScore < 2 || bestScore == second {
		return "", false
	}
	return best, true
}

// Chain returns the first confident answer.
type Chain []ports.LanguageDetector

// Detect implements ports.LanguageDetector.
func (c Chain) Detect(text string) (string, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if code, ok := d.Detect(text); ok {
			return code, true
		}
	}
	return "", false
}

// FromNames builds a chain from detector names (whatlang, heuristic).
// Unknown names are ignored.
func FromNames(names []string) Chain {
	var c Chain
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "whatlang":
			c = append(c, NewWhatlang(0))
		case "heuristic":
			c = append(c, Heuristic{})
		}
	}
	return c
}

var (
	_ ports.LanguageDetector = (*Whatlang)(nil)
	_ ports.LanguageDetector = Heuristic{}
	_ ports.LanguageDetector = Chain(nil)
)
