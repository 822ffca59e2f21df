package usecases

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

// Per-line caps, in runes.
const (
	kbLineCap        = 700
	liveLineCap      = 600
	apiLineCap       = 650
	imageLineCap     = 220
	userImageLineCap = 200
	userImageDescCap = 160
	maxUserImages    = 8
)

// Section headers of the rendered context block.
const (
	headerKB         = "Knowledge base context:"
	headerLive       = "Retrieved context (live search):"
	headerAPI        = "Multi-API context:"
	headerImages     = "Image context (captions):"
	headerUserImages = "User images (text-only summary):"
	headerSources    = "Sources (numbered):"
)

// ContextInput is everything the renderer draws from.
type ContextInput struct {
	KBHits      []entities.KBHit
	Live        []string
	LiveSources []entities.SourceRecord
	API         []string
	Images      []entities.ImageItem
	UserImages  []entities.UserImage
	TotalChars  int
}

// RenderContext budgets and renders the context block with its numbered
// source list. Output depends only on the input.
func RenderContext(in ContextInput) entities.RenderedContext {
	budgets, profile := EstimateBudgets(in.TotalChars)

	kbLines := make([]string, 0, len(in.KBHits))
	for _, h := range in.KBHits {
		title := textutil.FirstNonEmpty(h.Chunk.Title, h.Chunk.Path, "KB")
		kbLines = append(kbLines, title+": "+textutil.Clamp(h.Chunk.Text, kbLineCap))
	}

	imgLines := make([]string, 0, len(in.Images))
	for _, it := range in.Images {
		caption := textutil.FirstNonEmpty(it.Title, "Image")
		url := textutil.FirstNonEmpty(it.URL, it.Image)
		imgLines = append(imgLines, textutil.Clamp(caption+" — "+url, imageLineCap))
	}

	var userLines []string
	if len(in.UserImages) > 0 {
		userLines = append(userLines, fmt.Sprintf("User provided images: %d item(s).", len(in.UserImages)))
		for i, img := range in.UserImages[:min(len(in.UserImages), maxUserImages)] {
			userLines = append(userLines, fmt.Sprintf("- Image %d: %s", i+1, textutil.Clamp(describeUserImage(img), userImageDescCap)))
		}
	}

	sections := []struct {
		header string
		lines  []string
		bullet bool
	}{
		{headerKB, TakeWithBudget(kbLines, budgets.KB, kbLineCap), true},
		{headerLive, TakeWithBudget(nonBlank(in.Live), budgets.Live, liveLineCap), true},
		{headerAPI, TakeWithBudget(nonBlank(in.API), budgets.API, apiLineCap), true},
		{headerImages, TakeWithBudget(imgLines, budgets.Images, imageLineCap), true},
		{headerUserImages, TakeWithBudget(userLines, budgets.UserImages, userImageLineCap), false},
	}

	var lines []string
	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		lines = append(lines, s.header)
		for _, l := range s.lines {
			if s.bullet {
				l = "- " + l
			}
			lines = append(lines, l)
		}
		lines = append(lines, "")
	}

	sources := NumberSources(collectSources(in))
	if len(sources) > 0 {
		lines = append(lines, headerSources)
		for _, s := range sources {
			lines = append(lines, fmt.Sprintf("[%d] %s — %s", s.N, textutil.FirstNonEmpty(s.Title, s.URL, "Source"), s.URL))
		}
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if textutil.Len(text) > in.TotalChars {
		text = textutil.TrimToLastLine(text, in.TotalChars)
	}

	return entities.RenderedContext{
		Text:    text,
		Sources: sources,
		Budgets: budgets,
		Profile: profile,
	}
}

// collectSources lists KB, live and image sources in that order.
func collectSources(in ContextInput) []entities.SourceRecord {
	var all []entities.SourceRecord
	for _, h := range in.KBHits {
		all = append(all, entities.SourceRecord{
			Type:  string(entities.SourceKB),
			Title: textutil.FirstNonEmpty(h.Chunk.Title, "KB"),
			URL:   h.Chunk.Path,
		})
	}
	for _, s := range in.LiveSources {
		all = append(all, entities.SourceRecord{
			Type:  textutil.FirstNonEmpty(s.Type, string(entities.SourceLive)),
			Title: textutil.FirstNonEmpty(s.Title, "Source"),
			URL:   s.URL,
		})
	}
	for _, it := range in.Images {
		all = append(all, entities.SourceRecord{
			Type:  string(entities.SourceImage),
			Title: textutil.FirstNonEmpty(it.Title, "Image"),
			URL:   it.URL,
		})
	}
	return all
}

// NumberSources drops records without a URL, removes duplicate
// (type, title, url) triples keeping the first, and numbers the rest from 1.
func NumberSources(records []entities.SourceRecord) []entities.NumberedSource {
	withURL := lo.Filter(records, func(s entities.SourceRecord, _ int) bool {
		return s.URL != ""
	})
	unique := lo.Uniq(withURL)
	return lo.Map(unique, func(s entities.SourceRecord, i int) entities.NumberedSource {
		return entities.NumberedSource{N: i + 1, SourceRecord: s}
	})
}

func describeUserImage(img entities.UserImage) string {
	if d := strings.TrimSpace(img.Description); d != "" {
		return d
	}
	return fmt.Sprintf("image (%d bytes base64)", len(img.Data))
}

func nonBlank(items []string) []string {
	return lo.Filter(items, func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
}
