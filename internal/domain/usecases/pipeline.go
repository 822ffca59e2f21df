// Package usecases contains the application rules of contextrag: context
// budgeting and rendering, message assembly, retrieval aggregation and the
// end-to-end pipeline. They depend on port interfaces only; adapters are
// injected.
package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

// Transport reported when the pipeline itself failed.
const TransportError = "error"

// PipelineConfig holds the defaults a request falls back to.
type PipelineConfig struct {
	Model         string
	KeepAlive     int
	KeepAliveUnit string
	Options       entities.SamplingOptions

	KBEnabled    bool
	KBDir        string
	ChunkChars   int
	OverlapChars int
	KBTopK       int

	SearchEnabled   bool
	EnhancedSearch  bool
	MultiAPIEnabled bool
	ImageProvider   string
	ImageMaxResults int

	MaxContextChars int
	ToolPrompt      bool
	ForceIfEmpty    bool
	HarmonizeGPTOSS bool

	AutoTranslate   bool
	TranslateTarget string
	AnswerLanguage  string

	Chaining bool
	MaxTurns int
}

// PipelineDeps are the adapters a Pipeline drives. Nil members switch the
// matching step off.
type PipelineDeps struct {
	KB           ports.KnowledgeBase
	Aggregator   *Aggregator
	Chat         ports.ChatService
	Parser       ports.ResponseParser
	Capabilities ports.CapabilityProber
	Catalog      ports.ModelCatalog
	Detector     ports.LanguageDetector
	Translator   *TranslationChain
	Sessions     ports.SessionStore
}

// Pipeline runs one request from prompts to parsed answer.
type Pipeline struct {
	deps   PipelineDeps
	cfg    PipelineConfig
	logger *zap.Logger

	mu   sync.RWMutex
	last entities.RunInfo
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps, logger *zap.Logger) *Pipeline {
	if cfg.KBTopK <= 0 {
		cfg.KBTopK = 6
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	cfg.MaxContextChars = entities.ClampContextChars(cfg.MaxContextChars)
	if cfg.Options == (entities.SamplingOptions{}) {
		cfg.Options = entities.DefaultSamplingOptions()
	}
	cfg.Options = cfg.Options.Normalized()
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: nopIfNil(logger).Named("pipeline"),
	}
}

// DefaultRequest returns a request carrying the configured switches.
// Transports decode client input over it.
func (p *Pipeline) DefaultRequest() entities.RunRequest {
	opts := p.cfg.Options
	return entities.RunRequest{
		Model:            p.cfg.Model,
		KeepAlive:        p.cfg.KeepAlive,
		KeepAliveUnit:    p.cfg.KeepAliveUnit,
		UseLiveSearch:    p.cfg.SearchEnabled,
		EnhancedSearch:   p.cfg.EnhancedSearch,
		UseKnowledgeBase: p.cfg.KBEnabled,
		UseMultiAPI:      p.cfg.MultiAPIEnabled,
		ImageProvider:    p.cfg.ImageProvider,
		UseToolPrompt:    p.cfg.ToolPrompt,
		ForceContext:     p.cfg.ForceIfEmpty,
		HarmonizeGPTOSS:  p.cfg.HarmonizeGPTOSS,
		AutoTranslate:    p.cfg.AutoTranslate,
		ContextChaining:  p.cfg.Chaining,
		AnswerLanguage:   p.cfg.AnswerLanguage,
		TargetLanguage:   p.cfg.TranslateTarget,
		MaxContextChars:  p.cfg.MaxContextChars,
		Options:          &opts,
	}
}

// Providers reports the registered image providers and translators.
func (p *Pipeline) Providers() entities.ProviderSummary {
	var sum entities.ProviderSummary
	if p.deps.Aggregator != nil {
		sum.Images = p.deps.Aggregator.ImageProviders()
	}
	sum.Translators = p.deps.Translator.Len()
	return sum
}

// LastRunInfo returns the metadata of the most recent run.
func (p *Pipeline) LastRunInfo() entities.RunInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run executes the full pipeline. It never fails: provider errors degrade
// to empty context and model errors come back as the final text.
func (p *Pipeline) Run(ctx context.Context, req entities.RunRequest) (res entities.RunResult) {
	start := time.Now()
	model := p.model(req)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panicked", zap.Any("panic", r))
			res = entities.RunResult{
				Final: fmt.Sprintf("[contextrag] pipeline failed: %v", r),
				Info:  entities.RunInfo{Model: model, Transport: TransportError},
			}
		}
		res.Info.Duration = time.Since(start)
		res.Info.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		p.mu.Lock()
		p.last = res.Info
		p.mu.Unlock()
	}()

	if req.RefreshConnection && p.deps.Catalog != nil {
		if !p.deps.Catalog.Healthy(ctx) {
			p.logger.Warn("model server not reachable", zap.String("model", model))
		}
	}

	systemPrompt := InjectToolPrompt(textutil.NormalizePrompt(req.SystemPrompt), req.UseToolPrompt)
	userPrompt := textutil.NormalizePrompt(req.UserPrompt)
	info := entities.RunInfo{Model: model}

	original := userPrompt
	promptLang := p.detect(userPrompt)
	info.PromptLanguage = promptLang
	target := textutil.FirstNonEmpty(req.TargetLanguage, p.cfg.TranslateTarget)
	if req.AutoTranslate && target != "" && promptLang != "" && promptLang != target {
		if out, ok := p.deps.Translator.Translate(ctx, userPrompt, target); ok {
			userPrompt = out
			info.Translated = true
		}
	}

	rendered := p.render(ctx, req, userPrompt, &info)

	var history []entities.Message
	if req.ContextChaining && p.deps.Sessions != nil {
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		info.SessionID = req.SessionID
		h, err := p.deps.Sessions.Load(ctx, req.SessionID)
		if err != nil {
			p.logger.Debug("loading session failed", zap.String("session", req.SessionID), zap.Error(err))
		}
		history = h
	}

	images := lo.Map(req.Images, func(img entities.UserImage, _ int) string {
		return stripDataURL(img.Data)
	})
	images = nonBlank(images)
	if len(images) > 0 && p.deps.Capabilities != nil {
		info.Multimodal = p.deps.Capabilities.SupportsImages(ctx, model) == ports.CapabilityYes
	}

	msgs := BuildMessages(MessageInput{
		SystemPrompt:        systemPrompt,
		UserPrompt:          userPrompt,
		ContextBlock:        rendered.Text,
		ForceContext:        req.ForceContext,
		Thinking:            req.Thinking,
		AnswerLanguage:      textutil.FirstNonEmpty(req.AnswerLanguage, p.cfg.AnswerLanguage),
		ContextMessagesJSON: req.ContextMessagesJSON,
		History:             history,
		Images:              images,
		Multimodal:          info.Multimodal,
	})
	msgs = HarmonizeGPTOSS(model, msgs, req.HarmonizeGPTOSS)

	parsed := entities.ParsedOutput{}
	if p.deps.Chat != nil {
		reply := p.deps.Chat.Chat(ctx, ports.ChatCall{
			Model:     model,
			Messages:  msgs,
			Options:   p.options(req),
			KeepAlive: p.keepAlive(req),
		})
		info.Transport = reply.Transport
		if p.deps.Parser != nil {
			parsed = p.deps.Parser.Parse(reply.Raw, req.Thinking)
		} else {
			parsed.Final = fmt.Sprint(reply.Raw)
		}
	} else {
		info.Transport = TransportError
		parsed.Final = "[contextrag] no model service configured"
	}

	if info.Translated && promptLang != "" {
		if out, ok := p.deps.Translator.Translate(ctx, parsed.Final, promptLang); ok {
			parsed.Final = out
		}
	}

	if req.ContextChaining && p.deps.Sessions != nil {
		turn := []entities.Message{
			{Role: entities.RoleUser, Content: original},
			{Role: entities.RoleAssistant, Content: parsed.Final},
		}
		if err := p.deps.Sessions.Save(ctx, req.SessionID, MergeHistory(history, turn, p.cfg.MaxTurns)); err != nil {
			p.logger.Warn("saving session failed", zap.String("session", req.SessionID), zap.Error(err))
		}
	}

	p.logger.Info("run complete",
		zap.String("model", model),
		zap.String("transport", info.Transport),
		zap.String("profile", info.Profile),
		zap.Int("context_chars", info.ContextChars),
		zap.Int("sources", len(rendered.Sources)))

	return entities.RunResult{
		Thinking:  parsed.Thinking,
		Final:     parsed.Final,
		Sources:   rendered.Sources,
		Citations: parsed.Citations,
		Info:      info,
	}
}

// RenderOnly gathers and renders context without calling the model.
func (p *Pipeline) RenderOnly(ctx context.Context, req entities.RunRequest) entities.RenderedContext {
	var info entities.RunInfo
	return p.render(ctx, req, textutil.NormalizePrompt(req.UserPrompt), &info)
}

func (p *Pipeline) render(ctx context.Context, req entities.RunRequest, query string, info *entities.RunInfo) entities.RenderedContext {
	in := p.gather(ctx, req, query)
	rendered := RenderContext(in)

	info.Profile = rendered.Profile
	info.Budgets = rendered.Budgets
	info.ContextChars = textutil.Len(rendered.Text)
	info.KBHits = len(in.KBHits)
	info.LiveSnippets = len(in.Live)
	info.APISnippets = len(in.API)
	info.ImageItems = len(in.Images)
	info.UserImages = len(in.UserImages)
	return rendered
}

// gather runs the knowledge base, live search, multi-API and image lookups
// concurrently. Each branch fills its own field of the input.
func (p *Pipeline) gather(ctx context.Context, req entities.RunRequest, query string) ContextInput {
	in := ContextInput{
		TotalChars: p.contextChars(req),
		UserImages: req.Images,
	}
	if strings.TrimSpace(query) == "" {
		return in
	}

	g, gctx := errgroup.WithContext(ctx)

	if req.UseKnowledgeBase && p.deps.KB != nil && p.cfg.KBDir != "" {
		g.Go(guard(p.logger, "kb", func() error {
			if err := p.deps.KB.Ensure(gctx, p.cfg.KBDir, p.cfg.ChunkChars, p.cfg.OverlapChars); err != nil {
				p.logger.Debug("knowledge base unavailable", zap.Error(err))
			}
			in.KBHits = p.deps.KB.Search(p.cfg.KBDir, query, p.cfg.KBTopK)
			return nil
		}))
	}

	if agg := p.deps.Aggregator; agg != nil {
		if req.UseLiveSearch {
			g.Go(guard(p.logger, "live", func() error {
				res := agg.LiveSearch(gctx, query, req.EnhancedSearch)
				in.Live, in.LiveSources = res.Snippets, res.Sources
				return nil
			}))
		}
		if req.UseMultiAPI {
			g.Go(guard(p.logger, "multiapi", func() error {
				in.API = agg.MultiAPI(gctx, query)
				return nil
			}))
		}
		if provider := textutil.FirstNonEmpty(req.ImageProvider, p.cfg.ImageProvider); provider != "" && provider != "off" {
			g.Go(guard(p.logger, "images", func() error {
				in.Images = agg.Images(gctx, provider, query, max(1, p.cfg.ImageMaxResults))
				return nil
			}))
		}
	}

	_ = g.Wait()
	return in
}

func (p *Pipeline) detect(text string) string {
	if p.deps.Detector == nil || text == "" {
		return ""
	}
	code, ok := p.deps.Detector.Detect(text)
	if !ok {
		return ""
	}
	return code
}

func (p *Pipeline) model(req entities.RunRequest) string {
	return textutil.FirstNonEmpty(strings.TrimSpace(req.Model), p.cfg.Model)
}

func (p *Pipeline) options(req entities.RunRequest) entities.SamplingOptions {
	if req.Options == nil {
		return p.cfg.Options
	}
	return req.Options.Normalized()
}

func (p *Pipeline) keepAlive(req entities.RunRequest) string {
	if req.KeepAlive > 0 {
		return entities.KeepAlive(req.KeepAlive, req.KeepAliveUnit)
	}
	return entities.KeepAlive(p.cfg.KeepAlive, p.cfg.KeepAliveUnit)
}

func (p *Pipeline) contextChars(req entities.RunRequest) int {
	if req.MaxContextChars > 0 {
		return entities.ClampContextChars(req.MaxContextChars)
	}
	return p.cfg.MaxContextChars
}

// stripDataURL removes a "data:image/...;base64," prefix.
func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
