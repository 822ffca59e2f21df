package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/adapters/capability"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/images"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/kbindex"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/langdetect"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/llm"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/loader"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/multiapi"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/parser"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/search"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/session"
	"github.com/0xcro3dile/contextrag-go/internal/adapters/translate"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/usecases"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

// app is the wired set of components for one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	kb       *kbindex.Cache
	loader   *loader.TextLoader
	catalog  *llm.ModelCatalog
	pipeline *usecases.Pipeline
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// buildApp wires adapters from configuration.
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	logger = logging.OrNop(logger)
	a := &app{cfg: cfg, logger: logger}

	searchClient := httpclient.New(httpclient.Options{
		Timeout:       cfg.Search.TimeoutDuration(),
		UserAgent:     cfg.HTTP.UserAgent,
		Retry:         cfg.HTTP.Retry,
		RatePerSecond: cfg.Search.RatePerSecond,
		Logger:        logger,
	})
	apiClient := httpclient.New(httpclient.Options{
		Timeout:   cfg.MultiAPI.TimeoutDuration(),
		UserAgent: cfg.HTTP.UserAgent,
		Retry:     cfg.HTTP.Retry,
		Logger:    logger,
	})
	ollamaClient := httpclient.New(httpclient.Options{
		Timeout:   cfg.Ollama.TimeoutDuration(),
		UserAgent: cfg.HTTP.UserAgent,
		Retry:     cfg.Ollama.Retry,
		Logger:    logger,
	})

	catalog, err := llm.NewModelCatalog(cfg.Ollama.URL, 0, logger)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog
	a.loader = loader.NewTextLoader()
	a.kb = kbindex.NewCache(a.loader, logger)

	router := usecases.NewRouter(logger, multiapi.Routes(apiClient, cfg.MultiAPI, multiapi.Endpoints{})...)
	aggregator := usecases.NewAggregator(logger,
		usecases.WithPrimary(
			search.NewDuckDuckGo(searchClient, ""),
			search.NewWikipedia(searchClient, cfg.Search.WikiLang, ""),
		),
		usecases.WithEnhanced(search.NewDuckDuckGoHTML(searchClient, "")),
		usecases.WithFallbacks(
			search.NewBrave(searchClient, cfg.Search.BraveKey, ""),
			search.NewSerper(searchClient, cfg.Search.SerperKey, ""),
			search.NewGoogleCSE(searchClient, cfg.Search.GoogleCSEKey, cfg.Search.GoogleCSECX, ""),
		),
		usecases.WithRouter(router),
		usecases.WithImages(
			images.NewUnsplash(apiClient, cfg.Images.UnsplashKey, ""),
			images.NewBing(apiClient, cfg.Images.BingKey, ""),
			images.NewPexels(apiClient, cfg.Images.PexelsKey, ""),
		),
		usecases.WithMaxResults(cfg.Search.MaxResults),
	)

	translator := usecases.NewTranslationChain(logger,
		translate.NewDeepL(apiClient, cfg.Translate.DeepLKey, cfg.Translate.DeepLURL),
		translate.NewLibre(apiClient, cfg.Translate.LibreURL, cfg.Translate.LibreKey),
		translate.NewLingva(apiClient, cfg.Translate.LingvaURL),
		translate.NewMyMemory(apiClient, cfg.Translate.MyMemoryURL),
	)

	sessions, err := openSessions(a, cfg.Chaining)
	if err != nil {
		return nil, err
	}

	deps := usecases.PipelineDeps{
		KB:           a.kb,
		Aggregator:   aggregator,
		Chat:         llm.NewOllamaChatAdapter(cfg.Ollama.URL, ollamaClient, logger),
		Parser:       parser.New(),
		Capabilities: capability.NewChain(capability.NameHeuristic{}, capability.NewShowProber(catalog.Client(), logger)),
		Catalog:      catalog,
		Detector:     langdetect.FromNames(cfg.Language.Detectors),
		Translator:   translator,
		Sessions:     sessions,
	}
	a.pipeline = usecases.NewPipeline(pipelineConfig(cfg), deps, logger)
	return a, nil
}

func openSessions(a *app, cfg config.ChainingConfig) (ports.SessionStore, error) {
	if cfg.Backend == "sqlite" {
		store, err := session.NewSQLiteStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	store, err := session.NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func pipelineConfig(cfg *config.Config) usecases.PipelineConfig {
	return usecases.PipelineConfig{
		Model:           cfg.Ollama.Model,
		KeepAlive:       cfg.Ollama.KeepAlive,
		KeepAliveUnit:   cfg.Ollama.KeepAliveUnit,
		Options:         cfg.Ollama.Options,
		KBEnabled:       cfg.KB.Enabled,
		KBDir:           cfg.KB.Dir,
		ChunkChars:      cfg.KB.ChunkChars,
		OverlapChars:    cfg.KB.OverlapChars,
		KBTopK:          cfg.KB.MaxChunks,
		SearchEnabled:   cfg.Search.Enabled,
		EnhancedSearch:  cfg.Search.Enhanced,
		MultiAPIEnabled: cfg.MultiAPI.Enabled,
		ImageProvider:   cfg.Images.Provider,
		ImageMaxResults: cfg.Images.MaxResults,
		MaxContextChars: cfg.Context.MaxChars,
		ToolPrompt:      cfg.Context.ToolPrompt,
		ForceIfEmpty:    cfg.Context.ForceIfEmpty,
		HarmonizeGPTOSS: cfg.Context.HarmonizeGPTOSS,
		AutoTranslate:   cfg.Translate.Enabled,
		TranslateTarget: cfg.Translate.Target,
		AnswerLanguage:  cfg.Language.Answer,
		Chaining:        cfg.Chaining.Enabled,
		MaxTurns:        cfg.Chaining.MaxTurns,
	}
}
