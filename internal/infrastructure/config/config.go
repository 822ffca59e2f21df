// Package config loads contextrag configuration from YAML with env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

const (
	MinContextChars     = entities.MinContextChars
	MaxContextChars     = entities.MaxContextChars
	DefaultContextChars = entities.DefaultContextChars
)

// Config holds all contextrag configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	KB        KBConfig        `yaml:"kb"`
	Search    SearchConfig    `yaml:"search"`
	MultiAPI  MultiAPIConfig  `yaml:"multiapi"`
	Images    ImagesConfig    `yaml:"images"`
	Translate TranslateConfig `yaml:"translate"`
	Language  LanguageConfig  `yaml:"language"`
	Chaining  ChainingConfig  `yaml:"chaining"`
	Context   ContextConfig   `yaml:"context"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// RetryPolicy is a bounded retry policy applied per outbound call.
type RetryPolicy struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
	MaxDelay string `yaml:"max_delay"`
}

// DelayDuration parses Delay, defaulting to 350ms.
func (p RetryPolicy) DelayDuration() time.Duration {
	return parseDuration(p.Delay, 350*time.Millisecond)
}

// MaxDelayDuration parses MaxDelay, defaulting to 2s.
func (p RetryPolicy) MaxDelayDuration() time.Duration {
	return parseDuration(p.MaxDelay, 2*time.Second)
}

// OllamaConfig configures the model endpoint.
type OllamaConfig struct {
	URL           string                   `yaml:"url"`
	Model         string                   `yaml:"model"`
	KeepAlive     int                      `yaml:"keep_alive"`
	KeepAliveUnit string                   `yaml:"keep_alive_unit"` // minutes, hours
	Timeout       string                   `yaml:"timeout"`
	Options       entities.SamplingOptions `yaml:"options"`
	Retry         RetryPolicy              `yaml:"retry"`
}

// TimeoutDuration parses Timeout, defaulting to 120s.
func (c OllamaConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 120*time.Second)
}

// KBConfig configures the knowledge base.
type KBConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Dir          string `yaml:"dir"`
	ChunkChars   int    `yaml:"chunk_chars"`
	OverlapChars int    `yaml:"overlap_chars"`
	MaxChunks    int    `yaml:"max_chunks"`
	Watch        bool   `yaml:"watch"`
}

// SearchConfig configures live search providers.
type SearchConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Enhanced      bool    `yaml:"enhanced"`
	MaxResults    int     `yaml:"max_results"`
	Timeout       string  `yaml:"timeout"`
	WikiLang      string  `yaml:"wiki_lang"`
	BraveKey      string  `yaml:"brave_key"`
	SerperKey     string  `yaml:"serper_key"`
	GoogleCSEKey  string  `yaml:"google_cse_key"`
	GoogleCSECX   string  `yaml:"google_cse_cx"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// TimeoutDuration parses Timeout, defaulting to 10s.
func (c SearchConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// MultiAPIConfig configures the keyword-routed API providers.
type MultiAPIConfig struct {
	Enabled         bool   `yaml:"enabled"`
	WeatherLocation string `yaml:"weather_location"`
	NewsTopic       string `yaml:"news_topic"`
	GNewsToken      string `yaml:"gnews_token"`
	StockSymbol     string `yaml:"stock_symbol"`
	SportsTeam      string `yaml:"sports_team"`
	CryptoCoin      string `yaml:"crypto_coin"`
	Timeout         string `yaml:"timeout"`
}

// TimeoutDuration parses Timeout, defaulting to 8s.
func (c MultiAPIConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 8*time.Second)
}

// ImagesConfig configures image search.
type ImagesConfig struct {
	Provider    string `yaml:"provider"` // off, unsplash, bing, pexels
	MaxResults  int    `yaml:"max_results"`
	UnsplashKey string `yaml:"unsplash_key"`
	BingKey     string `yaml:"bing_key"`
	PexelsKey   string `yaml:"pexels_key"`
}

// TranslateConfig configures the translation chain.
type TranslateConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Target      string `yaml:"target"`
	DeepLKey    string `yaml:"deepl_key"`
	DeepLURL    string `yaml:"deepl_url"`
	LibreURL    string `yaml:"libre_url"`
	LibreKey    string `yaml:"libre_key"`
	LingvaURL   string `yaml:"lingva_url"`
	MyMemoryURL string `yaml:"mymemory_url"`
}

// LanguageConfig configures language detection and the answer language.
type LanguageConfig struct {
	Detectors []string `yaml:"detectors"` // whatlang, heuristic
	Answer    string   `yaml:"answer"`
}

// ChainingConfig configures persisted conversation state.
type ChainingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // file, sqlite
	Dir      string `yaml:"dir"`
	MaxTurns int    `yaml:"max_turns"`
}

// ContextConfig configures the context budget and prompt features.
type ContextConfig struct {
	MaxChars        int  `yaml:"max_chars"`
	ToolPrompt      bool `yaml:"tool_prompt"`
	ForceIfEmpty    bool `yaml:"force_if_empty"`
	HarmonizeGPTOSS bool `yaml:"harmonize_gpt_oss"`
}

// HTTPConfig configures the shared outbound HTTP client.
type HTTPConfig struct {
	UserAgent string      `yaml:"user_agent"`
	Retry     RetryPolicy `yaml:"retry"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Ollama: OllamaConfig{
			URL:           "http://127.0.0.1:11434",
			Model:         "llama3.1",
			KeepAlive:     10,
			KeepAliveUnit: "minutes",
			Timeout:       "120s",
			Options:       entities.DefaultSamplingOptions(),
			Retry:         RetryPolicy{Attempts: 2, Delay: "350ms", MaxDelay: "2s"},
		},
		KB: KBConfig{
			Enabled:      true,
			Dir:          "knowledge_base",
			ChunkChars:   900,
			OverlapChars: 120,
			MaxChunks:    6,
		},
		Search: SearchConfig{
			Enabled:       true,
			MaxResults:    5,
			Timeout:       "10s",
			WikiLang:      "en",
			RatePerSecond: 2,
		},
		MultiAPI: MultiAPIConfig{
			Enabled:         true,
			WeatherLocation: "Amsterdam",
			NewsTopic:       "technology",
			StockSymbol:     "AAPL",
			SportsTeam:      "FC Barcelona",
			CryptoCoin:      "bitcoin",
			Timeout:         "8s",
		},
		Images: ImagesConfig{Provider: "off", MaxResults: 4},
		Translate: TranslateConfig{
			Target:      "en",
			DeepLURL:    "https://api-free.deepl.com/v2/translate",
			LibreURL:    "https://libretranslate.com/translate",
			LingvaURL:   "https://lingva.ml",
			MyMemoryURL: "https://api.mymemory.translated.net/get",
		},
		Language: LanguageConfig{Detectors: []string{"whatlang", "heuristic"}},
		Chaining: ChainingConfig{Backend: "file", Dir: ".", MaxTurns: 10},
		Context:  ContextConfig{MaxChars: DefaultContextChars},
		HTTP: HTTPConfig{
			UserAgent: "contextrag/1.0",
			Retry:     RetryPolicy{Attempts: 2, Delay: "250ms", MaxDelay: "1s"},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Normalize()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	lookup := func(key string) (string, bool) {
		v := strings.TrimSpace(os.Getenv(key))
		return v, v != ""
	}
	setBool := func(dst *bool, key string) {
		if v, ok := lookup(key); ok {
			*dst = textutil.SafeBool(v, *dst)
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := lookup(key); ok {
			*dst = textutil.SafeInt(v, *dst)
		}
	}
	setFloat := func(dst *float64, key string) {
		if v, ok := lookup(key); ok {
			*dst = textutil.SafeFloat(v, *dst)
		}
	}

	setString(&c.Ollama.URL, "CONTEXTRAG_OLLAMA_URL", "OLLAMA_HOST")
	setString(&c.Ollama.Model, "CONTEXTRAG_MODEL")
	setString(&c.Log.Level, "CONTEXTRAG_LOG_LEVEL")
	setString(&c.KB.Dir, "CONTEXTRAG_KB_DIR")
	setString(&c.Server.Addr, "CONTEXTRAG_ADDR")
	setString(&c.Search.BraveKey, "BRAVE_API_KEY")
	setString(&c.Search.SerperKey, "SERPER_API_KEY")
	setString(&c.Search.GoogleCSEKey, "GOOGLE_CSE_KEY")
	setString(&c.Search.GoogleCSECX, "GOOGLE_CSE_CX")
	setString(&c.Images.UnsplashKey, "UNSPLASH_KEY")
	setString(&c.Images.BingKey, "BING_KEY")
	setString(&c.Images.PexelsKey, "PEXELS_KEY")
	setString(&c.Translate.DeepLKey, "DEEPL_API_KEY")
	setString(&c.Translate.LibreKey, "LIBRETRANSLATE_KEY")
	setString(&c.MultiAPI.GNewsToken, "GNEWS_TOKEN")

	setBool(&c.KB.Enabled, "CONTEXTRAG_KB_ENABLED")
	setBool(&c.KB.Watch, "CONTEXTRAG_KB_WATCH")
	setBool(&c.Search.Enabled, "CONTEXTRAG_SEARCH_ENABLED")
	setBool(&c.MultiAPI.Enabled, "CONTEXTRAG_MULTIAPI_ENABLED")
	setBool(&c.Chaining.Enabled, "CONTEXTRAG_CHAINING")
	setInt(&c.Context.MaxChars, "CONTEXTRAG_MAX_CONTEXT_CHARS")
	setFloat(&c.Search.RatePerSecond, "CONTEXTRAG_SEARCH_RATE")
}

// Normalize replaces out-of-range values with defaults or clamps them.
// It never fails.
func (c *Config) Normalize() {
	d := Default()

	c.Ollama.URL = strings.TrimRight(strings.TrimSpace(c.Ollama.URL), "/")
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if !strings.HasPrefix(c.Ollama.URL, "http://") && !strings.HasPrefix(c.Ollama.URL, "https://") {
		c.Ollama.URL = "http://" + c.Ollama.URL
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		c.Ollama.Model = d.Ollama.Model
	}
	if c.Ollama.KeepAlive < 0 {
		c.Ollama.KeepAlive = d.Ollama.KeepAlive
	}
	if c.Ollama.KeepAliveUnit != "hours" {
		c.Ollama.KeepAliveUnit = "minutes"
	}
	c.Ollama.Options = NormalizeOptions(c.Ollama.Options)
	c.Ollama.Retry = normalizeRetry(c.Ollama.Retry, d.Ollama.Retry)
	c.HTTP.Retry = normalizeRetry(c.HTTP.Retry, d.HTTP.Retry)

	if c.KB.ChunkChars <= 0 {
		c.KB.ChunkChars = d.KB.ChunkChars
	}
	if c.KB.OverlapChars < 0 || c.KB.OverlapChars >= c.KB.ChunkChars {
		c.KB.OverlapChars = min(d.KB.OverlapChars, c.KB.ChunkChars/2)
	}
	if c.KB.MaxChunks <= 0 {
		c.KB.MaxChunks = d.KB.MaxChunks
	}

	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = d.Search.MaxResults
	}
	if c.Search.WikiLang == "" {
		c.Search.WikiLang = d.Search.WikiLang
	}
	if c.Search.RatePerSecond <= 0 {
		c.Search.RatePerSecond = d.Search.RatePerSecond
	}

	switch c.Images.Provider {
	case "off", "unsplash", "bing", "pexels":
	default:
		c.Images.Provider = "off"
	}
	if c.Images.MaxResults <= 0 {
		c.Images.MaxResults = d.Images.MaxResults
	}

	if c.Chaining.Backend != "sqlite" {
		c.Chaining.Backend = "file"
	}
	if c.Chaining.MaxTurns <= 0 {
		c.Chaining.MaxTurns = d.Chaining.MaxTurns
	}
	if c.Chaining.Dir == "" {
		c.Chaining.Dir = d.Chaining.Dir
	}
	if len(c.Language.Detectors) == 0 {
		c.Language.Detectors = d.Language.Detectors
	}

	c.Context.MaxChars = ClampContextChars(c.Context.MaxChars)

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Log.Level = "info"
	}
	if c.Log.Format != "console" {
		c.Log.Format = "json"
	}
}

// ClampContextChars clamps a requested context size to the supported range.
// Zero or negative means the default.
func ClampContextChars(n int) int {
	return entities.ClampContextChars(n)
}

// NormalizeOptions fills zero or out-of-range sampling options with defaults.
func NormalizeOptions(o entities.SamplingOptions) entities.SamplingOptions {
	return o.Normalized()
}

func normalizeRetry(p, def RetryPolicy) RetryPolicy {
	if p.Attempts <= 0 || p.Attempts > 10 {
		p.Attempts = def.Attempts
	}
	if _, err := time.ParseDuration(p.Delay); err != nil {
		p.Delay = def.Delay
	}
	if _, err := time.ParseDuration(p.MaxDelay); err != nil {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// KeepAliveString renders keep-alive as Ollama expects, e.g. "10m" or "1h".
func KeepAliveString(n int, unit string) string {
	return entities.KeepAlive(n, unit)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
