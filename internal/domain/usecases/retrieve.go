package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

const (
	liveBaseCap      = 800
	liveKeywordBonus = 150
)

// Recency and news signal words, English and Dutch.
var liveKeywords = lo.Uniq([]string{
	"today", "latest", "news", "update", "updated", "breaking", "result", "results",
	"score", "live", "current", "yesterday", "date",
	"vandaag", "gisteren", "nieuws", "laatste", "actueel", "update", "uitslag",
	"uitslagen", "resultaat", "stand", "datum",
})

// LiveScore rates a live snippet: its length capped at 800 plus 150 for
// every distinct recency keyword it contains.
func LiveScore(s string) int {
	score := min(textutil.Len(s), liveBaseCap)
	lower := strings.ToLower(s)
	for _, kw := range liveKeywords {
		if strings.Contains(lower, kw) {
			score += liveKeywordBonus
		}
	}
	return score
}

// RankLive sorts snippets by LiveScore, highest first. Ties keep input order.
func RankLive(snippets []string) []string {
	out := append([]string(nil), snippets...)
	sort.SliceStable(out, func(i, j int) bool {
		return LiveScore(out[i]) > LiveScore(out[j])
	})
	return out
}

// DedupeByURL keeps the first source for every URL and drops empty URLs.
func DedupeByURL(sources []entities.SourceRecord) []entities.SourceRecord {
	withURL := lo.Filter(sources, func(s entities.SourceRecord, _ int) bool {
		return s.URL != ""
	})
	return lo.UniqBy(withURL, func(s entities.SourceRecord) string {
		return s.URL
	})
}

// Route sends queries containing one of Keywords, or one of Words as a
// whole token, to Provider.
type Route struct {
	Name     string
	Keywords []string
	Words    []string
	Provider ports.APIProvider
}

// Router is the keyword-routed multi-API layer.
type Router struct {
	routes []Route
	logger *zap.Logger
}

// NewRouter creates a router. Routes without a provider are ignored.
func NewRouter(logger *zap.Logger, routes ...Route) *Router {
	return &Router{
		routes: lo.Filter(routes, func(r Route, _ int) bool { return r.Provider != nil }),
		logger: nopIfNil(logger).Named("router"),
	}
}

// Match returns the routes whose keywords occur in query, in route order.
func (r *Router) Match(query string) []Route {
	q := strings.ToLower(query)
	tokens := textutil.Tokenize(q)
	return lo.Filter(r.routes, func(rt Route, _ int) bool {
		return lo.SomeBy(rt.Keywords, func(kw string) bool {
			return strings.Contains(q, kw)
		}) || lo.Some(tokens, rt.Words)
	})
}

// Collect calls every matching provider concurrently and returns their
// non-empty answers in route order. Failures are logged and skipped.
func (r *Router) Collect(ctx context.Context, query string) []string {
	if r == nil {
		return nil
	}
	routes := r.Match(query)
	if len(routes) == 0 {
		return nil
	}

	slots := make([]string, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	for i, rt := range routes {
		g.Go(guard(r.logger, rt.Name, func() error {
			text, err := rt.Provider.Fetch(gctx, query)
			if err != nil {
				r.logger.Debug("api provider failed", zap.String("route", rt.Name), zap.Error(err))
				return nil
			}
			slots[i] = strings.TrimSpace(text)
			return nil
		}))
	}
	_ = g.Wait()

	return nonBlank(slots)
}

// Aggregator gathers live search results, multi-API snippets and images.
type Aggregator struct {
	primary    []ports.LiveSearcher
	enhanced   []ports.LiveSearcher
	fallbacks  []ports.LiveSearcher
	router     *Router
	images     map[string]ports.ImageSearcher
	maxResults int
	logger     *zap.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithPrimary sets the free search providers queried on every live search.
func WithPrimary(s ...ports.LiveSearcher) AggregatorOption {
	return func(a *Aggregator) { a.primary = append(a.primary, s...) }
}

// WithEnhanced sets providers added to the primary pass for enhanced search.
func WithEnhanced(s ...ports.LiveSearcher) AggregatorOption {
	return func(a *Aggregator) { a.enhanced = append(a.enhanced, s...) }
}

// WithFallbacks sets the providers tried in order when the primary pass
// returned nothing at all.
func WithFallbacks(s ...ports.LiveSearcher) AggregatorOption {
	return func(a *Aggregator) { a.fallbacks = append(a.fallbacks, s...) }
}

// WithRouter sets the multi-API router.
func WithRouter(r *Router) AggregatorOption {
	return func(a *Aggregator) { a.router = r }
}

// WithImages registers image providers by name.
func WithImages(s ...ports.ImageSearcher) AggregatorOption {
	return func(a *Aggregator) {
		for _, is := range s {
			a.images[is.Name()] = is
		}
	}
}

// WithMaxResults sets the per-provider result limit.
func WithMaxResults(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		images:     make(map[string]ports.ImageSearcher),
		maxResults: 5,
		logger:     nopIfNil(logger).Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LiveSearch runs the primary providers concurrently. Only when they yield
// neither snippets nor sources are the fallbacks tried, one by one, until
// one yields something. Snippets come back ranked, sources deduplicated by URL.
func (a *Aggregator) LiveSearch(ctx context.Context, query string, enhanced bool) ports.SearchResult {
	providers := a.primary
	if enhanced {
		providers = append(append([]ports.LiveSearcher(nil), a.primary...), a.enhanced...)
	}

	res := a.searchAll(ctx, providers, query)
	if res.Empty() {
		for _, fb := range a.fallbacks {
			r, err := fb.Search(ctx, query, a.maxResults)
			if err != nil {
				a.logFailure(fb.Name(), err)
				continue
			}
			if !r.Empty() {
				a.logger.Debug("live search fallback used", zap.String("provider", fb.Name()))
				res = r
				break
			}
		}
	}

	return ports.SearchResult{
		Snippets: RankLive(nonBlank(res.Snippets)),
		Sources:  DedupeByURL(res.Sources),
	}
}

func (a *Aggregator) searchAll(ctx context.Context, providers []ports.LiveSearcher, query string) ports.SearchResult {
	slots := make([]ports.SearchResult, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(guard(a.logger, p.Name(), func() error {
			r, err := p.Search(gctx, query, a.maxResults)
			if err != nil {
				a.logFailure(p.Name(), err)
				return nil
			}
			slots[i] = r
			return nil
		}))
	}
	_ = g.Wait()

	var merged ports.SearchResult
	for _, r := range slots {
		merged.Snippets = append(merged.Snippets, r.Snippets...)
		merged.Sources = append(merged.Sources, r.Sources...)
	}
	return merged
}

// MultiAPI returns the router's snippets for query.
func (a *Aggregator) MultiAPI(ctx context.Context, query string) []string {
	return a.router.Collect(ctx, query)
}

// Images queries the named image provider. Unknown or "off" providers
// return nothing.
func (a *Aggregator) Images(ctx context.Context, provider, query string, maxResults int) []entities.ImageItem {
	provider = strings.ToLower(strings.TrimSpace(provider))
	is, ok := a.images[provider]
	if !ok || provider == "off" {
		return nil
	}
	items, err := is.SearchImages(ctx, query, maxResults)
	if err != nil {
		a.logFailure(provider, err)
		return nil
	}
	return items
}

// ImageProviders lists the registered image providers.
func (a *Aggregator) ImageProviders() []string {
	names := lo.Keys(a.images)
	sort.Strings(names)
	return names
}

func (a *Aggregator) logFailure(provider string, err error) {
	if errors.Is(err, ports.ErrMissingKey) || errors.Is(err, ports.ErrNoResults) {
		a.logger.Debug("provider skipped", zap.String("provider", provider), zap.Error(err))
		return
	}
	a.logger.Debug("provider failed", zap.String("provider", provider), zap.Error(err))
}

// guard runs fn and turns a panic into a logged no-op.
func guard(logger *zap.Logger, name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("provider panicked", zap.String("provider", name), zap.Any("panic", r))
				err = nil
			}
		}()
		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
