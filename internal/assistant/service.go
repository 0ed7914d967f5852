package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/qcrao/copilot/internal/cache"
	"github.com/qcrao/copilot/internal/clock"
	"github.com/qcrao/copilot/internal/content"
	ctxpkg "github.com/qcrao/copilot/internal/context"
	"github.com/qcrao/copilot/internal/search"
)

// DefaultSearchLimit caps search results when no limit is configured.
const DefaultSearchLimit = 20

// Options configures a Service.
type Options struct {
	Content    ContentSource
	Search     []SearchSource
	Visibility VisibilitySource

	// Specs defaults to ctxpkg.DefaultSpecs.
	Specs  map[content.SectionKind]ctxpkg.Spec
	Budget int

	SearchLimit int
	TTL         time.Duration
	Debounce    time.Duration
	Capacity    int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Service builds budgeted context and ranked search results.
type Service struct {
	content     ContentSource
	searchers   []SearchSource
	visibility  VisibilitySource
	specs       map[content.SectionKind]ctxpkg.Spec
	budget      int
	searchLimit int
	ttl         time.Duration
	formatter   *ctxpkg.Formatter
	logger      *slog.Logger

	contexts *cache.Cache[Built]
	searches *cache.Cache[SearchResult]
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Content == nil {
		return nil, errors.New("assistant: content source is required")
	}
	if opts.Specs == nil {
		opts.Specs = ctxpkg.DefaultSpecs()
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	copts := cache.Options{
		TTL:      opts.TTL,
		Debounce: opts.Debounce,
		Capacity: opts.Capacity,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	}
	return &Service{
		content:     opts.Content,
		searchers:   opts.Search,
		visibility:  opts.Visibility,
		specs:       opts.Specs,
		budget:      opts.Budget,
		searchLimit: opts.SearchLimit,
		ttl:         opts.TTL,
		formatter:   ctxpkg.NewFormatter(),
		logger:      opts.Logger,
		contexts:    cache.New[Built](copts),
		searches:    cache.New[SearchResult](copts),
	}, nil
}

// Close drops cached values and stops pending refreshes.
func (s *Service) Close() {
	s.contexts.Close()
	s.searches.Close()
}

// BuildOptions narrows a single build.
type BuildOptions struct {
	// Page builds around the named page instead of the current one. It
	// requires a content source implementing Focuser.
	Page string
	// MaxTokens overrides the configured budget when positive.
	MaxTokens int
}

func (o BuildOptions) key() string {
	return "context:" + o.Page + ":" + strconv.Itoa(o.MaxTokens)
}

// Built is the result of a build.
type Built struct {
	Text        string              `json:"text"`
	TokensUsed  int                 `json:"tokens_used"`
	Budget      int                 `json:"budget"`
	Allocations []ctxpkg.Allocation `json:"allocations"`
	Warnings    []Warning           `json:"warnings,omitempty"`
	Sources     Sources             `json:"-"`
	// Checksum fingerprints Sources; it changes only when content does.
	Checksum string `json:"checksum"`
}

// Build assembles the context for the current view.
func (s *Service) Build(ctx context.Context) (Built, error) {
	return s.BuildWith(ctx, BuildOptions{})
}

// BuildWith assembles context with per-call options. Source failures
// never fail the build; they show up in Built.Warnings.
func (s *Service) BuildWith(ctx context.Context, opts BuildOptions) (Built, error) {
	if err := ctx.Err(); err != nil {
		return Built{}, err
	}
	src, err := s.sourceFor(opts)
	if err != nil {
		return Built{}, err
	}

	key := opts.key()
	var fallback Built
	built, err := s.contexts.CachedOrCompute(ctx, key, s.ttl, func(ctx context.Context) (Built, error) {
		b, err := s.compute(ctx, src, opts)
		if err != nil {
			fallback = b
		}
		return b, err
	})
	if err == nil {
		return built, nil
	}

	if _, ok := s.contexts.Entry(key); ok {
		built.Warnings = append(append([]Warning(nil), built.Warnings...), Warning{Source: sourceCache, Err: err})
		return built, nil
	}
	return fallback, nil
}

func (s *Service) sourceFor(opts BuildOptions) (ContentSource, error) {
	if opts.Page == "" {
		return s.content, nil
	}
	f, ok := s.content.(Focuser)
	if !ok {
		return nil, fmt.Errorf("assistant: content source cannot focus page %q", opts.Page)
	}
	return f.Focus(opts.Page), nil
}

// compute fetches, formats and allocates. It returns an error, together
// with the degraded result, only when no content could be fetched.
func (s *Service) compute(ctx context.Context, src ContentSource, opts BuildOptions) (Built, error) {
	sources, warnings, allFailed := fetchSources(ctx, src)

	if s.visibility != nil {
		refs, err := s.visibility.CurrentlyVisible(ctx)
		if err != nil {
			warnings = append(warnings, unavailable(sourceVisibility, err))
		} else {
			pages := []*content.Page{sources.CurrentPage}
			for i := range sources.SidebarNotes {
				pages = append(pages, &sources.SidebarNotes[i])
			}
			sources.VisibleContent = resolveVisible(refs, pages...)
		}
	}

	for _, w := range warnings {
		s.logger.Warn("assistant: source unavailable",
			slog.String("source", w.Source), slog.String("error", w.Err.Error()))
	}

	budget := s.budget
	if opts.MaxTokens > 0 {
		budget = opts.MaxTokens
	}
	res := ctxpkg.BuildContext(s.sections(sources), budget)
	b := Built{
		Text:        res.Text,
		TokensUsed:  res.TokensUsed,
		Budget:      res.Budget,
		Allocations: res.Allocations,
		Warnings:    warnings,
		Sources:     sources,
		Checksum:    SourcesChecksum(sources),
	}
	if allFailed {
		return b, fmt.Errorf("assistant: build: %w", ErrSourceUnavailable)
	}
	return b, nil
}

// sections formats sources into allocator input, one section per kind.
func (s *Service) sections(src Sources) []ctxpkg.Section {
	texts := map[content.SectionKind]string{
		content.CurrentPage:      s.formatter.FormatPage(src.CurrentPage),
		content.VisibleContent:   s.formatter.FormatBlocks(src.VisibleContent),
		content.SidebarNotes:     s.formatter.FormatPages(src.SidebarNotes),
		content.LinkedReferences: s.formatter.FormatReferences(src.LinkedReferences),
	}
	out := make([]ctxpkg.Section, 0, len(content.SectionKinds))
	for _, k := range content.SectionKinds {
		spec, ok := s.specs[k]
		if !ok {
			continue
		}
		out = append(out, ctxpkg.NewSection(k, spec, texts[k]))
	}
	return out
}

// SourcesChecksum fingerprints the identifying fields of sources: for
// every section, the uid and text of each page and block in order.
func SourcesChecksum(src Sources) string {
	var tuples [][]string
	addPage := func(section string, p content.Page) {
		tuples = append(tuples, []string{section, "page", p.UID, p.Title})
		addBlocks(&tuples, section, p.Blocks)
	}
	if src.CurrentPage != nil {
		addPage(content.CurrentPage.String(), *src.CurrentPage)
	}
	for _, p := range src.SidebarNotes {
		addPage(content.SidebarNotes.String(), p)
	}
	addBlocks(&tuples, content.VisibleContent.String(), src.VisibleContent)
	for _, p := range src.LinkedReferences {
		addPage(content.LinkedReferences.String(), p)
	}
	return cache.Checksum(tuples...)
}

func addBlocks(tuples *[][]string, section string, blocks []content.Block) {
	content.Walk(blocks, func(b content.Block, depth int) bool {
		*tuples = append(*tuples, []string{section, "block", strconv.Itoa(depth), b.UID, b.Text})
		return true
	})
}

// Watch rebuilds the current-view context whenever signals reports a
// change, and calls listener only when the rebuilt content differs from
// what was last seen. The returned function stops watching.
func (s *Service) Watch(signals SignalSource, listener func(Built)) (stop func()) {
	opts := BuildOptions{}
	key := opts.key()
	s.contexts.Watch(key, cache.Source[Built]{
		Compute: func(ctx context.Context) (Built, error) {
			return s.compute(ctx, s.content, opts)
		},
		Checksum: func(b Built) string { return b.Checksum },
	})
	unlisten := s.contexts.OnChange(key, func(_ string, b Built) { listener(b) })
	unsignal := signals.OnRawChangeSignal(func(raw string) {
		s.logger.Debug("assistant: change signal", slog.String("key", raw))
		s.contexts.Signal(key)
	})
	return func() {
		unsignal()
		unlisten()
	}
}

// Refresh recomputes the watched current-view context immediately.
func (s *Service) Refresh() (bool, error) {
	return s.contexts.Refresh(BuildOptions{}.key())
}

// SearchResult is a ranked list of candidates for a query.
type SearchResult struct {
	Query      string             `json:"query"`
	Candidates []search.Candidate `json:"candidates"`
	Warnings   []Warning          `json:"warnings,omitempty"`
}

// Search ranks candidates from every search source against query.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	return s.SearchLimit(ctx, query, s.searchLimit)
}

// SearchLimit is Search with an explicit result limit.
func (s *Service) SearchLimit(ctx context.Context, query string, limit int) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{Query: query}, nil
	}
	if limit <= 0 {
		limit = s.searchLimit
	}
	res, _ := s.searches.CachedOrCompute(ctx, "search:"+query, s.ttl, func(ctx context.Context) (SearchResult, error) {
		return s.search(ctx, query), nil
	})
	if len(res.Candidates) > limit {
		res.Candidates = res.Candidates[:limit]
	}
	return res, nil
}
