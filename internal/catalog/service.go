package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/modelhub/internal/cache"
	"github.com/jordanhubbard/modelhub/internal/circuitbreaker"
	"github.com/jordanhubbard/modelhub/internal/metrics"
	"github.com/jordanhubbard/modelhub/internal/store"
	"github.com/jordanhubbard/modelhub/internal/tracing"
)

//go:generate go tool mockgen -source=service.go -destination=mock_fetcher_test.go -package=catalog Fetcher

// Fetcher is the read side of the record store used by the scorers.
// store.Store satisfies it.
type Fetcher interface {
	ListModels(ctx context.Context, q store.ModelQuery) ([]store.ModelRecord, error)
	CountModels(ctx context.Context, q store.ModelQuery) (int, error)
	GetModel(ctx context.Context, slug string) (*store.ModelRecord, error)
	GetModelsBySlugs(ctx context.Context, slugs []string) ([]store.ModelRecord, error)
	ListTrending(ctx context.Context, since time.Time, limit int) ([]store.ModelRecord, error)
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]store.ModelRecord, error)
}

// Cache key prefixes.
const (
	rankingsPrefix = "rankings:"
	trendingPrefix = "trending:"
)

// Service fetches candidates, scores them and caches the expensive results.
// Scoring runs only after the fetch has completed.
type Service struct {
	fetch    Fetcher
	breaker  *circuitbreaker.Breaker
	rankings *cache.TTL[[]RankedModel]
	trending *cache.TTL[[]TrendingModel]
	metrics  *metrics.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBreaker guards every fetch with b.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithRankingCache enables result caching for Rankings.
func WithRankingCache(c *cache.TTL[[]RankedModel]) Option {
	return func(s *Service) { s.rankings = c }
}

// WithTrendingCache enables result caching for Trending.
func WithTrendingCache(c *cache.TTL[[]TrendingModel]) Option {
	return func(s *Service) { s.trending = c }
}

// WithMetrics records scoring latency and cache outcomes in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now for range computations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service over f. Without WithBreaker a default breaker
// is used.
func NewService(f Fetcher, opts ...Option) *Service {
	s := &Service{
		fetch:  f,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.breaker == nil {
		s.breaker = circuitbreaker.New()
	}
	return s
}

// RankingQuery selects and pages a ranking.
type RankingQuery struct {
	SortBy  SortField
	Order   Order
	Limit   int
	Offset  int
	NoCache bool
}

func (q RankingQuery) cacheKey() string {
	key := fmt.Sprintf("%s%s:%s:%d", rankingsPrefix, q.SortBy, q.Order, q.Limit)
	if q.Offset > 0 {
		key += fmt.Sprintf(":%d", q.Offset)
	}
	return key
}

// RankingResult is a page of ranked models and whether it came from cache.
type RankingResult struct {
	Models   []RankedModel
	CacheHit bool
}

// Rankings scores the whole catalog and returns one sorted page.
func (s *Service) Rankings(ctx context.Context, q RankingQuery) (res RankingResult, err error) {
	ctx, done := s.begin(ctx, "Rankings", attribute.String("sort_by", string(q.SortBy)), attribute.String("order", string(q.Order)))
	defer func() { done(err) }()

	key := q.cacheKey()
	if s.rankings != nil && !q.NoCache {
		if cached, ok := s.rankings.Get(key); ok {
			s.cacheLookup("rankings", "hit")
			return RankingResult{Models: cached, CacheHit: true}, nil
		}
		s.cacheLookup("rankings", "miss")
	}

	var models []store.ModelRecord
	if err := s.guard(ctx, "rankings", func(ctx context.Context) error {
		var err error
		models, err = s.fetch.ListModels(ctx, store.ModelQuery{})
		return err
	}); err != nil {
		return RankingResult{}, err
	}

	ranked := Rank(models, q.SortBy, q.Order, q.Offset, q.Limit)
	if s.rankings != nil && !q.NoCache {
		s.rankings.Set(key, ranked)
	}
	return RankingResult{Models: ranked}, nil
}

// Compare scores the named models against each other. The count is checked
// before anything is fetched.
func (s *Service) Compare(ctx context.Context, slugs []string) (out []ComparisonEntry, err error) {
	ctx, done := s.begin(ctx, "Compare", attribute.StringSlice("slugs", slugs))
	defer func() { done(err) }()

	if err := CheckCompareCount(slugs); err != nil {
		return nil, err
	}
	var models []store.ModelRecord
	if err := s.guard(ctx, "compare", func(ctx context.Context) error {
		var err error
		models, err = s.fetch.GetModelsBySlugs(ctx, slugs)
		return err
	}); err != nil {
		return nil, err
	}
	return Compare(slugs, models)
}

// Similar returns up to limit models most like the anchor.
func (s *Service) Similar(ctx context.Context, slug string, limit int) (out []SimilarEntry, err error) {
	ctx, done := s.begin(ctx, "Similar", attribute.String("slug", slug))
	defer func() { done(err) }()

	var anchor *store.ModelRecord
	if err := s.guard(ctx, "similar.anchor", func(ctx context.Context) error {
		var err error
		anchor, err = s.fetch.GetModel(ctx, slug)
		return err
	}); err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, &NotFoundError{Resource: "model", Slugs: []string{slug}}
	}

	var candidates []store.ModelRecord
	if err := s.guard(ctx, "similar.pool", func(ctx context.Context) error {
		var err error
		candidates, err = s.fetch.ListModels(ctx, store.ModelQuery{
			SharesProvider:   anchor.Provider,
			SharesModalities: anchor.Modalities,
			ExcludeSlug:      anchor.Slug,
		})
		return err
	}); err != nil {
		return nil, err
	}
	return ScoreSimilar(*anchor, candidates, limit), nil
}

// Leaderboard ranks the catalog by one benchmark.
func (s *Service) Leaderboard(ctx context.Context, benchmark string, limit int) (out []LeaderboardEntry, err error) {
	ctx, done := s.begin(ctx, "Leaderboard", attribute.String("benchmark", benchmark))
	defer func() { done(err) }()

	var models []store.ModelRecord
	if err := s.guard(ctx, "leaderboard", func(ctx context.Context) error {
		var err error
		models, err = s.fetch.ListModels(ctx, store.ModelQuery{})
		return err
	}); err != nil {
		return nil, err
	}
	return Leaderboard(models, benchmark, limit), nil
}

// TrendingQuery selects the trending window.
type TrendingQuery struct {
	Range   string
	Window  time.Duration
	Limit   int
	NoCache bool
}

// TrendingResult is the trending list and whether it came from cache.
type TrendingResult struct {
	Models   []TrendingModel
	CacheHit bool
}

// Trending lists models whose market metrics changed inside the window,
// fastest growing first.
func (s *Service) Trending(ctx context.Context, q TrendingQuery) (res TrendingResult, err error) {
	ctx, done := s.begin(ctx, "Trending", attribute.String("range", q.Range))
	defer func() { done(err) }()

	key := fmt.Sprintf("%s%s:%d", trendingPrefix, q.Range, q.Limit)
	if s.trending != nil && !q.NoCache {
		if cached, ok := s.trending.Get(key); ok {
			s.cacheLookup("trending", "hit")
			return TrendingResult{Models: cached, CacheHit: true}, nil
		}
		s.cacheLookup("trending", "miss")
	}

	var models []store.ModelRecord
	if err := s.guard(ctx, "trending", func(ctx context.Context) error {
		var err error
		models, err = s.fetch.ListTrending(ctx, s.now().Add(-q.Window), q.Limit)
		return err
	}); err != nil {
		return TrendingResult{}, err
	}

	trending := AssembleTrending(models)
	if s.trending != nil && !q.NoCache {
		s.trending.Set(key, trending)
	}
	return TrendingResult{Models: trending}, nil
}

// Updated lists models changed inside the window, newest first.
func (s *Service) Updated(ctx context.Context, window time.Duration, limit int) (out []UpdatedModel, err error) {
	ctx, done := s.begin(ctx, "Updated")
	defer func() { done(err) }()

	var models []store.ModelRecord
	if err := s.guard(ctx, "updated", func(ctx context.Context) error {
		var err error
		models, err = s.fetch.ListUpdatedSince(ctx, s.now().Add(-window), limit)
		return err
	}); err != nil {
		return nil, err
	}
	return AssembleUpdated(models), nil
}

// ModelPage is one page of a filtered listing with the unpaged total.
type ModelPage struct {
	Models []store.ModelRecord
	Total  int
}

// List fetches a page and the total count concurrently.
func (s *Service) List(ctx context.Context, q store.ModelQuery) (page ModelPage, err error) {
	ctx, done := s.begin(ctx, "List")
	defer func() { done(err) }()

	err = s.guard(ctx, "list", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			page.Models, err = s.fetch.ListModels(gctx, q)
			return err
		})
		g.Go(func() error {
			var err error
			page.Total, err = s.fetch.CountModels(gctx, q)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return ModelPage{}, err
	}
	if page.Models == nil {
		page.Models = []store.ModelRecord{}
	}
	return page, nil
}

// Get returns one model or a *NotFoundError.
func (s *Service) Get(ctx context.Context, slug string) (m *store.ModelRecord, err error) {
	ctx, done := s.begin(ctx, "Get", attribute.String("slug", slug))
	defer func() { done(err) }()

	if err := s.guard(ctx, "get", func(ctx context.Context) error {
		var err error
		m, err = s.fetch.GetModel(ctx, slug)
		return err
	}); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &NotFoundError{Resource: "model", Slugs: []string{slug}}
	}
	return m, nil
}

// PurgeCaches drops every cached ranking and trending result and returns how
// many entries were removed.
func (s *Service) PurgeCaches() int {
	n := 0
	if s.rankings != nil {
		n += s.rankings.DeletePrefix(rankingsPrefix)
	}
	if s.trending != nil {
		n += s.trending.DeletePrefix(trendingPrefix)
	}
	return n
}

// BreakerState reports the store breaker state.
func (s *Service) BreakerState() circuitbreaker.State {
	return s.breaker.CurrentState()
}

// guard runs fn through the breaker. Any failure, including a rejected call,
// comes back as an *UpstreamError and is logged.
func (s *Service) guard(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.breaker.Do(func() error { return fn(ctx) })
	if err == nil {
		return nil
	}
	s.logger.ErrorContext(ctx, "catalog fetch failed",
		slog.String("op", op),
		slog.String("breaker", s.breaker.CurrentState().String()),
		slog.String("error", err.Error()),
	)
	return &UpstreamError{Op: op, Err: err}
}

// begin opens a span and starts the scoring timer for op.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracing.Start(ctx, "catalog."+op, attrs...)
	start := time.Now()
	return ctx, func(err error) {
		tracing.End(span, err)
		if s.metrics != nil {
			s.metrics.ScoringDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *Service) cacheLookup(name, result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(name, result).Inc()
	}
}
