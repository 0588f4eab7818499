package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jordanhubbard/modelhub"
	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/cache"
	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/circuitbreaker"
	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/httpapi"
	"github.com/jordanhubbard/modelhub/internal/idempotency"
	"github.com/jordanhubbard/modelhub/internal/logging"
	"github.com/jordanhubbard/modelhub/internal/metrics"
	"github.com/jordanhubbard/modelhub/internal/ratelimit"
	"github.com/jordanhubbard/modelhub/internal/seed"
	"github.com/jordanhubbard/modelhub/internal/store"
	"github.com/jordanhubbard/modelhub/internal/tracing"
)

// expirySweepInterval is how often expired API keys are disabled.
const expirySweepInterval = time.Hour

type Server struct {
	mu  sync.Mutex
	cfg Config

	r *chi.Mux

	store    *store.SQLStore
	catalog  *catalog.Service
	keys     *apikey.Manager
	bus      *events.Bus
	tokens   *httpapi.AdminTokenHolder
	limiter  *ratelimit.Limiter
	rankings *cache.TTL[[]catalog.RankedModel]
	trending *cache.TTL[[]catalog.TrendingModel]
	replays  *idempotency.Store
	metrics  *metrics.Registry
	logger   *slog.Logger

	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// ServerOption customises NewServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logOut  io.Writer
	version string
}

// WithLogOutput sends JSON logs to w instead of stdout.
func WithLogOutput(w io.Writer) ServerOption {
	return func(o *serverOptions) { o.logOut = w }
}

// WithVersion sets the version reported by /api/health.
func WithVersion(v string) ServerOption {
	return func(o *serverOptions) { o.version = v }
}

func NewServer(cfg Config, opts ...ServerOption) (*Server, error) {
	o := serverOptions{logOut: os.Stdout, version: "dev"}
	for _, fn := range opts {
		fn(&o)
	}
	logger := logging.SetupWriter(o.logOut, cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: o.version,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open store.
	db, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database initialized", slog.Bool("postgres", store.IsPostgresDSN(cfg.DBDSN)))

	tokens, err := httpapi.NewAdminTokenHolder(cfg.AdminToken, cfg.DBDSN, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := metrics.New()
	bus := events.NewBus()

	breaker := circuitbreaker.New(
		circuitbreaker.WithThreshold(cfg.StoreFailureThreshold),
		circuitbreaker.WithCooldown(cfg.StoreCooldown),
		circuitbreaker.WithOnStateChange(func(from, to circuitbreaker.State) {
			reg.StoreBreakerState.Set(float64(to))
			logger.Warn("store circuit breaker state changed",
				slog.String("from", from.String()), slog.String("to", to.String()))
			bus.Publish(events.Event{
				Type:      events.EventBreakerStateSet,
				Timestamp: time.Now().UTC(),
				OldState:  from.String(),
				NewState:  to.String(),
			})
		}),
	)
	rankings := cache.New[[]catalog.RankedModel](cfg.CacheTTL, cfg.CacheMaxEntries)
	trending := cache.New[[]catalog.TrendingModel](cfg.CacheTTL, cfg.CacheMaxEntries)
	replays := idempotency.NewStore(cfg.IdempotencyTTL, cfg.CacheMaxEntries)
	svc := catalog.NewService(db,
		catalog.WithBreaker(breaker),
		catalog.WithRankingCache(rankings),
		catalog.WithTrendingCache(trending),
		catalog.WithMetrics(reg),
		catalog.WithLogger(logger),
	)

	keys := apikey.NewManager(db)
	if _, err := tokens.ProvisionHostAPIKey(ctx, keys, logger); err != nil {
		logger.Warn("host API key not provisioned", slog.String("error", err.Error()))
	}

	limiter := ratelimit.New(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, ratelimit.WithCounter(reg.RateLimited))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-KEY", "X-Request-ID", "Cache-Control", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Cache", "X-Range", "X-Ranking-Sort", "X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Idempotency-Replay"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(limiter.Middleware)
	r.Use(httpapi.Instrument(reg))

	s := &Server{
		cfg:             cfg,
		r:               r,
		store:           db,
		catalog:         svc,
		keys:            keys,
		bus:             bus,
		tokens:          tokens,
		limiter:         limiter,
		rankings:        rankings,
		trending:        trending,
		replays:         replays,
		metrics:         reg,
		logger:          logger,
		shutdownTracing: shutdownTracing,
	}

	httpapi.MountRoutes(r, httpapi.Dependencies{
		Catalog:       svc,
		Store:         db,
		APIKeys:       keys,
		AdminToken:    tokens,
		Metrics:       reg,
		EventBus:      bus,
		Logger:        logger,
		Idempotency:   replays,
		RequireAPIKey: cfg.RequireAPIKey,
		Version:       o.version,
		Docs:          modelhub.APIDocs,
	})

	if err := s.seedIfEmpty(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.startBackground()
	return s, nil
}

func (s *Server) Router() http.Handler { return s.r }

// AdminToken returns the admin token currently in force.
func (s *Server) AdminToken() string { return s.tokens.Get() }

// seedIfEmpty applies the configured seed catalog when no models exist.
func (s *Server) seedIfEmpty(ctx context.Context) error {
	if s.cfg.SeedFile == "" {
		return nil
	}
	n, err := s.store.CountModels(ctx, store.ModelQuery{})
	if err != nil {
		return fmt.Errorf("count models: %w", err)
	}
	if n > 0 {
		s.logger.Debug("catalog not empty, skipping seed", slog.Int("models", n))
		return nil
	}

	var models []store.ModelRecord
	if s.cfg.SeedFile == BuiltinSeed {
		models, err = seed.Load(bytes.NewReader(modelhub.SeedCatalog))
	} else {
		models, err = seed.LoadFile(s.cfg.SeedFile)
	}
	if err != nil {
		return fmt.Errorf("load seed %s: %w", s.cfg.SeedFile, err)
	}
	written, err := seed.Apply(ctx, s.store, models, time.Now().UTC())
	if err != nil {
		return err
	}
	s.logger.Info("catalog seeded", slog.String("source", s.cfg.SeedFile), slog.Int("models", written))
	s.bus.Publish(events.Event{Type: events.EventCatalogSeeded, Timestamp: time.Now().UTC(), Count: written})
	return nil
}

// startBackground runs the cache invalidator and the key expiry sweep.
func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.bus.Listen(ctx, func(e events.Event) {
			if !e.Type.ChangesCatalog() {
				return
			}
			if n := s.catalog.PurgeCaches(); n > 0 {
				s.logger.Debug("scoring caches invalidated", slog.String("event", string(e.Type)), slog.Int("entries", n))
			}
		})
	}()
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(expirySweepInterval)
		defer t.Stop()
		for {
			if _, err := s.keys.DisableExpired(ctx, s.bus, s.logger); err != nil && ctx.Err() == nil {
				s.logger.Warn("api key expiry sweep failed", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

// Reload applies the settings that can change without a restart: the log
// level and the admin token.
func (s *Server) Reload(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.LogLevel != s.cfg.LogLevel {
		logging.SetLevel(cfg.LogLevel)
		s.logger.Info("log level changed", slog.String("from", s.cfg.LogLevel), slog.String("to", cfg.LogLevel))
		s.cfg.LogLevel = cfg.LogLevel
	}
	if cfg.AdminToken != "" && !s.tokens.ConstantTimeEqual(cfg.AdminToken) {
		s.tokens.Replace(cfg.AdminToken, s.logger)
		s.logger.Info("admin token replaced")
		s.cfg.AdminToken = cfg.AdminToken
	}
}

func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.limiter.Stop()
	s.rankings.Stop()
	s.trending.Stop()
	s.replays.Stop()
	s.keys.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdownTracing(ctx); err != nil {
		s.logger.Warn("tracing shutdown", slog.String("error", err.Error()))
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
