package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jordanhubbard/modelhub/internal/logging"
)

// EnvPrefix is prepended to every configuration variable.
const EnvPrefix = "MODELHUB_"

// BuiltinSeed selects the catalog embedded in the binary as the seed source.
const BuiltinSeed = "builtin"

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// DBDSN selects the store: a postgres:// DSN opens PostgreSQL, anything
	// else is treated as a SQLite path.
	DBDSN string `env:"DB_DSN" envDefault:"file:/data/modelhub.sqlite"`

	// Security & hardening.
	AdminToken     string   `env:"ADMIN_TOKEN"`                  // empty = read persisted or generate
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","` // empty = ["*"]
	RateLimitRPS   int      `env:"RATE_LIMIT_RPS" envDefault:"60"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"120"`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" envDefault:"true"`

	// Scoring caches.
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"2m"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`

	// IdempotencyTTL is how long admin writes carrying an Idempotency-Key
	// are replayed.
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// SeedFile is a YAML catalog applied when the models table is empty.
	// "builtin" uses the embedded catalog.
	SeedFile string `env:"SEED_FILE"`

	// Store circuit breaker.
	StoreFailureThreshold int           `env:"STORE_FAILURE_THRESHOLD" envDefault:"3"`
	StoreCooldown         time.Duration `env:"STORE_COOLDOWN" envDefault:"30s"`

	// OpenTelemetry tracing.
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"modelhub"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig reads MODELHUB_* variables from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if err := logging.ValidLevel(c.LogLevel); err != nil {
		return fmt.Errorf("MODELHUB_LOG_LEVEL: %w", err)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("MODELHUB_DB_DSN must not be empty")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("MODELHUB_RATE_LIMIT_RPS must be > 0, got %d", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("MODELHUB_RATE_LIMIT_BURST must be > 0, got %d", c.RateLimitBurst)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("MODELHUB_CACHE_TTL must be > 0, got %s", c.CacheTTL)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("MODELHUB_IDEMPOTENCY_TTL must be > 0, got %s", c.IdempotencyTTL)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("MODELHUB_CACHE_MAX_ENTRIES must be > 0, got %d", c.CacheMaxEntries)
	}
	if c.StoreFailureThreshold <= 0 {
		return fmt.Errorf("MODELHUB_STORE_FAILURE_THRESHOLD must be > 0, got %d", c.StoreFailureThreshold)
	}
	if c.StoreCooldown <= 0 {
		return fmt.Errorf("MODELHUB_STORE_COOLDOWN must be > 0, got %s", c.StoreCooldown)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("MODELHUB_OTEL_SAMPLE_RATIO must be within [0,1], got %g", c.OTelSampleRatio)
	}
	if c.OTelEnabled && c.OTelEndpoint == "" {
		return fmt.Errorf("MODELHUB_OTEL_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

func (c Config) corsOrigins() []string {
	if len(c.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return c.CORSOrigins
}
