package store

import (
	"context"
	"time"
)

// Store defines the persistence interface for modelhub.
type Store interface {
	// Models
	ListModels(ctx context.Context, q ModelQuery) ([]ModelRecord, error)
	CountModels(ctx context.Context, q ModelQuery) (int, error)
	GetModel(ctx context.Context, slug string) (*ModelRecord, error)
	GetModelsBySlugs(ctx context.Context, slugs []string) ([]ModelRecord, error)
	CreateModel(ctx context.Context, m ModelRecord) error
	UpsertModel(ctx context.Context, m ModelRecord) error
	DeleteModel(ctx context.Context, slug string) error
	ListProviders(ctx context.Context) ([]string, error)
	ListModalities(ctx context.Context) ([]string, error)
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]ModelRecord, error)

	// Market metrics
	UpsertMarketMetrics(ctx context.Context, slug string, m MarketMetrics) error
	ListTrending(ctx context.Context, since time.Time, limit int) ([]ModelRecord, error)

	// Search analytics
	RecordSearch(ctx context.Context, query string, results int) error

	// API keys
	CreateAPIKey(ctx context.Context, key APIKeyRecord) error
	GetAPIKey(ctx context.Context, id string) (*APIKeyRecord, error)
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]APIKeyRecord, error)
	ListAPIKeys(ctx context.Context) ([]APIKeyRecord, error)
	UpdateAPIKey(ctx context.Context, key APIKeyRecord) error
	IncrementAPIKeyUsage(ctx context.Context, id string, at time.Time) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Audit logging
	LogAudit(ctx context.Context, entry AuditEntry) error
	ListAuditLogs(ctx context.Context, limit int, offset int) ([]AuditEntry, error)

	// Schema lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// ModelQuery narrows and orders a model listing. Zero values mean "no
// filter"; ListModels always falls back to name ascending so that callers get
// a deterministic fetch order.
type ModelQuery struct {
	Provider string
	Modality string
	Tag      string
	Search   string

	// SharesProvider and SharesModalities together select models that have
	// the given provider OR at least one of the given modalities. ExcludeSlug
	// drops one model (typically the anchor of a similarity query).
	SharesProvider   string
	SharesModalities []string
	ExcludeSlug      string

	MinContextWindow *int
	MaxContextWindow *int
	MinPrice         *float64
	MaxPrice         *float64
	ReleasedFrom     *time.Time
	ReleasedTo       *time.Time

	SortBy    string // name, provider, releaseDate, contextWindow, createdAt, updatedAt
	SortOrder string // asc, desc
	Limit     int    // 0 = unbounded
	Offset    int
}

// ModelRecord is the persisted form of a catalog entry.
type ModelRecord struct {
	ID              string            `json:"id"`
	Slug            string            `json:"slug"`
	Name            string            `json:"name"`
	Provider        string            `json:"provider"`
	ReleaseDate     *time.Time        `json:"releaseDate,omitempty"`
	ContextWindow   *int              `json:"contextWindow,omitempty"`
	Modalities      []string          `json:"modalities"`
	BenchmarkScores BenchmarkScores   `json:"benchmarkScores,omitempty"`
	Pricing         *Pricing          `json:"pricing,omitempty"`
	Capabilities    []string          `json:"capabilities"`
	Tags            []string          `json:"tags"`
	Links           map[string]string `json:"links,omitempty"`
	Changelog       []ChangelogEntry  `json:"changelog,omitempty"`
	Metrics         *MarketMetrics    `json:"marketMetrics,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	LastUpdated     time.Time         `json:"lastUpdated"`
}

// ChangelogEntry is one dated note in a model's changelog.
type ChangelogEntry struct {
	Date        time.Time `json:"date" yaml:"date"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// MarketMetrics is usage data supplied by the analytics pipeline.
type MarketMetrics struct {
	Popularity    float64   `json:"popularity"`
	GrowthRate    float64   `json:"growthRate"`
	TotalViews    int64     `json:"totalViews"`
	TotalAPICalls int64     `json:"totalApiCalls"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// APIKeyRecord is the persisted form of an issued API key. Only the bcrypt
// hash of the key is stored.
type APIKeyRecord struct {
	ID         string     `json:"id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	OwnerID    string     `json:"owner_id"`
	Plan       string     `json:"plan"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Enabled    bool       `json:"enabled"`
	UsageCount int64      `json:"usage_count"`
}

// AuditEntry captures an admin mutation for audit trail.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`               // e.g. "model.create", "apikey.revoke"
	Resource  string    `json:"resource"`             // e.g. "gpt-4o"
	Detail    string    `json:"detail,omitempty"`     // optional JSON with change details
	RequestID string    `json:"request_id,omitempty"` // correlates to HTTP request ID
}
