package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// NewSQLite opens or creates a SQLite database at the given DSN using
// modernc.org/sqlite (pure-Go, no CGO).
func NewSQLite(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Enable WAL mode and set busy timeout.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		// SQLite only supports one writer at a time. Limit connections to avoid
		// contention and keep a small idle pool for read concurrency.
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)
	return &SQLStore{db: db, dialect: dialectSQLite, dsn: dsn}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			provider TEXT NOT NULL,
			release_date TEXT,
			context_window INTEGER,
			modalities TEXT NOT NULL DEFAULT '[]',
			benchmark_scores TEXT,
			pricing TEXT,
			capabilities TEXT NOT NULL DEFAULT '[]',
			tags TEXT NOT NULL DEFAULT '[]',
			links TEXT,
			changelog TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_updated TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_provider ON models(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_models_name ON models(name)`,
		`CREATE INDEX IF NOT EXISTS idx_models_last_updated ON models(last_updated)`,
		`CREATE TABLE IF NOT EXISTS market_metrics (
			model_id TEXT PRIMARY KEY,
			popularity REAL NOT NULL DEFAULT 0,
			growth_rate REAL NOT NULL DEFAULT 0,
			total_views INTEGER NOT NULL DEFAULT 0,
			total_api_calls INTEGER NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_metrics_updated ON market_metrics(last_updated)`,
		`CREATE TABLE IF NOT EXISTS search_analytics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			results INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			action TEXT NOT NULL,
			resource TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			key_hash TEXT NOT NULL,
			key_prefix TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			plan TEXT NOT NULL DEFAULT 'free',
			created_at TEXT NOT NULL,
			last_used_at TEXT,
			expires_at TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			usage_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(key_prefix)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
