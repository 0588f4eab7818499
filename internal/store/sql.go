package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by mutations that target a missing record.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique key already exists.
	ErrConflict = errors.New("store: already exists")
)

// timeLayout is fixed-width so that stored timestamps compare correctly as
// strings in both SQLite and PostgreSQL.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store over database/sql. The same queries serve SQLite
// and PostgreSQL; placeholders are written as "?" and rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	dsn     string
}

// DB returns the underlying sql.DB handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.dialect == dialectPostgres {
		return migratePostgres(s.dsn)
	}
	return migrateSQLite(ctx, s.db)
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(q), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(q), args...)
}

// priceExpr extracts a numeric pricing field from the JSON column.
func (s *SQLStore) priceExpr(field string) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("(m.pricing::jsonb->>'%s')::double precision", field)
	}
	return fmt.Sprintf("json_extract(m.pricing, '$.%s')", field)
}

// Models

const modelColumns = `m.id, m.slug, m.name, m.provider, m.release_date, m.context_window,
	m.modalities, m.benchmark_scores, m.pricing, m.capabilities, m.tags, m.links, m.changelog,
	m.created_at, m.updated_at, m.last_updated,
	mm.popularity, mm.growth_rate, mm.total_views, mm.total_api_calls, mm.last_updated`

const modelFrom = ` FROM models m LEFT JOIN market_metrics mm ON mm.model_id = m.id`

var sortColumns = map[string]string{
	"name":          "m.name",
	"provider":      "m.provider",
	"releaseDate":   "m.release_date",
	"contextWindow": "m.context_window",
	"createdAt":     "m.created_at",
	"updatedAt":     "m.updated_at",
}

func (s *SQLStore) where(q ModelQuery) (string, []any) {
	var clauses []string
	var args []any

	if q.Provider != "" {
		clauses = append(clauses, "m.provider = ?")
		args = append(args, q.Provider)
	}
	if q.Modality != "" {
		clauses = append(clauses, `m.modalities LIKE ? ESCAPE '\'`)
		args = append(args, jsonElementPattern(q.Modality))
	}
	if q.Tag != "" {
		clauses = append(clauses, `m.tags LIKE ? ESCAPE '\'`)
		args = append(args, jsonElementPattern(q.Tag))
	}
	if q.Search != "" {
		pat := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		clauses = append(clauses, `(LOWER(m.name) LIKE ? ESCAPE '\' OR LOWER(m.provider) LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat)
	}
	if q.SharesProvider != "" || len(q.SharesModalities) > 0 {
		var or []string
		if q.SharesProvider != "" {
			or = append(or, "m.provider = ?")
			args = append(args, q.SharesProvider)
		}
		for _, mod := range q.SharesModalities {
			or = append(or, `m.modalities LIKE ? ESCAPE '\'`)
			args = append(args, jsonElementPattern(mod))
		}
		clauses = append(clauses, "("+strings.Join(or, " OR ")+")")
	}
	if q.ExcludeSlug != "" {
		clauses = append(clauses, "m.slug <> ?")
		args = append(args, q.ExcludeSlug)
	}
	if q.MinContextWindow != nil {
		clauses = append(clauses, "m.context_window >= ?")
		args = append(args, *q.MinContextWindow)
	}
	if q.MaxContextWindow != nil {
		clauses = append(clauses, "m.context_window <= ?")
		args = append(args, *q.MaxContextWindow)
	}
	if q.MinPrice != nil {
		clauses = append(clauses, fmt.Sprintf("(%s >= ? OR %s >= ?)", s.priceExpr("inputPrice"), s.priceExpr("outputPrice")))
		args = append(args, *q.MinPrice, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, fmt.Sprintf("(%s <= ? OR %s <= ?)", s.priceExpr("inputPrice"), s.priceExpr("outputPrice")))
		args = append(args, *q.MaxPrice, *q.MaxPrice)
	}
	if q.ReleasedFrom != nil {
		clauses = append(clauses, "m.release_date >= ?")
		args = append(args, formatTime(*q.ReleasedFrom))
	}
	if q.ReleasedTo != nil {
		clauses = append(clauses, "m.release_date <= ?")
		args = append(args, formatTime(*q.ReleasedTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(q ModelQuery) string {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "m.name"
	}
	dir := "ASC"
	if strings.EqualFold(q.SortOrder, "desc") {
		dir = "DESC"
	}
	order := fmt.Sprintf(" ORDER BY %s %s NULLS LAST", col, dir)
	if col != "m.name" {
		order += ", m.name ASC"
	}
	return order + ", m.slug ASC"
}

func (s *SQLStore) ListModels(ctx context.Context, q ModelQuery) ([]ModelRecord, error) {
	where, args := s.where(q)
	stmt := "SELECT " + modelColumns + modelFrom + where + orderBy(q)
	if q.Limit > 0 {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}
	rows, err := s.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return scanModels(rows)
}

func (s *SQLStore) CountModels(ctx context.Context, q ModelQuery) (int, error) {
	where, args := s.where(q)
	var n int
	if err := s.queryRow(ctx, "SELECT COUNT(*)"+modelFrom+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count models: %w", err)
	}
	return n, nil
}

func (s *SQLStore) GetModel(ctx context.Context, slug string) (*ModelRecord, error) {
	rows, err := s.query(ctx, "SELECT "+modelColumns+modelFrom+" WHERE m.slug = ?", slug)
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	models, err := scanModels(rows)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return &models[0], nil
}

func (s *SQLStore) GetModelsBySlugs(ctx context.Context, slugs []string) ([]ModelRecord, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(slugs)), ",")
	args := make([]any, len(slugs))
	for i, sl := range slugs {
		args[i] = sl
	}
	rows, err := s.query(ctx, "SELECT "+modelColumns+modelFrom+" WHERE m.slug IN ("+marks+") ORDER BY m.name ASC, m.slug ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("get models by slug: %w", err)
	}
	return scanModels(rows)
}

func (s *SQLStore) CreateModel(ctx context.Context, m ModelRecord) error {
	var exists int
	err := s.queryRow(ctx, `SELECT 1 FROM models WHERE slug = ?`, m.Slug).Scan(&exists)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create model: %w", err)
	}
	return s.writeModel(ctx, m, false)
}

func (s *SQLStore) UpsertModel(ctx context.Context, m ModelRecord) error {
	return s.writeModel(ctx, m, true)
}

func (s *SQLStore) writeModel(ctx context.Context, m ModelRecord, upsert bool) error {
	cols, err := encodeModel(m)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT INTO models (id, slug, name, provider, release_date, context_window, modalities,
		benchmark_scores, pricing, capabilities, tags, links, changelog, created_at, updated_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		stmt += ` ON CONFLICT(slug) DO UPDATE SET
		   name=excluded.name,
		   provider=excluded.provider,
		   release_date=excluded.release_date,
		   context_window=excluded.context_window,
		   modalities=excluded.modalities,
		   benchmark_scores=excluded.benchmark_scores,
		   pricing=excluded.pricing,
		   capabilities=excluded.capabilities,
		   tags=excluded.tags,
		   links=excluded.links,
		   changelog=excluded.changelog,
		   updated_at=excluded.updated_at,
		   last_updated=excluded.last_updated`
	}
	if _, err := tx.ExecContext(ctx, s.rebind(stmt), cols...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("write model: %w", err)
	}
	if m.Metrics != nil {
		if err := s.writeMetrics(ctx, tx, m.Slug, *m.Metrics); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteModel(ctx context.Context, slug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM market_metrics WHERE model_id IN (SELECT id FROM models WHERE slug = ?)`), slug); err != nil {
		return fmt.Errorf("delete metrics: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM models WHERE slug = ?`), slug)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) ListProviders(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT provider FROM models ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	providers := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *SQLStore) ListModalities(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT modalities FROM models`)
	if err != nil {
		return nil, fmt.Errorf("list modalities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var mods []string
		if err := json.Unmarshal([]byte(raw), &mods); err != nil {
			continue
		}
		for _, m := range mods {
			seen[m] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *SQLStore) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]ModelRecord, error) {
	rows, err := s.query(ctx, "SELECT "+modelColumns+modelFrom+
		" WHERE m.last_updated >= ? ORDER BY m.last_updated DESC, m.name ASC LIMIT ?",
		formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list updated: %w", err)
	}
	return scanModels(rows)
}

// Market metrics

func (s *SQLStore) UpsertMarketMetrics(ctx context.Context, slug string, mm MarketMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.writeMetrics(ctx, tx, slug, mm); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) writeMetrics(ctx context.Context, tx *sql.Tx, slug string, mm MarketMetrics) error {
	if mm.LastUpdated.IsZero() {
		mm.LastUpdated = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO market_metrics (model_id, popularity, growth_rate, total_views, total_api_calls, last_updated)
		 SELECT id, ?, ?, ?, ?, ? FROM models WHERE slug = ?
		 ON CONFLICT(model_id) DO UPDATE SET
		   popularity=excluded.popularity,
		   growth_rate=excluded.growth_rate,
		   total_views=excluded.total_views,
		   total_api_calls=excluded.total_api_calls,
		   last_updated=excluded.last_updated`),
		mm.Popularity, mm.GrowthRate, mm.TotalViews, mm.TotalAPICalls, formatTime(mm.LastUpdated), slug)
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListTrending(ctx context.Context, since time.Time, limit int) ([]ModelRecord, error) {
	rows, err := s.query(ctx, "SELECT "+modelColumns+
		` FROM models m JOIN market_metrics mm ON mm.model_id = m.id
		 WHERE mm.last_updated >= ?
		 ORDER BY mm.growth_rate DESC, mm.popularity DESC, m.name ASC
		 LIMIT ?`, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list trending: %w", err)
	}
	return scanModels(rows)
}

// Search analytics

func (s *SQLStore) RecordSearch(ctx context.Context, query string, results int) error {
	_, err := s.exec(ctx,
		`INSERT INTO search_analytics (query, results, created_at) VALUES (?, ?, ?)`,
		query, results, formatTime(time.Now()))
	return err
}

// API keys

func (s *SQLStore) CreateAPIKey(ctx context.Context, key APIKeyRecord) error {
	_, err := s.exec(ctx,
		`INSERT INTO api_keys (id, key_hash, key_prefix, owner_id, plan, created_at, last_used_at, expires_at, enabled, usage_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.KeyHash, key.KeyPrefix, key.OwnerID, key.Plan, formatTime(key.CreatedAt),
		formatTimePtr(key.LastUsedAt), formatTimePtr(key.ExpiresAt), boolToInt(key.Enabled), key.UsageCount)
	return err
}

const apiKeyColumns = `id, key_hash, key_prefix, owner_id, plan, created_at, last_used_at, expires_at, enabled, usage_count`

func (s *SQLStore) GetAPIKey(ctx context.Context, id string) (*APIKeyRecord, error) {
	rows, err := s.query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	keys, err := scanAPIKeys(rows)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

func (s *SQLStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]APIKeyRecord, error) {
	rows, err := s.query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = ?`, prefix)
	if err != nil {
		return nil, err
	}
	return scanAPIKeys(rows)
}

func (s *SQLStore) ListAPIKeys(ctx context.Context) ([]APIKeyRecord, error) {
	rows, err := s.query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanAPIKeys(rows)
}

func (s *SQLStore) UpdateAPIKey(ctx context.Context, key APIKeyRecord) error {
	res, err := s.exec(ctx,
		`UPDATE api_keys SET key_hash = ?, key_prefix = ?, owner_id = ?, plan = ?, last_used_at = ?,
		 expires_at = ?, enabled = ? WHERE id = ?`,
		key.KeyHash, key.KeyPrefix, key.OwnerID, key.Plan, formatTimePtr(key.LastUsedAt),
		formatTimePtr(key.ExpiresAt), boolToInt(key.Enabled), key.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) IncrementAPIKeyUsage(ctx context.Context, id string, at time.Time) error {
	_, err := s.exec(ctx,
		`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		formatTime(at), id)
	return err
}

func (s *SQLStore) CountAPIKeys(ctx context.Context) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&n)
	return n, err
}

// Audit logs

func (s *SQLStore) LogAudit(ctx context.Context, entry AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO audit_logs (timestamp, action, resource, detail, request_id) VALUES (?, ?, ?, ?, ?)`,
		formatTime(entry.Timestamp), entry.Action, entry.Resource, entry.Detail, entry.RequestID)
	return err
}

func (s *SQLStore) ListAuditLogs(ctx context.Context, limit int, offset int) ([]AuditEntry, error) {
	rows, err := s.query(ctx,
		`SELECT id, timestamp, action, resource, detail, request_id FROM audit_logs
		 ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.Resource, &e.Detail, &e.RequestID); err != nil {
			return nil, err
		}
		e.Timestamp, _ = parseTime(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Encoding helpers

func encodeModel(m ModelRecord) ([]any, error) {
	modalities, err := marshalList(m.Modalities)
	if err != nil {
		return nil, err
	}
	capabilities, err := marshalList(m.Capabilities)
	if err != nil {
		return nil, err
	}
	tags, err := marshalList(m.Tags)
	if err != nil {
		return nil, err
	}
	scores, err := marshalNullable(m.BenchmarkScores, m.BenchmarkScores == nil)
	if err != nil {
		return nil, err
	}
	pricing, err := marshalNullable(m.Pricing, m.Pricing == nil)
	if err != nil {
		return nil, err
	}
	links, err := marshalNullable(m.Links, m.Links == nil)
	if err != nil {
		return nil, err
	}
	changelog, err := marshalNullable(m.Changelog, m.Changelog == nil)
	if err != nil {
		return nil, err
	}

	var release any
	if m.ReleaseDate != nil {
		release = formatTime(*m.ReleaseDate)
	}
	var ctxWindow any
	if m.ContextWindow != nil {
		ctxWindow = *m.ContextWindow
	}

	now := time.Now()
	created, updated, last := m.CreatedAt, m.UpdatedAt, m.LastUpdated
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	if last.IsZero() {
		last = now
	}

	return []any{
		m.ID, m.Slug, m.Name, m.Provider, release, ctxWindow, modalities,
		scores, pricing, capabilities, tags, links, changelog,
		formatTime(created), formatTime(updated), formatTime(last),
	}, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func marshalNullable(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal column: %w", err)
	}
	return string(b), nil
}

func scanModels(rows *sql.Rows) ([]ModelRecord, error) {
	defer func() { _ = rows.Close() }()

	var models []ModelRecord
	for rows.Next() {
		var (
			m                                 ModelRecord
			release                           sql.NullString
			ctxWindow                         sql.NullInt64
			modalities, capabilities, tags    string
			scores, pricing, links, changelog sql.NullString
			created, updated, last            string
			popularity, growth                sql.NullFloat64
			views, calls                      sql.NullInt64
			metricsUpdated                    sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Slug, &m.Name, &m.Provider, &release, &ctxWindow,
			&modalities, &scores, &pricing, &capabilities, &tags, &links, &changelog,
			&created, &updated, &last,
			&popularity, &growth, &views, &calls, &metricsUpdated); err != nil {
			return nil, err
		}

		if release.Valid {
			if t, err := parseTime(release.String); err == nil {
				m.ReleaseDate = &t
			}
		}
		if ctxWindow.Valid {
			n := int(ctxWindow.Int64)
			m.ContextWindow = &n
		}
		m.Modalities = unmarshalList(modalities)
		m.Capabilities = unmarshalList(capabilities)
		m.Tags = unmarshalList(tags)
		if scores.Valid {
			_ = json.Unmarshal([]byte(scores.String), &m.BenchmarkScores)
		}
		if pricing.Valid {
			var p Pricing
			if err := json.Unmarshal([]byte(pricing.String), &p); err == nil {
				m.Pricing = &p
			}
		}
		if links.Valid {
			_ = json.Unmarshal([]byte(links.String), &m.Links)
		}
		if changelog.Valid {
			_ = json.Unmarshal([]byte(changelog.String), &m.Changelog)
		}
		m.CreatedAt, _ = parseTime(created)
		m.UpdatedAt, _ = parseTime(updated)
		m.LastUpdated, _ = parseTime(last)

		if metricsUpdated.Valid {
			mm := MarketMetrics{
				Popularity:    popularity.Float64,
				GrowthRate:    growth.Float64,
				TotalViews:    views.Int64,
				TotalAPICalls: calls.Int64,
			}
			mm.LastUpdated, _ = parseTime(metricsUpdated.String)
			m.Metrics = &mm
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func scanAPIKeys(rows *sql.Rows) ([]APIKeyRecord, error) {
	defer func() { _ = rows.Close() }()

	var keys []APIKeyRecord
	for rows.Next() {
		var k APIKeyRecord
		var created string
		var lastUsed, expires sql.NullString
		var enabled int
		if err := rows.Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.OwnerID, &k.Plan,
			&created, &lastUsed, &expires, &enabled, &k.UsageCount); err != nil {
			return nil, err
		}
		k.CreatedAt, _ = parseTime(created)
		if lastUsed.Valid {
			if t, err := parseTime(lastUsed.String); err == nil {
				k.LastUsedAt = &t
			}
		}
		if expires.Valid {
			if t, err := parseTime(expires.String); err == nil {
				k.ExpiresAt = &t
			}
		}
		k.Enabled = enabled != 0
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func unmarshalList(raw string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(raw), &out)
	if out == nil {
		out = []string{}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonElementPattern builds a LIKE pattern that matches v as a whole element
// of a JSON string array column.
func jsonElementPattern(v string) string {
	quoted, _ := json.Marshal(v)
	return "%" + escapeLike(string(quoted)) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
