// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBatchSize is the number of inserted rows per commit.
const DefaultBatchSize = 100

// Config controls the Postgres connection pool and write batching.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	BatchSize       int
}

// pool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// RecordStore implements store.Repository on Postgres.
type RecordStore struct {
	pool      pool
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// NewRecordStore connects to Postgres using cfg.
func NewRecordStore(ctx context.Context, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewRecordStoreWithPool(p, cfg.BatchSize, logger)
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(p pool, batchSize int, logger *zap.Logger) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		pool:      p,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}, nil
}

// WithClock overrides the timestamp source.
func (s *RecordStore) WithClock(now func() time.Time) *RecordStore {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureSchema creates the tables when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RecordStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertRecordSQL = `
INSERT INTO academic_content (
	type,
	title,
	field,
	date,
	location,
	key_people,
	summary,
	verified_facts,
	source_url,
	source_domain,
	crawled_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (title, field) DO NOTHING`

const upsertCrawlStatusSQL = `
INSERT INTO crawl_status (source_domain, last_crawled, total_items, status, error_message)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_domain) DO UPDATE
SET last_crawled = EXCLUDED.last_crawled,
	total_items = EXCLUDED.total_items,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message`

// SaveRecords inserts records in transactions of batchSize rows, skipping
// existing (title, field) pairs, then marks domain completed. On failure the
// open batch is rolled back and the counts committed so far are returned.
func (s *RecordStore) SaveRecords(ctx context.Context, records []crawler.Record, domain string) (store.SaveResult, error) {
	if domain == "" {
		domain = store.DefaultSourceDomain
	}
	result := store.SaveResult{Received: len(records)}
	committed := store.SaveResult{Received: len(records)}
	now := s.now()

	fail := func(err error) (store.SaveResult, error) {
		s.logger.Error("save records failed",
			zap.String("domain", domain),
			zap.Int("committed", committed.Inserted),
			zap.Error(err),
		)
		return committed, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	pending := 0
	for _, r := range records {
		args, err := recordArgs(r, now)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fail(err)
		}
		tag, err := tx.Exec(ctx, insertRecordSQL, args...)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fail(fmt.Errorf("insert record %q: %w", r.Title, err))
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
			continue
		}
		result.Inserted++
		pending++
		if pending < s.batchSize {
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			return fail(fmt.Errorf("commit batch: %w", err))
		}
		committed = result
		pending = 0
		s.logger.Info("records saved so far", zap.Int("inserted", result.Inserted))
		if tx, err = s.pool.Begin(ctx); err != nil {
			return fail(fmt.Errorf("begin transaction: %w", err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit batch: %w", err))
	}
	committed = result

	if _, err := s.pool.Exec(ctx, upsertCrawlStatusSQL, domain, now, result.Inserted, string(store.CrawlCompleted), nil); err != nil {
		return committed, fmt.Errorf("update crawl status: %w", err)
	}
	return result, nil
}

// MarkCrawlError records a failed run for domain.
func (s *RecordStore) MarkCrawlError(ctx context.Context, domain, message string) error {
	if domain == "" {
		domain = store.DefaultSourceDomain
	}
	msg := message
	if _, err := s.pool.Exec(ctx, upsertCrawlStatusSQL, domain, s.now(), 0, string(store.CrawlError), &msg); err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	return nil
}

func recordArgs(r crawler.Record, crawledAt time.Time) ([]any, error) {
	people, err := json.Marshal(nonNil(r.People))
	if err != nil {
		return nil, fmt.Errorf("marshal key people: %w", err)
	}
	facts, err := json.Marshal(nonNil(r.Facts))
	if err != nil {
		return nil, fmt.Errorf("marshal facts: %w", err)
	}
	return []any{
		r.Type,
		r.Title,
		r.Field,
		r.Date,
		r.Location,
		people,
		r.Summary,
		facts,
		r.SourceURL,
		r.Domain,
		crawledAt,
	}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

const selectRecordColumns = `
SELECT id, type, title, field, date, location, key_people, summary, verified_facts, source_url, source_domain, crawled_at
FROM academic_content`

const filterClause = `
WHERE ($1 = '' OR field = $1)
  AND ($2 = '' OR type = $2)
  AND ($3 = '' OR strpos(title, $3) > 0 OR strpos(summary, $3) > 0 OR strpos(field, $3) > 0)`

// ListRecords returns matching records ordered by id.
func (s *RecordStore) ListRecords(ctx context.Context, filter store.ListFilter) ([]store.StoredRecord, error) {
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	query := selectRecordColumns + filterClause + `
ORDER BY id
LIMIT $4 OFFSET $5`
	rows, err := s.pool.Query(ctx, query, filter.Field, filter.Type, filter.Search, limit, max(filter.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]store.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// CountRecords counts matching records.
func (s *RecordStore) CountRecords(ctx context.Context, filter store.ListFilter) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM academic_content`+filterClause,
		filter.Field, filter.Type, filter.Search).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// GetRecord loads a single record or returns store.ErrNotFound.
func (s *RecordStore) GetRecord(ctx context.Context, id int64) (store.StoredRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectRecordColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.StoredRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.StoredRecord{}, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (store.StoredRecord, error) {
	var (
		rec          store.StoredRecord
		people, fact []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Title,
		&rec.Field,
		&rec.Date,
		&rec.Location,
		&people,
		&rec.Summary,
		&fact,
		&rec.SourceURL,
		&rec.Domain,
		&rec.CrawledAt,
	)
	if err != nil {
		return store.StoredRecord{}, fmt.Errorf("scan record: %w", err)
	}
	if err := decodeList(people, &rec.People); err != nil {
		return store.StoredRecord{}, fmt.Errorf("decode key people: %w", err)
	}
	if err := decodeList(fact, &rec.Facts); err != nil {
		return store.StoredRecord{}, fmt.Errorf("decode facts: %w", err)
	}
	return rec, nil
}

func decodeList(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal json list: %w", err)
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}

// Statistics aggregates totals, distributions, and crawl statuses.
func (s *RecordStore) Statistics(ctx context.Context) (store.Statistics, error) {
	stats := store.Statistics{CrawlStatuses: make([]store.CrawlStatus, 0)}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM academic_content`).Scan(&stats.TotalItems); err != nil {
		return store.Statistics{}, fmt.Errorf("count records: %w", err)
	}
	var err error
	if stats.FieldDistribution, err = s.distribution(ctx, "field"); err != nil {
		return store.Statistics{}, err
	}
	if stats.TypeDistribution, err = s.distribution(ctx, "type"); err != nil {
		return store.Statistics{}, err
	}

	rows, err := s.pool.Query(ctx, `
SELECT source_domain, last_crawled, total_items, status, COALESCE(error_message, '')
FROM crawl_status
ORDER BY source_domain`)
	if err != nil {
		return store.Statistics{}, fmt.Errorf("list crawl statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st     store.CrawlStatus
			status string
		)
		if err := rows.Scan(&st.SourceDomain, &st.LastCrawled, &st.TotalItems, &status, &st.ErrorMessage); err != nil {
			return store.Statistics{}, fmt.Errorf("scan crawl status: %w", err)
		}
		st.Status = store.CrawlState(status)
		stats.CrawlStatuses = append(stats.CrawlStatuses, st)
	}
	if err := rows.Err(); err != nil {
		return store.Statistics{}, fmt.Errorf("iterate crawl statuses: %w", err)
	}
	return stats, nil
}

// distribution counts records grouped by column, which must be "field" or "type".
func (s *RecordStore) distribution(ctx context.Context, column string) (map[string]int, error) {
	if column != "field" && column != "type" {
		return nil, fmt.Errorf("unsupported distribution column %q", column)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s, count(*) FROM academic_content GROUP BY %s`, column, column))
	if err != nil {
		return nil, fmt.Errorf("%s distribution: %w", column, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan %s distribution: %w", column, err)
		}
		out[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s distribution: %w", column, err)
	}
	return out, nil
}
