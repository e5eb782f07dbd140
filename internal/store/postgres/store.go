// Package postgres provides a Postgres-backed page store for crawls whose
// output feeds downstream pipelines instead of the local filesystem.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitedown/sitedown/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for page rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store writes accepted pages into Postgres. First-writer-wins is enforced
// by the table's unique constraint on normalized_url.
type Store struct {
	pool  dbPool
	table string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool dbPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "pages"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Put inserts the page row. Conflicts on normalized_url are dropped, which
// keeps the first writer's row.
func (s *Store) Put(ctx context.Context, page crawler.Page) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("page store is not configured")
	}
	if page.NormalizedURL == "" {
		return fmt.Errorf("page has no normalized url")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url,
	normalized_url,
	title,
	content,
	fingerprint,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6
) ON CONFLICT (normalized_url) DO NOTHING`, s.table)

	args := []any{
		page.URL,
		page.NormalizedURL,
		page.Title,
		page.Content,
		page.Fingerprint,
		page.FetchedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// GetAll loads every stored page keyed by normalized URL.
func (s *Store) GetAll(ctx context.Context) (map[string]crawler.Page, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("page store is not configured")
	}
	query := fmt.Sprintf(`
SELECT url, normalized_url, title, content, fingerprint, fetched_at
FROM %s`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]crawler.Page)
	for rows.Next() {
		var page crawler.Page
		if err := rows.Scan(
			&page.URL,
			&page.NormalizedURL,
			&page.Title,
			&page.Content,
			&page.Fingerprint,
			&page.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		out[page.NormalizedURL] = page
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page rows: %w", err)
	}
	return out, nil
}
