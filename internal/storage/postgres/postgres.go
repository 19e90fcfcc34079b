// Package postgres provides a server-backed storage.PageStore for
// crawls whose results should land in a shared database instead of a
// local file. Selected with --dsn.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/FranksOps/spider/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure Store implements storage.PageStore
var _ storage.PageStore = (*Store)(nil)

// Store wraps a pgx connection pool. Postgres handles concurrent
// statements itself, so writers do not take the mutex; it only
// serializes Close calls.
type Store struct {
	pool  *pgxpool.Pool
	mu    sync.Mutex
	table string
}

// New connects to the server at dsn and ensures the crawl table for
// the given seed netloc exists.
func New(ctx context.Context, dsn, netloc string) (*Store, error) {
	table, err := storage.TableName(netloc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	id bigserial primary key,
	url text,
	keyword text,
	html bytea
)`, table)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &Store{pool: pool, table: table}, nil
}

func (s *Store) Writer(url, keyword string) storage.PageWriter {
	return &writer{store: s, url: url, keyword: keyword}
}

// Pages returns every persisted row in insertion order.
func (s *Store) Pages(ctx context.Context) ([]storage.Page, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, url, keyword, html FROM %q ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	var pages []storage.Page
	for rows.Next() {
		var p storage.Page
		if err := rows.Scan(&p.ID, &p.URL, &p.Keyword, &p.HTML); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return pages, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.Close()
	return nil
}

type writer struct {
	store   *Store
	url     string
	keyword string
}

func (w *writer) Write(ctx context.Context, body []byte) error {
	_, err := w.store.pool.Exec(ctx,
		fmt.Sprintf("INSERT INTO %q (url, keyword, html) VALUES ($1, $2, $3)", w.store.table),
		w.url, w.keyword, body)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (w *writer) Close() error { return nil }
