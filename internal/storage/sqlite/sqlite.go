// Package sqlite provides the default embedded storage.PageStore,
// backed by a single-file database via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/FranksOps/spider/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure Store implements storage.PageStore
var _ storage.PageStore = (*Store)(nil)

// Store holds one database connection shared across all workers. The
// embedded store tolerates a single concurrent statement, so every
// statement executes under the store mutex.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	table string
}

// New opens (or creates) the database file at path and ensures the
// crawl table for the given seed netloc exists.
func New(path, netloc string) (*Store, error) {
	table, err := storage.TableName(netloc)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS '%s' (
	id integer primary key autoincrement,
	url text,
	keyword text,
	html blob
)`, table)

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &Store{db: db, table: table}, nil
}

// Writer returns a scoped handle for one URL. Acquisition is
// side-effect-free; no row exists until Write succeeds.
func (s *Store) Writer(url, keyword string) storage.PageWriter {
	return &writer{store: s, url: url, keyword: keyword}
}

// Pages returns every persisted row in insertion order. Intended for
// inspection and tests rather than the crawl path.
func (s *Store) Pages(ctx context.Context) ([]storage.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, url, keyword, html FROM '%s' ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	var pages []storage.Page
	for rows.Next() {
		var p storage.Page
		if err := rows.Scan(&p.ID, &p.URL, &p.Keyword, &p.HTML); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return pages, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type writer struct {
	store   *Store
	url     string
	keyword string
}

// Write appends one (url, keyword, html) row. The body is stored as an
// opaque blob; the insert is serialized against concurrent writers by
// the store mutex.
func (w *writer) Write(ctx context.Context, body []byte) error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	_, err := w.store.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO '%s' (url, keyword, html) VALUES (?, ?, ?)", w.store.table),
		w.url, w.keyword, body)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (w *writer) Close() error { return nil }
