package resume

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createCompletedTable = `
CREATE TABLE IF NOT EXISTS completed_urls (
    url          TEXT PRIMARY KEY,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	insertCompletedURL = `INSERT INTO completed_urls (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`
	selectCompleted    = `SELECT url FROM completed_urls`
)

// querier is the slice of the pgx pool API the store needs; tests
// substitute a mock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps the completed set in a table, sharing progress
// across machines pulling from the same input list. Each Add is durable
// on its own, so Flush is a no-op.
type PostgresStore struct {
	db    querier
	close func()
}

// NewPostgresStore connects to the database at dsn and ensures the
// completed_urls table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{db: pool, close: pool.Close}
	if _, err := pool.Exec(ctx, createCompletedTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure completed_urls table: %w", err)
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection; the caller owns
// its lifecycle.
func NewPostgresStoreWithDB(db querier) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}}
}

// Load returns every completed URL.
func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, selectCompleted)
	if err != nil {
		return nil, fmt.Errorf("select completed urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan completed url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed urls: %w", err)
	}
	return urls, nil
}

// Add records one completed URL; duplicates are silently ignored.
func (s *PostgresStore) Add(ctx context.Context, url string) error {
	if _, err := s.db.Exec(ctx, insertCompletedURL, url); err != nil {
		return fmt.Errorf("insert completed url: %w", err)
	}
	return nil
}

// Flush is a no-op: every Add commits on its own.
func (s *PostgresStore) Flush(context.Context) error { return nil }

// Close releases the connection pool.
func (s *PostgresStore) Close(context.Context) error {
	s.close()
	return nil
}
