package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
)

// Store is the persistent catalog of podcasts, episodes, run history and
// settings.
type Store struct {
	db *sqlx.DB
}

// InitDB opens the Postgres catalog at dsn, verifies connectivity and
// creates any missing tables.
func InitDB(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, wrapErr("connect to database", err)
	}

	store := NewStore(conn)
	if err := store.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection. Tests pass a sqlmock-backed handle.
func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

// Ping checks the catalog is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return wrapErr("ping database", s.db.PingContext(ctx))
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
