// Package store wraps the digest log and transaction-body tables that back
// both tx-iterator (writer/reader of the digest log) and tx-puller (the
// claim-and-process queue layered on top of it).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is "anything that can execute a parameterized statement and
// return rows" — satisfied by *pgxpool.Pool and by pgx.Tx, so every
// function below works identically from a plain connection or from inside
// a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns the connection pool used to open transactions and hand out a
// top-level Querier.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connConf (a libpq-style key=value string or
// URL, per pgxpool.New).
func Connect(ctx context.Context, connConf string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying pool as a Querier, for calls outside a
// transaction (the leader's insert, the support's select, and so on).
func (s *Store) Pool() Querier {
	return s.pool
}

// Begin opens a transaction, used by the puller for its claim-fetch-
// classify-commit cycle.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
