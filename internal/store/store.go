// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package store provides the PostgreSQL persistence layer.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store executes Partyline queries against PostgreSQL.
type Store struct {
	db DB
}

// New creates a Store on an existing connection source.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool and wraps it in a Store. The caller owns
// the returned pool.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return New(pool), pool, nil
}
