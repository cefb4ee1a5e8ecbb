// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// Error codes surfaced by the store.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeQueryFailed      = "QUERY_FAILED"
)

// errNotFound routes zero-row mutations through the same NOT_FOUND
// classification as empty queries.
var errNotFound = pgx.ErrNoRows

// wrapErr classifies a pgx error into a stable store error code so
// callers never match on driver internals.
func wrapErr(err error, operation string) error {
	if err == nil {
		return nil
	}
	builder := oops.In("store").With("operation", operation)

	if errors.Is(err, pgx.ErrNoRows) {
		return builder.Code(CodeNotFound).Wrap(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return builder.Code(CodeAlreadyExists).With("constraint", pgErr.ConstraintName).Wrap(err)
		case pgerrcode.ForeignKeyViolation:
			return builder.Code(CodeInvalidReference).With("constraint", pgErr.ConstraintName).Wrap(err)
		}
	}
	return builder.Code(CodeQueryFailed).Wrap(err)
}

// IsNotFound reports whether err carries the store's not-found code.
func IsNotFound(err error) bool {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code() == CodeNotFound
	}
	return false
}
