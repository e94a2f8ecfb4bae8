// Package store implements the Postgres-backed persistence layer for every
// table in spec.md's relational schema: service accounts, roles, role
// bindings, agents, sessions, session agents, session messages, session
// tasks, and command results.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/kandev/raworc/internal/common/errors"
)

// Store wraps a pooled Postgres connection with query methods for every
// persisted resource.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle, for callers that need a transaction
// (the task worker's claim step, most notably).
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InitSchema creates every table and index this store depends on, if absent.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// pgUniqueViolation is Postgres's error code for a unique-constraint
// violation (23505); the store translates it to CONFLICT rather than a
// generic DATABASE_ERROR, per spec.md §7's propagation policy.
const pgUniqueViolation = "23505"

// wrapWrite classifies a write error as CONFLICT (unique violation) or
// DATABASE_ERROR (anything else). A nil err passes through unchanged.
func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.Conflict(fmt.Sprintf("%s already exists", pgErr.ConstraintName))
	}
	return apperrors.DatabaseError(err)
}

// wrapRead classifies a read error as NOT_FOUND (no rows) or DATABASE_ERROR.
// resource and id name the row being looked up, for the NOT_FOUND message.
func wrapRead(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return apperrors.DatabaseError(err)
}

// checkAffected turns a zero-rows-affected update/delete into a NOT_FOUND,
// matching the teacher's RowsAffected convention for detecting a missing row
// without a prior SELECT.
func checkAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if n == 0 {
		return apperrors.NotFound(resource, id)
	}
	return nil
}
