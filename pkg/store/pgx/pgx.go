// Package pgx implements the relational review stores on PostgreSQL.
package pgx

import (
	"context"

	"github.com/aletheia-codex/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// insertChunkSize bounds the statements queued in a single pgx batch.
const insertChunkSize = 500

// ReviewDBStorage implements store.ReviewRepository on PostgreSQL. Status and
// statistic changes are single conditional statements so concurrent
// reviewers cannot both transition the same item.
type ReviewDBStorage struct {
	conn pgxIConn
}

var _ store.ReviewRepository = (*ReviewDBStorage)(nil)

// NewReviewDBStorage creates a ReviewDBStorage on an existing connection or
// pool.
func NewReviewDBStorage(conn pgxIConn) *ReviewDBStorage {
	return &ReviewDBStorage{conn: conn}
}
