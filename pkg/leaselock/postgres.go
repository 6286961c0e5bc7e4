package leaselock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresBackend struct {
	db dbConn
}

// NewPostgres stores leases in the app_locks table. A *pgxpool.Pool
// satisfies db.
func NewPostgres(db dbConn) *Client {
	return &Client{b: &postgresBackend{db: db}}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `DELETE FROM app_locks WHERE lock_key = $1 AND locked_by = $2;`

func (p *postgresBackend) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return p.returning(ctx, tryAcquireSQL, key, token, ttl)
}

func (p *postgresBackend) renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return p.returning(ctx, renewSQL, key, token, ttl)
}

func (p *postgresBackend) returning(ctx context.Context, sql, key, token string, ttl time.Duration) (bool, error) {
	var returned string
	err := p.db.QueryRow(ctx, sql, key, token, ttl.Milliseconds()).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return returned != "", nil
}

func (p *postgresBackend) release(ctx context.Context, key, token string) error {
	_, err := p.db.Exec(ctx, releaseSQL, key, token)
	return err
}
