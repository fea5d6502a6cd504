package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// Open establishes a pgxpool connection pool for the entity store.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.Internal("opening database pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Upstream("pinging database", err)
	}
	return pool, nil
}

// mapError translates a pgx-layer error into the typed apperrors taxonomy
// (spec §7) so callers never string-match driver errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == pgx.ErrNoRows {
		return apperrors.NotFound(op, err)
	}
	var pgErr *pgconn.PgError
	if ok := asPgError(err, &pgErr); ok {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperrors.Conflict(op, err)
		case "23503": // foreign_key_violation
			return apperrors.Validation(op, err)
		case "23514": // check_violation
			return apperrors.Validation(op, err)
		}
	}
	return apperrors.Upstream(op, err)
}

func asPgError(err error, target **pgconn.PgError) bool {
	for err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			*target = pgErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
