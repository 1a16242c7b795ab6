package postgres

import (
	"context"
	"fmt"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// storeErr marks a driver failure as a dependency error. The cause stays in
// the chain so pgx.ErrNoRows and *pgconn.PgError checks keep working, and
// errors already classified by the domain pass through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrDependency, err)
}

func begin(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(fmt.Errorf("begin tx: %w", err))
	}
	return tx, nil
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return storeErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}
