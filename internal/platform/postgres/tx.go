// Copyright (c) 2026 Arcadia. All rights reserved.

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes fn inside a database transaction and commits on success.
//
// Multi-statement invariants (role-name uniqueness checks, replace-all
// permission swaps, refresh-token rotation) must run through this helper so
// that check and mutation are atomic and isolated from concurrent equivalents.
// Any error from fn rolls the transaction back and is returned unchanged so
// typed [apperr.AppError] values survive the round trip.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	// Rollback is a no-op after a successful commit.
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}

	return nil
}
