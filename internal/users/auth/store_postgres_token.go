// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/postgres"
)

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements the RefreshTokenRepository interface.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

/*
Create persists a new refresh token row into users.refresh_token.

Parameters:
  - context: context.Context
  - token: *RefreshToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO users.refresh_token (
			id, userid, tokenhash, useragent, ipaddress, expiresat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.UserAgent,
		token.IPAddress,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
Rotate atomically revokes the old token and inserts its replacement.

Description: The revoke UPDATE filters on "revokedat IS NULL AND expiresat >
now()" and RETURNING settles the race: when two requests present the same
refresh token concurrently, exactly one UPDATE matches a row. The loser sees
zero rows and fails with apperr.Unauthorized — a stolen-and-raced token never
yields two live sessions. Both statements run in one transaction so a crash
between them cannot strand a revoked token without its successor.

Parameters:
  - context: context.Context
  - oldTokenHash: string
  - newToken: *RefreshToken (UserID is populated from the revoked row)

Returns:
  - error: apperr.Unauthorized or storage failures
*/
func (repository *PostgresRefreshTokenRepository) Rotate(context context.Context, oldTokenHash string, newToken *RefreshToken) error {
	err := postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		const revoke = `
			UPDATE users.refresh_token
			SET revokedat = now()
			WHERE tokenhash = $1 AND revokedat IS NULL AND expiresat > now()
			RETURNING userid`

		var userID string
		if err := tx.QueryRow(context, revoke, oldTokenHash).Scan(&userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Unauthorized("Invalid or expired refresh token")
			}
			return err
		}

		newToken.UserID = userID
		if newToken.CreatedAt.IsZero() {
			newToken.CreatedAt = time.Now()
		}

		const insert = `
			INSERT INTO users.refresh_token (
				id, userid, tokenhash, useragent, ipaddress, expiresat, createdat
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`

		_, err := tx.Exec(context, insert,
			newToken.ID,
			newToken.UserID,
			newToken.TokenHash,
			newToken.UserAgent,
			newToken.IPAddress,
			newToken.ExpiresAt,
			newToken.CreatedAt,
		)
		return err
	})

	if err != nil {
		var appError *apperr.AppError
		if errors.As(err, &appError) {
			return err
		}
		return fmt.Errorf("postgres_refresh_token_repo_rotate_failed: %w", err)
	}

	return nil
}

/*
Revoke marks the live token matching tokenHash as revoked.

Description: Idempotent — revoking an unknown or already-revoked token
affects zero rows and is not an error.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Revocation failures
*/
func (repository *PostgresRefreshTokenRepository) Revoke(context context.Context, tokenHash string) error {
	const query = `
		UPDATE users.refresh_token
		SET revokedat = now()
		WHERE tokenhash = $1 AND revokedat IS NULL`

	if _, err := repository.pool.Exec(context, query, tokenHash); err != nil {
		return fmt.Errorf("postgres_refresh_token_repo_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeAll marks all live tokens for a user as revoked.

Description: Security nuking of every active session; used on password
resets and logout-everywhere.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeAll(context context.Context, userID string) error {
	const query = `
		UPDATE users.refresh_token
		SET revokedat = now()
		WHERE userid = $1 AND revokedat IS NULL`

	if _, err := repository.pool.Exec(context, query, userID); err != nil {
		return fmt.Errorf("postgres_refresh_token_repo_revoke_all_failed: %w", err)
	}
	return nil
}

/*
ListActiveByUserID returns the user's live tokens, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []RefreshToken: Active sessions
  - error: Retrieval failures
*/
func (repository *PostgresRefreshTokenRepository) ListActiveByUserID(context context.Context, userID string) ([]RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, expiresat, revokedat, createdat
		FROM users.refresh_token
		WHERE userid = $1 AND revokedat IS NULL AND expiresat > now()
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_refresh_token_repo_list_failed: %w", err)
	}
	defer rows.Close()

	tokens := []RefreshToken{}
	for rows.Next() {
		var token RefreshToken
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.TokenHash,
			&token.UserAgent,
			&token.IPAddress,
			&token.ExpiresAt,
			&token.RevokedAt,
			&token.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_refresh_token_repo_scan_failed: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_refresh_token_repo_rows_failed: %w", err)
	}

	return tokens, nil
}

/*
DeleteExpired permanently removes all tokens past their expiration.

Description: Cleanup task to reclaim storage from stale sessions.

Parameters:
  - context: context.Context

Returns:
  - error: Cleanup failures
*/
func (repository *PostgresRefreshTokenRepository) DeleteExpired(context context.Context) error {
	const query = "DELETE FROM users.refresh_token WHERE expiresat <= now()"
	if _, err := repository.pool.Exec(context, query); err != nil {
		return fmt.Errorf("postgres_refresh_token_repo_delete_expired_failed: %w", err)
	}
	return nil
}
