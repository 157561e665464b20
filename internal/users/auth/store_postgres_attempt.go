// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// # Login Attempt Repository

// PostgresLoginAttemptRepository implements the LoginAttemptRepository interface.
type PostgresLoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new PostgreSQL implementation of LoginAttemptRepository.
func NewLoginAttemptRepository(pool *pgxpool.Pool) *PostgresLoginAttemptRepository {
	return &PostgresLoginAttemptRepository{pool: pool}
}

/*
Record appends one attempt row into users.login_attempt.

Parameters:
  - context: context.Context
  - attempt: *LoginAttempt

Returns:
  - error: Persistence failures
*/
func (repository *PostgresLoginAttemptRepository) Record(context context.Context, attempt *LoginAttempt) error {
	const query = `
		INSERT INTO users.login_attempt (username, ipaddress, success, attemptedat)
		VALUES ($1, $2, $3, $4)`

	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		attempt.Username,
		attempt.IPAddress,
		attempt.Success,
		attempt.AttemptedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_login_attempt_repo_record_failed: %w", err)
	}

	return nil
}

/*
CountFailures counts failed attempts inside the trailing window.

Description: A single query with count FILTER produces both the per-username
and per-IP tallies, so the two lockout dimensions are always measured against
the same snapshot of the ledger.

Parameters:
  - context: context.Context
  - username: string
  - ipAddress: string
  - since: time.Time

Returns:
  - int64: Failures for the username
  - int64: Failures for the IP address
  - error: Execution errors
*/
func (repository *PostgresLoginAttemptRepository) CountFailures(context context.Context, username, ipAddress string, since time.Time) (int64, int64, error) {
	const query = `
		SELECT
			count(*) FILTER (WHERE username = $1)  AS username_failures,
			count(*) FILTER (WHERE ipaddress = $2) AS ip_failures
		FROM users.login_attempt
		WHERE success = FALSE
		  AND attemptedat > $3
		  AND (username = $1 OR ipaddress = $2)`

	var usernameFailures, ipFailures int64
	err := repository.pool.QueryRow(context, query, username, ipAddress, since).
		Scan(&usernameFailures, &ipFailures)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres_login_attempt_repo_count_failed: %w", err)
	}

	return usernameFailures, ipFailures, nil
}

/*
DeleteOlderThan removes attempts outside the retention window.

Description: Idempotent cleanup, safe to run on any cadence.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - error: Cleanup failures
*/
func (repository *PostgresLoginAttemptRepository) DeleteOlderThan(context context.Context, cutoff time.Time) error {
	const query = "DELETE FROM users.login_attempt WHERE attemptedat < $1"
	if _, err := repository.pool.Exec(context, query, cutoff); err != nil {
		return fmt.Errorf("postgres_login_attempt_repo_cleanup_failed: %w", err)
	}
	return nil
}
