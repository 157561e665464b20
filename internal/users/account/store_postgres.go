// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package account (Postgres) implements the storage layer for account
administration and session auditing.

# Schema Table Mapping
  - users.account: Master identity data.
  - users.refresh_token: Active device sessions and security metadata.
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/database/schema"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/pagination"
)

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for account administration.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new Postgres implementation for session auditing.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// # AccountRepository Methods

/*
FindByID retrieves a user record from the users.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *auth.User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	query := fmt.Sprintf(`
		SELECT a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, r.%s
		FROM %s a
		INNER JOIN %s r ON r.%s = a.%s
		WHERE a.%s = $1 AND a.%s IS NULL`,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.DisplayName, schema.UserAccount.RoleID, schema.UserAccount.IsActive,
		schema.UserAccount.IsVerified, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
		schema.RbacRole.Name,
		schema.UserAccount.Table,
		schema.RbacRole.Table, schema.RbacRole.ID, schema.UserAccount.RoleID,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	user := &auth.User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.DisplayName,
		&user.RoleID,
		&user.IsActive,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.RoleName,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
List retrieves one page of the user directory.

Description: The optional search term matches usernames and emails with a
case-insensitive prefix-agnostic LIKE. A windowed count avoids a second
round-trip for the total.

Parameters:
  - context: context.Context
  - search: string
  - params: pagination.Params

Returns:
  - []auth.User: One page, newest accounts first
  - int: Total matching rows
  - error: Retrieval failures
*/
func (repository *PostgresAccountRepository) List(context context.Context, search string, params pagination.Params) ([]auth.User, int, error) {
	query := fmt.Sprintf(`
		SELECT a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, r.%s,
		       count(*) OVER () AS total
		FROM %s a
		INNER JOIN %s r ON r.%s = a.%s
		WHERE a.%s IS NULL
		  AND ($1 = '' OR a.%s ILIKE '%%' || $1 || '%%' OR a.%s ILIKE '%%' || $1 || '%%')
		ORDER BY a.%s DESC
		LIMIT $2 OFFSET $3`,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.DisplayName, schema.UserAccount.RoleID, schema.UserAccount.IsActive,
		schema.UserAccount.IsVerified, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
		schema.RbacRole.Name,
		schema.UserAccount.Table,
		schema.RbacRole.Table, schema.RbacRole.ID, schema.UserAccount.RoleID,
		schema.UserAccount.DeletedAt,
		schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, search, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := []auth.User{}
	total := 0
	for rows.Next() {
		var user auth.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.DisplayName,
			&user.RoleID,
			&user.IsActive,
			&user.IsVerified,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.RoleName,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_list_scan_failed: %w", err)
		}
		users = append(users, user)
	}

	return users, total, nil
}

/*
UpdateProfile modifies the self-service profile metadata of a user.

Description: This method syncs the DisplayName field while refreshing the
updatedat timestamp. Identity fields (username, email) are immutable here.

Parameters:
  - context: context.Context
  - user: *auth.User

Returns:
  - error: Update failures
*/
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, user *auth.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.DisplayName, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	_, err := repository.pool.Exec(context, query, user.ID, user.DisplayName, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_profile_failed: %w", err)
	}

	return nil
}

/*
UpdateRole reassigns a user to a different role.

Parameters:
  - context: context.Context
  - userID: string
  - roleID: int64

Returns:
  - error: apperr.NotFound if no live account matched
*/
func (repository *PostgresAccountRepository) UpdateRole(context context.Context, userID string, roleID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table, schema.UserAccount.RoleID, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_role_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
SetActive toggles the liveness flag on an account.

Parameters:
  - context: context.Context
  - userID: string
  - active: bool

Returns:
  - error: apperr.NotFound if no live account matched
*/
func (repository *PostgresAccountRepository) SetActive(context context.Context, userID string, active bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table, schema.UserAccount.IsActive, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query, userID, active)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_active_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
SoftDelete flags a user account as logically destroyed.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresAccountRepository) SoftDelete(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.DeletedAt, schema.UserAccount.ID)
	_, err := repository.pool.Exec(context, query, id)
	return err
}

/*
CountActiveAdmins counts live accounts holding the admin role.

Parameters:
  - context: context.Context

Returns:
  - int64: Active admin count
  - error: Retrieval failures
*/
func (repository *PostgresAccountRepository) CountActiveAdmins(context context.Context) (int64, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s
		WHERE %s = $1 AND %s = TRUE AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.RoleID, schema.UserAccount.IsActive, schema.UserAccount.DeletedAt,
	)

	var count int64
	if err := repository.pool.QueryRow(context, query, rbac.RoleAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_account_repo_count_admins_failed: %w", err)
	}

	return count, nil
}

// # SessionRepository Methods

/*
FindActiveByUserID retrieves all valid device sessions for a user.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string

Returns:
  - []SessionInfo: Collection of active devices
  - error: Database retrieval failures
*/
func (repository *PostgresSessionRepository) FindActiveByUserID(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, (%s = $2) AS iscurrent
		FROM %s
		WHERE %s = $1 AND %s IS NULL AND %s > NOW()
		ORDER BY %s DESC`,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.UserAgent, schema.UserRefreshToken.IPAddress,
		schema.UserRefreshToken.CreatedAt, schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.Table,
		schema.UserRefreshToken.UserID, schema.UserRefreshToken.RevokedAt, schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, userID, currentTokenHash)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var sess SessionInfo
		if err := rows.Scan(&sess.ID, &sess.UserAgent, &sess.IPAddress, &sess.CreatedAt, &sess.ExpiresAt, &sess.IsCurrent); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_list_scan_failed: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

/*
Revoke marks a single session as permanently revoked.

Parameters:
  - context: context.Context
  - userID: string (Security: validation of ownership)
  - sessionID: string

Returns:
  - error: Update failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, userID, sessionID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s = $2 AND %s IS NULL`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.UserID, schema.UserRefreshToken.RevokedAt)
	_, err := repository.pool.Exec(context, query, sessionID, userID)
	return err
}

/*
RevokeOthers marks all sessions except the presented one as revoked.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string

Returns:
  - error: Batch update failures
*/
func (repository *PostgresSessionRepository) RevokeOthers(context context.Context, userID, currentTokenHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s != $2 AND %s IS NULL`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.UserID, schema.UserRefreshToken.TokenHash, schema.UserRefreshToken.RevokedAt)
	_, err := repository.pool.Exec(context, query, userID, currentTokenHash)
	return err
}

/*
RevokeAll terminates every session for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch update failures
*/
func (repository *PostgresSessionRepository) RevokeAll(context context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.UserID, schema.UserRefreshToken.RevokedAt)
	_, err := repository.pool.Exec(context, query, userID)
	return err
}
