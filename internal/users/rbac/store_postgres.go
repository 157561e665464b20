// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/dberr"
	"github.com/darkraise/arcadia/internal/platform/postgres"
	"github.com/darkraise/arcadia/internal/platform/sec"
)

// # Role Repository

// PostgresRoleRepository implements the Repository interface using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of the Repository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

/*
ListRoles retrieves every role ordered by priority then name.

Description: Listing endpoint backing for role administration screens.

Parameters:
  - context: context.Context

Returns:
  - []Role: All roles
  - error: Database retrieval failures
*/
func (repository *PostgresRoleRepository) ListRoles(context context.Context) ([]Role, error) {
	const query = `
		SELECT id, name, description, priority, createdat, updatedat
		FROM rbac.role
		ORDER BY priority DESC, name ASC`

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_list_failed: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.Description,
			&role.Priority,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_list_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_list_rows_failed: %w", err)
	}

	return roles, nil
}

/*
FindRoleByID retrieves a role record by its primary key.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - *Role: Hydrated role entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRoleRepository) FindRoleByID(context context.Context, roleID int64) (*Role, error) {
	const query = `
		SELECT id, name, description, priority, createdat, updatedat
		FROM rbac.role
		WHERE id = $1`

	role := &Role{}
	err := repository.pool.QueryRow(context, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.Priority,
		&role.CreatedAt,
		&role.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Role")
		}
		return nil, fmt.Errorf("postgres_role_repo_find_by_id_failed: %w", err)
	}

	return role, nil
}

/*
CreateRole persists a new role and its initial grants transactionally.

Description: Inserts the rbac.role row and all rbac.role_permission grant
rows in one transaction so a partially-granted role can never be observed.
The unique index on the role name is the final arbiter against concurrent
creates with the same name.

Parameters:
  - context: context.Context
  - role: *Role
  - permissionIDs: []int64

Returns:
  - error: apperr.Conflict on duplicate name, or persistence failures
*/
func (repository *PostgresRoleRepository) CreateRole(context context.Context, role *Role, permissionIDs []int64) error {
	now := time.Now()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now

	err := postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		const insertRole = `
			INSERT INTO rbac.role (name, description, priority, createdat, updatedat)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`

		if err := tx.QueryRow(context, insertRole,
			role.Name,
			role.Description,
			role.Priority,
			role.CreatedAt,
			role.UpdatedAt,
		).Scan(&role.ID); err != nil {
			return err
		}

		return insertGrants(context, tx, role.ID, permissionIDs)
	})

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("A role with this name already exists")
		}
		return fmt.Errorf("postgres_role_repo_create_failed: %w", err)
	}

	return nil
}

/*
UpdateRole persists changes to a role's mutable metadata fields.

Parameters:
  - context: context.Context
  - role: *Role

Returns:
  - error: apperr.Conflict on duplicate name, or update failures
*/
func (repository *PostgresRoleRepository) UpdateRole(context context.Context, role *Role) error {
	const query = `
		UPDATE rbac.role
		SET name = $2, description = $3, priority = $4, updatedat = $5
		WHERE id = $1`

	role.UpdatedAt = time.Now()
	tag, err := repository.pool.Exec(context, query,
		role.ID,
		role.Name,
		role.Description,
		role.Priority,
		role.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("A role with this name already exists")
		}
		return fmt.Errorf("postgres_role_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Role")
	}

	return nil
}

/*
ReplaceRolePermissions atomically swaps a role's full grant set.

Description: Delete-all then insert-all inside one transaction. Readers
always observe either the old set or the new set, never a partial mix.

Parameters:
  - context: context.Context
  - roleID: int64
  - permissionIDs: []int64

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRoleRepository) ReplaceRolePermissions(context context.Context, roleID int64, permissionIDs []int64) error {
	err := postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		const clear = "DELETE FROM rbac.role_permission WHERE roleid = $1"
		if _, err := tx.Exec(context, clear, roleID); err != nil {
			return err
		}

		return insertGrants(context, tx, roleID, permissionIDs)
	})

	if err != nil {
		return fmt.Errorf("postgres_role_repo_replace_permissions_failed: %w", err)
	}

	return nil
}

/*
DeleteRole removes a role and its grant rows in one transaction.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - error: Deletion failures
*/
func (repository *PostgresRoleRepository) DeleteRole(context context.Context, roleID int64) error {
	err := postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		const clearGrants = "DELETE FROM rbac.role_permission WHERE roleid = $1"
		if _, err := tx.Exec(context, clearGrants, roleID); err != nil {
			return err
		}

		const deleteRole = "DELETE FROM rbac.role WHERE id = $1"
		tag, err := tx.Exec(context, deleteRole, roleID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Role")
		}

		return nil
	})

	if err != nil {
		var appError *apperr.AppError
		if errors.As(err, &appError) {
			return err
		}
		return fmt.Errorf("postgres_role_repo_delete_failed: %w", err)
	}

	return nil
}

/*
CountUsersWithRole counts accounts currently assigned to the role.

Description: Guard input for role deletion — a role still held by any
account must not be removed.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - int64: Assignment count
  - error: Execution errors
*/
func (repository *PostgresRoleRepository) CountUsersWithRole(context context.Context, roleID int64) (int64, error) {
	const query = "SELECT count(*) FROM users.account WHERE roleid = $1 AND deletedat IS NULL"

	var count int64
	if err := repository.pool.QueryRow(context, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_role_repo_count_users_failed: %w", err)
	}

	return count, nil
}

// insertGrants inserts one grant row per permission ID for the role.
// A nil or empty slice inserts nothing, which is valid: roles may carry
// zero permissions.
func insertGrants(context context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	const insert = "INSERT INTO rbac.role_permission (roleid, permissionid) VALUES ($1, $2)"

	for _, permissionID := range permissionIDs {
		if _, err := tx.Exec(context, insert, roleID, permissionID); err != nil {
			return err
		}
	}

	return nil
}

// # Permission Repository

// PostgresPermissionRepository implements the PermissionRepository interface.
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PostgreSQL implementation of PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

/*
ListPermissions retrieves the full permission catalog ordered by name.

Parameters:
  - context: context.Context

Returns:
  - []Permission: Full catalog
  - error: Database retrieval failures
*/
func (repository *PostgresPermissionRepository) ListPermissions(context context.Context) ([]Permission, error) {
	const query = `
		SELECT id, name, resource, action, description
		FROM rbac.permission
		ORDER BY name ASC`

	return repository.queryPermissions(context, query)
}

/*
ListRolePermissions retrieves the permissions granted to a single role.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - []Permission: Granted permissions
  - error: Database retrieval failures
*/
func (repository *PostgresPermissionRepository) ListRolePermissions(context context.Context, roleID int64) ([]Permission, error) {
	const query = `
		SELECT p.id, p.name, p.resource, p.action, p.description
		FROM rbac.permission p
		INNER JOIN rbac.role_permission rp ON rp.permissionid = p.id
		WHERE rp.roleid = $1
		ORDER BY p.name ASC`

	return repository.queryPermissions(context, query, roleID)
}

/*
FindPermissionsByIDs retrieves catalog entries for the given IDs.

Description: Unknown IDs are silently absent from the result; callers
compare input and output lengths to detect them.

Parameters:
  - context: context.Context
  - permissionIDs: []int64

Returns:
  - []Permission: Matching permissions
  - error: Database retrieval failures
*/
func (repository *PostgresPermissionRepository) FindPermissionsByIDs(context context.Context, permissionIDs []int64) ([]Permission, error) {
	if len(permissionIDs) == 0 {
		return []Permission{}, nil
	}

	const query = `
		SELECT id, name, resource, action, description
		FROM rbac.permission
		WHERE id = ANY($1)
		ORDER BY name ASC`

	return repository.queryPermissions(context, query, permissionIDs)
}

// queryPermissions runs a permission-shaped query and hydrates the rows.
func (repository *PostgresPermissionRepository) queryPermissions(context context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := repository.pool.Query(context, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_query_failed: %w", err)
	}
	defer rows.Close()

	permissions := []Permission{}
	for rows.Next() {
		var permission Permission
		if err := rows.Scan(
			&permission.ID,
			&permission.Name,
			&permission.Resource,
			&permission.Action,
			&permission.Description,
		); err != nil {
			return nil, fmt.Errorf("postgres_permission_repo_scan_failed: %w", err)
		}
		permissions = append(permissions, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_rows_failed: %w", err)
	}

	return permissions, nil
}

// # Permission Resolver

// PostgresResolver implements the Resolver interface with single-query joins.
type PostgresResolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a new PostgreSQL implementation of Resolver.
func NewResolver(pool *pgxpool.Pool) *PostgresResolver {
	return &PostgresResolver{pool: pool}
}

/*
ResolveUserPermissions computes a user's effective permission set.

Description: Single join from account through role grants to permission
names. A user with an unknown ID resolves to NotFound rather than an
empty set, so callers can distinguish "no such user" from "no grants".

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - sec.PermissionSet: Effective permission names
  - error: apperr.NotFound or execution errors
*/
func (resolver *PostgresResolver) ResolveUserPermissions(context context.Context, userID string) (sec.PermissionSet, error) {
	const exists = "SELECT 1 FROM users.account WHERE id = $1 AND deletedat IS NULL"

	var one int
	if err := resolver.pool.QueryRow(context, exists, userID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_resolver_user_exists_failed: %w", err)
	}

	const query = `
		SELECT p.name
		FROM users.account a
		INNER JOIN rbac.role_permission rp ON rp.roleid = a.roleid
		INNER JOIN rbac.permission p ON p.id = rp.permissionid
		WHERE a.id = $1 AND a.deletedat IS NULL`

	return resolver.queryPermissionSet(context, query, userID)
}

/*
ResolveRolePermissions computes the permission set granted to a role.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - sec.PermissionSet: Granted permission names
  - error: Execution errors
*/
func (resolver *PostgresResolver) ResolveRolePermissions(context context.Context, roleID int64) (sec.PermissionSet, error) {
	const query = `
		SELECT p.name
		FROM rbac.role_permission rp
		INNER JOIN rbac.permission p ON p.id = rp.permissionid
		WHERE rp.roleid = $1`

	return resolver.queryPermissionSet(context, query, roleID)
}

// queryPermissionSet runs a single-column name query into a PermissionSet.
func (resolver *PostgresResolver) queryPermissionSet(context context.Context, query string, args ...any) (sec.PermissionSet, error) {
	rows, err := resolver.pool.Query(context, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres_resolver_query_failed: %w", err)
	}
	defer rows.Close()

	permissions := sec.PermissionSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres_resolver_scan_failed: %w", err)
		}
		permissions.Add(name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_resolver_rows_failed: %w", err)
	}

	return permissions, nil
}
