// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac

import (
	"context"

	"github.com/darkraise/arcadia/internal/platform/sec"
)

// # Role Data Access

// Repository defines the data access contract for roles, permissions, and
// permission resolution.
type Repository interface {

	/*
		ListRoles returns every role ordered by priority then name.

		Parameters:
		  - context: context.Context

		Returns:
		  - []Role: All roles
		  - error: Database retrieval failures
	*/
	ListRoles(context context.Context) ([]Role, error)

	/*
		FindRoleByID returns the role with the given ID.

		Parameters:
		  - context: context.Context
		  - roleID: int64

		Returns:
		  - *Role: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindRoleByID(context context.Context, roleID int64) (*Role, error)

	/*
		CreateRole persists a new role and its initial permission grants in a
		single transaction.

		Parameters:
		  - context: context.Context
		  - role: *Role
		  - permissionIDs: []int64

		Returns:
		  - error: Persistence failures
	*/
	CreateRole(context context.Context, role *Role, permissionIDs []int64) error

	/*
		UpdateRole persists changes to a role's mutable metadata fields.

		Parameters:
		  - context: context.Context
		  - role: *Role

		Returns:
		  - error: Persistence failures
	*/
	UpdateRole(context context.Context, role *Role) error

	/*
		ReplaceRolePermissions atomically swaps the role's full grant set for
		the given permission IDs.

		Parameters:
		  - context: context.Context
		  - roleID: int64
		  - permissionIDs: []int64

		Returns:
		  - error: Persistence failures
	*/
	ReplaceRolePermissions(context context.Context, roleID int64, permissionIDs []int64) error

	/*
		DeleteRole removes a role and its grants in a single transaction.

		Parameters:
		  - context: context.Context
		  - roleID: int64

		Returns:
		  - error: Persistence failures
	*/
	DeleteRole(context context.Context, roleID int64) error

	/*
		CountUsersWithRole returns how many accounts currently hold the role.

		Parameters:
		  - context: context.Context
		  - roleID: int64

		Returns:
		  - int64: Assignment count
		  - error: Database retrieval failures
	*/
	CountUsersWithRole(context context.Context, roleID int64) (int64, error)
}

// # Permission Data Access

// PermissionRepository defines read access to the permission catalog.
type PermissionRepository interface {

	/*
		ListPermissions returns the full permission catalog ordered by name.

		Parameters:
		  - context: context.Context

		Returns:
		  - []Permission: All permissions
		  - error: Database retrieval failures
	*/
	ListPermissions(context context.Context) ([]Permission, error)

	/*
		ListRolePermissions returns the permissions granted to a role.

		Parameters:
		  - context: context.Context
		  - roleID: int64

		Returns:
		  - []Permission: Granted permissions
		  - error: Database retrieval failures
	*/
	ListRolePermissions(context context.Context, roleID int64) ([]Permission, error)

	/*
		FindPermissionsByIDs returns the catalog entries for the given IDs.
		Unknown IDs are simply absent from the result.

		Parameters:
		  - context: context.Context
		  - permissionIDs: []int64

		Returns:
		  - []Permission: Matching permissions
		  - error: Database retrieval failures
	*/
	FindPermissionsByIDs(context context.Context, permissionIDs []int64) ([]Permission, error)
}

// # Permission Resolution

// Resolver defines the authoritative permission resolution contract. It is
// the source of truth the cache sits in front of.
type Resolver interface {

	/*
		ResolveUserPermissions computes the effective permission set for a
		user by joining their role's grants in one query.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - sec.PermissionSet: Effective permission names
		  - error: Database retrieval failures
	*/
	ResolveUserPermissions(context context.Context, userID string) (sec.PermissionSet, error)

	/*
		ResolveRolePermissions computes the permission set granted to a role.

		Parameters:
		  - context: context.Context
		  - roleID: int64

		Returns:
		  - sec.PermissionSet: Granted permission names
		  - error: Database retrieval failures
	*/
	ResolveRolePermissions(context context.Context, roleID int64) (sec.PermissionSet, error)
}
