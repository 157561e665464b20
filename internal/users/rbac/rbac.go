// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package rbac implements role-based access control for the Arcadia archive.

It owns the role and permission catalog, the resolution of a user's effective
permission set, and the in-process permission cache that fronts that
resolution.

# Architecture

  - Service: Role management guards (system-role immutability, escalation
    prevention, role-in-use conflicts) and cached permission resolution.
  - Repository: Postgres-backed storage for roles, permissions, and the
    role-permission join, including the single-join permission resolver.
  - PermissionCache: Two-tier TTL cache (per-user, per-role) with explicit
    invalidation, owned by the composition root via Start/Stop.

# Security

Role mutations are the privilege-escalation surface of the whole system.
Any change to the guards in this package must be reviewed by the security team.
*/
package rbac

import "time"

// # System Roles

// System role IDs are fixed at install time and immutable for the lifetime
// of the system: they can never be renamed, re-permissioned, or deleted.
const (
	// RoleAdmin is the superuser role assigned to the first registered account.
	RoleAdmin int64 = 1

	// RoleUser is the default role for registered accounts.
	RoleUser int64 = 2

	// RoleGuest backs the anonymous sentinel identity when guest access
	// is enabled.
	RoleGuest int64 = 3
)

// IsSystemRole reports whether the role ID belongs to the immutable system set.
// Every role mutation path must consult this predicate before touching a row.
func IsSystemRole(roleID int64) bool {
	return roleID == RoleAdmin || roleID == RoleUser || roleID == RoleGuest
}

// # Domain Entities

// Role represents a named permission grouping.
//
// Priority is a display/tie-break ordering only — there is no role
// inheritance anywhere in the system.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSystem reports whether the role is one of the immutable system roles.
func (role *Role) IsSystem() bool {
	return IsSystemRole(role.ID)
}

// Permission represents an atomic capability in dotted "resource.action" form.
// The catalog is seeded by migration and is not user-editable at runtime.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RoleDetail is a role together with its granted permissions, used by the
// management API.
type RoleDetail struct {
	Role
	Permissions []Permission `json:"permissions"`
	UserCount   int64        `json:"user_count"`
}
