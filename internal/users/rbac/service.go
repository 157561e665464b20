// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/platform/validate"
)

// # Service Layer

// Service orchestrates role and permission management.
//
// It enforces the three guards every role mutation must pass:
//
//  1. System roles (admin, user, guest) are immutable.
//  2. Role names are unique, settled inside the storage transaction.
//  3. An actor may only grant permissions they themselves hold.
//
// Cache invalidation always happens AFTER the storage transaction commits.
// Invalidating first would let a concurrent reader repopulate the cache with
// pre-commit data and serve it for a full TTL.
type Service struct {
	roleRepository       Repository
	permissionRepository PermissionRepository
	resolver             Resolver
	cache                *PermissionCache
	logger               *slog.Logger
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(
	roleRepo Repository,
	permissionRepo PermissionRepository,
	resolver Resolver,
	cache *PermissionCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		roleRepository:       roleRepo,
		permissionRepository: permissionRepo,
		resolver:             resolver,
		cache:                cache,
		logger:               logger,
	}
}

// # Role Queries

/*
ListRoles returns every role with its current user assignment count.

Parameters:
  - context: context.Context

Returns:
  - []RoleDetail: Roles with permissions and user counts
  - error: Retrieval failures
*/
func (service *Service) ListRoles(context context.Context) ([]RoleDetail, error) {
	roles, err := service.roleRepository.ListRoles(context)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_list_roles_failed: %w", err)
	}

	details := make([]RoleDetail, 0, len(roles))
	for _, role := range roles {
		permissions, err := service.permissionRepository.ListRolePermissions(context, role.ID)
		if err != nil {
			return nil, fmt.Errorf("rbac_service_list_role_permissions_failed: %w", err)
		}

		userCount, err := service.roleRepository.CountUsersWithRole(context, role.ID)
		if err != nil {
			return nil, fmt.Errorf("rbac_service_count_users_failed: %w", err)
		}

		details = append(details, RoleDetail{
			Role:        role,
			Permissions: permissions,
			UserCount:   userCount,
		})
	}

	return details, nil
}

/*
GetRole returns a single role with its granted permissions and user count.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - *RoleDetail: Hydrated role detail
  - error: Not found or retrieval failures
*/
func (service *Service) GetRole(context context.Context, roleID int64) (*RoleDetail, error) {
	role, err := service.roleRepository.FindRoleByID(context, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_get_role_failed: %w", err)
	}

	permissions, err := service.permissionRepository.ListRolePermissions(context, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_get_role_permissions_failed: %w", err)
	}

	userCount, err := service.roleRepository.CountUsersWithRole(context, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_get_role_count_failed: %w", err)
	}

	return &RoleDetail{
		Role:        *role,
		Permissions: permissions,
		UserCount:   userCount,
	}, nil
}

/*
ListPermissions returns the full immutable permission catalog.

Parameters:
  - context: context.Context

Returns:
  - []Permission: Full catalog
  - error: Retrieval failures
*/
func (service *Service) ListPermissions(context context.Context) ([]Permission, error) {
	permissions, err := service.permissionRepository.ListPermissions(context)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_list_permissions_failed: %w", err)
	}
	return permissions, nil
}

// # Role Mutations

// CreateRoleInput defines the fields for creating a new role.
type CreateRoleInput struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Priority      int     `json:"priority"`
	PermissionIDs []int64 `json:"permission_ids"`
}

/*
CreateRole creates a new role and its initial permission grants.

Description: Validates the input, rejects any grant the acting user does not
hold themselves, then persists the role and grants in one transaction. The
storage layer's unique index settles concurrent creates with the same name.

Parameters:
  - context: context.Context
  - actor: *sec.AuthUser (the authenticated administrator performing the change)
  - input: CreateRoleInput

Returns:
  - *RoleDetail: The created role
  - error: Validation, escalation, conflict, or persistence failures
*/
func (service *Service) CreateRole(context context.Context, actor *sec.AuthUser, input CreateRoleInput) (*RoleDetail, error) {

	// ── 1. Validate metadata ──
	if err := validateRoleInput(input.Name, input.Description); err != nil {
		return nil, err
	}

	// ── 2. Escalation guard ──
	if err := service.ValidatePermissionEscalation(context, input.PermissionIDs, actor.Permissions); err != nil {
		return nil, err
	}

	// ── 3. Persist role + grants transactionally ──
	role := &Role{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
	}
	if err := service.roleRepository.CreateRole(context, role, input.PermissionIDs); err != nil {
		return nil, err
	}

	service.logger.Info("role_created",
		slog.Int64("role_id", role.ID),
		slog.String("role_name", role.Name),
		slog.String("actor_id", actor.UserID),
	)

	return service.GetRole(context, role.ID)
}

// UpdateRoleInput defines the mutable metadata fields of a role.
type UpdateRoleInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
}

/*
UpdateRole applies a partial update to a role's metadata.

Description: System roles are rejected before any storage access. Name
changes go through the same uniqueness arbitration as creation.

Parameters:
  - context: context.Context
  - actor: *sec.AuthUser
  - roleID: int64
  - input: UpdateRoleInput

Returns:
  - *RoleDetail: The updated role
  - error: System-role, conflict, or persistence failures
*/
func (service *Service) UpdateRole(context context.Context, actor *sec.AuthUser, roleID int64, input UpdateRoleInput) (*RoleDetail, error) {

	// ── 1. System-role guard ──
	if IsSystemRole(roleID) {
		return nil, apperr.Forbidden("System roles cannot be modified")
	}

	// ── 2. Load current state ──
	role, err := service.roleRepository.FindRoleByID(context, roleID)
	if err != nil {
		return nil, err
	}

	// Apply delta updates
	if input.Name != nil {
		role.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		role.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		role.Priority = *input.Priority
	}

	if err := validateRoleInput(role.Name, role.Description); err != nil {
		return nil, err
	}

	// ── 3. Persist ──
	if err := service.roleRepository.UpdateRole(context, role); err != nil {
		return nil, err
	}

	service.logger.Info("role_updated",
		slog.Int64("role_id", roleID),
		slog.String("actor_id", actor.UserID),
	)

	return service.GetRole(context, roleID)
}

/*
UpdateRolePermissions replaces a role's full grant set.

Description: System roles are rejected first, then every requested grant is
checked against the acting user's own permission set. The swap is
delete-all/insert-all inside one transaction, and the cache is invalidated
only after that transaction has committed.

Parameters:
  - context: context.Context
  - actor: *sec.AuthUser
  - roleID: int64
  - permissionIDs: []int64

Returns:
  - *RoleDetail: The role with its new grants
  - error: System-role, escalation, or persistence failures
*/
func (service *Service) UpdateRolePermissions(context context.Context, actor *sec.AuthUser, roleID int64, permissionIDs []int64) (*RoleDetail, error) {

	// ── 1. System-role guard ──
	if IsSystemRole(roleID) {
		return nil, apperr.Forbidden("System role permissions cannot be modified")
	}

	// ── 2. Existence check ──
	if _, err := service.roleRepository.FindRoleByID(context, roleID); err != nil {
		return nil, err
	}

	// ── 3. Escalation guard ──
	if err := service.ValidatePermissionEscalation(context, permissionIDs, actor.Permissions); err != nil {
		return nil, err
	}

	// ── 4. Atomic replace-all swap ──
	if err := service.roleRepository.ReplaceRolePermissions(context, roleID, permissionIDs); err != nil {
		return nil, err
	}

	// ── 5. Invalidate AFTER commit ──
	service.cache.InvalidateRole(roleID)

	service.logger.Info("role_permissions_replaced",
		slog.Int64("role_id", roleID),
		slog.Int("grant_count", len(permissionIDs)),
		slog.String("actor_id", actor.UserID),
	)

	return service.GetRole(context, roleID)
}

/*
DeleteRole removes a role that is not a system role and has no assignees.

Description: Grant links and the role row are deleted in one transaction,
then the cache is invalidated.

Parameters:
  - context: context.Context
  - actor: *sec.AuthUser
  - roleID: int64

Returns:
  - error: System-role, role-in-use, or persistence failures
*/
func (service *Service) DeleteRole(context context.Context, actor *sec.AuthUser, roleID int64) error {

	// ── 1. System-role guard ──
	if IsSystemRole(roleID) {
		return apperr.Forbidden("System roles cannot be deleted")
	}

	// ── 2. In-use guard ──
	userCount, err := service.roleRepository.CountUsersWithRole(context, roleID)
	if err != nil {
		return err
	}
	if userCount > 0 {
		return apperr.Conflict("Role is still assigned to users and cannot be deleted")
	}

	// ── 3. Transactional delete ──
	if err := service.roleRepository.DeleteRole(context, roleID); err != nil {
		return err
	}

	// ── 4. Invalidate AFTER commit ──
	service.cache.InvalidateRole(roleID)

	service.logger.Warn("role_deleted",
		slog.Int64("role_id", roleID),
		slog.String("actor_id", actor.UserID),
	)

	return nil
}

// # Escalation Guard

/*
ValidatePermissionEscalation rejects any requested grant the acting user
does not hold.

Description: Maps the requested permission IDs to catalog names and requires
each name to be present in the actor's own permission set. An empty request
passes unconditionally (a role with zero grants is valid). Unknown IDs are
rejected as validation errors rather than silently dropped.

Parameters:
  - context: context.Context
  - requestedPermissionIDs: []int64
  - actorPermissions: sec.PermissionSet

Returns:
  - error: apperr.Forbidden naming the offending permissions, or lookup failures
*/
func (service *Service) ValidatePermissionEscalation(context context.Context, requestedPermissionIDs []int64, actorPermissions sec.PermissionSet) error {
	if len(requestedPermissionIDs) == 0 {
		return nil
	}

	requested, err := service.permissionRepository.FindPermissionsByIDs(context, requestedPermissionIDs)
	if err != nil {
		return fmt.Errorf("rbac_service_escalation_lookup_failed: %w", err)
	}

	if len(requested) != len(uniqueIDs(requestedPermissionIDs)) {
		return apperr.ValidationError("One or more permission IDs do not exist")
	}

	escalated := []string{}
	for _, permission := range requested {
		if !actorPermissions.Has(permission.Name) {
			escalated = append(escalated, permission.Name)
		}
	}

	if len(escalated) > 0 {
		sort.Strings(escalated)
		return apperr.Forbidden("Cannot grant permissions you do not hold: " + strings.Join(escalated, ", "))
	}

	return nil
}

// # Cached Lookups

/*
UserPermissions returns a user's effective permission set, cache-first.

Description: On a cache miss the set is resolved through the single join
query and the cache is populated before returning.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - sec.PermissionSet: Effective permission names
  - error: Resolution failures
*/
func (service *Service) UserPermissions(context context.Context, userID string) (sec.PermissionSet, error) {
	if permissions, found := service.cache.GetUserPermissions(userID); found {
		return permissions, nil
	}

	permissions, err := service.resolver.ResolveUserPermissions(context, userID)
	if err != nil {
		return nil, err
	}

	service.cache.SetUserPermissions(userID, permissions)
	return permissions, nil
}

/*
RolePermissions returns a role's granted permission set, cache-first.

Parameters:
  - context: context.Context
  - roleID: int64

Returns:
  - sec.PermissionSet: Granted permission names
  - error: Resolution failures
*/
func (service *Service) RolePermissions(context context.Context, roleID int64) (sec.PermissionSet, error) {
	if permissions, found := service.cache.GetRolePermissions(roleID); found {
		return permissions, nil
	}

	permissions, err := service.resolver.ResolveRolePermissions(context, roleID)
	if err != nil {
		return nil, err
	}

	service.cache.SetRolePermissions(roleID, permissions)
	return permissions, nil
}

// InvalidateUser drops a single user's cached permissions. Exposed for
// collaborators that change a user's role assignment.
func (service *Service) InvalidateUser(userID string) {
	service.cache.InvalidateUser(userID)
}

// CacheStats exposes the cache's entry counts for introspection endpoints.
func (service *Service) CacheStats() CacheStats {
	return service.cache.Stats()
}

// # Helpers

func validateRoleInput(name, description string) error {
	validator := &validate.Validator{}
	return validator.
		Required("name", name).
		MinLen("name", name, 2).
		MaxLen("name", name, 64).
		MaxLen("description", description, 500).
		Err()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
