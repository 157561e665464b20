// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/pointer"
)

// # Test Fakes

// fakeStore is an in-memory implementation of the rbac storage contracts.
type fakeStore struct {
	roles       map[int64]rbac.Role
	grants      map[int64][]int64
	catalog     map[int64]rbac.Permission
	userRoles   map[string]int64
	nextRoleID  int64
	resolveHits int
}

func newFakeStore() *fakeStore {
	store := &fakeStore{
		roles:      map[int64]rbac.Role{},
		grants:     map[int64][]int64{},
		catalog:    map[int64]rbac.Permission{},
		userRoles:  map[string]int64{},
		nextRoleID: 100,
	}

	store.roles[rbac.RoleAdmin] = rbac.Role{ID: rbac.RoleAdmin, Name: "admin", Priority: 100}
	store.roles[rbac.RoleUser] = rbac.Role{ID: rbac.RoleUser, Name: "user", Priority: 50}
	store.roles[rbac.RoleGuest] = rbac.Role{ID: rbac.RoleGuest, Name: "guest", Priority: 10}

	store.catalog[1] = rbac.Permission{ID: 1, Name: "games.read", Resource: "games", Action: "read"}
	store.catalog[2] = rbac.Permission{ID: 2, Name: "games.create", Resource: "games", Action: "create"}
	store.catalog[3] = rbac.Permission{ID: 3, Name: "users.delete", Resource: "users", Action: "delete"}
	store.catalog[4] = rbac.Permission{ID: 4, Name: "roles.update", Resource: "roles", Action: "update"}

	return store
}

func (store *fakeStore) ListRoles(_ context.Context) ([]rbac.Role, error) {
	roles := []rbac.Role{}
	for _, role := range store.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (store *fakeStore) FindRoleByID(_ context.Context, roleID int64) (*rbac.Role, error) {
	role, found := store.roles[roleID]
	if !found {
		return nil, apperr.NotFound("Role")
	}
	return &role, nil
}

func (store *fakeStore) CreateRole(_ context.Context, role *rbac.Role, permissionIDs []int64) error {
	for _, existing := range store.roles {
		if existing.Name == role.Name {
			return apperr.Conflict("A role with this name already exists")
		}
	}
	store.nextRoleID++
	role.ID = store.nextRoleID
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	store.roles[role.ID] = *role
	store.grants[role.ID] = append([]int64{}, permissionIDs...)
	return nil
}

func (store *fakeStore) UpdateRole(_ context.Context, role *rbac.Role) error {
	if _, found := store.roles[role.ID]; !found {
		return apperr.NotFound("Role")
	}
	for id, existing := range store.roles {
		if id != role.ID && existing.Name == role.Name {
			return apperr.Conflict("A role with this name already exists")
		}
	}
	store.roles[role.ID] = *role
	return nil
}

func (store *fakeStore) ReplaceRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	store.grants[roleID] = append([]int64{}, permissionIDs...)
	return nil
}

func (store *fakeStore) DeleteRole(_ context.Context, roleID int64) error {
	if _, found := store.roles[roleID]; !found {
		return apperr.NotFound("Role")
	}
	delete(store.roles, roleID)
	delete(store.grants, roleID)
	return nil
}

func (store *fakeStore) CountUsersWithRole(_ context.Context, roleID int64) (int64, error) {
	var count int64
	for _, assigned := range store.userRoles {
		if assigned == roleID {
			count++
		}
	}
	return count, nil
}

func (store *fakeStore) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	permissions := []rbac.Permission{}
	for _, permission := range store.catalog {
		permissions = append(permissions, permission)
	}
	return permissions, nil
}

func (store *fakeStore) ListRolePermissions(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	return store.FindPermissionsByIDs(ctx, store.grants[roleID])
}

func (store *fakeStore) FindPermissionsByIDs(_ context.Context, permissionIDs []int64) ([]rbac.Permission, error) {
	permissions := []rbac.Permission{}
	seen := map[int64]struct{}{}
	for _, id := range permissionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if permission, found := store.catalog[id]; found {
			permissions = append(permissions, permission)
		}
	}
	return permissions, nil
}

func (store *fakeStore) ResolveUserPermissions(ctx context.Context, userID string) (sec.PermissionSet, error) {
	store.resolveHits++
	roleID, found := store.userRoles[userID]
	if !found {
		return nil, apperr.NotFound("User")
	}
	return store.ResolveRolePermissions(ctx, roleID)
}

func (store *fakeStore) ResolveRolePermissions(_ context.Context, roleID int64) (sec.PermissionSet, error) {
	set := sec.PermissionSet{}
	for _, id := range store.grants[roleID] {
		if permission, found := store.catalog[id]; found {
			set.Add(permission.Name)
		}
	}
	return set, nil
}

func newTestService(store *fakeStore) (*rbac.Service, *rbac.PermissionCache) {
	cache := rbac.NewPermissionCache(rbac.CacheOptions{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return rbac.NewService(store, store, store, cache, logger), cache
}

func adminActor() *sec.AuthUser {
	return &sec.AuthUser{
		UserID:      "admin-1",
		Username:    "root",
		RoleID:      rbac.RoleAdmin,
		RoleName:    "admin",
		Permissions: sec.NewPermissionSet("games.read", "games.create", "users.delete", "roles.update"),
	}
}

// # System Role Guards

/*
TestService_SystemRolesAreImmutable verifies that update, re-permission, and
delete are all rejected for the three system roles.
*/
func TestService_SystemRolesAreImmutable(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	actor := adminActor()
	ctx := context.Background()

	for _, roleID := range []int64{rbac.RoleAdmin, rbac.RoleUser, rbac.RoleGuest} {
		_, err := service.UpdateRole(ctx, actor, roleID, rbac.UpdateRoleInput{Name: pointer.To("renamed")})
		requireForbidden(t, err)

		_, err = service.UpdateRolePermissions(ctx, actor, roleID, []int64{1})
		requireForbidden(t, err)

		err = service.DeleteRole(ctx, actor, roleID)
		requireForbidden(t, err)
	}

	// Nothing was mutated
	assert.Equal(t, "admin", store.roles[rbac.RoleAdmin].Name)
	assert.Len(t, store.roles, 3)
}

func requireForbidden(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "FORBIDDEN", appError.Code)
}

// # Escalation Guard

/*
TestService_EscalationRejected verifies that an actor cannot grant a
permission they do not themselves hold, and that the error names it.
*/
func TestService_EscalationRejected(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	// Actor holds roles.update but NOT users.delete
	actor := &sec.AuthUser{
		UserID:      "mod-1",
		Permissions: sec.NewPermissionSet("games.read", "roles.update"),
	}

	_, err := service.CreateRole(ctx, actor, rbac.CreateRoleInput{
		Name:          "moderator",
		PermissionIDs: []int64{1, 3},
	})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "FORBIDDEN", appError.Code)
	assert.Contains(t, appError.Message, "users.delete")
}

/*
TestService_EscalationEmptyListPasses verifies that an empty requested set
passes unconditionally: a role with zero grants is valid.
*/
func TestService_EscalationEmptyListPasses(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	actor := &sec.AuthUser{UserID: "mod-1", Permissions: sec.PermissionSet{}}

	err := service.ValidatePermissionEscalation(ctx, nil, actor.Permissions)
	assert.NoError(t, err)

	err = service.ValidatePermissionEscalation(ctx, []int64{}, actor.Permissions)
	assert.NoError(t, err)
}

/*
TestService_EscalationUnknownIDRejected verifies that a permission ID absent
from the catalog fails validation instead of being silently dropped.
*/
func TestService_EscalationUnknownIDRejected(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	err := service.ValidatePermissionEscalation(ctx, []int64{999}, adminActor().Permissions)

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "VALIDATION_ERROR", appError.Code)
}

// # Role Lifecycle

/*
TestService_CreateRole verifies the happy path: metadata validation,
escalation pass, and grant persistence.
*/
func TestService_CreateRole(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, adminActor(), rbac.CreateRoleInput{
		Name:          "curator",
		Description:   "Curates the archive",
		Priority:      30,
		PermissionIDs: []int64{1, 2},
	})

	require.NoError(t, err)
	assert.Equal(t, "curator", role.Name)
	assert.False(t, role.IsSystem())
	assert.Len(t, role.Permissions, 2)
	assert.Equal(t, []int64{1, 2}, store.grants[role.ID])
}

/*
TestService_CreateRoleDuplicateName verifies the uniqueness conflict.
*/
func TestService_CreateRoleDuplicateName(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	_, err := service.CreateRole(ctx, adminActor(), rbac.CreateRoleInput{Name: "admin"})

	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

/*
TestService_DeleteRoleInUse verifies that a role still held by a user
cannot be deleted.
*/
func TestService_DeleteRoleInUse(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, adminActor(), rbac.CreateRoleInput{Name: "curator"})
	require.NoError(t, err)

	store.userRoles["user-1"] = role.ID

	err = service.DeleteRole(ctx, adminActor(), role.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// Unassign and retry
	delete(store.userRoles, "user-1")
	require.NoError(t, service.DeleteRole(ctx, adminActor(), role.ID))

	_, err = service.GetRole(ctx, role.ID)
	assert.True(t, apperr.IsNotFound(err))
}

// # Cache Interaction

/*
TestService_UserPermissionsCached verifies resolve-on-miss population: the
second lookup must be served from the cache without touching the resolver.
*/
func TestService_UserPermissionsCached(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, adminActor(), rbac.CreateRoleInput{
		Name:          "curator",
		PermissionIDs: []int64{1},
	})
	require.NoError(t, err)
	store.userRoles["user-1"] = role.ID

	first, err := service.UserPermissions(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.Has("games.read"))
	assert.Equal(t, 1, store.resolveHits)

	second, err := service.UserPermissions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.Names(), second.Names())
	assert.Equal(t, 1, store.resolveHits, "second lookup must be a cache hit")
}

/*
TestService_UpdateRolePermissionsInvalidatesCache verifies that replacing a
role's grants drops every cached user set, so the next lookup observes the
new grants immediately.
*/
func TestService_UpdateRolePermissionsInvalidatesCache(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(store)
	ctx := context.Background()
	actor := adminActor()

	role, err := service.CreateRole(ctx, actor, rbac.CreateRoleInput{
		Name:          "curator",
		PermissionIDs: []int64{1, 3},
	})
	require.NoError(t, err)
	store.userRoles["user-1"] = role.ID

	// 1. Populate the cache with the elevated set
	before, err := service.UserPermissions(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, before.Has("users.delete"))

	// 2. Revoke users.delete from the role
	_, err = service.UpdateRolePermissions(ctx, actor, role.ID, []int64{1})
	require.NoError(t, err)

	// 3. The revoked permission must not be served from a stale cache entry
	after, err := service.UserPermissions(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, after.Has("users.delete"))
	assert.True(t, after.Has("games.read"))
}
