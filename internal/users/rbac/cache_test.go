// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/rbac"
)

// fakeClock provides a manually-advanced time source for TTL tests.
type fakeClock struct {
	current time.Time
}

func (clock *fakeClock) Now() time.Time {
	return clock.current
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.current = clock.current.Add(d)
}

func newTestCache(clock *fakeClock) *rbac.PermissionCache {
	return rbac.NewPermissionCache(rbac.CacheOptions{
		UserTTL: 5 * time.Minute,
		RoleTTL: 10 * time.Minute,
		Clock:   clock.Now,
	})
}

/*
TestCache_HitWithinTTL verifies that a stored set is returned identically
until its TTL elapses, and counts as a miss afterwards.
*/
func TestCache_HitWithinTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := newTestCache(clock)

	permissions := sec.NewPermissionSet("games.read", "playlists.create")
	cache.SetUserPermissions("user-1", permissions)

	// 1. Hit just before expiry
	clock.Advance(5*time.Minute - time.Second)
	got, found := cache.GetUserPermissions("user-1")
	assert.True(t, found)
	assert.Equal(t, permissions.Names(), got.Names())

	// 2. Miss just after expiry
	clock.Advance(2 * time.Second)
	_, found = cache.GetUserPermissions("user-1")
	assert.False(t, found)
}

/*
TestCache_ReturnsClone verifies that mutating a returned set cannot poison
the cached copy.
*/
func TestCache_ReturnsClone(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))

	got, found := cache.GetUserPermissions("user-1")
	assert.True(t, found)
	got.Add("users.delete")

	// The cached copy must be untouched
	again, found := cache.GetUserPermissions("user-1")
	assert.True(t, found)
	assert.False(t, again.Has("users.delete"))
}

/*
TestCache_InvalidateUser verifies that invalidating one user leaves other
users' entries intact.
*/
func TestCache_InvalidateUser(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))
	cache.SetUserPermissions("user-2", sec.NewPermissionSet("games.read"))

	cache.InvalidateUser("user-1")

	_, found := cache.GetUserPermissions("user-1")
	assert.False(t, found)

	_, found = cache.GetUserPermissions("user-2")
	assert.True(t, found)
}

/*
TestCache_InvalidateRoleClearsAllUsers verifies the conservative contract:
invalidating a role drops the role entry AND the entire user tier.
*/
func TestCache_InvalidateRoleClearsAllUsers(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))
	cache.SetUserPermissions("user-2", sec.NewPermissionSet("users.delete"))
	cache.SetRolePermissions(7, sec.NewPermissionSet("games.read"))
	cache.SetRolePermissions(8, sec.NewPermissionSet("games.read"))

	cache.InvalidateRole(7)

	// 1. The invalidated role entry is gone
	_, found := cache.GetRolePermissions(7)
	assert.False(t, found)

	// 2. Unrelated role entries survive
	_, found = cache.GetRolePermissions(8)
	assert.True(t, found)

	// 3. EVERY user entry is gone, even those unrelated to the role
	_, found = cache.GetUserPermissions("user-1")
	assert.False(t, found)
	_, found = cache.GetUserPermissions("user-2")
	assert.False(t, found)
}

/*
TestCache_InvalidateAllUsers verifies the bulk user-tier clear.
*/
func TestCache_InvalidateAllUsers(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))
	cache.SetRolePermissions(2, sec.NewPermissionSet("games.read"))

	cache.InvalidateAllUsers()

	_, found := cache.GetUserPermissions("user-1")
	assert.False(t, found)

	// Role tier is not affected
	_, found = cache.GetRolePermissions(2)
	assert.True(t, found)
}

/*
TestCache_RoleTTLIndependent verifies the role tier uses its own, longer TTL.
*/
func TestCache_RoleTTLIndependent(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))
	cache.SetRolePermissions(2, sec.NewPermissionSet("games.read"))

	// 1. Past the user TTL but inside the role TTL
	clock.Advance(7 * time.Minute)
	_, found := cache.GetUserPermissions("user-1")
	assert.False(t, found)
	_, found = cache.GetRolePermissions(2)
	assert.True(t, found)

	// 2. Past the role TTL too
	clock.Advance(4 * time.Minute)
	_, found = cache.GetRolePermissions(2)
	assert.False(t, found)
}

/*
TestCache_Stats verifies the entry-count snapshot used for introspection.
*/
func TestCache_Stats(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := newTestCache(clock)

	cache.SetUserPermissions("user-1", sec.NewPermissionSet("games.read"))
	cache.SetUserPermissions("user-2", sec.NewPermissionSet("games.read"))
	cache.SetRolePermissions(2, sec.NewPermissionSet("games.read"))

	stats := cache.Stats()
	assert.Equal(t, 2, stats.UserEntries)
	assert.Equal(t, 1, stats.RoleEntries)
}
