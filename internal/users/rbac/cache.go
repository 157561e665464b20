// Copyright (c) 2026 Arcadia. All rights reserved.

package rbac

import (
	"log/slog"
	"sync"
	"time"

	"github.com/darkraise/arcadia/internal/platform/sec"
)

// # Cache Configuration

const (
	// DefaultUserCacheTTL bounds how long a user's resolved permission set
	// may be served without re-resolving.
	DefaultUserCacheTTL = 5 * time.Minute

	// DefaultRoleCacheTTL bounds the per-role permission cache, used by the
	// guest sentinel lookup and future batched resolves.
	DefaultRoleCacheTTL = 10 * time.Minute

	// DefaultSweepInterval is how often expired entries are purged so the
	// maps do not grow unbounded between explicit invalidations.
	DefaultSweepInterval = 5 * time.Minute
)

// CacheOptions configures a [PermissionCache]. Zero values fall back to the
// package defaults; Clock is injectable for deterministic tests.
type CacheOptions struct {
	UserTTL       time.Duration
	RoleTTL       time.Duration
	SweepInterval time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
}

// CacheStats is an operational snapshot for introspection endpoints.
// It reports sizes, not hit rates — the cache is not instrumented for hits.
type CacheStats struct {
	UserEntries int `json:"user_entries"`
	RoleEntries int `json:"role_entries"`
}

type cacheEntry struct {
	permissions sec.PermissionSet
	expiresAt   time.Time
}

// # Permission Cache

// PermissionCache is a process-local, two-tier TTL cache in front of the
// permission resolver.
//
// # Concurrency
//
// The two maps are the only shared mutable state in the auth core. All
// access goes through the exported methods under a single RWMutex — no other
// component may reach the internals.
//
// # Consistency Contract
//
// InvalidateRole drops the role entry AND conservatively clears the entire
// user tier: there is no reverse index from a role to its users without a
// database query, and a stale elevated permission is a security incident
// while a cold cache is merely a slow request. Callers must preserve this
// trade-off.
type PermissionCache struct {
	mu    sync.RWMutex
	users map[string]cacheEntry
	roles map[int64]cacheEntry

	userTTL       time.Duration
	roleTTL       time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPermissionCache constructs a cache with the given options.
// The sweep goroutine is not running until [PermissionCache.Start] is called.
func NewPermissionCache(options CacheOptions) *PermissionCache {
	if options.UserTTL <= 0 {
		options.UserTTL = DefaultUserCacheTTL
	}
	if options.RoleTTL <= 0 {
		options.RoleTTL = DefaultRoleCacheTTL
	}
	if options.SweepInterval <= 0 {
		options.SweepInterval = DefaultSweepInterval
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &PermissionCache{
		users:         make(map[string]cacheEntry),
		roles:         make(map[int64]cacheEntry),
		userTTL:       options.UserTTL,
		roleTTL:       options.RoleTTL,
		sweepInterval: options.SweepInterval,
		now:           options.Clock,
		logger:        options.Logger,
		stop:          make(chan struct{}),
	}
}

// # User Tier

// GetUserPermissions returns the cached permission set for a user, or
// (nil, false) on a miss. Expired entries count as misses, never as hits.
// The returned set is a clone: mutating it cannot poison the cache.
func (cache *PermissionCache) GetUserPermissions(userID string) (sec.PermissionSet, bool) {
	cache.mu.RLock()
	entry, found := cache.users[userID]
	cache.mu.RUnlock()

	if !found || cache.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.permissions.Clone(), true
}

// SetUserPermissions stores a freshly-resolved permission set for a user.
func (cache *PermissionCache) SetUserPermissions(userID string, permissions sec.PermissionSet) {
	entry := cacheEntry{
		permissions: permissions.Clone(),
		expiresAt:   cache.now().Add(cache.userTTL),
	}

	cache.mu.Lock()
	cache.users[userID] = entry
	cache.mu.Unlock()
}

// InvalidateUser drops the cached entry for a single user.
func (cache *PermissionCache) InvalidateUser(userID string) {
	cache.mu.Lock()
	delete(cache.users, userID)
	cache.mu.Unlock()
}

// InvalidateAllUsers drops every cached user entry.
func (cache *PermissionCache) InvalidateAllUsers() {
	cache.mu.Lock()
	cache.users = make(map[string]cacheEntry)
	cache.mu.Unlock()
}

// # Role Tier

// GetRolePermissions returns the cached permission set for a role, or
// (nil, false) on a miss.
func (cache *PermissionCache) GetRolePermissions(roleID int64) (sec.PermissionSet, bool) {
	cache.mu.RLock()
	entry, found := cache.roles[roleID]
	cache.mu.RUnlock()

	if !found || cache.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.permissions.Clone(), true
}

// SetRolePermissions stores a freshly-resolved permission set for a role.
func (cache *PermissionCache) SetRolePermissions(roleID int64, permissions sec.PermissionSet) {
	entry := cacheEntry{
		permissions: permissions.Clone(),
		expiresAt:   cache.now().Add(cache.roleTTL),
	}

	cache.mu.Lock()
	cache.roles[roleID] = entry
	cache.mu.Unlock()
}

// InvalidateRole drops the role's cached entry and clears the ENTIRE user
// tier (see the consistency contract in the type docs).
func (cache *PermissionCache) InvalidateRole(roleID int64) {
	cache.mu.Lock()
	delete(cache.roles, roleID)
	cache.users = make(map[string]cacheEntry)
	cache.mu.Unlock()
}

// # Lifecycle

// Start launches the periodic sweep goroutine. It is a no-op to call
// methods on a cache that was never started; Start only adds housekeeping.
func (cache *PermissionCache) Start() {
	go func() {
		ticker := time.NewTicker(cache.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := cache.sweep()
				if removed > 0 {
					cache.logger.Debug("permission_cache_swept",
						slog.Int("removed", removed),
					)
				}
			case <-cache.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (cache *PermissionCache) Stop() {
	cache.stopOnce.Do(func() {
		close(cache.stop)
	})
}

// Stats returns the current entry counts for operational introspection.
func (cache *PermissionCache) Stats() CacheStats {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	return CacheStats{
		UserEntries: len(cache.users),
		RoleEntries: len(cache.roles),
	}
}

// sweep removes expired entries from both tiers and reports how many were
// purged.
func (cache *PermissionCache) sweep() int {
	currentTime := cache.now()
	removed := 0

	cache.mu.Lock()
	defer cache.mu.Unlock()

	for userID, entry := range cache.users {
		if currentTime.After(entry.expiresAt) {
			delete(cache.users, userID)
			removed++
		}
	}
	for roleID, entry := range cache.roles {
		if currentTime.After(entry.expiresAt) {
			delete(cache.roles, roleID)
			removed++
		}
	}

	return removed
}
