// Copyright (c) 2026 Arcadia. All rights reserved.

package sec

import "sort"

// # Permission Sets

// PermissionSet is a set of permission names ("resource.action") with O(1)
// membership tests. It is the currency of every authorization decision:
// escalation checks, middleware guards, and the permission cache all trade
// in this type rather than ad hoc slices.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given permission names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission name.
func (set PermissionSet) Has(name string) bool {
	_, ok := set[name]
	return ok
}

// Add inserts a permission name into the set.
func (set PermissionSet) Add(name string) {
	set[name] = struct{}{}
}

// Names returns the permission names in sorted order for stable transport.
func (set PermissionSet) Names() []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the set.
//
// Cache reads hand out clones so a caller mutating its view can never
// poison the shared cached entry.
func (set PermissionSet) Clone() PermissionSet {
	clone := make(PermissionSet, len(set))
	for name := range set {
		clone[name] = struct{}{}
	}
	return clone
}

// # Authenticated Identity

// AuthUser is the fully-resolved identity attached to an authenticated
// request: verified claims, a live (active) account, and the effective
// permission set resolved at request time.
type AuthUser struct {
	UserID      string        `json:"user_id"`
	Username    string        `json:"username"`
	RoleID      int64         `json:"role_id"`
	RoleName    string        `json:"role_name"`
	Permissions PermissionSet `json:"-"`
}

// HasPermission reports whether the identity holds the named permission.
func (user *AuthUser) HasPermission(name string) bool {
	return user != nil && user.Permissions.Has(name)
}
