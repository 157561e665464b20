// Copyright (c) 2026 Arcadia. All rights reserved.

package account_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/users/account"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/pagination"
	"github.com/darkraise/arcadia/pkg/pointer"
)

// # Test Fakes

type fakeAccountRepo struct {
	users map[string]*auth.User
}

func (repo *fakeAccountRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	if user, found := repo.users[id]; found {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeAccountRepo) List(_ context.Context, search string, params pagination.Params) ([]auth.User, int, error) {
	matched := []auth.User{}
	for _, user := range repo.users {
		if search == "" || strings.Contains(user.Username, search) || strings.Contains(user.Email, search) {
			matched = append(matched, *user)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

	total := len(matched)
	offset := params.Offset()
	if offset > total {
		offset = total
	}
	end := offset + params.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (repo *fakeAccountRepo) UpdateProfile(_ context.Context, user *auth.User) error {
	if stored, found := repo.users[user.ID]; found {
		stored.DisplayName = user.DisplayName
	}
	return nil
}

func (repo *fakeAccountRepo) UpdateRole(_ context.Context, userID string, roleID int64) error {
	user, found := repo.users[userID]
	if !found {
		return apperr.NotFound("User")
	}
	user.RoleID = roleID
	return nil
}

func (repo *fakeAccountRepo) SetActive(_ context.Context, userID string, active bool) error {
	user, found := repo.users[userID]
	if !found {
		return apperr.NotFound("User")
	}
	user.IsActive = active
	return nil
}

func (repo *fakeAccountRepo) SoftDelete(_ context.Context, id string) error {
	delete(repo.users, id)
	return nil
}

func (repo *fakeAccountRepo) CountActiveAdmins(_ context.Context) (int64, error) {
	var count int64
	for _, user := range repo.users {
		if user.RoleID == rbac.RoleAdmin && user.IsActive {
			count++
		}
	}
	return count, nil
}

type fakeSessionRepo struct {
	sessions   map[string][]account.SessionInfo // keyed by user ID
	revokedAll []string
}

func (repo *fakeSessionRepo) FindActiveByUserID(_ context.Context, userID, _ string) ([]account.SessionInfo, error) {
	return repo.sessions[userID], nil
}

func (repo *fakeSessionRepo) Revoke(_ context.Context, userID, sessionID string) error {
	kept := []account.SessionInfo{}
	for _, session := range repo.sessions[userID] {
		if session.ID != sessionID {
			kept = append(kept, session)
		}
	}
	repo.sessions[userID] = kept
	return nil
}

func (repo *fakeSessionRepo) RevokeOthers(_ context.Context, userID, _ string) error {
	repo.sessions[userID] = nil
	return nil
}

func (repo *fakeSessionRepo) RevokeAll(_ context.Context, userID string) error {
	repo.sessions[userID] = nil
	repo.revokedAll = append(repo.revokedAll, userID)
	return nil
}

type fakeRoleDirectory struct {
	known map[int64]bool
}

func (directory *fakeRoleDirectory) GetRole(_ context.Context, roleID int64) (*rbac.RoleDetail, error) {
	if !directory.known[roleID] {
		return nil, apperr.NotFound("Role")
	}
	return &rbac.RoleDetail{Role: rbac.Role{ID: roleID}}, nil
}

type fakeInvalidator struct {
	invalidated []string
}

func (invalidator *fakeInvalidator) InvalidateUser(userID string) {
	invalidator.invalidated = append(invalidator.invalidated, userID)
}

// # Harness

type harness struct {
	service     *account.Service
	accountRepo *fakeAccountRepo
	sessionRepo *fakeSessionRepo
	invalidator *fakeInvalidator
}

func newHarness(_ *testing.T) *harness {
	accountRepo := &fakeAccountRepo{users: map[string]*auth.User{}}
	sessionRepo := &fakeSessionRepo{sessions: map[string][]account.SessionInfo{}}
	invalidator := &fakeInvalidator{}
	directory := &fakeRoleDirectory{known: map[int64]bool{
		rbac.RoleAdmin: true, rbac.RoleUser: true, rbac.RoleGuest: true,
	}}

	service := account.NewService(
		accountRepo,
		sessionRepo,
		directory,
		invalidator,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &harness{
		service:     service,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		invalidator: invalidator,
	}
}

func (h *harness) seedUser(id, username string, roleID int64, active bool) {
	h.accountRepo.users[id] = &auth.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		RoleID:    roleID,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
}

// # Last-Admin Guard

/*
TestLastAdminGuard verifies the three operations that could strand an
installation without an administrator all refuse the last active admin:
deactivation, deletion, and demotion.
*/
func TestLastAdminGuard(t *testing.T) {
	h := newHarness(t)
	h.seedUser("admin-1", "root", rbac.RoleAdmin, true)
	h.seedUser("user-1", "alice", rbac.RoleUser, true)
	ctx := context.Background()

	// 1. Deactivation refused
	_, err := h.service.SetUserActive(ctx, "admin-1", false)
	assert.True(t, apperr.IsConflict(err))

	// 2. Deletion refused
	err = h.service.DeleteAccount(ctx, "admin-1")
	assert.True(t, apperr.IsConflict(err))

	// 3. Demotion refused
	_, err = h.service.AssignRole(ctx, "admin-1", rbac.RoleUser)
	assert.True(t, apperr.IsConflict(err))

	// Non-admin accounts are never guarded
	_, err = h.service.SetUserActive(ctx, "user-1", false)
	assert.NoError(t, err)
}

/*
TestLastAdminGuard_SecondAdminUnblocks verifies the guard releases once
another active admin exists.
*/
func TestLastAdminGuard_SecondAdminUnblocks(t *testing.T) {
	h := newHarness(t)
	h.seedUser("admin-1", "root", rbac.RoleAdmin, true)
	h.seedUser("admin-2", "backup", rbac.RoleAdmin, true)
	ctx := context.Background()

	user, err := h.service.AssignRole(ctx, "admin-1", rbac.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleUser, user.RoleID)

	// admin-2 is now the last one standing
	_, err = h.service.SetUserActive(ctx, "admin-2", false)
	assert.True(t, apperr.IsConflict(err))
}

/*
TestLastAdminGuard_InactiveAdminNotCounted verifies a deactivated admin does
not satisfy the guard.
*/
func TestLastAdminGuard_InactiveAdminNotCounted(t *testing.T) {
	h := newHarness(t)
	h.seedUser("admin-1", "root", rbac.RoleAdmin, true)
	h.seedUser("admin-2", "dormant", rbac.RoleAdmin, false)

	_, err := h.service.SetUserActive(context.Background(), "admin-1", false)
	assert.True(t, apperr.IsConflict(err))
}

// # Role Assignment

/*
TestAssignRole verifies the reassignment flow: role existence check, cache
invalidation, and the no-op short-circuit.
*/
func TestAssignRole(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-1", "alice", rbac.RoleUser, true)
	ctx := context.Background()

	// 1. Unknown role
	_, err := h.service.AssignRole(ctx, "user-1", 999)
	assert.True(t, apperr.IsNotFound(err))

	// 2. Unknown user
	_, err = h.service.AssignRole(ctx, "ghost", rbac.RoleUser)
	assert.True(t, apperr.IsNotFound(err))

	// 3. Successful promotion drops the user's cached permissions
	user, err := h.service.AssignRole(ctx, "user-1", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, user.RoleID)
	assert.Contains(t, h.invalidator.invalidated, "user-1")

	// 4. No-op reassignment does not invalidate again
	before := len(h.invalidator.invalidated)
	_, err = h.service.AssignRole(ctx, "user-1", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, before, len(h.invalidator.invalidated))
}

// # Deactivation

/*
TestSetUserActive_DeactivationRevokesSessions verifies deactivation kills
every live session and drops cached permissions immediately.
*/
func TestSetUserActive_DeactivationRevokesSessions(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-1", "alice", rbac.RoleUser, true)
	h.sessionRepo.sessions["user-1"] = []account.SessionInfo{{ID: "sess-1"}, {ID: "sess-2"}}

	user, err := h.service.SetUserActive(context.Background(), "user-1", false)

	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Contains(t, h.sessionRepo.revokedAll, "user-1")
	assert.Contains(t, h.invalidator.invalidated, "user-1")
}

/*
TestSetUserActive_Reactivation verifies reactivation flips the flag without
touching sessions.
*/
func TestSetUserActive_Reactivation(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-1", "alice", rbac.RoleUser, false)

	user, err := h.service.SetUserActive(context.Background(), "user-1", true)

	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Empty(t, h.sessionRepo.revokedAll)
}

// # Directory

/*
TestListUsers verifies pagination metadata and search filtering.
*/
func TestListUsers(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "alice", rbac.RoleUser, true)
	h.seedUser("u2", "bob", rbac.RoleUser, true)
	h.seedUser("u3", "carol", rbac.RoleUser, true)
	ctx := context.Background()

	page, err := h.service.ListUsers(ctx, "", pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, 3, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.TotalPages)

	filtered, err := h.service.ListUsers(ctx, "bob", pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, filtered.Users, 1)
	assert.Equal(t, "bob", filtered.Users[0].Username)
}

// # Profile

/*
TestUpdateProfile verifies the partial-update semantics.
*/
func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	h.seedUser("user-1", "alice", rbac.RoleUser, true)

	user, err := h.service.UpdateProfile(context.Background(), "user-1", account.UpdateProfileInput{
		DisplayName: pointer.To("Alice A."),
	})

	require.NoError(t, err)
	assert.Equal(t, "Alice A.", user.DisplayName)

	// Nil fields leave stored state untouched
	user, err = h.service.UpdateProfile(context.Background(), "user-1", account.UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", user.DisplayName)
}
