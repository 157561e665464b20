// Copyright (c) 2026 Arcadia. All rights reserved.

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
)

// # Test Fakes

type fakeUserRepo struct {
	users       map[string]*auth.User
	failCreates bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*auth.User{}}
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	if user, found := repo.users[id]; found {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	if repo.failCreates {
		return errors.New("create failed")
	}
	switch user.RoleID {
	case rbac.RoleAdmin:
		user.RoleName = "admin"
	case rbac.RoleUser:
		user.RoleName = "user"
	}
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *fakeUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(repo.users)), nil
}

func (repo *fakeUserRepo) UpdatePassword(_ context.Context, userID, newHash string) error {
	if user, found := repo.users[userID]; found {
		user.PasswordHash = newHash
	}
	return nil
}

func (repo *fakeUserRepo) MarkVerified(_ context.Context, userID string) error {
	if user, found := repo.users[userID]; found {
		user.IsVerified = true
	}
	return nil
}

type fakeTokenRepo struct {
	tokens map[string]*auth.RefreshToken // keyed by token hash
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]*auth.RefreshToken{}}
}

func (repo *fakeTokenRepo) Create(_ context.Context, token *auth.RefreshToken) error {
	clone := *token
	repo.tokens[token.TokenHash] = &clone
	return nil
}

func (repo *fakeTokenRepo) Rotate(_ context.Context, oldTokenHash string, newToken *auth.RefreshToken) error {
	existing, found := repo.tokens[oldTokenHash]
	if !found || !existing.Active(time.Now()) {
		return apperr.Unauthorized("Invalid or expired refresh token")
	}

	now := time.Now()
	existing.RevokedAt = &now
	newToken.UserID = existing.UserID
	clone := *newToken
	repo.tokens[newToken.TokenHash] = &clone
	return nil
}

func (repo *fakeTokenRepo) Revoke(_ context.Context, tokenHash string) error {
	if token, found := repo.tokens[tokenHash]; found && token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
	}
	return nil
}

func (repo *fakeTokenRepo) RevokeAll(_ context.Context, userID string) error {
	now := time.Now()
	for _, token := range repo.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func (repo *fakeTokenRepo) ListActiveByUserID(_ context.Context, userID string) ([]auth.RefreshToken, error) {
	active := []auth.RefreshToken{}
	for _, token := range repo.tokens {
		if token.UserID == userID && token.Active(time.Now()) {
			active = append(active, *token)
		}
	}
	return active, nil
}

func (repo *fakeTokenRepo) DeleteExpired(_ context.Context) error {
	for hash, token := range repo.tokens {
		if token.ExpiresAt.Before(time.Now()) {
			delete(repo.tokens, hash)
		}
	}
	return nil
}

func (repo *fakeTokenRepo) activeCount(userID string) int {
	count := 0
	for _, token := range repo.tokens {
		if token.UserID == userID && token.Active(time.Now()) {
			count++
		}
	}
	return count
}

type fakeAttemptRepo struct {
	attempts    []auth.LoginAttempt
	failRecords bool
}

func (repo *fakeAttemptRepo) Record(_ context.Context, attempt *auth.LoginAttempt) error {
	if repo.failRecords {
		return errors.New("ledger write failed")
	}
	repo.attempts = append(repo.attempts, *attempt)
	return nil
}

func (repo *fakeAttemptRepo) CountFailures(_ context.Context, username, ipAddress string, since time.Time) (int64, int64, error) {
	var byUsername, byIP int64
	for _, attempt := range repo.attempts {
		if attempt.Success || !attempt.AttemptedAt.After(since) {
			continue
		}
		if attempt.Username == username {
			byUsername++
		}
		if attempt.IPAddress == ipAddress {
			byIP++
		}
	}
	return byUsername, byIP, nil
}

func (repo *fakeAttemptRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	kept := repo.attempts[:0]
	for _, attempt := range repo.attempts {
		if attempt.AttemptedAt.After(cutoff) {
			kept = append(kept, attempt)
		}
	}
	repo.attempts = kept
	return nil
}

// fakeKV backs both volatile token repositories in-memory.
type fakeKV struct {
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (kv *fakeKV) Set(_ context.Context, token, userID string, _ time.Duration) error {
	kv.values[token] = userID
	return nil
}

func (kv *fakeKV) Get(_ context.Context, token string) (string, error) {
	if userID, found := kv.values[token]; found {
		return userID, nil
	}
	return "", apperr.Unauthorized("Reset token is invalid or expired")
}

func (kv *fakeKV) Delete(_ context.Context, token string) error {
	delete(kv.values, token)
	return nil
}

// fakePermissions maps role IDs to permission sets; users inherit their
// role's set, mimicking the resolver join.
type fakePermissions struct {
	userRepo *fakeUserRepo
	byRole   map[int64]sec.PermissionSet
}

func (source *fakePermissions) UserPermissions(ctx context.Context, userID string) (sec.PermissionSet, error) {
	user, err := source.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return source.RolePermissions(ctx, user.RoleID)
}

func (source *fakePermissions) RolePermissions(_ context.Context, roleID int64) (sec.PermissionSet, error) {
	if set, found := source.byRole[roleID]; found {
		return set.Clone(), nil
	}
	return sec.PermissionSet{}, nil
}

// # Harness

type harness struct {
	service     *auth.Service
	userRepo    *fakeUserRepo
	tokenRepo   *fakeTokenRepo
	attemptRepo *fakeAttemptRepo
	settings    *auth.StaticSettings
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	userRepo := newFakeUserRepo()
	tokenRepo := newFakeTokenRepo()
	attemptRepo := &fakeAttemptRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher := sec.NewPasswordHasher(4) // minimum bcrypt cost keeps tests fast
	signer, err := sec.NewTokenSigner("test-secret-test-secret-test-secret", "arcadia.app")
	require.NoError(t, err)

	credentials := auth.NewCredentialStore(userRepo, hasher)
	ledger := auth.NewLoginAttemptLedger(attemptRepo, 3, 15*time.Minute, logger)
	tokens := auth.NewTokenService(signer, tokenRepo, 15*time.Minute, 24*time.Hour)

	permissions := &fakePermissions{
		userRepo: userRepo,
		byRole: map[int64]sec.PermissionSet{
			rbac.RoleAdmin: sec.NewPermissionSet("games.read", "users.delete", "roles.update"),
			rbac.RoleUser:  sec.NewPermissionSet("games.read", "playlists.create"),
			rbac.RoleGuest: sec.NewPermissionSet("games.read"),
		},
	}

	settings := &auth.StaticSettings{Registration: true, Guest: true}

	service := auth.NewService(
		credentials,
		ledger,
		tokens,
		userRepo,
		newFakeKV(),
		newFakeKV(),
		permissions,
		settings,
		logger,
	)

	return &harness{
		service:     service,
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		attemptRepo: attemptRepo,
		settings:    settings,
	}
}

func (h *harness) register(t *testing.T, username, email, password string) *auth.LoginSession {
	t.Helper()
	session, err := h.service.Register(context.Background(), auth.RegisterInput{
		Username:  username,
		Email:     email,
		Password:  password,
		UserAgent: "go-test",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return session
}

// # Registration

/*
TestRegister_FirstUserBecomesAdmin verifies the fresh-install rule: account
number one receives the admin role, account number two the default role.
*/
func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	h := newHarness(t)

	first := h.register(t, "founder", "founder@example.com", "s3cret-pass")
	assert.Equal(t, rbac.RoleAdmin, first.User.RoleID)
	assert.True(t, first.Permissions.Has("users.delete"))

	second := h.register(t, "member", "member@example.com", "s3cret-pass")
	assert.Equal(t, rbac.RoleUser, second.User.RoleID)
	assert.False(t, second.Permissions.Has("users.delete"))
}

/*
TestRegister_Disabled verifies the registration toggle rejects enrollments.
*/
func TestRegister_Disabled(t *testing.T) {
	h := newHarness(t)
	h.settings.Registration = false

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Username: "nope",
		Email:    "nope@example.com",
		Password: "s3cret-pass",
	})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "FORBIDDEN", appError.Code)
}

/*
TestRegister_DuplicateIdentity verifies Conflict on reused email or username.
*/
func TestRegister_DuplicateIdentity(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	assert.True(t, apperr.IsConflict(err))

	_, err = h.service.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Email:    "alice2@example.com",
		Password: "s3cret-pass",
	})
	assert.True(t, apperr.IsConflict(err))
}

// # Login

/*
TestLogin_Success verifies the happy path returns tokens and the resolved
permission set, and that the attempt is recorded as a success.
*/
func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")

	session, err := h.service.Login(context.Background(), auth.LoginInput{
		Login:     "alice",
		Password:  "s3cret-pass",
		IPAddress: "10.0.0.1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.NotEmpty(t, session.Tokens.RefreshToken)
	assert.True(t, session.Permissions.Has("games.read"))

	last := h.attemptRepo.attempts[len(h.attemptRepo.attempts)-1]
	assert.True(t, last.Success)
	assert.Equal(t, "alice", last.Username)
}

/*
TestLogin_WrongPasswordIsUniform verifies that unknown logins and wrong
passwords produce the same generic error, and both are recorded as failures.
*/
func TestLogin_WrongPasswordIsUniform(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")

	_, errWrongPassword := h.service.Login(context.Background(), auth.LoginInput{
		Login: "alice", Password: "wrong", IPAddress: "10.0.0.1",
	})
	_, errUnknownUser := h.service.Login(context.Background(), auth.LoginInput{
		Login: "nobody", Password: "wrong", IPAddress: "10.0.0.1",
	})

	require.Error(t, errWrongPassword)
	require.Error(t, errUnknownUser)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())

	failures := 0
	for _, attempt := range h.attemptRepo.attempts {
		if !attempt.Success {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

/*
TestLogin_LockoutByUsername verifies that reaching the failure threshold on
one username locks it even when the correct password is then supplied, and
that the lockout rejection itself is not recorded as another attempt.
*/
func TestLogin_LockoutByUsername(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")

	// Threshold is 3 in the harness; rotate IPs so only the username dimension trips.
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, ip := range ips {
		_, err := h.service.Login(context.Background(), auth.LoginInput{
			Login: "alice", Password: "wrong", IPAddress: ip,
		})
		require.Error(t, err)
	}

	recorded := len(h.attemptRepo.attempts)

	_, err := h.service.Login(context.Background(), auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.0.0.9",
	})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "LOCKED_OUT", appError.Code)
	assert.Equal(t, recorded, len(h.attemptRepo.attempts), "lockout exit must not append to the ledger")
}

/*
TestLogin_LockoutByIP verifies the OR dimension: one IP spraying different
usernames locks the IP even for a username it never tried.
*/
func TestLogin_LockoutByIP(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")

	for _, login := range []string{"bob", "carol", "dave"} {
		_, err := h.service.Login(context.Background(), auth.LoginInput{
			Login: login, Password: "wrong", IPAddress: "10.9.9.9",
		})
		require.Error(t, err)
	}

	_, err := h.service.Login(context.Background(), auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.9.9.9",
	})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "LOCKED_OUT", appError.Code)
}

/*
TestLogin_LedgerWriteFailureDoesNotBreakLogin verifies that a failed audit
write is swallowed: losing a ledger row must never fail a valid login.
*/
func TestLogin_LedgerWriteFailureDoesNotBreakLogin(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com", "s3cret-pass")
	h.attemptRepo.failRecords = true

	session, err := h.service.Login(context.Background(), auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.0.0.1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, session.Tokens.AccessToken)
}

/*
TestLogin_InactiveAccount verifies a deactivated account cannot log in even
with valid credentials.
*/
func TestLogin_InactiveAccount(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	h.userRepo.users[session.User.ID].IsActive = false

	_, err := h.service.Login(context.Background(), auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.0.0.1",
	})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "FORBIDDEN", appError.Code)
}

// # Refresh Rotation

/*
TestRefresh_RotationIsSingleUse verifies the core rotation property: a
refresh token works exactly once, its replacement works, and replaying the
consumed token fails.
*/
func TestRefresh_RotationIsSingleUse(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	ctx := context.Background()

	originalRefresh := session.Tokens.RefreshToken

	// 1. First rotation succeeds and yields a different token
	rotated, err := h.service.Refresh(ctx, originalRefresh, "go-test", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, originalRefresh, rotated.Tokens.RefreshToken)

	// 2. Replaying the consumed token fails
	_, err = h.service.Refresh(ctx, originalRefresh, "go-test", "10.0.0.1")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "UNAUTHORIZED", appError.Code)

	// 3. The replacement is live
	_, err = h.service.Refresh(ctx, rotated.Tokens.RefreshToken, "go-test", "10.0.0.1")
	assert.NoError(t, err)
}

/*
TestRefresh_InactiveAccount verifies rotation fails when the owning account
was deactivated after the token was issued.
*/
func TestRefresh_InactiveAccount(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	h.userRepo.users[session.User.ID].IsActive = false

	_, err := h.service.Refresh(context.Background(), session.Tokens.RefreshToken, "go-test", "10.0.0.1")
	require.Error(t, err)
}

// # Verify

/*
TestVerify_ResolvesLiveIdentity verifies the middleware-facing flow: a valid
access token resolves to a hydrated AuthUser with fresh permissions.
*/
func TestVerify_ResolvesLiveIdentity(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")

	identity, err := h.service.Verify(context.Background(), session.Tokens.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, session.User.ID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.True(t, identity.HasPermission("users.delete"))
}

/*
TestVerify_InactiveAccountFails verifies a signature-valid token is rejected
once the account is deactivated — liveness is re-checked every request.
*/
func TestVerify_InactiveAccountFails(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	h.userRepo.users[session.User.ID].IsActive = false

	_, err := h.service.Verify(context.Background(), session.Tokens.AccessToken)

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "UNAUTHORIZED", appError.Code)
}

/*
TestVerify_GarbageToken verifies malformed tokens fail uniformly.
*/
func TestVerify_GarbageToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}

// # Guest Sentinel

/*
TestGuest_Sentinel verifies the anonymous identity: empty UserID, guest
role permissions, and rejection when the toggle is off.
*/
func TestGuest_Sentinel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	guest, err := h.service.Guest(ctx)
	require.NoError(t, err)
	assert.Empty(t, guest.UserID)
	assert.Equal(t, rbac.RoleGuest, guest.RoleID)
	assert.True(t, guest.HasPermission("games.read"))
	assert.False(t, guest.HasPermission("users.delete"))

	h.settings.Guest = false
	_, err = h.service.Guest(ctx)
	require.Error(t, err)
}

// # Logout

/*
TestLogout_Idempotent verifies revoking unknown or already-revoked tokens
is not an error, and that a revoked token cannot rotate.
*/
func TestLogout_Idempotent(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	ctx := context.Background()

	require.NoError(t, h.service.Logout(ctx, session.Tokens.RefreshToken))
	require.NoError(t, h.service.Logout(ctx, session.Tokens.RefreshToken))
	require.NoError(t, h.service.Logout(ctx, "completely-unknown-token"))

	_, err := h.service.Refresh(ctx, session.Tokens.RefreshToken, "go-test", "10.0.0.1")
	require.Error(t, err)
}

/*
TestLogoutEverywhere verifies every live session is revoked at once.
*/
func TestLogoutEverywhere(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	ctx := context.Background()

	// Open a second session
	_, err := h.service.Login(ctx, auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.0.0.2",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.tokenRepo.activeCount(session.User.ID))

	require.NoError(t, h.service.LogoutEverywhere(ctx, session.User.ID))
	assert.Equal(t, 0, h.tokenRepo.activeCount(session.User.ID))
}

// # Password Recovery

/*
TestResetPassword_RevokesAllSessions verifies the full forgot-password flow
and its security cleanup.
*/
func TestResetPassword_RevokesAllSessions(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "alice", "alice@example.com", "s3cret-pass")
	ctx := context.Background()

	token, err := h.service.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, h.service.ResetPassword(ctx, token, "brand-new-pass"))

	// Old sessions are dead
	assert.Equal(t, 0, h.tokenRepo.activeCount(session.User.ID))

	// Old password no longer works, new one does
	_, err = h.service.Login(ctx, auth.LoginInput{
		Login: "alice", Password: "s3cret-pass", IPAddress: "10.0.0.1",
	})
	require.Error(t, err)

	_, err = h.service.Login(ctx, auth.LoginInput{
		Login: "alice", Password: "brand-new-pass", IPAddress: "10.0.0.2",
	})
	assert.NoError(t, err)
}

/*
TestRequestPasswordReset_UnknownEmail verifies no error leaks for unknown
emails (anti-enumeration) and no token is produced.
*/
func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	h := newHarness(t)

	token, err := h.service.RequestPasswordReset(context.Background(), "ghost@example.com")
	assert.NoError(t, err)
	assert.Empty(t, token)
}
