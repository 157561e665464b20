// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/uuid"
)

// # Contracts & Types

// PermissionSource resolves effective permission sets, cache-first.
//
// The concrete implementation is the rbac service. The contract lives here
// so this package depends on behavior, not on the rbac wiring.
type PermissionSource interface {
	// UserPermissions returns a user's effective permission set.
	UserPermissions(context context.Context, userID string) (sec.PermissionSet, error)

	// RolePermissions returns the permission set granted to a role.
	RolePermissions(context context.Context, roleID int64) (sec.PermissionSet, error)
}

// SettingsProvider is the external system-settings collaborator.
//
// Registration and guest toggles are runtime settings owned elsewhere; this
// package only reads them at decision points.
type SettingsProvider interface {
	// RegistrationEnabled reports whether new accounts may self-register.
	RegistrationEnabled(context context.Context) bool

	// GuestAccessEnabled reports whether anonymous requests receive the
	// guest sentinel identity.
	GuestAccessEnabled(context context.Context) bool

	// SeedDefaults provisions default per-user settings for a new account.
	SeedDefaults(context context.Context, userID string) error
}

// StaticSettings is a [SettingsProvider] backed by boot-time configuration,
// used when no settings service is wired.
type StaticSettings struct {
	Registration bool
	Guest        bool
}

func (settings StaticSettings) RegistrationEnabled(context.Context) bool { return settings.Registration }
func (settings StaticSettings) GuestAccessEnabled(context.Context) bool  { return settings.Guest }
func (settings StaticSettings) SeedDefaults(context.Context, string) error {
	return nil
}

// Service composes credentials, the attempt ledger, tokens, and permission
// resolution into the login / register / refresh / verify / logout flows.
//
// # Review Process
//
// This service is critical for security. Any changes to the login pipeline,
// lockout ordering, or token rotation must be reviewed by the security team.
type Service struct {
	credentials                 *CredentialStore
	ledger                      *LoginAttemptLedger
	tokens                      *TokenService
	userRepository              UserRepository
	resetTokenRepository        ResetTokenRepository
	verificationTokenRepository VerificationTokenRepository
	permissions                 PermissionSource
	settings                    SettingsProvider
	logger                      *slog.Logger
}

// NewService constructs the authentication orchestrator.
func NewService(
	credentials *CredentialStore,
	ledger *LoginAttemptLedger,
	tokens *TokenService,
	userRepo UserRepository,
	resetRepo ResetTokenRepository,
	verifyRepo VerificationTokenRepository,
	permissions PermissionSource,
	settings SettingsProvider,
	logger *slog.Logger,
) *Service {
	return &Service{
		credentials:                 credentials,
		ledger:                      ledger,
		tokens:                      tokens,
		userRepository:              userRepo,
		resetTokenRepository:        resetRepo,
		verificationTokenRepository: verifyRepo,
		permissions:                 permissions,
		settings:                    settings,
		logger:                      logger,
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login     string // Can be Username or Email
	Password  string
	UserAgent string
	IPAddress string
}

// LoginSession represents a successfully established user session.
type LoginSession struct {
	Tokens      *TokenPair
	User        *User
	Permissions sec.PermissionSet
}

/*
Login runs the full authentication pipeline.

Description: The pipeline order is load-bearing:

 1. Lockout check — a locked username or IP exits before credentials are
    even examined, so lockout cannot be used as a password oracle.
 2. Credential check — uniform invalid-credentials error.
 3. Record attempt — runs for BOTH outcomes of the credential check before
    this function returns, so the ledger is the complete audit trail.
 4. Issue tokens, then pre-populate the permission cache.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginSession: Transport-ready session
  - error: LockedOut, Unauthorized, Forbidden, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginSession, error) {

	// ── 1. Lockout check ──
	locked, err := service.ledger.IsLocked(context, input.Login, input.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("auth_service_lockout_check_failed: %w", err)
	}
	if locked {
		service.logger.Warn("login_rejected_locked_out",
			slog.String("login", input.Login),
			slog.String("ip_address", input.IPAddress),
		)
		return nil, apperr.LockedOut("Too many failed attempts. Try again later.")
	}

	// ── 2. Credential check + 3. Record attempt (both outcomes) ──
	user, err := service.credentials.Verify(context, input.Login, input.Password)
	service.ledger.Record(context, input.Login, input.IPAddress, err == nil)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	// ── 4. Issue tokens ──
	pair, err := service.tokens.Issue(context, user, ClientInfo{
		UserAgent: input.UserAgent,
		IPAddress: input.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	// ── 5. Pre-populate the permission cache ──
	permissions, err := service.permissions.UserPermissions(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_login_resolve_failed: %w", err)
	}

	service.logger.Info("user_logged_in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &LoginSession{
		Tokens:      pair,
		User:        user,
		Permissions: permissions,
	}, nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	UserAgent   string
	IPAddress   string
}

/*
Register validates, hashes, and persists a brand new user account, then
logs it straight in.

Description: The very first account on a fresh install receives the admin
role; everyone after that starts as a regular user. Default per-user
settings are seeded best-effort through the settings collaborator.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *LoginSession: The new account with its first token pair
  - error: Forbidden (registration disabled), Conflict, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*LoginSession, error) {

	// ── 1. Registration toggle ──
	if !service.settings.RegistrationEnabled(context) {
		return nil, apperr.Forbidden("User registration is disabled")
	}

	// ── 2. Uniqueness checks. Client-safe Conflict errors. ──
	if _, err := service.userRepository.FindByEmail(context, input.Email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}
	if _, err := service.userRepository.FindByUsername(context, input.Username); err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// ── 3. First user becomes admin ──
	roleID := rbac.RoleUser
	accountCount, err := service.userRepository.Count(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_count_failed: %w", err)
	}
	if accountCount == 0 {
		roleID = rbac.RoleAdmin
	}

	// ── 4. Hash and persist ──
	hashedPassword, err := service.credentials.Hash(context, input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		DisplayName:  input.DisplayName,
		RoleID:       roleID,
		IsActive:     true,
		IsVerified:   false,
	}

	if err := service.userRepository.Create(context, user); err != nil {
		return nil, err
	}

	// Hydrate the role name without re-querying on a fresh install.
	created, err := service.userRepository.FindByID(context, user.ID)
	if err == nil {
		user = created
	}

	// ── 5. Seed default settings (best-effort) ──
	if err := service.settings.SeedDefaults(context, user.ID); err != nil {
		service.logger.Error("register_seed_defaults_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	// ── 6. Verification token side effect ──
	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err == nil {
		_ = service.verificationTokenRepository.Set(context, token, user.ID, VerificationTokenTTL)
		// TODO: Trigger email service with the verification link
	}

	// ── 7. Issue the first token pair ──
	pair, err := service.tokens.Issue(context, user, ClientInfo{
		UserAgent: input.UserAgent,
		IPAddress: input.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	permissions, err := service.permissions.UserPermissions(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_resolve_failed: %w", err)
	}

	service.logger.Info("user_registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Int64("role_id", user.RoleID),
	)

	return &LoginSession{
		Tokens:      pair,
		User:        user,
		Permissions: permissions,
	}, nil
}

// # Session Management

/*
Refresh implements single-use refresh token rotation.

Description: Delegates the revoke-and-replace to the storage transaction,
re-checks that the owning account is still active, then signs a fresh
access token against permissions re-resolved through the cache.

Parameters:
  - context: context.Context
  - refreshToken: string
  - userAgent: string
  - ipAddress: string

Returns:
  - *LoginSession: Rotated session credentials
  - error: Unauthorized or storage failures
*/
func (service *Service) Refresh(context context.Context, refreshToken, userAgent, ipAddress string) (*LoginSession, error) {

	// ── 1. Atomic rotation ──
	newRefreshToken, userID, expiresAt, err := service.tokens.Rotate(context, refreshToken, ClientInfo{
		UserAgent: userAgent,
		IPAddress: ipAddress,
	})
	if err != nil {
		return nil, err
	}

	// ── 2. Account liveness re-check ──
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil || !user.IsActive {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 3. Fresh access token ──
	accessToken, expiresIn, err := service.tokens.SignAccess(user)
	if err != nil {
		return nil, err
	}

	// ── 4. Re-resolve permissions through the cache ──
	permissions, err := service.permissions.UserPermissions(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_resolve_failed: %w", err)
	}

	return &LoginSession{
		Tokens: &TokenPair{
			AccessToken:      accessToken,
			RefreshToken:     newRefreshToken,
			TokenType:        "Bearer",
			ExpiresIn:        expiresIn,
			RefreshExpiresAt: expiresAt,
		},
		User:        user,
		Permissions: permissions,
	}, nil
}

/*
Verify resolves a bearer access token into a live, fully-hydrated identity.

Description: Runs on every protected request. Signature validity alone is
never enough: the account is re-loaded (it must still exist and be active)
and the permission set is resolved through the cache, so deactivation and
permission revocation take effect within one cache TTL even while a
signature-valid token is still circulating.

Parameters:
  - context: context.Context
  - accessToken: string

Returns:
  - *sec.AuthUser: Hydrated request identity
  - error: apperr.Unauthorized for ANY failure, uniformly
*/
func (service *Service) Verify(context context.Context, accessToken string) (*sec.AuthUser, error) {
	claims, err := service.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByID(context, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	permissions, err := service.permissions.UserPermissions(context, user.ID)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	return &sec.AuthUser{
		UserID:      user.ID,
		Username:    user.Username,
		RoleID:      user.RoleID,
		RoleName:    user.RoleName,
		Permissions: permissions,
	}, nil
}

/*
Guest returns the sentinel identity for anonymous requests.

Description: The guest is not a database user — it is an identity with an
empty UserID carrying the guest role's permission set, resolved through the
role tier of the cache. When guest access is disabled, anonymous requests
carry no identity at all.

Parameters:
  - context: context.Context

Returns:
  - *sec.AuthUser: Guest sentinel
  - error: apperr.Unauthorized when guest access is disabled
*/
func (service *Service) Guest(context context.Context) (*sec.AuthUser, error) {
	if !service.settings.GuestAccessEnabled(context) {
		return nil, apperr.Unauthorized("Guest access is disabled")
	}

	permissions, err := service.permissions.RolePermissions(context, rbac.RoleGuest)
	if err != nil {
		return nil, fmt.Errorf("auth_service_guest_resolve_failed: %w", err)
	}

	return &sec.AuthUser{
		Username:    "guest",
		RoleID:      rbac.RoleGuest,
		RoleName:    "guest",
		Permissions: permissions,
	}, nil
}

/*
Logout revokes the single presented refresh token.

Description: Idempotent — revoking an already-revoked or unknown token is
not an error. The short-lived access token is left to expire on its own.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	if err := service.tokens.Revoke(context, refreshToken); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	return nil
}

/*
LogoutEverywhere revokes every live refresh token for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Revocation failures
*/
func (service *Service) LogoutEverywhere(context context.Context, userID string) error {
	if err := service.tokens.RevokeAll(context, userID); err != nil {
		return fmt.Errorf("auth_service_logout_everywhere_failed: %w", err)
	}

	service.logger.Info("user_sessions_revoked_all", slog.String("user_id", userID))
	return nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Generates a secure token and saves it to Redis.
NOTE: We don't return NOT_FOUND if the email doesn't exist to prevent user
enumeration.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: Discovery token
  - error: Generation errors
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (string, error) {
	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		return "", nil
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	if err := service.resetTokenRepository.Set(context, token, user.ID, ResetTokenTTL); err != nil {
		return "", fmt.Errorf("auth_service_save_reset_token_failed: %w", err)
	}

	return token, nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Verifies the token, hashes the new password, updates the DB,
and revokes all live sessions for security cleanup.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: Validation or update failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	userID, err := service.resetTokenRepository.Get(context, token)
	if err != nil {
		return err
	}

	hashedPassword, err := service.credentials.Hash(context, newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_reset_password_update_failed: %w", err)
	}

	// Security cleanup: revoke EVERY live session for this user
	_ = service.tokens.RevokeAll(context, userID)
	_ = service.resetTokenRepository.Delete(context, token)

	service.logger.Info("user_password_reset", slog.String("user_id", userID))
	return nil
}

/*
ChangePassword allows an authenticated user to update their credentials.

Description: Verifies the current password, swaps the hash, then revokes
every OTHER live session so stolen devices are forced to re-login. The
presented refresh token survives and is the only one left alive.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string
  - currentRefreshToken: string

Returns:
  - error: Unauthorized or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword, currentRefreshToken string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if _, err := service.credentials.Verify(context, user.Username, currentPassword); err != nil {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := service.credentials.Hash(context, newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	// Force re-login on every other device; the presented session survives.
	if err := service.revokeAllExcept(context, userID, currentRefreshToken); err != nil {
		service.logger.Error("change_password_revoke_others_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	service.logger.Info("user_password_changed", slog.String("user_id", userID))
	return nil
}

/*
VerifyEmail confirms a user's email address using a secure token.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Database or resolution errors
*/
func (service *Service) VerifyEmail(context context.Context, token string) error {
	userID, err := service.verificationTokenRepository.Get(context, token)
	if err != nil {
		return err
	}

	if err := service.userRepository.MarkVerified(context, userID); err != nil {
		return fmt.Errorf("auth_service_verify_email_failed: %w", err)
	}

	_ = service.verificationTokenRepository.Delete(context, token)
	return nil
}

// # Maintenance

/*
RunMaintenance purges expired refresh tokens and aged attempt rows.

Description: Invoked by the background ticker. Failures are logged, never
propagated — maintenance must not take the API down.

Parameters:
  - context: context.Context
  - attemptRetention: time.Duration
*/
func (service *Service) RunMaintenance(context context.Context, attemptRetention time.Duration) {
	if err := service.tokens.PurgeExpired(context); err != nil {
		service.logger.Error("maintenance_purge_tokens_failed", slog.Any("error", err))
	}

	if err := service.ledger.Cleanup(context, attemptRetention); err != nil {
		service.logger.Error("maintenance_cleanup_attempts_failed", slog.Any("error", err))
	}
}

// revokeAllExcept revokes every live token for the user except the one
// presented with the current request.
func (service *Service) revokeAllExcept(context context.Context, userID, refreshToken string) error {
	keepHash := sec.HashToken(refreshToken)

	tokens, err := service.tokens.tokenRepository.ListActiveByUserID(context, userID)
	if err != nil {
		return err
	}

	for _, token := range tokens {
		if token.TokenHash == keepHash {
			continue
		}
		if err := service.tokens.tokenRepository.Revoke(context, token.TokenHash); err != nil {
			return err
		}
	}

	return nil
}
