// Copyright (c) 2026 Arcadia. All rights reserved.

package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/pagination"
)

// # Service Layer

// Service orchestrates business logic for user accounts and sessions.
//
// It enforces the last-admin guard on every operation that could remove
// the final administrator's access: deactivation, deletion, and demotion.
type Service struct {
	accountRepository AccountRepository
	sessionRepository SessionRepository
	roles             RoleDirectory
	permissions       PermissionInvalidator
	logger            *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	accountRepo AccountRepository,
	sessionRepo SessionRepository,
	roles RoleDirectory,
	permissions PermissionInvalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		accountRepository: accountRepo,
		sessionRepository: sessionRepo,
		roles:             roles,
		permissions:       permissions,
		logger:            logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the full private identity of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

// UpdateProfileInput defines the mutable subset of user profile fields.
type UpdateProfileInput struct {
	DisplayName *string
}

/*
UpdateProfile applies a partial set of changes to a user's account metadata.

Description: Fetches the existing user state, overrides provided fields, and
synchronizes the change to persistent storage.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.User: The updated user profile
  - error: Update or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	// Apply delta updates
	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}

	// Persist changes
	if err := service.accountRepository.UpdateProfile(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.Info("user_profile_updated", slog.String("user_id", userID))

	return user, nil
}

/*
DeleteAccount performs a soft-deletion of a user account.

Description: Refuses to delete the last active administrator, flags the
account as deleted, and immediately terminates all active sessions to force
a global sign-out.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: apperr.Conflict for the last admin, execution failures
*/
func (service *Service) DeleteAccount(context context.Context, userID string) error {
	if err := service.guardLastAdmin(context, userID); err != nil {
		return err
	}

	if err := service.accountRepository.SoftDelete(context, userID); err != nil {
		return fmt.Errorf("account_service_delete_failed: %w", err)
	}

	// Force global revocation of sessions for the deleted account
	_ = service.sessionRepository.RevokeAll(context, userID)
	service.permissions.InvalidateUser(userID)

	service.logger.Warn("user_account_deleted", slog.String("user_id", userID))

	return nil
}

// # User Administration

/*
ListUsers retrieves one page of the administrative user directory.

Parameters:
  - context: context.Context
  - search: string (Optional username/email filter)
  - params: pagination.Params

Returns:
  - *UserPage: Page of accounts plus navigation metadata
  - error: Retrieval failures
*/
func (service *Service) ListUsers(context context.Context, search string, params pagination.Params) (*UserPage, error) {
	users, total, err := service.accountRepository.List(context, search, params)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_users_failed: %w", err)
	}

	return &UserPage{
		Users: users,
		Meta:  pagination.NewMeta(params.Page, params.Limit, total),
	}, nil
}

/*
AssignRole moves a user to a different role.

Description: The target role must exist. Demoting a user away from the admin
role is refused when they are the last active administrator. The user's
cached permissions are dropped after the change so the new role takes effect
on their next request.

Parameters:
  - context: context.Context
  - userID: string
  - roleID: int64

Returns:
  - *auth.User: The user with their new role applied
  - error: NotFound, Conflict for the last admin, storage failures
*/
func (service *Service) AssignRole(context context.Context, userID string, roleID int64) (*auth.User, error) {

	// ── 1. The target role must exist ──
	if _, err := service.roles.GetRole(context, roleID); err != nil {
		return nil, err
	}

	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	// No-op reassignment short-circuits before the guard
	if user.RoleID == roleID {
		return user, nil
	}

	// ── 2. Last-admin guard on demotion ──
	if user.RoleID == rbac.RoleAdmin {
		if err := service.guardLastAdmin(context, userID); err != nil {
			return nil, err
		}
	}

	// ── 3. Persist and invalidate ──
	if err := service.accountRepository.UpdateRole(context, userID, roleID); err != nil {
		return nil, err
	}
	service.permissions.InvalidateUser(userID)

	service.logger.Info("user_role_assigned",
		slog.String("user_id", userID),
		slog.Int64("role_id", roleID),
	)

	return service.accountRepository.FindByID(context, userID)
}

/*
SetUserActive toggles the liveness flag on an account.

Description: Deactivating the last active administrator is refused.
Deactivation revokes every session and drops cached permissions, so the
account loses access immediately rather than at token expiry.

Parameters:
  - context: context.Context
  - userID: string
  - active: bool

Returns:
  - *auth.User: The account with the new flag applied
  - error: NotFound, Conflict for the last admin, storage failures
*/
func (service *Service) SetUserActive(context context.Context, userID string, active bool) (*auth.User, error) {
	if !active {
		if err := service.guardLastAdmin(context, userID); err != nil {
			return nil, err
		}
	}

	if err := service.accountRepository.SetActive(context, userID, active); err != nil {
		return nil, err
	}

	if !active {
		_ = service.sessionRepository.RevokeAll(context, userID)
		service.permissions.InvalidateUser(userID)
	}

	service.logger.Info("user_active_changed",
		slog.String("user_id", userID),
		slog.Bool("active", active),
	)

	return service.accountRepository.FindByID(context, userID)
}

/*
guardLastAdmin rejects an operation that would remove the final active
administrator's access.

Description: Only applies when the target currently holds the admin role;
operations on non-admin accounts always pass.
*/
func (service *Service) guardLastAdmin(context context.Context, userID string) error {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if user.RoleID != rbac.RoleAdmin || !user.IsActive {
		return nil
	}

	admins, err := service.accountRepository.CountActiveAdmins(context)
	if err != nil {
		return fmt.Errorf("account_service_admin_count_failed: %w", err)
	}

	if admins <= 1 {
		return apperr.Conflict("Cannot remove the last active administrator")
	}

	return nil
}

// # Session Security

/*
ListSessions provides a list of all active device sessions for the user.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string (Optional identifying hash of the current session)

Returns:
  - []SessionInfo: List of active devices
  - error: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error) {
	sessions, err := service.sessionRepository.FindActiveByUserID(context, userID, currentTokenHash)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_sessions_failed: %w", err)
	}

	return sessions, nil
}

/*
RevokeSession terminates a specific user session by its ID.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - error: Revocation failures
*/
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	if err := service.sessionRepository.Revoke(context, userID, sessionID); err != nil {
		return fmt.Errorf("account_service_revoke_session_failed: %w", err)
	}

	service.logger.Info("user_session_revoked",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)

	return nil
}

/*
RevokeOtherSessions terminates all sessions except for the current active one.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string

Returns:
  - error: Revocation failures
*/
func (service *Service) RevokeOtherSessions(context context.Context, userID, currentTokenHash string) error {
	if err := service.sessionRepository.RevokeOthers(context, userID, currentTokenHash); err != nil {
		return fmt.Errorf("account_service_revoke_others_failed: %w", err)
	}

	service.logger.Info("user_other_sessions_revoked", slog.String("user_id", userID))

	return nil
}
