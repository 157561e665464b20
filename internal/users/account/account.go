// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package account handles user profile management, administrative user
operations, and session visibility.

It provides functionalities for users to view and update their own identity
data and manage their active device sessions, and for administrators to list
users, reassign roles, and deactivate accounts.

# Architecture

  - Entities: SessionInfo (DTO). The identity entity itself lives in the
    auth package; this package depends on it.
  - Security: Administrative operations enforce the last-admin guard so an
    installation can never lock out its final administrator.
*/
package account

import (
	"context"
	"time"

	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
	"github.com/darkraise/arcadia/pkg/pagination"
)

// # Domain Entities

// SessionInfo provides a safety-mapped view of an active user session.
// It omits the token hash for transport.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"` // e.g. "Chrome on Windows"
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"` // True if this session belongs to the current request
}

// UserPage is one page of the administrative user directory.
type UserPage struct {
	Users []auth.User     `json:"users"`
	Meta  pagination.Meta `json:"meta"`
}

// # Repository Contracts

// AccountRepository defines the persistence contract for account administration.
type AccountRepository interface {
	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		List retrieves a page of user accounts, optionally filtered by a
		case-insensitive username/email search term.

		Parameters:
		  - context: context.Context
		  - search: string (Empty matches everything)
		  - params: pagination.Params

		Returns:
		  - []auth.User: One page of accounts, newest first
		  - int: Total matching accounts across all pages
		  - error: Retrieval failures
	*/
	List(context context.Context, search string, params pagination.Params) ([]auth.User, int, error)

	/*
		UpdateProfile modifies the self-service profile fields of a user.

		Parameters:
		  - context: context.Context
		  - user: *auth.User (Hydrated entity with changes)

		Returns:
		  - error: Storage or constraint failures
	*/
	UpdateProfile(context context.Context, user *auth.User) error

	/*
		UpdateRole reassigns a user to a different role.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - roleID: int64

		Returns:
		  - error: apperr.NotFound if the user is absent, storage failures
	*/
	UpdateRole(context context.Context, userID string, roleID int64) error

	/*
		SetActive toggles the account liveness flag.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - active: bool

		Returns:
		  - error: apperr.NotFound if the user is absent, storage failures
	*/
	SetActive(context context.Context, userID string, active bool) error

	/*
		SoftDelete flags an account as logically deleted.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Execution failures
	*/
	SoftDelete(context context.Context, id string) error

	/*
		CountActiveAdmins counts live, non-deleted accounts holding the
		admin role. The last-admin guard is built on this number.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Active admin count
		  - error: Retrieval failures
	*/
	CountActiveAdmins(context context.Context) (int64, error)
}

// SessionRepository defines the visibility and revocation contract for user sessions.
type SessionRepository interface {
	/*
		FindActiveByUserID lists all valid, non-expired sessions for a user.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentTokenHash: string (Marks the matching row IsCurrent; empty skips marking)

		Returns:
		  - []SessionInfo: List of active devices
		  - error: Retrieval errors
	*/
	FindActiveByUserID(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error)

	/*
		Revoke marks a specific session as revoked.

		Parameters:
		  - context: context.Context
		  - userID: string (Security constraint: owner validation)
		  - sessionID: string

		Returns:
		  - error: Revocation failures
	*/
	Revoke(context context.Context, userID, sessionID string) error

	/*
		RevokeOthers revokes all active sessions except the one identified
		by the presented token hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentTokenHash: string (The whitelist target)

		Returns:
		  - error: Revocation failures
	*/
	RevokeOthers(context context.Context, userID, currentTokenHash string) error

	/*
		RevokeAll terminates every session for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Revocation failures
	*/
	RevokeAll(context context.Context, userID string) error
}

// # Collaborator Contracts

// RoleDirectory resolves role existence for role assignment. Satisfied by
// the rbac service.
type RoleDirectory interface {
	GetRole(context context.Context, roleID int64) (*rbac.RoleDetail, error)
}

// PermissionInvalidator drops cached permission state after an account's
// effective role changes. Satisfied by the rbac service.
type PermissionInvalidator interface {
	InvalidateUser(userID string)
}
