// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Count returns the number of non-deleted accounts.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Account count
		  - error: Database retrieval failures
	*/
	Count(context context.Context) (int64, error)

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		MarkVerified updates the user's status to isverified = true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, userID string) error
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the data access contract for opaque refresh
// tokens and their single-use rotation.
type RefreshTokenRepository interface {

	/*
		Create persists a new refresh token row for an authenticated login.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		Rotate atomically revokes the live token matching oldTokenHash and
		inserts newToken in the same transaction. When two requests race on
		the same refresh token, at most one observes a non-revoked row and
		wins; the loser receives apperr.Unauthorized.

		newToken.UserID is populated from the revoked row.

		Parameters:
		  - context: context.Context
		  - oldTokenHash: string
		  - newToken: *RefreshToken

		Returns:
		  - error: apperr.Unauthorized for missing/expired/revoked tokens, or persistence failures
	*/
	Rotate(context context.Context, oldTokenHash string, newToken *RefreshToken) error

	/*
		Revoke marks the live token matching tokenHash as revoked. Revoking
		an unknown or already-revoked token is not an error.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, tokenHash string) error

	/*
		RevokeAll revokes every non-revoked token belonging to the userID.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAll(context context.Context, userID string) error

	/*
		ListActiveByUserID returns the user's live tokens for session listings.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []RefreshToken: Active sessions
		  - error: Database retrieval failures
	*/
	ListActiveByUserID(context context.Context, userID string) ([]RefreshToken, error)

	/*
		DeleteExpired physically removes tokens whose ExpiresAt is in the past.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: Cleanup failures
	*/
	DeleteExpired(context context.Context) error
}

// # Login Attempt Data Access

// LoginAttemptRepository defines the append-only attempt ledger contract.
type LoginAttemptRepository interface {

	/*
		Record appends one attempt row.

		Parameters:
		  - context: context.Context
		  - attempt: *LoginAttempt

		Returns:
		  - error: Persistence failures
	*/
	Record(context context.Context, attempt *LoginAttempt) error

	/*
		CountFailures counts failed attempts inside the trailing window,
		independently per username and per IP address.

		Parameters:
		  - context: context.Context
		  - username: string
		  - ipAddress: string
		  - since: time.Time

		Returns:
		  - int64: Failures for the username
		  - int64: Failures for the IP address
		  - error: Database retrieval failures
	*/
	CountFailures(context context.Context, username, ipAddress string, since time.Time) (int64, int64, error)

	/*
		DeleteOlderThan removes attempts outside the retention window.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - error: Cleanup failures
	*/
	DeleteOlderThan(context context.Context, cutoff time.Time) error
}

// # Volatile Data Access

// ResetTokenRepository defines the contract for storing volatile password reset tokens.
type ResetTokenRepository interface {

	/*
		Set stores a reset token associated with a userID for a limited duration.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID string, ttl time.Duration) error

	/*
		Get retrieves the userID associated with a given reset token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: UserID
		  - error: Retrieval failures
	*/
	Get(context context.Context, token string) (string, error)

	/*
		Delete removes a reset token after successful use.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, token string) error
}

// VerificationTokenRepository defines the contract for storing volatile email verification tokens.
type VerificationTokenRepository interface {

	/*
		Set stores a verification token associated with a userID.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID string, ttl time.Duration) error

	/*
		Get retrieves the userID associated with a given verification token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: UserID
		  - error: Retrieval failures
	*/
	Get(context context.Context, token string) (string, error)

	/*
		Delete removes a verification token after successful use.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, token string) error
}
