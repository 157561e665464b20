// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import "time"

// # Authentication Constraints

const (
	// RefreshTokenLength is the byte length of the random secure token.
	RefreshTokenLength = 32

	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenTTL is the duration an email verification token remains valid.
	// Long-lived (24 hours) as users might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32

	// DefaultMaxLoginAttempts is the failure threshold before lockout when
	// configuration does not override it.
	DefaultMaxLoginAttempts = 5

	// DefaultLockoutWindow is the sliding window over the attempt ledger.
	DefaultLockoutWindow = 15 * time.Minute
)
