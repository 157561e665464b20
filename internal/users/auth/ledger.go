// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"log/slog"
	"time"
)

// # Login Attempt Ledger

// LoginAttemptLedger is the append-only audit trail behind brute-force
// lockout.
//
// # Invariants
//
// Lockout is a sliding-window count over the ledger rows, not a separate
// counter, so lockout state can never drift from the audit trail and needs
// no invalidation. Recording an attempt must never break the login flow:
// a failed audit write is logged and swallowed.
type LoginAttemptLedger struct {
	attemptRepository LoginAttemptRepository
	maxAttempts       int64
	lockoutWindow     time.Duration
	logger            *slog.Logger
}

// NewLoginAttemptLedger constructs a ledger. Non-positive thresholds fall
// back to the package defaults.
func NewLoginAttemptLedger(
	attemptRepo LoginAttemptRepository,
	maxAttempts int,
	lockoutWindow time.Duration,
	logger *slog.Logger,
) *LoginAttemptLedger {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if lockoutWindow <= 0 {
		lockoutWindow = DefaultLockoutWindow
	}

	return &LoginAttemptLedger{
		attemptRepository: attemptRepo,
		maxAttempts:       int64(maxAttempts),
		lockoutWindow:     lockoutWindow,
		logger:            logger,
	}
}

/*
Record appends one attempt, success or failure, and never returns an error.

Description: Losing an audit row is preferable to failing a login because
the ledger could not be written. The failure is logged for operators.

Parameters:
  - context: context.Context
  - username: string
  - ipAddress: string
  - success: bool
*/
func (ledger *LoginAttemptLedger) Record(context context.Context, username, ipAddress string, success bool) {
	attempt := &LoginAttempt{
		Username:    username,
		IPAddress:   ipAddress,
		Success:     success,
		AttemptedAt: time.Now(),
	}

	if err := ledger.attemptRepository.Record(context, attempt); err != nil {
		ledger.logger.Error("login_attempt_record_failed",
			slog.String("username", username),
			slog.String("ip_address", ipAddress),
			slog.Any("error", err),
		)
	}
}

/*
IsLocked reports whether the username OR the IP address has reached the
failure threshold inside the trailing window.

Description: The OR semantics are deliberate — a botnet hammering one
username locks the username even across rotating IPs, and a single IP
spraying many usernames locks that IP globally.

Parameters:
  - context: context.Context
  - username: string
  - ipAddress: string

Returns:
  - bool: True when either dimension reached the threshold
  - error: Ledger query failures
*/
func (ledger *LoginAttemptLedger) IsLocked(context context.Context, username, ipAddress string) (bool, error) {
	since := time.Now().Add(-ledger.lockoutWindow)

	usernameFailures, ipFailures, err := ledger.attemptRepository.CountFailures(context, username, ipAddress, since)
	if err != nil {
		return false, err
	}

	return usernameFailures >= ledger.maxAttempts || ipFailures >= ledger.maxAttempts, nil
}

/*
Cleanup removes attempts older than the retention window. Idempotent and
safe on any cadence.

Parameters:
  - context: context.Context
  - retention: time.Duration

Returns:
  - error: Cleanup failures
*/
func (ledger *LoginAttemptLedger) Cleanup(context context.Context, retention time.Duration) error {
	return ledger.attemptRepository.DeleteOlderThan(context, time.Now().Add(-retention))
}
