// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, RefreshToken, LoginAttempt) and
the authentication pipeline: credential verification with brute-force
lockout, JWT access tokens, and opaque refresh tokens with single-use
rotation.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
external dependencies and encapsulate all business rules related to user
identity.
*/
package auth

import (
	"time"
)

// # Domain Entities

// User represents a registered member of the Arcadia archive.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string    `json:"display_name"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role_name"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken represents one persisted opaque refresh token.
//
// The raw token value never touches the database: only its SHA-256 digest is
// stored, so a database leak cannot be replayed as live sessions.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the token is neither revoked nor expired.
func (token *RefreshToken) Active(now time.Time) bool {
	return token.RevokedAt == nil && token.ExpiresAt.After(now)
}

// LoginAttempt is one append-only audit row in the login ledger.
//
// Lockout state is always derived from these rows by a sliding-window count,
// never from a separate counter, so it cannot drift from the audit trail.
type LoginAttempt struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	IPAddress   string    `json:"ip_address"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// TokenPair is the transport-ready result of issuing or rotating tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"-"` // Delivered only via the HttpOnly cookie.
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"-"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldLogin           = "login"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
)
