// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/pkg/uuid"
)

// # Contracts & Types

// AccessTokenSigner defines the contract for stateless access tokens.
type AccessTokenSigner interface {
	// Sign creates a signed JWT string for the given identity.
	Sign(userID, username, roleName string, timeToLive time.Duration) (string, error)

	// Verify validates signature and expiry and returns the embedded claims.
	Verify(tokenString string) (*sec.AuthClaims, error)
}

// # Token Service

// TokenService owns the full token lifecycle: short-lived signed access
// tokens and long-lived opaque refresh tokens with single-use rotation.
//
// Permissions are never embedded in the access token. They are resolved
// fresh on every verify so a revocation takes effect within one cache TTL,
// not one token TTL.
type TokenService struct {
	signer          AccessTokenSigner
	tokenRepository RefreshTokenRepository
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

// NewTokenService constructs a [TokenService].
func NewTokenService(
	signer AccessTokenSigner,
	tokenRepo RefreshTokenRepository,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		signer:          signer,
		tokenRepository: tokenRepo,
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
	}
}

// ClientInfo carries per-request transport metadata persisted with each
// refresh token for session listings.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

/*
Issue creates a fresh access/refresh token pair for a user.

Description: Signs the access token, generates an unguessable refresh token,
and persists only the refresh token's SHA-256 digest.

Parameters:
  - context: context.Context
  - user: *User
  - client: ClientInfo

Returns:
  - *TokenPair: Transport-ready pair
  - error: Signing or persistence failures
*/
func (service *TokenService) Issue(context context.Context, user *User, client ClientInfo) (*TokenPair, error) {
	accessToken, err := service.signer.Sign(user.ID, user.Username, user.RoleName, service.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("token_service_sign_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("token_service_generate_refresh_failed: %w", err)
	}

	expiresAt := time.Now().Add(service.refreshTTL)
	row := &RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: expiresAt,
	}

	if err := service.tokenRepository.Create(context, row); err != nil {
		return nil, fmt.Errorf("token_service_persist_refresh_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(service.accessTTL / time.Second),
		RefreshExpiresAt: expiresAt,
	}, nil
}

/*
VerifyAccess validates an access token's signature and expiry.

Description: Purely stateless — no database access. Liveness of the account
behind the claims is the orchestrator's responsibility.

Parameters:
  - tokenString: string

Returns:
  - *sec.AuthClaims: Embedded identity claims
  - error: apperr.Unauthorized for any invalid token
*/
func (service *TokenService) VerifyAccess(tokenString string) (*sec.AuthClaims, error) {
	claims, err := service.signer.Verify(tokenString)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

/*
Rotate exchanges a refresh token for its single-use successor.

Description: The storage layer revokes the old row and inserts the new one
in a single transaction; a raced or replayed token loses there and surfaces
as apperr.Unauthorized. The returned userID identifies the session owner so
the orchestrator can re-check account liveness before signing a new access
token with [TokenService.SignAccess].

Parameters:
  - context: context.Context
  - refreshToken: string
  - client: ClientInfo

Returns:
  - string: New refresh token (raw value)
  - string: Owning user ID
  - time.Time: New refresh token expiry
  - error: apperr.Unauthorized or persistence failures
*/
func (service *TokenService) Rotate(context context.Context, refreshToken string, client ClientInfo) (string, string, time.Time, error) {
	newRefreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("token_service_rotate_generate_failed: %w", err)
	}

	expiresAt := time.Now().Add(service.refreshTTL)
	newRow := &RefreshToken{
		ID:        uuid.New(),
		TokenHash: sec.HashToken(newRefreshToken),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: expiresAt,
	}

	if err := service.tokenRepository.Rotate(context, sec.HashToken(refreshToken), newRow); err != nil {
		return "", "", time.Time{}, err
	}

	return newRefreshToken, newRow.UserID, expiresAt, nil
}

/*
SignAccess signs a fresh access token for an already-verified user.

Parameters:
  - user: *User

Returns:
  - string: Signed JWT
  - int64: Lifetime in seconds
  - error: Signing failures
*/
func (service *TokenService) SignAccess(user *User) (string, int64, error) {
	accessToken, err := service.signer.Sign(user.ID, user.Username, user.RoleName, service.accessTTL)
	if err != nil {
		return "", 0, fmt.Errorf("token_service_sign_failed: %w", err)
	}
	return accessToken, int64(service.accessTTL / time.Second), nil
}

/*
Revoke invalidates a single refresh token. Idempotent.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Persistence failures
*/
func (service *TokenService) Revoke(context context.Context, refreshToken string) error {
	return service.tokenRepository.Revoke(context, sec.HashToken(refreshToken))
}

/*
RevokeAll invalidates every live refresh token for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Persistence failures
*/
func (service *TokenService) RevokeAll(context context.Context, userID string) error {
	return service.tokenRepository.RevokeAll(context, userID)
}

/*
PurgeExpired removes expired refresh token rows. Run by the maintenance
ticker.

Parameters:
  - context: context.Context

Returns:
  - error: Cleanup failures
*/
func (service *TokenService) PurgeExpired(context context.Context) error {
	return service.tokenRepository.DeleteExpired(context)
}
