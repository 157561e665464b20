// Copyright (c) 2026 Arcadia. All rights reserved.

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/users/auth"
	"github.com/darkraise/arcadia/internal/users/rbac"
)

func newTokenService(t *testing.T, accessTTL time.Duration) (*auth.TokenService, *fakeTokenRepo) {
	t.Helper()

	signer, err := sec.NewTokenSigner("test-secret-test-secret-test-secret", "arcadia.app")
	require.NoError(t, err)

	tokenRepo := newFakeTokenRepo()
	return auth.NewTokenService(signer, tokenRepo, accessTTL, 24*time.Hour), tokenRepo
}

func testUser() *auth.User {
	return &auth.User{
		ID:       "user-1",
		Username: "alice",
		RoleID:   rbac.RoleUser,
		RoleName: "user",
		IsActive: true,
	}
}

/*
TestTokenService_IssueAndVerify verifies a signed access token round-trips
into claims carrying the subject identity.
*/
func TestTokenService_IssueAndVerify(t *testing.T) {
	service, tokenRepo := newTokenService(t, 15*time.Minute)
	ctx := context.Background()

	pair, err := service.Issue(ctx, testUser(), auth.ClientInfo{UserAgent: "go-test", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := service.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.RoleName)

	// The refresh token is persisted hashed, never in the clear.
	assert.Equal(t, 1, tokenRepo.activeCount("user-1"))
	for hash := range tokenRepo.tokens {
		assert.NotEqual(t, pair.RefreshToken, hash)
	}
}

/*
TestTokenService_ExpiredAccessToken verifies an expired token fails
verification with the uniform error.
*/
func TestTokenService_ExpiredAccessToken(t *testing.T) {
	service, _ := newTokenService(t, -time.Minute)

	pair, err := service.Issue(context.Background(), testUser(), auth.ClientInfo{})
	require.NoError(t, err)

	_, err = service.VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid or expired token")
}

/*
TestTokenService_TamperedToken verifies a modified payload fails signature
verification.
*/
func TestTokenService_TamperedToken(t *testing.T) {
	service, _ := newTokenService(t, 15*time.Minute)

	pair, err := service.Issue(context.Background(), testUser(), auth.ClientInfo{})
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = service.VerifyAccess(tampered)
	require.Error(t, err)
}

/*
TestTokenService_RotatePreservesOwner verifies rotation binds the successor
to the original owner without the caller supplying the user ID.
*/
func TestTokenService_RotatePreservesOwner(t *testing.T) {
	service, _ := newTokenService(t, 15*time.Minute)
	ctx := context.Background()

	pair, err := service.Issue(ctx, testUser(), auth.ClientInfo{})
	require.NoError(t, err)

	_, userID, expiresAt, err := service.Rotate(ctx, pair.RefreshToken, auth.ClientInfo{UserAgent: "go-test"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.True(t, expiresAt.After(time.Now()))
}
