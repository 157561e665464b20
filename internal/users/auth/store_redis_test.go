// Copyright (c) 2026 Arcadia. All rights reserved.

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/users/auth"
)

/*
TestResetTokenRepository_Lifecycle verifies set, get, delete and the
mapping of absent keys to Unauthorized.
*/
func TestResetTokenRepository_Lifecycle(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repository := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	// 1. Round-trip
	require.NoError(t, repository.Set(ctx, "tok-123", "user-1", time.Hour))
	userID, err := repository.Get(ctx, "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// 2. Delete makes the token unusable
	require.NoError(t, repository.Delete(ctx, "tok-123"))
	_, err = repository.Get(ctx, "tok-123")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "UNAUTHORIZED", appError.Code)

	// 3. Unknown token behaves identically
	_, err = repository.Get(ctx, "never-issued")
	require.Error(t, err)
}

/*
TestResetTokenRepository_Expiry verifies the TTL is honored.
*/
func TestResetTokenRepository_Expiry(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repository := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "tok-123", "user-1", time.Minute))

	server.FastForward(2 * time.Minute)

	_, err := repository.Get(ctx, "tok-123")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "UNAUTHORIZED", appError.Code)
}

/*
TestVerificationTokenRepository_Lifecycle verifies the email-verification
token store, including isolation from the reset-token keyspace.
*/
func TestVerificationTokenRepository_Lifecycle(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	verifyRepo := auth.NewVerificationTokenRepository(client)
	resetRepo := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, verifyRepo.Set(ctx, "tok-abc", "user-9", time.Hour))

	userID, err := verifyRepo.Get(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)

	// Same token string in the other repository must not resolve
	_, err = resetRepo.Get(ctx, "tok-abc")
	require.Error(t, err)

	require.NoError(t, verifyRepo.Delete(ctx, "tok-abc"))
	_, err = verifyRepo.Get(ctx, "tok-abc")
	require.Error(t, err)
}
