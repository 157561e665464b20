// Copyright (c) 2026 Arcadia. All rights reserved.

package auth

import (
	"context"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/sec"
)

// # Credential Store

// CredentialStore verifies login credentials against stored bcrypt hashes.
//
// # Security
//
// Every failure path — unknown login, wrong password — returns the same
// generic Unauthorized error. Distinguishing them would let an attacker
// enumerate registered usernames and emails.
type CredentialStore struct {
	userRepository UserRepository
	hasher         *sec.PasswordHasher
}

// NewCredentialStore constructs a [CredentialStore].
func NewCredentialStore(userRepo UserRepository, hasher *sec.PasswordHasher) *CredentialStore {
	return &CredentialStore{
		userRepository: userRepo,
		hasher:         hasher,
	}
}

/*
Verify resolves a login identifier and checks the password.

Description: Flexible login — the identifier may be a username or an email.
The bcrypt comparison is constant-time, and the error is uniform across
unknown-user and wrong-password outcomes.

Parameters:
  - context: context.Context
  - login: string (username or email)
  - password: string

Returns:
  - *User: The matched account
  - error: apperr.Unauthorized with a generic message
*/
func (store *CredentialStore) Verify(context context.Context, login, password string) (*User, error) {
	user, err := store.userRepository.FindByEmail(context, login)
	if err != nil {
		user, err = store.userRepository.FindByUsername(context, login)
	}

	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	if !store.hasher.Compare(password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	return user, nil
}

/*
Hash produces a bcrypt digest for a new password.

Parameters:
  - context: context.Context
  - password: string

Returns:
  - string: bcrypt digest
  - error: Hashing failures
*/
func (store *CredentialStore) Hash(_ context.Context, password string) (string, error) {
	return store.hasher.Hash(password)
}
