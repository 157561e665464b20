// Copyright (c) 2026 Arcadia. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// The claim bundle deliberately does NOT carry a permission list: permissions
// are resolved fresh on every verify so a role re-permission or account
// deactivation takes effect without waiting for token expiry.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID   string `json:"uid"`
	Username string `json:"unm"`
	RoleName string `json:"rol"`
}

// ErrTokenInvalid is returned for any signature, format, or expiry failure.
// Callers get one uniform error so responses cannot be used to probe which
// part of the validation failed.
var ErrTokenInvalid = errors.New("sec: invalid or expired token")

// TokenSigner handles generation and verification of JWT tokens using HS256.
//
// The signing secret comes from static configuration; there is no key rotation
// story in-process — a secret change invalidates all outstanding access tokens,
// which is the desired behavior for an emergency rotation.
type TokenSigner struct {
	secret []byte
	issuer string
}

// NewTokenSigner creates a new TokenSigner with the given HMAC secret.
func NewTokenSigner(secret, issuer string) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("sec: jwt secret must not be empty")
	}
	return &TokenSigner{secret: []byte(secret), issuer: issuer}, nil
}

// Sign creates a new signed JWT access token for a user.
func (signer *TokenSigner) Sign(userID, username, roleName string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:   userID,
		Username: username,
		RoleName: roleName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and validity of a JWT string.
// It performs no I/O: database-backed liveness checks belong to the caller.
func (signer *TokenSigner) Verify(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	}, jwt.WithIssuer(signer.issuer))

	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
