// Copyright (c) 2026 Arcadia. All rights reserved.

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/darkraise/arcadia/internal/platform/apperr"
	"github.com/darkraise/arcadia/internal/platform/ctxutil"
	"github.com/darkraise/arcadia/internal/platform/respond"
	"github.com/darkraise/arcadia/internal/platform/sec"
)

// IdentityVerifier resolves a bearer token into a live identity.
//
// # Why an interface?
//
// The concrete implementation is the auth orchestrator's verify flow, which
// checks the signature, re-loads the account (it must still be active), and
// resolves the effective permission set through the permission cache on EVERY
// request. Defining the contract here decouples the middleware from the auth
// service and lets tests inject stubs.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*sec.AuthUser, error)

	// Guest returns the sentinel identity for anonymous requests, or an
	// error when guest access is disabled.
	Guest(ctx context.Context) (*sec.AuthUser, error)
}

// Authenticate extracts and verifies the bearer token from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, resolve the guest sentinel; the request proceeds anonymously
//     only when guest access is enabled.
//  3. If present, resolve the full identity via [IdentityVerifier.Verify].
//  4. Inject the [*sec.AuthUser] into the request context for downstream use.
//
// Account liveness is re-checked on every request — a deactivated user is
// rejected here even while holding a signature-valid access token.
func Authenticate(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				if guest, err := verifier.Guest(request.Context()); err == nil && guest != nil {
					ctx := ctxutil.WithAuthUser(request.Context(), guest)
					next.ServeHTTP(writer, request.WithContext(ctx))
					return
				}
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Identity Resolution ────────────────────────────────────────
			tokenStr := parts[1]
			user, err := verifier.Verify(request.Context(), tokenStr)
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthUser(request.Context(), user)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated with a real account.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. The guest sentinel
// does not satisfy this guard — guests may only reach permission-gated routes
// whose permissions the guest role actually grants.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		user := ctxutil.GetAuthUser(request.Context())
		if user == nil || user.UserID == "" {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequirePermission blocks requests whose identity lacks the named permission.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. Unauthenticated
// requests fail with 401; authenticated ones without the permission get 403.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			user := ctxutil.GetAuthUser(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if user == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !user.HasPermission(permission) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
