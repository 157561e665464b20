// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package account provides the HTTP delivery layer for profile, session, and
administrative user management.

# Security

All self-service endpoints require an authenticated session provided by the
RequireAuth middleware. Administrative endpoints additionally sit behind
users.* permission guards.
*/
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/darkraise/arcadia/internal/platform/constants"
	"github.com/darkraise/arcadia/internal/platform/middleware"
	requestutil "github.com/darkraise/arcadia/internal/platform/request"
	"github.com/darkraise/arcadia/internal/platform/respond"
	"github.com/darkraise/arcadia/internal/platform/sec"
	"github.com/darkraise/arcadia/internal/platform/validate"
	"github.com/darkraise/arcadia/pkg/pagination"
)

// Handler implements the HTTP layer for user account management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] with the self-service account endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Account Management
	router.Get("/me", handler.getMe)
	router.Patch("/me", handler.updateMe)
	router.Delete("/me", handler.deleteMe)

	// Session Security
	router.Get("/me/sessions", handler.listSessions)
	router.Delete("/me/sessions", handler.revokeOtherSessions)
	router.Delete("/me/sessions/{id}", handler.revokeSession)

	return router
}

// AdminRoutes returns a [chi.Router] with the administrative user directory.
// It is intended to be mounted under /admin/users.
//
// # Endpoints
//   - GET /               : Paginated user directory with search.
//   - PUT /{id}/role      : Reassigns a user's role.
//   - PUT /{id}/status    : Activates or deactivates an account.
//   - DELETE /{id}        : Soft-deletes an account.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("users.read"))
		r.Get("/", handler.listUsers)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("users.update"))
		r.Put("/{id}/role", handler.assignRole)
		r.Put("/{id}/status", handler.setUserStatus)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("users.delete"))
		r.Delete("/{id}", handler.deleteUser)
	})

	return router
}

// # User Profile Endpoints

/*
GET /api/v1/users/me.

Description: Retrieves the full private profile of the authenticated user.

Response:
  - 200: User: Fully hydrated user profile
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
}

/*
PATCH /api/v1/users/me.

Description: Applies partial updates to the authenticated user's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: User: The updated profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MinLen("display_name", *input.DisplayName, 2).MaxLen("display_name", *input.DisplayName, 50)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/users/me.

Description: Performs a soft-deletion of the authenticated user's account.
Refused for the last active administrator.

Response:
  - 204: No Content: Account deleted successfully
  - 401: ErrUnauthorized: Authentication required
  - 409: ErrConflict: Last active administrator
*/
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteAccount(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Session Security Endpoints

/*
GET /api/v1/users/me/sessions.

Description: Enumerates all devices currently authenticated into the user's account.

Response:
  - 200: []SessionInfo: List of active device sessions
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.accountService.ListSessions(request.Context(), userID, currentSessionHash(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessions)
}

/*
DELETE /api/v1/users/me/sessions/{id}.

Description: Forces a sign-out on a specific device identified by its session ID.

Request:
  - id: string (Session UUID)

Response:
  - 204: No Content: Session terminated successfully
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) revokeSession(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := requestutil.Param(request, "id")

	if err := handler.accountService.RevokeSession(request.Context(), userID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/users/me/sessions.

Description: Forces a sign-out on all devices except the one making the request.

Response:
  - 204: No Content: All other sessions terminated
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) revokeOtherSessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.RevokeOtherSessions(request.Context(), userID, currentSessionHash(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// currentSessionHash identifies the caller's own session by hashing the
// presented refresh cookie. Empty when no cookie is present.
func currentSessionHash(request *http.Request) string {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return sec.HashToken(cookie.Value)
}

// # Administrative Endpoints

/*
GET /api/v1/admin/users.

Description: Retrieves the paginated user directory, optionally filtered by
a username/email search term.

Request:
  - page, limit: Query pagination
  - q: string (Optional search term)

Response:
  - 200: []auth.User: One page of accounts with navigation metadata
  - 403: ErrForbidden: Missing users.read permission
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)
	search := request.URL.Query().Get("q")

	page, err := handler.accountService.ListUsers(request.Context(), search, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, page.Users, page.Meta)
}

// assignRoleRequest defines the payload for a role reassignment.
type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

/*
PUT /api/v1/admin/users/{id}/role.

Description: Moves a user to a different role. Demoting the last active
administrator is refused.

Request:
  - id: string (User UUID)
  - body: assignRoleRequest

Response:
  - 200: User: The user with the new role applied
  - 404: ErrNotFound: Unknown user or role
  - 409: ErrConflict: Last active administrator
*/
func (handler *Handler) assignRole(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "id")

	var input assignRoleRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.UUID("id", userID)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.AssignRole(request.Context(), userID, input.RoleID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// setUserStatusRequest defines the payload for an activation toggle.
type setUserStatusRequest struct {
	Active bool `json:"active"`
}

/*
PUT /api/v1/admin/users/{id}/status.

Description: Activates or deactivates an account. Deactivating the last
active administrator is refused; deactivation revokes every live session.

Request:
  - id: string (User UUID)
  - body: setUserStatusRequest

Response:
  - 200: User: The account with the new flag applied
  - 404: ErrNotFound: Unknown user
  - 409: ErrConflict: Last active administrator
*/
func (handler *Handler) setUserStatus(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "id")

	var input setUserStatusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.SetUserActive(request.Context(), userID, input.Active)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/admin/users/{id}.

Description: Soft-deletes an account and revokes its sessions. Refused for
the last active administrator.

Request:
  - id: string (User UUID)

Response:
  - 204: No Content
  - 409: ErrConflict: Last active administrator
*/
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "id")

	if err := handler.accountService.DeleteAccount(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
