// Copyright (c) 2026 Arcadia. All rights reserved.

/*
Package rbac provides role-based access control for Arcadia.

It implements the role catalog, the permission catalog, the authoritative
permission resolver, the permission cache, and the guarded role-management
service.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Every route sits behind a permission guard; mutations
    additionally pass the service's system-role and escalation checks.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/darkraise/arcadia/internal/platform/middleware"
	requestutil "github.com/darkraise/arcadia/internal/platform/request"
	"github.com/darkraise/arcadia/internal/platform/respond"
	"github.com/darkraise/arcadia/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements role and permission management HTTP endpoints.
type Handler struct {
	rbacService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{rbacService: service}
}

// Routes returns a [chi.Router] configured with role-management routes.
//
// # Endpoints
//   - GET    /roles                      : Lists roles with grants and counts.
//   - POST   /roles                      : Creates a role.
//   - GET    /roles/{roleID}             : Returns a single role.
//   - PUT    /roles/{roleID}             : Updates role metadata.
//   - DELETE /roles/{roleID}             : Deletes an unused, non-system role.
//   - PUT    /roles/{roleID}/permissions : Replaces a role's grant set.
//   - GET    /permissions                : Lists the permission catalog.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("roles.read"))
		r.Get("/roles", handler.listRoles)
		r.Get("/roles/{roleID}", handler.getRole)
		r.Get("/permissions", handler.listPermissions)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("roles.create"))
		r.Post("/roles", handler.createRole)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("roles.update"))
		r.Put("/roles/{roleID}", handler.updateRole)
		r.Put("/roles/{roleID}/permissions", handler.updateRolePermissions)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission("roles.delete"))
		r.Delete("/roles/{roleID}", handler.deleteRole)
	})

	return router
}

// # Request Payloads

type updateRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

/*
listRoles returns every role with its grants and user counts.

GET /api/v1/admin/roles

Response:
  - 200: []RoleDetail
*/
func (handler *Handler) listRoles(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.rbacService.ListRoles(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, roles)
}

/*
getRole returns a single role with its grants and user count.

GET /api/v1/admin/roles/{roleID}

Response:
  - 200: RoleDetail
  - 404: Role not found
*/
func (handler *Handler) getRole(writer http.ResponseWriter, request *http.Request) {
	roleID, err := requestutil.Int64Param(request, "roleID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.rbacService.GetRole(request.Context(), roleID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, role)
}

/*
createRole creates a new role with an initial grant set.

POST /api/v1/admin/roles

Request:
  - Body: CreateRoleInput (Name, Description, Priority, PermissionIDs)

Response:
  - 201: RoleDetail
  - 400: Validation failure
  - 403: Escalation attempt
  - 409: Duplicate role name
*/
func (handler *Handler) createRole(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input CreateRoleInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	role, err := handler.rbacService.CreateRole(request.Context(), actor, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, role)
}

/*
updateRole applies a partial update to a role's metadata.

PUT /api/v1/admin/roles/{roleID}

Request:
  - Body: UpdateRoleInput (Name, Description, Priority — all optional)

Response:
  - 200: RoleDetail
  - 403: System role
  - 404: Role not found
  - 409: Duplicate role name
*/
func (handler *Handler) updateRole(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	roleID, err := requestutil.Int64Param(request, "roleID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdateRoleInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	role, err := handler.rbacService.UpdateRole(request.Context(), actor, roleID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, role)
}

/*
updateRolePermissions replaces a role's full grant set.

PUT /api/v1/admin/roles/{roleID}/permissions

Request:
  - Body: updateRolePermissionsRequest (PermissionIDs)

Response:
  - 200: RoleDetail
  - 403: System role or escalation attempt
  - 404: Role not found
*/
func (handler *Handler) updateRolePermissions(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	roleID, err := requestutil.Int64Param(request, "roleID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateRolePermissionsRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	role, err := handler.rbacService.UpdateRolePermissions(request.Context(), actor, roleID, input.PermissionIDs)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, role)
}

/*
deleteRole removes a non-system role with no assigned users.

DELETE /api/v1/admin/roles/{roleID}

Response:
  - 204: Deleted
  - 403: System role
  - 404: Role not found
  - 409: Role still in use
*/
func (handler *Handler) deleteRole(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	roleID, err := requestutil.Int64Param(request, "roleID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.rbacService.DeleteRole(request.Context(), actor, roleID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
listPermissions returns the full immutable permission catalog.

GET /api/v1/admin/permissions

Response:
  - 200: []Permission
*/
func (handler *Handler) listPermissions(writer http.ResponseWriter, request *http.Request) {
	permissions, err := handler.rbacService.ListPermissions(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, permissions)
}
