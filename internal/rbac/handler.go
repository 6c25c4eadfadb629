package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/platform/httpx"
	"github.com/forge-club/forge/internal/shared"
)

// Handler exposes role and grant management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(perm.ReadMembers))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(perm.IsOfficer))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
		r.Post("/{id}/grants", h.grant)
		r.Delete("/{id}/grants/{principalID}", h.revoke)
		r.Get("/{id}/grants", h.listGrantsForRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(perm.IsOfficer))
		r.Get("/catalog", h.listCatalog)
	})
}

type rolePayload struct {
	Name             string `json:"name" validate:"required,max=255"`
	ExternalGroupRef string `json:"externalGroupRef" validate:"required,max=255"`
	Permissions      string `json:"permissions" validate:"required"`
}

type roleResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ExternalGroupRef string   `json:"externalGroupRef"`
	Permissions      string   `json:"permissions"`
	PermissionNames  []string `json:"permissionNames"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:               role.ID,
		Name:             role.Name,
		ExternalGroupRef: role.ExternalGroupRef,
		Permissions:      string(role.Permissions),
		PermissionNames:  role.Permissions.Names(),
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.Name, payload.ExternalGroupRef, payload.Permissions)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), payload.Name, payload.ExternalGroupRef, payload.Permissions)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantPayload struct {
	PrincipalID string `json:"principalId" validate:"required,max=255"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var payload grantPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grant, err := h.service.Grant(r.Context(), chi.URLParam(r, "id"), payload.PrincipalID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{
		"id":          grant.ID,
		"roleId":      grant.RoleID,
		"principalId": grant.PrincipalID,
	})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	err := h.service.Revoke(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "principalID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGrantsForRole(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.GrantsForRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	type grantResponse struct {
		ID          string `json:"id"`
		RoleID      string `json:"roleId"`
		PrincipalID string `json:"principalId"`
	}
	out := make([]grantResponse, 0, len(grants))
	for _, grant := range grants {
		out = append(out, grantResponse{ID: grant.ID, RoleID: grant.RoleID, PrincipalID: grant.PrincipalID})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name        string `json:"name"`
		Index       int    `json:"index"`
		DisplayName string `json:"displayName"`
		Description string `json:"description"`
	}
	defs := perm.All()
	out := make([]entry, 0, len(defs))
	for _, def := range defs {
		out = append(out, entry{Name: def.Name, Index: def.Index, DisplayName: def.DisplayName, Description: def.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "")
	case errors.Is(err, shared.ErrInvalidArgument):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		if h.logger != nil {
			h.logger.Error("rbac handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
