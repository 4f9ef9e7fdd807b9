package httpapi

import (
	"fmt"
	"net/http"

	"tenantcrm.dev/internal/auth"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	RoleID    string `json:"roleId"`
}

type updateRolePermissionsRequest struct {
	Permissions map[string][]string `json:"permissions"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	users, err := a.rbac.ListUsers(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := a.rbac.CreateUser(r.Context(), p, auth.NewUser{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleID:    req.RoleID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	user, err := a.rbac.GetUser(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeactivateUser(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if _, err := a.rbac.DeactivateUser(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	roles, err := a.rbac.ListRoles(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": roles})
}

func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req updateRolePermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Permissions == nil {
		writeError(w, r, http.StatusBadRequest, "permissions are required")
		return
	}
	perms, err := auth.ParsePermissions(req.Permissions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	role, err := a.rbac.SetRolePermissions(r.Context(), p, r.PathValue("id"), perms)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}
