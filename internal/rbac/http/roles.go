package rbachttp

import (
	"net/http"
	"strings"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

type rolesPageData struct {
	Roles  apiclient.Page[rbac.Role]
	Pager  view.Pager
	Query  string
	Form   rbac.RoleInput
	Errors view.FormErrors
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	h.renderRoles(w, r, rbac.RoleInput{}, nil, http.StatusOK)
}

func (h *Handler) renderRoles(w http.ResponseWriter, r *http.Request, form rbac.RoleInput, errs view.FormErrors, status int) {
	page, pageSize := shared.PageParams(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	roles, err := h.rbac.ListRoles(r.Context(), rbac.ListParams{Page: page, PageSize: pageSize, Query: query})
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		if errs == nil {
			errs = view.FormErrors{}
		}
		errs["general"] = apiclient.UserMessage(err)
		roles = apiclient.Page[rbac.Role]{List: []rbac.Role{}, Pagination: shared.NewPagination(page, pageSize, 0)}
	}
	data := rolesPageData{Roles: roles, Pager: view.NewPager(roles.Pagination, r), Query: query, Form: form, Errors: errs}
	h.renderer.Render(w, r, "pages/roles.html", "Roles", data, status)
}

func roleForm(r *http.Request) rbac.RoleInput {
	return rbac.RoleInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, RolesPath, rbac.RoleWrite) {
		return
	}
	form := roleForm(r)
	if err := h.validator.Struct(form); err != nil {
		h.renderRoles(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}
	role, err := h.rbac.CreateRole(r.Context(), form)
	if err == nil {
		h.audit.Log(r.Context(), "role.create", "role", idString(role.ID), map[string]any{"name": form.Name})
	}
	h.afterMutation(w, r, err, "Role created", RolesPath)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, RolesPath, rbac.RoleWrite) {
		return
	}
	form := roleForm(r)
	if err := h.validator.Struct(form); err != nil {
		h.renderRoles(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}
	_, err = h.rbac.UpdateRole(r.Context(), id, form)
	if err == nil {
		h.audit.Log(r.Context(), "role.update", "role", idString(id), map[string]any{"name": form.Name})
	}
	h.afterMutation(w, r, err, "Role updated", RolesPath)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, RolesPath, rbac.RoleWrite) {
		return
	}
	err = h.rbac.DeleteRole(r.Context(), id)
	if err == nil {
		h.audit.Log(r.Context(), "role.delete", "role", idString(id), nil)
	}
	h.afterMutation(w, r, err, "Role deleted", RolesPath)
}
