package rbachttp

import (
	"net/http"
	"strings"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/view"
)

type permissionsPageData struct {
	Tree        []rbac.PermissionNode
	Permissions []rbac.Permission
	Form        rbac.PermissionInput
	Errors      view.FormErrors
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	h.renderPermissions(w, r, rbac.PermissionInput{}, nil, http.StatusOK)
}

func (h *Handler) renderPermissions(w http.ResponseWriter, r *http.Request, form rbac.PermissionInput, errs view.FormErrors, status int) {
	perms, err := h.rbac.ListPermissions(r.Context())
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		if errs == nil {
			errs = view.FormErrors{}
		}
		errs["general"] = apiclient.UserMessage(err)
	}
	data := permissionsPageData{Tree: rbac.BuildPermissionTree(perms), Permissions: perms, Form: form, Errors: errs}
	h.renderer.Render(w, r, "pages/permissions.html", "Permissions", data, status)
}

func permissionForm(r *http.Request) rbac.PermissionInput {
	in := rbac.PermissionInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Code:        strings.TrimSpace(r.PostFormValue("code")),
	}
	if parent := formID(r, "parentId"); parent > 0 {
		in.ParentID = &parent
	}
	return in
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, PermissionsPath, rbac.PermissionWrite) {
		return
	}
	form := permissionForm(r)
	if err := h.validator.Struct(form); err != nil {
		h.renderPermissions(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}
	perm, err := h.rbac.CreatePermission(r.Context(), form)
	if err == nil {
		h.audit.Log(r.Context(), "permission.create", "permission", idString(perm.ID), map[string]any{"name": form.Name, "code": form.Code})
	}
	h.afterMutation(w, r, err, "Permission created", PermissionsPath)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, PermissionsPath, rbac.PermissionWrite) {
		return
	}
	form := permissionForm(r)
	if err := h.validator.Struct(form); err != nil {
		h.renderPermissions(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}
	if form.ParentID != nil && *form.ParentID == id {
		h.renderPermissions(w, r, form, view.FormErrors{"ParentID": "A permission cannot be its own parent"}, http.StatusBadRequest)
		return
	}
	_, err = h.rbac.UpdatePermission(r.Context(), id, form)
	if err == nil {
		h.audit.Log(r.Context(), "permission.update", "permission", idString(id), map[string]any{"name": form.Name})
	}
	h.afterMutation(w, r, err, "Permission updated", PermissionsPath)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, PermissionsPath, rbac.PermissionWrite) {
		return
	}
	err = h.rbac.DeletePermission(r.Context(), id)
	if err == nil {
		h.audit.Log(r.Context(), "permission.delete", "permission", idString(id), nil)
	}
	h.afterMutation(w, r, err, "Permission deleted", PermissionsPath)
}
