package rbachttp

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/platform/httpx"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

const roleSelectorSize = 100

type assignPageData struct {
	Roles       []rbac.Role
	RoleID      int64
	Permissions []rbac.AssignablePermission
	Granted     []int64
	Errors      view.FormErrors
}

func (h *Handler) showAssign(w http.ResponseWriter, r *http.Request) {
	h.renderAssign(w, r, queryID(r, "role"), nil, http.StatusOK)
}

// renderAssign loads the role selector and, for roleID, every permission.
// When granted is non-nil it overrides the assigned flags reported by the
// backend so that a toggle outcome is shown as decided.
func (h *Handler) renderAssign(w http.ResponseWriter, r *http.Request, roleID int64, granted []int64, status int) {
	ctx := r.Context()
	data := assignPageData{RoleID: roleID, Errors: view.FormErrors{}}
	roles, err := h.rbac.ListRoles(ctx, rbac.ListParams{Page: 1, PageSize: roleSelectorSize})
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		data.Errors["general"] = apiclient.UserMessage(err)
	}
	data.Roles = roles.List

	if roleID > 0 {
		perms, err := h.rbac.RolePermissionsAll(ctx, roleID)
		if err != nil {
			if auth.SessionEnded(err) {
				auth.RedirectToLogin(w, r)
				return
			}
			data.Errors["permissions"] = apiclient.UserMessage(err)
		}
		data.Permissions = perms
		if granted == nil {
			granted = make([]int64, 0, len(perms))
			for _, p := range perms {
				if p.Assigned {
					granted = append(granted, p.ID)
				}
			}
		}
		data.Granted = granted
	}
	h.renderer.Render(w, r, "pages/assign_permissions.html", "Assign Permissions", data, status)
}

// togglePermissions receives an optimistic change: the direction, the moved
// permission ids and the resulting target set. The page (or JSON body) shows
// the confirmed set, or the pre-toggle set when any call failed.
func (h *Handler) togglePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID := formID(r, "roleId")
	dir, ok := rbac.ParseDirection(r.FormValue("direction"))
	if roleID == 0 || !ok {
		if wantsJSON(r) {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		shared.Flash(ctx, shared.FlashError, "Select a role and a direction")
		http.Redirect(w, r, AssignPath, http.StatusSeeOther)
		return
	}
	moved := formIDs(r, "moved")
	target := formIDs(r, "target")
	if _, ok := r.Form["target"]; !ok {
		target = rbac.Apply(dir, formIDs(r, "granted"), moved)
	}

	result := rbac.TogglePermissions(ctx, h.rbac, roleID, dir, moved, target)
	if result.Outcome == rbac.RolledBack {
		if auth.SessionEnded(result.Err) {
			if wantsJSON(r) {
				httpx.RespondError(w, result.Err)
				return
			}
			auth.RedirectToLogin(w, r)
			return
		}
		h.logger.Warn("toggle permissions rolled back", slog.Int64("role_id", roleID), slog.Any("error", result.Err))
		shared.Flash(ctx, shared.FlashError, result.Message())
	} else if len(moved) > 0 {
		action := "role.permissions.grant"
		if dir == rbac.Revoke {
			action = "role.permissions.revoke"
		}
		h.audit.Log(ctx, action, "role", idString(roleID), map[string]any{"permissionIds": moved})
		shared.Flash(ctx, shared.FlashSuccess, result.Message())
	}

	if wantsJSON(r) {
		outcome := "confirmed"
		if result.Outcome == rbac.RolledBack {
			outcome = "rolled_back"
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"outcome": outcome,
			"granted": result.Granted,
			"message": result.Message(),
		})
		return
	}
	h.renderAssign(w, r, roleID, result.Granted, http.StatusOK)
}

func (h *Handler) saveRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := formID(r, "roleId")
	if roleID == 0 {
		shared.Flash(r.Context(), shared.FlashError, "Select a role first")
		http.Redirect(w, r, AssignPath, http.StatusSeeOther)
		return
	}
	ids := formIDs(r, "permissionIds")
	err := h.rbac.SetRolePermissions(r.Context(), roleID, ids)
	if err == nil {
		h.audit.Log(r.Context(), "role.permissions.save", "role", idString(roleID), map[string]any{"permissionIds": ids})
	}
	h.afterMutation(w, r, err, "Batch assignment saved", AssignPath+"?"+url.Values{"role": {idString(roleID)}}.Encode())
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
