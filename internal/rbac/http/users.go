package rbachttp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

type registerForm struct {
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=6,max=128"`
}

type userRolesPageData struct {
	Users    apiclient.Page[rbac.UserSummary]
	Pager    view.Pager
	Username string
	Selected *rbac.UserSummary
	Roles    []rbac.AssignableRole
	Form     registerForm
	Errors   view.FormErrors
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, registerForm{}, nil, http.StatusOK)
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, form registerForm, errs view.FormErrors, status int) {
	ctx := r.Context()
	page, pageSize := shared.PageParams(r)
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if errs == nil {
		errs = view.FormErrors{}
	}
	users, err := h.rbac.ListUsers(ctx, rbac.UserListParams{Page: page, PageSize: pageSize, Username: username})
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		errs["general"] = apiclient.UserMessage(err)
		users = apiclient.Page[rbac.UserSummary]{List: []rbac.UserSummary{}, Pagination: shared.NewPagination(page, pageSize, 0)}
	}
	data := userRolesPageData{Users: users, Pager: view.NewPager(users.Pagination, r), Username: username, Form: registerForm{Username: form.Username}, Errors: errs}

	if selected := queryID(r, "user"); selected > 0 {
		for i := range users.List {
			if users.List[i].ID == selected {
				data.Selected = &users.List[i]
			}
		}
		if data.Selected == nil {
			data.Selected = &rbac.UserSummary{ID: selected}
		}
		roles, err := h.rbac.UserRolesAll(ctx, selected)
		switch {
		case err == nil:
			data.Roles = roles
		case auth.SessionEnded(err):
			auth.RedirectToLogin(w, r)
			return
		default:
			errs["roles"] = apiclient.UserMessage(err)
		}
	}
	h.renderer.Render(w, r, "pages/user_roles.html", "Users", data, status)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, UserRolesPath, rbac.UserCreate) {
		return
	}
	form := registerForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderUsers(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}
	err := h.auth.Register(r.Context(), auth.Credentials{Username: form.Username, Password: form.Password})
	if err == nil {
		h.audit.Log(r.Context(), "user.register", "user", form.Username, nil)
	}
	h.afterMutation(w, r, err, "User "+form.Username+" registered", UserRolesPath)
}

func (h *Handler) disableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserDisabled(w, r, true)
}

func (h *Handler) enableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserDisabled(w, r, false)
}

func (h *Handler) setUserDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, UserRolesPath, rbac.UserDisable) {
		return
	}
	if identity, ok := auth.CurrentIdentity(r.Context()); ok && identity.ID == id && disabled {
		shared.Flash(r.Context(), shared.FlashError, "You cannot disable your own account")
		http.Redirect(w, r, UserRolesPath, http.StatusSeeOther)
		return
	}
	action, message := "user.enable", "User enabled"
	if disabled {
		action, message = "user.disable", "User disabled"
		err = h.auth.DisableUser(r.Context(), id)
	} else {
		err = h.auth.EnableUser(r.Context(), id)
	}
	if err == nil {
		h.audit.Log(r.Context(), action, "user", idString(id), nil)
	}
	h.afterMutation(w, r, err, message, UserRolesPath)
}

func (h *Handler) saveUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !h.allow(w, r, UserRolesPath, rbac.UserAssignRoles) {
		return
	}
	roleIDs := formIDs(r, "roleIds")
	err = h.rbac.SetUserRoles(r.Context(), id, roleIDs)
	if err == nil {
		h.audit.Log(r.Context(), "user.roles", "user", idString(id), map[string]any{"roleIds": roleIDs})
	}
	h.afterMutation(w, r, err, "Roles saved", UserRolesPath+"?"+url.Values{"user": {idString(id)}}.Encode())
}
