// Package rbachttp serves the role, permission and user administration pages.
package rbachttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

// Handler manages the RBAC administration pages.
type Handler struct {
	logger    *slog.Logger
	rbac      *rbac.API
	auth      *auth.API
	renderer  *view.Renderer
	guard     rbac.Guard
	audit     *audit.Trail
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, rbacAPI *rbac.API, authAPI *auth.API, renderer *view.Renderer, guard rbac.Guard, trail *audit.Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		rbac:      rbacAPI,
		auth:      authAPI,
		renderer:  renderer,
		guard:     guard,
		audit:     trail,
		validator: validator.New(),
	}
}

// Paths of the RBAC pages.
const (
	RolesPath       = "/rbac/roles"
	PermissionsPath = "/rbac/permissions"
	UserRolesPath   = "/rbac/user-roles"
	AssignPath      = "/rbac/assign-permissions"
)

// MountRoutes registers RBAC routes below /rbac.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(auth.RequireSession)
	r.Route("/roles", func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.RolesGate...))
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Post("/{id}", h.updateRole)
		r.Post("/{id}/delete", h.deleteRole)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.PermissionsGate...))
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Post("/{id}", h.updatePermission)
		r.Post("/{id}/delete", h.deletePermission)
	})
	r.Route("/user-roles", func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.UserRolesGate...))
		r.Get("/", h.listUsers)
		r.Post("/register", h.registerUser)
		r.Post("/{id}/disable", h.disableUser)
		r.Post("/{id}/enable", h.enableUser)
		r.Post("/{id}/roles", h.saveUserRoles)
	})
	r.Route("/assign-permissions", func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.AssignGate...))
		r.Get("/", h.showAssign)
		r.Post("/toggle", h.togglePermissions)
		r.Post("/save", h.saveRolePermissions)
	})
}

// allow reports whether the session holds one of codes and, when it does
// not, flashes the forbidden notice and sends the browser back to fallback.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, fallback string, codes ...string) bool {
	if rbac.FromRequest(r).HasAny(codes...) {
		return true
	}
	shared.Flash(r.Context(), shared.FlashError, apiclient.MsgForbidden)
	http.Redirect(w, r, fallback, http.StatusSeeOther)
	return false
}

// afterMutation flashes the outcome of a backend mutation and redirects.
// An ended session goes to the login page instead.
func (h *Handler) afterMutation(w http.ResponseWriter, r *http.Request, err error, success, target string) {
	ctx := r.Context()
	switch {
	case err == nil:
		shared.Flash(ctx, shared.FlashSuccess, success)
	case auth.SessionEnded(err):
		auth.RedirectToLogin(w, r)
		return
	case apiclient.KindOf(err) == apiclient.KindRejected:
		shared.Flash(ctx, shared.FlashError, apiclient.UserMessage(err))
	default:
		h.logger.Warn("rbac mutation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidID
	}
	return id, nil
}

func formID(r *http.Request, field string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(field)), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func formIDs(r *http.Request, field string) []int64 {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	values := r.Form[field]
	ids := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func queryID(r *http.Request, key string) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
