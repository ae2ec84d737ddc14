// Package authhttp serves the sign-in, sign-out and profile pages.
package authhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	api       *auth.API
	renderer  *view.Renderer
	sessions  *shared.SessionManager
	csrf      *shared.CSRFManager
	audit     *audit.Trail
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api *auth.API, renderer *view.Renderer, sessions *shared.SessionManager, csrf *shared.CSRFManager, trail *audit.Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		api:       api,
		renderer:  renderer,
		sessions:  sessions,
		csrf:      csrf,
		audit:     trail,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/logout/local", h.handleLocalLogout)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)
		r.Get("/profile", h.showProfile)
		r.Post("/profile/refresh", h.handleRefresh)
	})
}

type loginForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=128"`
}

type loginPageData struct {
	Form   loginForm
	Errors view.FormErrors
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if uc := auth.FromContext(r.Context()); uc != nil && uc.IsLoggedIn() {
		http.Redirect(w, r, auth.HomePath, http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, "pages/login.html", "Sign in", loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderLoginError(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	result, err := h.api.Login(ctx, auth.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		errs := view.FormErrors{}
		status := http.StatusBadGateway
		switch apiclient.KindOf(err) {
		case apiclient.KindRejected, apiclient.KindBadRequest, apiclient.KindUnauthorized, apiclient.KindForbidden:
			errs["general"] = apiclient.BackendMessage(err)
			status = http.StatusBadRequest
		}
		h.renderLoginError(w, r, form, errs, status)
		return
	}
	if result.AccessToken == "" {
		h.renderLoginError(w, r, form, view.FormErrors{"general": "The server did not issue an access token"}, http.StatusBadGateway)
		return
	}

	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessions.Renew(sess)
	uc := auth.FromContext(ctx)
	if uc == nil {
		uc = auth.InitUserContext(sess)
		ctx = auth.ContextWithUser(ctx, uc)
	}
	target, err := uc.Login(auth.NewIdentity(result.User), result.AccessToken)
	if err != nil {
		h.logger.Error("persist identity", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if _, err := h.csrf.Rotate(ctx, sess); err != nil {
		h.logger.Warn("rotate csrf token", slog.Any("error", err))
	}
	h.audit.Log(ctx, "auth.login", "user", strconv.FormatInt(result.User.ID, 10), nil)
	shared.Flash(ctx, shared.FlashSuccess, "Welcome back, "+result.User.Username)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, form loginForm, errs view.FormErrors, status int) {
	form.Password = ""
	h.renderer.Render(w, r, "pages/login.html", "Sign in", loginPageData{Form: form, Errors: errs}, status)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uc := auth.FromContext(ctx)
	if uc == nil {
		sess := shared.SessionFromContext(ctx)
		if sess == nil {
			auth.RedirectToLogin(w, r)
			return
		}
		uc = auth.InitUserContext(sess)
	}
	identity, _ := uc.Identity()
	target, err := uc.Logout(ctx, h.api)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		h.logger.Warn("logout failed", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/logout_failed.html", "Sign out failed", map[string]any{
			"Message": apiclient.UserMessage(err),
		}, http.StatusBadGateway)
		return
	}
	if identity.ID != 0 {
		h.audit.Log(ctx, "auth.logout", "user", strconv.FormatInt(identity.ID, 10), nil)
	}
	shared.Flash(ctx, shared.FlashInfo, "You have been signed out")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLocalLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := auth.LoginPath
	if uc := auth.FromContext(ctx); uc != nil {
		target = uc.ForceLocalLogout()
	} else {
		auth.Terminator{}.TerminateSession(ctx)
	}
	shared.Flash(ctx, shared.FlashWarning, "Signed out on this browser only")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type profilePageData struct {
	Identity auth.Identity
	Profile  *auth.Profile
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.CurrentIdentity(ctx)
	data := profilePageData{Identity: identity}
	profile, err := h.api.Me(ctx)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		h.logger.Warn("load profile", slog.Any("error", err))
	} else {
		data.Profile = &profile
	}
	h.renderer.Render(w, r, "pages/profile.html", "Profile", data, http.StatusOK)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uc := auth.FromContext(ctx)
	if uc == nil {
		auth.RedirectToLogin(w, r)
		return
	}
	if _, err := uc.Refresh(ctx, h.api); err != nil {
		if auth.SessionEnded(err) || errors.Is(err, auth.ErrNotSignedIn) {
			auth.RedirectToLogin(w, r)
			return
		}
		if apiclient.KindOf(err) == apiclient.KindRejected {
			shared.Flash(ctx, shared.FlashError, apiclient.UserMessage(err))
		}
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	shared.Flash(ctx, shared.FlashSuccess, "Permissions refreshed")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}
