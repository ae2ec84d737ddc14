// Package errorloghttp serves the home page, the error dashboard and error details.
package errorloghttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/errorlog"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

const recentOnHome = 5

// Handler exposes error-record pages.
type Handler struct {
	logger   *slog.Logger
	api      *errorlog.API
	renderer *view.Renderer
	audit    *audit.Trail
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, api *errorlog.API, renderer *view.Renderer, trail *audit.Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, renderer: renderer, audit: trail}
}

// MountRoutes registers the error pages. Every page requires a session;
// changing a status additionally requires error:resolve.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)
		r.Get("/home", h.home)
		r.Get("/dashboard", h.dashboard)
		r.Get("/error/{id}", h.detail)
		r.Post("/error/{id}/status", h.updateStatus)
	})
}

type homePageData struct {
	CanRead    bool
	Unresolved int
	Recent     []errorlog.Record
	Error      string
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	data := homePageData{CanRead: rbac.FromRequest(r).Has(rbac.ErrorRead)}
	if data.CanRead {
		page, err := h.api.List(r.Context(), errorlog.Filter{Status: errorlog.StatusUnresolved, Page: 1, PageSize: recentOnHome})
		if err != nil {
			if auth.SessionEnded(err) {
				auth.RedirectToLogin(w, r)
				return
			}
			data.Error = apiclient.UserMessage(err)
		} else {
			data.Unresolved = page.Pagination.Total
			if data.Unresolved < len(page.List) {
				data.Unresolved = len(page.List)
			}
			data.Recent = page.List
		}
	}
	h.renderer.Render(w, r, "pages/home.html", "Home", data, http.StatusOK)
}

type dashboardPageData struct {
	Filter       errorlog.Filter
	Records      []errorlog.Record
	Pager        view.Pager
	Counters     errorlog.Counters
	Statuses     []errorlog.Status
	Projects     []errorlog.Project
	Environments []errorlog.Environment
	Error        string
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	page, pageSize := shared.PageParams(r)
	q := r.URL.Query()
	filter := errorlog.Filter{
		Status:      errorlog.Status(strings.TrimSpace(q.Get("status"))),
		CreatedAt:   strings.TrimSpace(q.Get("createdAt")),
		Project:     errorlog.Project(strings.TrimSpace(q.Get("project"))),
		Environment: errorlog.Environment(strings.TrimSpace(q.Get("environment"))),
		Page:        page,
		PageSize:    pageSize,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		filter.Status = ""
	}
	data := dashboardPageData{
		Filter:       filter,
		Statuses:     errorlog.Statuses,
		Projects:     errorlog.Projects,
		Environments: errorlog.Environments,
	}
	result, err := h.api.List(r.Context(), filter)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		data.Error = apiclient.UserMessage(err)
		result.Pagination = shared.NewPagination(page, pageSize, 0)
	}
	data.Records = result.List
	data.Pager = view.NewPager(result.Pagination, r)
	data.Counters = errorlog.Count(result.List, result.Pagination.Total)
	h.renderer.Render(w, r, "pages/dashboard.html", "Dashboard", data, http.StatusOK)
}

type detailPageData struct {
	Record     errorlog.Record
	Statuses   []errorlog.Status
	CanResolve bool
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	record, err := h.api.Get(r.Context(), id)
	if err != nil {
		switch {
		case auth.SessionEnded(err):
			auth.RedirectToLogin(w, r)
		case apiclient.KindOf(err) == apiclient.KindNotFound:
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		default:
			h.logger.Warn("load error record", slog.Int64("id", id), slog.Any("error", err))
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		}
		return
	}
	data := detailPageData{
		Record:     record,
		Statuses:   errorlog.Statuses,
		CanResolve: rbac.FromRequest(r).Has(rbac.ErrorResolve),
	}
	h.renderer.Render(w, r, "pages/error_detail.html", record.Type, data, http.StatusOK)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	target := "/error/" + strconv.FormatInt(id, 10)
	if !rbac.FromRequest(r).Has(rbac.ErrorResolve) {
		shared.Flash(ctx, shared.FlashError, apiclient.MsgForbidden)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	status := errorlog.Status(strings.TrimSpace(r.PostFormValue("status")))
	err = h.api.UpdateStatus(ctx, id, status)
	switch {
	case err == nil:
		h.audit.Log(ctx, "error.status", "error", strconv.FormatInt(id, 10), map[string]any{"status": string(status)})
		shared.Flash(ctx, shared.FlashSuccess, "Status changed to "+status.Label())
	case auth.SessionEnded(err):
		auth.RedirectToLogin(w, r)
		return
	case apiclient.KindOf(err) == apiclient.KindRejected:
		shared.Flash(ctx, shared.FlashError, apiclient.UserMessage(err))
	case errors.Is(err, errorlog.ErrInvalidStatus):
		shared.Flash(ctx, shared.FlashError, "Choose a valid status")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func recordID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidID
	}
	return id, nil
}
