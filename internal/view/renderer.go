package view

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
)

// Renderer assembles the per-request TemplateData and writes pages.
type Renderer struct {
	engine *Engine
	csrf   *shared.CSRFManager
	logger *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(engine *Engine, csrf *shared.CSRFManager, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: engine, csrf: csrf, logger: logger}
}

// Render writes template with status. The page is rendered into a buffer
// first so a template failure still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, template, title string, data any, status int) {
	viewData := r.templateData(req, title, data)
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, template, viewData); err != nil {
		r.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *Renderer) templateData(req *http.Request, title string, data any) TemplateData {
	ctx := req.Context()
	sess := shared.SessionFromContext(ctx)
	td := TemplateData{Title: title, CurrentPath: req.URL.Path, Data: data}
	if sess != nil {
		if r.csrf != nil {
			token, err := r.csrf.EnsureToken(ctx, sess)
			if err != nil {
				r.logger.Warn("ensure csrf token", slog.Any("error", err))
			}
			td.CSRFToken = token
		}
		td.Flashes = sess.PopFlashes()
	}
	if id, ok := auth.CurrentIdentity(ctx); ok {
		td.Viewer = &Viewer{ID: id.ID, Username: id.Username, Email: id.Email, AvatarURL: id.AvatarURL}
		td.Permissions = rbac.FromRequest(req).UserPermissions()
	}
	return td
}
