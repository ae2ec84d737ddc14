package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sentry-admin/console/internal/auth"
	authhttp "github.com/sentry-admin/console/internal/auth/http"
	bugreporthttp "github.com/sentry-admin/console/internal/bugreport/http"
	errorloghttp "github.com/sentry-admin/console/internal/errorlog/http"
	"github.com/sentry-admin/console/internal/observability"
	rbachttp "github.com/sentry-admin/console/internal/rbac/http"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *authhttp.Handler
	ErrorLogHandler  *errorloghttp.Handler
	RBACHandler      *rbachttp.Handler
	BugReportHandler *bugreporthttp.Handler
	Metrics          *observability.Metrics
	HealthCheck      func(r *http.Request) error
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets skip sessions, CSRF and rate limiting.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.With(chimw.SetHeader("Cache-Control", "public, max-age=3600")).Handle("/static/*", fileServer)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.HealthCheck != nil {
			if err := params.HealthCheck(req); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			target := auth.LoginPath
			if uc := auth.FromContext(req.Context()); uc != nil && uc.IsLoggedIn() {
				target = auth.HomePath
			}
			http.Redirect(w, req, target, http.StatusSeeOther)
		})

		params.AuthHandler.MountRoutes(r)
		params.ErrorLogHandler.MountRoutes(r)
		r.Route("/rbac", params.RBACHandler.MountRoutes)
		r.Route("/bug-reports", params.BugReportHandler.MountRoutes)
	})

	return r
}
