package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/app"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	authhttp "github.com/sentry-admin/console/internal/auth/http"
	"github.com/sentry-admin/console/internal/bugreport"
	bugreporthttp "github.com/sentry-admin/console/internal/bugreport/http"
	"github.com/sentry-admin/console/internal/errorlog"
	errorloghttp "github.com/sentry-admin/console/internal/errorlog/http"
	"github.com/sentry-admin/console/internal/observability"
	"github.com/sentry-admin/console/internal/platform/cache"
	"github.com/sentry-admin/console/internal/platform/db"
	"github.com/sentry-admin/console/internal/rbac"
	rbachttp "github.com/sentry-admin/console/internal/rbac/http"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

const sessionCookie = "console_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction()).
		SealValues(shared.NewSealer(cfg.SessionSecret), shared.TokenKey)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	client := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		Tokens:     auth.TokenFromContext,
		Notifier:   shared.FlashNotifier{},
		Terminator: auth.Terminator{},
		Recorder:   metrics,
		Logger:     logger,
	})

	recorder, closeAudit, err := newAuditRecorder(ctx, cfg, logger)
	if err != nil {
		logger.Error("open audit store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeAudit()
	trail := audit.NewTrail(recorder, func(ctx context.Context) (int64, string) {
		if id, ok := auth.CurrentIdentity(ctx); ok {
			return id.ID, id.Username
		}
		return 0, ""
	}, logger)

	engine, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	renderer := view.NewRenderer(engine, csrfManager, logger)

	authAPI := auth.NewAPI(client)
	authHandler := authhttp.NewHandler(logger, authAPI, renderer, sessionManager, csrfManager, trail)
	errorLogHandler := errorloghttp.NewHandler(logger, errorlog.NewAPI(client), renderer, trail)
	rbacHandler := rbachttp.NewHandler(logger, rbac.NewAPI(client), authAPI, renderer, rbac.Guard{Logger: logger}, trail)
	bugReportHandler := bugreporthttp.NewHandler(logger, bugreport.NewAPI(client), renderer, trail)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		ErrorLogHandler:  errorLogHandler,
		RBACHandler:      rbacHandler,
		BugReportHandler: bugReportHandler,
		Metrics:          metrics,
		HealthCheck: func(r *http.Request) error {
			return cache.Ping(r.Context(), redisClient)
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// newAuditRecorder stores audit entries in PostgreSQL when a DSN is
// configured and falls back to the structured log otherwise.
func newAuditRecorder(ctx context.Context, cfg *app.Config, logger *slog.Logger) (audit.Recorder, func(), error) {
	if cfg.AuditPGDSN == "" {
		logger.Info("audit trail writes to log")
		return audit.NewLogRecorder(logger), func() {}, nil
	}
	pool, err := db.New(ctx, cfg.AuditPGDSN, db.Options{MaxConns: cfg.AuditPGMaxConns, ApplicationName: "sentry-admin-console"})
	if err != nil {
		return nil, nil, err
	}
	if err := audit.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return audit.NewPGRecorder(pool), pool.Close, nil
}
