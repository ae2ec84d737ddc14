package app

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-admin/console/internal/auth"
	authhttp "github.com/sentry-admin/console/internal/auth/http"
	"github.com/sentry-admin/console/internal/bugreport"
	bugreporthttp "github.com/sentry-admin/console/internal/bugreport/http"
	"github.com/sentry-admin/console/internal/errorlog"
	errorloghttp "github.com/sentry-admin/console/internal/errorlog/http"
	"github.com/sentry-admin/console/internal/observability"
	"github.com/sentry-admin/console/internal/rbac"
	rbachttp "github.com/sentry-admin/console/internal/rbac/http"
	"github.com/sentry-admin/console/internal/testing/consoletest"
)

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type browser struct {
	t          *testing.T
	router     http.Handler
	cookie     *http.Cookie
	cookieName string
}

func newConsole(t *testing.T, health func(*http.Request) error) (*consoletest.Harness, *browser, *observability.Metrics) {
	t.Helper()
	h := consoletest.New(t)
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Logger:           newTestLogger(),
		Config:           &Config{AppEnv: "test", RateLimit: 1000},
		SessionManager:   h.Sessions,
		CSRFManager:      h.CSRF,
		AuthHandler:      authhttp.NewHandler(nil, auth.NewAPI(h.Client), h.Renderer, h.Sessions, h.CSRF, h.Trail),
		ErrorLogHandler:  errorloghttp.NewHandler(nil, errorlog.NewAPI(h.Client), h.Renderer, h.Trail),
		RBACHandler:      rbachttp.NewHandler(nil, rbac.NewAPI(h.Client), auth.NewAPI(h.Client), h.Renderer, rbac.Guard{}, h.Trail),
		BugReportHandler: bugreporthttp.NewHandler(nil, bugreport.NewAPI(h.Client), h.Renderer, h.Trail),
		Metrics:          metrics,
		HealthCheck:      health,
	})
	return h, &browser{t: t, router: router, cookieName: h.Sessions.CookieName()}, metrics
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rr := httptest.NewRecorder()
	b.router.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == b.cookieName {
			b.cookie = c
		}
	}
	return rr
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestHealthz(t *testing.T) {
	_, b, _ := newConsole(t, nil)
	rr := b.get("/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Nil(t, b.cookie, "health checks must not open sessions")
}

func TestHealthzDegraded(t *testing.T) {
	_, b, _ := newConsole(t, func(*http.Request) error { return errors.New("redis down") })
	rr := b.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rr.Body.String())
}

func TestRootRedirectsAnonymousToLogin(t *testing.T) {
	_, b, _ := newConsole(t, nil)
	rr := b.get("/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	h, b, _ := newConsole(t, nil)
	rr := b.post("/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, h.Backend.Calls())
}

func TestLoginThroughFullStack(t *testing.T) {
	h, b, _ := newConsole(t, nil)
	h.Backend.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		consoletest.OK(w, map[string]any{
			"accessToken": "tok-1",
			"user":        map[string]any{"id": 7, "username": "admin", "permissions": []string{"error:read"}},
		})
	})

	page := b.get("/login")
	require.Equal(t, http.StatusOK, page.Code)
	match := csrfField.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2, "login form must carry a csrf token")

	rr := b.post("/login", url.Values{"csrf_token": {match[1]}, "username": {"admin"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.HomePath, rr.Header().Get("Location"))

	rr = b.get("/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.HomePath, rr.Header().Get("Location"))
}

func TestSecurityHeaders(t *testing.T) {
	_, b, _ := newConsole(t, nil)
	rr := b.get("/login")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "img-src 'self' data: https:")
	assert.NotContains(t, rr.Header().Get("Content-Security-Policy"), "unsafe-inline")
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestStaticAssetsServed(t *testing.T) {
	_, b, _ := newConsole(t, nil)
	rr := b.get("/static/css/console.css")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Nil(t, b.cookie)
}

func TestMetricsRecordRoutes(t *testing.T) {
	_, b, _ := newConsole(t, nil)
	b.get("/login")

	rr := b.get("/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `console_http_requests_total{code="200",route="/login"} 1`)
}

func TestOversizedBodyRejectedBeforeCSRF(t *testing.T) {
	h, b, _ := newConsole(t, nil)
	b.get("/login")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "huge.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0}, DefaultMaxBodyBytes+1))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("csrf_token", "late"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/bug-reports", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := b.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, h.Backend.Calls())
}
