package view

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2026, 1, 7, 9, 24, 0, 0, time.UTC)
	assert.Equal(t, "07 Jan 2026 09:24", formatDate(ts))
	assert.Equal(t, "07 Jan 2026 09:24", formatDate(&ts))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))
	assert.Equal(t, "", formatDate(time.Time{}))
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyJSON([]byte(`{"a":1}`)))
	assert.Equal(t, "not json", prettyJSON([]byte(`not json`)))
	assert.Equal(t, "", prettyJSON(nil))
}

func TestSanitizeHTML(t *testing.T) {
	out := string(SanitizeHTML(`<p>steps</p><script>alert(1)</script><p><img src="https://cdn.example.com/shot.png" alt="shot.png" onerror="alert(2)"></p>`))
	assert.Contains(t, out, "<p>steps</p>")
	assert.Contains(t, out, `<img src="https://cdn.example.com/shot.png" alt="shot.png">`)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onerror")

	assert.NotContains(t, string(SanitizeHTML(`<img src="javascript:alert(1)">`)), "javascript:")
	assert.NotContains(t, string(SanitizeHTML(`<a href="javascript:alert(1)">x</a>`)), "javascript:")
}

func TestTemplateDataCanAndNav(t *testing.T) {
	td := TemplateData{
		CurrentPath: "/error/7",
		Viewer:      &Viewer{Username: "a"},
		Permissions: []string{rbac.RoleRead},
	}
	assert.True(t, td.Can(rbac.RoleRead, rbac.UserRead))
	assert.False(t, td.Can(rbac.UserRead))
	assert.False(t, td.Can())

	var labels []string
	var active string
	for _, item := range td.NavItems() {
		labels = append(labels, item.Label)
		if item.Active {
			active = item.Label
		}
	}
	assert.Equal(t, []string{"Home", "Dashboard", "Bug Reports", "Roles"}, labels)
	assert.Equal(t, "Dashboard", active)
	assert.Empty(t, TemplateData{}.NavItems())
}

func TestRendererFillsChrome(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	sm := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	uc := auth.InitUserContext(sess)
	_, err = uc.Login(auth.Identity{ID: 1, Username: "admin", Permissions: []string{rbac.ErrorRead}}, "tok")
	require.NoError(t, err)
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Welcome back"})

	ctx := auth.ContextWithUser(shared.ContextWithSession(req.Context(), sess), uc)
	req = req.WithContext(ctx)
	r := NewRenderer(engine, shared.NewCSRFManager("csrf"), nil)

	td := r.templateData(req, "Home", nil)
	require.NotNil(t, td.Viewer)
	assert.Equal(t, "admin", td.Viewer.Username)
	assert.Equal(t, []string{rbac.ErrorRead}, td.Permissions)
	assert.NotEmpty(t, td.CSRFToken)
	assert.Equal(t, "Welcome back", td.Flashes[0].Message)

	rr := httptest.NewRecorder()
	r.Render(rr, req, "pages/home.html", "Home", map[string]any{}, http.StatusOK)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "admin")
}

func TestRendererUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	NewRenderer(engine, nil, nil).Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), "pages/missing.html", "x", nil, http.StatusOK)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
