// Package consoletest wires a console handler against a fake backend and a
// miniredis session store for package tests.
package consoletest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CONSOLE_TEST_MODE") == "" {
			_ = os.Setenv("CONSOLE_TEST_MODE", "1")
		}
	})
}

// Call is one request received by the fake backend.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   map[string]any
}

// Backend is a chi router standing in for the remote API. Every request is
// recorded before routing.
type Backend struct {
	chi.Router
	mu    sync.Mutex
	calls []Call
}

// Calls returns the recorded requests.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Called reports whether method path was requested.
func (b *Backend) Called(method, path string) bool {
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			return true
		}
	}
	return false
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Auth: r.Header.Get("Authorization")}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&call.Body)
		}
		b.mu.Lock()
		b.calls = append(b.calls, call)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// OK writes a successful envelope around data.
func OK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// Raw writes a successful envelope around pre-encoded data.
func Raw(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
}

// Reject writes a success=false envelope.
func Reject(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

// Status writes a bare HTTP error.
func Status(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

// AuditSink collects audit entries in memory.
type AuditSink struct {
	mu      sync.Mutex
	Entries []audit.Entry
}

// Record implements audit.Recorder.
func (s *AuditSink) Record(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, e)
	return nil
}

// Actions lists the recorded actions in order.
func (s *AuditSink) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Action)
	}
	return out
}

// Harness bundles the collaborators every page handler needs.
type Harness struct {
	t        *testing.T
	Backend  *Backend
	Client   *apiclient.Client
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Renderer *view.Renderer
	Audit    *AuditSink
	Trail    *audit.Trail
	cookie   *http.Cookie
}

// New starts a fake backend and a miniredis session store.
func New(t *testing.T) *Harness {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "console_session", "secret", time.Hour, false).
		SealValues(shared.NewSealer("secret"), shared.TokenKey)
	csrf := shared.NewCSRFManager("csrf-secret")

	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	backend := &Backend{}
	router := chi.NewRouter()
	router.Use(backend.record)
	backend.Router = router
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := apiclient.New(apiclient.Options{
		BaseURL:    srv.URL,
		Tokens:     auth.TokenFromContext,
		Notifier:   shared.FlashNotifier{},
		Terminator: auth.Terminator{},
	})

	sink := &AuditSink{}
	trail := audit.NewTrail(sink, func(ctx context.Context) (int64, string) {
		if id, ok := auth.CurrentIdentity(ctx); ok {
			return id.ID, id.Username
		}
		return 0, ""
	}, nil)

	return &Harness{
		t:        t,
		Backend:  backend,
		Client:   client,
		Sessions: sessions,
		CSRF:     csrf,
		Renderer: view.NewRenderer(engine, csrf, nil),
		Audit:    sink,
		Trail:    trail,
	}
}

// SignIn persists identity and token in a fresh browser session.
func (h *Harness) SignIn(identity auth.Identity, token string) {
	h.t.Helper()
	h.WithSession(func(sess *shared.Session) {
		if _, err := auth.InitUserContext(sess).Login(identity, token); err != nil {
			h.t.Fatalf("login: %v", err)
		}
	})
}

// WithSession loads the browser's session, lets fn mutate it and commits it.
func (h *Harness) WithSession(fn func(sess *shared.Session)) {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	sess, err := h.Sessions.Load(context.Background(), req)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	fn(sess)
	rr := httptest.NewRecorder()
	if err := h.Sessions.Commit(context.Background(), rr, req, sess); err != nil {
		h.t.Fatalf("commit session: %v", err)
	}
	h.keepCookie(rr)
}

// Session returns a read-only snapshot of the browser's session.
func (h *Harness) Session() *shared.Session {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	sess, err := h.Sessions.Load(context.Background(), req)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	return sess
}

// Flashes returns the queued flash messages without consuming them.
func (h *Harness) Flashes() []shared.FlashMessage {
	return h.Session().PopFlashes()
}

// Do sends req through the session middleware, the user context loader and
// handler, carrying the browser's cookie.
func (h *Harness) Do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rr := httptest.NewRecorder()
	h.Sessions.Middleware(nil)(auth.LoadUserContext(handler)).ServeHTTP(rr, req)
	h.keepCookie(rr)
	return rr
}

// Get issues a GET for target.
func (h *Harness) Get(handler http.Handler, target string) *httptest.ResponseRecorder {
	return h.Do(handler, httptest.NewRequest(http.MethodGet, target, nil))
}

// PostForm issues a urlencoded POST for target.
func (h *Harness) PostForm(handler http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.Do(handler, req)
}

func (h *Harness) keepCookie(rr *httptest.ResponseRecorder) {
	for _, c := range rr.Result().Cookies() {
		if c.Name == h.Sessions.CookieName() {
			h.cookie = c
		}
	}
}
