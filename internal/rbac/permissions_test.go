package rbac

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

	"github.com/sentry-admin/console/internal/shared"
)

func TestPermissionStoreReadsIdentity(t *testing.T) {
	store := shared.MemoryStorage{shared.IdentityKey: `{"id":1,"username":"a","permissions":["error:read","user:read"]}`}
	perms := NewPermissionStore(store)

	assert.Equal(t, []string{"error:read", "user:read"}, perms.UserPermissions())
	assert.True(t, perms.Has(ErrorRead))
	assert.False(t, perms.Has(RoleRead))
	assert.True(t, perms.HasAny(RoleRead, UserRead))
	assert.False(t, perms.HasAny(RoleRead, RoleWrite))
}

func TestPermissionStoreEmptyRequirementIsDenied(t *testing.T) {
	store := shared.MemoryStorage{shared.IdentityKey: `{"permissions":["error:read"]}`}
	assert.False(t, NewPermissionStore(store).HasAny())
}

func TestPermissionStoreMalformed(t *testing.T) {
	cases := map[string]string{
		"missing":        "",
		"broken":         "{",
		"no permissions": `{"id":1}`,
		"wrong type":     `{"permissions":"error:read"}`,
		"null":           `{"permissions":null}`,
		"mixed":          `{"permissions":["error:read",3]}`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			store := shared.MemoryStorage{}
			if blob != "" {
				store[shared.IdentityKey] = blob
			}
			perms := NewPermissionStore(store)
			assert.NotNil(t, perms.UserPermissions())
			assert.Empty(t, perms.UserPermissions())
			assert.False(t, perms.Has(ErrorRead))
		})
	}
}

func TestPermissionStoreRereadsStorage(t *testing.T) {
	store := shared.MemoryStorage{shared.IdentityKey: `{"permissions":["error:read"]}`}
	perms := NewPermissionStore(store)
	assert.True(t, perms.Has(ErrorRead))

	store[shared.IdentityKey] = `{"permissions":["rbac:role:read"]}`
	assert.False(t, perms.Has(ErrorRead))
	assert.True(t, perms.Has(RoleRead))
}

func TestPermissionStoreIsCaseSensitive(t *testing.T) {
	store := shared.MemoryStorage{shared.IdentityKey: `{"permissions":["Error:Read"]}`}
	assert.False(t, NewPermissionStore(store).Has(ErrorRead))
}

func sessionRequest(t *testing.T, identity string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/rbac/roles", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	if identity != "" {
		sess.Set(shared.IdentityKey, identity)
		sess.Set(shared.TokenKey, "tok")
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestGuardRedirectsWithoutPermission(t *testing.T) {
	req := sessionRequest(t, `{"id":1,"username":"a","permissions":["error:read"]}`)
	reached := false
	h := Guard{}.RequireAny(RoleRead)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, FallbackPath, rr.Header().Get("Location"))
}

func TestGuardAdmitsAnyMatchingPermission(t *testing.T) {
	req := sessionRequest(t, `{"id":1,"username":"a","permissions":["rbac:role:write"]}`)
	reached := false
	h := Guard{}.RequireAny(RolesGate...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGuardWithoutSessionRedirects(t *testing.T) {
	rr := httptest.NewRecorder()
	Guard{}.RequireAny(ErrorRead)(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, FallbackPath, rr.Header().Get("Location"))
}
