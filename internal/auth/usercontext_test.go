package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-admin/console/internal/shared"
)

type stubBackend struct {
	logoutErr  error
	logoutHits int
	profile    Profile
	meErr      error
}

func (s *stubBackend) Logout(context.Context) error {
	s.logoutHits++
	return s.logoutErr
}

func (s *stubBackend) Me(context.Context) (Profile, error) {
	return s.profile, s.meErr
}

func TestInitUserContextPurgesMalformedIdentity(t *testing.T) {
	blobs := []string{
		"{",
		"not json",
		`{"id":"seven"}`,
		`[1,2,3]`,
		`{"username":42}`,
	}
	for _, blob := range blobs {
		t.Run(blob, func(t *testing.T) {
			store := shared.MemoryStorage{shared.IdentityKey: blob, shared.TokenKey: "tok"}
			uc := InitUserContext(store)
			assert.Equal(t, Anonymous, uc.State())
			assert.Empty(t, store.Get(shared.IdentityKey))
			assert.Empty(t, store.Get(shared.TokenKey))
		})
	}
}

func TestInitUserContextPurgesIdentityWithoutToken(t *testing.T) {
	store := shared.MemoryStorage{shared.IdentityKey: `{"id":1,"username":"admin"}`}
	uc := InitUserContext(store)
	assert.False(t, uc.IsLoggedIn())
	assert.Empty(t, store)
}

func TestInitUserContextWithoutIdentityIsAnonymous(t *testing.T) {
	uc := InitUserContext(shared.MemoryStorage{})
	assert.Equal(t, Anonymous, uc.State())
	_, ok := uc.Identity()
	assert.False(t, ok)
}

func TestLoginSurvivesReinitialisation(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	identity := Identity{ID: 3, Username: "alice", Email: "alice@example.com", AvatarURL: "https://avatar/alice", Permissions: []string{"error:read"}}

	target, err := uc.Login(identity, "token-1")
	require.NoError(t, err)
	assert.Equal(t, HomePath, target)
	assert.Equal(t, "token-1", store.Get(shared.TokenKey))

	reloaded := InitUserContext(store)
	require.Equal(t, Authenticated, reloaded.State())
	got, ok := reloaded.Identity()
	require.True(t, ok)
	assert.Equal(t, identity, got)
}

func TestSecondLoginOverwrites(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "first"}, "a")
	_, _ = uc.Login(Identity{ID: 2, Username: "second"}, "b")

	got, _ := InitUserContext(store).Identity()
	assert.Equal(t, "second", got.Username)
	assert.Equal(t, "b", store.Get(shared.TokenKey))
}

func TestLogoutClearsOnlyAfterBackendSucceeds(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "admin"}, "tok")

	backend := &stubBackend{logoutErr: errors.New("backend down")}
	target, err := uc.Logout(context.Background(), backend)
	require.Error(t, err)
	assert.Empty(t, target)
	assert.True(t, uc.IsLoggedIn())
	assert.Equal(t, "tok", store.Get(shared.TokenKey))

	backend.logoutErr = nil
	target, err = uc.Logout(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, LoginPath, target)
	assert.False(t, uc.IsLoggedIn())
	assert.Empty(t, store)
}

func TestLogoutTwiceIsHarmless(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "admin"}, "tok")
	backend := &stubBackend{}

	_, err := uc.Logout(context.Background(), backend)
	require.NoError(t, err)
	target, err := uc.Logout(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, LoginPath, target)
	assert.Equal(t, 1, backend.logoutHits)
	assert.Empty(t, store)
}

func TestForceLocalLogout(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "admin"}, "tok")

	assert.Equal(t, LoginPath, uc.ForceLocalLogout())
	assert.Equal(t, Anonymous, uc.State())
	assert.Empty(t, store)
}

func TestRefreshReplacesIdentity(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "admin", AvatarURL: "https://avatar/admin", Permissions: []string{"error:read"}}, "tok-refresh")

	backend := &stubBackend{profile: Profile{ID: 1, Username: "admin", Permissions: []string{"error:read", "rbac:role:read"}}}
	next, err := uc.Refresh(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"error:read", "rbac:role:read"}, next.Permissions)
	assert.Equal(t, "https://avatar/admin", next.AvatarURL)

	persisted, _ := InitUserContext(store).Identity()
	assert.Equal(t, next, persisted)
}

func TestRefreshKeepsPermissionsWhenProfileOmitsThem(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, _ = uc.Login(Identity{ID: 1, Username: "admin", Permissions: []string{"error:read"}}, "tok-keep")

	next, err := uc.Refresh(context.Background(), &stubBackend{profile: Profile{ID: 1, Username: "admin"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"error:read"}, next.Permissions)
}

type blockingBackend struct {
	stubBackend
	started chan struct{}
	release chan struct{}
	done    chan error
}

func (b *blockingBackend) Me(ctx context.Context) (Profile, error) {
	close(b.started)
	select {
	case <-ctx.Done():
		b.done <- ctx.Err()
		return Profile{}, ctx.Err()
	case <-b.release:
		b.done <- nil
		return b.profile, nil
	}
}

func TestRefreshSurvivesFirstCallerLeaving(t *testing.T) {
	store := shared.MemoryStorage{}
	uc := InitUserContext(store)
	_, err := uc.Login(Identity{ID: 1, Username: "admin"}, "tok-leaving")
	require.NoError(t, err)

	backend := &blockingBackend{
		stubBackend: stubBackend{profile: Profile{ID: 1, Username: "admin"}},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
		done:        make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := uc.Refresh(ctx, backend)
		result <- err
	}()

	<-backend.started
	cancel()
	assert.ErrorIs(t, <-result, context.Canceled)

	close(backend.release)
	assert.NoError(t, <-backend.done, "shared backend call must not inherit the caller's cancellation")
}

func TestRefreshRequiresIdentity(t *testing.T) {
	uc := InitUserContext(shared.MemoryStorage{})
	_, err := uc.Refresh(context.Background(), &stubBackend{})
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
