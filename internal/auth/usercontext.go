package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sentry-admin/console/internal/shared"
)

// Navigation targets returned by state transitions.
const (
	HomePath  = "/home"
	LoginPath = "/login"
)

// State is the authentication state of a browser session.
type State int

const (
	// Anonymous means no identity is persisted.
	Anonymous State = iota
	// Authenticated means an identity and token are persisted.
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Backend is the subset of API the user context depends on.
type Backend interface {
	Logout(ctx context.Context) error
	Me(ctx context.Context) (Profile, error)
}

// UserContext holds the signed-in identity of one browser and mirrors every
// change to its session storage.
type UserContext struct {
	mu       sync.RWMutex
	store    shared.Storage
	identity *Identity
}

// InitUserContext derives the state from storage. A persisted identity that
// fails to parse, or that has lost its token, purges both keys.
func InitUserContext(store shared.Storage) *UserContext {
	uc := &UserContext{store: store}
	raw := store.Get(shared.IdentityKey)
	if raw == "" {
		return uc
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || store.Get(shared.TokenKey) == "" {
		uc.purge()
		return uc
	}
	uc.identity = &id
	return uc
}

// State reports the current state.
func (u *UserContext) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.identity == nil {
		return Anonymous
	}
	return Authenticated
}

// IsLoggedIn is shorthand for State() == Authenticated.
func (u *UserContext) IsLoggedIn() bool {
	return u.State() == Authenticated
}

// Identity returns a copy of the signed-in identity.
func (u *UserContext) Identity() (Identity, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.identity == nil {
		return Identity{}, false
	}
	id := *u.identity
	id.Permissions = append([]string(nil), u.identity.Permissions...)
	return id, true
}

// Login persists identity and token and returns the page to navigate to.
// The token is trusted as given; a second Login overwrites the first.
func (u *UserContext) Login(identity Identity, token string) (string, error) {
	blob, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.store.Set(shared.IdentityKey, string(blob))
	u.store.Set(shared.TokenKey, token)
	u.identity = &identity
	return HomePath, nil
}

// Logout revokes the token on the backend and, only once that succeeds,
// clears local state. On failure the state is left untouched so the caller
// can offer a retry or ForceLocalLogout. Logging out an anonymous context
// skips the backend and still leaves storage empty.
func (u *UserContext) Logout(ctx context.Context, backend Backend) (string, error) {
	if !u.IsLoggedIn() {
		u.mu.Lock()
		u.purge()
		u.mu.Unlock()
		return LoginPath, nil
	}
	if err := backend.Logout(ctx); err != nil {
		return "", err
	}
	return u.ForceLocalLogout(), nil
}

// ForceLocalLogout clears local state without contacting the backend.
func (u *UserContext) ForceLocalLogout() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.purge()
	return LoginPath
}

var refreshGroup singleflight.Group

// ErrNotSignedIn is returned by operations that need an identity.
var ErrNotSignedIn = errors.New("auth: not signed in")

// Refresh re-fetches the profile and replaces the identity wholesale. Fields
// the backend omits (email, avatar, permissions) keep their current values.
// Concurrent refreshes of the same token share one backend call.
func (u *UserContext) Refresh(ctx context.Context, backend Backend) (Identity, error) {
	current, ok := u.Identity()
	if !ok {
		return Identity{}, ErrNotSignedIn
	}
	token := u.store.Get(shared.TokenKey)
	// The shared call outlives any single waiter; each caller still stops
	// waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := refreshGroup.DoChan(token, func() (any, error) {
		return backend.Me(detached)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Identity{}, res.Err
	}
	profile := res.Val.(Profile)
	next := Identity{
		ID:          profile.ID,
		Username:    profile.Username,
		Email:       profile.Email,
		AvatarURL:   current.AvatarURL,
		Permissions: profile.Permissions,
	}
	if next.Email == "" {
		next.Email = current.Email
	}
	if profile.Permissions == nil {
		next.Permissions = current.Permissions
	}
	if _, err := u.Login(next, token); err != nil {
		return Identity{}, err
	}
	return next, nil
}

// purge clears both storage keys. Callers hold u.mu.
func (u *UserContext) purge() {
	u.store.Delete(shared.IdentityKey)
	u.store.Delete(shared.TokenKey)
	u.identity = nil
}

type userContextKey struct{}

// ContextWithUser stores uc in ctx.
func ContextWithUser(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uc)
}

// FromContext returns the user context of the request, nil when none was established.
func FromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey{}).(*UserContext)
	return uc
}

// CurrentIdentity returns the signed-in identity of the request.
func CurrentIdentity(ctx context.Context) (Identity, bool) {
	if uc := FromContext(ctx); uc != nil {
		return uc.Identity()
	}
	return Identity{}, false
}
