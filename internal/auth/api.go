package auth

import (
	"context"
	"fmt"

	"github.com/sentry-admin/console/internal/apiclient"
)

// API maps authentication calls onto the backend.
type API struct {
	client *apiclient.Client
}

// NewAPI constructs an API.
func NewAPI(client *apiclient.Client) *API {
	return &API{client: client}
}

// Login exchanges credentials for an access token.
func (a *API) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	if err := a.client.Post(ctx, "/auth/login", creds, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Logout invalidates the caller's token on the backend.
func (a *API) Logout(ctx context.Context) error {
	return a.client.Post(ctx, "/auth/logout", nil, nil)
}

// Register creates a new console user.
func (a *API) Register(ctx context.Context, creds Credentials) error {
	return a.client.Post(ctx, "/auth/register", creds, nil)
}

// Me returns the caller's profile including roles and disabled flag.
func (a *API) Me(ctx context.Context) (Profile, error) {
	var out Profile
	if err := a.client.Get(ctx, "/auth/me", nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// DisableUser blocks a user from signing in.
func (a *API) DisableUser(ctx context.Context, userID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/auth/disable/%d", userID), nil, nil)
}

// EnableUser lifts a previous DisableUser.
func (a *API) EnableUser(ctx context.Context, userID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/auth/enable/%d", userID), nil, nil)
}
