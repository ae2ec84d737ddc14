package auth

import (
	"net/url"
	"time"
)

// Identity is the signed-in operator as persisted in session storage.
type Identity struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	AvatarURL   string   `json:"avatar,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Credentials is the body of login and register calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginUser is the user part of a successful login response.
type LoginUser struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// LoginResult is the data of POST /auth/login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	User        LoginUser `json:"user"`
}

// Profile is the data of GET /auth/me.
type Profile struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions,omitempty"`
	Disabled    bool       `json:"disabled"`
}

const avatarBase = "https://api.dicebear.com/7.x/initials/svg?seed="

// AvatarFor returns the generated initials avatar of username.
func AvatarFor(username string) string {
	return avatarBase + url.QueryEscape(username)
}

// NewIdentity builds the identity persisted after a successful login.
func NewIdentity(user LoginUser) Identity {
	return Identity{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		AvatarURL:   AvatarFor(user.Username),
		Permissions: user.Permissions,
	}
}
