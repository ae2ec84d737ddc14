package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// LoadUserContext establishes the UserContext of every request from its session.
func LoadUserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := ContextWithUser(r.Context(), InitUserContext(sess))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession lets the request through only when an identity is
// persisted. A persisted identity whose context has not been established yet
// is initialised in place rather than bounced to the login page.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.Get(shared.IdentityKey) == "" {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		ctx := r.Context()
		uc := FromContext(ctx)
		if uc == nil {
			uc = InitUserContext(sess)
			ctx = ContextWithUser(ctx, uc)
		}
		if !uc.IsLoggedIn() {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext returns the bearer token persisted for the request's session.
func TokenFromContext(ctx context.Context) string {
	if sess := shared.SessionFromContext(ctx); sess != nil {
		return sess.Get(shared.TokenKey)
	}
	return ""
}

// Terminator ends the session of the request, used when the backend
// reports the token as no longer valid.
type Terminator struct{}

// TerminateSession implements apiclient.SessionTerminator.
func (Terminator) TerminateSession(ctx context.Context) {
	if uc := FromContext(ctx); uc != nil {
		uc.ForceLocalLogout()
		return
	}
	if sess := shared.SessionFromContext(ctx); sess != nil {
		sess.Delete(shared.IdentityKey)
		sess.Delete(shared.TokenKey)
	}
}

// SessionEnded reports whether err means the backend no longer accepts the
// session's token. The session has already been cleared by then.
func SessionEnded(err error) bool {
	return errors.Is(err, apiclient.ErrUnauthorized)
}

// RedirectToLogin sends the browser to the login page.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
