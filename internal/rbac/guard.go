package rbac

import (
	"log/slog"
	"net/http"

	"github.com/sentry-admin/console/internal/shared"
)

// FallbackPath is where a request lacking the required permissions lands.
const FallbackPath = "/home"

// Guard wires permission checks for HTTP handlers.
type Guard struct {
	Logger *slog.Logger
}

// RequireAny lets the request through when the session holds at least one of
// codes, and redirects to FallbackPath otherwise.
func (g Guard) RequireAny(codes ...string) func(http.Handler) http.Handler {
	required := append([]string(nil), codes...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromRequest(r).HasAny(required...) {
				next.ServeHTTP(w, r)
				return
			}
			if g.Logger != nil {
				g.Logger.Debug("rbac require any denied",
					slog.String("path", r.URL.Path),
					slog.Any("required", required))
			}
			http.Redirect(w, r, FallbackPath, http.StatusSeeOther)
		})
	}
}

// FromRequest returns the permission store of the request's session.
func FromRequest(r *http.Request) PermissionStore {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return NewPermissionStore(sess)
	}
	return PermissionStore{}
}
