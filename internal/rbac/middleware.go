package rbac

import (
	"log/slog"
	"net/http"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. The principal id
// is taken from the operator session; its effective set is resolved once per
// request and gated. Denials are uniform 403s that never say which
// permission was missing.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// RequireAll ensures the current principal holds all listed permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.gate(RequireAll, perms)
}

// RequireAny ensures the current principal holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.gate(RequireAny, perms)
}

func (m Middleware) gate(check func(*perm.Set, ...string) error, perms []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := shared.PrincipalFromContext(r.Context())
			if principalID == "" {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			set, err := m.Resolver.Resolve(r.Context(), principalID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac resolve", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if err := check(set, perms...); err != nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
