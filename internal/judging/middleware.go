package judging

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/forge-club/forge/internal/platform/httpx"
)

type sessionContextKey struct{}

// ContextWithSession stores the judge session in context.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext extracts the judge session from context.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey{}).(*Session)
	return session
}

// Middleware guards judge-scoped routes behind a live session cookie.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireSession rejects requests without a live judge session. The denial
// is one uniform 401: a missing cookie, an unknown token, and an expired
// session all look the same from outside.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			httpx.Deny(w)
			return
		}
		session, err := m.Service.Lookup(r.Context(), cookie.Value)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("judge session lookup", slog.Any("error", err))
			}
			httpx.Deny(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}
