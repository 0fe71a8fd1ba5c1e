package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/devnovate/api/internal/auth"
	"github.com/devnovate/api/types"
)

// Authenticator turns bearer access tokens into a principal on the request
// context.
type Authenticator struct {
	sessions *auth.SessionManager
}

func NewAuthenticator(sessions *auth.SessionManager) *Authenticator {
	return &Authenticator{sessions: sessions}
}

// RequireAuth rejects requests without a valid access token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.principal(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := a.principal(r); ok {
			r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) principal(r *http.Request) (auth.Principal, bool) {
	token, err := bearerToken(r)
	if err != nil {
		return auth.Principal{}, false
	}
	principal, err := a.sessions.VerifyAccess(token)
	if err != nil {
		return auth.Principal{}, false
	}
	return principal, true
}

// RequireRole must run after RequireAuth. The role is taken from the
// verified token.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authorize(r, role); err != nil {
				writeServiceError(w, r, slog.Default(), err, "authorization failed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorize(r *http.Request, role types.Role) error {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.ErrUnauthenticated
	}
	if principal.Role != role {
		return fmt.Errorf("%w: requires %s role", auth.ErrForbidden, role)
	}
	return nil
}
