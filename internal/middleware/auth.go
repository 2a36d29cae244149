// Package middleware содержит HTTP middleware шлюза клиента витрины.
package middleware

import (
	"context"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionSource возвращает текущую сессию клиента.
type SessionSource interface {
	Session() model.Session
}

// SessionGuard пропускает запросы только при наличии сессии и нужной роли.
type SessionGuard struct {
	sessions SessionSource
}

// NewSessionGuard создаёт SessionGuard поверх хранилища сессии.
func NewSessionGuard(sessions SessionSource) *SessionGuard {
	return &SessionGuard{sessions: sessions}
}

// RequireSession отвечает 401 без сессии и добавляет данные пользователя в контекст запроса.
func (g *SessionGuard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := g.sessions.Session()
		if !sess.Authenticated() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, sess.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin отвечает 401 без сессии и 403, если пользователь не администратор.
func (g *SessionGuard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if !identity.IsAdmin() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// IdentityFromContext извлекает данные пользователя из контекста запроса.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*model.Identity)
	return id, ok && id != nil
}
