package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmeshcher/storefront/internal/model"
)

type staticSessions model.Session

func (s staticSessions) Session() model.Session { return model.Session(s) }

func TestRequireSession_WithSession(t *testing.T) {
	g := NewSessionGuard(staticSessions{Token: "t", Identity: &model.Identity{ID: "u42", Role: model.RoleUser}})

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity not in context")
		}
		if id.ID != "u42" {
			t.Fatalf("identity from context = %q, want u42", id.ID)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	g.RequireSession(next).ServeHTTP(w, r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestRequireSession_WithoutSession(t *testing.T) {
	g := NewSessionGuard(staticSessions{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	g.RequireSession(next).ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name    string
		session model.Session
		want    int
	}{
		{name: "no session", session: model.Session{}, want: http.StatusUnauthorized},
		{name: "token without identity", session: model.Session{Token: "t"}, want: http.StatusForbidden},
		{name: "regular user", session: model.Session{Token: "t", Identity: &model.Identity{Role: model.RoleUser}}, want: http.StatusForbidden},
		{name: "admin", session: model.Session{Token: "t", Identity: &model.Identity{Role: model.RoleAdmin}}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewSessionGuard(staticSessions(tt.session))
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			w := httptest.NewRecorder()
			g.RequireAdmin(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
