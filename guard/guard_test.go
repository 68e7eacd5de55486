package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bookstore-session/guard"
	"github.com/jrsteele09/bookstore-session/sessions"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

func session(status sessions.Status, role users.RoleType) sessions.Session {
	s := sessions.Session{Status: status}
	if status == sessions.Authenticated || status == sessions.Refreshing {
		s.User = &users.Profile{ID: "u1", Role: role}
		s.Tokens = &token.Pair{AccessToken: "a", RefreshToken: "r"}
	}
	return s
}

func TestCanAccess(t *testing.T) {
	customer := session(sessions.Authenticated, users.RoleCustomer)
	admin := session(sessions.Authenticated, users.RoleAdmin)
	anon := session(sessions.Anonymous, "")

	require.True(t, guard.CanAccess(anon, guard.Public))
	require.False(t, guard.CanAccess(anon, guard.Authenticated))
	require.False(t, guard.CanAccess(anon, guard.Admin))

	require.True(t, guard.CanAccess(customer, guard.Authenticated))
	require.False(t, guard.CanAccess(customer, guard.Admin))

	require.True(t, guard.CanAccess(admin, guard.Authenticated))
	require.True(t, guard.CanAccess(admin, guard.Admin))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		session  sessions.Session
		required guard.Capability
		want     guard.Decision
	}{
		{"public anonymous", session(sessions.Anonymous, ""), guard.Public, guard.Decision{Allowed: true}},
		{"anonymous protected", session(sessions.Anonymous, ""), guard.Authenticated, guard.Decision{Redirect: guard.RouteLogin}},
		{"failed protected", sessions.Session{Status: sessions.Failed, Err: "session expired"}, guard.Authenticated, guard.Decision{Redirect: guard.RouteLogin}},
		{"anonymous admin", session(sessions.Anonymous, ""), guard.Admin, guard.Decision{Redirect: guard.RouteLogin}},
		{"customer admin", session(sessions.Authenticated, users.RoleCustomer), guard.Admin, guard.Decision{Redirect: guard.RouteHome}},
		{"admin admin", session(sessions.Authenticated, users.RoleAdmin), guard.Admin, guard.Decision{Allowed: true}},
		{"loading protected", sessions.Session{Status: sessions.Loading, Tokens: &token.Pair{AccessToken: "a", RefreshToken: "r"}}, guard.Authenticated, guard.Decision{Pending: true}},
		{"refreshing admin", session(sessions.Refreshing, users.RoleAdmin), guard.Admin, guard.Decision{Pending: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, guard.Decide(tt.session, tt.required))
		})
	}
}

type staticSource sessions.Session

func (s staticSource) Snapshot() sessions.Session { return sessions.Session(s) }

func TestMiddleware(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	tests := []struct {
		name     string
		session  sessions.Session
		required guard.Capability
		status   int
		location string
	}{
		{"allowed", session(sessions.Authenticated, users.RoleAdmin), guard.Admin, http.StatusOK, ""},
		{"login redirect", session(sessions.Anonymous, ""), guard.Authenticated, http.StatusSeeOther, guard.RouteLogin},
		{"home redirect", session(sessions.Authenticated, users.RoleCustomer), guard.Admin, http.StatusSeeOther, guard.RouteHome},
		{"pending", sessions.Session{Status: sessions.Loading, Tokens: &token.Pair{AccessToken: "a", RefreshToken: "r"}}, guard.Authenticated, http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := guard.Middleware(staticSource(tt.session), tt.required)(ok)
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/admin/books", nil))

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusServiceUnavailable {
				require.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}
