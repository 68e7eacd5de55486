package guard

import (
	"net/http"

	"github.com/jrsteele09/bookstore-session/sessions"
)

// Fallback routes for denied access.
const (
	RouteLogin = "/login"
	RouteHome  = "/"
)

// Capability is what a view requires of the session.
type Capability int

const (
	Public Capability = iota
	Authenticated
	Admin
)

func (c Capability) String() string {
	switch c {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	}
	return "unknown"
}

// Decision is the guard's verdict for one view. Exactly one of Allowed,
// Pending or a non-empty Redirect holds.
type Decision struct {
	Allowed  bool
	Pending  bool   // Session still settling, decide again once it has
	Redirect string // Where to send a denied caller
}

// CanAccess reports whether session satisfies required.
func CanAccess(session sessions.Session, required Capability) bool {
	switch required {
	case Public:
		return true
	case Authenticated:
		return session.IsAuthenticated()
	case Admin:
		return session.IsAdmin()
	}
	return false
}

// Decide is CanAccess with the fallback for a denial. A session that is still
// loading or refreshing yields Pending rather than a redirect.
func Decide(session sessions.Session, required Capability) Decision {
	if CanAccess(session, required) {
		return Decision{Allowed: true}
	}
	if session.Pending() {
		return Decision{Pending: true}
	}
	if required == Admin && session.IsAuthenticated() {
		return Decision{Redirect: RouteHome}
	}
	return Decision{Redirect: RouteLogin}
}

// Source supplies the session to decide on. *sessions.Manager implements it.
type Source interface {
	Snapshot() sessions.Session
}

// Middleware guards a handler. Denied requests are redirected and pending
// ones answered with 503 and Retry-After.
func Middleware(source Source, required Capability) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := Decide(source.Snapshot(), required)
			switch {
			case d.Allowed:
				next(w, r)
			case d.Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session is loading", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			}
		}
	}
}
