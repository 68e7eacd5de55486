package sessions

import (
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

// Status is the lifecycle state of the session.
type Status int

const (
	// Anonymous has neither tokens nor a user.
	Anonymous Status = iota
	// Loading has stored tokens whose user has not been confirmed yet.
	Loading
	// Authenticated has both tokens and a user.
	Authenticated
	// Refreshing is Authenticated while the token pair is being replaced.
	Refreshing
	// Failed is Anonymous carrying the error that ended the last attempt.
	Failed
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is an immutable snapshot of the session state.
type Session struct {
	Status Status         `json:"status"`
	User   *users.Profile `json:"user,omitempty"`
	Tokens *token.Pair    `json:"-"`
	Err    string         `json:"error,omitempty"`
}

func (s Session) IsAuthenticated() bool {
	return s.Status == Authenticated
}

func (s Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.User.IsAdmin()
}

// Pending reports whether the session is settling and a decision based on it
// should wait.
func (s Session) Pending() bool {
	return s.Status == Loading || s.Status == Refreshing
}

func (s Session) clone() Session {
	out := s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.Tokens != nil {
		pair := *s.Tokens
		out.Tokens = &pair
	}
	return out
}

func anonymous() Session {
	return Session{Status: Anonymous}
}

func failed(msg string) Session {
	return Session{Status: Failed, Err: msg}
}

func authenticated(user *users.Profile, pair token.Pair) Session {
	return Session{Status: Authenticated, User: user, Tokens: &pair}
}

func loading(pair token.Pair) Session {
	return Session{Status: Loading, Tokens: &pair}
}
