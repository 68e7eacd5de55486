package sessions

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/bookstore-session/gateway"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/token/refresh"
)

// Fallback messages when the server gives none.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgLoadUserFailed     = "Failed to load user"
	MsgRefreshUnavailable = "Session could not be refreshed, try again later"
)

// Coordinator is the refresh coordinator the manager resets on login,
// invalidates on logout and observes for refresh transitions.
type Coordinator interface {
	RefreshFrom(ctx context.Context, stale token.Pair) (token.Pair, error)
	Reset()
	Invalidate()
	Observe(o refresh.Observer)
}

// Manager owns the session state. It is the only writer of the token store
// outside the refresh coordinator, and publishes a snapshot to subscribers on
// every transition.
type Manager struct {
	store   token.Store
	gateway gateway.Gateway
	coord   Coordinator

	mu      sync.Mutex
	state   Session
	subs    map[int]chan Session
	nextSub int

	// transient counts refresh exchanges that failed without the server
	// rejecting the refresh token.
	transient uint64
}

var _ refresh.Observer = (*Manager)(nil)

func New(store token.Store, gw gateway.Gateway, coord Coordinator) *Manager {
	m := &Manager{
		store:   store,
		gateway: gw,
		coord:   coord,
		state:   anonymous(),
		subs:    make(map[int]chan Session),
	}
	coord.Observe(m)
	return m
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe returns a channel that receives the current state and then every
// transition. A slow reader skips intermediate states but always sees the
// latest one. cancel closes the channel.
func (m *Manager) Subscribe(buffer int) (<-chan Session, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Session, buffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state.clone()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Init restores a stored session on start up. With stored tokens the session
// is Loading until the user fetch confirms it.
func (m *Manager) Init(ctx context.Context) error {
	pair, err := m.store.Get(ctx)
	if errors.Is(err, token.ErrNoTokens) {
		m.transition(func(Session) Session { return anonymous() })
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Manager.Init] read token store")
	}
	m.transition(func(Session) Session { return loading(pair) })
	return m.LoadUser(ctx)
}

func (m *Manager) Login(ctx context.Context, creds gateway.Credentials) error {
	m.clearErr()
	res, err := m.gateway.Login(ctx, creds)
	if err != nil {
		m.fail(err, MsgLoginFailed)
		return err
	}
	return m.establish(ctx, res, MsgLoginFailed)
}

func (m *Manager) Register(ctx context.Context, data gateway.RegistrationData) error {
	m.clearErr()
	res, err := m.gateway.Register(ctx, data)
	if err != nil {
		m.fail(err, MsgRegistrationFailed)
		return err
	}
	return m.establish(ctx, res, MsgRegistrationFailed)
}

func (m *Manager) establish(ctx context.Context, res gateway.AuthResult, fallback string) error {
	m.coord.Reset()
	if err := m.store.Set(ctx, res.Tokens); err != nil {
		err = errors.Wrap(err, "[Manager.establish] store tokens")
		m.fail(err, fallback)
		return err
	}
	m.transition(func(Session) Session { return authenticated(res.User, res.Tokens) })
	log.Debug().Str("user", res.User.ID).Str("access", token.Fingerprint(res.Tokens.AccessToken)).Msg("session established")
	return nil
}

// Logout ends the session. The server is told on a best-effort basis; the
// local session is cleared whatever it answers.
func (m *Manager) Logout(ctx context.Context) error {
	current := m.Snapshot()
	if current.Tokens == nil {
		if current.Status == Failed {
			m.transition(func(Session) Session { return anonymous() })
		}
		return nil
	}

	if err := m.gateway.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("remote logout failed, clearing local session")
	}
	m.teardown(ctx)
	m.transition(func(Session) Session { return anonymous() })
	return nil
}

// LoadUser refreshes the user profile from the server. Unauthorized ends the
// session; transient failures leave it as it is with the error recorded.
func (m *Manager) LoadUser(ctx context.Context) error {
	if m.Snapshot().Tokens == nil {
		return apperrors.ErrNoSession
	}

	before := m.transientFailures()
	profile, err := m.gateway.FetchCurrentUser(ctx)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrRefreshRejected):
		// The refresh observer has already ended the session.
		return err
	case errors.Is(err, apperrors.ErrUnauthorized) && m.transientFailures() != before:
		// The 401 stands only because the refresh could not complete. The
		// refresh token may still be good, so the session is kept.
		log.Debug().Err(err).Msg("user fetch unauthorized after a failed refresh, keeping session")
		m.transition(func(s Session) Session {
			s.Err = MsgRefreshUnavailable
			return s
		})
		return apperrors.NetworkError(err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		log.Debug().Err(err).Msg("stored session not accepted")
		m.teardown(ctx)
		m.transition(func(s Session) Session {
			// A rejected refresh on the way here has already recorded why.
			if s.Status == Failed {
				return s
			}
			return anonymous()
		})
		return err
	default:
		msg := apperrors.Message(err, MsgLoadUserFailed)
		m.transition(func(s Session) Session {
			s.Err = msg
			return s
		})
		return err
	}

	pair, err := m.store.Get(ctx)
	if err != nil {
		// Logged out or torn down while the fetch was in flight.
		return apperrors.ErrNoSession
	}
	m.transition(func(s Session) Session {
		if s.Tokens == nil {
			return s
		}
		return authenticated(profile, pair)
	})
	return nil
}

// ClearError drops the recorded error. A Failed session becomes Anonymous.
func (m *Manager) ClearError() {
	m.clearErr()
}

// TokenSource adapts the session for golang.org/x/oauth2 consumers. Expired
// tokens are refreshed through the coordinator.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	pair, err := s.m.store.Get(s.ctx)
	if errors.Is(err, token.ErrNoTokens) {
		return nil, apperrors.ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "[tokenSource.Token] read token store")
	}
	if tok := pair.OAuth2(); tok.Valid() {
		return tok, nil
	}
	fresh, err := s.m.coord.RefreshFrom(s.ctx, pair)
	if err != nil {
		return nil, err
	}
	return fresh.OAuth2(), nil
}

func (m *Manager) RefreshStarted() {
	m.transition(func(s Session) Session {
		if s.Status == Authenticated {
			s.Status = Refreshing
		}
		return s
	})
}

func (m *Manager) RefreshSucceeded(pair token.Pair) {
	m.transition(func(s Session) Session {
		switch s.Status {
		case Authenticated, Refreshing:
			return authenticated(s.User, pair)
		case Loading:
			return loading(pair)
		}
		return s
	})
}

func (m *Manager) RefreshFailed(err error, terminal bool) {
	if terminal {
		m.transition(func(Session) Session { return failed(apperrors.ErrRefreshRejected.Error()) })
		return
	}
	m.mu.Lock()
	m.transient++
	m.mu.Unlock()
	m.transition(func(s Session) Session {
		if s.Status == Refreshing {
			s.Status = Authenticated
		}
		return s
	})
}

func (m *Manager) transientFailures() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transient
}

func (m *Manager) clearErr() {
	m.transition(func(s Session) Session {
		if s.Status == Failed {
			return anonymous()
		}
		s.Err = ""
		return s
	})
}

// fail records a failed login or registration. An existing session is kept.
func (m *Manager) fail(err error, fallback string) {
	msg := apperrors.Message(err, fallback)
	m.transition(func(s Session) Session {
		if s.Tokens != nil {
			s.Err = msg
			return s
		}
		return failed(msg)
	})
}

func (m *Manager) teardown(ctx context.Context) {
	m.coord.Invalidate()
	if err := m.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear token store")
	}
}

func (m *Manager) transition(fn func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	next := fn(prev.clone())
	m.state = next
	if prev.Status != next.Status {
		log.Debug().Stringer("from", prev.Status).Stringer("to", next.Status).Msg("session transition")
	}
	for _, ch := range m.subs {
		publish(ch, next.clone())
	}
}

// publish never blocks. When the buffer is full the oldest snapshot is
// dropped for the newest.
func publish(ch chan Session, s Session) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
