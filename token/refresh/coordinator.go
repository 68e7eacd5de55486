package refresh

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/internal/metrics"
	"github.com/jrsteele09/bookstore-session/token"
)

// DefaultTimeout bounds a single exchange with the auth gateway.
const DefaultTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new pair. Implementations return
// an error matching apperrors.ErrRefreshRejected when the server refuses the
// refresh token, and apperrors.ErrNetwork when it could not be reached.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (token.Pair, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	return f(ctx, refreshToken)
}

// Observer is told about each exchange. Calls are made once per exchange, not
// once per waiting caller, and never while the coordinator holds its lock.
type Observer interface {
	RefreshStarted()
	RefreshSucceeded(pair token.Pair)
	RefreshFailed(err error, terminal bool)
}

type Option func(*Coordinator)

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.Observe(o) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Coordinator ensures at most one refresh exchange is in flight per session.
// Concurrent callers join the exchange already running and all observe its
// result. After the server rejects the refresh token the coordinator stays
// failed until Reset is called by a fresh login.
type Coordinator struct {
	store     token.Store
	refresher Refresher
	metrics   *metrics.Metrics
	timeout   time.Duration
	group     singleflight.Group

	mu        sync.Mutex
	epoch     uint64 // bumped on every login and logout
	terminal  error
	observers []Observer
	running   chan struct{} // closed when the latest exchange returns
}

var idle = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func New(store token.Store, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe registers o for every later exchange.
func (c *Coordinator) Observe(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Coordinator) notify(fn func(Observer)) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		fn(o)
	}
}

// Refresh exchanges the stored refresh token for a new pair, joining any
// exchange already in flight.
func (c *Coordinator) Refresh(ctx context.Context) (token.Pair, error) {
	return c.RefreshFrom(ctx, token.Pair{})
}

// RefreshFrom refreshes on behalf of a request that was sent with stale. If
// the store already holds a different access token another caller has
// refreshed in the meantime and the stored pair is returned without an
// exchange. A zero stale means the currently stored pair.
func (c *Coordinator) RefreshFrom(ctx context.Context, stale token.Pair) (token.Pair, error) {
	epoch, err := c.generation()
	if err != nil {
		return token.Pair{}, err
	}

	current, err := c.current(ctx)
	if err != nil {
		return token.Pair{}, err
	}
	if stale.AccessToken == "" {
		stale = current
	}
	if current.AccessToken != stale.AccessToken {
		c.metrics.ObserveRefresh(metrics.OutcomeReused)
		return current, nil
	}

	led := false
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		led = true
		return c.exchange(flightCtx, epoch, stale)
	})

	select {
	case res := <-ch:
		if !led {
			c.metrics.ObserveRefresh(metrics.OutcomeCoalesced)
		}
		if res.Err != nil {
			return token.Pair{}, res.Err
		}
		return res.Val.(token.Pair), nil
	case <-ctx.Done():
		return token.Pair{}, ctx.Err()
	}
}

func (c *Coordinator) generation() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.terminal
}

func (c *Coordinator) current(ctx context.Context) (token.Pair, error) {
	pair, err := c.store.Get(ctx)
	if errors.Is(err, token.ErrNoTokens) {
		return token.Pair{}, apperrors.ErrNoSession
	}
	if err != nil {
		return token.Pair{}, errors.Wrap(err, "[Coordinator] read token store")
	}
	return pair, nil
}

// exchange runs once per flight. It is detached from the caller that started
// it so one caller giving up does not fail the others. Flights of different
// generations run one after the other, and a flight that starts just after
// another one finished rechecks the store first.
func (c *Coordinator) exchange(ctx context.Context, epoch uint64, stale token.Pair) (token.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prev, done := c.follow()
	defer close(done)
	select {
	case <-prev:
	case <-ctx.Done():
		err := apperrors.NetworkError(errors.Wrap(ctx.Err(), "[Coordinator.exchange] wait for previous refresh"))
		c.notify(func(o Observer) { o.RefreshFailed(err, false) })
		return token.Pair{}, err
	}

	if _, err := c.generation(); err != nil {
		return token.Pair{}, err
	}
	current, err := c.current(ctx)
	if err != nil {
		return token.Pair{}, err
	}
	if current.AccessToken != stale.AccessToken {
		return current, nil
	}

	log.Debug().Str("refresh", token.Fingerprint(current.RefreshToken)).Msg("refreshing session")
	c.notify(func(o Observer) { o.RefreshStarted() })

	started := time.Now()
	pair, err := c.refresher.Refresh(ctx, current.RefreshToken)
	c.metrics.ObserveExchange(started)
	if err == nil && pair.AccessToken == "" {
		err = errors.Wrap(apperrors.ErrServer, "refresh response carried no access token")
	}
	if err == nil && pair.RefreshToken == "" {
		// Server did not rotate the refresh token.
		pair.RefreshToken = current.RefreshToken
	}

	pair, terminal, err := c.settle(ctx, epoch, pair, err)
	if err != nil {
		c.notify(func(o Observer) { o.RefreshFailed(err, terminal) })
		return token.Pair{}, err
	}
	c.notify(func(o Observer) { o.RefreshSucceeded(pair) })
	return pair, nil
}

// follow registers a new exchange. prev is closed once the exchange before
// it has returned; the caller closes done when it returns itself.
func (c *Coordinator) follow() (prev <-chan struct{}, done chan struct{}) {
	done = make(chan struct{})
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.running
	if prev == nil {
		prev = idle
	}
	c.running = done
	return prev, done
}

// settle applies the exchange result to the store. It holds the lock so a
// logout that lands mid-flight either precedes the write, and the result is
// discarded, or follows it and clears the new pair. An exchange that answered
// right at its deadline is still written back.
func (c *Coordinator) settle(ctx context.Context, epoch uint64, pair token.Pair, err error) (token.Pair, bool, error) {
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		log.Debug().Msg("session changed during refresh, discarding result")
		return token.Pair{}, false, apperrors.ErrNoSession
	}

	switch {
	case errors.Is(err, apperrors.ErrRefreshRejected), errors.Is(err, apperrors.ErrUnauthorized):
		c.metrics.ObserveRefresh(metrics.OutcomeRejected)
		c.metrics.ObserveTeardown()
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			log.Warn().Err(clearErr).Msg("failed to clear token store after rejected refresh")
		}
		c.terminal = apperrors.ErrRefreshRejected
		log.Debug().Err(err).Msg("refresh token rejected, session ended")
		return token.Pair{}, true, apperrors.ErrRefreshRejected
	case err != nil:
		c.metrics.ObserveRefresh(metrics.OutcomeNetwork)
		log.Warn().Err(err).Msg("refresh failed, keeping session")
		return token.Pair{}, false, err
	}

	if err := c.store.Set(ctx, pair); err != nil {
		c.metrics.ObserveRefresh(metrics.OutcomeNetwork)
		return token.Pair{}, false, errors.Wrap(err, "[Coordinator.exchange] store refreshed pair")
	}
	c.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	log.Debug().Str("access", token.Fingerprint(pair.AccessToken)).Msg("session refreshed")
	return pair, false, nil
}

// Reset starts a new session generation and clears a previous rejection. It
// is called after a successful login.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.terminal = nil
}

// Invalidate starts a new session generation so that an exchange still in
// flight cannot write its result back. It is called on logout.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
}

// Failed reports whether the session ended because the refresh token was
// rejected.
func (c *Coordinator) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal != nil
}
