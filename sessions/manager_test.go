package sessions_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bookstore-session/gateway"
	"github.com/jrsteele09/bookstore-session/gateway/gatewayfake"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/internal/fakeapi"
	"github.com/jrsteele09/bookstore-session/pipeline"
	"github.com/jrsteele09/bookstore-session/sessions"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/token/memstore"
	"github.com/jrsteele09/bookstore-session/token/refresh"
	"github.com/jrsteele09/bookstore-session/users"
)

var alice = users.Profile{ID: "u1", Email: "a@x.com", DisplayName: "Alice", Role: users.RoleCustomer}

type fixture struct {
	gw      *gatewayfake.Gateway
	store   *memstore.Store
	coord   *refresh.Coordinator
	manager *sessions.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := gatewayfake.New()
	gw.AddUser("p", alice)
	store := memstore.New()
	coord := refresh.New(store, gw)
	return &fixture{
		gw:      gw,
		store:   store,
		coord:   coord,
		manager: sessions.New(store, gw, coord),
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Login(context.Background(), gateway.Credentials{Email: "a@x.com", Password: "p"}))
}

func TestManager_InitWithoutTokens(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Init(context.Background()))
	require.Equal(t, sessions.Anonymous, f.manager.Snapshot().Status)
	require.Equal(t, 0, f.gw.Calls(gatewayfake.OpFetchCurrentUser))
}

func TestManager_InitRestoresSession(t *testing.T) {
	f := newFixture(t)
	pair := token.Pair{AccessToken: "a-0", RefreshToken: "r-0"}
	f.gw.SignIn(alice, pair)
	require.NoError(t, f.store.Set(context.Background(), pair))

	require.NoError(t, f.manager.Init(context.Background()))
	s := f.manager.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Equal(t, "u1", s.User.ID)
	require.Equal(t, pair, *s.Tokens)
}

func TestManager_InitUnauthorizedRevertsToAnonymous(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), token.Pair{AccessToken: "old", RefreshToken: "old"}))

	err := f.manager.Init(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	s := f.manager.Snapshot()
	require.Equal(t, sessions.Anonymous, s.Status)
	require.Nil(t, s.Tokens)
	require.Nil(t, s.User)
	_, err = f.store.Get(context.Background())
	require.ErrorIs(t, err, token.ErrNoTokens)
}

func TestManager_InitNetworkErrorKeepsTokens(t *testing.T) {
	f := newFixture(t)
	pair := token.Pair{AccessToken: "a-0", RefreshToken: "r-0"}
	require.NoError(t, f.store.Set(context.Background(), pair))
	f.gw.Fail(gatewayfake.OpFetchCurrentUser, apperrors.NetworkError(errors.New("connection refused")))

	err := f.manager.Init(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNetwork)

	s := f.manager.Snapshot()
	require.Equal(t, sessions.Loading, s.Status)
	require.Equal(t, sessions.MsgLoadUserFailed, s.Err)
	require.Nil(t, s.User)

	got, err := f.store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, pair, got)

	// Retry once the network is back.
	f.gw.SignIn(alice, pair)
	f.gw.Fail(gatewayfake.OpFetchCurrentUser, nil)
	require.NoError(t, f.manager.LoadUser(context.Background()))
	require.Equal(t, sessions.Authenticated, f.manager.Snapshot().Status)
}

func TestManager_Login(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	s := f.manager.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Equal(t, alice, *s.User)
	require.Empty(t, s.Err)

	stored, err := f.store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, *s.Tokens, stored)
}

func TestManager_LoginFailure(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Login(context.Background(), gateway.Credentials{Email: "a@x.com", Password: "nope"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	s := f.manager.Snapshot()
	require.Equal(t, sessions.Failed, s.Status)
	require.Equal(t, "Invalid email or password", s.Err)
	require.Nil(t, s.Tokens)

	f.gw.Fail(gatewayfake.OpLogin, apperrors.NetworkError(errors.New("timeout")))
	err = f.manager.Login(context.Background(), gateway.Credentials{Email: "a@x.com", Password: "p"})
	require.ErrorIs(t, err, apperrors.ErrNetwork)
	require.Equal(t, sessions.MsgLoginFailed, f.manager.Snapshot().Err)

	// The error is cleared on the next attempt.
	f.gw.Fail(gatewayfake.OpLogin, nil)
	f.login(t)
	require.Empty(t, f.manager.Snapshot().Err)
}

func TestManager_LoginFailureKeepsExistingSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.manager.Login(context.Background(), gateway.Credentials{Email: "a@x.com", Password: "nope"})
	require.Error(t, err)
	s := f.manager.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Equal(t, "Invalid email or password", s.Err)
}

func TestManager_Register(t *testing.T) {
	f := newFixture(t)
	data := gateway.RegistrationData{Email: "b@x.com", Password: "p", FullName: "Bob"}

	require.NoError(t, f.manager.Register(context.Background(), data))
	s := f.manager.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Equal(t, "Bob", s.User.DisplayName)

	require.NoError(t, f.manager.Logout(context.Background()))
	err := f.manager.Register(context.Background(), data)
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, "User with this email already exists", f.manager.Snapshot().Err)

	f.gw.Fail(gatewayfake.OpRegister, errors.New("boom"))
	require.Error(t, f.manager.Register(context.Background(), data))
	require.Equal(t, sessions.MsgRegistrationFailed, f.manager.Snapshot().Err)
}

func TestManager_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.manager.Logout(context.Background()))
	require.Equal(t, sessions.Anonymous, f.manager.Snapshot().Status)
	_, err := f.store.Get(context.Background())
	require.ErrorIs(t, err, token.ErrNoTokens)
	require.Equal(t, 1, f.gw.Calls(gatewayfake.OpLogout))

	// Already anonymous: no network call.
	require.NoError(t, f.manager.Logout(context.Background()))
	require.Equal(t, 1, f.gw.Calls(gatewayfake.OpLogout))
}

func TestManager_LogoutRemoteFailureStillClears(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.gw.Fail(gatewayfake.OpLogout, apperrors.NetworkError(errors.New("unreachable")))

	require.NoError(t, f.manager.Logout(context.Background()))
	require.Equal(t, sessions.Anonymous, f.manager.Snapshot().Status)
	_, err := f.store.Get(context.Background())
	require.ErrorIs(t, err, token.ErrNoTokens)
}

func TestManager_RefreshUpdatesTokens(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	updates, cancel := f.manager.Subscribe(16)
	defer cancel()
	require.Equal(t, sessions.Authenticated, (<-updates).Status)

	before := *f.manager.Snapshot().Tokens
	pair, err := f.coord.RefreshFrom(context.Background(), before)
	require.NoError(t, err)

	require.Equal(t, sessions.Refreshing, (<-updates).Status)
	after := <-updates
	require.Equal(t, sessions.Authenticated, after.Status)
	require.Equal(t, pair, *after.Tokens)
	require.NotEqual(t, before.AccessToken, after.Tokens.AccessToken)
	require.Equal(t, alice, *after.User)
}

func TestManager_RefreshRejectedEndsSessionOnce(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	updates, cancel := f.manager.Subscribe(64)
	defer cancel()

	f.gw.Fail(gatewayfake.OpRefresh, apperrors.ErrRefreshRejected)
	stale := *f.manager.Snapshot().Tokens

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.coord.RefreshFrom(context.Background(), stale)
		}()
	}
	wg.Wait()
	cancel()

	failures := 0
	for s := range updates {
		if s.Status == sessions.Failed {
			failures++
			require.Equal(t, "session expired, please log in again", s.Err)
			require.Nil(t, s.Tokens)
		}
	}
	require.Equal(t, 1, failures)
	require.Equal(t, 1, f.gw.Calls(gatewayfake.OpRefresh))
	_, err := f.store.Get(context.Background())
	require.ErrorIs(t, err, token.ErrNoTokens)

	// A new login recovers.
	f.gw.Fail(gatewayfake.OpRefresh, nil)
	f.login(t)
	_, err = f.coord.Refresh(context.Background())
	require.NoError(t, err)
}

func TestManager_LogoutDuringRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	release := f.gw.HoldRefresh()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := f.coord.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return f.gw.Calls(gatewayfake.OpRefresh) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Logout(context.Background()))
	release()

	require.ErrorIs(t, <-done, apperrors.ErrNoSession)
	require.Equal(t, sessions.Anonymous, f.manager.Snapshot().Status)
	_, err := f.store.Get(context.Background())
	require.ErrorIs(t, err, token.ErrNoTokens)
}

func TestManager_ClearError(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.manager.Login(context.Background(), gateway.Credentials{Email: "a@x.com", Password: "nope"}))
	require.Equal(t, sessions.Failed, f.manager.Snapshot().Status)

	f.manager.ClearError()
	s := f.manager.Snapshot()
	require.Equal(t, sessions.Anonymous, s.Status)
	require.Empty(t, s.Err)
}

func TestManager_TokenSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, apperrors.ErrNoSession)

	f.login(t)
	tok, err := f.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, f.manager.Snapshot().Tokens.AccessToken, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
}

func TestManager_SubscribeCancel(t *testing.T) {
	f := newFixture(t)
	updates, cancel := f.manager.Subscribe(1)
	require.Equal(t, sessions.Anonymous, (<-updates).Status)

	f.login(t)
	require.Equal(t, sessions.Authenticated, (<-updates).Status)

	cancel()
	cancel()
	_, open := <-updates
	require.False(t, open)
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	s := f.manager.Snapshot()
	s.User.Role = users.RoleAdmin
	s.Tokens.AccessToken = "tampered"

	again := f.manager.Snapshot()
	require.Equal(t, users.RoleCustomer, again.User.Role)
	require.NotEqual(t, "tampered", again.Tokens.AccessToken)
}

// newAPIManager wires a manager to srv through the real gateway and request
// pipeline. Managers built on the same store share the persisted session.
func newAPIManager(srv *httptest.Server, store token.Store) *sessions.Manager {
	plain := srv.Client()
	refresher := gateway.NewTokenRefresher(srv.URL, plain)
	coord := refresh.New(store, refresher)
	authorized := pipeline.New(plain.Transport, store, coord).Client(5 * time.Second)
	return sessions.New(store, gateway.NewHTTP(srv.URL, plain, authorized, refresher), coord)
}

func newAPI(t *testing.T) (*fakeapi.Server, *httptest.Server) {
	t.Helper()
	api := fakeapi.New()
	_, err := api.SeedUser("a@x.com", "p", "Alice", users.RoleCustomer)
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func TestManager_LoadUserRefreshUnavailableKeepsSession(t *testing.T) {
	api, srv := newAPI(t)
	ctx := context.Background()
	store := memstore.New()
	m := newAPIManager(srv, store)
	require.NoError(t, m.Login(ctx, gateway.Credentials{Email: "a@x.com", Password: "p"}))
	before, err := store.Get(ctx)
	require.NoError(t, err)

	api.ExpireAccessTokens()
	api.FailRefresh(http.StatusServiceUnavailable)

	err = m.LoadUser(ctx)
	require.ErrorIs(t, err, apperrors.ErrNetwork)
	require.Equal(t, 1, api.RefreshCalls())

	s := m.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Equal(t, sessions.MsgRefreshUnavailable, s.Err)
	require.Equal(t, "a@x.com", s.User.Email)
	stored, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, before, stored)

	// Once the server recovers the same session refreshes and carries on.
	api.FailRefresh(0)
	require.NoError(t, m.LoadUser(ctx))
	s = m.Snapshot()
	require.Equal(t, sessions.Authenticated, s.Status)
	require.Empty(t, s.Err)
	require.NotEqual(t, before.AccessToken, s.Tokens.AccessToken)
}

func TestManager_InitRefreshUnavailableKeepsTokens(t *testing.T) {
	api, srv := newAPI(t)
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, newAPIManager(srv, store).Login(ctx, gateway.Credentials{Email: "a@x.com", Password: "p"}))
	before, err := store.Get(ctx)
	require.NoError(t, err)

	api.ExpireAccessTokens()
	api.FailRefresh(http.StatusServiceUnavailable)

	restarted := newAPIManager(srv, store)
	err = restarted.Init(ctx)
	require.ErrorIs(t, err, apperrors.ErrNetwork)

	s := restarted.Snapshot()
	require.Equal(t, sessions.Loading, s.Status)
	require.Equal(t, sessions.MsgRefreshUnavailable, s.Err)
	stored, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, before, stored)
}

func TestManager_InitRefreshRejectedEndsSession(t *testing.T) {
	api, srv := newAPI(t)
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, newAPIManager(srv, store).Login(ctx, gateway.Credentials{Email: "a@x.com", Password: "p"}))

	api.ExpireAccessTokens()
	api.RevokeRefreshTokens()

	restarted := newAPIManager(srv, store)
	require.Error(t, restarted.Init(ctx))

	s := restarted.Snapshot()
	require.Equal(t, sessions.Failed, s.Status)
	require.Equal(t, apperrors.ErrRefreshRejected.Error(), s.Err)
	_, err := store.Get(ctx)
	require.ErrorIs(t, err, token.ErrNoTokens)
}
