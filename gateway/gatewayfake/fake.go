// Package gatewayfake is an in-memory gateway.Gateway for tests.
package gatewayfake

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/bookstore-session/gateway"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

// Operation names for Calls.
const (
	OpLogin            = "login"
	OpRegister         = "register"
	OpRefresh          = "refresh"
	OpLogout           = "logout"
	OpFetchCurrentUser = "me"
)

type account struct {
	password string
	profile  users.Profile
}

// Gateway issues numbered token pairs and tracks which pair is current. Errors
// set with Fail are returned by every later call of that operation until
// cleared with Fail(op, nil).
type Gateway struct {
	mu       sync.Mutex
	accounts map[string]account
	issued   int
	current  token.Pair
	user     *users.Profile
	failures map[string]error
	calls    map[string]int
	gate     chan struct{}
}

var _ gateway.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		accounts: make(map[string]account),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (g *Gateway) AddUser(password string, profile users.Profile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[profile.Email] = account{password: password, profile: profile}
}

// SignIn makes pair the current session for profile, as if logged in
// earlier by another process.
func (g *Gateway) SignIn(profile users.Profile, pair token.Pair) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = &profile
	g.current = pair
}

func (g *Gateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

// HoldRefresh blocks refresh calls until the returned release func is called.
func (g *Gateway) HoldRefresh() (release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	g.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Current is the most recently issued pair.
func (g *Gateway) Current() token.Pair {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *Gateway) begin(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	return g.failures[op]
}

func (g *Gateway) issueLocked() token.Pair {
	g.issued++
	g.current = token.Pair{
		AccessToken:  fmt.Sprintf("access-%d", g.issued),
		RefreshToken: fmt.Sprintf("refresh-%d", g.issued),
	}
	return g.current
}

func (g *Gateway) Login(ctx context.Context, creds gateway.Credentials) (gateway.AuthResult, error) {
	if err := g.begin(OpLogin); err != nil {
		return gateway.AuthResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	acct, ok := g.accounts[creds.Email]
	if !ok || acct.password != creds.Password {
		return gateway.AuthResult{}, &apperrors.APIError{Status: 401, Message: "Invalid email or password", Kind: apperrors.ErrInvalidCredentials}
	}
	profile := acct.profile
	g.user = &profile
	return gateway.AuthResult{User: &profile, Tokens: g.issueLocked()}, nil
}

func (g *Gateway) Register(ctx context.Context, data gateway.RegistrationData) (gateway.AuthResult, error) {
	if err := g.begin(OpRegister); err != nil {
		return gateway.AuthResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.accounts[data.Email]; exists {
		return gateway.AuthResult{}, &apperrors.APIError{Status: 409, Message: "User with this email already exists", Kind: apperrors.ErrValidation}
	}
	profile := users.Profile{
		ID:          fmt.Sprintf("user-%d", len(g.accounts)+1),
		Email:       data.Email,
		DisplayName: data.FullName,
		Role:        users.RoleCustomer,
	}
	g.accounts[data.Email] = account{password: data.Password, profile: profile}
	g.user = &profile
	return gateway.AuthResult{User: &profile, Tokens: g.issueLocked()}, nil
}

func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	if err := g.begin(OpRefresh); err != nil {
		return token.Pair{}, err
	}
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return token.Pair{}, apperrors.NetworkError(ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if refreshToken == "" || refreshToken != g.current.RefreshToken {
		return token.Pair{}, apperrors.ErrRefreshRejected
	}
	return g.issueLocked(), nil
}

func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.begin(OpLogout); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = token.Pair{}
	g.user = nil
	return nil
}

// FetchCurrentUser answers Unauthorized once the session has been logged out
// or was never signed in.
func (g *Gateway) FetchCurrentUser(ctx context.Context) (*users.Profile, error) {
	if err := g.begin(OpFetchCurrentUser); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user == nil || g.current.AccessToken == "" {
		return nil, &apperrors.APIError{Status: 401, Message: "Unauthorized", Kind: apperrors.ErrUnauthorized}
	}
	profile := *g.user
	return &profile, nil
}
