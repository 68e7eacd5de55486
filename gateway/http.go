package gateway

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/bookstore-session/internal/apiclient"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

// REST endpoints
const (
	RouteLogin       = "/api/v1/auth/login"
	RouteRegister    = "/api/v1/auth/register"
	RouteRefresh     = "/api/v1/auth/refresh"
	RouteLogout      = "/api/v1/auth/logout"
	RouteCurrentUser = "/api/v1/users/me"
)

type authResponse struct {
	User         *users.Profile `json:"user"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenRefresher exchanges refresh tokens with the auth host over a plain
// client. It stands apart from HTTPGateway so a refresh coordinator can be
// built before the authorized client that depends on it.
type TokenRefresher struct {
	auth *apiclient.Client
}

func NewTokenRefresher(authURL string, plain *http.Client) *TokenRefresher {
	return &TokenRefresher{auth: apiclient.New(authURL, plain)}
}

func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	var out token.Pair
	err := r.auth.Do(ctx, http.MethodPost, RouteRefresh, nil, refreshRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		var apiErr *apperrors.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusForbidden) {
			return token.Pair{}, errors.Wrap(apperrors.ErrRefreshRejected, apiErr.Error())
		}
		return token.Pair{}, errors.Wrap(err, "[TokenRefresher.Refresh]")
	}
	return out, nil
}

// HTTPGateway talks to the bookstore REST API. Credential exchanges go over
// the plain client and never carry an access token. Session calls go over
// the authorized client, normally a pipeline.Transport.
type HTTPGateway struct {
	*TokenRefresher
	credentials *apiclient.Client
	api         *apiclient.Client
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTP(apiURL string, plain, authorized *http.Client, refresher *TokenRefresher) *HTTPGateway {
	return &HTTPGateway{
		TokenRefresher: refresher,
		credentials:    apiclient.New(apiURL, plain),
		api:            apiclient.New(apiURL, authorized),
	}
}

func (g *HTTPGateway) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	var out authResponse
	if err := g.credentials.Do(ctx, http.MethodPost, RouteLogin, nil, creds, &out); err != nil {
		var apiErr *apperrors.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			apiErr.Kind = apperrors.ErrInvalidCredentials
		}
		return AuthResult{}, errors.Wrap(err, "[HTTPGateway.Login]")
	}
	return authResult(out)
}

func (g *HTTPGateway) Register(ctx context.Context, data RegistrationData) (AuthResult, error) {
	var out authResponse
	if err := g.credentials.Do(ctx, http.MethodPost, RouteRegister, nil, data, &out); err != nil {
		return AuthResult{}, errors.Wrap(err, "[HTTPGateway.Register]")
	}
	return authResult(out)
}

func (g *HTTPGateway) Logout(ctx context.Context) error {
	return errors.Wrap(g.api.Do(ctx, http.MethodPost, RouteLogout, nil, nil, nil), "[HTTPGateway.Logout]")
}

func (g *HTTPGateway) FetchCurrentUser(ctx context.Context) (*users.Profile, error) {
	var out apiclient.Envelope[*users.Profile]
	if err := g.api.Do(ctx, http.MethodGet, RouteCurrentUser, nil, nil, &out); err != nil {
		return nil, errors.Wrap(err, "[HTTPGateway.FetchCurrentUser]")
	}
	if out.Data == nil {
		return nil, errors.Wrap(apperrors.ErrServer, "[HTTPGateway.FetchCurrentUser] empty profile")
	}
	return out.Data, nil
}

func authResult(out authResponse) (AuthResult, error) {
	pair := token.Pair{AccessToken: out.Token, RefreshToken: out.RefreshToken}
	if !pair.Valid() || out.User == nil {
		return AuthResult{}, errors.Wrap(apperrors.ErrServer, "auth response missing user or tokens")
	}
	return AuthResult{User: out.User, Tokens: pair}, nil
}
