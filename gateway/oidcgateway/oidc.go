// Package oidcgateway implements gateway.Gateway against an OAuth2/OIDC
// provider: the password grant for login, the refresh_token grant for
// refresh, userinfo for the current user and RFC 7009 revocation for logout.
package oidcgateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/bookstore-session/gateway"
	"github.com/jrsteele09/bookstore-session/internal/apiclient"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Provider holds the discovered endpoints. It refreshes tokens on its own so
// a refresh coordinator can be built from it before the authorized client.
type Provider struct {
	oidc          *oidc.Provider
	oauth         *oauth2.Config
	plain         *http.Client
	revocationURL string
}

// Discover reads the provider's discovery document using plain.
func Discover(ctx context.Context, cfg Config, plain *http.Client) (*Provider, error) {
	if plain == nil {
		plain = http.DefaultClient
	}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, plain), strings.TrimRight(cfg.Issuer, "/"))
	if err != nil {
		return nil, errors.Wrap(apperrors.NetworkError(err), "[oidcgateway.Discover] failed to create OIDC provider")
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, errors.Wrap(err, "[oidcgateway.Discover] read discovery claims")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}
	return &Provider{
		oidc: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		plain:         plain,
		revocationURL: extra.RevocationEndpoint,
	}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.plain)
}

// Refresh runs the refresh_token grant.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	expired := &oauth2.Token{RefreshToken: refreshToken}
	tok, err := p.oauth.TokenSource(p.clientContext(ctx), expired).Token()
	if err != nil {
		if rejected(err) {
			return token.Pair{}, errors.Wrap(apperrors.ErrRefreshRejected, err.Error())
		}
		return token.Pair{}, errors.Wrap(classify(ctx, err), "[Provider.Refresh]")
	}
	return token.Pair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// rejected reports whether the token endpoint refused the grant itself.
func rejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.ErrorCode == "invalid_client" {
		return true
	}
	if retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		return status == http.StatusBadRequest || status == http.StatusUnauthorized
	}
	return false
}

func classify(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &apperrors.APIError{
			Status:  retrieveErr.Response.StatusCode,
			Message: retrieveErr.ErrorDescription,
			Kind:    apperrors.KindForStatus(retrieveErr.Response.StatusCode),
		}
	}
	return apiclient.TransportError(ctx, err)
}

// Gateway is the OIDC gateway.Gateway. Userinfo requests go over the
// authorized client so an expired access token is refreshed on the way.
type Gateway struct {
	*Provider
	store      token.Store
	authorized *http.Client
}

var _ gateway.Gateway = (*Gateway)(nil)

func New(p *Provider, store token.Store, authorized *http.Client) *Gateway {
	if authorized == nil {
		authorized = p.plain
	}
	return &Gateway{Provider: p, store: store, authorized: authorized}
}

func (g *Gateway) Login(ctx context.Context, creds gateway.Credentials) (gateway.AuthResult, error) {
	tok, err := g.oauth.PasswordCredentialsToken(g.clientContext(ctx), creds.Email, creds.Password)
	if err != nil {
		if rejected(err) {
			msg := "Invalid email or password"
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && retrieveErr.ErrorDescription != "" {
				msg = retrieveErr.ErrorDescription
			}
			return gateway.AuthResult{}, &apperrors.APIError{Status: http.StatusUnauthorized, Message: msg, Kind: apperrors.ErrInvalidCredentials}
		}
		return gateway.AuthResult{}, errors.Wrap(classify(ctx, err), "[Gateway.Login]")
	}

	pair := token.Pair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !pair.Valid() {
		return gateway.AuthResult{}, errors.Wrap(apperrors.ErrServer, "[Gateway.Login] provider did not issue a refresh token, is offline_access granted?")
	}
	profile, err := g.userInfo(ctx, g.plain, pair)
	if err != nil {
		return gateway.AuthResult{}, errors.Wrap(err, "[Gateway.Login]")
	}
	return gateway.AuthResult{User: profile, Tokens: pair}, nil
}

// Register is not part of OAuth2.
func (g *Gateway) Register(ctx context.Context, data gateway.RegistrationData) (gateway.AuthResult, error) {
	return gateway.AuthResult{}, errors.Wrap(apperrors.ErrUnsupported, "registration is not available through the OIDC provider")
}

// Logout revokes the stored refresh token when the provider supports it.
func (g *Gateway) Logout(ctx context.Context) error {
	if g.revocationURL == "" {
		return nil
	}
	pair, err := g.store.Get(ctx)
	if err != nil {
		return nil
	}

	form := url.Values{"token": {pair.RefreshToken}, "token_type_hint": {"refresh_token"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Gateway.Logout] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(g.oauth.ClientID), url.QueryEscape(g.oauth.ClientSecret))

	resp, err := g.plain.Do(req)
	if err != nil {
		return apiclient.TransportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiclient.DecodeError(resp)
	}
	return nil
}

func (g *Gateway) FetchCurrentUser(ctx context.Context) (*users.Profile, error) {
	pair, err := g.store.Get(ctx)
	if err != nil {
		return nil, &apperrors.APIError{Status: http.StatusUnauthorized, Message: "no stored session", Kind: apperrors.ErrUnauthorized}
	}
	return g.userInfo(ctx, g.authorized, pair)
}

type userInfoClaims struct {
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

func (g *Gateway) userInfo(ctx context.Context, client *http.Client, pair token.Pair) (*users.Profile, error) {
	rec := &statusRecorder{base: client.Transport}
	if rec.base == nil {
		rec.base = http.DefaultTransport
	}
	recording := &http.Client{Transport: rec, Timeout: client.Timeout}

	info, err := g.oidc.UserInfo(oidc.ClientContext(ctx, recording), oauth2.StaticTokenSource(pair.OAuth2()))
	if err != nil {
		switch {
		case rec.status == http.StatusUnauthorized:
			return nil, &apperrors.APIError{Status: rec.status, Message: "Unauthorized", Kind: apperrors.ErrUnauthorized}
		case rec.status != 0:
			return nil, &apperrors.APIError{Status: rec.status, Kind: apperrors.KindForStatus(rec.status)}
		}
		return nil, apiclient.TransportError(ctx, err)
	}

	var claims userInfoClaims
	if err := info.Claims(&claims); err != nil {
		return nil, errors.Wrap(apperrors.ErrServer, "decode userinfo claims: "+err.Error())
	}
	role := claims.Role
	for _, r := range claims.Roles {
		if users.ParseRole(r) == users.RoleAdmin {
			role = r
		}
	}
	log.Debug().Str("sub", info.Subject).Msg("userinfo fetched")
	return &users.Profile{
		ID:          info.Subject,
		Email:       info.Email,
		DisplayName: claims.Name,
		Role:        users.ParseRole(role),
	}, nil
}

// statusRecorder keeps the last response status so userinfo failures, which
// go-oidc reports as plain errors, can be classified.
type statusRecorder struct {
	base   http.RoundTripper
	status int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if err == nil {
		s.status = resp.StatusCode
	}
	return resp, err
}
