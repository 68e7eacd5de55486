package gatewayfake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bookstore-session/gateway"
	"github.com/jrsteele09/bookstore-session/gateway/gatewayfake"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
	"github.com/jrsteele09/bookstore-session/users"
)

func TestGateway_LoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	g := gatewayfake.New()
	g.AddUser("p", users.Profile{ID: "u1", Email: "a@x.com", Role: users.RoleCustomer})

	_, err := g.Login(ctx, gateway.Credentials{Email: "a@x.com", Password: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	res, err := g.Login(ctx, gateway.Credentials{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	require.Equal(t, "u1", res.User.ID)
	require.Equal(t, "access-1", res.Tokens.AccessToken)

	pair, err := g.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-2", pair.RefreshToken)

	// Rotated: the old refresh token is no longer accepted.
	_, err = g.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrRefreshRejected)

	require.NoError(t, g.Logout(ctx))
	_, err = g.FetchCurrentUser(ctx)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.Equal(t, 2, g.Calls(gatewayfake.OpRefresh))
}

func TestGateway_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	g := gatewayfake.New()
	_, err := g.Register(ctx, gateway.RegistrationData{Email: "b@x.com", Password: "p", FullName: "B"})
	require.NoError(t, err)
	_, err = g.Register(ctx, gateway.RegistrationData{Email: "b@x.com", Password: "p", FullName: "B"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGateway_Fail(t *testing.T) {
	g := gatewayfake.New()
	g.Fail(gatewayfake.OpLogout, apperrors.ErrNetwork)
	require.ErrorIs(t, g.Logout(context.Background()), apperrors.ErrNetwork)
	g.Fail(gatewayfake.OpLogout, nil)
	require.NoError(t, g.Logout(context.Background()))
}
