package gateway

import (
	"context"

	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

// Credentials are used once per login call and never persisted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegistrationData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// AuthResult is returned by a successful login or registration.
type AuthResult struct {
	User   *users.Profile
	Tokens token.Pair
}

// Gateway is the remote authentication service. Each call is a single round
// trip and keeps no local state.
//
// Errors: Login fails with apperrors.ErrInvalidCredentials, Register with
// apperrors.ErrValidation, Refresh with apperrors.ErrRefreshRejected when the
// refresh token is no longer accepted, and FetchCurrentUser with
// apperrors.ErrUnauthorized. Any call may fail with apperrors.ErrNetwork.
type Gateway interface {
	Login(ctx context.Context, creds Credentials) (AuthResult, error)
	Register(ctx context.Context, data RegistrationData) (AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
	Logout(ctx context.Context) error
	FetchCurrentUser(ctx context.Context) (*users.Profile, error)
}
