package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/bookstore-session/token/jwt"
)

// ErrNoTokens is returned by Store.Get when no complete pair is stored.
var ErrNoTokens = errors.New("no stored tokens")

// ErrInvalidPair is returned by Store.Set for a pair missing either token.
var ErrInvalidPair = errors.New("token pair requires both an access and a refresh token")

// Storage keys. A session exists only when both are present.
const (
	AccessTokenKey  = "token"
	RefreshTokenKey = "refresh_token"
)

// Pair is the access/refresh token pair. It is always stored and replaced as
// a unit.
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func (p Pair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// OAuth2 converts the pair for use with golang.org/x/oauth2 consumers. Expiry
// is taken from the access token's exp claim when it has one.
func (p Pair) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if claims, err := jwt.Peek(p.AccessToken); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:4])
}

// Store is the durable holder of the session's token pair. Set and Clear are
// visible to every subsequent Get, and Get never returns a torn pair.
type Store interface {
	Get(ctx context.Context) (Pair, error)
	Set(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}
