package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ErrNotJWT is returned for opaque (non-JWT) access tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of access token claims the client reads.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time // Zero when the token carries no exp claim
}

// Peek reads the claims of rawToken without verifying its signature. The
// client holds no verification key; the server stays the authority and the
// result is only used to anticipate expiry.
func Peek(rawToken string) (Claims, error) {
	if strings.Count(rawToken, ".") != 2 {
		return Claims{}, ErrNotJWT
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, errors.Join(ErrNotJWT, err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.New("error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return Claims{
		Subject:   sub,
		Email:     email,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

// ExpiresWithin reports whether rawToken's exp claim falls before now+skew.
// Opaque tokens and tokens without exp never count as expiring.
func ExpiresWithin(rawToken string, skew time.Duration) bool {
	claims, err := Peek(rawToken)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return !NowTimeFunc().Add(skew).Before(claims.ExpiresAt)
}
