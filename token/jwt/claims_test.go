package jwt_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/bookstore-session/token/jwt"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestPeek(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	raw := signed(t, jwtlib.MapClaims{
		"sub":   "user-1",
		"email": "a@x.com",
		"role":  "admin",
		"exp":   exp.Unix(),
	})

	claims, err := jwt.Peek(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "admin", claims.Role)
	require.True(t, exp.Equal(claims.ExpiresAt))
}

func TestPeek_Opaque(t *testing.T) {
	_, err := jwt.Peek("3f9a0c2b9e")
	require.ErrorIs(t, err, jwt.ErrNotJWT)

	_, err = jwt.Peek("a.b.c")
	require.ErrorIs(t, err, jwt.ErrNotJWT)
}

func TestExpiresWithin(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	jwt.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.NowTimeFunc = time.Now })

	fresh := signed(t, jwtlib.MapClaims{"sub": "u", "exp": now.Add(time.Minute).Unix()})
	nearlyExpired := signed(t, jwtlib.MapClaims{"sub": "u", "exp": now.Add(2 * time.Second).Unix()})
	expired := signed(t, jwtlib.MapClaims{"sub": "u", "exp": now.Add(-time.Second).Unix()})
	noExp := signed(t, jwtlib.MapClaims{"sub": "u"})

	require.False(t, jwt.ExpiresWithin(fresh, 5*time.Second))
	require.True(t, jwt.ExpiresWithin(nearlyExpired, 5*time.Second))
	require.True(t, jwt.ExpiresWithin(expired, 0))
	require.False(t, jwt.ExpiresWithin(noExp, time.Hour))
	require.False(t, jwt.ExpiresWithin("opaque-token", time.Hour))
}
