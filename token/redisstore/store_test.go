package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/token/redisstore"
	"github.com/jrsteele09/bookstore-session/token/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) token.Store {
		_, rdb := newTestRedis(t)
		return redisstore.New(rdb, "test")
	})
}

func TestStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "bookstore:session")

	require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "a", RefreshToken: "r"}))

	access, err := mr.Get("bookstore:session:token")
	require.NoError(t, err)
	require.Equal(t, "a", access)
	refresh, err := mr.Get("bookstore:session:refresh_token")
	require.NoError(t, err)
	require.Equal(t, "r", refresh)
}

func TestStore_OneKeyMissingMeansNoSession(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "")

	require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "a", RefreshToken: "r"}))
	mr.Del("bookstore:session:refresh_token")

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, token.ErrNoTokens)
}

func TestStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := redisstore.New(rdb, "test")
	mr.Close()

	_, err = s.Get(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, token.ErrNoTokens)
}
