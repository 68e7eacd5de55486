// Package storetest holds the behaviour every token.Store must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bookstore-session/token"
)

// Run exercises store against the Store contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) token.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store has no tokens", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx)
		require.ErrorIs(t, err, token.ErrNoTokens)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		pair := token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}
		require.NoError(t, s.Set(ctx, pair))

		got, err := s.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, pair, got)
	})

	t.Run("set replaces the whole pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}))
		require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "access-2", RefreshToken: "refresh-2"}))

		got, err := s.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, token.Pair{AccessToken: "access-2", RefreshToken: "refresh-2"}, got)
	})

	t.Run("invalid pair is rejected and store untouched", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}))
		require.ErrorIs(t, s.Set(ctx, token.Pair{AccessToken: "access-only"}), token.ErrInvalidPair)

		got, err := s.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "access-1", got.AccessToken)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "a", RefreshToken: "r"}))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))

		_, err := s.Get(ctx)
		require.ErrorIs(t, err, token.ErrNoTokens)
	})

	t.Run("concurrent readers never see a torn pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"}))

		const writes = 50
		var wg sync.WaitGroup
		torn := make(chan token.Pair, 1)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= writes; i++ {
				_ = s.Set(ctx, token.Pair{
					AccessToken:  fmt.Sprintf("access-%d", i),
					RefreshToken: fmt.Sprintf("refresh-%d", i),
				})
			}
		}()

		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < writes; i++ {
					got, err := s.Get(ctx)
					if err != nil {
						continue
					}
					if got.AccessToken[len("access-"):] != got.RefreshToken[len("refresh-"):] {
						select {
						case torn <- got:
						default:
						}
					}
				}
			}()
		}
		wg.Wait()
		close(torn)

		for pair := range torn {
			t.Fatalf("observed torn pair %+v", pair)
		}
	})
}
