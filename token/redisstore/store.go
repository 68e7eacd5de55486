package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/bookstore-session/token"
)

var _ token.Store = (*Store)(nil)

// Store keeps the pair under two keys in Redis, for deployments where the
// session is held by a server-side client rather than on the user's machine.
// Writes go through MULTI/EXEC and reads use a single MGET, so a reader never
// sees one key from an old pair and the other from a new one.
type Store struct {
	rdb        redis.UniversalClient
	accessKey  string
	refreshKey string
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bookstore:session"
	}
	return &Store{
		rdb:        rdb,
		accessKey:  prefix + ":" + token.AccessTokenKey,
		refreshKey: prefix + ":" + token.RefreshTokenKey,
	}
}

func (s *Store) Get(ctx context.Context) (token.Pair, error) {
	values, err := s.rdb.MGet(ctx, s.accessKey, s.refreshKey).Result()
	if err != nil {
		return token.Pair{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	access, _ := values[0].(string)
	refresh, _ := values[1].(string)
	pair := token.Pair{AccessToken: access, RefreshToken: refresh}
	if !pair.Valid() {
		return token.Pair{}, token.ErrNoTokens
	}
	return pair, nil
}

func (s *Store) Set(ctx context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return token.ErrInvalidPair
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey, pair.AccessToken, 0)
		pipe.Set(ctx, s.refreshKey, pair.RefreshToken, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.accessKey, s.refreshKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
