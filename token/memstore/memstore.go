package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/bookstore-session/token"
)

var _ token.Store = (*Store)(nil)

// Store keeps the pair in process memory. It does not survive restarts and
// is meant for tests and throwaway sessions.
type Store struct {
	pair *token.Pair
	lock sync.RWMutex
}

func New() *Store {
	return &Store{}
}

// NewWithPair returns a store that already holds pair.
func NewWithPair(pair token.Pair) *Store {
	return &Store{pair: &pair}
}

func (s *Store) Get(_ context.Context) (token.Pair, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.pair == nil {
		return token.Pair{}, token.ErrNoTokens
	}
	return *s.pair, nil
}

func (s *Store) Set(_ context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return token.ErrInvalidPair
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = &pair
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = nil
	return nil
}
