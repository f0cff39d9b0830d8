// Package memory provides an in-process storage.KV.
package memory

import (
	"context"
	"sync"

	"github.com/c0deZ3R0/quotesync/storage"
)

// Store keeps values in maps. Values are copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	data   map[storage.Scope]map[string][]byte
	closed bool
}

var _ storage.KV = (*Store)(nil)

func New() *Store {
	return &Store{
		data: map[storage.Scope]map[string][]byte{
			storage.ScopeLocal:   {},
			storage.ScopeSession: {},
		},
	}
}

func (s *Store) Get(ctx context.Context, scope storage.Scope, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !storage.ValidScope(scope) {
		return nil, false, storage.ErrInvalidScope
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, storage.ErrStoreClosed
	}
	v, ok := s.data[scope][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Set(ctx context.Context, scope storage.Scope, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !storage.ValidScope(scope) {
		return storage.ErrInvalidScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	s.data[scope][key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(ctx context.Context, scope storage.Scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !storage.ValidScope(scope) {
		return storage.ErrInvalidScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	delete(s.data[scope], key)
	return nil
}

// ResetSession drops every session-scoped value.
func (s *Store) ResetSession() {
	s.mu.Lock()
	s.data[storage.ScopeSession] = map[string][]byte{}
	s.mu.Unlock()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
