package memory

import (
	"context"
	"testing"

	"github.com/c0deZ3R0/quotesync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreScopes(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, storage.ScopeLocal, "k", []byte("local")))
	require.NoError(t, s.Set(ctx, storage.ScopeSession, "k", []byte("session")))

	v, ok, err := s.Get(ctx, storage.ScopeLocal, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "local", string(v))

	s.ResetSession()
	_, ok, err = s.Get(ctx, storage.ScopeSession, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = s.Get(ctx, storage.ScopeLocal, "k")
	assert.True(t, ok)
}

func TestStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := New()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, storage.ScopeLocal, "k", buf))
	buf[0] = 'z'

	v, _, _ := s.Get(ctx, storage.ScopeLocal, "k")
	assert.Equal(t, "abc", string(v))
}

func TestStoreClosedAndInvalidScope(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.Set(ctx, storage.Scope("cloud"), "k", nil), storage.ErrInvalidScope)

	require.NoError(t, s.Close())
	_, _, err := s.Get(ctx, storage.ScopeLocal, "k")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
}
