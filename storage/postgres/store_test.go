package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to the database named by POSTGRES_TEST_CONNECTION.
func setupTestStore(t *testing.T, keepSession bool) *Store {
	t.Helper()
	connStr := os.Getenv("POSTGRES_TEST_CONNECTION")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_CONNECTION not set")
	}

	store, err := New(&Config{
		ConnectionString: connStr,
		TableName:        "quotesync_kv_test",
		KeepSession:      keepSession,
		Logger:           logging.Discard().Logger,
		MaxOpenConns:     5,
		MaxIdleConns:     2,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.db.Exec(`DELETE FROM ` + store.tableName)
		store.Close()
	})
	return store
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, false)

	require.NoError(t, store.Set(ctx, storage.ScopeLocal, storage.KeyQuotes, []byte(`[]`)))
	require.NoError(t, store.Set(ctx, storage.ScopeLocal, storage.KeyQuotes, []byte(`[{"id":"a"}]`)))

	v, ok, err := store.Get(ctx, storage.ScopeLocal, storage.KeyQuotes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a"}]`, string(v))

	require.NoError(t, store.Delete(ctx, storage.ScopeLocal, storage.KeyQuotes))
	_, ok, err = store.Get(ctx, storage.ScopeLocal, storage.KeyQuotes)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresSessionReset(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, false)
	require.NoError(t, store.Set(ctx, storage.ScopeSession, storage.KeyLastViewed, []byte(`{}`)))
	require.NoError(t, store.Set(ctx, storage.ScopeLocal, storage.KeyAutoSync, []byte(`true`)))

	again, err := New(&Config{
		ConnectionString: os.Getenv("POSTGRES_TEST_CONNECTION"),
		TableName:        "quotesync_kv_test",
		Logger:           logging.Discard().Logger,
	})
	require.NoError(t, err)
	defer again.Close()

	_, ok, err := again.Get(ctx, storage.ScopeSession, storage.KeyLastViewed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = again.Get(ctx, storage.ScopeLocal, storage.KeyAutoSync)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMaskConnectionString(t *testing.T) {
	assert.Equal(t, "host=db password=*** user=q", maskConnectionString("host=db password=secret user=q"))
	assert.Equal(t, "postgres://u:***@db/quotes", maskConnectionString("postgres://u:secret@db/quotes"))
	assert.Equal(t, "postgres://db/quotes", maskConnectionString("postgres://db/quotes"))
}

func TestNewRequiresConnectionString(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}
