package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/quotesync/config"
	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/storage"
	"github.com/c0deZ3R0/quotesync/transport/remote"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	posts := []remote.Post{{ID: "1", Title: "one"}, {ID: "2", Title: "two"}}
	raw, err := json.Marshal(posts)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: config.DriverMemory}
	cfg.Remote.File = path
	cfg.Sync.Interval = config.Duration(time.Hour)
	cfg.Logging = logging.Config{Level: "error", Format: "text", Output: discard{}}
	return cfg
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestNewSyncsFromFileSource(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Library.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-1", "srv-2"}, res.NewIDs)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Syncs.WithLabelValues("sync")))
	assert.False(t, a.Library.Scheduler().Running())
}

func TestAutoSyncFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	yes := true
	cfg.Sync.AutoSync = &yes

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.Library.Scheduler().Running())
	assert.Equal(t, time.Hour, a.Library.Scheduler().Interval())

	next := *cfg
	next.Sync.Interval = config.Duration(time.Minute)
	a.ApplyConfig(ctx, cfg, &next)
	assert.Equal(t, time.Minute, a.Library.Scheduler().Interval())

	off := next
	no := false
	off.Sync.AutoSync = &no
	a.ApplyConfig(ctx, &next, &off)
	assert.False(t, a.Library.Scheduler().Running())
	assert.Same(t, &off, a.Config)
}

func TestOpenKV(t *testing.T) {
	logger := logging.Discard().Logger

	kv, err := OpenKV(config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "q.db")}, logger)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, storage.ScopeLocal, storage.KeyAutoSync, []byte("true")))
	require.NoError(t, kv.Close())

	_, err = OpenKV(config.StorageConfig{Driver: "mongo"}, logger)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindStorage))
}

func TestNewSourceKinds(t *testing.T) {
	cfg := config.Default().Remote
	_, ok := NewSource(cfg, nil).(*remote.HTTPSource)
	assert.True(t, ok)

	cfg.File = "posts.json"
	_, ok = NewSource(cfg, nil).(remote.FileSource)
	assert.True(t, ok)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(url+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
