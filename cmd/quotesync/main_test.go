package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/quotesync/config"
	"github.com/c0deZ3R0/quotesync/internal/app"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/transport/remote"
)

type env struct {
	dir        string
	configPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	posts, err := json.Marshal([]remote.Post{{ID: "1", Title: "server one"}, {ID: "2", Title: "server two"}})
	require.NoError(t, err)
	postsPath := filepath.Join(dir, "posts.json")
	require.NoError(t, os.WriteFile(postsPath, posts, 0o600))

	cfg := fmt.Sprintf(`storage:
  driver: sqlite
  dsn: %q
remote:
  file: %q
sync:
  interval: 1h
logging:
  level: error
`, filepath.Join(dir, "quotes.db"), postsPath)
	configPath := filepath.Join(dir, "quotesync.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	return &env{dir: dir, configPath: configPath}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddListExportImport(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "add", "Be yourself", "--category", "Life")
	require.NoError(t, err)
	assert.Contains(t, out, "Added ")

	_, err = e.run(t, "add", "no category")
	assert.Error(t, err)

	out, err = e.run(t, "list", "--category", "Life")
	require.NoError(t, err)
	assert.Contains(t, out, "Be yourself")

	out, err = e.run(t, "list", "--category", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "No quotes.")

	exportPath := filepath.Join(e.dir, "export.json")
	_, err = e.run(t, "export", exportPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var exported []quote.Record
	require.NoError(t, json.Unmarshal(raw, &exported))
	require.Len(t, exported, 1)

	importPath := filepath.Join(e.dir, "import.json")
	require.NoError(t, os.WriteFile(importPath, []byte(`[{"text":"Imported","category":"Fun"}]`), 0o600))
	out, err = e.run(t, "import", importPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 quotes")

	bad := filepath.Join(e.dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"text":"x"}`), 0o600))
	_, err = e.run(t, "import", bad)
	assert.Error(t, err)

	out, err = e.run(t, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported")
	assert.Contains(t, out, "Be yourself")
}

func TestSyncKeepLocal(t *testing.T) {
	e := newEnv(t)
	importPath := filepath.Join(e.dir, "import.json")
	require.NoError(t, os.WriteFile(importPath, []byte(`[{"id":"srv-1","text":"my version","category":"Server"}]`), 0o600))
	_, err := e.run(t, "import", importPath)
	require.NoError(t, err)

	_, err = e.run(t, "sync", "--keep", "both")
	assert.Error(t, err)

	out, err := e.run(t, "sync", "--keep", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "1 new, 1 updated")
	assert.Contains(t, out, "conflict srv-1")
	assert.Contains(t, out, "Resolved 1 conflict(s): keep_local")

	out, err = e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "my version")
	assert.Contains(t, out, "server two")
	assert.NotContains(t, out, "server one")
}

func TestAutoSyncFlagPersists(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "autosync")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto sync is off")

	out, err = e.run(t, "autosync", "on", "--interval", "30m")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto sync is on (interval 30m0s)")

	out, err = e.run(t, "autosync")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto sync is on")

	_, err = e.run(t, "autosync", "maybe")
	assert.Error(t, err)

	out, err = e.run(t, "autosync", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto sync is off")
}

func TestConflictsTalksToRunningEngine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cfg, err := config.Load(e.configPath)
	require.NoError(t, err)
	cfg.Storage = config.StorageConfig{Driver: config.DriverMemory}
	a, err := app.New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	out, err := e.run(t, "conflicts", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No conflicts.")

	_, err = a.Library.Import(ctx, []quote.Record{{ID: "srv-2", Text: "mine", Category: "Server", Source: quote.SourceLocal}})
	require.NoError(t, err)
	_, err = a.Library.Synchronize(ctx)
	require.NoError(t, err)

	out, err = e.run(t, "conflicts", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "srv-2")
	assert.Contains(t, out, `"mine"`)

	_, err = e.run(t, "conflicts", "--api", srv.URL, "--resolve", "keep_local", "--id", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	out, err = e.run(t, "conflicts", "--api", srv.URL, "--resolve", "keep_server")
	require.NoError(t, err)
	assert.Contains(t, out, "Resolved 1 conflict(s): keep_server")
	assert.Empty(t, a.Library.Conflicts())
}

func TestMissingConfigFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "list"})
	assert.Error(t, root.Execute())
}
