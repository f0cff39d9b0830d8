package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c0deZ3R0/quotesync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: &buf})

	logger.WithComponent(Component("engine")).Info("merge applied", slog.Int("new", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "merge applied", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.EqualValues(t, 2, entry["new"])
}

func TestLogger_LogErrorIncludesSyncError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "json", Output: &buf})

	logger.LogError(context.Background(), errors.NewFetchError(fmt.Errorf("dial tcp")), "sync failed")

	out := buf.String()
	assert.Contains(t, out, `"kind":"fetch"`)
	assert.Contains(t, out, `"caller"`)
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: "text", Output: &buf})

	err := logger.LogOperation(context.Background(), Operation("sync"), Component("scheduler"), func() error {
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "operation completed")

	buf.Reset()
	boom := fmt.Errorf("boom")
	err = logger.LogOperation(context.Background(), Operation("sync"), Component("scheduler"), func() error {
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Contains(t, buf.String(), "operation failed")
}

func TestDynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, level := NewLoggerWithDynamicLevel(Config{Level: "info", Format: "text", Output: &buf})

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	require.True(t, level.SetFromString("debug"))
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	assert.False(t, level.SetFromString("loud"))
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "WARN")

	config := GetConfigFromEnv()
	assert.Equal(t, EnvProduction, config.Environment)
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "warn", config.Level)
	assert.False(t, config.AddSource)
}

func TestFileOutputRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotesync.log")
	logger := NewLogger(Config{Level: "info", Format: "text", File: FileConfig{Path: path, MaxSizeMB: 1}})

	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}
