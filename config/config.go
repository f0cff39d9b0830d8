// Package config loads the quotesync configuration from YAML or JSON files
// with environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Environment variables applied after the file is read.
const (
	EnvStorageDriver = "QUOTESYNC_STORAGE_DRIVER"
	EnvStorageDSN    = "QUOTESYNC_STORAGE_DSN"
	EnvRemoteURL     = "QUOTESYNC_REMOTE_URL"
	EnvSyncInterval  = "QUOTESYNC_SYNC_INTERVAL"
	EnvAutoSync      = "QUOTESYNC_AUTOSYNC"
)

// Duration accepts "30s"-style strings in both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	return d.parse(s)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the complete runtime configuration.
type Config struct {
	Storage StorageConfig  `json:"storage" yaml:"storage"`
	Remote  RemoteConfig   `json:"remote" yaml:"remote"`
	Sync    SyncConfig     `json:"sync" yaml:"sync"`
	API     APIConfig      `json:"api" yaml:"api"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`

	// SessionTTL bounds session-scoped keys on backends that expire them (redis).
	SessionTTL Duration `json:"session_ttl,omitempty" yaml:"session_ttl,omitempty"`
}

type RemoteConfig struct {
	// URL of the posts authority. Ignored when File is set.
	URL string `json:"url" yaml:"url"`

	// File reads snapshots from a JSON posts file instead of HTTP.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	Limit            int         `json:"limit" yaml:"limit"`
	Timeout          Duration    `json:"timeout" yaml:"timeout"`
	MaxResponseBytes int64       `json:"max_response_bytes" yaml:"max_response_bytes"`
	Retry            RetryConfig `json:"retry" yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64  `json:"multiplier" yaml:"multiplier"`
}

type SyncConfig struct {
	// Interval of the repeating trigger. Zero disables auto sync.
	Interval Duration `json:"interval" yaml:"interval"`

	// AutoSync enables the repeating trigger at startup, overriding the stored flag.
	AutoSync *bool `json:"auto_sync,omitempty" yaml:"auto_sync,omitempty"`

	FetchTimeout Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
}

type APIConfig struct {
	Listen string `json:"listen" yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			DSN:        "quotesync.db",
			SessionTTL: Duration(24 * time.Hour),
		},
		Remote: RemoteConfig{
			URL:              "https://jsonplaceholder.typicode.com",
			Limit:            10,
			Timeout:          Duration(30 * time.Second),
			MaxResponseBytes: 1 << 20,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(200 * time.Millisecond),
				MaxDelay:     Duration(5 * time.Second),
				Multiplier:   2,
			},
		},
		Sync: SyncConfig{
			Interval:     Duration(time.Minute),
			FetchTimeout: Duration(30 * time.Second),
		},
		API:     APIConfig{Listen: "127.0.0.1:8080"},
		Logging: logging.GetConfigFromEnv(),
	}
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, syncErrors.E(syncErrors.Op("config.Load"), syncErrors.Component("config"), syncErrors.KindInvalid,
				fmt.Errorf("failed to read config file %s: %w", path, err))
		}
		if err := decode(data, detectFormat(path), cfg); err != nil {
			return nil, syncErrors.E(syncErrors.Op("config.Load"), syncErrors.Component("config"), syncErrors.KindInvalid, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, syncErrors.E(syncErrors.Op("config.Load"), syncErrors.Component("config"), syncErrors.KindInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func decode(data []byte, format string, cfg *Config) error {
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", format)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvStorageDriver); ok && v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStorageDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup(EnvRemoteURL); ok && v != "" {
		c.Remote.URL = v
		c.Remote.File = ""
	}
	if v, ok := lookup(EnvSyncInterval); ok && v != "" {
		var d Duration
		if err := d.parse(v); err != nil {
			return fmt.Errorf("%s: %w", EnvSyncInterval, err)
		}
		c.Sync.Interval = d
	}
	if v, ok := lookup(EnvAutoSync); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAutoSync, err)
		}
		c.Sync.AutoSync = &b
	}
	return nil
}

// Validate checks the values a process cannot start without.
func (c *Config) Validate() error {
	var problems []string
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverRedis:
		if c.Storage.DSN == "" {
			problems = append(problems, fmt.Sprintf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Remote.URL == "" && c.Remote.File == "" {
		problems = append(problems, "remote.url or remote.file is required")
	}
	if c.Remote.Limit <= 0 {
		problems = append(problems, "remote.limit must be positive")
	}
	if c.Remote.Retry.MaxAttempts < 1 {
		problems = append(problems, "remote.retry.max_attempts must be at least 1")
	}
	if c.Sync.Interval < 0 {
		problems = append(problems, "sync.interval must not be negative")
	}
	if c.Sync.FetchTimeout <= 0 {
		problems = append(problems, "sync.fetch_timeout must be positive")
	}
	if c.Sync.AutoSync != nil && *c.Sync.AutoSync && c.Sync.Interval == 0 {
		problems = append(problems, "sync.auto_sync needs a sync.interval")
	}
	if len(problems) > 0 {
		return syncErrors.E(syncErrors.Op("config.Validate"), syncErrors.Component("config"), syncErrors.KindInvalid,
			fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; ")))
	}
	return nil
}
