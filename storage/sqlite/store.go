// Package sqlite provides a SQLite implementation of storage.KV.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/storage"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opGet    = "sqlite.Get"
	opSet    = "sqlite.Set"
	opDelete = "sqlite.Delete"
	opOpen   = "sqlite.Open"

	component = "storage/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration options for the SQLite KV store.
//
// DefaultConfig enables WAL mode and a small connection pool; SQLite only
// allows one writer at a time so larger pools buy little.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:quotes.db"
	DataSourceName string

	// EnableWAL appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// TableName is the name of the key-value table. Defaults to "kv".
	TableName string

	// KeepSession keeps session-scoped rows from a previous process.
	// By default they are removed on open, which starts a new session.
	KeepSession bool

	Logger *slog.Logger

	MaxOpenConns    int           // Default: 4
	MaxIdleConns    int           // Default: 2
	ConnMaxLifetime time.Duration // Default: 1h
	ConnMaxIdleTime time.Duration // Default: 5m
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "kv"
	}
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component(component)).Logger
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL && c.DataSourceName != ":memory:" {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			sep := "?"
			if strings.Contains(c.DataSourceName, "?") {
				sep = "&"
			}
			c.DataSourceName += sep + "_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with WAL enabled.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store implements storage.KV on a single SQLite table.
type Store struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	logger    *slog.Logger
	tableName string
}

var _ storage.KV = (*Store)(nil)

// New opens the database, creates the table and starts a new session.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	config.Logger.Info("Opening SQLite database",
		"data_source", config.DataSourceName,
		"wal_enabled", config.EnableWAL)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to open sqlite database: %w", err), opOpen, component, syncErrors.KindStorage)
	}

	// :memory: databases are per-connection.
	if config.DataSourceName == ":memory:" {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
		config.ConnMaxLifetime = 0
		config.ConnMaxIdleTime = 0
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to connect to sqlite database: %w", err), opOpen, component, syncErrors.KindStorage)
	}

	store := &Store{
		db:        db,
		logger:    config.Logger,
		tableName: config.TableName,
	}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to setup database schema: %w", err), opOpen, component, syncErrors.KindStorage)
	}

	if !config.KeepSession {
		if _, err := db.Exec(`DELETE FROM `+store.tableName+` WHERE scope = ?`, string(storage.ScopeSession)); err != nil {
			db.Close()
			return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to reset session: %w", err), opOpen, component, syncErrors.KindStorage)
		}
	}

	store.logger.Info("SQLite KV store initialized", "table_name", store.tableName)
	return store, nil
}

func (s *Store) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
        scope       TEXT NOT NULL,
        key         TEXT NOT NULL,
        value       BLOB NOT NULL,
        updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (scope, key)
    );`
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}

// Get reads the value stored under (scope, key).
func (s *Store) Get(ctx context.Context, scope storage.Scope, key string) ([]byte, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	if !storage.ValidScope(scope) {
		return nil, false, storage.ErrInvalidScope
	}

	var value []byte
	query := `SELECT value FROM ` + s.tableName + ` WHERE scope = ? AND key = ?`
	err := s.db.QueryRowContext(ctx, query, string(scope), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, syncErrors.WrapOpComponentKind(err, opGet, component, syncErrors.KindStorage)
	}
	return value, true, nil
}

// Set upserts the value under (scope, key) in a single statement.
func (s *Store) Set(ctx context.Context, scope storage.Scope, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !storage.ValidScope(scope) {
		return storage.ErrInvalidScope
	}
	if value == nil {
		value = []byte{}
	}

	query := `INSERT INTO ` + s.tableName + ` (scope, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, string(scope), key, value); err != nil {
		return syncErrors.WrapOpComponentKind(err, opSet, component, syncErrors.KindStorage)
	}
	return nil
}

// Delete removes (scope, key). Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, scope storage.Scope, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !storage.ValidScope(scope) {
		return storage.ErrInvalidScope
	}
	query := `DELETE FROM ` + s.tableName + ` WHERE scope = ? AND key = ?`
	if _, err := s.db.ExecContext(ctx, query, string(scope), key); err != nil {
		return syncErrors.WrapOpComponentKind(err, opDelete, component, syncErrors.KindStorage)
	}
	return nil
}

// Stats returns database statistics for monitoring
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
