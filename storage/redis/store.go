// Package redis provides a Redis implementation of storage.KV.
//
// Local values live under "<prefix>:local:<key>" with no expiry. Session
// values live under "<prefix>:session:<session id>:<key>" and expire after
// SessionTTL, so every Store opened without a SessionID starts a new session.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdSync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/storage"
)

const (
	opGet    = "redis.Get"
	opSet    = "redis.Set"
	opDelete = "redis.Delete"
	opOpen   = "redis.Open"

	component = "storage/redis"
)

// Config holds configuration options for the Redis KV store.
type Config struct {
	// URL is a redis:// or rediss:// URL understood by redis.ParseURL.
	URL string

	// Prefix namespaces every key. Defaults to "quotesync".
	Prefix string

	// SessionID resumes an existing session. Empty starts a new one.
	SessionID string

	// SessionTTL bounds how long session values live. Default: 24h.
	SessionTTL time.Duration

	// DialTimeout bounds the initial ping. Default: 5s.
	DialTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "quotesync"
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component(component)).Logger
	}
}

// Store implements storage.KV on a Redis client.
type Store struct {
	client     *redis.Client
	prefix     string
	sessionID  string
	sessionTTL time.Duration
	logger     *slog.Logger

	mu     stdSync.RWMutex
	closed bool
}

var _ storage.KV = (*Store)(nil)

// New parses the URL, connects and pings the server.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if config.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to parse redis URL: %w", err), opOpen, component, syncErrors.KindStorage)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("failed to ping redis: %w", err), opOpen, component, syncErrors.KindStorage)
	}

	config.Logger.Info("Redis KV store initialized",
		slog.String("addr", opts.Addr),
		slog.String("prefix", config.Prefix),
		slog.String("session_id", config.SessionID),
	)
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client. The Store takes ownership of it.
func NewWithClient(client *redis.Client, config *Config) *Store {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()
	return &Store{
		client:     client,
		prefix:     config.Prefix,
		sessionID:  config.SessionID,
		sessionTTL: config.SessionTTL,
		logger:     config.Logger,
	}
}

// SessionID identifies the session this Store reads and writes.
func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) redisKey(scope storage.Scope, key string) string {
	if scope == storage.ScopeSession {
		return s.prefix + ":session:" + s.sessionID + ":" + key
	}
	return s.prefix + ":local:" + key
}

func (s *Store) checkOpen(scope storage.Scope) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	if !storage.ValidScope(scope) {
		return storage.ErrInvalidScope
	}
	return nil
}

func (s *Store) Get(ctx context.Context, scope storage.Scope, key string) ([]byte, bool, error) {
	if err := s.checkOpen(scope); err != nil {
		return nil, false, err
	}
	v, err := s.client.Get(ctx, s.redisKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, syncErrors.WrapOpComponentKind(err, opGet, component, syncErrors.KindStorage)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, scope storage.Scope, key string, value []byte) error {
	if err := s.checkOpen(scope); err != nil {
		return err
	}
	var ttl time.Duration
	if scope == storage.ScopeSession {
		ttl = s.sessionTTL
	}
	if err := s.client.Set(ctx, s.redisKey(scope, key), value, ttl).Err(); err != nil {
		return syncErrors.WrapOpComponentKind(err, opSet, component, syncErrors.KindStorage)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope storage.Scope, key string) error {
	if err := s.checkOpen(scope); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(scope, key)).Err(); err != nil {
		return syncErrors.WrapOpComponentKind(err, opDelete, component, syncErrors.KindStorage)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
