// Package app wires configuration into a running quote library: storage
// backend, remote source, metrics, notification hub and control API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c0deZ3R0/quotesync/config"
	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/metrics"
	"github.com/c0deZ3R0/quotesync/storage"
	"github.com/c0deZ3R0/quotesync/storage/memory"
	"github.com/c0deZ3R0/quotesync/storage/postgres"
	"github.com/c0deZ3R0/quotesync/storage/redis"
	"github.com/c0deZ3R0/quotesync/storage/sqlite"
	"github.com/c0deZ3R0/quotesync/synckit"
	"github.com/c0deZ3R0/quotesync/transport/api"
	"github.com/c0deZ3R0/quotesync/transport/remote"
	"github.com/c0deZ3R0/quotesync/transport/sse"
)

// App owns every long-lived component of a quotesync process.
type App struct {
	Config  *config.Config
	Library *synckit.Library
	Metrics *metrics.Collector
	Hub     *sse.Hub
	Logger  *logging.Logger

	kv    storage.KV
	level *logging.DynamicLevelVar
}

// Option adjusts the library before it is built.
type Option func(*[]synckit.Option)

// WithNotifier adds a notifier next to the hub and the log notifier.
func WithNotifier(n synckit.Notifier) Option {
	return func(opts *[]synckit.Option) { *opts = append(*opts, synckit.WithNotifier(n)) }
}

// WithSource replaces the source built from the remote config.
func WithSource(src synckit.Source) Option {
	return func(opts *[]synckit.Option) { *opts = append(*opts, synckit.WithSource(src)) }
}

// New opens storage, builds the library and loads the persisted collection.
// An explicit sync.auto_sync value overrides the stored flag.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	logger, level := logging.NewLoggerWithDynamicLevel(cfg.Logging)

	kv, err := OpenKV(cfg.Storage, logger.Logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.NewCollector(metrics.DefaultNamespace),
		Hub:     sse.NewHub(logger.WithComponent(logging.Component("sse")).Logger),
		Logger:  logger,
		kv:      kv,
		level:   level,
	}

	libOpts := []synckit.Option{
		synckit.WithStore(kv),
		synckit.WithSource(NewSource(cfg.Remote, logger.Logger)),
		synckit.WithLogger(logger.Logger),
		synckit.WithMetrics(a.Metrics),
		synckit.WithNotifier(a.Hub),
		synckit.WithFetchTimeout(cfg.Sync.FetchTimeout.Std()),
		synckit.WithSyncInterval(cfg.Sync.Interval.Std()),
	}
	for _, opt := range opts {
		opt(&libOpts)
	}

	lib, err := synckit.New(libOpts...)
	if err != nil {
		kv.Close()
		return nil, err
	}
	a.Library = lib

	err = logger.LogOperation(ctx, logging.Operation("open"), logging.Component("library"), func() error {
		return lib.Open(ctx)
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Sync.AutoSync != nil {
		if err := lib.SetAutoSync(ctx, *cfg.Sync.AutoSync, cfg.Sync.Interval.Std()); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// OpenKV opens the storage backend named by cfg.Driver.
func OpenKV(cfg config.StorageConfig, logger *slog.Logger) (storage.KV, error) {
	var (
		kv  storage.KV
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		kv = memory.New()
	case config.DriverSQLite:
		kv, err = sqlite.New(&sqlite.Config{
			DataSourceName: cfg.DSN,
			EnableWAL:      true,
			TableName:      cfg.Table,
			Logger:         logger,
		})
	case config.DriverPostgres:
		kv, err = postgres.New(&postgres.Config{
			ConnectionString: cfg.DSN,
			TableName:        cfg.Table,
			Logger:           logger,
		})
	case config.DriverRedis:
		kv, err = redis.New(&redis.Config{
			URL:        cfg.DSN,
			Prefix:     cfg.Table,
			SessionTTL: cfg.SessionTTL.Std(),
			Logger:     logger,
		})
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, syncErrors.E(syncErrors.Op("app.OpenKV"), syncErrors.Component("app"), syncErrors.KindStorage, err)
	}
	return kv, nil
}

// NewSource builds the remote source: a posts file when one is configured,
// HTTP otherwise.
func NewSource(cfg config.RemoteConfig, logger *slog.Logger) synckit.Source {
	if cfg.File != "" {
		return remote.FileSource{Path: cfg.File, Limit: cfg.Limit}
	}
	return remote.NewHTTPSource(cfg.URL, remote.Options{
		Limit:            cfg.Limit,
		MaxResponseBytes: cfg.MaxResponseBytes,
		RequestTimeout:   cfg.Timeout.Std(),
		Retry: remote.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Std(),
			MaxDelay:     cfg.Retry.MaxDelay.Std(),
			Multiplier:   cfg.Retry.Multiplier,
		},
		Logger: logger,
	})
}

// ApplyConfig reacts to a reloaded configuration. The log level and the auto
// sync schedule change in place; storage and remote changes need a restart.
func (a *App) ApplyConfig(ctx context.Context, old, next *config.Config) {
	if old.Logging.Level != next.Logging.Level {
		if a.level.SetFromString(next.Logging.Level) {
			a.Logger.Info("Log level changed", "level", next.Logging.Level)
		}
	}
	if old.Storage != next.Storage || old.Remote.URL != next.Remote.URL || old.Remote.File != next.Remote.File {
		a.Logger.Warn("Storage or remote changes take effect after restart")
	}

	enabled, err := a.Library.AutoSync(ctx)
	if err != nil {
		a.Logger.LogError(ctx, err, "Failed to read auto sync flag")
		return
	}
	if next.Sync.AutoSync != nil {
		enabled = *next.Sync.AutoSync
	}
	interval := next.Sync.Interval.Std()
	sched := a.Library.Scheduler()

	switch {
	case enabled && interval > 0 && (!sched.Running() || sched.Interval() != interval):
		err = a.Library.SetAutoSync(ctx, true, interval)
	case (!enabled || interval <= 0) && sched.Running():
		err = a.Library.SetAutoSync(ctx, false, 0)
	}
	if err != nil {
		a.Logger.LogError(ctx, err, "Failed to apply auto sync settings")
		return
	}
	a.Config = next
}

// Handler returns the control API for this app.
func (a *App) Handler() http.Handler {
	return api.New(a.Library,
		api.WithLogger(a.Logger.WithComponent(logging.Component("api")).Logger),
		api.WithMetricsHandler(a.Metrics),
		api.WithEventsHandler(a.Hub.Handler()),
	).Router()
}

// Serve runs the control API on ln until ctx is canceled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.Logger.Info("Control API listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Streams end first so Shutdown does not wait on them.
	a.Hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the hub and the library, which closes the storage backend.
func (a *App) Close() error {
	a.Hub.Close()
	if a.Library != nil {
		return a.Library.Close()
	}
	return a.kv.Close()
}
