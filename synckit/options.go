package synckit

import (
	"errors"
	"log/slog"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/storage"
)

// Option is a functional option for configuring a Library via New.
type Option func(*LibraryBuilder) error

// New constructs a Library using functional options on top of the builder.
func New(opts ...Option) (*Library, error) {
	b := NewLibraryBuilder()

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, syncErrors.E(syncErrors.Op("New"), syncErrors.Component("synckit"), syncErrors.KindInvalid, err)
		}
	}

	if b.kv == nil {
		return nil, syncErrors.E(
			syncErrors.Op("New"),
			syncErrors.Component("synckit"),
			syncErrors.KindInvalid,
			errors.New("store is required (use WithStore(...))"),
		)
	}
	if b.source == nil {
		return nil, syncErrors.E(
			syncErrors.Op("New"),
			syncErrors.Component("synckit"),
			syncErrors.KindInvalid,
			errors.New("source is required (use WithSource(...))"),
		)
	}

	lib, err := b.Build()
	if err != nil {
		return nil, syncErrors.E(syncErrors.Op("New"), syncErrors.Component("synckit"), syncErrors.KindInvalid, err)
	}
	return lib, nil
}

// WithStore injects a pre-built key-value store.
func WithStore(kv storage.KV) Option {
	return func(b *LibraryBuilder) error {
		if kv == nil {
			return errors.New("store cannot be nil")
		}
		b.WithStore(kv)
		return nil
	}
}

// WithSource injects the remote snapshot source.
func WithSource(s Source) Option {
	return func(b *LibraryBuilder) error {
		if s == nil {
			return errors.New("source cannot be nil")
		}
		b.WithSource(s)
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *LibraryBuilder) error {
		b.WithLogger(l)
		return nil
	}
}

func WithMetrics(mc MetricsCollector) Option {
	return func(b *LibraryBuilder) error {
		b.WithMetricsCollector(mc)
		return nil
	}
}

func WithNotifier(n Notifier) Option {
	return func(b *LibraryBuilder) error {
		b.WithNotifier(n)
		return nil
	}
}

// WithFetchTimeout bounds each remote fetch. Zero selects DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(b *LibraryBuilder) error {
		if d < 0 {
			return errors.New("fetch timeout must not be negative")
		}
		if d == 0 {
			d = DefaultFetchTimeout
		}
		b.WithFetchTimeout(d)
		return nil
	}
}

func WithSyncInterval(d time.Duration) Option {
	return func(b *LibraryBuilder) error {
		if d < 0 {
			return errors.New("sync interval must not be negative")
		}
		b.WithSyncInterval(d)
		return nil
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *LibraryBuilder) error {
		b.WithClock(clock)
		return nil
	}
}

func WithStateHook(fn func(State)) Option {
	return func(b *LibraryBuilder) error {
		b.WithStateHook(fn)
		return nil
	}
}
