package synckit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/storage"
)

// LibraryBuilder provides a fluent interface for constructing Library instances.
type LibraryBuilder struct {
	kv           storage.KV
	source       Source
	logger       *slog.Logger
	metrics      MetricsCollector
	notifiers    []Notifier
	fetchTimeout time.Duration
	syncInterval time.Duration
	clock        func() time.Time
	onState      func(State)
}

// NewLibraryBuilder creates a new builder with default options.
func NewLibraryBuilder() *LibraryBuilder {
	return &LibraryBuilder{
		fetchTimeout: DefaultFetchTimeout,
	}
}

// WithStore sets the key-value store the collection and settings persist to.
func (b *LibraryBuilder) WithStore(kv storage.KV) *LibraryBuilder {
	b.kv = kv
	return b
}

// WithSource sets the remote snapshot source.
func (b *LibraryBuilder) WithSource(source Source) *LibraryBuilder {
	b.source = source
	return b
}

func (b *LibraryBuilder) WithLogger(logger *slog.Logger) *LibraryBuilder {
	b.logger = logger
	return b
}

func (b *LibraryBuilder) WithMetricsCollector(mc MetricsCollector) *LibraryBuilder {
	b.metrics = mc
	return b
}

// WithNotifier adds a notifier. Every added notifier receives every outcome.
func (b *LibraryBuilder) WithNotifier(n Notifier) *LibraryBuilder {
	if n != nil {
		b.notifiers = append(b.notifiers, n)
	}
	return b
}

// WithFetchTimeout bounds each remote fetch.
func (b *LibraryBuilder) WithFetchTimeout(timeout time.Duration) *LibraryBuilder {
	b.fetchTimeout = timeout
	return b
}

// WithSyncInterval sets the interval used when auto sync is enabled without
// an explicit interval.
func (b *LibraryBuilder) WithSyncInterval(interval time.Duration) *LibraryBuilder {
	b.syncInterval = interval
	return b
}

// WithClock replaces time.Now for timestamps on new and restored records.
func (b *LibraryBuilder) WithClock(clock func() time.Time) *LibraryBuilder {
	b.clock = clock
	return b
}

// WithStateHook observes every scheduler state transition.
func (b *LibraryBuilder) WithStateHook(fn func(State)) *LibraryBuilder {
	b.onState = fn
	return b
}

// Build creates a new Library instance with the configured options.
func (b *LibraryBuilder) Build() (*Library, error) {
	if b.kv == nil {
		return nil, fmt.Errorf("store is required")
	}
	if b.source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if b.fetchTimeout < 0 {
		return nil, fmt.Errorf("fetch timeout must not be negative, got %s", b.fetchTimeout)
	}
	if b.syncInterval < 0 {
		return nil, fmt.Errorf("sync interval must not be negative, got %s", b.syncInterval)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.WithComponent(logging.Component("synckit")).Logger
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	clock := b.clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	notifier := &fanout{
		notifiers: append([]Notifier{LogNotifier{Logger: logger}}, b.notifiers...),
		logger:    logger,
	}

	store := NewRecordStore(b.kv)
	registry := newRegistry(store, clock, logger.With("component", "registry"), metrics, notifier)
	engine := &Engine{
		source:       b.source,
		store:        store,
		registry:     registry,
		fetchTimeout: b.fetchTimeout,
		logger:       logger.With("component", "engine"),
		metrics:      metrics,
		notifier:     notifier,
	}
	scheduler := newScheduler(engine, logger.With("component", "scheduler"), metrics, notifier, b.onState)

	return &Library{
		kv:           b.kv,
		source:       b.source,
		store:        store,
		registry:     registry,
		engine:       engine,
		scheduler:    scheduler,
		settings:     settings{kv: b.kv},
		logger:       logger,
		notifier:     notifier,
		clock:        clock,
		syncInterval: b.syncInterval,
	}, nil
}
